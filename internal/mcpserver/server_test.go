package mcpserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/icalbridge/internal/domain"
	applog "github.com/tazhate/icalbridge/internal/log"
	"github.com/tazhate/icalbridge/internal/service"
	"github.com/tazhate/icalbridge/internal/storage"
)

var testLoc = time.FixedZone("UTC+2", 2*60*60)

var createdID = regexp.MustCompile(`\(ID: ([^)]+)\)$`)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	st, err := storage.New(filepath.Join(t.TempDir(), "calendar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	lazy := service.NewLazy(func(ctx context.Context) (*service.CalendarManager, error) {
		return service.NewCalendarManager(ctx, st, service.Config{Location: testLoc, Logger: applog.Discard()})
	})
	cfg.Logger = applog.Discard()
	s, err := New(cfg, lazy.Get)
	require.NoError(t, err)
	return s
}

// call runs a tool and returns its text and whether it reported an error
func call(t *testing.T, s *Server, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := s.CallTool(context.Background(), name, args)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text, res.IsError
}

func mustCall(t *testing.T, s *Server, name string, args map[string]any) string {
	t.Helper()
	text, isErr := call(t, s, name, args)
	require.False(t, isErr, text)
	return text
}

func idFrom(t *testing.T, text string) string {
	t.Helper()
	m := createdID.FindStringSubmatch(text)
	require.Len(t, m, 2, text)
	return m[1]
}

func TestNewRequiresManager(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestToolNames(t *testing.T) {
	s := newTestServer(t, Config{})
	assert.Equal(t, []string{
		"create_calendar", "create_event", "create_reminder",
		"delete_event", "delete_reminder",
		"list_calendars", "list_events", "list_reminder_lists", "list_reminders",
		"update_event", "update_reminder",
	}, s.ToolNames())

	_, err := s.CallTool(context.Background(), "nope", nil)
	assert.Error(t, err)
}

func TestCalendarTools(t *testing.T) {
	s := newTestServer(t, Config{})

	assert.Equal(t, "Available calendars:\n- Calendar", mustCall(t, s, "list_calendars", nil))

	text := mustCall(t, s, "create_calendar", map[string]any{"name": "Work"})
	assert.True(t, strings.HasPrefix(text, "Successfully created calendar: Work (ID: "), text)

	assert.Equal(t, "Available calendars:\n- Calendar\n- Work", mustCall(t, s, "list_calendars", nil))

	text, isErr := call(t, s, "create_calendar", map[string]any{})
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(text, "Error creating calendar: "), text)
}

func TestEventLifecycle(t *testing.T) {
	s := newTestServer(t, Config{})

	text := mustCall(t, s, "create_event", map[string]any{
		"title":            "Dentist",
		"start_time":       "2026-05-04T10:00:00",
		"end_time":         "2026-05-04T11:00:00",
		"location":         "Main St 1",
		"reminder_offsets": []any{15},
	})
	assert.True(t, strings.HasPrefix(text, "Successfully created event: Dentist (ID: "), text)
	id := idFrom(t, text)

	window := map[string]any{"start_date": "2026-05-04", "end_date": "2026-05-05"}
	listed := mustCall(t, s, "list_events", window)
	assert.Contains(t, listed, "Event: Dentist,\n")
	assert.Contains(t, listed, " - Identifier: "+id+",\n")
	assert.Contains(t, listed, " - Start Time: 2026-05-04 10:00:00+02:00,\n")
	assert.Contains(t, listed, " - Calendar: Calendar,\n")
	assert.Contains(t, listed, " - Location: Main St 1,\n")
	assert.Contains(t, listed, " - Alarms (minutes before): 15,\n")
	assert.Contains(t, listed, " - No recurrence\n")

	text = mustCall(t, s, "update_event", map[string]any{
		"event_id": id,
		"title":    "Dentist (moved)",
		"location": nil,
	})
	assert.Equal(t, "Successfully updated event: Dentist (moved)", text)

	listed = mustCall(t, s, "list_events", window)
	assert.Contains(t, listed, "Event: Dentist (moved),\n")
	assert.Contains(t, listed, " - Location: N/A,\n")
	assert.Contains(t, listed, " - Alarms (minutes before): 15,\n", "absent fields are kept")

	assert.Equal(t, "Successfully deleted event with ID: "+id, mustCall(t, s, "delete_event", map[string]any{"event_id": id}))
	assert.Equal(t, "No events found in the specified date range", mustCall(t, s, "list_events", window))
}

func TestCreateEventNestedRequest(t *testing.T) {
	s := newTestServer(t, Config{})

	text := mustCall(t, s, "create_event", map[string]any{
		"create_event_request": map[string]any{
			"title":      "Review",
			"start_time": "2026-05-04T14:00:00",
			"end_time":   "2026-05-04T15:00:00",
		},
	})
	assert.True(t, strings.HasPrefix(text, "Successfully created event: Review"), text)
}

func TestEventToolErrors(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name   string
		tool   string
		args   map[string]any
		prefix string
		want   string
	}{
		{
			name:   "unknown event",
			tool:   "update_event",
			args:   map[string]any{"event_id": "nope", "title": "x"},
			prefix: "Error updating event: ",
			want:   "does not exist",
		},
		{
			name:   "bad start",
			tool:   "create_event",
			args:   map[string]any{"title": "x", "start_time": "tomorrow", "end_time": "2026-05-04T11:00:00"},
			prefix: "Error creating event: ",
			want:   "start_time",
		},
		{
			name:   "end before start",
			tool:   "create_event",
			args:   map[string]any{"title": "x", "start_time": "2026-05-04T11:00:00", "end_time": "2026-05-04T10:00:00"},
			prefix: "Error creating event: ",
			want:   "end_time",
		},
		{
			name:   "missing window",
			tool:   "list_events",
			args:   map[string]any{"end_date": "2026-05-04"},
			prefix: "Error listing events: ",
			want:   "start_date",
		},
		{
			name:   "unknown calendar",
			tool:   "list_events",
			args:   map[string]any{"start_date": "2026-05-04", "end_date": "2026-05-05", "calendar_name": "Nope"},
			prefix: "Error listing events: ",
			want:   "Nope",
		},
		{
			name:   "delete unknown",
			tool:   "delete_event",
			args:   map[string]any{"event_id": "nope"},
			prefix: "Error deleting event: ",
			want:   "does not exist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, s, tt.tool, tt.args)
			assert.True(t, isErr)
			assert.True(t, strings.HasPrefix(text, tt.prefix), text)
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestRecurringEventOccurrences(t *testing.T) {
	s := newTestServer(t, Config{})

	id := idFrom(t, mustCall(t, s, "create_event", map[string]any{
		"title":           "Standup",
		"start_time":      "2026-05-04T08:00:00",
		"end_time":        "2026-05-04T08:15:00",
		"recurrence_rule": map[string]any{"frequency": "DAILY", "occurrence_count": 3},
	}))

	window := map[string]any{"start_date": "2026-05-04", "end_date": "2026-05-10"}
	listed := mustCall(t, s, "list_events", window)
	assert.Equal(t, 3, strings.Count(listed, "Event: Standup,"))
	assert.Contains(t, listed, " - Recurrence: DAILY, Interval: 1, End Date: N/A, Occurrences: 3\n")

	text := mustCall(t, s, "update_event", map[string]any{
		"event_id":        id,
		"occurrence_date": "2026-05-06T08:00:00",
		"title":           "Late standup",
	})
	assert.Equal(t, "Successfully updated event: Late standup", text)

	listed = mustCall(t, s, "list_events", window)
	assert.Equal(t, 2, strings.Count(listed, "Event: Standup,"))
	assert.Equal(t, 1, strings.Count(listed, "Event: Late standup,"))

	mustCall(t, s, "delete_event", map[string]any{"event_id": id, "occurrence_date": "2026-05-05T08:00:00"})
	listed = mustCall(t, s, "list_events", window)
	assert.Equal(t, 1, strings.Count(listed, "Event: Standup,"))
}

func TestReminderLifecycle(t *testing.T) {
	s := newTestServer(t, Config{})

	assert.Equal(t, "Available reminder lists:\n- Reminders", mustCall(t, s, "list_reminder_lists", nil))
	assert.Equal(t, "No reminders found", mustCall(t, s, "list_reminders", nil))
	assert.Equal(t, "No pending reminders found", mustCall(t, s, "list_reminders", map[string]any{"completed": false}))
	assert.Equal(t, "No completed reminders found in 'Reminders'",
		mustCall(t, s, "list_reminders", map[string]any{"list_name": "Reminders", "completed": true}))

	text := mustCall(t, s, "create_reminder", map[string]any{
		"title":    "Pay rent",
		"due_date": "2026-05-01T09:00:00",
		"priority": "HIGH",
		"notes":    "transfer",
	})
	assert.True(t, strings.HasPrefix(text, "Successfully created reminder: Pay rent (ID: "), text)
	id := idFrom(t, text)

	listed := mustCall(t, s, "list_reminders", map[string]any{"completed": false})
	assert.Contains(t, listed, "Reminder: Pay rent,\n")
	assert.Contains(t, listed, " - Identifier: "+id+",\n")
	assert.Contains(t, listed, " - List: Reminders,\n")
	assert.Contains(t, listed, " - Status: ⏸️ Pending,\n")
	assert.Contains(t, listed, " - Due Date: 2026-05-01 09:00:00+02:00,\n")
	assert.Contains(t, listed, " - Priority: HIGH,\n")
	assert.Contains(t, listed, " - Notes: transfer,\n")

	text = mustCall(t, s, "update_reminder", map[string]any{"reminder_id": id, "is_completed": true, "notes": nil})
	assert.Equal(t, "Successfully updated reminder: Pay rent", text)

	listed = mustCall(t, s, "list_reminders", map[string]any{"completed": true})
	assert.Contains(t, listed, " - Status: ✅ Completed on ")
	assert.Contains(t, listed, " - Notes: N/A,\n")
	assert.Equal(t, "No pending reminders found", mustCall(t, s, "list_reminders", map[string]any{"completed": false}))

	assert.Equal(t, "Successfully deleted reminder with ID: "+id, mustCall(t, s, "delete_reminder", map[string]any{"reminder_id": id}))

	text, isErr := call(t, s, "delete_reminder", map[string]any{"reminder_id": id})
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(text, "Error deleting reminder: "), text)
	assert.Contains(t, text, "does not exist")
}

func TestListRemindersRejectsNonBooleanFilter(t *testing.T) {
	s := newTestServer(t, Config{})

	text, isErr := call(t, s, "list_reminders", map[string]any{"completed": "yes"})
	assert.True(t, isErr)
	assert.Contains(t, text, "completed")
}

func TestAccessDeniedShowsRemediation(t *testing.T) {
	denied := func(context.Context) (*service.CalendarManager, error) {
		return nil, &domain.AccessDeniedError{Entity: "events", Cause: errors.New("user declined")}
	}
	s, err := New(Config{Logger: applog.Discard()}, denied)
	require.NoError(t, err)

	text, isErr := call(t, s, "list_calendars", nil)
	assert.True(t, isErr)
	assert.Equal(t, "Error listing calendars: "+accessRemediation, text)

	_, err = s.readCalendars(context.Background(), mcp.ReadResourceRequest{})
	require.Error(t, err)
	assert.Equal(t, accessRemediation, err.Error())
}

func TestResources(t *testing.T) {
	s := newTestServer(t, Config{})
	ctx := context.Background()

	contents, err := s.readCalendars(ctx, mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "calendars://list", text.URI)
	assert.Equal(t, "Available calendars:\n- Calendar", text.Text)

	contents, err = s.readReminderLists(ctx, mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok = contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "Available reminder lists:\n- Reminders", text.Text)
}

func TestWritesAreRateLimited(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestServer(t, Config{WritesPerMinute: 1, Now: func() time.Time { return now }})

	mustCall(t, s, "create_calendar", map[string]any{"name": "One"})

	text, isErr := call(t, s, "create_calendar", map[string]any{"name": "Two"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Rate limit exceeded")

	// reads draw from their own bucket
	mustCall(t, s, "list_calendars", nil)
}

func TestServeStopsWhenContextIsDone(t *testing.T) {
	s := newTestServer(t, Config{})
	in, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, in, io.Discard) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeReturnsAtEndOfInput(t *testing.T) {
	s := newTestServer(t, Config{})
	var out bytes.Buffer
	assert.NoError(t, s.Serve(context.Background(), strings.NewReader(""), &out))
}
