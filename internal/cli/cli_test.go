package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/icalbridge/internal/domain"
	applog "github.com/tazhate/icalbridge/internal/log"
	"github.com/tazhate/icalbridge/internal/service"
	"github.com/tazhate/icalbridge/internal/storage"
)

var testLoc = time.FixedZone("UTC+2", 2*60*60)

func newTestManager(t *testing.T) *service.CalendarManager {
	t.Helper()
	st, err := storage.New(filepath.Join(t.TempDir(), "calendar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	m, err := service.NewCalendarManager(context.Background(), st, service.Config{Location: testLoc, Logger: applog.Discard()})
	require.NoError(t, err)
	return m
}

func execute(t *testing.T, m *service.CalendarManager, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(func(context.Context) (*service.CalendarManager, error) { return m, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCalendars(t *testing.T) {
	m := newTestManager(t)

	out, err := execute(t, m, "calendars")
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Calendar")
	assert.Contains(t, out, "Local")

	out, err = execute(t, m, "calendars", "--json")
	require.NoError(t, err)
	var cals []domain.Calendar
	require.NoError(t, json.Unmarshal([]byte(out), &cals))
	require.Len(t, cals, 1)
	assert.Equal(t, "Calendar", cals[0].Title)
}

func TestLists(t *testing.T) {
	out, err := execute(t, newTestManager(t), "lists")
	require.NoError(t, err)
	assert.Equal(t, "Reminders\n", out)
}

func TestEvents(t *testing.T) {
	m := newTestManager(t)
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, testLoc)
	_, err := m.CreateEvent(context.Background(), &domain.CreateEventRequest{
		Title:     "Dentist",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	})
	require.NoError(t, err)

	out, err := execute(t, m, "events", "--from", "2026-05-04", "--to", "2026-05-05")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-05-04 10:00")
	assert.Contains(t, out, "Dentist")

	out, err = execute(t, m, "events", "--from", "2026-06-01", "--to", "2026-06-02")
	require.NoError(t, err)
	assert.Equal(t, "No events found in the specified date range\n", out)

	_, err = execute(t, m, "events", "--from", "tomorrow")
	assert.ErrorContains(t, err, "--from")
}

func TestRemindAndComplete(t *testing.T) {
	m := newTestManager(t)

	out, err := execute(t, m, "remind", "Buy milk", "--due", "2026-05-04T18:00", "--priority", "high")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Successfully created reminder: Buy milk (ID: "), out)
	id := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(out), "Successfully created reminder: Buy milk (ID: "), ")")

	out, err = execute(t, m, "reminders", "--completed=false")
	require.NoError(t, err)
	assert.Contains(t, out, "[ ]")
	assert.Contains(t, out, "2026-05-04 18:00")
	assert.Contains(t, out, "HIGH")

	out, err = execute(t, m, "complete", id)
	require.NoError(t, err)
	assert.Equal(t, "Successfully updated reminder: Buy milk\n", out)

	out, err = execute(t, m, "reminders", "--completed=false")
	require.NoError(t, err)
	assert.Equal(t, "No reminders found\n", out)

	out, err = execute(t, m, "reminders", "--json", "--completed")
	require.NoError(t, err)
	var got []domain.Reminder
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.True(t, got[0].IsCompleted)
}

func TestCompleteUnknownReminder(t *testing.T) {
	_, err := execute(t, newTestManager(t), "complete", "missing")
	assert.EqualError(t, err, "Reminder with id: missing does not exist")
}

func TestRemindRejectsBadPriority(t *testing.T) {
	_, err := execute(t, newTestManager(t), "remind", "x", "--priority", "urgent")
	assert.ErrorContains(t, err, "--priority")
}
