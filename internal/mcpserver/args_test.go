package mcpserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/icalbridge/internal/domain"
)

func TestDecodeArgsCreate(t *testing.T) {
	args := map[string]any{
		"title":            "Trip",
		"start_time":       "2026-07-01T08:00",
		"end_time":         "2026-07-01T18:00:00Z",
		"reminder_offsets": []any{30, 60},
		"recurrence_rule":  map[string]any{"frequency": "WEEKLY", "end_date": "2026-08-01"},
	}
	var req domain.CreateEventRequest
	require.NoError(t, decodeArgs(args, "create_event_request", testLoc, &req))

	assert.Equal(t, "Trip", req.Title)
	assert.True(t, req.StartTime.Equal(time.Date(2026, 7, 1, 8, 0, 0, 0, testLoc)))
	assert.True(t, req.EndTime.Equal(time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)))
	assert.Equal(t, []int{30, 60}, req.AlarmsMinutesOffsets)
	require.NotNil(t, req.RecurrenceRule)
	assert.Equal(t, domain.FrequencyWeekly, req.RecurrenceRule.Frequency)
	require.NotNil(t, req.RecurrenceRule.EndDate)
	assert.True(t, req.RecurrenceRule.EndDate.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, testLoc)))

	// the caller's map is left alone
	assert.Equal(t, "2026-07-01T08:00", args["start_time"])
	assert.Contains(t, args, "reminder_offsets")
}

func TestDecodeArgsUpdateKeepsNulls(t *testing.T) {
	var req domain.UpdateEventRequest
	args := map[string]any{"event_id": "x", "notes": nil, "title": "New"}
	require.NoError(t, decodeArgs(args, "update_event_request", testLoc, &req))

	title, ok := req.Title.Get()
	assert.True(t, ok)
	assert.Equal(t, "New", title)
	assert.True(t, req.Notes.IsCleared())
	assert.False(t, req.Location.IsSet())
	assert.False(t, req.Location.IsCleared())
}

func TestDecodeArgsNested(t *testing.T) {
	var req domain.CreateReminderRequest
	args := map[string]any{"create_reminder_request": map[string]any{"title": "Milk", "priority": "LOW"}}
	require.NoError(t, decodeArgs(args, "create_reminder_request", testLoc, &req))
	assert.Equal(t, "Milk", req.Title)
	assert.Equal(t, domain.PriorityLow, req.Priority)
}

func TestDecodeArgsAliasDoesNotOverride(t *testing.T) {
	var req domain.CreateEventRequest
	args := map[string]any{"alarms_minutes_offsets": []any{5}, "reminder_offsets": []any{10}}
	require.NoError(t, decodeArgs(args, "", testLoc, &req))
	assert.Equal(t, []int{5}, req.AlarmsMinutesOffsets)
}

func TestDecodeArgsBadTime(t *testing.T) {
	var req domain.CreateReminderRequest
	err := decodeArgs(map[string]any{"title": "x", "due_date": "soon"}, "", testLoc, &req)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "due_date", verr.Field)
}

func TestOptionalArgs(t *testing.T) {
	b, err := optionalBool(map[string]any{}, "completed")
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = optionalBool(map[string]any{"completed": true}, "completed")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, *b)

	tm, err := optionalTime(map[string]any{"occurrence_date": ""}, "occurrence_date", testLoc)
	require.NoError(t, err)
	assert.Nil(t, tm)

	_, err = requiredTime(map[string]any{}, "start_date", testLoc)
	assert.Error(t, err)
}
