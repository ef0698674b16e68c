package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/icalbridge/internal/bridge"
	"github.com/tazhate/icalbridge/internal/domain"
	"github.com/tazhate/icalbridge/internal/store"
)

func createReminder(t *testing.T, m *CalendarManager, req domain.CreateReminderRequest) *domain.Reminder {
	t.Helper()
	if req.Title == "" {
		req.Title = "Buy milk"
	}
	r, err := m.CreateReminder(context.Background(), &req)
	require.NoError(t, err)
	return r
}

func TestCreateReminder(t *testing.T) {
	fs := newFakeStore()
	m := newTestManager(t, fs)

	due := time.Date(2026, 5, 1, 17, 30, 45, 0, time.UTC)
	rule, err := domain.NewRecurrenceRule(domain.FrequencyMonthly)
	require.NoError(t, err)

	r := createReminder(t, m, domain.CreateReminderRequest{
		Title:                "Pay rent",
		DueDate:              &due,
		Priority:             domain.PriorityHigh,
		Notes:                "transfer",
		AlarmsMinutesOffsets: []int{60},
		RecurrenceRule:       rule,
	})

	assert.NotEmpty(t, r.Identifier)
	assert.Equal(t, "Inbox", r.ListName)
	assert.Equal(t, domain.PriorityHigh, r.Priority)
	assert.Equal(t, []int{60}, r.AlarmsMinutesOffsets)
	assert.True(t, rule.Equal(r.RecurrenceRule))
	require.NotNil(t, r.DueDate)
	assert.True(t, due.Truncate(time.Minute).Equal(*r.DueDate))

	stored := fs.storedReminder(r.Identifier)
	require.NotNil(t, stored)
	// components are read in the manager's zone, two hours ahead of UTC
	assert.Equal(t, store.DateComponents{Year: 2026, Month: 5, Day: 1, Hour: 19, Minute: 30}, *stored.DueDateComponents)
	assert.Equal(t, 1, stored.Priority)
	assert.Len(t, stored.RecurrenceRules, 1)
	assert.Equal(t, []bool{true}, fs.reminderCommits)
}

func TestCreateReminderUnknownList(t *testing.T) {
	m := newTestManager(t, newFakeStore())
	_, err := m.CreateReminder(context.Background(), &domain.CreateReminderRequest{Title: "x", ListName: "Errands"})
	assert.EqualError(t, err, "Calendar: Errands does not exist")
}

func TestListReminders(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	m := newTestManager(t, fs)

	createReminder(t, m, domain.CreateReminderRequest{Title: "a"})
	b := createReminder(t, m, domain.CreateReminderRequest{Title: "b", ListName: "Groceries"})
	createReminder(t, m, domain.CreateReminderRequest{Title: "c", ListName: "Groceries"})

	done := true
	_, err := m.UpdateReminder(ctx, b.Identifier, &domain.UpdateReminderRequest{IsCompleted: domain.Some(true)})
	require.NoError(t, err)

	fs.fetches = 0
	all, err := m.ListReminders(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 2, fs.fetches, "one fetch per list")

	completed, err := m.ListReminders(ctx, "", &done)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "b", completed[0].Title)

	pending := false
	groceries, err := m.ListReminders(ctx, "Groceries", &pending)
	require.NoError(t, err)
	require.Len(t, groceries, 1)
	assert.Equal(t, "c", groceries[0].Title)

	_, err = m.ListReminders(ctx, "Errands", nil)
	var nf *domain.CalendarNotFoundError
	assert.True(t, errors.As(err, &nf))

	lists, err := m.ListReminderLists(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Inbox", "Groceries"}, lists)
}

func TestListRemindersBridgeFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("fetch error", func(t *testing.T) {
		fs := newFakeStore()
		m := newTestManager(t, fs)
		fs.fetchErr = errors.New("reminders unavailable")
		_, err := m.ListReminders(ctx, "", nil)
		var se *domain.StoreError
		require.True(t, errors.As(err, &se))
		assert.ErrorContains(t, err, "reminders unavailable")
	})

	t.Run("fetch never completes", func(t *testing.T) {
		fs := newFakeStore()
		m, err := NewCalendarManager(ctx, fs, Config{BridgeTimeout: 20 * time.Millisecond})
		require.NoError(t, err)
		fs.silent = true
		_, err = m.ListReminders(ctx, "Inbox", nil)
		var te *bridge.TimeoutError
		assert.True(t, errors.As(err, &te))
	})
}

func TestUpdateReminder(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	fs := newFakeStore()
	m, err := NewCalendarManager(ctx, fs, Config{Location: testLoc, Now: func() time.Time { return now }})
	require.NoError(t, err)

	due := time.Date(2026, 6, 2, 9, 0, 0, 0, testLoc)
	daily, err := domain.NewRecurrenceRule(domain.FrequencyDaily)
	require.NoError(t, err)
	r := createReminder(t, m, domain.CreateReminderRequest{
		Title: "Water plants", DueDate: &due, Priority: domain.PriorityLow, Notes: "balcony", RecurrenceRule: daily,
	})

	t.Run("complete", func(t *testing.T) {
		got, err := m.UpdateReminder(ctx, r.Identifier, &domain.UpdateReminderRequest{IsCompleted: domain.Some(true)})
		require.NoError(t, err)
		assert.True(t, got.IsCompleted)
		require.NotNil(t, got.CompletionDate)
		assert.Equal(t, now, *got.CompletionDate)
		assert.Equal(t, "balcony", got.Notes)
		assert.Equal(t, domain.PriorityLow, got.Priority)
	})

	t.Run("recurrence replaced not appended", func(t *testing.T) {
		weekly, err := domain.NewRecurrenceRule(domain.FrequencyWeekly, domain.WithDaysOfWeek(domain.Saturday))
		require.NoError(t, err)
		got, err := m.UpdateReminder(ctx, r.Identifier, &domain.UpdateReminderRequest{RecurrenceRule: domain.Some(*weekly)})
		require.NoError(t, err)
		assert.True(t, weekly.Equal(got.RecurrenceRule))
		assert.Len(t, fs.storedReminder(r.Identifier).RecurrenceRules, 1)
	})

	t.Run("clears", func(t *testing.T) {
		got, err := m.UpdateReminder(ctx, r.Identifier, &domain.UpdateReminderRequest{
			DueDate:        domain.Clear[time.Time](),
			Priority:       domain.Clear[domain.Priority](),
			IsCompleted:    domain.Clear[bool](),
			Notes:          domain.Clear[string](),
			RecurrenceRule: domain.Clear[domain.RecurrenceRule](),
		})
		require.NoError(t, err)
		assert.Nil(t, got.DueDate)
		assert.Equal(t, domain.PriorityNone, got.Priority)
		assert.False(t, got.IsCompleted)
		assert.Nil(t, got.CompletionDate)
		assert.Empty(t, got.Notes)
		assert.Nil(t, got.RecurrenceRule)
		assert.Equal(t, "Water plants", got.Title)
	})

	t.Run("move list", func(t *testing.T) {
		got, err := m.UpdateReminder(ctx, r.Identifier, &domain.UpdateReminderRequest{ListName: domain.Some("Groceries")})
		require.NoError(t, err)
		assert.Equal(t, "Groceries", got.ListName)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := m.UpdateReminder(ctx, "missing", &domain.UpdateReminderRequest{Title: domain.Some("x")})
		assert.EqualError(t, err, "Reminder with id: missing does not exist")
	})

	t.Run("clear title rejected", func(t *testing.T) {
		_, err := m.UpdateReminder(ctx, r.Identifier, &domain.UpdateReminderRequest{Title: domain.Clear[string]()})
		var verr *domain.ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}

func TestDeleteReminder(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	m := newTestManager(t, fs)

	r := createReminder(t, m, domain.CreateReminderRequest{})
	require.NoError(t, m.DeleteReminder(ctx, r.Identifier))
	assert.Equal(t, []bool{true, true}, fs.reminderCommits)

	found, err := m.FindReminderByID(ctx, r.Identifier)
	require.NoError(t, err)
	assert.Nil(t, found)

	assert.EqualError(t, m.DeleteReminder(ctx, r.Identifier), "Reminder with id: "+r.Identifier+" does not exist")
}
