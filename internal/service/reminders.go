package service

import (
	"context"
	"time"

	"github.com/tazhate/icalbridge/internal/bridge"
	"github.com/tazhate/icalbridge/internal/codec"
	"github.com/tazhate/icalbridge/internal/domain"
	applog "github.com/tazhate/icalbridge/internal/log"
	"github.com/tazhate/icalbridge/internal/metrics"
	"github.com/tazhate/icalbridge/internal/store"
)

// ListReminderLists returns the titles of the reminder lists
func (m *CalendarManager) ListReminderLists(ctx context.Context) (_ []string, err error) {
	defer func(started time.Time) { m.observe("list_reminder_lists", started, err) }(time.Now())

	lists, err := m.store.Calendars(ctx, store.EntityReminder)
	if err != nil {
		return nil, storeErr("list reminder lists", err)
	}
	names := make([]string, 0, len(lists))
	for _, l := range lists {
		names = append(names, l.Title)
	}
	return names, nil
}

// ListReminders fetches the reminders of one list, or of every list when
// listName is empty. A non-nil completed keeps only reminders in that state.
func (m *CalendarManager) ListReminders(ctx context.Context, listName string, completed *bool) (_ []*domain.Reminder, err error) {
	defer func(started time.Time) { m.observe("list_reminders", started, err) }(time.Now())

	var lists []*store.Calendar
	if listName != "" {
		l, err := m.calendarByTitle(ctx, store.EntityReminder, listName)
		if err != nil {
			return nil, err
		}
		lists = []*store.Calendar{l}
	} else {
		lists, err = m.store.Calendars(ctx, store.EntityReminder)
		if err != nil {
			return nil, storeErr("list reminder lists", err)
		}
	}

	var out []*domain.Reminder
	for _, l := range lists {
		natives, err := m.fetchReminders(ctx, l)
		if err != nil {
			return nil, err
		}
		for _, r := range natives {
			if completed != nil && r.Completed != *completed {
				continue
			}
			out = append(out, m.decodeReminder(r))
		}
	}
	m.log.Debug("reminders listed", "list", listName, "lists", len(lists), "count", len(out))
	return out, nil
}

// fetchReminders blocks on the store's asynchronous fetch for one list
func (m *CalendarManager) fetchReminders(ctx context.Context, list *store.Calendar) ([]*store.NativeReminder, error) {
	const op = "fetch_reminders"
	started := time.Now()
	pred := store.ReminderPredicate{Calendars: []*store.Calendar{list}}
	natives, err := bridge.Await(ctx, op, m.timeout, func(complete func([]*store.NativeReminder, error)) {
		m.store.FetchReminders(ctx, pred, complete)
	})
	metrics.ObserveBridgeWait(op, time.Since(started))
	if err != nil {
		return nil, storeErr("fetch reminders", err)
	}
	return natives, nil
}

// CreateReminder saves a new reminder and returns it with its identifier
func (m *CalendarManager) CreateReminder(ctx context.Context, req *domain.CreateReminderRequest) (_ *domain.Reminder, err error) {
	defer func(started time.Time) { m.observe("create_reminder", started, err) }(time.Now())

	if err := req.Validate(); err != nil {
		return nil, err
	}

	r := &store.NativeReminder{
		Title:    req.Title,
		Notes:    req.Notes,
		URL:      req.URL,
		Priority: int(req.Priority),
		Alarms:   codec.EncodeAlarms(req.AlarmsMinutesOffsets),
	}
	if req.DueDate != nil {
		r.DueDateComponents = codec.EncodeDueDate(*req.DueDate, m.loc)
	}
	if req.RecurrenceRule != nil {
		r.AddRecurrenceRule(codec.EncodeRecurrence(req.RecurrenceRule))
	}
	list, err := m.calendarOrDefault(ctx, store.EntityReminder, req.ListName)
	if err != nil {
		return nil, err
	}
	r.Calendar = list

	if err := m.store.SaveReminder(ctx, r, true); err != nil {
		return nil, storeErr("save reminder", err)
	}
	m.log.Info("reminder created", applog.ReminderKey, r.Identifier, "list", list.Title)
	return m.decodeReminder(r), nil
}

// UpdateReminder applies the fields present in req
func (m *CalendarManager) UpdateReminder(ctx context.Context, id string, req *domain.UpdateReminderRequest) (_ *domain.Reminder, err error) {
	defer func(started time.Time) { m.observe("update_reminder", started, err) }(time.Now())

	if err := req.Validate(); err != nil {
		return nil, err
	}
	r, err := m.nativeReminderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if v, ok := req.Title.Get(); ok {
		r.Title = v
	}
	if v, ok := req.ListName.Get(); ok {
		list, err := m.calendarByTitle(ctx, store.EntityReminder, v)
		if err != nil {
			return nil, err
		}
		r.Calendar = list
	}
	if !req.DueDate.IsAbsent() {
		r.DueDateComponents = nil
		if due, ok := req.DueDate.Get(); ok {
			r.DueDateComponents = codec.EncodeDueDate(due, m.loc)
		}
	}
	applyText(&r.Notes, req.Notes)
	applyText(&r.URL, req.URL)
	if !req.Priority.IsAbsent() {
		p, _ := req.Priority.Get()
		r.Priority = int(p)
	}
	if !req.IsCompleted.IsAbsent() {
		done, _ := req.IsCompleted.Get()
		r.SetCompleted(done, m.now())
	}
	if !req.AlarmsMinutesOffsets.IsAbsent() {
		offsets, _ := req.AlarmsMinutesOffsets.Get()
		r.Alarms = codec.EncodeAlarms(offsets)
	}
	if !req.RecurrenceRule.IsAbsent() {
		for _, existing := range append([]*store.RecurrenceRule(nil), r.RecurrenceRules...) {
			r.RemoveRecurrenceRule(existing)
		}
		if rule, ok := req.RecurrenceRule.Get(); ok {
			r.AddRecurrenceRule(codec.EncodeRecurrence(&rule))
		}
	}

	if err := m.store.SaveReminder(ctx, r, true); err != nil {
		return nil, storeErr("save reminder", err)
	}
	m.log.Info("reminder updated", applog.ReminderKey, id)
	return m.decodeReminder(r), nil
}

// DeleteReminder removes the reminder
func (m *CalendarManager) DeleteReminder(ctx context.Context, id string) (err error) {
	defer func(started time.Time) { m.observe("delete_reminder", started, err) }(time.Now())

	r, err := m.nativeReminderByID(ctx, id)
	if err != nil {
		return err
	}
	if err := m.store.RemoveReminder(ctx, r, true); err != nil {
		return storeErr("remove reminder", err)
	}
	m.log.Info("reminder deleted", applog.ReminderKey, id)
	return nil
}

// FindReminderByID scans every reminder in every list, so each lookup costs a
// full fetch. Returns nil, nil when no reminder has the identifier.
func (m *CalendarManager) FindReminderByID(ctx context.Context, id string) (*domain.Reminder, error) {
	if id == "" {
		return nil, nil
	}
	all, err := m.ListReminders(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if r.Identifier == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *CalendarManager) nativeReminderByID(ctx context.Context, id string) (*store.NativeReminder, error) {
	found, err := m.FindReminderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, &domain.ReminderNotFoundError{ID: id}
	}
	r, ok := m.handles.reminder(found.Handle)
	if !ok {
		return nil, &domain.ReminderNotFoundError{ID: id}
	}
	return r, nil
}

func (m *CalendarManager) decodeReminder(r *store.NativeReminder) *domain.Reminder {
	out := &domain.Reminder{
		Identifier:           r.Identifier,
		Title:                r.Title,
		DueDate:              codec.DecodeDueDate(r.DueDateComponents, m.loc),
		CompletionDate:       r.CompletionDate,
		Notes:                r.Notes,
		Priority:             domain.PriorityFromStore(r.Priority),
		URL:                  r.URL,
		IsCompleted:          r.Completed,
		AlarmsMinutesOffsets: codec.DecodeAlarms(r.Alarms),
		RecurrenceRule:       codec.DecodeFirstRecurrence(r.RecurrenceRules),
		CreationDate:         r.CreationDate,
		LastModified:         r.LastModified,
	}
	if r.Calendar != nil {
		out.ListName = r.Calendar.Title
	}
	out.Handle = m.handles.putReminder(r, m.now())
	return out
}
