// Package service implements the calendar manager: request validation,
// name resolution, codec application and the bridging of asynchronous
// store callbacks into plain return values.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tazhate/icalbridge/internal/bridge"
	"github.com/tazhate/icalbridge/internal/domain"
	applog "github.com/tazhate/icalbridge/internal/log"
	"github.com/tazhate/icalbridge/internal/metrics"
	"github.com/tazhate/icalbridge/internal/store"
)

// AccessState is the outcome of an access request for one entity type
type AccessState int

const (
	AccessUnrequested AccessState = iota
	AccessRequesting
	AccessGranted
	AccessDenied
)

func (s AccessState) String() string {
	switch s {
	case AccessRequesting:
		return "requesting"
	case AccessGranted:
		return "granted"
	case AccessDenied:
		return "denied"
	default:
		return "unrequested"
	}
}

// Capabilities records what the store allowed at construction. It never
// changes afterwards.
type Capabilities struct {
	Events    AccessState
	Reminders AccessState
}

// Config tunes a CalendarManager. Zero values are usable.
type Config struct {
	Location *time.Location // zone for due-date components, default time.Local
	// BridgeTimeout bounds each wait on a store callback. 0 waits until the
	// context is done.
	BridgeTimeout time.Duration
	// DefaultSource is the source title CreateCalendar uses when none is given
	DefaultSource string
	Logger        *slog.Logger
	Now           func() time.Time
}

// CalendarManager mediates between requests and a native store. Mutations are
// not serialized internally: callers issue them one at a time.
type CalendarManager struct {
	store         store.Store
	loc           *time.Location
	timeout       time.Duration
	defaultSource string
	log           *slog.Logger
	now           func() time.Time
	caps          Capabilities
	handles       *handleTable
}

// NewCalendarManager requests event and reminder access and returns a ready
// manager. Event access is required: when it is denied the error is an
// *domain.AccessDeniedError and no manager is returned. Denied reminder access
// only logs a warning.
func NewCalendarManager(ctx context.Context, st store.Store, cfg Config) (*CalendarManager, error) {
	if st == nil {
		return nil, errors.New("nil store")
	}
	m := &CalendarManager{
		store:         st,
		loc:           cfg.Location,
		timeout:       cfg.BridgeTimeout,
		defaultSource: cfg.DefaultSource,
		log:           cfg.Logger,
		now:           cfg.Now,
		handles:       newHandleTable(),
	}
	if m.loc == nil {
		m.loc = time.Local
	}
	if m.log == nil {
		m.log = applog.Discard()
	}
	m.log = applog.WithComponent(m.log, "manager")
	if m.now == nil {
		m.now = time.Now
	}

	var caps Capabilities
	if err := m.requestAccess(ctx, store.EntityEvent, &caps.Events); caps.Events != AccessGranted {
		m.log.Error("calendar access not granted",
			"events", caps.Events.String(), "reminders", caps.Reminders.String(), "error", err)
		return nil, &domain.AccessDeniedError{Entity: "Calendar", Cause: err}
	}

	if err := m.requestAccess(ctx, store.EntityReminder, &caps.Reminders); caps.Reminders != AccessGranted {
		m.log.Warn("reminder access not granted, reminder operations will fail", "error", err)
	}

	m.caps = caps
	m.log.Info("calendar manager ready", "events", caps.Events.String(), "reminders", caps.Reminders.String())
	return m, nil
}

// requestAccess moves state from unrequested through requesting to granted
// or denied
func (m *CalendarManager) requestAccess(ctx context.Context, entity store.EntityType, state *AccessState) error {
	*state = AccessRequesting
	m.log.Debug("requesting access", "entity", entity.String(), "state", state.String())

	op := "request_access_" + entity.String()
	started := time.Now()
	granted, err := bridge.Await(ctx, op, m.timeout, func(complete func(bool, error)) {
		m.store.RequestAccess(ctx, entity, complete)
	})
	metrics.ObserveBridgeWait(op, time.Since(started))
	if err != nil {
		*state = AccessDenied
		return fmt.Errorf("request %s access: %w", entity, err)
	}
	*state = AccessDenied
	if granted {
		*state = AccessGranted
	}
	m.log.Debug("access requested", "entity", entity.String(), "state", state.String())
	return nil
}

// Capabilities returns the access outcome recorded at construction
func (m *CalendarManager) Capabilities() Capabilities {
	return m.caps
}

// Location returns the zone the manager reads due dates in
func (m *CalendarManager) Location() *time.Location {
	return m.loc
}

// PruneHandles forgets handles issued before now minus maxAge and returns how
// many were dropped
func (m *CalendarManager) PruneHandles(maxAge time.Duration) int {
	n := m.handles.prune(m.now().Add(-maxAge))
	metrics.SetHandles(m.handles.len())
	return n
}

// NativeEvent returns the store object behind a decoded event's handle
func (m *CalendarManager) NativeEvent(h domain.Handle) (*store.NativeEvent, bool) {
	return m.handles.event(h)
}

// NativeReminder returns the store object behind a decoded reminder's handle
func (m *CalendarManager) NativeReminder(h domain.Handle) (*store.NativeReminder, bool) {
	return m.handles.reminder(h)
}

// observe records metrics for a finished operation and logs failures
func (m *CalendarManager) observe(op string, started time.Time, err error) {
	metrics.ObserveOperation(op, started, err)
	if err != nil {
		m.log.Error("operation failed", applog.OperationKey, op, "error", err,
			applog.DurationKey, time.Since(started).Milliseconds())
	}
}

// storeErr wraps a raw store failure. Domain errors pass through.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		se *domain.StoreError
		ad *domain.AccessDeniedError
		te *bridge.TimeoutError
	)
	if errors.As(err, &se) || errors.As(err, &ad) || errors.As(err, &te) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.StoreError{Op: op, Cause: err}
}
