package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/tazhate/icalbridge/internal/store"
)

// ErrCalendarCreation is returned by SaveCalendar: CalDAV sources are not
// creation-capable
var ErrCalendarCreation = errors.New("caldav: calendar creation is not supported")

type Options struct {
	// Location reads floating times and splits due dates into components
	Location *time.Location
	// DefaultCalendar is a calendar path or name preferred as the default
	DefaultCalendar string
	Logger          *slog.Logger
}

// Store implements store.Store over a CalDAV server. Objects are addressed by
// UID; the server path of every object seen is remembered so rewrites land
// on the same resource.
type Store struct {
	connect  func() (DAV, error)
	source   *store.Source
	loc      *time.Location
	fallback string
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	homeSet string
	paths   map[string]string // UID -> object path
}

var _ store.Store = (*Store)(nil)

func NewStore(c *Client, opts Options) *Store {
	return newStore(c.connect, c.baseURL, opts)
}

func newStore(connect func() (DAV, error), baseURL string, opts Options) *Store {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	title := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		title = u.Host
	}
	return &Store{
		connect:  connect,
		source:   &store.Source{Identifier: baseURL, Title: title},
		loc:      opts.Location,
		fallback: opts.DefaultCalendar,
		logger:   opts.Logger,
		now:      time.Now,
		newID:    uuid.NewString,
		paths:    make(map[string]string),
	}
}

func (s *Store) discover(ctx context.Context) (DAV, []caldav.Calendar, error) {
	dav, err := s.connect()
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	homeSet := s.homeSet
	s.mu.Unlock()

	if homeSet == "" {
		// Find the user's calendar home
		principal, err := dav.FindCurrentUserPrincipal(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("find principal: %w", err)
		}
		homeSet, err = dav.FindCalendarHomeSet(ctx, principal)
		if err != nil {
			return nil, nil, fmt.Errorf("find home set: %w", err)
		}
		s.mu.Lock()
		s.homeSet = homeSet
		s.mu.Unlock()
	}

	cals, err := dav.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, nil, fmt.Errorf("find calendars: %w", err)
	}
	return dav, cals, nil
}

// RequestAccess grants when principal discovery succeeds
func (s *Store) RequestAccess(ctx context.Context, entity store.EntityType, done store.AccessCallback) {
	go func() {
		if _, _, err := s.discover(ctx); err != nil {
			done(false, err)
			return
		}
		done(true, nil)
	}()
}

func componentName(entity store.EntityType) string {
	if entity == store.EntityReminder {
		return ical.CompToDo
	}
	return ical.CompEvent
}

// supports reports whether cal holds the component. Servers that do not
// advertise a component set are assumed to hold events only.
func supports(cal caldav.Calendar, comp string) bool {
	if len(cal.SupportedComponentSet) == 0 {
		return comp == ical.CompEvent
	}
	for _, c := range cal.SupportedComponentSet {
		if strings.EqualFold(c, comp) {
			return true
		}
	}
	return false
}

func (s *Store) calendars(ctx context.Context, entity store.EntityType) (DAV, []*store.Calendar, error) {
	dav, found, err := s.discover(ctx)
	if err != nil {
		return nil, nil, err
	}
	comp := componentName(entity)
	var out []*store.Calendar
	for _, c := range found {
		if !supports(c, comp) {
			continue
		}
		title := c.Name
		if title == "" {
			title = path.Base(strings.TrimSuffix(c.Path, "/"))
		}
		out = append(out, &store.Calendar{Identifier: c.Path, Title: title, Entity: entity, Source: s.source})
	}
	return dav, out, nil
}

func (s *Store) Calendars(ctx context.Context, entity store.EntityType) ([]*store.Calendar, error) {
	_, cals, err := s.calendars(ctx, entity)
	return cals, err
}

// DefaultCalendar returns the configured calendar when it exists, otherwise
// the first one
func (s *Store) DefaultCalendar(ctx context.Context, entity store.EntityType) (*store.Calendar, error) {
	cals, err := s.Calendars(ctx, entity)
	if err != nil || len(cals) == 0 {
		return nil, err
	}
	for _, c := range cals {
		if s.fallback != "" && (c.Identifier == s.fallback || c.Title == s.fallback) {
			return c, nil
		}
	}
	return cals[0], nil
}

func (s *Store) Sources(context.Context) ([]*store.Source, error) {
	return []*store.Source{s.source}, nil
}

func (s *Store) SaveCalendar(context.Context, *store.Calendar, bool) error {
	return ErrCalendarCreation
}

func (s *Store) RemoveCalendar(ctx context.Context, cal *store.Calendar, _ bool) error {
	dav, err := s.connect()
	if err != nil {
		return err
	}
	if err := dav.RemoveAll(ctx, cal.Identifier); err != nil {
		return fmt.Errorf("remove calendar: %w", err)
	}
	return nil
}

func (s *Store) remember(uid, p string) {
	s.mu.Lock()
	s.paths[uid] = p
	s.mu.Unlock()
}

func (s *Store) forget(uid string) {
	s.mu.Lock()
	delete(s.paths, uid)
	s.mu.Unlock()
}

// objectPath returns the known path of uid when it lives in cal, otherwise
// a new path inside cal
func (s *Store) objectPath(cal *store.Calendar, uid string) string {
	s.mu.Lock()
	known, ok := s.paths[uid]
	s.mu.Unlock()
	dir := strings.TrimSuffix(cal.Identifier, "/") + "/"
	if ok && strings.HasPrefix(known, dir) {
		return known
	}
	return dir + url.PathEscape(uid) + ".ics"
}

func (s *Store) query(ctx context.Context, dav DAV, cal *store.Calendar, filter caldav.CompFilter) ([]caldav.CalendarObject, error) {
	objects, err := dav.QueryCalendar(ctx, cal.Identifier, &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{Name: ical.CompCalendar, Comps: []caldav.CompFilter{filter}},
	})
	if err != nil {
		return nil, fmt.Errorf("query calendar %s: %w", cal.Title, err)
	}
	return objects, nil
}

func (s *Store) decodeEvents(objects []caldav.CalendarObject, cal *store.Calendar) []*store.NativeEvent {
	var out []*store.NativeEvent
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		ev, err := DecodeEvent(obj.Data, cal, s.loc)
		if err != nil {
			s.logger.Debug("skipping calendar object", "path", obj.Path, "error", err)
			continue // Skip invalid events
		}
		s.remember(ev.Identifier, obj.Path)
		out = append(out, ev)
	}
	return out
}

func (s *Store) EventsMatching(ctx context.Context, pred store.EventPredicate) ([]*store.NativeEvent, error) {
	dav, cals, err := s.calendars(ctx, store.EntityEvent)
	if err != nil {
		return nil, err
	}
	if len(pred.Calendars) > 0 {
		cals = pred.Calendars
	}

	var out []*store.NativeEvent
	for _, cal := range cals {
		objects, err := s.query(ctx, dav, cal, caldav.CompFilter{Name: ical.CompEvent, Start: pred.Start, End: pred.End})
		if err != nil {
			return nil, err
		}
		for _, ev := range s.decodeEvents(objects, cal) {
			occs, err := store.Expand(ev, pred.Start, pred.End)
			if err != nil {
				return nil, fmt.Errorf("expand event %s: %w", ev.Identifier, err)
			}
			out = append(out, occs...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func uidFilter(comp, uid string) caldav.CompFilter {
	return caldav.CompFilter{
		Name:  comp,
		Props: []caldav.PropFilter{{Name: ical.PropUID, TextMatch: &caldav.TextMatch{Text: uid}}},
	}
}

// Event looks the UID up in every event calendar
func (s *Store) Event(ctx context.Context, identifier string) (*store.NativeEvent, error) {
	dav, cals, err := s.calendars(ctx, store.EntityEvent)
	if err != nil {
		return nil, err
	}
	for _, cal := range cals {
		objects, err := s.query(ctx, dav, cal, uidFilter(ical.CompEvent, identifier))
		if err != nil {
			return nil, err
		}
		// text-match is a substring match
		for _, ev := range s.decodeEvents(objects, cal) {
			if ev.Identifier == identifier {
				return ev, nil
			}
		}
	}
	return nil, nil
}

// davWriter applies event writes as PUT and DELETE requests. prev is the
// calendar the series was stored in.
type davWriter struct {
	s    *Store
	ctx  context.Context
	dav  DAV
	prev *store.Calendar
}

func (w davWriter) put(ev *store.NativeEvent) error {
	cal, err := EncodeEvent(ev, w.s.now())
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	p := w.s.objectPath(ev.Calendar, ev.Identifier)
	if _, err := w.dav.PutCalendarObject(w.ctx, p, cal); err != nil {
		return fmt.Errorf("put event: %w", err)
	}
	if w.prev != nil && w.prev.Identifier != ev.Calendar.Identifier {
		if old := w.s.objectPath(w.prev, ev.Identifier); old != p {
			if err := w.dav.RemoveAll(w.ctx, old); err != nil {
				return fmt.Errorf("remove moved event: %w", err)
			}
		}
	}
	w.s.remember(ev.Identifier, p)
	now := w.s.now()
	ev.LastModified = &now
	return nil
}

func (w davWriter) InsertEvent(ev *store.NativeEvent) error {
	return davWriter{s: w.s, ctx: w.ctx, dav: w.dav}.put(ev)
}

func (w davWriter) UpdateEvent(ev *store.NativeEvent) error { return w.put(ev) }

func (w davWriter) DeleteEvent(ev *store.NativeEvent) error {
	if err := w.dav.RemoveAll(w.ctx, w.s.objectPath(ev.Calendar, ev.Identifier)); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	w.s.forget(ev.Identifier)
	return nil
}

func (s *Store) SaveEvent(ctx context.Context, ev *store.NativeEvent, span store.Span) error {
	if ev.Calendar == nil {
		return errors.New("event has no calendar")
	}
	dav, err := s.connect()
	if err != nil {
		return err
	}
	if ev.Identifier == "" {
		ev.Identifier = s.newID()
		return davWriter{s: s, ctx: ctx, dav: dav}.InsertEvent(ev)
	}
	master, err := s.Event(ctx, ev.Identifier)
	if err != nil {
		return err
	}
	w := davWriter{s: s, ctx: ctx, dav: dav}
	if master != nil {
		w.prev = master.Calendar
	}
	return store.SaveSpan(w, master, ev, span, s.newID)
}

func (s *Store) RemoveEvent(ctx context.Context, ev *store.NativeEvent, span store.Span) error {
	dav, err := s.connect()
	if err != nil {
		return err
	}
	master, err := s.Event(ctx, ev.Identifier)
	if err != nil {
		return err
	}
	return store.RemoveSpan(davWriter{s: s, ctx: ctx, dav: dav}, master, ev, span)
}

// FetchReminders queries every requested list on its own goroutine
func (s *Store) FetchReminders(ctx context.Context, pred store.ReminderPredicate, done store.RemindersCallback) {
	go func() {
		dav, cals, err := s.calendars(ctx, store.EntityReminder)
		if err != nil {
			done(nil, err)
			return
		}
		if len(pred.Calendars) > 0 {
			cals = pred.Calendars
		}
		var out []*store.NativeReminder
		for _, cal := range cals {
			objects, err := s.query(ctx, dav, cal, caldav.CompFilter{Name: ical.CompToDo})
			if err != nil {
				done(nil, err)
				return
			}
			out = append(out, s.decodeReminders(objects, cal)...)
		}
		done(out, nil)
	}()
}

func (s *Store) decodeReminders(objects []caldav.CalendarObject, list *store.Calendar) []*store.NativeReminder {
	var out []*store.NativeReminder
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		r, err := DecodeReminder(obj.Data, list, s.loc)
		if err != nil {
			s.logger.Debug("skipping calendar object", "path", obj.Path, "error", err)
			continue
		}
		s.remember(r.Identifier, obj.Path)
		out = append(out, r)
	}
	return out
}

// SaveReminder PUTs the reminder. Every write is committed immediately.
func (s *Store) SaveReminder(ctx context.Context, r *store.NativeReminder, _ bool) error {
	if r.Calendar == nil {
		return errors.New("reminder has no calendar")
	}
	dav, err := s.connect()
	if err != nil {
		return err
	}

	now := s.now()
	s.mu.Lock()
	old, known := s.paths[r.Identifier]
	s.mu.Unlock()
	if r.Identifier == "" {
		r.Identifier = s.newID()
		r.CreationDate = &now
		known = false
	}

	cal, err := EncodeReminder(r, now)
	if err != nil {
		return fmt.Errorf("encode reminder: %w", err)
	}
	p := s.objectPath(r.Calendar, r.Identifier)
	if _, err := dav.PutCalendarObject(ctx, p, cal); err != nil {
		return fmt.Errorf("put reminder: %w", err)
	}
	if known && old != p {
		if err := dav.RemoveAll(ctx, old); err != nil {
			return fmt.Errorf("remove moved reminder: %w", err)
		}
	}
	s.remember(r.Identifier, p)
	r.LastModified = &now
	return nil
}

func (s *Store) RemoveReminder(ctx context.Context, r *store.NativeReminder, _ bool) error {
	dav, err := s.connect()
	if err != nil {
		return err
	}
	if err := dav.RemoveAll(ctx, s.objectPath(r.Calendar, r.Identifier)); err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	s.forget(r.Identifier)
	return nil
}
