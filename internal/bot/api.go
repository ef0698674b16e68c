package bot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tazhate/icalbridge/internal/bridge"
	"github.com/tazhate/icalbridge/internal/domain"
	"github.com/tazhate/icalbridge/internal/service"
)

// APIResponse wraps every REST reply
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// setupAPI registers the REST routes. The API is off without credentials.
func (b *Bot) setupAPI(mux *http.ServeMux) {
	if !b.cfg.APIAuthEnabled() {
		return
	}

	mux.HandleFunc("GET /api/calendars", b.basicAuth(b.apiCalendars))
	mux.HandleFunc("POST /api/calendars", b.basicAuth(b.apiCreateCalendar))
	mux.HandleFunc("DELETE /api/calendars/{id}", b.basicAuth(b.apiDeleteCalendar))

	mux.HandleFunc("GET /api/events", b.basicAuth(b.apiEvents))
	mux.HandleFunc("POST /api/events", b.basicAuth(b.apiCreateEvent))
	mux.HandleFunc("GET /api/events/{id}", b.basicAuth(b.apiEvent))
	mux.HandleFunc("PATCH /api/events/{id}", b.basicAuth(b.apiUpdateEvent))
	mux.HandleFunc("DELETE /api/events/{id}", b.basicAuth(b.apiDeleteEvent))

	mux.HandleFunc("GET /api/lists", b.basicAuth(b.apiLists))
	mux.HandleFunc("GET /api/reminders", b.basicAuth(b.apiReminders))
	mux.HandleFunc("POST /api/reminders", b.basicAuth(b.apiCreateReminder))
	mux.HandleFunc("GET /api/reminders/{id}", b.basicAuth(b.apiReminder))
	mux.HandleFunc("PATCH /api/reminders/{id}", b.basicAuth(b.apiUpdateReminder))
	mux.HandleFunc("DELETE /api/reminders/{id}", b.basicAuth(b.apiDeleteReminder))
}

// basicAuth middleware
func (b *Bot) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != b.cfg.APIUsername || password != b.cfg.APIPassword {
			w.Header().Set("WWW-Authenticate", `Basic realm="icalbridge API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (b *Bot) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func (b *Bot) jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// fail maps manager errors onto HTTP statuses
func (b *Bot) fail(w http.ResponseWriter, err error) {
	var (
		validation *domain.ValidationError
		denied     *domain.AccessDeniedError
		calendar   *domain.CalendarNotFoundError
		event      *domain.EventNotFoundError
		reminder   *domain.ReminderNotFoundError
		timeout    *bridge.TimeoutError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &denied):
		status = http.StatusForbidden
	case errors.As(err, &calendar), errors.As(err, &event), errors.As(err, &reminder):
		status = http.StatusNotFound
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		b.logger.Error("api request failed", "error", err)
	}
	b.jsonError(w, err.Error(), status)
}

// withManager resolves the manager before running fn
func (b *Bot) withManager(w http.ResponseWriter, r *http.Request, fn func(m *service.CalendarManager) (int, interface{}, error)) {
	m, err := b.manager(r.Context())
	if err != nil {
		b.fail(w, err)
		return
	}
	status, data, err := fn(m)
	if err != nil {
		b.fail(w, err)
		return
	}
	b.jsonResponse(w, status, data)
}

// withWrite is withManager for mutations, which run one at a time
func (b *Bot) withWrite(w http.ResponseWriter, r *http.Request, fn func(m *service.CalendarManager) (int, interface{}, error)) {
	b.withManager(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		b.writeMu.Lock()
		defer b.writeMu.Unlock()
		return fn(m)
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return &domain.ValidationError{Message: "invalid JSON body: " + err.Error()}
	}
	return nil
}

// queryTime reads an optional time parameter in the manager's location
func queryTime(r *http.Request, key string, loc *time.Location) (*time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	t, err := domain.ParseTime(s, loc)
	if err != nil {
		return nil, &domain.ValidationError{Field: key, Message: err.Error()}
	}
	return &t, nil
}

func (b *Bot) apiCalendars(w http.ResponseWriter, r *http.Request) {
	b.withManager(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		cals, err := m.ListCalendars(r.Context())
		return http.StatusOK, cals, err
	})
}

func (b *Bot) apiCreateCalendar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		SourceName string `json:"source_name"`
	}
	if err := decodeBody(r, &req); err != nil {
		b.fail(w, err)
		return
	}
	b.withWrite(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		cal, err := m.CreateCalendar(r.Context(), req.Name, req.SourceName)
		return http.StatusCreated, cal, err
	})
}

func (b *Bot) apiDeleteCalendar(w http.ResponseWriter, r *http.Request) {
	b.withWrite(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		return http.StatusOK, nil, m.DeleteCalendar(r.Context(), r.PathValue("id"))
	})
}

// apiEvents lists occurrences in [from, to), today plus a week by default
func (b *Bot) apiEvents(w http.ResponseWriter, r *http.Request) {
	b.withManager(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		from, err := queryTime(r, "from", m.Location())
		if err != nil {
			return 0, nil, err
		}
		to, err := queryTime(r, "to", m.Location())
		if err != nil {
			return 0, nil, err
		}
		start := startOfDay(b.now().In(m.Location()))
		if from != nil {
			start = *from
		}
		end := start.AddDate(0, 0, defaultEventDays)
		if to != nil {
			end = *to
		}
		events, err := m.ListEvents(r.Context(), start, end, r.URL.Query().Get("calendar"))
		if events == nil {
			events = []*domain.Event{}
		}
		return http.StatusOK, events, err
	})
}

func (b *Bot) apiEvent(w http.ResponseWriter, r *http.Request) {
	b.withManager(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		id := r.PathValue("id")
		ev, err := m.FindEventByID(r.Context(), id)
		if err == nil && ev == nil {
			err = &domain.EventNotFoundError{ID: id}
		}
		return http.StatusOK, ev, err
	})
}

func (b *Bot) apiCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEventRequest
	if err := decodeBody(r, &req); err != nil {
		b.fail(w, err)
		return
	}
	b.withWrite(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		ev, err := m.CreateEvent(r.Context(), &req)
		return http.StatusCreated, ev, err
	})
}

// apiUpdateEvent changes the whole series, or one occurrence onwards when
// the occurrence parameter is given
func (b *Bot) apiUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateEventRequest
	if err := decodeBody(r, &req); err != nil {
		b.fail(w, err)
		return
	}
	b.withWrite(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		occurrence, err := queryTime(r, "occurrence", m.Location())
		if err != nil {
			return 0, nil, err
		}
		id := r.PathValue("id")
		var ev *domain.Event
		if occurrence != nil {
			ev, err = m.UpdateEventOccurrence(r.Context(), id, *occurrence, &req)
		} else {
			ev, err = m.UpdateEvent(r.Context(), id, &req)
		}
		return http.StatusOK, ev, err
	})
}

func (b *Bot) apiDeleteEvent(w http.ResponseWriter, r *http.Request) {
	b.withWrite(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		occurrence, err := queryTime(r, "occurrence", m.Location())
		if err != nil {
			return 0, nil, err
		}
		id := r.PathValue("id")
		if occurrence != nil {
			return http.StatusOK, nil, m.DeleteEventOccurrence(r.Context(), id, *occurrence)
		}
		return http.StatusOK, nil, m.DeleteEvent(r.Context(), id)
	})
}

func (b *Bot) apiLists(w http.ResponseWriter, r *http.Request) {
	b.withManager(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		lists, err := m.ListReminderLists(r.Context())
		if lists == nil {
			lists = []string{}
		}
		return http.StatusOK, lists, err
	})
}

// apiReminders takes optional list and completed parameters
func (b *Bot) apiReminders(w http.ResponseWriter, r *http.Request) {
	var completed *bool
	if s := r.URL.Query().Get("completed"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			b.fail(w, &domain.ValidationError{Field: "completed", Message: "must be true or false"})
			return
		}
		completed = &v
	}
	b.withManager(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		reminders, err := m.ListReminders(r.Context(), r.URL.Query().Get("list"), completed)
		if reminders == nil {
			reminders = []*domain.Reminder{}
		}
		return http.StatusOK, reminders, err
	})
}

func (b *Bot) apiReminder(w http.ResponseWriter, r *http.Request) {
	b.withManager(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		id := r.PathValue("id")
		rem, err := m.FindReminderByID(r.Context(), id)
		if err == nil && rem == nil {
			err = &domain.ReminderNotFoundError{ID: id}
		}
		return http.StatusOK, rem, err
	})
}

func (b *Bot) apiCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateReminderRequest
	if err := decodeBody(r, &req); err != nil {
		b.fail(w, err)
		return
	}
	b.withWrite(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		rem, err := m.CreateReminder(r.Context(), &req)
		return http.StatusCreated, rem, err
	})
}

func (b *Bot) apiUpdateReminder(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateReminderRequest
	if err := decodeBody(r, &req); err != nil {
		b.fail(w, err)
		return
	}
	b.withWrite(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		rem, err := m.UpdateReminder(r.Context(), r.PathValue("id"), &req)
		return http.StatusOK, rem, err
	})
}

func (b *Bot) apiDeleteReminder(w http.ResponseWriter, r *http.Request) {
	b.withWrite(w, r, func(m *service.CalendarManager) (int, interface{}, error) {
		return http.StatusOK, nil, m.DeleteReminder(r.Context(), r.PathValue("id"))
	})
}
