package service

import (
	"sync"
	"time"

	"github.com/tazhate/icalbridge/internal/domain"
	"github.com/tazhate/icalbridge/internal/metrics"
	"github.com/tazhate/icalbridge/internal/store"
)

type handleEntry struct {
	event    *store.NativeEvent
	reminder *store.NativeReminder
	issued   time.Time
}

// handleTable maps the opaque handles carried by decoded values back to the
// native objects they came from. The pruner runs on another goroutine.
type handleTable struct {
	mu      sync.Mutex
	next    domain.Handle
	entries map[domain.Handle]handleEntry
}

func newHandleTable() *handleTable {
	return &handleTable{entries: make(map[domain.Handle]handleEntry)}
}

func (t *handleTable) put(e handleEntry) domain.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.entries[t.next] = e
	metrics.SetHandles(len(t.entries))
	return t.next
}

func (t *handleTable) putEvent(ev *store.NativeEvent, now time.Time) domain.Handle {
	return t.put(handleEntry{event: ev, issued: now})
}

func (t *handleTable) putReminder(r *store.NativeReminder, now time.Time) domain.Handle {
	return t.put(handleEntry{reminder: r, issued: now})
}

func (t *handleTable) event(h domain.Handle) (*store.NativeEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok || e.event == nil {
		return nil, false
	}
	return e.event, true
}

func (t *handleTable) reminder(h domain.Handle) (*store.NativeReminder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok || e.reminder == nil {
		return nil, false
	}
	return e.reminder, true
}

// prune drops entries issued before cutoff
func (t *handleTable) prune(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for h, e := range t.entries {
		if e.issued.Before(cutoff) {
			delete(t.entries, h)
			n++
		}
	}
	return n
}

func (t *handleTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
