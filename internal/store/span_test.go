package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	inserted []*NativeEvent
	updated  []*NativeEvent
	deleted  []string
}

func (w *recordingWriter) InsertEvent(ev *NativeEvent) error {
	w.inserted = append(w.inserted, ev)
	return nil
}

func (w *recordingWriter) UpdateEvent(ev *NativeEvent) error {
	w.updated = append(w.updated, ev)
	return nil
}

func (w *recordingWriter) DeleteEvent(ev *NativeEvent) error {
	w.deleted = append(w.deleted, ev.Identifier)
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
}

func occurrenceOf(master *NativeEvent, at time.Time) *NativeEvent {
	occ := master.Clone()
	occ.Start = at
	occ.End = at.Add(master.End.Sub(master.Start))
	occ.OccurrenceDate = at
	return occ
}

func TestSaveSpan(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("plain event is updated in place", func(t *testing.T) {
		w := &recordingWriter{}
		master := &NativeEvent{Identifier: "one", Start: start, End: start.Add(time.Hour)}
		edit := master.Clone()
		edit.Title = "changed"
		require.NoError(t, SaveSpan(w, master, edit, SpanFutureEvents, sequentialIDs()))
		require.Len(t, w.updated, 1)
		assert.Equal(t, "changed", w.updated[0].Title)
		assert.Empty(t, w.inserted)
	})

	t.Run("this event detaches", func(t *testing.T) {
		w := &recordingWriter{}
		master := dailySeries(start, nil)
		occ := occurrenceOf(master, start.AddDate(0, 0, 2))
		require.NoError(t, SaveSpan(w, master, occ, SpanThisEvent, sequentialIDs()))

		require.Len(t, w.updated, 1)
		assert.Equal(t, []time.Time{start.AddDate(0, 0, 2)}, w.updated[0].ExceptionDates)
		assert.Empty(t, master.ExceptionDates, "master is not mutated")
		require.Len(t, w.inserted, 1)
		assert.Equal(t, "new-1", w.inserted[0].Identifier)
		assert.False(t, w.inserted[0].HasRecurrenceRules())
		assert.Equal(t, "new-1", occ.Identifier)
	})

	t.Run("future events splits", func(t *testing.T) {
		w := &recordingWriter{}
		master := dailySeries(start, nil)
		occ := occurrenceOf(master, start.AddDate(0, 0, 3))
		require.NoError(t, SaveSpan(w, master, occ, SpanFutureEvents, sequentialIDs()))

		require.Len(t, w.updated, 1)
		head := w.updated[0]
		assert.Equal(t, "series", head.Identifier, "earlier occurrences keep the identifier")
		assert.True(t, head.Start.Equal(start))
		assert.Equal(t, "Standup", head.Title)
		require.NotNil(t, head.RecurrenceRules[0].End)
		assert.True(t, head.RecurrenceRules[0].End.EndDate.Before(start.AddDate(0, 0, 3)))

		require.Len(t, w.inserted, 1)
		assert.Equal(t, "new-1", w.inserted[0].Identifier)
		assert.True(t, w.inserted[0].Start.Equal(start.AddDate(0, 0, 3)))
		assert.Equal(t, "new-1", occ.Identifier)
	})

	t.Run("future events from the first occurrence rewrites in place", func(t *testing.T) {
		w := &recordingWriter{}
		master := dailySeries(start, nil)
		occ := occurrenceOf(master, start)
		occ.Title = "Retro"
		require.NoError(t, SaveSpan(w, master, occ, SpanFutureEvents, sequentialIDs()))
		assert.Empty(t, w.inserted)
		require.Len(t, w.updated, 1)
		assert.Equal(t, "series", w.updated[0].Identifier)
		assert.Equal(t, "series", occ.Identifier)
	})

	t.Run("missing master", func(t *testing.T) {
		err := SaveSpan(&recordingWriter{}, nil, &NativeEvent{Identifier: "x"}, SpanThisEvent, sequentialIDs())
		assert.Error(t, err)
	})
}

func TestRemoveSpan(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("plain event", func(t *testing.T) {
		w := &recordingWriter{}
		master := &NativeEvent{Identifier: "one", Start: start, End: start.Add(time.Hour)}
		require.NoError(t, RemoveSpan(w, master, master, SpanFutureEvents))
		assert.Equal(t, []string{"one"}, w.deleted)
	})

	t.Run("this event excludes the date", func(t *testing.T) {
		w := &recordingWriter{}
		master := dailySeries(start, nil)
		require.NoError(t, RemoveSpan(w, master, occurrenceOf(master, start.AddDate(0, 0, 1)), SpanThisEvent))
		require.Len(t, w.updated, 1)
		assert.Len(t, w.updated[0].ExceptionDates, 1)
	})

	t.Run("future events truncates", func(t *testing.T) {
		w := &recordingWriter{}
		master := dailySeries(start, &RecurrenceEnd{OccurrenceCount: 8})
		require.NoError(t, RemoveSpan(w, master, occurrenceOf(master, start.AddDate(0, 0, 5)), SpanFutureEvents))
		require.Len(t, w.updated, 1)
		assert.Equal(t, 5, w.updated[0].RecurrenceRules[0].End.OccurrenceCount)
	})

	t.Run("future events from the first occurrence deletes", func(t *testing.T) {
		w := &recordingWriter{}
		master := dailySeries(start, nil)
		require.NoError(t, RemoveSpan(w, master, occurrenceOf(master, start), SpanFutureEvents))
		assert.Equal(t, []string{"series"}, w.deleted)
	})
}
