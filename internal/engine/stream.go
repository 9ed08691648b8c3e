package engine

// DefaultStreamCapacity bounds the in-memory ring buffer per match. The
// archive store keeps the full log; the ring only serves live consumers.
const DefaultStreamCapacity = 256

// EventStream is the per-match append-only event log. Entries are globally
// ordered by id within the match; the ring buffer drops the oldest entries
// once MaxEntries is exceeded but ids keep increasing.
type EventStream struct {
	Entries    []StreamEntry `json:"entries"`
	NextID     int64         `json:"nextId"`
	MaxEntries int           `json:"maxEntries"`
}

func (s EventStream) clone() EventStream {
	out := s
	out.Entries = append([]StreamEntry(nil), s.Entries...)
	return out
}

// append assigns the next contiguous id to each event and appends it,
// evicting from the front when the ring is full.
func (s *EventStream) append(events []Event) []StreamEntry {
	if len(events) == 0 {
		return nil
	}
	appended := make([]StreamEntry, 0, len(events))
	for _, evt := range events {
		entry := StreamEntry{ID: s.NextID, Event: evt}
		s.NextID++
		s.Entries = append(s.Entries, entry)
		appended = append(appended, entry)
	}
	if s.MaxEntries > 0 && len(s.Entries) > s.MaxEntries {
		overflow := len(s.Entries) - s.MaxEntries
		s.Entries = append([]StreamEntry(nil), s.Entries[overflow:]...)
	}
	return appended
}

// Snapshot returns a stable copy of the entries for concurrent consumers.
// Readers diff against their own cursor; they never observe a half-appended
// entry because the copy happens under the match runtime's serialization.
func (s EventStream) Snapshot() []StreamEntry {
	return append([]StreamEntry(nil), s.Entries...)
}

// Delta is the result of advancing an event stream cursor.
type Delta struct {
	NewEntries     []StreamEntry
	NextLastSeenID int64
	// ShouldReset tells the consumer the log was rebuilt or rolled back and
	// any derived state (animation gates, pending prompts) must be cleared.
	ShouldReset bool
}

// ComputeDelta returns the entries a consumer with the given cursor has not
// seen yet.
//
// An empty stream after the consumer has seen something means the log was
// rebuilt (new match or snapshot restore): the cursor resets to -1 and the
// consumer treats all future entries as new. A latest id below the cursor
// means the log rolled back (server restarted with a shorter log): the full
// stream is reported as new alongside the reset flag.
func ComputeDelta(entries []StreamEntry, lastSeenID int64) Delta {
	if len(entries) == 0 {
		if lastSeenID >= 0 {
			return Delta{NextLastSeenID: -1, ShouldReset: true}
		}
		return Delta{NextLastSeenID: lastSeenID}
	}

	latest := entries[len(entries)-1].ID
	if latest < lastSeenID {
		return Delta{
			NewEntries:     append([]StreamEntry(nil), entries...),
			NextLastSeenID: latest,
			ShouldReset:    true,
		}
	}

	var fresh []StreamEntry
	next := lastSeenID
	for _, entry := range entries {
		if entry.ID > lastSeenID {
			fresh = append(fresh, entry)
			if entry.ID > next {
				next = entry.ID
			}
		}
	}
	return Delta{NewEntries: fresh, NextLastSeenID: next}
}
