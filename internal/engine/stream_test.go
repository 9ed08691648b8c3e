package engine

import (
	"reflect"
	"testing"
)

func entriesWithIDs(ids ...int64) []StreamEntry {
	entries := make([]StreamEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, StreamEntry{ID: id, Event: Event{Type: "E"}})
	}
	return entries
}

func TestComputeDelta(t *testing.T) {
	cases := []struct {
		name       string
		entries    []StreamEntry
		lastSeenID int64
		wantIDs    []int64
		wantNext   int64
		wantReset  bool
	}{
		{
			name:       "fresh consumer sees everything",
			entries:    entriesWithIDs(1, 2, 3),
			lastSeenID: -1,
			wantIDs:    []int64{1, 2, 3},
			wantNext:   3,
		},
		{
			name:       "cursor mid-stream",
			entries:    entriesWithIDs(1, 2, 3),
			lastSeenID: 2,
			wantIDs:    []int64{3},
			wantNext:   3,
		},
		{
			name:       "cursor at head",
			entries:    entriesWithIDs(1, 2, 3),
			lastSeenID: 3,
			wantIDs:    nil,
			wantNext:   3,
		},
		{
			name:       "empty stream with no history",
			entries:    nil,
			lastSeenID: -1,
			wantIDs:    nil,
			wantNext:   -1,
		},
		{
			name:       "empty stream after consumer saw entries",
			entries:    nil,
			lastSeenID: 5,
			wantIDs:    nil,
			wantNext:   -1,
			wantReset:  true,
		},
		{
			name:       "log rolled back below cursor",
			entries:    entriesWithIDs(1, 2),
			lastSeenID: 9,
			wantIDs:    []int64{1, 2},
			wantNext:   2,
			wantReset:  true,
		},
		{
			name:       "ring evicted the cursor position",
			entries:    entriesWithIDs(40, 41, 42),
			lastSeenID: 10,
			wantIDs:    []int64{40, 41, 42},
			wantNext:   42,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delta := ComputeDelta(tc.entries, tc.lastSeenID)

			var gotIDs []int64
			for _, entry := range delta.NewEntries {
				gotIDs = append(gotIDs, entry.ID)
			}
			if !reflect.DeepEqual(gotIDs, tc.wantIDs) {
				t.Fatalf("expected new ids %v, got %v", tc.wantIDs, gotIDs)
			}
			if delta.NextLastSeenID != tc.wantNext {
				t.Fatalf("expected next cursor %d, got %d", tc.wantNext, delta.NextLastSeenID)
			}
			if delta.ShouldReset != tc.wantReset {
				t.Fatalf("expected reset=%v, got %v", tc.wantReset, delta.ShouldReset)
			}
		})
	}
}

func TestStreamAppendAssignsContiguousIDs(t *testing.T) {
	stream := EventStream{NextID: 1, MaxEntries: 16}

	appended := stream.append([]Event{{Type: "A"}, {Type: "B"}})
	if len(appended) != 2 || appended[0].ID != 1 || appended[1].ID != 2 {
		t.Fatalf("unexpected ids: %+v", appended)
	}

	appended = stream.append([]Event{{Type: "C"}})
	if appended[0].ID != 3 {
		t.Fatalf("expected id 3, got %d", appended[0].ID)
	}
	if stream.NextID != 4 {
		t.Fatalf("expected next id 4, got %d", stream.NextID)
	}
}

// TestStreamRingEviction verifies the ring drops its oldest entries while
// ids keep increasing, so a slow consumer's cursor can fall off the ring.
func TestStreamRingEviction(t *testing.T) {
	stream := EventStream{NextID: 1, MaxEntries: 3}

	for i := 0; i < 5; i++ {
		stream.append([]Event{{Type: "E"}})
	}

	if len(stream.Entries) != 3 {
		t.Fatalf("expected 3 retained entries, got %d", len(stream.Entries))
	}
	if stream.Entries[0].ID != 3 || stream.Entries[2].ID != 5 {
		t.Fatalf("expected retained ids 3..5, got %d..%d", stream.Entries[0].ID, stream.Entries[2].ID)
	}

	// A consumer whose cursor fell off the ring still advances monotonically.
	delta := ComputeDelta(stream.Snapshot(), 1)
	if delta.ShouldReset {
		t.Fatal("eviction alone must not signal a reset")
	}
	if len(delta.NewEntries) != 3 {
		t.Fatalf("expected 3 fresh entries, got %d", len(delta.NewEntries))
	}
}

func TestStreamSnapshotIsACopy(t *testing.T) {
	stream := EventStream{NextID: 1, MaxEntries: 16}
	stream.append([]Event{{Type: "A"}})

	snapshot := stream.Snapshot()
	snapshot[0].Event.Type = "MUTATED"

	if stream.Entries[0].Event.Type != "A" {
		t.Fatal("snapshot mutation leaked into the stream")
	}
}
