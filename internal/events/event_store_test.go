package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"pgregory.net/rapid"
)

func storedEvent(userID string) Event {
	data, _ := json.Marshal(ChatMessageEvent{Content: "stored"})
	return Event{
		ID:        uuid.New().String(),
		Type:      EventTypeChatMessage,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Replaying from any stored event returns exactly the later events for
// that user, in publication order.
func TestReplayFromAnyPoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bufferSize := rapid.IntRange(10, 100).Draw(t, "bufferSize")
		count := rapid.IntRange(1, bufferSize-1).Draw(t, "count")
		userID := uuid.New().String()

		store := NewEventStore(bufferSize)
		ids := make([]string, count)
		for i := range ids {
			event := storedEvent(userID)
			ids[i] = event.ID
			if err := store.Store(event); err != nil {
				t.Fatalf("Store: %v", err)
			}
		}

		from := rapid.IntRange(0, count-1).Draw(t, "from")
		replayed, err := store.GetSince(userID, ids[from], 0)
		if err != nil {
			t.Fatalf("GetSince: %v", err)
		}

		if len(replayed) != count-from-1 {
			t.Fatalf("replayed %d events, want %d", len(replayed), count-from-1)
		}
		for i, event := range replayed {
			if event.ID != ids[from+1+i] {
				t.Fatalf("replay[%d] = %s, want %s", i, event.ID, ids[from+1+i])
			}
			if event.UserID != userID {
				t.Fatalf("replay[%d] belongs to %s", i, event.UserID)
			}
		}
	})
}

// Replay filters by user even when the buffer interleaves several
// users' events.
func TestReplayFiltersByUser(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		perUser := rapid.IntRange(3, 10).Draw(t, "perUser")
		userA := uuid.New().String()
		userB := uuid.New().String()

		store := NewEventStore(perUser * 4)
		aIDs := make([]string, 0, perUser)
		for i := 0; i < perUser; i++ {
			a := storedEvent(userA)
			aIDs = append(aIDs, a.ID)
			if err := store.Store(a); err != nil {
				t.Fatalf("Store: %v", err)
			}
			if err := store.Store(storedEvent(userB)); err != nil {
				t.Fatalf("Store: %v", err)
			}
		}

		replayed, err := store.GetSince(userA, aIDs[0], 0)
		if err != nil {
			t.Fatalf("GetSince: %v", err)
		}
		if len(replayed) != perUser-1 {
			t.Fatalf("replayed %d events, want %d", len(replayed), perUser-1)
		}
		for _, event := range replayed {
			if event.UserID != userA {
				t.Fatalf("replay leaked an event for %s", event.UserID)
			}
		}
	})
}

// The buffer is bounded: overflow drops the oldest events and keeps the
// newest bufferSize of them.
func TestBufferOverflowDropsOldest(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bufferSize := rapid.IntRange(5, 20).Draw(t, "bufferSize")
		overflow := rapid.IntRange(1, 10).Draw(t, "overflow")
		userID := uuid.New().String()

		store := NewEventStore(bufferSize)
		total := bufferSize + overflow
		ids := make([]string, total)
		for i := range ids {
			event := storedEvent(userID)
			ids[i] = event.ID
			if err := store.Store(event); err != nil {
				t.Fatalf("Store: %v", err)
			}
		}

		if store.Len() != bufferSize {
			t.Fatalf("Len = %d, want bounded at %d", store.Len(), bufferSize)
		}

		kept, err := store.GetSince(userID, "", bufferSize)
		if err != nil {
			t.Fatalf("GetSince: %v", err)
		}
		if len(kept) != bufferSize {
			t.Fatalf("kept %d events, want %d", len(kept), bufferSize)
		}
		if kept[len(kept)-1].ID != ids[total-1] {
			t.Fatalf("newest event missing after overflow")
		}
		if kept[0].ID != ids[overflow] {
			t.Fatalf("oldest surviving event = %s, want %s", kept[0].ID, ids[overflow])
		}
	})
}

func TestCleanupDropsOldEvents(t *testing.T) {
	store := NewEventStore(100)

	old := storedEvent("user-a")
	old.Timestamp = time.Now().Add(-2 * time.Hour)
	fresh := storedEvent("user-a")

	if err := store.Store(old); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := store.Store(fresh); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if err := store.Cleanup(time.Hour); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("Len = %d after cleanup, want 1", store.Len())
	}
	kept, _ := store.GetSince("user-a", "", 10)
	if len(kept) != 1 || kept[0].ID != fresh.ID {
		t.Error("cleanup removed the wrong event")
	}
}

// An empty last-event ID means "give me the tail": the most recent
// events up to the limit.
func TestGetSinceEmptyID(t *testing.T) {
	store := NewEventStore(100)
	ids := make([]string, 5)
	for i := range ids {
		event := storedEvent("user-a")
		ids[i] = event.ID
		if err := store.Store(event); err != nil {
			t.Fatalf("Store: %v", err)
		}
	}

	all, err := store.GetSince("user-a", "", 10)
	if err != nil {
		t.Fatalf("GetSince: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d events, want 5", len(all))
	}

	tail, err := store.GetSince("user-a", "", 2)
	if err != nil {
		t.Fatalf("GetSince: %v", err)
	}
	if len(tail) != 2 || tail[0].ID != ids[3] || tail[1].ID != ids[4] {
		t.Errorf("tail = %v, want the last two events", tail)
	}
}

// An unknown last-event ID means the client fell off the buffer: the
// replay comes back empty rather than guessing.
func TestGetSinceUnknownID(t *testing.T) {
	store := NewEventStore(100)
	for i := 0; i < 5; i++ {
		if err := store.Store(storedEvent("user-a")); err != nil {
			t.Fatalf("Store: %v", err)
		}
	}

	replayed, err := store.GetSince("user-a", "fell-off-the-buffer", 10)
	if err != nil {
		t.Fatalf("GetSince: %v", err)
	}
	if len(replayed) != 0 {
		t.Errorf("unknown ID replayed %d events, want 0", len(replayed))
	}
}

func TestLenForUserAndClear(t *testing.T) {
	store := NewEventStore(100)
	for i := 0; i < 3; i++ {
		if err := store.Store(storedEvent("user-a")); err != nil {
			t.Fatalf("Store: %v", err)
		}
	}
	if err := store.Store(storedEvent("user-b")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if got := store.LenForUser("user-a"); got != 3 {
		t.Errorf("LenForUser(user-a) = %d, want 3", got)
	}
	if got := store.LenForUser("user-b"); got != 1 {
		t.Errorf("LenForUser(user-b) = %d, want 1", got)
	}

	store.Clear()
	if store.Len() != 0 || store.LenForUser("user-a") != 0 {
		t.Error("Clear left events behind")
	}
}
