package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func chatEvent(userID string) Event {
	data, _ := json.Marshal(ChatMessageEvent{
		ID:       uuid.New().String(),
		SenderID: uuid.New().String(),
		Content:  "hello",
		SentAt:   time.Now().UTC(),
	})
	return Event{
		ID:        uuid.New().String(),
		Type:      EventTypeChatMessage,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus(NewEventStore(100))

	received := make(chan Event, 1)
	unsubscribe := bus.Subscribe("user-a", func(event Event) {
		received <- event
	})
	defer unsubscribe()

	event := chatEvent("user-a")
	if err := bus.Publish(event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-received:
		if got.ID != event.ID {
			t.Errorf("received event %s, want %s", got.ID, event.ID)
		}
		if got.Type != EventTypeChatMessage {
			t.Errorf("event type = %q", got.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never saw the event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus(nil)

	received := make(chan Event, 1)
	unsubscribe := bus.Subscribe("user-a", func(event Event) {
		received <- event
	})
	unsubscribe()

	if err := bus.Publish(chatEvent("user-a")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-received:
		t.Fatal("unsubscribed handler still received an event")
	case <-time.After(50 * time.Millisecond):
	}
}

// One user with several open tabs: every subscription sees the event.
func TestFanOutToAllSubscriptions(t *testing.T) {
	bus := NewEventBus(nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	delivered := 0
	for i := 0; i < 3; i++ {
		wg.Add(1)
		bus.Subscribe("user-a", func(Event) {
			mu.Lock()
			delivered++
			mu.Unlock()
			wg.Done()
		})
	}

	if err := bus.Publish(chatEvent("user-a")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	wg.Wait()

	if delivered != 3 {
		t.Errorf("delivered to %d subscriptions, want 3", delivered)
	}
}

// A private notification routed to one user must never reach another;
// the broadcast channel is an ordinary routing key, not a wildcard.
func TestRoutingIsolation(t *testing.T) {
	bus := NewEventBus(nil)

	toA := make(chan Event, 1)
	toB := make(chan Event, 1)
	toGlobal := make(chan Event, 1)
	bus.Subscribe("user-a", func(e Event) { toA <- e })
	bus.Subscribe("user-b", func(e Event) { toB <- e })
	bus.Subscribe(BroadcastUserID, func(e Event) { toGlobal <- e })

	if err := bus.Publish(chatEvent("user-a")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-toA:
	case <-time.After(time.Second):
		t.Fatal("addressee never saw the event")
	}
	select {
	case <-toB:
		t.Fatal("event leaked to another user")
	case <-toGlobal:
		t.Fatal("private event leaked to the broadcast channel")
	case <-time.After(50 * time.Millisecond):
	}

	// And the broadcast channel delivers to its own subscribers.
	if err := bus.Publish(chatEvent(BroadcastUserID)); err != nil {
		t.Fatalf("Publish broadcast: %v", err)
	}
	select {
	case <-toGlobal:
	case <-time.After(time.Second):
		t.Fatal("broadcast subscriber never saw the event")
	}
}

func TestPublishRequiresRoutingKey(t *testing.T) {
	bus := NewEventBus(nil)

	if err := bus.Publish(chatEvent("")); err == nil {
		t.Fatal("Publish without a routing key must fail")
	}
}

func TestSubscriberCount(t *testing.T) {
	bus := NewEventBus(nil)

	if got := bus.SubscriberCount("user-a"); got != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", got)
	}

	unsub1 := bus.Subscribe("user-a", func(Event) {})
	unsub2 := bus.Subscribe("user-a", func(Event) {})
	if got := bus.SubscriberCount("user-a"); got != 2 {
		t.Errorf("SubscriberCount = %d, want 2", got)
	}
	if got := bus.TotalSubscribers(); got != 2 {
		t.Errorf("TotalSubscribers = %d, want 2", got)
	}

	unsub1()
	unsub1() // double unsubscribe is a no-op
	if got := bus.SubscriberCount("user-a"); got != 1 {
		t.Errorf("SubscriberCount = %d, want 1", got)
	}

	unsub2()
	if got := bus.SubscriberCount("user-a"); got != 0 {
		t.Errorf("SubscriberCount = %d, want 0", got)
	}
}

// A reconnecting client replays what it missed from the store.
func TestReplaySinceLastEvent(t *testing.T) {
	bus := NewEventBus(NewEventStore(100))

	ids := make([]string, 5)
	for i := range ids {
		event := chatEvent("user-a")
		ids[i] = event.ID
		if err := bus.Publish(event); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	missed, err := bus.GetEventsSince("user-a", ids[1])
	if err != nil {
		t.Fatalf("GetEventsSince: %v", err)
	}
	if len(missed) != 3 {
		t.Fatalf("replayed %d events, want 3", len(missed))
	}
	for i, event := range missed {
		if event.ID != ids[i+2] {
			t.Errorf("replay[%d] = %s, want %s", i, event.ID, ids[i+2])
		}
	}
}

// The bus works without a store; replay just comes back empty.
func TestNilStore(t *testing.T) {
	bus := NewEventBus(nil)

	received := make(chan Event, 1)
	bus.Subscribe("user-a", func(e Event) { received <- e })

	if err := bus.Publish(chatEvent("user-a")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("delivery must not depend on the store")
	}

	missed, err := bus.GetEventsSince("user-a", "missing-id")
	if err != nil {
		t.Fatalf("GetEventsSince: %v", err)
	}
	if len(missed) != 0 {
		t.Errorf("storeless replay returned %d events", len(missed))
	}
}
