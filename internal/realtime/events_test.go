package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientUpdatesWakesOnEveryPush(t *testing.T) {
	b := newWSBackend(t)

	var wakes atomic.Int32
	cfg := testConfig(b)
	ch := NewClientUpdates(cfg, "u1", func() { wakes.Add(1) })
	defer ch.Close()

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if join := b.nextFrame(t); join.Event != JoinClientUpdates {
		t.Fatalf("join frame = %q, want %q", join.Event, JoinClientUpdates)
	}

	conn := b.nextConn(t)
	pushes := []string{
		EventClientStateUpdate,
		EventClientTableAssigned,
		EventClientDeliveryConfirmed,
		EventClientBillRequested,
	}
	for _, ev := range pushes {
		if err := conn.WriteJSON(Event{Event: ev}); err != nil {
			t.Fatalf("push %q: %v", ev, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for wakes.Load() < int32(len(pushes)) {
		select {
		case <-deadline:
			t.Fatalf("wakes = %d, want %d", wakes.Load(), len(pushes))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestUserDeliveryChannelEvents(t *testing.T) {
	b := newWSBackend(t)

	var wakes atomic.Int32
	ch := NewUserDelivery(testConfig(b), "u1", func() { wakes.Add(1) })
	defer ch.Close()

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if join := b.nextFrame(t); join.Event != JoinUserRoom {
		t.Fatalf("join frame = %q, want %q", join.Event, JoinUserRoom)
	}

	conn := b.nextConn(t)
	for _, ev := range []string{EventDeliveryStatusChanged, EventDeliveryUpdated} {
		if err := conn.WriteJSON(Event{Event: ev}); err != nil {
			t.Fatalf("push %q: %v", ev, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for wakes.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("wakes = %d, want 2", wakes.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestTableDeliveryChannelEvents(t *testing.T) {
	b := newWSBackend(t)

	var wakes atomic.Int32
	ch := NewTableDelivery(testConfig(b), "table-4", func() { wakes.Add(1) })
	defer ch.Close()

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if join := b.nextFrame(t); join.Event != JoinTableRoom {
		t.Fatalf("join frame = %q, want %q", join.Event, JoinTableRoom)
	}

	conn := b.nextConn(t)
	if err := conn.WriteJSON(Event{Event: EventOrderItemsDelivered}); err != nil {
		t.Fatalf("push: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for wakes.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("no wake for order_items_delivered")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
