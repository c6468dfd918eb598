package server

import (
	"context"
	"testing"
	"time"

	"github.com/warnain/backend/internal/printing"
)

func TestRealtimeDispatcherPublishesToSubscriber(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "7")
	defer cleanup()

	dispatcher.JobChanged(printing.Job{ID: 3, UserID: 7, PrinterName: "Office", Status: printing.StatusFailed, ErrorMessage: "Printer Office not found"})

	select {
	case received := <-stream:
		if received.EventType != RealtimeEventJobChanged {
			t.Fatalf("expected event type %s, got %s", RealtimeEventJobChanged, received.EventType)
		}
		if received.JobID != 3 || received.Status != "failed" || received.Message != "Printer Office not found" {
			t.Fatalf("unexpected message %+v", received)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected realtime message within deadline")
	}
}

func TestRealtimeDispatcherIsolatedByUser(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otherCtx, otherCancel := context.WithCancel(context.Background())
	defer otherCancel()

	userStream, cleanup := dispatcher.Subscribe(ctx, "2")
	defer cleanup()

	otherStream, otherCleanup := dispatcher.Subscribe(otherCtx, "3")
	defer otherCleanup()

	dispatcher.JobChanged(printing.Job{ID: 1, UserID: 3, Status: printing.StatusPending})

	select {
	case <-userStream:
		t.Fatal("did not expect realtime message for unrelated user")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case msg := <-otherStream:
		if msg.UserID != "3" {
			t.Fatalf("expected user 3, received %s", msg.UserID)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected realtime message for subscribed user")
	}
}

func TestRealtimeDispatcherDropsWhenSubscriberIsSlow(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "9")
	defer cleanup()

	for i := 0; i < dispatcher.bufferSize*2; i++ {
		dispatcher.JobChanged(printing.Job{ID: uint(i + 1), UserID: 9, Status: printing.StatusPending})
	}
	if len(stream) != dispatcher.bufferSize {
		t.Fatalf("expected buffered stream to hold %d messages, got %d", dispatcher.bufferSize, len(stream))
	}
}
