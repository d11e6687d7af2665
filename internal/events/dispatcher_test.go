package events

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherInvokesAllHandlers(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	var calls []string
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		panic("kaboom")
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "third")
		return nil
	})
	d.Subscribe(EventTicketDeleted, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventTicketCreated, 7, Actor{UserID: 1}, nil))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(calls) != 3 || calls[0] != "first" || calls[2] != "third" {
		t.Fatalf("calls = %v", calls)
	}
	if logs.Len() != 2 {
		t.Fatalf("logged %d handler failures, want 2", logs.Len())
	}
}

func TestNewEventStamps(t *testing.T) {
	a := NewEvent(EventTicketUpdated, 1, Actor{}, nil)
	b := NewEvent(EventTicketUpdated, 1, Actor{}, nil)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("event ids not unique: %q %q", a.ID, b.ID)
	}
	if a.Timestamp.IsZero() {
		t.Fatalf("timestamp not set")
	}
}
