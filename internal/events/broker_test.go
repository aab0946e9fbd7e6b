package events

import (
	"context"
	"testing"
	"time"

	"leaddesk/internal/models"

	"github.com/rs/zerolog"
)

func TestPublishDeliversToLeadSubscribers(t *testing.T) {
	b := NewBroker(nil, zerolog.Nop())

	sub7, cancel7 := b.Subscribe(7)
	defer cancel7()
	sub8, cancel8 := b.Subscribe(8)
	defer cancel8()

	b.Publish(context.Background(), models.Message{ID: 1, LeadID: 7, Text: "hi"})

	select {
	case m := <-sub7:
		if m.ID != 1 || m.Text != "hi" {
			t.Fatalf("unexpected message: %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber for lead 7 got nothing")
	}
	select {
	case m := <-sub8:
		t.Fatalf("lead 8 subscriber received lead 7 message: %+v", m)
	default:
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBroker(nil, zerolog.Nop())

	sub, cancel := b.Subscribe(7)
	cancel()

	b.Publish(context.Background(), models.Message{ID: 1, LeadID: 7})
	select {
	case m := <-sub:
		t.Fatalf("cancelled subscriber received %+v", m)
	default:
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBroker(nil, zerolog.Nop())

	_, cancel := b.Subscribe(7)
	defer cancel()

	// Fill well past the channel buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			b.Publish(context.Background(), models.Message{ID: int64(i), LeadID: 7})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestRunWithoutRedisBlocksUntilCancel(t *testing.T) {
	b := NewBroker(nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return on cancel")
	}
}
