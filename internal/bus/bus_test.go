package bus

import (
	"context"
	"testing"
	"time"

	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/event"
)

func TestSubscribeFanOutAllSubscribersSeeEveryEvent(t *testing.T) {
	b := New(4)
	const n = 3
	var subs []Subscription
	for i := 0; i < n; i++ {
		subs = append(subs, b.Subscribe())
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := b.Publish(ctx, event.NewTickEvent()); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	for _, s := range subs {
		for i := 0; i < 5; i++ {
			select {
			case e := <-s.Events:
				if e.Type.Kind != ast.EventTick {
					t.Errorf("subscriber %s got %+v, want Tick", s.ID, e.Type)
				}
			case <-time.After(time.Second):
				t.Fatalf("subscriber %s timed out waiting for event %d", s.ID, i)
			}
		}
	}
}

func TestPublishBlocksUntilContextDoneWhenSubscriberFull(t *testing.T) {
	b := New(1)
	sub := b.Subscribe()
	_ = sub

	ctx := context.Background()
	if err := b.Publish(ctx, event.NewTickEvent()); err != nil {
		t.Fatalf("first Publish() error = %v", err)
	}

	ctx2, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := b.Publish(ctx2, event.NewTickEvent())
	if err == nil {
		t.Fatal("expected Publish to fail once the subscriber channel is full and ctx expires")
	}
}

func TestSyncPublishReportsFullChannel(t *testing.T) {
	b := New(1)
	b.Subscribe()
	if err := b.SyncPublish(event.NewTickEvent()); err != nil {
		t.Fatalf("first SyncPublish() error = %v", err)
	}
	if err := b.SyncPublish(event.NewTickEvent()); err == nil {
		t.Fatal("expected SyncPublish to report the full channel")
	}
}

func TestUnsubscribeClosesChannels(t *testing.T) {
	b := New(2)
	sub := b.Subscribe()
	b.Unsubscribe(sub.ID)
	if _, ok := <-sub.Events; ok {
		t.Error("expected Events channel to be closed after Unsubscribe")
	}
}

func TestPublishErrorDeliversToErrorChannel(t *testing.T) {
	b := New(2)
	sub := b.Subscribe()
	ee := event.ErrorEvent{ErrorType: "Execution", Message: "boom", Severity: event.SeverityError}
	if err := b.PublishError(context.Background(), ee); err != nil {
		t.Fatalf("PublishError() error = %v", err)
	}
	select {
	case got := <-sub.Errors:
		if got.Message != "boom" {
			t.Errorf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error event")
	}
}
