package request

import (
	"context"
	"testing"
	"time"

	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/bus"
	"github.com/kairei/agent-runtime/internal/event"
	"github.com/kairei/agent-runtime/internal/value"
)

func TestRequestCompletesOnMatchingResponse(t *testing.T) {
	b := bus.New(4)
	sub := b.Subscribe()
	m := NewManager(b)

	reqID := NewRequestID()
	e := event.NewRequestEvent(ast.RequestType{Kind: ast.RequestCustom, Name: "GetCount"}, "T", "C", reqID, nil)

	done := make(chan struct{})
	var gotErr error
	var gotEvent event.Event
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		gotEvent, gotErr = m.Request(ctx, e)
		close(done)
	}()

	// single consumer: simulates the agent's dispatch loop delivering
	// every bus event to the request manager, and a responder agent
	// answering the request once it observes it.
	go func() {
		for {
			select {
			case ev, ok := <-sub.Events:
				if !ok {
					return
				}
				if ev.IsRequestFor("C") {
					resp := event.NewResponseEvent(reqID, true, map[string]value.Value{"value": value.Int(2)})
					if err := b.Publish(context.Background(), resp); err != nil {
						t.Errorf("Publish(response) error = %v", err)
					}
					continue
				}
				m.HandleEvent(ev)
			case <-done:
				return
			}
		}
	}()

	<-done
	if gotErr != nil {
		t.Fatalf("Request() error = %v", gotErr)
	}
	if v, ok := gotEvent.Parameters["value"].AsInt(); !ok || v != 2 {
		t.Errorf("Request() payload = %+v, want Integer(2)", gotEvent.Parameters)
	}
	if m.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after completion", m.Pending())
	}
}

func TestRequestTimesOutWithoutResponse(t *testing.T) {
	b := bus.New(4)
	b.Subscribe()
	m := NewManager(b)

	reqID := NewRequestID()
	e := event.NewRequestEvent(ast.RequestType{Kind: ast.RequestCustom, Name: "GetCount"}, "T", "C", reqID, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := m.Request(ctx, e)
	if err != ErrTimeout {
		t.Fatalf("Request() error = %v, want ErrTimeout", err)
	}
	if m.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after timeout, waiter leaked", m.Pending())
	}
}

func TestCancelWaitingRequestsCompletesAllWaiters(t *testing.T) {
	b := bus.New(4)
	b.Subscribe()
	m := NewManager(b)

	reqID := NewRequestID()
	e := event.NewRequestEvent(ast.RequestType{Kind: ast.RequestCustom, Name: "GetCount"}, "T", "C", reqID, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.Request(context.Background(), e)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	m.CancelWaitingRequests("shutdown")

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected Request to fail after CancelWaitingRequests")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancelled request to complete")
	}
	if m.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after cancel", m.Pending())
	}
}
