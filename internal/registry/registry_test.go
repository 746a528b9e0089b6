package registry

import (
	"context"
	"testing"
	"time"

	"github.com/kairei/agent-runtime/internal/agent"
	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/bus"
	"github.com/kairei/agent-runtime/internal/provider"
	"github.com/kairei/agent-runtime/internal/request"
)

func newNoopAgent(b *bus.Bus, rm *request.Manager, name string, t ast.AgentType) *agent.Agent {
	def := &ast.MicroAgentDef{Name: name}
	providers := map[string]provider.Provider{"default": provider.NullProvider{}}
	return agent.New(def, t, b, rm, providers, time.Second, time.Second)
}

func TestRegisterAgentRejectsDuplicateID(t *testing.T) {
	b := bus.New(8)
	rm := request.NewManager(b)
	r := New(b)
	a := newNoopAgent(b, rm, "A", ast.CustomType("A"))

	if err := r.RegisterAgent(context.Background(), "a", a); err != nil {
		t.Fatalf("RegisterAgent() error = %v", err)
	}
	if err := r.RegisterAgent(context.Background(), "a", a); err == nil {
		t.Fatal("expected an error registering a duplicate id")
	}
}

func TestRunAgentThenShutdownAgentStops(t *testing.T) {
	b := bus.New(8)
	rm := request.NewManager(b)
	r := New(b)
	a := newNoopAgent(b, rm, "A", ast.CustomType("A"))

	if err := r.RegisterAgent(context.Background(), "a", a); err != nil {
		t.Fatalf("RegisterAgent() error = %v", err)
	}
	if err := r.RunAgent(context.Background(), "a"); err != nil {
		t.Fatalf("RunAgent() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && a.State() != agent.Started {
		time.Sleep(5 * time.Millisecond)
	}
	if a.State() != agent.Started {
		t.Fatalf("agent never reached Started, stuck at %v", a.State())
	}

	if err := r.ShutdownAgent("a", time.Second); err != nil {
		t.Fatalf("ShutdownAgent() error = %v", err)
	}
	if a.State() != agent.Stopped {
		t.Errorf("state = %v, want Stopped", a.State())
	}
}

func TestShutdownAgentUnknownIDFails(t *testing.T) {
	r := New(bus.New(8))
	if err := r.ShutdownAgent("missing", time.Second); err == nil {
		t.Fatal("expected an error for an unknown id")
	}
}

func TestShutdownAllStopsEveryRunningAgent(t *testing.T) {
	b := bus.New(8)
	rm := request.NewManager(b)
	r := New(b)

	names := []string{"a", "b", "c"}
	agents := make(map[string]*agent.Agent, len(names))
	for _, n := range names {
		a := newNoopAgent(b, rm, n, ast.CustomType(n))
		agents[n] = a
		if err := r.RegisterAgent(context.Background(), n, a); err != nil {
			t.Fatalf("RegisterAgent(%s) error = %v", n, err)
		}
		if err := r.RunAgent(context.Background(), n); err != nil {
			t.Fatalf("RunAgent(%s) error = %v", n, err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		allStarted := true
		for _, a := range agents {
			if a.State() != agent.Started {
				allStarted = false
			}
		}
		if allStarted {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	r.ShutdownAll(time.Second)

	for n, a := range agents {
		if a.State() != agent.Stopped {
			t.Errorf("agent %s state = %v, want Stopped", n, a.State())
		}
	}
}

func TestBroadcastShutdownStopsMatchingAgentsOnly(t *testing.T) {
	b := bus.New(8)
	rm := request.NewManager(b)
	r := New(b)

	target := newNoopAgent(b, rm, "target", ast.CustomType("target"))
	other := newNoopAgent(b, rm, "other", ast.World())

	if err := r.RegisterAgent(context.Background(), "target", target); err != nil {
		t.Fatalf("RegisterAgent() error = %v", err)
	}
	if err := r.RegisterAgent(context.Background(), "other", other); err != nil {
		t.Fatalf("RegisterAgent() error = %v", err)
	}
	if err := r.RunAgent(context.Background(), "target"); err != nil {
		t.Fatalf("RunAgent() error = %v", err)
	}
	if err := r.RunAgent(context.Background(), "other"); err != nil {
		t.Fatalf("RunAgent() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && (target.State() != agent.Started || other.State() != agent.Started) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := r.BroadcastShutdown(context.Background(), ast.CustomType("all")); err != nil {
		t.Fatalf("BroadcastShutdown() error = %v", err)
	}

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) && target.State() != agent.Stopped {
		time.Sleep(5 * time.Millisecond)
	}
	if target.State() != agent.Stopped {
		t.Fatalf("target never stopped, stuck at %v", target.State())
	}
	if other.State() != agent.Started {
		t.Errorf("other state = %v, want Started (Custom(all) must not match World)", other.State())
	}
	r.ShutdownAgent("other", time.Second)
}
