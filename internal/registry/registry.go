// Package registry implements the concurrent agent registry of spec.md
// §4.9: register/run/shutdown/kill/shutdown_all/unregister over a
// `id -> Agent` map, plus the parallel `id -> task handle` bookkeeping
// needed to abort a running dispatch loop.
//
// Grounded on the teacher's connection-pool-style registry
// (internal/service's concurrent client map, one mutex guarding
// inserts/removals, a cancel func stored alongside each entry).
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/kairei/agent-runtime/internal/agent"
	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/bus"
	"github.com/kairei/agent-runtime/internal/event"
	"github.com/kairei/agent-runtime/internal/value"
	kaireierrors "github.com/kairei/agent-runtime/pkg/errors"
	"github.com/kairei/agent-runtime/pkg/logger"
)

// ErrShutdownTimeout is returned by ShutdownAgent when the agent did not
// finish within the given deadline (spec.md §7 AgentError.ShutdownTimeout).
var ErrShutdownTimeout = fmt.Errorf("%w: shutdown timed out", kaireierrors.ErrTimeout)

type entry struct {
	agent  *agent.Agent
	cancel context.CancelFunc
}

// Registry is the concurrent map of running agents (spec.md §4.9).
type Registry struct {
	bus *bus.Bus

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Registry publishing lifecycle inventory events on b.
func New(b *bus.Bus) *Registry {
	return &Registry{
		bus:     b,
		entries: make(map[string]*entry),
	}
}

// RegisterAgent inserts a, rejecting a duplicate id (spec.md §4.9
// register_agent).
func (r *Registry) RegisterAgent(ctx context.Context, id string, a *agent.Agent) error {
	r.mu.Lock()
	if _, exists := r.entries[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: agent %q already exists", kaireierrors.ErrInvalidInput, id)
	}
	r.entries[id] = &entry{agent: a}
	r.mu.Unlock()

	a.MarkRegistered()
	return r.bus.Publish(ctx, event.NewLifecycleEvent("AgentAdded", map[string]value.Value{"id": value.Str(id)}))
}

// RunAgent spawns id's dispatch loop. If a prior task is already running
// for id, it is aborted first (spec.md §4.9 run_agent).
func (r *Registry) RunAgent(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: agent %q not found", kaireierrors.ErrNotFound, id)
	}
	if e.cancel != nil {
		e.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	r.mu.Unlock()

	// Run itself publishes AgentStarting/AgentStarted once its init phase
	// commits (spec.md §4.8); the registry only owns spawning the task.
	go func() {
		if err := e.agent.Run(runCtx); err != nil {
			logger.Error("agent run failed", "agent", id, "error", err)
		}
	}()
	return nil
}

// ShutdownAgent signals id's private shutdown and waits up to timeout
// for its dispatch loop to exit (spec.md §4.9 shutdown_agent).
func (r *Registry) ShutdownAgent(id string, timeout time.Duration) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: agent %q not found", kaireierrors.ErrNotFound, id)
	}

	e.agent.Shutdown()
	select {
	case <-e.agent.Done():
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// KillAgent forcibly aborts id's task and removes it; no event is
// published (spec.md §4.9 kill_agent: "forcible").
func (r *Registry) KillAgent(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: agent %q not found", kaireierrors.ErrNotFound, id)
	}
	if e.cancel != nil {
		e.cancel()
	}
	delete(r.entries, id)
	return nil
}

// UnregisterAgent shuts id down if it is running, then removes it and
// publishes AgentRemoved (spec.md §4.9 unregister_agent).
func (r *Registry) UnregisterAgent(ctx context.Context, id string, timeout time.Duration) error {
	if err := r.ShutdownAgent(id, timeout); err != nil && err != ErrShutdownTimeout {
		return err
	}
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
	return r.bus.Publish(ctx, event.NewLifecycleEvent("AgentRemoved", map[string]value.Value{"id": value.Str(id)}))
}

// shutdownTiers is ShutdownAll's best-effort ordering: every Custom
// type (Custom("all")), then User -> ScaleManager -> Monitor -> World.
var shutdownTiers = []ast.AgentType{
	ast.CustomType("all"),
	ast.User(),
	ast.ScaleManager(),
	ast.Monitor(),
	ast.World(),
}

// ShutdownAll concurrently shuts down every running agent in
// best-effort tier order, killing any that exceed timeout (spec.md §4.9
// shutdown_all).
func (r *Registry) ShutdownAll(timeout time.Duration) {
	for _, tier := range shutdownTiers {
		ids := r.idsOfType(tier)
		if len(ids) == 0 {
			continue
		}
		var g errgroup.Group
		for _, id := range ids {
			id := id
			g.Go(func() error {
				if err := r.ShutdownAgent(id, timeout); err == ErrShutdownTimeout {
					logger.Warn("agent exceeded shutdown timeout, killing", "agent", id)
					return r.KillAgent(id)
				}
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (r *Registry) idsOfType(t ast.AgentType) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := lo.Keys(r.entries)
	return lo.Filter(ids, func(id string, _ int) bool {
		return t.Matches(r.entries[id].agent.Type)
	})
}

// BroadcastShutdown announces a system-wide shutdown for agentType to
// every subscribed agent's dispatch loop, over the shared event bus so
// every subscriber — not just one — observes it (spec.md §4.8
// "broadcast system-shutdown signal").
func (r *Registry) BroadcastShutdown(ctx context.Context, agentType ast.AgentType) error {
	return r.bus.Publish(ctx, event.NewSystemShutdownEvent(int(agentType.Kind), agentType.Name))
}

// Len reports how many agents are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
