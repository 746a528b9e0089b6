// kaireictl is the single demo entry point wiring the whole KAIREI
// runtime end to end: parser -> type checker -> agent -> registry,
// driven against the event bus and request manager (spec.md §8
// scenarios S1-S4 and S6). It is not a service; it runs a fixed demo sequence
// and exits.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kairei/agent-runtime/internal/agent"
	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/bus"
	"github.com/kairei/agent-runtime/internal/config"
	"github.com/kairei/agent-runtime/internal/event"
	"github.com/kairei/agent-runtime/internal/grammar"
	"github.com/kairei/agent-runtime/internal/provider"
	"github.com/kairei/agent-runtime/internal/registry"
	"github.com/kairei/agent-runtime/internal/request"
	"github.com/kairei/agent-runtime/internal/token"
	"github.com/kairei/agent-runtime/internal/typecheck"
	"github.com/kairei/agent-runtime/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Log.Env)

	b := bus.New(cfg.Bus.Capacity)
	rm := request.NewManager(b)
	go pumpResponses(b, rm)

	ctx := context.Background()
	providers := map[string]provider.Provider{"default": provider.NullProvider{}}

	reg := registry.New(b)

	runCounterScenario(ctx, reg, b, rm, providers, cfg)
	runTimeoutScenario(ctx, reg, rm, providers)
	runShutdownOrderScenario(ctx, reg, providers)
	runTypeCheckScenario()
}

// pumpResponses feeds every bus event to rm.HandleEvent, completing
// whichever Request waiter it answers (spec.md §4.5's correlation layer
// has no subscription of its own; something must drive it).
func pumpResponses(b *bus.Bus, rm *request.Manager) {
	sub := b.Subscribe()
	for e := range sub.Events {
		rm.HandleEvent(e)
	}
}

const counterSrc = `micro Counter {
	state { count: Int = 0 }
	observe {
		on Tick { count = count + 1 }
	}
	answer {
		on request GetCount() -> Result<Int,Error> { return Ok(count) }
	}
}`

// runCounterScenario covers S1 (Tick increments state) and S2 (Answer
// handlers are read-only and answer a Request by id).
func runCounterScenario(ctx context.Context, reg *registry.Registry, b *bus.Bus, rm *request.Manager, providers map[string]provider.Provider, cfg *config.AgentConfig) {
	root, err := grammar.ParseRoot(token.Lex(counterSrc))
	if err != nil {
		logger.Fatal("parse Counter", "error", err)
	}
	if err := typecheck.CheckRoot(root, nil); err != nil {
		logger.Fatal("typecheck Counter", "error", err)
	}

	def := root.Agents[0]
	a := agent.New(&def, ast.CustomType("Counter"), b, rm, providers, cfg.Context.RequestTimeout(), cfg.Context.AccessTimeout())

	if err := reg.RegisterAgent(ctx, "counter", a); err != nil {
		logger.Fatal("register Counter", "error", err)
	}
	if err := reg.RunAgent(ctx, "counter"); err != nil {
		logger.Fatal("run Counter", "error", err)
	}
	waitUntilStarted(a)

	for i := 0; i < 2; i++ {
		if err := b.Publish(ctx, event.NewTickEvent()); err != nil {
			logger.Error("publish Tick", "error", err)
		}
	}
	time.Sleep(50 * time.Millisecond)

	reqCtx, cancel := context.WithTimeout(ctx, cfg.Context.RequestTimeout())
	defer cancel()
	reqEvent := event.NewRequestEvent(ast.RequestType{Kind: ast.RequestCustom, Name: "GetCount"}, "kaireictl", "Counter", request.NewRequestID(), nil)
	resp, err := rm.Request(reqCtx, reqEvent)
	if err != nil {
		logger.Error("GetCount request", "error", err)
	} else if count, ok := resp.Parameters["value"].AsInt(); ok {
		fmt.Printf("S1/S2: Counter.GetCount() after two Ticks = %d\n", count)
	}

	if err := reg.ShutdownAgent("counter", 5*time.Second); err != nil {
		logger.Error("shutdown Counter", "error", err)
	}
}

// runTimeoutScenario covers S3: a responder that never answers must
// time out within request_timeout, leaving no waiter behind.
func runTimeoutScenario(ctx context.Context, reg *registry.Registry, rm *request.Manager, providers map[string]provider.Provider) {
	def := ast.MicroAgentDef{Name: "Silent"}
	b := bus.New(8)
	silentRM := request.NewManager(b)
	go pumpResponses(b, silentRM)

	a := agent.New(&def, ast.CustomType("Silent"), b, silentRM, providers, 100*time.Millisecond, time.Second)
	if err := reg.RegisterAgent(ctx, "silent", a); err != nil {
		logger.Error("register Silent", "error", err)
		return
	}
	if err := reg.RunAgent(ctx, "silent"); err != nil {
		logger.Error("run Silent", "error", err)
		return
	}
	waitUntilStarted(a)

	reqCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	reqEvent := event.NewRequestEvent(ast.RequestType{Kind: ast.RequestQuery, Name: "Never"}, "kaireictl", "Silent", request.NewRequestID(), nil)
	start := time.Now()
	_, err := silentRM.Request(reqCtx, reqEvent)
	elapsed := time.Since(start)
	fmt.Printf("S3: request to Silent.Never timed out after %s (err=%v), pending=%d\n", elapsed, err, silentRM.Pending())

	reg.ShutdownAgent("silent", time.Second)
}

// runShutdownOrderScenario covers S4: shutdown_all stops each agent
// tier in best-effort order User->ScaleManager->Monitor->World.
func runShutdownOrderScenario(ctx context.Context, reg *registry.Registry, providers map[string]provider.Provider) {
	b := bus.New(8)
	rm := request.NewManager(b)
	go pumpResponses(b, rm)

	tiers := []struct {
		id string
		t  ast.AgentType
	}{
		{"user", ast.User()},
		{"scale-manager", ast.ScaleManager()},
		{"monitor", ast.Monitor()},
		{"world", ast.World()},
	}
	for _, tier := range tiers {
		def := ast.MicroAgentDef{Name: tier.id}
		a := agent.New(&def, tier.t, b, rm, providers, time.Second, time.Second)
		if err := reg.RegisterAgent(ctx, tier.id, a); err != nil {
			logger.Error("register", "id", tier.id, "error", err)
			continue
		}
		if err := reg.RunAgent(ctx, tier.id); err != nil {
			logger.Error("run", "id", tier.id, "error", err)
		}
	}
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	reg.ShutdownAll(5 * time.Second)
	fmt.Printf("S4: shutdown_all completed in %s\n", time.Since(start))
}

// runTypeCheckScenario covers S6: a handler whose body returns a value
// of the wrong type must fail type checking with TypeMismatch, never
// reaching the registry.
func runTypeCheckScenario() {
	const src = `micro Bad {
		answer {
			on request GetCount() -> Result<Int,Error> { return Ok("x") }
		}
	}`
	root, err := grammar.ParseRoot(token.Lex(src))
	if err != nil {
		logger.Fatal("parse Bad", "error", err)
	}
	err = typecheck.CheckRoot(root, nil)
	te, ok := typecheck.AsError(err)
	if !ok {
		logger.Fatal("expected Bad to fail type checking", "error", err)
	}
	fmt.Printf("S6: Bad.GetCount rejected: %s (expected=%s found=%s)\n", te.Kind, te.Expected, te.Found)
}

func waitUntilStarted(a *agent.Agent) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if a.State() == agent.Started {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}
