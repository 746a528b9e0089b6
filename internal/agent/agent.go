// Package agent implements the runtime agent state machine of spec.md
// §4.8: Created -> Registered -> Starting -> Started -> Stopping ->
// Stopped, driven by a dispatch loop over the event bus.
//
// Grounded on the teacher's worker-goroutine dispatch loop
// (internal/service's request handler goroutine, generalized from one
// HTTP request per invocation to one long-lived select loop per agent)
// and on the lifecycle event shape already defined in internal/event.
package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/bus"
	"github.com/kairei/agent-runtime/internal/event"
	"github.com/kairei/agent-runtime/internal/eval"
	"github.com/kairei/agent-runtime/internal/provider"
	"github.com/kairei/agent-runtime/internal/request"
	"github.com/kairei/agent-runtime/internal/runtimectx"
	"github.com/kairei/agent-runtime/internal/value"
	"github.com/kairei/agent-runtime/pkg/logger"
)

// State is one of the lifecycle states of spec.md §4.8.
type State int32

const (
	Created State = iota
	Registered
	Starting
	Started
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Registered:
		return "Registered"
	case Starting:
		return "Starting"
	case Started:
		return "Started"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Agent is one running `micro` instance: its static definition plus the
// base execution context every handler invocation forks from.
type Agent struct {
	Def  *ast.MicroAgentDef
	Type ast.AgentType

	base  *runtimectx.Context
	state atomic.Int32

	privateShutdown chan struct{}
	done            chan struct{}
}

// New creates an Agent in the Created state.
func New(def *ast.MicroAgentDef, agentType ast.AgentType, b *bus.Bus, rm *request.Manager, providers map[string]provider.Provider, requestTimeout, accessTimeout time.Duration) *Agent {
	policies := def.Policies
	base := runtimectx.New(def.Name, runtimectx.ReadWrite, requestTimeout, accessTimeout, b, rm, providers, policies)
	return &Agent{
		Def:             def,
		Type:            agentType,
		base:            base,
		privateShutdown: make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// State reports the agent's current lifecycle state.
func (a *Agent) State() State { return State(a.state.Load()) }

func (a *Agent) setState(s State) { a.state.Store(int32(s)) }

// MarkRegistered transitions Created -> Registered (spec.md §4.8).
func (a *Agent) MarkRegistered() { a.setState(Registered) }

// Run executes the dispatch loop: commits initial state, runs OnInit,
// publishes AgentStarting/AgentStarted, then processes bus events until
// ctx is cancelled, a system-shutdown broadcast matches this agent's
// AgentType, or Shutdown is called. It always finishes with
// AgentStopping/OnDestroy/AgentStopped before returning (spec.md §4.8).
func (a *Agent) Run(ctx context.Context) error {
	defer close(a.done)
	a.setState(Starting)

	sub := a.base.Bus.Subscribe()
	defer a.base.Bus.Unsubscribe(sub.ID)

	if err := a.base.Bus.Publish(ctx, event.NewLifecycleEvent("AgentStarting", map[string]value.Value{"agent": value.Str(a.Def.Name)})); err != nil {
		logger.Warn("publish AgentStarting failed", "agent", a.Def.Name, "error", err)
	}

	if err := a.commitInitialState(ctx); err != nil {
		a.emitErrorEvent(ctx, "OnInit", err)
		_ = a.shutdown(ctx)
		return err
	}
	if a.Def.Lifecycle != nil && a.Def.Lifecycle.OnInit != nil {
		initCtx := a.base.Fork(runtimectx.ReadWrite)
		if _, err := eval.EvalHandlerBlock(ctx, initCtx, *a.Def.Lifecycle.OnInit); err != nil {
			a.emitErrorEvent(ctx, "OnInit", err)
			_ = a.shutdown(ctx)
			return err
		}
	}

	a.setState(Started)
	if err := a.base.Bus.Publish(ctx, event.NewLifecycleEvent("AgentStarted", map[string]value.Value{"agent": value.Str(a.Def.Name)})); err != nil {
		logger.Warn("publish AgentStarted failed", "agent", a.Def.Name, "error", err)
	}

	a.loop(ctx, sub)
	return a.shutdown(ctx)
}

func (a *Agent) commitInitialState(ctx context.Context) error {
	if a.Def.State == nil {
		return nil
	}
	for name, v := range a.Def.State.Variables {
		val, err := eval.EvalExpression(ctx, a.base, v.InitialValue)
		if err != nil {
			return fmt.Errorf("state %q: %w", name, err)
		}
		if err := a.base.SetState(ctx, name, val); err != nil {
			return err
		}
	}
	return nil
}

func (a *Agent) loop(ctx context.Context, sub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.privateShutdown:
			return
		case ee, ok := <-sub.Errors:
			if !ok {
				return
			}
			logger.Warn("agent observed ErrorEvent", "agent", a.Def.Name, "error_type", ee.ErrorType, "message", ee.Message)
		case e, ok := <-sub.Events:
			if !ok {
				return
			}
			if kind, name, isShutdown := e.IsSystemShutdown(); isShutdown {
				if (ast.AgentType{Kind: ast.AgentTypeKind(kind), Name: name}).Matches(a.Type) {
					return
				}
				continue
			}
			a.dispatch(ctx, e)
		}
	}
}

// Shutdown signals the private-shutdown channel; safe to call once.
func (a *Agent) Shutdown() {
	select {
	case <-a.privateShutdown:
	default:
		close(a.privateShutdown)
	}
}

// Done returns a channel closed once Run has fully returned.
func (a *Agent) Done() <-chan struct{} { return a.done }

func (a *Agent) shutdown(ctx context.Context) error {
	a.setState(Stopping)
	if err := a.base.Bus.Publish(ctx, event.NewLifecycleEvent("AgentStopping", map[string]value.Value{"agent": value.Str(a.Def.Name)})); err != nil {
		logger.Warn("publish AgentStopping failed", "agent", a.Def.Name, "error", err)
	}

	var destroyErr error
	if a.Def.Lifecycle != nil && a.Def.Lifecycle.OnDestroy != nil {
		destroyCtx := a.base.Fork(runtimectx.ReadWrite)
		if _, err := eval.EvalHandlerBlock(ctx, destroyCtx, *a.Def.Lifecycle.OnDestroy); err != nil {
			destroyErr = err
			a.emitErrorEvent(ctx, "OnDestroy", err)
		}
	}

	a.base.RequestManager.CancelWaitingRequests("agent shutting down")

	a.setState(Stopped)
	if err := a.base.Bus.Publish(ctx, event.NewLifecycleEvent("AgentStopped", map[string]value.Value{"agent": value.Str(a.Def.Name)})); err != nil {
		logger.Warn("publish AgentStopped failed", "agent", a.Def.Name, "error", err)
	}
	return destroyErr
}

// dispatch classifies e (spec.md §4.8 "On each event") and runs the
// matching handlers. Response events are never handled here: they are
// left to the shared request.Manager, which has no bus subscription of
// its own; the caller feeds it events through HandleEvent.
func (a *Agent) dispatch(ctx context.Context, e event.Event) {
	switch e.Type.Kind {
	case ast.EventResponse:
		return
	case ast.EventRequest:
		if e.Type.Responder != a.Def.Name {
			return
		}
		a.dispatchAnswer(ctx, e)
	default:
		a.dispatchObserveReact(ctx, e)
	}
}

func (a *Agent) dispatchAnswer(ctx context.Context, e event.Event) {
	if a.Def.Answer == nil {
		return
	}
	for _, h := range a.Def.Answer.Handlers {
		if h.RequestType.Kind != e.Type.RequestType.Kind || h.RequestType.Name != e.Type.RequestType.Name {
			continue
		}
		handlerCtx := a.base.Fork(runtimectx.ReadOnly)
		bindParameters(handlerCtx, h.Parameters, e.Parameters)
		if err := eval.EvalAnswerHandler(ctx, handlerCtx, h.Block, e.Type.RequestID); err != nil {
			a.emitErrorEvent(ctx, "answer:"+e.Type.RequestType.String(), err)
		}
		return
	}
}

func (a *Agent) dispatchObserveReact(ctx context.Context, e event.Event) {
	if a.Def.Observe != nil {
		for _, h := range a.Def.Observe.Handlers {
			if !matchesEventType(h.EventType, e.Type) {
				continue
			}
			a.runEventHandler(ctx, h, e, "observe")
		}
	}
	if a.Def.React != nil {
		for _, h := range a.Def.React.Handlers {
			if !matchesEventType(h.EventType, e.Type) {
				continue
			}
			a.runEventHandler(ctx, h, e, "react")
		}
	}
}

func (a *Agent) runEventHandler(ctx context.Context, h ast.EventHandler, e event.Event, stage string) {
	handlerCtx := a.base.Fork(runtimectx.ReadWrite)
	bindParameters(handlerCtx, h.Parameters, e.Parameters)
	if _, err := eval.EvalHandlerBlock(ctx, handlerCtx, h.Block); err != nil {
		a.emitErrorEvent(ctx, stage+":"+h.EventType.String(), err)
	}
}

func bindParameters(ctx *runtimectx.Context, params []ast.Parameter, args map[string]value.Value) {
	for _, p := range params {
		if v, ok := args[p.Name]; ok {
			ctx.SetLocal(p.Name, v)
		}
	}
}

// emitErrorEvent publishes the ErrorEvent/Failure pair spec.md §7's
// propagation policy requires: the handler's result is discarded, the
// agent keeps running.
func (a *Agent) emitErrorEvent(ctx context.Context, location string, err error) {
	ee := event.ErrorEvent{
		ErrorType:  "RuntimeError.EvaluationFailed",
		Message:    err.Error(),
		Severity:   event.SeverityError,
		Parameters: map[string]value.Value{"location": value.Str(location)},
	}
	if perr := a.base.Bus.PublishError(ctx, ee); perr != nil {
		logger.Error("failed to publish ErrorEvent", "agent", a.Def.Name, "error", perr)
	}
	failure := event.NewCustomEvent("Failure", map[string]value.Value{
		"error_type": value.Str(location),
		"message":    value.Str(err.Error()),
	})
	if perr := a.base.Bus.Publish(ctx, failure); perr != nil {
		logger.Error("failed to publish Failure event", "agent", a.Def.Name, "error", perr)
	}
}

// matchesEventType reports whether a handler declared for want should
// fire for got (spec.md §4.8 event classification).
func matchesEventType(want, got ast.EventType) bool {
	if want.Kind != got.Kind {
		return false
	}
	switch want.Kind {
	case ast.EventCustom, ast.EventLifecycle:
		return want.Name == got.Name
	case ast.EventStateUpdated:
		return (want.AgentName == "" || want.AgentName == got.AgentName) && want.StateName == got.StateName
	case ast.EventMessage:
		return want.ContentType == got.ContentType
	default:
		return true
	}
}
