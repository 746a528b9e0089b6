package runtimectx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/bus"
	"github.com/kairei/agent-runtime/internal/event"
	"github.com/kairei/agent-runtime/internal/provider"
	"github.com/kairei/agent-runtime/internal/request"
	"github.com/kairei/agent-runtime/internal/value"
	kaireierrors "github.com/kairei/agent-runtime/pkg/errors"
)

// AccessMode governs whether State writes are permitted (spec.md §4.6).
type AccessMode int

const (
	ReadWrite AccessMode = iota
	ReadOnly
)

const sessionIDKey = "__session_id__"

// sharedState is the process-wide state map of one agent, shared by
// every fork of its contexts (spec.md §4.6 (i)).
type sharedState struct {
	mu   sync.RWMutex
	vars map[string]*Lock
}

func newSharedState() *sharedState { return &sharedState{vars: make(map[string]*Lock)} }

func (s *sharedState) lockFor(name string, create bool) *Lock {
	s.mu.RLock()
	l, ok := s.vars[name]
	s.mu.RUnlock()
	if ok || !create {
		return l
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.vars[name]; ok {
		return l
	}
	l = NewLock(value.Null())
	s.vars[name] = l
	return l
}

// Context is the per-invocation execution environment of spec.md §4.6.
type Context struct {
	state *sharedState

	scopeMu      sync.Mutex
	currentScope map[string]*Lock
	parentScopes []map[string]*Lock

	AgentName      string
	AccessMode     AccessMode
	RequestTimeout time.Duration
	AccessTimeout  time.Duration

	Bus            *bus.Bus
	RequestManager *request.Manager
	Providers      map[string]provider.Provider
	PromptGen      provider.PromptGenerator
	Policies       []ast.Policy
}

// New creates a fresh base context for an agent (spec.md §4.6).
func New(agentName string, mode AccessMode, requestTimeout, accessTimeout time.Duration, b *bus.Bus, rm *request.Manager, providers map[string]provider.Provider, policies []ast.Policy) *Context {
	return &Context{
		state:          newSharedState(),
		currentScope:   make(map[string]*Lock),
		AgentName:      agentName,
		AccessMode:     mode,
		RequestTimeout: requestTimeout,
		AccessTimeout:  accessTimeout,
		Bus:            b,
		RequestManager: rm,
		Providers:      providers,
		PromptGen:      provider.DefaultPromptGenerator,
		Policies:       policies,
	}
}

// Fork produces a derived context sharing state, bus, request manager,
// providers, and policies, with the current scope copied shallowly and
// the pre-fork current scope pushed onto the parent stack (spec.md
// §4.6 Fork).
func (c *Context) Fork(mode AccessMode) *Context {
	c.scopeMu.Lock()
	defer c.scopeMu.Unlock()

	copied := make(map[string]*Lock, len(c.currentScope))
	for k, v := range c.currentScope {
		copied[k] = v
	}
	parents := make([]map[string]*Lock, len(c.parentScopes), len(c.parentScopes)+1)
	copy(parents, c.parentScopes)
	parents = append(parents, copied)

	return &Context{
		state:          c.state,
		currentScope:   make(map[string]*Lock),
		parentScopes:   parents,
		AgentName:      c.AgentName,
		AccessMode:     mode,
		RequestTimeout: c.RequestTimeout,
		AccessTimeout:  c.AccessTimeout,
		Bus:            c.Bus,
		RequestManager: c.RequestManager,
		Providers:      c.Providers,
		PromptGen:      c.PromptGen,
		Policies:       c.Policies,
	}
}

// PushScope moves the current scope onto the parent stack and starts a
// fresh, empty current scope (spec.md §4.6 Scopes).
func (c *Context) PushScope() {
	c.scopeMu.Lock()
	defer c.scopeMu.Unlock()
	c.parentScopes = append(c.parentScopes, c.currentScope)
	c.currentScope = make(map[string]*Lock)
}

// PopScope reverses PushScope, failing with NoParentScope when there
// is nothing to pop (spec.md §4.6 Scopes).
func (c *Context) PopScope() error {
	c.scopeMu.Lock()
	defer c.scopeMu.Unlock()
	n := len(c.parentScopes)
	if n == 0 {
		return fmt.Errorf("%w: no parent scope", kaireierrors.ErrInvalidInput)
	}
	c.currentScope = c.parentScopes[n-1]
	c.parentScopes = c.parentScopes[:n-1]
	return nil
}

// GetLocal resolves a Local variable: current scope, then parent
// scopes innermost-first, then global state (spec.md §4.6 Variable
// resolution).
func (c *Context) GetLocal(ctx context.Context, name string, timeout time.Duration) (value.Value, bool, error) {
	c.scopeMu.Lock()
	if l, ok := c.currentScope[name]; ok {
		c.scopeMu.Unlock()
		v, err := l.ReadWithTimeout(timeout)
		return v, true, err
	}
	for i := len(c.parentScopes) - 1; i >= 0; i-- {
		if l, ok := c.parentScopes[i][name]; ok {
			c.scopeMu.Unlock()
			v, err := l.ReadWithTimeout(timeout)
			return v, true, err
		}
	}
	c.scopeMu.Unlock()

	return c.GetState(name, timeout)
}

// HasLocal reports whether name is bound anywhere in the scope chain
// (current scope or an enclosing parent scope), without touching
// global state. Used by assignment to decide Local vs. State target
// resolution (spec.md §4.6 set(Local)/set(State)).
func (c *Context) HasLocal(name string) bool {
	c.scopeMu.Lock()
	defer c.scopeMu.Unlock()
	if _, ok := c.currentScope[name]; ok {
		return true
	}
	for i := len(c.parentScopes) - 1; i >= 0; i-- {
		if _, ok := c.parentScopes[i][name]; ok {
			return true
		}
	}
	return false
}

// GetState resolves a State variable: global state only (spec.md §4.6
// Variable resolution).
func (c *Context) GetState(key string, timeout time.Duration) (value.Value, bool, error) {
	l := c.state.lockFor(key, false)
	if l == nil {
		return value.Value{}, false, nil
	}
	v, err := l.ReadWithTimeout(timeout)
	if err != nil {
		return value.Value{}, true, err
	}
	return v, true, nil
}

// SetLocal writes to the current scope only (spec.md §4.6 set(Local)).
// Local writes are permitted regardless of AccessMode (spec.md
// invariant 5).
func (c *Context) SetLocal(name string, v value.Value) {
	c.scopeMu.Lock()
	l, ok := c.currentScope[name]
	if !ok {
		l = NewLock(v)
		c.currentScope[name] = l
		c.scopeMu.Unlock()
		return
	}
	c.scopeMu.Unlock()
	// best-effort: local variables are never contended across
	// concurrent goroutines (one fork per handler invocation), so a
	// generous timeout here only guards against programmer error.
	_ = l.WriteWithTimeout(c.AccessTimeout, v)
}

// SetState writes to global state and synchronously publishes a
// StateUpdated event carrying the new value (spec.md §4.6
// set(State)). Fails with ReadOnlyViolation in ReadOnly mode.
func (c *Context) SetState(ctx context.Context, name string, v value.Value) error {
	if c.AccessMode == ReadOnly {
		return fmt.Errorf("%w: state %q", kaireierrors.ErrReadOnly, name)
	}
	l := c.state.lockFor(name, true)
	if err := l.WriteWithTimeout(c.AccessTimeout, v); err != nil {
		return err
	}
	evt := event.NewStateUpdatedEvent(c.AgentName, name, v)
	if err := c.Bus.Publish(ctx, evt); err != nil {
		return fmt.Errorf("%w: %v", kaireierrors.ErrInternal, err)
	}
	return nil
}

// SessionID lazily generates and stores a unique session id in global
// state; subsequent readers observe the same value for the agent's
// lifetime (spec.md §4.6 Session id).
func (c *Context) SessionID(ctx context.Context) (string, error) {
	l := c.state.lockFor(sessionIDKey, true)
	v, err := l.ReadWithTimeout(c.AccessTimeout)
	if err == nil && !v.IsNull() {
		if s, ok := v.AsString(); ok {
			return s, nil
		}
	}
	id := uuid.NewString()
	if err := l.WriteWithTimeout(c.AccessTimeout, value.Str(id)); err != nil {
		return "", err
	}
	return id, nil
}
