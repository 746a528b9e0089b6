// Package request implements the request/response correlation layer
// of spec.md §4.5: a map from request id to a one-shot waiter,
// completed by the matching Response event or by timeout/cancellation.
// Grounded on the teacher's store.bus_pending.go (pending-request
// bookkeeping keyed by id, completed exactly once) generalized from a
// DB-backed table to an in-memory map guarded by a mutex.
package request

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/bus"
	"github.com/kairei/agent-runtime/internal/event"
	kaireierrors "github.com/kairei/agent-runtime/pkg/errors"
)

// Error kinds for the request manager (spec.md §7 ContextError.Request(...)).
var (
	ErrTimeout          = fmt.Errorf("%w: request timed out", kaireierrors.ErrTimeout)
	ErrCancelled        = fmt.Errorf("%w: request cancelled", kaireierrors.ErrInternal)
	ErrResponseMismatch = fmt.Errorf("%w: response mismatch", kaireierrors.ErrInternal)
)

type waiter struct {
	done chan result
}

type result struct {
	event event.Event
	err   error
}

// Manager correlates request ids to waiters (spec.md §4.5). One
// Manager is shared by all forks of a context's base agent.
type Manager struct {
	bus *bus.Bus

	mu      sync.Mutex
	waiters map[string]*waiter
}

// NewManager creates a Manager that publishes requests on b.
func NewManager(b *bus.Bus) *Manager {
	return &Manager{bus: b, waiters: make(map[string]*waiter)}
}

// NewRequestID returns a fresh request id (spec.md §4.7: "request_id=new_uuid").
func NewRequestID() string { return uuid.NewString() }

// Request publishes e (expected to carry a Request event type with a
// request id already set) and awaits the matching Response event until
// ctx is done. Fails with ErrTimeout if ctx expires first.
func (m *Manager) Request(ctx context.Context, e event.Event) (event.Event, error) {
	requestID := e.Type.RequestID
	if requestID == "" {
		return event.Event{}, fmt.Errorf("%w: request event has no request id", kaireierrors.ErrInvalidInput)
	}

	w := &waiter{done: make(chan result, 1)}
	m.mu.Lock()
	m.waiters[requestID] = w
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.waiters, requestID)
		m.mu.Unlock()
	}()

	if err := m.bus.Publish(ctx, e); err != nil {
		return event.Event{}, err
	}

	select {
	case r := <-w.done:
		if r.err != nil {
			return event.Event{}, r.err
		}
		if !r.event.IsResponseTo(requestID) {
			return event.Event{}, ErrResponseMismatch
		}
		return r.event, nil
	case <-ctx.Done():
		return event.Event{}, ErrTimeout
	}
}

// HandleEvent is invoked for each bus event; if it is a Response
// carrying a known request id, the matching waiter is completed and
// removed. Any other event is ignored.
func (m *Manager) HandleEvent(e event.Event) {
	if e.Type.Kind != ast.EventResponse {
		return
	}
	m.mu.Lock()
	w, ok := m.waiters[e.Type.RequestID]
	if ok {
		delete(m.waiters, e.Type.RequestID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	select {
	case w.done <- result{event: e}:
	default:
	}
}

// CancelWaitingRequests completes every outstanding waiter with
// ErrCancelled (wrapping reason) and clears the map (spec.md §4.5).
func (m *Manager) CancelWaitingRequests(reason string) {
	m.mu.Lock()
	waiters := m.waiters
	m.waiters = make(map[string]*waiter)
	m.mu.Unlock()

	err := fmt.Errorf("%w: %s", ErrCancelled, reason)
	for _, w := range waiters {
		select {
		case w.done <- result{err: err}:
		default:
		}
	}
}

// Pending reports the number of outstanding waiters, for tests
// asserting the map never leaks (spec.md §4.5 invariant).
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}
