// Package runtimectx implements the scoped execution context of
// spec.md §4.6: shared global state plus a per-fork lexical scope
// chain, access-mode enforcement, and timed locks with a deadlock
// heuristic. Grounded on the teacher's sync.RWMutex-guarded maps
// (internal/bus.MessageBus's subscriber map, internal/codex's
// connection registries) generalized into a per-key lock type.
package runtimectx

import (
	"sync"
	"time"

	"github.com/kairei/agent-runtime/internal/value"
	kaireierrors "github.com/kairei/agent-runtime/pkg/errors"
)

const pollInterval = 200 * time.Microsecond

// Lock is a read-write lock over a single Value with timed
// acquisition (spec.md §4.6). Open Question 1 is resolved here by
// recording last_access on successful writes only, not reads: a
// reader should not be able to extend another writer's deadlock
// window just by acquiring the read side.
type Lock struct {
	mu sync.RWMutex

	valueMu sync.Mutex // guards value/lastWrite/owner below
	value   value.Value
	lastWrite time.Time
	owner     uint64
}

// NewLock creates a Lock holding the given initial value.
func NewLock(v value.Value) *Lock {
	return &Lock{value: v, lastWrite: time.Now()}
}

// ReadWithTimeout acquires the read side within timeout, returning the
// current value. It returns kaireierrors.ErrDeadlock if the lock's
// last successful write is older than timeout (the lock appears stuck
// long enough that it is heuristically treated as deadlocked), else
// kaireierrors.ErrTimeout once the deadline passes.
func (l *Lock) ReadWithTimeout(timeout time.Duration) (value.Value, error) {
	deadline := time.Now().Add(timeout)
	for {
		if l.mu.TryRLock() {
			v := l.value
			l.mu.RUnlock()
			return v, nil
		}
		if l.staleLongerThan(timeout) {
			return value.Value{}, kaireierrors.ErrDeadlock
		}
		if time.Now().After(deadline) {
			return value.Value{}, kaireierrors.ErrTimeout
		}
		time.Sleep(pollInterval)
	}
}

// WriteWithTimeout acquires the write side within timeout and stores
// v, recording the write for the deadlock heuristic.
func (l *Lock) WriteWithTimeout(timeout time.Duration, v value.Value) error {
	deadline := time.Now().Add(timeout)
	for {
		if l.mu.TryLock() {
			l.valueMu.Lock()
			l.value = v
			l.lastWrite = time.Now()
			l.owner++
			l.valueMu.Unlock()
			l.mu.Unlock()
			return nil
		}
		if l.staleLongerThan(timeout) {
			return kaireierrors.ErrDeadlock
		}
		if time.Now().After(deadline) {
			return kaireierrors.ErrTimeout
		}
		time.Sleep(pollInterval)
	}
}

func (l *Lock) staleLongerThan(d time.Duration) bool {
	l.valueMu.Lock()
	defer l.valueMu.Unlock()
	return time.Since(l.lastWrite) > d
}

// Peek returns the current value without acquiring the lock's
// mutual-exclusion side; used by read paths that already hold an
// outer guarantee of non-concurrent access (e.g. during agent init,
// before any fork exists).
func (l *Lock) Peek() value.Value {
	l.valueMu.Lock()
	defer l.valueMu.Unlock()
	return l.value
}
