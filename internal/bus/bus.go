// Package bus implements the process-wide Event/ErrorEvent broadcast
// fabric of spec.md §4.4, grounded on the teacher's
// bus.MessageBus (subscriber registry under one mutex, fan-out inside
// the publish critical section) but reworked from a drop-on-full
// channel into a backpressuring one: spec.md §4.4/§5 forbid a lossy
// publish, so Publish blocks (subject to ctx) until every subscriber
// has room, rather than selecting with a default case.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/kairei/agent-runtime/internal/event"
	kaireierrors "github.com/kairei/agent-runtime/pkg/errors"
	"github.com/kairei/agent-runtime/pkg/logger"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrSendFailed is returned by Publish/PublishError/SyncPublish when an
// event could not be delivered to a subscriber (spec.md §4.4, §7
// ContextError.EventSendFailed).
var ErrSendFailed = fmt.Errorf("%w: event send failed", kaireierrors.ErrInternal)

// maxInFlight bounds concurrent per-subscriber deliveries for one
// Publish call so a single slow subscriber cannot starve the others
// (spec.md §4.4: "Backpressure is bounded ... so one slow subscriber
// cannot starve delivery to others").
const maxInFlight = 64

type subscriber struct {
	id     string
	events chan event.Event
	errs   chan event.ErrorEvent
}

// Bus is the in-process Event/ErrorEvent broadcast channel.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	seq         uint64
	capacity    int
	sem         *semaphore.Weighted
	nextID      uint64
}

// New creates a Bus whose subscriber channels are each buffered to
// capacity (spec.md §4.4/§6: "Event bus capacity (positive integer)").
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		subscribers: make(map[string]*subscriber),
		capacity:    capacity,
		sem:         semaphore.NewWeighted(maxInFlight),
	}
}

// Subscription is the pair of independent receivers returned by
// Subscribe (spec.md §4.4).
type Subscription struct {
	ID     string
	Events <-chan event.Event
	Errors <-chan event.ErrorEvent
}

// Subscribe registers a new subscriber and returns its two receivers.
// Every event/error published after this call is delivered to it.
func (b *Bus) Subscribe() Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := fmt.Sprintf("sub-%d", b.nextID)
	sub := &subscriber{
		id:     id,
		events: make(chan event.Event, b.capacity),
		errs:   make(chan event.ErrorEvent, b.capacity),
	}
	b.subscribers[id] = sub
	return Subscription{ID: id, Events: sub.events, Errors: sub.errs}
}

// Unsubscribe removes a subscriber and closes its channels. Safe to
// call more than once.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.events)
		close(sub.errs)
		delete(b.subscribers, id)
	}
}

func (b *Bus) snapshot() ([]*subscriber, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	return subs, b.seq
}

// Publish delivers e to every current subscriber's event channel,
// blocking (subject to ctx) until each has room. It never drops the
// event silently (spec.md §4.4).
func (b *Bus) Publish(ctx context.Context, e event.Event) error {
	subs, seq := b.snapshot()
	stamp := ulid.Make()
	logger.Debug("bus publish", "seq", seq, "id", stamp.String(), "event", e.String())
	return fanOut(ctx, b.sem, len(subs), func(i int) error {
		s := subs[i]
		select {
		case s.events <- e:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%w: subscriber %s: %v", ErrSendFailed, s.id, ctx.Err())
		}
	})
}

// PublishError delivers ee to every current subscriber's error
// channel, with the same blocking semantics as Publish.
func (b *Bus) PublishError(ctx context.Context, ee event.ErrorEvent) error {
	subs, seq := b.snapshot()
	stamp := ulid.Make()
	logger.Debug("bus publish error", "seq", seq, "id", stamp.String(), "error", ee.String())
	return fanOut(ctx, b.sem, len(subs), func(i int) error {
		s := subs[i]
		select {
		case s.errs <- ee:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%w: subscriber %s: %v", ErrSendFailed, s.id, ctx.Err())
		}
	})
}

// SyncPublish is the non-blocking variant for call sites that cannot
// await (spec.md §4.4): it attempts an immediate send to each
// subscriber and reports ErrSendFailed for any that had no room,
// without waiting for them to drain.
func (b *Bus) SyncPublish(e event.Event) error {
	subs, seq := b.snapshot()
	stamp := ulid.Make()
	logger.Debug("bus sync_publish", "seq", seq, "id", stamp.String(), "event", e.String())
	var failed []string
	for _, s := range subs {
		select {
		case s.events <- e:
		default:
			failed = append(failed, s.id)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: subscribers %v had no room", ErrSendFailed, failed)
	}
	return nil
}

// Seq reports the number of Publish/PublishError/SyncPublish calls
// made so far, for tests asserting fan-out ordering.
func (b *Bus) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// fanOut runs deliver(i) for i in [0,n) concurrently, bounded by sem,
// and waits for all of them (spec.md §4.4/§5: bounded concurrent
// fan-out, no cross-subscriber ordering guarantee).
func fanOut(ctx context.Context, sem *semaphore.Weighted, n int, deliver func(i int) error) error {
	if n == 0 {
		return nil
	}
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		if err := sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
		g.Go(func() error {
			defer sem.Release(1)
			return deliver(i)
		})
	}
	return g.Wait()
}
