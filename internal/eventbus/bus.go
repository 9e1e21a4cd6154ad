// Package eventbus implements the multicast event bus. Publishers on any
// goroutine enqueue events without blocking; a single worker goroutine pops
// them and invokes every subscriber in subscription order.
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"deskhogd/internal/queue"
)

const (
	// DefaultCapacity bounds the number of undelivered events.
	DefaultCapacity = 10
	// DefaultPollInterval is how long the worker waits for an event before
	// re-checking for shutdown. Shorter reacts faster to Stop; longer wakes
	// less often on an idle bus.
	DefaultPollInterval = 100 * time.Millisecond
)

// Config controls bus sizing and logging.
type Config struct {
	Capacity     int
	PollInterval time.Duration
	Logger       zerolog.Logger
}

type subscription struct {
	id uint64
	fn func(Event)
}

// Bus is a bounded publish/subscribe hub.
type Bus struct {
	ch   *queue.Bounded[Event]
	poll time.Duration
	log  zerolog.Logger

	mu     sync.RWMutex
	subs   []subscription
	nextID uint64

	dropped atomic.Uint64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a bus. Events may be published before Start; they wait in the
// channel until the worker runs.
func New(cfg Config) *Bus {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Bus{
		ch:   queue.NewBounded[Event](cfg.Capacity),
		poll: cfg.PollInterval,
		log:  cfg.Logger.With().Str("component", "eventbus").Logger(),
	}
}

// Publish enqueues e for asynchronous delivery. It never blocks; when the
// channel is full the event is dropped, counted and false is returned.
func (b *Bus) Publish(e Event) bool {
	if b == nil || b.ch == nil {
		return false
	}
	if !b.ch.TryPush(e) {
		b.dropped.Add(1)
		droppedTotal.WithLabelValues(e.Kind.String()).Inc()
		b.log.Warn().Str("kind", e.Kind.String()).Str("subject", e.SubjectID).Msg("event channel full, dropping event")
		return false
	}
	publishedTotal.WithLabelValues(e.Kind.String()).Inc()
	return true
}

// Subscribe registers fn to receive every event delivered after this call.
// fn runs on the bus worker goroutine and must not block for long. The
// returned function removes the subscription; calling it more than once is
// harmless.
func (b *Bus) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Subscribers reports the number of registered subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped reports how many events were rejected because the channel was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Pending reports the number of events waiting for delivery.
func (b *Bus) Pending() int { return b.ch.Len() }

// Start launches the worker goroutine. Calling Start on a running bus is a
// no-op.
func (b *Bus) Start(ctx context.Context) {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.run(ctx, b.done)
	b.log.Debug().Int("capacity", b.ch.Cap()).Dur("poll_interval", b.poll).Msg("event bus started")
}

// Stop signals the worker and waits for it to exit. Events still queued are
// not delivered.
func (b *Bus) Stop() {
	b.runMu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (b *Bus) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}
		e, ok := b.ch.Pop(ctx, b.poll)
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		b.deliver(e)
	}
}

func (b *Bus) deliver(e Event) {
	b.mu.RLock()
	snapshot := make([]subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.RUnlock()

	for _, s := range snapshot {
		b.invoke(s.fn, e)
	}
}

func (b *Bus) invoke(fn func(Event), e Event) {
	defer func() {
		if r := recover(); r != nil {
			subscriberPanics.Inc()
			b.log.Error().Str("kind", e.Kind.String()).Str("panic", fmt.Sprint(r)).Msg("subscriber panicked")
		}
	}()
	fn(e)
}
