// Package uidispatch marshals closures onto the display goroutine. Any
// goroutine may Dispatch; only the goroutine that owns the rendering surface
// calls Drain.
package uidispatch

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"deskhogd/internal/queue"
)

// DefaultCapacity bounds closures waiting for the next frame.
const DefaultCapacity = 32

// Priority selects where a closure is placed.
type Priority int

const (
	// Normal appends behind already queued work.
	Normal Priority = iota
	// Front runs ahead of everything already queued.
	Front
)

func (p Priority) String() string {
	if p == Front {
		return "front"
	}
	return "normal"
}

var (
	dispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskhog",
			Subsystem: "ui",
			Name:      "dispatched_total",
			Help:      "Closures queued for the display goroutine by priority.",
		},
		[]string{"priority"},
	)
	uiDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deskhog",
			Subsystem: "ui",
			Name:      "dropped_total",
			Help:      "Closures dropped because the UI queue was full.",
		},
	)
	uiPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deskhog",
			Subsystem: "ui",
			Name:      "panics_total",
			Help:      "Closures that panicked while draining.",
		},
	)
)

func init() {
	prometheus.MustRegister(dispatchedTotal, uiDroppedTotal, uiPanicsTotal)
}

type Config struct {
	Capacity int
	Logger   zerolog.Logger
}

// Queue holds closures until the display goroutine drains them.
type Queue struct {
	q       *queue.Bounded[func()]
	log     zerolog.Logger
	dropped atomic.Uint64
	panics  atomic.Uint64
}

func New(cfg Config) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	return &Queue{
		q:   queue.NewBounded[func()](cfg.Capacity),
		log: cfg.Logger.With().Str("component", "uidispatch").Logger(),
	}
}

// Dispatch queues fn for execution on the display goroutine. It never blocks.
// It returns false when fn is nil, the queue is uninitialised, or the queue is
// full; in the last case the closure is dropped and counted.
func (d *Queue) Dispatch(fn func(), p Priority) bool {
	if d == nil || d.q == nil || fn == nil {
		return false
	}
	var ok bool
	if p == Front {
		ok = d.q.TryPushFront(fn)
	} else {
		ok = d.q.TryPush(fn)
	}
	if !ok {
		d.dropped.Add(1)
		uiDroppedTotal.Inc()
		d.log.Warn().Str("priority", p.String()).Int("capacity", d.q.Cap()).Msg("ui queue full, dropping update")
		return false
	}
	dispatchedTotal.WithLabelValues(p.String()).Inc()
	return true
}

// Drain runs the closures queued at the time of the call, one after another,
// and returns how many ran. Closures queued while draining wait for the next
// call.
func (d *Queue) Drain() int {
	if d == nil || d.q == nil {
		return 0
	}
	n := d.q.Len()
	ran := 0
	for i := 0; i < n; i++ {
		fn, ok := d.q.TryPop()
		if !ok {
			break
		}
		d.run(fn)
		ran++
	}
	return ran
}

// Pending reports closures waiting for the next drain.
func (d *Queue) Pending() int {
	if d == nil || d.q == nil {
		return 0
	}
	return d.q.Len()
}

// Dropped reports closures rejected because the queue was full.
func (d *Queue) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Queue) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			uiPanicsTotal.Inc()
			d.log.Error().Str("panic", fmt.Sprint(r)).Msg("ui closure panicked")
		}
	}()
	fn()
}
