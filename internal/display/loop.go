// Package display owns the rendering surface. A single Loop goroutine drains
// the UI dispatch queue and then redraws and polls input, so every surface
// mutation happens on that goroutine.
package display

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"deskhogd/internal/uidispatch"
)

// DefaultFrameInterval trades UI latency against wakeups.
const DefaultFrameInterval = 5 * time.Millisecond

// Surface is the rendering collaborator driven by the loop.
type Surface interface {
	Redraw()
	PollInput()
}

type LoopConfig struct {
	UI            *uidispatch.Queue
	Surface       Surface
	FrameInterval time.Duration
	Logger        zerolog.Logger
}

type Loop struct {
	ui       *uidispatch.Queue
	surface  Surface
	interval time.Duration
	log      zerolog.Logger
	frames   atomic.Uint64
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	return &Loop{
		ui:       cfg.UI,
		surface:  cfg.Surface,
		interval: cfg.FrameInterval,
		log:      cfg.Logger.With().Str("component", "display").Logger(),
	}
}

// Run ticks until ctx is done. It always returns nil.
func (l *Loop) Run(ctx context.Context) error {
	t := time.NewTicker(l.interval)
	defer t.Stop()
	l.log.Debug().Dur("frame_interval", l.interval).Msg("display loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Debug().Uint64("frames", l.frames.Load()).Msg("display loop stopped")
			return nil
		case <-t.C:
			l.Frame()
		}
	}
}

// Frame runs one iteration. Only the loop goroutine (or a test standing in
// for it) may call it.
func (l *Loop) Frame() {
	l.ui.Drain()
	if l.surface != nil {
		l.surface.Redraw()
		l.surface.PollInput()
	}
	l.frames.Add(1)
}

// Frames reports how many frames ran.
func (l *Loop) Frames() uint64 { return l.frames.Load() }
