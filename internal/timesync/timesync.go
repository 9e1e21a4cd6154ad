// Package timesync decides whether the wall clock can be trusted for TLS
// certificate validation.
package timesync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultRetries  = 20
	DefaultInterval = 500 * time.Millisecond
)

// ErrNotSynced is returned when the clock stays implausible for every retry.
var ErrNotSynced = errors.New("time not synchronized")

// DefaultFloor is the earliest wall-clock time considered synchronized.
var DefaultFloor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Checker waits for the system clock to pass a plausibility floor. Once it
// has, the result is sticky.
type Checker struct {
	Floor    time.Time
	Retries  int
	Interval time.Duration
	Now      func() time.Time

	log    zerolog.Logger
	synced atomic.Bool
}

func New(log zerolog.Logger) *Checker {
	return &Checker{
		Floor:    DefaultFloor,
		Retries:  DefaultRetries,
		Interval: DefaultInterval,
		Now:      time.Now,
		log:      log.With().Str("component", "timesync").Logger(),
	}
}

// Sync returns nil as soon as the clock is past Floor, polling every Interval
// up to Retries times.
func (c *Checker) Sync(ctx context.Context) error {
	if c.synced.Load() {
		return nil
	}
	for attempt := 0; ; attempt++ {
		now := c.Now()
		if now.After(c.Floor) {
			c.synced.Store(true)
			c.log.Debug().Time("now", now).Int("attempts", attempt+1).Msg("clock synchronized")
			return nil
		}
		if attempt >= c.Retries {
			c.log.Warn().Time("now", now).Time("floor", c.Floor).Msg("clock not synchronized")
			return ErrNotSynced
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Interval):
		}
	}
}
