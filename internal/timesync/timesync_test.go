package timesync

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	times []time.Time
	calls int
}

func (c *stepClock) Now() time.Time {
	t := c.times[min(c.calls, len(c.times)-1)]
	c.calls++
	return t
}

func TestSync_ImmediateWhenPlausible(t *testing.T) {
	c := New(zerolog.Nop())
	require.NoError(t, c.Sync(context.Background()))
}

func TestSync_WaitsForClock(t *testing.T) {
	early := time.Date(1970, 1, 1, 0, 0, 5, 0, time.UTC)
	clk := &stepClock{times: []time.Time{early, early, time.Now()}}
	c := New(zerolog.Nop())
	c.Now = clk.Now
	c.Interval = time.Millisecond

	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, 3, clk.calls)

	// sticky once synced
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, 3, clk.calls)
}

func TestSync_GivesUpAfterRetries(t *testing.T) {
	early := time.Date(1970, 1, 1, 0, 0, 5, 0, time.UTC)
	clk := &stepClock{times: []time.Time{early}}
	c := New(zerolog.Nop())
	c.Now = clk.Now
	c.Interval = time.Millisecond
	c.Retries = 3

	assert.ErrorIs(t, c.Sync(context.Background()), ErrNotSynced)
	assert.Equal(t, 4, clk.calls)
}

func TestSync_HonoursCancel(t *testing.T) {
	c := New(zerolog.Nop())
	c.Now = func() time.Time { return time.Unix(0, 0) }
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sync(ctx), context.Canceled)
}
