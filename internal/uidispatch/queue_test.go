package uidispatch

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_RunsInOrderOnDrain(t *testing.T) {
	d := New(Config{Capacity: 4, Logger: zerolog.Nop()})
	var got []int
	for i := 1; i <= 3; i++ {
		i := i
		require.True(t, d.Dispatch(func() { got = append(got, i) }, Normal))
	}
	assert.Empty(t, got, "nothing runs before Drain")
	assert.Equal(t, 3, d.Drain())
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 0, d.Pending())
}

func TestDispatch_FrontPriorityRunsFirst(t *testing.T) {
	d := New(Config{Capacity: 4, Logger: zerolog.Nop()})
	var got []string
	d.Dispatch(func() { got = append(got, "a") }, Normal)
	d.Dispatch(func() { got = append(got, "b") }, Normal)
	d.Dispatch(func() { got = append(got, "now") }, Front)
	d.Drain()
	assert.Equal(t, []string{"now", "a", "b"}, got)
}

func TestDispatch_FullQueueDrops(t *testing.T) {
	d := New(Config{Capacity: 2, Logger: zerolog.Nop()})
	ran := 0
	inc := func() { ran++ }
	assert.True(t, d.Dispatch(inc, Normal))
	assert.True(t, d.Dispatch(inc, Normal))
	assert.False(t, d.Dispatch(inc, Normal))
	assert.False(t, d.Dispatch(inc, Front))
	assert.Equal(t, uint64(2), d.Dropped())
	d.Drain()
	assert.Equal(t, 2, ran, "dropped closures never run")
}

func TestDispatch_NilInputs(t *testing.T) {
	var d *Queue
	assert.False(t, d.Dispatch(func() {}, Normal))
	assert.Equal(t, 0, d.Drain())

	q := New(Config{Logger: zerolog.Nop()})
	assert.False(t, q.Dispatch(nil, Normal))
}

func TestDrain_ClosuresQueuedDuringDrainWaitForNextFrame(t *testing.T) {
	d := New(Config{Capacity: 4, Logger: zerolog.Nop()})
	var got []string
	d.Dispatch(func() {
		got = append(got, "first")
		d.Dispatch(func() { got = append(got, "second") }, Normal)
	}, Normal)

	assert.Equal(t, 1, d.Drain())
	assert.Equal(t, []string{"first"}, got)
	assert.Equal(t, 1, d.Drain())
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestDrain_RecoversPanics(t *testing.T) {
	d := New(Config{Capacity: 4, Logger: zerolog.Nop()})
	after := false
	d.Dispatch(func() { panic("bad frame") }, Normal)
	d.Dispatch(func() { after = true }, Normal)
	assert.Equal(t, 2, d.Drain())
	assert.True(t, after)
}

func TestDispatch_ConcurrentProducers(t *testing.T) {
	d := New(Config{Capacity: 64, Logger: zerolog.Nop()})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				d.Dispatch(func() {}, Normal)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 64, d.Drain())
	assert.Equal(t, uint64(0), d.Dropped())
}
