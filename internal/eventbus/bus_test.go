package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T, capacity int) *Bus {
	t.Helper()
	b := New(Config{Capacity: capacity, PollInterval: 5 * time.Millisecond, Logger: zerolog.Nop()})
	t.Cleanup(b.Stop)
	return b
}

func TestBus_FanOutInSubscriptionOrder(t *testing.T) {
	b := newTestBus(t, 10)

	var mu sync.Mutex
	var trace []string
	record := func(s string) {
		mu.Lock()
		trace = append(trace, s)
		mu.Unlock()
	}
	done := make(chan struct{})

	b.Subscribe(func(e Event) {
		record("s1-begin")
		time.Sleep(10 * time.Millisecond)
		record("s1-end")
	})
	b.Subscribe(func(e Event) {
		record("s2-begin")
		close(done)
	})

	b.Start(context.Background())
	require.True(t, b.Publish(Event{Kind: KindInsightAdded, SubjectID: "abc"}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"s1-begin", "s1-end", "s2-begin"}, trace)
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := newTestBus(t, 2)
	// not started: nothing drains
	assert.True(t, b.Publish(Event{Kind: KindInsightAdded}))
	assert.True(t, b.Publish(Event{Kind: KindInsightAdded}))
	assert.False(t, b.Publish(Event{Kind: KindInsightAdded}))
	assert.Equal(t, uint64(1), b.Dropped())
	assert.Equal(t, 2, b.Pending())
}

func TestBus_EventsPublishedBeforeStartAreDelivered(t *testing.T) {
	b := newTestBus(t, 4)
	got := make(chan Event, 4)
	b.Subscribe(func(e Event) { got <- e })

	b.Publish(Event{Kind: KindWiFiConnecting, SubjectID: "one"})
	b.Publish(Event{Kind: KindWiFiConnected, SubjectID: "two"})
	b.Start(context.Background())

	for _, want := range []string{"one", "two"} {
		select {
		case e := <-got:
			assert.Equal(t, want, e.SubjectID)
		case <-time.After(time.Second):
			t.Fatalf("missing event %s", want)
		}
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBus(t, 4)
	var mu sync.Mutex
	count := 0
	unsub := b.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	seen := make(chan struct{}, 4)
	b.Subscribe(func(Event) { seen <- struct{}{} })
	b.Start(context.Background())

	b.Publish(Event{Kind: KindInsightAdded})
	<-seen
	unsub()
	unsub()
	b.Publish(Event{Kind: KindInsightAdded})
	<-seen

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, b.Subscribers())
}

func TestBus_PanickingSubscriberDoesNotStopOthers(t *testing.T) {
	b := newTestBus(t, 4)
	got := make(chan Event, 1)
	b.Subscribe(func(Event) { panic("boom") })
	b.Subscribe(func(e Event) { got <- e })
	b.Start(context.Background())

	b.Publish(Event{Kind: KindInsightDeleted, SubjectID: "x"})
	select {
	case e := <-got:
		assert.Equal(t, KindInsightDeleted, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("second subscriber did not run")
	}
}

func TestBus_StopIsIdempotentAndHaltsWorker(t *testing.T) {
	b := New(Config{PollInterval: 5 * time.Millisecond, Logger: zerolog.Nop()})
	b.Start(context.Background())
	b.Start(context.Background())
	b.Stop()
	b.Stop()

	delivered := make(chan struct{}, 1)
	b.Subscribe(func(Event) { delivered <- struct{}{} })
	b.Publish(Event{Kind: KindInsightAdded})
	select {
	case <-delivered:
		t.Fatal("event delivered after Stop")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestBus_NilBusPublishFails(t *testing.T) {
	var b *Bus
	assert.False(t, b.Publish(Event{Kind: KindInsightAdded}))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "wifi_connected", KindWiFiConnected.String())
	assert.Equal(t, "unknown", Kind(999).String())
}
