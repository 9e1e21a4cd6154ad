package mqttbridge

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskhogd/internal/eventbus"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	body     []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic: topic, retained: retained, body: payload.([]byte)})
	return doneToken{}
}

func (f *fakePublisher) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "deskhog/desk-1/event/wifi_connected", EventTopic("desk-1", eventbus.KindWiFiConnected))
	assert.Equal(t, "deskhog/desk-1/status", StatusTopic("desk-1"))
}

func TestBridge_MirrorsBusEvents(t *testing.T) {
	fp := &fakePublisher{}
	b := newBridge(fp, Config{Device: "desk-1", Logger: zerolog.Nop()})

	bus := eventbus.New(eventbus.Config{PollInterval: 2 * time.Millisecond, Logger: zerolog.Nop()})
	defer bus.Stop()
	b.Attach(bus)
	defer b.Close()
	bus.Start(t.Context())

	bus.Publish(eventbus.Event{Kind: eventbus.KindInsightAdded, SubjectID: "abc", Payload: map[string]string{"title": "Pageviews"}})
	require.Eventually(t, func() bool { return len(fp.all()) == 1 }, time.Second, 2*time.Millisecond)

	msg := fp.all()[0]
	assert.Equal(t, "deskhog/desk-1/event/insight_added", msg.topic)
	assert.False(t, msg.retained)
	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.body, &got))
	assert.Equal(t, "insight_added", got["kind"])
	assert.Equal(t, "abc", got["subject"])
	assert.Equal(t, "Pageviews", got["payload"].(map[string]any)["title"])
}

func TestBridge_UnencodablePayloadStillPublishes(t *testing.T) {
	fp := &fakePublisher{}
	b := newBridge(fp, Config{Logger: zerolog.Nop()})
	b.forward(eventbus.Event{Kind: eventbus.KindNetworksScanned, Payload: make(chan int)})

	msgs := fp.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "deskhog/deskhog/event/networks_scanned", msgs[0].topic)
	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].body, &got))
	assert.NotContains(t, got, "payload")
}

func TestBridge_StatusIsRetained(t *testing.T) {
	fp := &fakePublisher{}
	b := newBridge(fp, Config{Device: "d", Logger: zerolog.Nop()})
	b.publishStatus("online")
	msgs := fp.all()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].retained)
	assert.Equal(t, "deskhog/d/status", msgs[0].topic)
}

func TestConnect_RequiresBroker(t *testing.T) {
	_, err := Connect(Config{Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestConnect_UnreachableBrokerLeavesNoClientBehind(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Connect(Config{Broker: "tcp://" + addr, ConnectTimeout: 2 * time.Second, Logger: zerolog.Nop()})
	require.ErrorIs(t, err, ErrConnectionFailed)

	ln, err = net.Listen("tcp", addr)
	if err != nil {
		t.Skipf("port %s taken again: %v", addr, err)
	}
	defer ln.Close()
	require.NoError(t, ln.(*net.TCPListener).SetDeadline(time.Now().Add(500*time.Millisecond)))
	if conn, err := ln.Accept(); err == nil {
		conn.Close()
		t.Fatal("client dialed the broker again after Connect failed")
	}
}

// pendingToken never completes.
type pendingToken struct{}

func (pendingToken) Wait() bool                     { return false }
func (pendingToken) WaitTimeout(time.Duration) bool { return false }
func (pendingToken) Done() <-chan struct{}          { return make(chan struct{}) }
func (pendingToken) Error() error                   { return nil }

type stubClient struct {
	pahomqtt.Client
	connectTok   pahomqtt.Token
	disconnected bool
}

func (c *stubClient) Connect() pahomqtt.Token { return c.connectTok }
func (c *stubClient) Disconnect(uint)         { c.disconnected = true }

func TestConnect_DisconnectsOnFailure(t *testing.T) {
	cases := map[string]pahomqtt.Token{
		"timeout": pendingToken{},
		"refused": doneToken{err: errors.New("connection refused")},
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			stub := &stubClient{connectTok: tok}
			prev := newClient
			newClient = func(*pahomqtt.ClientOptions) pahomqtt.Client { return stub }
			defer func() { newClient = prev }()

			b, err := Connect(Config{Broker: "tcp://broker.invalid:1883", ConnectTimeout: 10 * time.Millisecond, Logger: zerolog.Nop()})
			assert.Nil(t, b)
			assert.ErrorIs(t, err, ErrConnectionFailed)
			assert.True(t, stub.disconnected, "failed client must be shut down")
		})
	}
}
