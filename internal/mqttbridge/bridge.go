// Package mqttbridge mirrors bus events onto an MQTT broker so other systems
// can follow the device without polling its web front end.
package mqttbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"deskhogd/internal/eventbus"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	disconnectQuiesceMs   = 250
	topicRoot             = "deskhog"
)

var ErrConnectionFailed = errors.New("mqtt connection failed")

var publishFailures = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "deskhog",
	Subsystem: "mqtt",
	Name:      "publish_failures_total",
	Help:      "Event mirror publishes that failed or timed out.",
})

func init() { prometheus.MustRegister(publishFailures) }

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Device   string
	// ConnectTimeout bounds the initial connection. Defaults to 10s.
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

// newClient is replaced in tests.
var newClient = pahomqtt.NewClient

// publisher is the slice of the paho client the bridge needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// Bridge republishes events. Publishing never blocks the bus worker.
type Bridge struct {
	client publisher
	paho   pahomqtt.Client
	cfg    Config
	log    zerolog.Logger
	unsub  func()
}

// message is the JSON body of a mirrored event.
type message struct {
	Kind      string `json:"kind"`
	Subject   string `json:"subject,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"ts"`
}

type statusMessage struct {
	Status string `json:"status"`
	Device string `json:"device"`
	Time   int64  `json:"ts"`
}

// Connect dials the broker with a last-will so subscribers see the device
// go offline if the process dies. The first connection is attempted once;
// automatic reconnects apply only after it succeeded. On failure the client
// is shut down before returning.
func Connect(cfg Config) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("%w: broker not configured", ErrConnectionFailed)
	}
	if cfg.Device == "" {
		cfg.Device = "deskhog"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "deskhogd-" + cfg.Device
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	b := &Bridge{cfg: cfg, log: cfg.Logger.With().Str("component", "mqtt").Logger()}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	will, _ := json.Marshal(statusMessage{Status: "offline", Device: cfg.Device})
	opts.SetBinaryWill(StatusTopic(cfg.Device), will, cfg.QoS, true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		b.log.Info().Str("broker", cfg.Broker).Msg("mqtt connected")
		b.publishStatus("online")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		b.log.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := newClient(opts)
	b.paho = client
	b.client = client
	tok := client.Connect()
	if !tok.WaitTimeout(cfg.ConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, cfg.ConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return b, nil
}

// newBridge builds a bridge over an existing publisher.
func newBridge(p publisher, cfg Config) *Bridge {
	if cfg.Device == "" {
		cfg.Device = "deskhog"
	}
	return &Bridge{client: p, cfg: cfg, log: cfg.Logger.With().Str("component", "mqtt").Logger()}
}

// Attach starts mirroring events from bus.
func (b *Bridge) Attach(bus eventbus.Subscriber) {
	b.unsub = bus.Subscribe(b.forward)
}

func (b *Bridge) forward(e eventbus.Event) {
	body, err := json.Marshal(message{
		Kind:      e.Kind.String(),
		Subject:   e.SubjectID,
		Payload:   e.Payload,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		// payloads are best effort; the kind and subject still go out
		body, _ = json.Marshal(message{Kind: e.Kind.String(), Subject: e.SubjectID, Timestamp: time.Now().Unix()})
	}
	b.publish(EventTopic(b.cfg.Device, e.Kind), false, body)
}

func (b *Bridge) publishStatus(status string) {
	body, _ := json.Marshal(statusMessage{Status: status, Device: b.cfg.Device, Time: time.Now().Unix()})
	b.publish(StatusTopic(b.cfg.Device), true, body)
}

func (b *Bridge) publish(topic string, retained bool, body []byte) {
	tok := b.client.Publish(topic, b.cfg.QoS, retained, body)
	go func() {
		if !tok.WaitTimeout(defaultPublishTimeout) {
			publishFailures.Inc()
			b.log.Warn().Str("topic", topic).Msg("mqtt publish timed out")
			return
		}
		if err := tok.Error(); err != nil {
			publishFailures.Inc()
			b.log.Warn().Err(err).Str("topic", topic).Msg("mqtt publish failed")
		}
	}()
}

// Close stops mirroring, announces a graceful offline status and
// disconnects.
func (b *Bridge) Close() {
	if b.unsub != nil {
		b.unsub()
	}
	if b.paho == nil {
		return
	}
	if b.paho.IsConnected() {
		body, _ := json.Marshal(statusMessage{Status: "offline", Device: b.cfg.Device, Time: time.Now().Unix()})
		b.paho.Publish(StatusTopic(b.cfg.Device), b.cfg.QoS, true, body).WaitTimeout(time.Second)
	}
	b.paho.Disconnect(disconnectQuiesceMs)
}

// EventTopic is where events of kind k are mirrored.
func EventTopic(device string, k eventbus.Kind) string {
	return strings.Join([]string{topicRoot, device, "event", k.String()}, "/")
}

// StatusTopic carries the retained online/offline status.
func StatusTopic(device string) string {
	return strings.Join([]string{topicRoot, device, "status"}, "/")
}
