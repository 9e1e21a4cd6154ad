// Package wifi tracks the wireless link. It reacts to credential events on
// the bus, connects through a Connector on its own goroutine and reports
// progress back as events.
package wifi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"deskhogd/internal/eventbus"
)

const DefaultConnectTimeout = 30 * time.Second

// State of the link.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateFailed
	StateAccessPoint
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateAccessPoint:
		return "ap"
	default:
		return "idle"
	}
}

// ErrNoCredentials is returned by a CredentialSource with nothing stored.
var ErrNoCredentials = errors.New("no wifi credentials")

// Connector joins a network.
type Connector interface {
	Connect(ctx context.Context, ssid, password string) error
}

// CredentialSource loads the stored credentials.
type CredentialSource interface {
	WiFiCredentials(ctx context.Context) (ssid, password string, err error)
}

type Config struct {
	Connector      Connector
	Credentials    CredentialSource
	Publisher      eventbus.Publisher
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

// Manager implements netif.Link.
type Manager struct {
	conn    Connector
	creds   CredentialSource
	pub     eventbus.Publisher
	timeout time.Duration
	log     zerolog.Logger

	mu         sync.Mutex
	state      State
	ssid       string
	lastErr    string
	connecting bool
	again      bool
	closed     bool
	base       context.Context
	wg         sync.WaitGroup
}

func New(cfg Config) *Manager {
	if cfg.Publisher == nil {
		cfg.Publisher = eventbus.Discard
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return &Manager{
		conn:    cfg.Connector,
		creds:   cfg.Credentials,
		pub:     cfg.Publisher,
		timeout: cfg.ConnectTimeout,
		log:     cfg.Logger.With().Str("component", "wifi").Logger(),
		base:    context.Background(),
	}
}

// Begin announces whether credentials exist, which drives the first
// connection attempt through the bus. ctx bounds every later attempt.
func (m *Manager) Begin(ctx context.Context) {
	m.mu.Lock()
	m.base = ctx
	m.mu.Unlock()

	if m.creds == nil {
		m.pub.Publish(eventbus.Event{Kind: eventbus.KindNeedWiFiCredentials})
		return
	}
	ssid, _, err := m.creds.WiFiCredentials(ctx)
	if err != nil || ssid == "" {
		if err != nil && !errors.Is(err, ErrNoCredentials) {
			m.log.Warn().Err(err).Msg("load wifi credentials")
		}
		m.pub.Publish(eventbus.Event{Kind: eventbus.KindNeedWiFiCredentials})
		return
	}
	m.pub.Publish(eventbus.Event{Kind: eventbus.KindWiFiCredentialsFound, SubjectID: ssid})
}

// Attach subscribes the manager to the credential events on bus.
func (m *Manager) Attach(bus eventbus.Subscriber) func() {
	return bus.Subscribe(m.handle)
}

func (m *Manager) handle(e eventbus.Event) {
	switch e.Kind {
	case eventbus.KindWiFiCredentialsFound:
		m.Reconnect()
	case eventbus.KindNeedWiFiCredentials:
		m.startAccessPoint()
	}
}

// Reconnect starts a connection attempt with the stored credentials. If an
// attempt is already running another one follows it.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.connecting {
		m.again = true
		m.mu.Unlock()
		return
	}
	m.connecting = true
	m.wg.Add(1)
	m.mu.Unlock()
	go m.connectLoop()
}

func (m *Manager) connectLoop() {
	defer m.wg.Done()
	for {
		m.connectOnce()
		m.mu.Lock()
		if !m.again {
			m.connecting = false
			m.mu.Unlock()
			return
		}
		m.again = false
		m.mu.Unlock()
	}
}

func (m *Manager) connectOnce() {
	m.mu.Lock()
	base := m.base
	m.mu.Unlock()
	if base.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(base, m.timeout)
	defer cancel()

	if m.creds == nil || m.conn == nil {
		m.fail("", "wifi not configured")
		return
	}
	ssid, password, err := m.creds.WiFiCredentials(ctx)
	if err != nil || ssid == "" {
		m.fail(ssid, "no stored credentials")
		return
	}

	m.setState(StateConnecting, ssid, "")
	m.pub.Publish(eventbus.Event{Kind: eventbus.KindWiFiConnecting, SubjectID: ssid})
	m.log.Info().Str("ssid", ssid).Msg("connecting")

	if err := m.conn.Connect(ctx, ssid, password); err != nil {
		m.fail(ssid, err.Error())
		return
	}
	m.setState(StateConnected, ssid, "")
	m.pub.Publish(eventbus.Event{Kind: eventbus.KindWiFiConnected, SubjectID: ssid})
	m.log.Info().Str("ssid", ssid).Msg("connected")
}

func (m *Manager) fail(ssid, reason string) {
	m.setState(StateFailed, ssid, reason)
	m.pub.Publish(eventbus.Event{Kind: eventbus.KindWiFiConnectionFailed, SubjectID: ssid, Payload: reason})
	m.log.Warn().Str("ssid", ssid).Str("reason", reason).Msg("connection failed")
}

func (m *Manager) startAccessPoint() {
	m.setState(StateAccessPoint, "", "")
	m.pub.Publish(eventbus.Event{Kind: eventbus.KindWiFiAPStarted})
	m.log.Info().Msg("waiting for credentials via configuration portal")
}

func (m *Manager) setState(s State, ssid, lastErr string) {
	m.mu.Lock()
	m.state = s
	m.ssid = ssid
	m.lastErr = lastErr
	m.mu.Unlock()
}

// Connected implements netif.Link.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

// Status is a snapshot of the link.
type Status struct {
	State     State
	SSID      string
	LastError string
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, SSID: m.ssid, LastError: m.lastErr}
}

// Wait blocks until no connection attempt is running.
func (m *Manager) Wait() { m.wg.Wait() }

// Close refuses further connection attempts and waits for the running one.
// Events delivered after Close are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.again = false
	m.mu.Unlock()
	m.wg.Wait()
}
