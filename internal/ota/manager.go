package ota

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"deskhogd/internal/eventbus"
	"deskhogd/internal/netif"
	"deskhogd/internal/staging"
)

const (
	DefaultAssetName       = "firmware.bin"
	DefaultRequestTimeout  = 20 * time.Second
	DefaultDownloadTimeout = 180 * time.Second
	DefaultRestartDelay    = time.Second
	// DefaultChunkSize matches one TCP segment on a typical MTU.
	DefaultChunkSize = 1460
	// maxMetadataBytes bounds the release metadata decode.
	maxMetadataBytes = 256 << 10
)

// Transport fetches URLs. netif.Client is the production implementation.
type Transport interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// TimeSource confirms the clock is trustworthy before TLS is attempted.
type TimeSource interface {
	Sync(ctx context.Context) error
}

// Stager hands out a staging slot sized to the image.
type Stager interface {
	Begin(size int64) (staging.Slot, error)
}

// Config wires a Manager to its collaborators.
type Config struct {
	CurrentVersion  string
	ReleasesURL     string
	AssetName       string
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	RestartDelay    time.Duration
	ChunkSize       int

	Link      netif.Link
	Transport Transport
	Clock     TimeSource
	Staging   Stager
	// Restart is invoked once a verified image is committed.
	Restart   func()
	Publisher eventbus.Publisher
	Logger    zerolog.Logger
}

// Manager runs the update check and the update itself as background
// procedures and exposes their progress as pollable state.
type Manager struct {
	cfg  Config
	pub  eventbus.Publisher
	log  zerolog.Logger
	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu         sync.Mutex
	status     Status
	result     Result
	checking   bool
	performing bool
}

func New(cfg Config) *Manager {
	if cfg.AssetName == "" {
		cfg.AssetName = DefaultAssetName
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Link == nil {
		cfg.Link = netif.AlwaysUp
	}
	if cfg.Restart == nil {
		cfg.Restart = func() {}
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = eventbus.Discard
	}
	base, stop := context.WithCancel(context.Background())
	m := &Manager{
		cfg:    cfg,
		pub:    pub,
		log:    cfg.Logger.With().Str("component", "ota").Logger(),
		base:   base,
		stop:   stop,
		status: normalize(Status{State: StateIdle}),
		result: Result{CurrentVersion: cfg.CurrentVersion},
	}
	observeStatus(m.status)
	return m
}

// Rejection causes reported by StartCheck and StartUpdate.
var (
	ErrBusy            = errors.New("ota: update operation already in progress")
	ErrRestartPending  = errors.New("ota: update installed, restart pending")
	ErrUpdateAvailable = errors.New("ota: update already available")
	ErrNoUpdate        = errors.New("ota: no update available")
	ErrLinkDown        = errors.New("ota: network link down")
)

// CheckForUpdate starts a background check and reports whether one was
// spawned. See StartCheck for the rejection causes.
func (m *Manager) CheckForUpdate() bool { return m.StartCheck() == nil }

// StartCheck starts a background check. Only Idle and Error allow a new
// check: it fails with ErrBusy while a procedure runs or the update is being
// downloaded, ErrUpdateAvailable while a found update waits for StartUpdate,
// ErrRestartPending after a committed update, and ErrLinkDown when the link
// is down (the status then reports a network error; nothing is spawned).
func (m *Manager) StartCheck() error {
	m.mu.Lock()
	if err := m.checkAllowedLocked(); err != nil {
		state := m.status.State
		m.mu.Unlock()
		m.log.Debug().Err(err).Stringer("state", state).Msg("check rejected")
		return err
	}
	if !m.cfg.Link.Connected() {
		m.result = Result{CurrentVersion: m.cfg.CurrentVersion, Error: "WiFi not connected."}
		st := m.setStatusLocked(Status{State: StateError, Reason: ReasonNetwork, Message: "WiFi not connected. Cannot check for updates."})
		m.mu.Unlock()
		m.emit(st)
		return ErrLinkDown
	}
	m.checking = true
	m.result = Result{CurrentVersion: m.cfg.CurrentVersion}
	st := m.setStatusLocked(Status{State: StateChecking, Message: "Initializing update check..."})
	m.wg.Add(1)
	m.mu.Unlock()

	m.emit(st)
	go m.runCheck()
	return nil
}

func (m *Manager) checkAllowedLocked() error {
	if m.checking || m.performing {
		return ErrBusy
	}
	switch m.status.State {
	case StateIdle, StateError:
		return nil
	case StateSuccess:
		return ErrRestartPending
	case StateChecking:
		// A finished check stays in Checking at 100% when an update was found.
		return ErrUpdateAvailable
	default:
		return ErrBusy
	}
}

// BeginUpdate starts downloading and staging an image and reports whether
// it was spawned. See StartUpdate for the rejection causes.
func (m *Manager) BeginUpdate(downloadURL string) bool { return m.StartUpdate(downloadURL) == nil }

// StartUpdate starts downloading and staging an image. downloadURL may be
// empty to use the URL from the last successful check. It fails with
// ErrBusy, ErrRestartPending, ErrNoUpdate, or ErrLinkDown (the status then
// reports a network error).
func (m *Manager) StartUpdate(downloadURL string) error {
	m.mu.Lock()
	if m.checking || m.performing {
		m.mu.Unlock()
		m.log.Debug().Msg("update rejected: operation in progress")
		return ErrBusy
	}
	if m.status.State == StateSuccess {
		m.mu.Unlock()
		m.log.Debug().Msg("update rejected: restart pending")
		return ErrRestartPending
	}
	t, ok := m.targetLocked(downloadURL)
	if !ok {
		m.mu.Unlock()
		m.log.Warn().Msg("update rejected: no update available")
		return ErrNoUpdate
	}
	if !m.cfg.Link.Connected() {
		st := m.setStatusLocked(Status{State: StateError, Reason: ReasonNetwork, Message: "WiFi not connected. Cannot download update."})
		m.mu.Unlock()
		m.emit(st)
		return ErrLinkDown
	}
	m.performing = true
	st := m.setStatusLocked(Status{State: StateDownloading, Message: "Starting update..."})
	m.wg.Add(1)
	m.mu.Unlock()

	m.emit(st)
	go m.runPerform(t)
	return nil
}

// target is what the perform procedure downloads.
type target struct {
	URL     string
	Version string
	Size    int64
	Digest  string
}

func (m *Manager) targetLocked(url string) (target, bool) {
	r := m.result
	switch {
	case url == "" && r.Available && r.DownloadURL != "":
		return target{URL: r.DownloadURL, Version: r.AvailableVersion, Size: r.AssetSize, Digest: r.Digest}, true
	case url == "":
		return target{}, false
	case url == r.DownloadURL:
		return target{URL: url, Version: r.AvailableVersion, Size: r.AssetSize, Digest: r.Digest}, true
	default:
		return target{URL: url}, true
	}
}

// Status returns a snapshot of the current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastCheckResult returns a snapshot of the last check result.
func (m *Manager) LastCheckResult() Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

// Busy reports whether a check or an update is running.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checking || m.performing
}

// Close cancels running procedures and waits for them to exit.
func (m *Manager) Close() {
	m.stop()
	m.wg.Wait()
}

// Wait blocks until no procedure is running.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) setStatusLocked(s Status) Status {
	m.status = normalize(s)
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	st := m.setStatusLocked(s)
	m.mu.Unlock()
	m.emit(st)
}

// setProgress moves progress forward within the current state.
func (m *Manager) setProgress(p int) {
	m.mu.Lock()
	if p <= m.status.Progress {
		m.mu.Unlock()
		return
	}
	s := m.status
	s.Progress = p
	st := m.setStatusLocked(s)
	m.mu.Unlock()
	m.emit(st)
}

func (m *Manager) fail(r Reason, msg string) {
	m.setStatus(Status{State: StateError, Reason: r, Message: msg})
	failuresTotal.WithLabelValues(r.String()).Inc()
	m.log.Warn().Str("reason", r.String()).Msg(msg)
}

func (m *Manager) emit(st Status) {
	observeStatus(st)
	m.pub.Publish(eventbus.Event{Kind: eventbus.KindUpdateStateChanged, SubjectID: st.State.String(), Payload: st})
}
