// Package device is the composition root of the daemon. A Controller owns
// the event bus, the command queue, the update manager and the Wi-Fi
// manager, registers the action handlers and answers the synchronous reads
// served by the web front end.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"deskhogd/internal/actions"
	"deskhogd/internal/eventbus"
	"deskhogd/internal/netif"
	"deskhogd/internal/ota"
	"deskhogd/internal/store"
	"deskhogd/internal/uidispatch"
	"deskhogd/internal/wifi"
)

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("device controller stopped")

// Store is the persistence the handlers and reads need. *store.Store
// implements it.
type Store interface {
	SaveWiFiCredentials(ctx context.Context, ssid, password string) error
	WiFiCredentials(ctx context.Context) (string, string, error)
	SaveDeviceConfig(ctx context.Context, c store.DeviceConfig) error
	DeviceConfig(ctx context.Context) (store.DeviceConfig, error)
	SaveInsight(ctx context.Context, id, title string) error
	DeleteInsight(ctx context.Context, id string) error
	Insights(ctx context.Context) ([]store.Insight, error)
}

// UpdateOptions configures the update manager.
type UpdateOptions struct {
	CurrentVersion  string
	ReleasesURL     string
	AssetName       string
	ConnectTimeout  time.Duration
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	RestartDelay    time.Duration
	// CheckSchedule queues a CheckUpdate action on a cron schedule
	// ("@every 6h", "0 3 * * *"). Empty disables it.
	CheckSchedule string
}

// Config wires a Controller. Store is required; everything else has a
// usable zero value.
type Config struct {
	Store Store
	// Scanner lists nearby networks. Nil makes ScanNetworks fail.
	Scanner wifi.Scanner
	// Connector joins networks. Nil means the host manages its own link,
	// which is then treated as always up.
	Connector wifi.Connector

	Transport ota.Transport
	Clock     ota.TimeSource
	Staging   ota.Stager
	Restart   func()
	Update    UpdateOptions

	QueueSize         int
	QueuePollInterval time.Duration
	EventCapacity     int
	EventPollInterval time.Duration
	// UI is the display dispatch queue; only its counters are read here.
	UI *uidispatch.Queue

	Version string
	Logger  zerolog.Logger
}

// Controller coordinates the device.
type Controller struct {
	store   Store
	scanner wifi.Scanner
	bus     *eventbus.Bus
	queue   *actions.Queue
	ota     *ota.Manager
	wifi    *wifi.Manager
	manages bool
	ui      *uidispatch.Queue
	cron    *cron.Cron
	version string
	started time.Time
	log     zerolog.Logger

	mu        sync.Mutex
	running   bool
	stopped   bool
	unsubWiFi func()
	networks  []wifi.Network
	scannedAt time.Time
}

// New builds a controller and everything it owns. Nothing runs until Start.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("device: store is required")
	}
	log := cfg.Logger.With().Str("component", "device").Logger()

	bus := eventbus.New(eventbus.Config{
		Capacity:     cfg.EventCapacity,
		PollInterval: cfg.EventPollInterval,
		Logger:       cfg.Logger,
	})
	q := actions.New(actions.Config{
		MaxSize:      cfg.QueueSize,
		PollInterval: cfg.QueuePollInterval,
		Publisher:    bus,
		Logger:       cfg.Logger,
	})
	wm := wifi.New(wifi.Config{
		Connector:   cfg.Connector,
		Credentials: cfg.Store,
		Publisher:   bus,
		Logger:      cfg.Logger,
	})
	var link netif.Link = netif.AlwaysUp
	if cfg.Connector != nil {
		link = wm
	}
	transport := cfg.Transport
	if transport == nil {
		transport = netif.NewClient(netif.ClientConfig{
			Name:           "releases",
			ConnectTimeout: cfg.Update.ConnectTimeout,
			RequestTimeout: cfg.Update.RequestTimeout,
			UserAgent:      "deskhogd/" + cfg.Version,
			Headers:        map[string]string{"Accept": "application/vnd.github+json"},
			Logger:         cfg.Logger,
		})
	}
	om := ota.New(ota.Config{
		CurrentVersion:  cfg.Update.CurrentVersion,
		ReleasesURL:     cfg.Update.ReleasesURL,
		AssetName:       cfg.Update.AssetName,
		RequestTimeout:  cfg.Update.RequestTimeout,
		DownloadTimeout: cfg.Update.DownloadTimeout,
		RestartDelay:    cfg.Update.RestartDelay,
		Link:            link,
		Transport:       transport,
		Clock:           cfg.Clock,
		Staging:         cfg.Staging,
		Restart:         cfg.Restart,
		Publisher:       bus,
		Logger:          cfg.Logger,
	})

	c := &Controller{
		store:   cfg.Store,
		scanner: cfg.Scanner,
		bus:     bus,
		queue:   q,
		ota:     om,
		wifi:    wm,
		manages: cfg.Connector != nil,
		ui:      cfg.UI,
		version: cfg.Version,
		started: time.Now(),
		log:     log,
	}
	if err := c.schedule(cfg.Update.CheckSchedule); err != nil {
		return nil, err
	}
	c.register()
	return c, nil
}

// Start runs the bus and queue workers, attaches the Wi-Fi manager and
// starts the update schedule. It is a no-op when already running.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if c.running {
		return nil
	}
	c.bus.Start(ctx)
	if err := c.queue.Start(ctx); err != nil {
		c.bus.Stop()
		return err
	}
	if c.manages {
		c.unsubWiFi = c.wifi.Attach(c.bus)
		c.wifi.Begin(ctx)
	}
	if c.cron != nil {
		c.cron.Start()
	}
	c.running = true
	c.log.Info().Bool("manage_wifi", c.manages).Msg("device controller started")
	return nil
}

// Stop halts the schedule, the queue, background update procedures and
// finally the bus. It waits for each to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.running = false
	unsub := c.unsubWiFi
	c.mu.Unlock()

	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
	c.queue.Stop()
	c.ota.Close()
	if unsub != nil {
		unsub()
	}
	c.wifi.Close()
	c.bus.Stop()
	c.log.Info().Msg("device controller stopped")
}

// Ready reports whether the controller accepts actions.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Submit queues an action for the worker.
func (c *Controller) Submit(k actions.Kind, params ...string) (actions.Action, error) {
	return c.queue.Submit(k, params...)
}

// Subscribe registers fn on the event bus and returns its unsubscribe func.
func (c *Controller) Subscribe(fn func(eventbus.Event)) func() {
	return c.bus.Subscribe(fn)
}

// Bus exposes the bus for consumers wired outside the controller.
func (c *Controller) Bus() *eventbus.Bus { return c.bus }

// Updates exposes the update manager.
func (c *Controller) Updates() *ota.Manager { return c.ota }

// WiFi exposes the Wi-Fi manager.
func (c *Controller) WiFi() *wifi.Manager { return c.wifi }

func (c *Controller) schedule(spec string) error {
	if spec == "" {
		return nil
	}
	c.cron = cron.New()
	_, err := c.cron.AddFunc(spec, func() {
		if _, err := c.queue.Submit(actions.KindCheckUpdate); err != nil {
			c.log.Warn().Err(err).Msg("scheduled update check not queued")
		}
	})
	if err != nil {
		return &ScheduleError{Spec: spec, Err: err}
	}
	return nil
}

// ScheduleError reports an unparseable update schedule.
type ScheduleError struct {
	Spec string
	Err  error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("device: invalid update schedule %q: %v", e.Spec, e.Err)
}

func (e *ScheduleError) Unwrap() error { return e.Err }
