// Package netif is the network boundary the update procedure talks through:
// link state and an HTTP client with explicit timeouts behind a circuit
// breaker.
package netif

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultRequestTimeout = 20 * time.Second
	defaultMaxFailures    = 3
	defaultOpenTimeout    = 30 * time.Second
	defaultCountInterval  = time.Minute
)

// ErrCircuitOpen is returned without touching the network while the breaker
// is open.
var ErrCircuitOpen = errors.New("transport unavailable: circuit open")

// Link reports whether the network link is usable.
type Link interface {
	Connected() bool
}

// LinkFunc adapts a function to Link.
type LinkFunc func() bool

func (f LinkFunc) Connected() bool { return f() }

// AlwaysUp is a Link for hosts whose networking is managed elsewhere.
var AlwaysUp Link = LinkFunc(func() bool { return true })

var breakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "deskhog",
		Subsystem: "netif",
		Name:      "breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
	},
	[]string{"breaker"},
)

func init() { prometheus.MustRegister(breakerState) }

// ClientConfig configures Client. Zero values take defaults.
type ClientConfig struct {
	Name           string
	ConnectTimeout time.Duration
	// RequestTimeout bounds the wait for response headers. Callers bound the
	// whole exchange, body included, through their context.
	RequestTimeout time.Duration
	MaxFailures    uint32
	OpenTimeout    time.Duration
	UserAgent      string
	Headers        map[string]string
	Logger         zerolog.Logger
}

// Client issues GET requests through a circuit breaker.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	cfg     ClientConfig
	log     zerolog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	log := cfg.Logger.With().Str("component", "netif").Str("breaker", cfg.Name).Logger()

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
	}

	maxFailures := cfg.MaxFailures
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    defaultCountInterval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &Client{
		http:    &http.Client{Transport: transport},
		breaker: cb,
		cfg:     cfg,
		log:     log,
	}
}

// Get performs a GET. Connection-level failures count against the breaker;
// any HTTP status is returned to the caller to interpret. The caller closes
// the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if c.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", c.cfg.UserAgent)
		}
		for k, v := range c.cfg.Headers {
			req.Header.Set(k, v)
		}
		return c.http.Do(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, c.cfg.Name)
		}
		return nil, err
	}
	return resp, nil
}

// State returns the breaker state for status reporting.
func (c *Client) State() gobreaker.State { return c.breaker.State() }
