package netif

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetSetsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "deskhogd/test", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		UserAgent: "deskhogd/test",
		Headers:   map[string]string{"Accept": "application/vnd.github+json"},
		Logger:    zerolog.Nop(),
	})
	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(b))
}

func TestClient_HTTPErrorStatusDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{MaxFailures: 1, Logger: zerolog.Nop()})
	for i := 0; i < 3; i++ {
		resp, err := c.Get(context.Background(), srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestClient_OpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(ClientConfig{Name: "test-open", MaxFailures: 2, OpenTimeout: time.Minute, Logger: zerolog.Nop()})
	for i := 0; i < 2; i++ {
		_, err := c.Get(context.Background(), url)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	_, err := c.Get(context.Background(), url)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, gobreaker.StateOpen, c.State())
}

func TestLinkFunc(t *testing.T) {
	assert.True(t, AlwaysUp.Connected())
	assert.False(t, LinkFunc(func() bool { return false }).Connected())
}
