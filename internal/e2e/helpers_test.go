package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"deskhogd/internal/device"
	"deskhogd/internal/httpapi"
	"deskhogd/internal/store"
	"deskhogd/pkg/types"
)

// offline fails every release request so update checks never leave the host.
type offline struct{}

func (offline) Get(context.Context, string) (*http.Response, error) {
	return nil, errors.New("offline")
}

// newDevice builds a controller over a fresh sqlite file and serves it. The
// controller is started only when start is true.
func newDevice(t *testing.T, start bool) (*httptest.Server, *device.Controller, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "deskhog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	ctrl, err := device.New(device.Config{
		Store:             st,
		Transport:         offline{},
		QueuePollInterval: 5 * time.Millisecond,
		EventPollInterval: 5 * time.Millisecond,
		Update:            device.UpdateOptions{CurrentVersion: "v1.0.0", ReleasesURL: "http://releases.invalid"},
		Version:           "v1.0.0",
		Logger:            zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	t.Cleanup(ctrl.Stop)
	if start {
		if err := ctrl.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
	}
	srv := httptest.NewServer(httpapi.NewMux(ctrl))
	t.Cleanup(srv.Close)
	return srv, ctrl, st
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostForm(t *testing.T, u string, vals url.Values) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, u, strings.NewReader(vals.Encode()))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func decodeAction(t *testing.T, body []byte) types.ActionResponse {
	t.Helper()
	var ar types.ActionResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		t.Fatalf("decode action response: %v; body=%s", err, string(body))
	}
	return ar
}

// waitOutcome polls /api/status until the action with id has completed.
func waitOutcome(t *testing.T, base, id string) types.ActionOutcome {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, body := httpGet(t, base+"/api/status")
		var st types.StatusResponse
		if err := json.Unmarshal(body, &st); err != nil {
			t.Fatalf("decode status: %v; body=%s", err, string(body))
		}
		if st.LastAction.ID == id {
			return st.LastAction
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("action %s did not complete", id)
	return types.ActionOutcome{}
}
