package device

import (
	"context"
	"errors"
	"strings"
	"time"

	"deskhogd/internal/actions"
	"deskhogd/internal/ota"
	"deskhogd/internal/store"
	"deskhogd/internal/wifi"
	"deskhogd/pkg/types"
)

// Insights lists configured insights, oldest first.
func (c *Controller) Insights(ctx context.Context) ([]types.Insight, error) {
	list, err := c.store.Insights(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Insight, 0, len(list))
	for _, in := range list {
		out = append(out, types.Insight{ID: in.ID, Title: in.Title, CreatedUnix: in.CreatedAt.Unix()})
	}
	return out, nil
}

// DeviceConfig returns the stored identity with the API key masked. An
// unconfigured device yields the zero value.
func (c *Controller) DeviceConfig(ctx context.Context) (types.DeviceConfig, error) {
	cfg, err := c.store.DeviceConfig(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return types.DeviceConfig{}, nil
	}
	if err != nil {
		return types.DeviceConfig{}, err
	}
	return types.DeviceConfig{
		TeamID:    cfg.TeamID,
		APIKey:    MaskSecret(cfg.APIKey),
		HasAPIKey: cfg.APIKey != "",
		Region:    cfg.Region,
	}, nil
}

// MaskSecret keeps the first and last four characters of long secrets.
func MaskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return strings.Repeat("*", len(s))
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}

// Networks returns the results of the last completed scan.
func (c *Controller) Networks() types.NetworksResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := types.NetworksResponse{Networks: make([]types.Network, 0, len(c.networks))}
	for _, n := range c.networks {
		out.Networks = append(out.Networks, types.Network{SSID: n.SSID, Signal: n.Signal, Secure: n.Secure})
	}
	if !c.scannedAt.IsZero() {
		out.ScannedUnix = c.scannedAt.Unix()
	}
	return out
}

// UpdateStatus reports the update procedure and the last check result.
func (c *Controller) UpdateStatus() types.UpdateStatusResponse {
	return types.UpdateStatusResponse{
		Status: updateStatus(c.ota.Status()),
		Result: updateInfo(c.ota.LastCheckResult()),
		Busy:   c.ota.Busy(),
	}
}

// Status aggregates every pollable piece of device state.
func (c *Controller) Status() types.StatusResponse {
	snap := c.queue.Snapshot()
	ws := c.wifi.Status()
	now := time.Now()
	return types.StatusResponse{
		ActionInProgress:   snap.InProgress.String(),
		ActionInProgressID: snap.InProgressID,
		PendingActions:     snap.Pending,
		MaxQueueSize:       snap.Capacity,
		LastAction:         actionOutcome(snap.Outcome),
		Update:             updateStatus(c.ota.Status()),
		UpdateResult:       updateInfo(c.ota.LastCheckResult()),
		WiFi: types.WiFiStatus{
			State:     ws.State.String(),
			SSID:      ws.SSID,
			Connected: !c.manages || ws.State == wifi.StateConnected,
			LastError: ws.LastError,
		},
		EventsDropped:    c.bus.Dropped(),
		UIUpdatesDropped: c.ui.Dropped(),
		Version:          c.version,
		UptimeSeconds:    int64(now.Sub(c.started) / time.Second),
		ServerTimeUnix:   now.Unix(),
	}
}

func actionOutcome(o actions.Outcome) types.ActionOutcome {
	out := types.ActionOutcome{
		ID:      o.ActionID,
		Kind:    o.Kind.String(),
		Success: o.Success,
		Message: o.Message,
	}
	if !o.CompletedAt.IsZero() {
		out.CompletedUnix = o.CompletedAt.Unix()
	}
	return out
}

func updateStatus(s ota.Status) types.UpdateStatus {
	return types.UpdateStatus{
		State:    s.State.String(),
		Reason:   s.Reason.String(),
		Code:     s.Code(),
		Progress: s.Progress,
		Message:  s.Message,
	}
}

func updateInfo(r ota.Result) types.UpdateInfo {
	return types.UpdateInfo{
		UpdateAvailable:  r.Available,
		CurrentVersion:   r.CurrentVersion,
		AvailableVersion: r.AvailableVersion,
		DownloadURL:      r.DownloadURL,
		AssetSize:        r.AssetSize,
		ReleaseNotes:     r.Notes,
		Error:            r.Error,
	}
}
