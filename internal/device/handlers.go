package device

import (
	"context"
	"errors"
	"strings"
	"time"

	"deskhogd/internal/actions"
	"deskhogd/internal/eventbus"
	"deskhogd/internal/ota"
	"deskhogd/internal/store"
)

func (c *Controller) register() {
	c.queue.Handle(actions.KindScanNetworks, c.scanNetworks)
	c.queue.Handle(actions.KindSaveWiFi, c.saveWiFi)
	c.queue.Handle(actions.KindSaveDeviceConfig, c.saveDeviceConfig)
	c.queue.Handle(actions.KindSaveInsight, c.saveInsight)
	c.queue.Handle(actions.KindDeleteInsight, c.deleteInsight)
	c.queue.Handle(actions.KindCheckUpdate, c.checkUpdate)
	c.queue.Handle(actions.KindStartUpdate, c.startUpdate)
}

func (c *Controller) scanNetworks(ctx context.Context, _ actions.Action) actions.Result {
	if c.scanner == nil {
		return actions.Failed("WiFi scanning is not available")
	}
	nets, err := c.scanner.Scan(ctx)
	if err != nil {
		return actions.Failed("Network scan failed: %v", err)
	}
	c.mu.Lock()
	c.networks = nets
	c.scannedAt = time.Now()
	c.mu.Unlock()
	c.bus.Publish(eventbus.Event{Kind: eventbus.KindNetworksScanned, Payload: len(nets)})
	return actions.Succeeded("Found %d networks", len(nets))
}

// saveWiFi params: ssid, password.
func (c *Controller) saveWiFi(ctx context.Context, a actions.Action) actions.Result {
	ssid, password := a.Param(0), a.Param(1)
	if err := c.store.SaveWiFiCredentials(ctx, ssid, password); err != nil {
		return actions.Failed("Failed to save WiFi credentials: %v", err)
	}
	c.bus.Publish(eventbus.Event{Kind: eventbus.KindWiFiCredentialsFound, SubjectID: ssid})
	return actions.Succeeded("WiFi credentials saved for %s", ssid)
}

// saveDeviceConfig params: team id, api key, region.
func (c *Controller) saveDeviceConfig(ctx context.Context, a actions.Action) actions.Result {
	cfg := store.DeviceConfig{TeamID: a.Param(0), APIKey: a.Param(1), Region: a.Param(2)}
	if err := c.store.SaveDeviceConfig(ctx, cfg); err != nil {
		return actions.Failed("Failed to save device configuration: %v", err)
	}
	c.bus.Publish(eventbus.Event{Kind: eventbus.KindDeviceConfigChanged, SubjectID: cfg.TeamID})
	return actions.Succeeded("Device configuration saved")
}

// saveInsight params: id, title.
func (c *Controller) saveInsight(ctx context.Context, a actions.Action) actions.Result {
	id, title := a.Param(0), a.Param(1)
	if err := c.store.SaveInsight(ctx, id, title); err != nil {
		return actions.Failed("Failed to save insight %s: %v", id, err)
	}
	c.bus.Publish(eventbus.Event{Kind: eventbus.KindInsightAdded, SubjectID: id, Payload: title})
	return actions.Succeeded("Insight %s saved", id)
}

func (c *Controller) deleteInsight(ctx context.Context, a actions.Action) actions.Result {
	id := a.Param(0)
	err := c.store.DeleteInsight(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return actions.Failed("Insight %s not found", id)
	case err != nil:
		return actions.Failed("Failed to delete insight %s: %v", id, err)
	}
	c.bus.Publish(eventbus.Event{Kind: eventbus.KindInsightDeleted, SubjectID: id})
	return actions.Succeeded("Insight %s deleted", id)
}

func (c *Controller) checkUpdate(context.Context, actions.Action) actions.Result {
	err := c.ota.StartCheck()
	if err == nil {
		return actions.Succeeded("Update check started")
	}
	return actions.Failed("%s", c.updateRejection(err))
}

// startUpdate params: optional download URL.
func (c *Controller) startUpdate(_ context.Context, a actions.Action) actions.Result {
	err := c.ota.StartUpdate(strings.TrimSpace(a.Param(0)))
	if err == nil {
		return actions.Succeeded("Update started")
	}
	return actions.Failed("%s", c.updateRejection(err))
}

// updateRejection words the cause returned by the update manager.
func (c *Controller) updateRejection(err error) string {
	switch {
	case errors.Is(err, ota.ErrBusy):
		return "Update operation already in progress"
	case errors.Is(err, ota.ErrRestartPending):
		return "Update installed, waiting for restart"
	case errors.Is(err, ota.ErrUpdateAvailable):
		return "Update already available, start the update to install it"
	case errors.Is(err, ota.ErrNoUpdate):
		return "No update available"
	case errors.Is(err, ota.ErrLinkDown):
		// The manager has just written the network error into its status.
		return c.ota.Status().Message
	default:
		return err.Error()
	}
}
