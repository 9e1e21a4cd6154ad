package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"deskhogd/internal/actions"
	"deskhogd/internal/common/fsutil"
	"deskhogd/internal/config"
	"deskhogd/internal/device"
	"deskhogd/internal/display"
	"deskhogd/internal/httpapi"
	"deskhogd/internal/logging"
	"deskhogd/internal/mqttbridge"
	"deskhogd/internal/staging"
	"deskhogd/internal/store"
	"deskhogd/internal/timesync"
	"deskhogd/internal/uidispatch"
	"deskhogd/internal/wifi"
)

// exitRestart tells the supervisor to start the daemon again so the staged
// firmware is picked up.
const exitRestart = 3

var errRestart = errors.New("restart requested to boot staged firmware")

func runServe(cmd *cobra.Command, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log, "deskhogd", version, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	dbPath, err := fsutil.EnsureParent(cfg.DBPath)
	if err != nil {
		return err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	stagingDir, err := fsutil.ExpandHome(cfg.Update.StagingDir)
	if err != nil {
		return err
	}
	area, err := staging.NewArea(stagingDir, uint64(cfg.Update.ReserveMB)<<20)
	if err != nil {
		return err
	}
	m, ok, err := area.Consume()
	if ok {
		log.Info().Str("version", m.Version).Str("image", area.ImagePath()).Msg("staged firmware booted")
	}
	if err != nil {
		log.Warn().Err(err).Msg("staging area not cleared")
	}

	connector, scanner := wifiBackend(cfg.WiFi)
	ui := uidispatch.New(uidispatch.Config{Capacity: cfg.UI.Capacity, Logger: log})

	ctrl, err := device.New(device.Config{
		Store:     st,
		Scanner:   scanner,
		Connector: connector,
		Clock:     timesync.New(log),
		Staging:   area,
		Restart: func() {
			log.Warn().Msg("restarting to boot staged firmware")
			cancel(errRestart)
		},
		Update: device.UpdateOptions{
			CurrentVersion:  cfg.Update.CurrentVersion,
			ReleasesURL:     cfg.Update.ReleasesURL,
			AssetName:       cfg.Update.AssetName,
			ConnectTimeout:  cfg.Update.ConnectTimeout.Std(),
			RequestTimeout:  cfg.Update.RequestTimeout.Std(),
			DownloadTimeout: cfg.Update.DownloadTimeout.Std(),
			RestartDelay:    cfg.Update.RestartDelay.Std(),
			CheckSchedule:   cfg.Update.CheckSchedule,
		},
		QueueSize:         cfg.Queue.MaxSize,
		QueuePollInterval: cfg.Queue.PollInterval.Std(),
		EventCapacity:     cfg.Events.Capacity,
		EventPollInterval: cfg.Events.PollInterval.Std(),
		UI:                ui,
		Version:           version,
		Logger:            log,
	})
	if err != nil {
		return err
	}

	screen := display.NewScreen()
	screen.OnButton = func(name string) { pressButton(ctrl, log, name) }
	panel := display.AttachStatusPanel(ctrl.Bus(), ui, screen)
	defer panel.Close()
	loop := display.NewLoop(display.LoopConfig{UI: ui, Surface: screen, FrameInterval: cfg.UI.FrameInterval.Std(), Logger: log})

	if cfg.MQTT.Broker != "" {
		bridge, err := mqttbridge.Connect(mqttbridge.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      byte(cfg.MQTT.QoS),
			Device:   cfg.DeviceName,
			Logger:   log,
		})
		if err != nil {
			// Run without the mirror.
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("mqtt mirror disabled")
		} else {
			bridge.Attach(ctrl.Bus())
			defer bridge.Close()
		}
	}

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.HTTP.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)

	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Stop()

	g, gctx := errgroup.WithContext(ctx)
	httpapi.SetBaseContext(gctx)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(ctrl),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("device", cfg.DeviceName).Msg("deskhogd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Std())
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(context.Cause(ctx), errRestart) {
		return errRestart
	}
	return err
}

// wifiBackend picks the connector and scanner for the configured backend.
func wifiBackend(c config.WiFiConfig) (wifi.Connector, wifi.Scanner) {
	switch c.Connector {
	case "nmcli":
		n := wifi.NMCLI{Interface: c.Interface}
		return n, n
	case "probe":
		return wifi.Probe{Addr: c.ProbeAddr}, nil
	default:
		return nil, nil
	}
}

// pressButton maps the device's physical buttons onto actions.
func pressButton(ctrl *device.Controller, log zerolog.Logger, name string) {
	var k actions.Kind
	switch name {
	case "check":
		k = actions.KindCheckUpdate
	case "update":
		k = actions.KindStartUpdate
	case "scan":
		k = actions.KindScanNetworks
	default:
		return
	}
	if _, err := ctrl.Submit(k); err != nil {
		log.Warn().Err(err).Str("button", name).Msg("button action not queued")
	}
}
