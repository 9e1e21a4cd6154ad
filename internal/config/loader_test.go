package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `addr: ":9999"
device_name: desk-1
db_path: /var/lib/deskhog/db
log:
  level: debug
  format: console
queue:
  max_size: 7
  poll_interval: 50ms
update:
  current_version: v1.2.3
  check_schedule: "@every 6h"
  download_timeout: 3m
wifi:
  connector: probe
  probe_addr: 10.0.0.1:53
mqtt:
  broker: tcp://localhost:1883
  qos: 1
cors:
  enabled: true
  origins: ["http://a", "http://b"]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.DeviceName != "desk-1" || cfg.DBPath != "/var/lib/deskhog/db" {
		t.Fatalf("unexpected top level: %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Fatalf("unexpected log: %+v", cfg.Log)
	}
	if cfg.Queue.MaxSize != 7 || cfg.Queue.PollInterval.Std() != 50*time.Millisecond {
		t.Fatalf("unexpected queue: %+v", cfg.Queue)
	}
	if cfg.Update.CurrentVersion != "v1.2.3" || cfg.Update.CheckSchedule != "@every 6h" || cfg.Update.DownloadTimeout.Std() != 3*time.Minute {
		t.Fatalf("unexpected update: %+v", cfg.Update)
	}
	if cfg.WiFi.Connector != "probe" || cfg.WiFi.ProbeAddr != "10.0.0.1:53" {
		t.Fatalf("unexpected wifi: %+v", cfg.WiFi)
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" || cfg.MQTT.QoS != 1 {
		t.Fatalf("unexpected mqtt: %+v", cfg.MQTT)
	}
	if !cfg.CORS.Enabled || len(cfg.CORS.Origins) != 2 {
		t.Fatalf("unexpected cors: %+v", cfg.CORS)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","db_path":"/m","events":{"capacity":20,"poll_interval":"25ms"},"ui":{"frame_interval":1000000}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.DBPath != "/m" || cfg.Events.Capacity != 20 || cfg.Events.PollInterval.Std() != 25*time.Millisecond {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.UI.FrameInterval.Std() != time.Millisecond {
		t.Fatalf("numeric duration: got %v", cfg.UI.FrameInterval)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\ndevice_name=\"desk-2\"\n[update]\nreleases_url=\"https://example.invalid/releases\"\nrestart_delay=\"2s\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.DeviceName != "desk-2" || cfg.Update.ReleasesURL != "https://example.invalid/releases" || cfg.Update.RestartDelay.Std() != 2*time.Second {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Config{Addr: ":1", Queue: QueueConfig{MaxSize: 9}}.Defaults()
	if cfg.Addr != ":1" || cfg.Queue.MaxSize != 9 {
		t.Fatalf("defaults overwrote explicit values: %+v", cfg)
	}
	if cfg.Events.Capacity != 10 || cfg.Events.PollInterval.Std() != 100*time.Millisecond {
		t.Fatalf("events defaults: %+v", cfg.Events)
	}
	if cfg.UI.FrameInterval.Std() != 5*time.Millisecond || cfg.Update.AssetName != "firmware.bin" {
		t.Fatalf("ui/update defaults: %+v %+v", cfg.UI, cfg.Update)
	}
	if cfg.Update.ConnectTimeout.Std() != 10*time.Second || cfg.Update.RequestTimeout.Std() != 20*time.Second {
		t.Fatalf("timeouts: %+v", cfg.Update)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{}.Defaults()
	bad := base
	bad.WiFi.Connector = "carrier-pigeon"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected connector error")
	}
	bad = base
	bad.Log.Format = "xml"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected log format error")
	}
	bad = base
	bad.MQTT.QoS = 3
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected qos error")
	}
}
