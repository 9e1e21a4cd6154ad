package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"deskhogd/internal/config"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := loadConfig(flags{})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Queue.MaxSize != 5 {
		t.Fatalf("unexpected defaults: addr=%q max=%d", cfg.Addr, cfg.Queue.MaxSize)
	}
	if cfg.Update.CurrentVersion != version {
		t.Fatalf("current version should default to build version, got %q", cfg.Update.CurrentVersion)
	}
	if cfg.CORS.Enabled {
		t.Fatalf("CORS must be off by default")
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deskhogd.yaml")
	body := "addr: \":9000\"\ndb_path: file.db\nlog:\n  level: warn\nqueue:\n  poll_interval: 250ms\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := loadConfig(flags{configPath: path, addr: ":9100", logLevel: "debug", corsOrigins: "http://a, http://b"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("addr flag not applied: %q", cfg.Addr)
	}
	if cfg.DBPath != "file.db" {
		t.Fatalf("db_path from file lost: %q", cfg.DBPath)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level flag not applied: %q", cfg.Log.Level)
	}
	if cfg.Queue.PollInterval.Std() != 250*time.Millisecond {
		t.Fatalf("poll interval from file lost: %s", cfg.Queue.PollInterval)
	}
	if !cfg.CORS.Enabled || len(cfg.CORS.Origins) != 2 {
		t.Fatalf("cors flag not applied: %+v", cfg.CORS)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	if _, err := loadConfig(flags{configPath: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := out.String(); got != version+"\n" {
		t.Fatalf("version output %q", got)
	}
}

func TestWiFiBackend(t *testing.T) {
	if c, s := wifiBackend(configWiFi("none")); c != nil || s != nil {
		t.Fatalf("none backend must return nils")
	}
	if c, s := wifiBackend(configWiFi("probe")); c == nil || s != nil {
		t.Fatalf("probe backend: connector=%v scanner=%v", c, s)
	}
	if c, s := wifiBackend(configWiFi("nmcli")); c == nil || s == nil {
		t.Fatalf("nmcli backend must connect and scan")
	}
}

func configWiFi(connector string) config.WiFiConfig {
	return config.WiFiConfig{Connector: connector, ProbeAddr: "127.0.0.1:1"}
}
