package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by Defaults.
type Config struct {
	Addr       string `json:"addr" yaml:"addr" toml:"addr"`
	DeviceName string `json:"device_name" yaml:"device_name" toml:"device_name"`
	DBPath     string `json:"db_path" yaml:"db_path" toml:"db_path"`

	Log    LogConfig    `json:"log" yaml:"log" toml:"log"`
	Queue  QueueConfig  `json:"queue" yaml:"queue" toml:"queue"`
	Events EventsConfig `json:"events" yaml:"events" toml:"events"`
	UI     UIConfig     `json:"ui" yaml:"ui" toml:"ui"`
	Update UpdateConfig `json:"update" yaml:"update" toml:"update"`
	WiFi   WiFiConfig   `json:"wifi" yaml:"wifi" toml:"wifi"`
	MQTT   MQTTConfig   `json:"mqtt" yaml:"mqtt" toml:"mqtt"`
	CORS   CORSConfig   `json:"cors" yaml:"cors" toml:"cors"`
	HTTP   HTTPConfig   `json:"http" yaml:"http" toml:"http"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"` // json | console
}

type QueueConfig struct {
	MaxSize      int      `json:"max_size" yaml:"max_size" toml:"max_size"`
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
}

type EventsConfig struct {
	Capacity     int      `json:"capacity" yaml:"capacity" toml:"capacity"`
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
}

type UIConfig struct {
	Capacity      int      `json:"capacity" yaml:"capacity" toml:"capacity"`
	FrameInterval Duration `json:"frame_interval" yaml:"frame_interval" toml:"frame_interval"`
}

type UpdateConfig struct {
	CurrentVersion  string   `json:"current_version" yaml:"current_version" toml:"current_version"`
	ReleasesURL     string   `json:"releases_url" yaml:"releases_url" toml:"releases_url"`
	AssetName       string   `json:"asset_name" yaml:"asset_name" toml:"asset_name"`
	StagingDir      string   `json:"staging_dir" yaml:"staging_dir" toml:"staging_dir"`
	ReserveMB       int      `json:"reserve_mb" yaml:"reserve_mb" toml:"reserve_mb"`
	CheckSchedule   string   `json:"check_schedule" yaml:"check_schedule" toml:"check_schedule"`
	ConnectTimeout  Duration `json:"connect_timeout" yaml:"connect_timeout" toml:"connect_timeout"`
	RequestTimeout  Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	DownloadTimeout Duration `json:"download_timeout" yaml:"download_timeout" toml:"download_timeout"`
	RestartDelay    Duration `json:"restart_delay" yaml:"restart_delay" toml:"restart_delay"`
}

type WiFiConfig struct {
	Connector string `json:"connector" yaml:"connector" toml:"connector"` // nmcli | probe | none
	Interface string `json:"interface" yaml:"interface" toml:"interface"`
	ProbeAddr string `json:"probe_addr" yaml:"probe_addr" toml:"probe_addr"`
}

type MQTTConfig struct {
	Broker   string `json:"broker" yaml:"broker" toml:"broker"`
	ClientID string `json:"client_id" yaml:"client_id" toml:"client_id"`
	Username string `json:"username" yaml:"username" toml:"username"`
	Password string `json:"password" yaml:"password" toml:"password"`
	QoS      int    `json:"qos" yaml:"qos" toml:"qos"`
}

type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

type HTTPConfig struct {
	MaxBodyBytes    int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Defaults fills every unspecified field.
func (c Config) Defaults() Config {
	def := func(s *string, v string) {
		if *s == "" {
			*s = v
		}
	}
	defDur := func(d *Duration, v time.Duration) {
		if *d <= 0 {
			*d = Duration(v)
		}
	}
	defInt := func(i *int, v int) {
		if *i <= 0 {
			*i = v
		}
	}
	def(&c.Addr, ":8080")
	def(&c.DeviceName, "deskhog")
	def(&c.DBPath, "deskhog.db")
	def(&c.Log.Level, "info")
	def(&c.Log.Format, "json")

	defInt(&c.Queue.MaxSize, 5)
	defDur(&c.Queue.PollInterval, 100*time.Millisecond)
	defInt(&c.Events.Capacity, 10)
	defDur(&c.Events.PollInterval, 100*time.Millisecond)
	defInt(&c.UI.Capacity, 32)
	defDur(&c.UI.FrameInterval, 5*time.Millisecond)

	def(&c.Update.CurrentVersion, "v0.0.0")
	def(&c.Update.ReleasesURL, "https://api.github.com/repos/PostHog/DeskHog/releases")
	def(&c.Update.AssetName, "firmware.bin")
	def(&c.Update.StagingDir, "staging")
	defDur(&c.Update.ConnectTimeout, 10*time.Second)
	defDur(&c.Update.RequestTimeout, 20*time.Second)
	defDur(&c.Update.DownloadTimeout, 180*time.Second)
	defDur(&c.Update.RestartDelay, time.Second)

	def(&c.WiFi.Connector, "none")
	def(&c.WiFi.ProbeAddr, "1.1.1.1:443")

	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 1 << 20
	}
	defDur(&c.HTTP.ShutdownTimeout, 5*time.Second)
	return c
}

// Validate rejects combinations Defaults cannot repair.
func (c Config) Validate() error {
	switch c.WiFi.Connector {
	case "nmcli", "probe", "none":
	default:
		return fmt.Errorf("wifi.connector must be nmcli, probe or none, got %q", c.WiFi.Connector)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}
