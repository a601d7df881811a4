package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/claude/repcounter/internal/repcount"
	"github.com/claude/repcounter/internal/session"
	"github.com/claude/repcounter/internal/teach"
	"github.com/claude/repcounter/internal/tracking"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Counter   CounterConfig   `yaml:"counter"`
	Teach     TeachConfig     `yaml:"teach"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// StorageConfig selects where taught profiles live. "sqlite" keeps them in a
// file under Path; "postgres" uses the database section.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type MQTTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	PoseTopic  string `yaml:"pose_topic"`
	EventTopic string `yaml:"event_topic"`
}

type CounterConfig struct {
	ConfidenceThreshold  float64 `yaml:"confidence_threshold"`
	SmoothingAlpha       float64 `yaml:"smoothing_alpha"`
	HysteresisDegrees    float64 `yaml:"hysteresis_degrees"`
	LostAfterFrames      int     `yaml:"lost_after_frames"`
	RecoverAfterFrames   int     `yaml:"recover_after_frames"`
	HoldWindowFrames     int     `yaml:"hold_window_frames"`
	HoldToleranceDegrees float64 `yaml:"hold_tolerance_degrees"`
}

type TeachConfig struct {
	CaptureWindow    time.Duration `yaml:"capture_window"`
	MaxSpreadDegrees float64       `yaml:"max_spread_degrees"`
	MinRangeDegrees  float64       `yaml:"min_range_degrees"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Default returns the configuration used for any key the file leaves out.
func Default() *Config {
	counter := repcount.DefaultOptions()
	tr := tracking.DefaultConfig()
	td := teach.DefaultOptions()
	return &Config{
		Server:    ServerConfig{Host: "127.0.0.1", Port: 8080},
		Storage:   StorageConfig{Driver: DriverSQLite, Path: "data"},
		Database:  DatabaseConfig{Port: 5432, SSLMode: "disable"},
		Tailscale: TailscaleConfig{Hostname: "repcounter", StateDir: "tsnet"},
		MQTT: MQTTConfig{
			ClientID:   "repcounter",
			PoseTopic:  "repcounter/pose",
			EventTopic: "repcounter/reps",
		},
		Counter: CounterConfig{
			ConfidenceThreshold:  counter.MinConfidence,
			SmoothingAlpha:       counter.SmoothingAlpha,
			LostAfterFrames:      tr.LostAfter,
			RecoverAfterFrames:   tr.RecoverAfter,
			HoldWindowFrames:     counter.HoldWindowFrames,
			HoldToleranceDegrees: counter.HoldToleranceDegrees,
		},
		Teach: TeachConfig{
			CaptureWindow:    td.CaptureWindow,
			MaxSpreadDegrees: td.MaxSpreadDegrees,
			MinRangeDegrees:  td.MinRangeDegrees,
		},
	}
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. Env vars use the prefix REPCOUNTER_ and
// underscore-separated paths:
//
//	REPCOUNTER_SERVER_HOST, REPCOUNTER_SERVER_PORT, REPCOUNTER_AUTH_API_KEY,
//	REPCOUNTER_STORAGE_DRIVER, REPCOUNTER_STORAGE_PATH,
//	REPCOUNTER_DB_HOST, REPCOUNTER_DB_PORT, REPCOUNTER_DB_NAME,
//	REPCOUNTER_DB_USER, REPCOUNTER_DB_PASSWORD, REPCOUNTER_DB_SSLMODE,
//	REPCOUNTER_TAILSCALE_ENABLED, REPCOUNTER_MQTT_ENABLED, REPCOUNTER_MQTT_BROKER
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPCOUNTER_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPCOUNTER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPCOUNTER_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("REPCOUNTER_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("REPCOUNTER_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("REPCOUNTER_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("REPCOUNTER_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("REPCOUNTER_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("REPCOUNTER_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("REPCOUNTER_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REPCOUNTER_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("REPCOUNTER_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("REPCOUNTER_MQTT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MQTT.Enabled = b
		}
	}
	if v := os.Getenv("REPCOUNTER_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Storage.Driver)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if a := c.Counter.SmoothingAlpha; a <= 0 || a >= 1 {
		return fmt.Errorf("counter.smoothing_alpha must be in (0, 1), got %v", a)
	}
	if t := c.Counter.ConfidenceThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("counter.confidence_threshold must be in (0, 1], got %v", t)
	}
	if c.Counter.HysteresisDegrees < 0 {
		return fmt.Errorf("counter.hysteresis_degrees must not be negative")
	}
	if c.Teach.CaptureWindow <= 0 {
		return fmt.Errorf("teach.capture_window must be positive")
	}
	return nil
}

// CounterOptions maps the counter section onto the state machine's options.
func (c *Config) CounterOptions() repcount.Options {
	return repcount.Options{
		MinConfidence:        c.Counter.ConfidenceThreshold,
		SmoothingAlpha:       c.Counter.SmoothingAlpha,
		HoldWindowFrames:     c.Counter.HoldWindowFrames,
		HoldToleranceDegrees: c.Counter.HoldToleranceDegrees,
		Tracking: tracking.Config{
			MinConfidence: c.Counter.ConfidenceThreshold,
			LostAfter:     c.Counter.LostAfterFrames,
			RecoverAfter:  c.Counter.RecoverAfterFrames,
		},
	}
}

// TeachOptions maps the teach section onto the calibrator's options. The
// confidence threshold and smoothing are shared with the counter.
func (c *Config) TeachOptions() teach.Options {
	return teach.Options{
		MinConfidence:    c.Counter.ConfidenceThreshold,
		SmoothingAlpha:   c.Counter.SmoothingAlpha,
		CaptureWindow:    c.Teach.CaptureWindow,
		MaxSpreadDegrees: c.Teach.MaxSpreadDegrees,
		MinRangeDegrees:  c.Teach.MinRangeDegrees,
	}
}

// SessionOptions bundles everything the session manager needs.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		Counter:           c.CounterOptions(),
		Teach:             c.TeachOptions(),
		HysteresisDegrees: c.Counter.HysteresisDegrees,
	}
}
