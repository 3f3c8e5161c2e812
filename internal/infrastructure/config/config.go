package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the home automation server.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains the HTTP ingestion server settings.
type ServerConfig struct {
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	Timeouts ServerTimeoutConfig `yaml:"timeouts"`
}

// ServerTimeoutConfig contains HTTP timeout settings in seconds.
type ServerTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HeartbeatConfig controls when a silent device is considered dead.
type HeartbeatConfig struct {
	// Timeout is the maximum silence in seconds before a device counts as dead.
	Timeout int `yaml:"timeout"`
}

// DispatchConfig contains settings for the dispatch subsystem and the
// executor channel connecting it to the ingestion process.
type DispatchConfig struct {
	// Socket is the unix datagram socket path carrying serialized actions.
	Socket string `yaml:"socket"`

	// Timeout is the per-request network timeout in seconds.
	Timeout int `yaml:"timeout"`

	// Retries is the number of additional attempts after a transport failure.
	Retries int `yaml:"retries"`

	// QueueSize is the per-device request queue capacity.
	QueueSize int `yaml:"queue_size"`

	// Managed makes homeautod spawn and supervise the dispatch process
	// itself instead of expecting it to be started separately.
	Managed bool `yaml:"managed"`

	// Binary is the dispatchd executable path, used when Managed is set.
	Binary string `yaml:"binary"`

	// RestartDelay is how long to wait (seconds) before restarting a
	// crashed managed dispatch process.
	RestartDelay int `yaml:"restart_delay"`
}

// MQTTConfig contains MQTT broker connection settings for the optional
// report ingestion bridge.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains settings for the optional pin telemetry sink.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HOMEAUTO_SECTION_KEY
// For example: HOMEAUTO_DATABASE_PATH, HOMEAUTO_SERVER_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
// Exported so tests and single-process setups can start from a known state.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: ServerTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/homeauto.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Heartbeat: HeartbeatConfig{
			Timeout: 60,
		},
		Dispatch: DispatchConfig{
			Socket:       "/tmp/home_automation.socket",
			Timeout:      10,
			Retries:      2,
			QueueSize:    64,
			RestartDelay: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homeauto-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HOMEAUTO_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("HOMEAUTO_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("HOMEAUTO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Database
	if v := os.Getenv("HOMEAUTO_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Dispatch
	if v := os.Getenv("HOMEAUTO_DISPATCH_SOCKET"); v != "" {
		cfg.Dispatch.Socket = v
	}

	// MQTT
	if v := os.Getenv("HOMEAUTO_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOMEAUTO_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOMEAUTO_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("HOMEAUTO_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if c.Heartbeat.Timeout <= 0 {
		errs = append(errs, "heartbeat.timeout must be positive")
	}

	if c.Dispatch.Socket == "" {
		errs = append(errs, "dispatch.socket is required")
	}
	if c.Dispatch.Retries < 0 {
		errs = append(errs, "dispatch.retries must not be negative")
	}
	if c.Dispatch.Timeout <= 0 {
		errs = append(errs, "dispatch.timeout must be positive")
	}
	if c.Dispatch.Managed && c.Dispatch.Binary == "" {
		errs = append(errs, "dispatch.binary is required when dispatch.managed is set")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// HeartbeatTimeout returns the device heartbeat timeout as a Duration.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Heartbeat.Timeout) * time.Second
}

// DispatchTimeout returns the per-request dispatch timeout as a Duration.
func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.Dispatch.Timeout) * time.Second
}

// GetReadTimeout returns the server read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the server write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the server idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}
