package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Venstar bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge      BridgeConfig       `yaml:"bridge"`
	Thermostats []ThermostatConfig `yaml:"thermostats"`
	Control     ControlConfig      `yaml:"control"`
	Database    DatabaseConfig     `yaml:"database"`
	MQTT        MQTTConfig         `yaml:"mqtt"`
	API         APIConfig          `yaml:"api"`
	WebSocket   WebSocketConfig    `yaml:"websocket"`
	InfluxDB    InfluxDBConfig     `yaml:"influxdb"`
	Logging     LoggingConfig      `yaml:"logging"`
	Security    SecurityConfig     `yaml:"security"`
	HomeKit     HomeKitConfig      `yaml:"homekit"`
}

// BridgeConfig identifies this bridge instance on the automation bus.
type BridgeConfig struct {
	ID             string `yaml:"id"`
	HealthInterval int    `yaml:"health_interval"` // seconds
}

// ThermostatConfig describes one controller on the local network.
type ThermostatConfig struct {
	// ID is the stable device identifier used in topics, API paths and history.
	ID string `yaml:"id"`

	// Name is the human-readable name (HomeKit accessory name).
	Name string `yaml:"name"`

	// Address is the controller's host or host:port. A bare host is
	// reached over plain HTTP.
	Address string `yaml:"address"`

	// PollInterval is the scheduled refresh period in seconds. Default: 60.
	PollInterval int `yaml:"poll_interval"`

	// RequestTimeout bounds each HTTP request in seconds. Default: 5.
	RequestTimeout int `yaml:"request_timeout"`

	// MinSetpointDelta overrides control.min_setpoint_delta for this device.
	MinSetpointDelta int `yaml:"min_setpoint_delta,omitempty"`
}

// ControlConfig bounds setpoint commands and supplies fallback setpoints.
// Temperatures are Celsius; the delta is in device-unit degrees.
type ControlConfig struct {
	MinSetpointDelta int     `yaml:"min_setpoint_delta"`
	FallbackHeatC    float64 `yaml:"fallback_heat_c"`
	FallbackCoolC    float64 `yaml:"fallback_cool_c"`
	MinTempC         float64 `yaml:"min_temp_c"`
	MaxTempC         float64 `yaml:"max_temp_c"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT verification settings. Tokens are minted by the
// site's identity service; the bridge only verifies them. An empty secret
// leaves the API unauthenticated.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// HomeKitConfig controls the HomeKit accessory server.
type HomeKitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Pin         string `yaml:"pin"`
	StoragePath string `yaml:"storage_path"`
	Addr        string `yaml:"addr"`
}

// Defaults applied to thermostats that leave timing fields unset.
const (
	DefaultPollInterval   = 60 * time.Second
	DefaultRequestTimeout = 5 * time.Second
	DefaultHealthInterval = 30 * time.Second
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VENSTAR_BRIDGE_SECTION_KEY
// For example: VENSTAR_BRIDGE_DATABASE_PATH, VENSTAR_BRIDGE_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "venstar",
			HealthInterval: 30,
		},
		Control: ControlConfig{
			MinSetpointDelta: 2,
			FallbackHeatC:    21,
			FallbackCoolC:    24,
			MinTempC:         10,
			MaxTempC:         32,
		},
		Database: DatabaseConfig{
			Path:        "./data/venstar-bridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-venstar",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45, // longer than a confirmed command write
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		HomeKit: HomeKitConfig{
			Pin:         "00102003",
			StoragePath: "./data/homekit",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VENSTAR_BRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Bridge
	if v := os.Getenv("VENSTAR_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}

	// Database
	if v := os.Getenv("VENSTAR_BRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("VENSTAR_BRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VENSTAR_BRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VENSTAR_BRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("VENSTAR_BRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("VENSTAR_BRIDGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("VENSTAR_BRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("VENSTAR_BRIDGE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// HomeKit
	if v := os.Getenv("VENSTAR_BRIDGE_HOMEKIT_PIN"); v != "" {
		cfg.HomeKit.Pin = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Bridge validation
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	// Thermostat validation
	if len(c.Thermostats) == 0 {
		errs = append(errs, "at least one thermostat is required")
	}
	seen := make(map[string]bool, len(c.Thermostats))
	for i, t := range c.Thermostats {
		switch {
		case t.ID == "":
			errs = append(errs, fmt.Sprintf("thermostats[%d].id is required", i))
		case strings.ContainsAny(t.ID, "/+# "):
			errs = append(errs, fmt.Sprintf("thermostats[%d].id must not contain '/', '+', '#' or spaces", i))
		case seen[t.ID]:
			errs = append(errs, fmt.Sprintf("thermostats[%d].id %q is duplicated", i, t.ID))
		}
		seen[t.ID] = true

		if t.Address == "" {
			errs = append(errs, fmt.Sprintf("thermostats[%d].address is required", i))
		}
		if t.PollInterval < 0 || t.RequestTimeout < 0 || t.MinSetpointDelta < 0 {
			errs = append(errs, fmt.Sprintf("thermostats[%d] timing and delta values must not be negative", i))
		}
	}

	// Control validation
	if c.Control.MinSetpointDelta < 0 {
		errs = append(errs, "control.min_setpoint_delta must not be negative")
	}
	if c.Control.MinTempC >= c.Control.MaxTempC {
		errs = append(errs, "control.min_temp_c must be below control.max_temp_c")
	}
	if c.Control.FallbackHeatC >= c.Control.FallbackCoolC {
		errs = append(errs, "control.fallback_heat_c must be below control.fallback_cool_c")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Security validation. The secret is optional, but a weak one is refused.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	// HomeKit validation
	if c.HomeKit.Enabled {
		if !isDigits(c.HomeKit.Pin, 8) {
			errs = append(errs, "homekit.pin must be exactly 8 digits")
		}
		if c.HomeKit.StoragePath == "" {
			errs = append(errs, "homekit.storage_path is required when homekit is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetHealthInterval returns the bridge health publish interval.
func (c *Config) GetHealthInterval() time.Duration {
	if c.Bridge.HealthInterval <= 0 {
		return DefaultHealthInterval
	}
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetPollInterval returns the scheduled refresh period for the thermostat.
func (t ThermostatConfig) GetPollInterval() time.Duration {
	if t.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(t.PollInterval) * time.Second
}

// GetRequestTimeout returns the per-request HTTP timeout for the thermostat.
func (t ThermostatConfig) GetRequestTimeout() time.Duration {
	if t.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(t.RequestTimeout) * time.Second
}

// BaseURL returns the controller's base URL.
func (t ThermostatConfig) BaseURL() string {
	if strings.HasPrefix(t.Address, "http://") || strings.HasPrefix(t.Address, "https://") {
		return strings.TrimRight(t.Address, "/")
	}
	return "http://" + strings.TrimRight(t.Address, "/")
}

// DisplayName returns Name, or the ID when no name is configured.
func (t ThermostatConfig) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}
