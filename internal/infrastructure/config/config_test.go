package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
bridge:
  id: "venstar-test"
thermostats:
  - id: "hallway"
    name: "Hallway"
    address: "192.168.1.40"
    poll_interval: 30
  - id: "office"
    address: "http://192.168.1.41:8080/"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
  qos: 1
api:
  port: 8090
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "venstar-test" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "venstar-test")
	}
	if len(cfg.Thermostats) != 2 {
		t.Fatalf("len(Thermostats) = %d, want 2", len(cfg.Thermostats))
	}

	hall := cfg.Thermostats[0]
	if hall.BaseURL() != "http://192.168.1.40" {
		t.Errorf("BaseURL() = %q", hall.BaseURL())
	}
	if hall.GetPollInterval() != 30*time.Second {
		t.Errorf("GetPollInterval() = %v, want 30s", hall.GetPollInterval())
	}
	if hall.GetRequestTimeout() != DefaultRequestTimeout {
		t.Errorf("GetRequestTimeout() = %v, want default", hall.GetRequestTimeout())
	}

	office := cfg.Thermostats[1]
	if office.BaseURL() != "http://192.168.1.41:8080" {
		t.Errorf("BaseURL() = %q", office.BaseURL())
	}
	if office.GetPollInterval() != DefaultPollInterval {
		t.Errorf("GetPollInterval() = %v, want default 60s", office.GetPollInterval())
	}
	if office.DisplayName() != "office" {
		t.Errorf("DisplayName() = %q, want id fallback", office.DisplayName())
	}

	// Defaults survive a partial file.
	if cfg.Control.FallbackHeatC != 21 || cfg.Control.FallbackCoolC != 24 {
		t.Errorf("control fallbacks = %.0f/%.0f, want 21/24", cfg.Control.FallbackHeatC, cfg.Control.FallbackCoolC)
	}
	if cfg.Control.MinSetpointDelta != 2 {
		t.Errorf("Control.MinSetpointDelta = %d, want 2", cfg.Control.MinSetpointDelta)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, `
bridge:
  id: "venstar"
database:
  path: "/tmp/test.db"
`))
	if err == nil {
		t.Fatal("Load() expected validation error for missing thermostats, got nil")
	}
	if !strings.Contains(err.Error(), "thermostat") {
		t.Errorf("error = %v, want mention of thermostats", err)
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Thermostats = []ThermostatConfig{{ID: "hallway", Address: "192.168.1.40"}}
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"valid with jwt", func(c *Config) { c.Security.JWT.Secret = validJWTSecret }, false},
		{"missing bridge ID", func(c *Config) { c.Bridge.ID = "" }, true},
		{"no thermostats", func(c *Config) { c.Thermostats = nil }, true},
		{"thermostat without id", func(c *Config) { c.Thermostats[0].ID = "" }, true},
		{"thermostat id with slash", func(c *Config) { c.Thermostats[0].ID = "a/b" }, true},
		{"thermostat without address", func(c *Config) { c.Thermostats[0].Address = "" }, true},
		{"duplicate thermostat", func(c *Config) {
			c.Thermostats = append(c.Thermostats, ThermostatConfig{ID: "hallway", Address: "192.168.1.41"})
		}, true},
		{"negative poll interval", func(c *Config) { c.Thermostats[0].PollInterval = -1 }, true},
		{"inverted range", func(c *Config) { c.Control.MinTempC = 35 }, true},
		{"inverted fallbacks", func(c *Config) { c.Control.FallbackHeatC = 25 }, true},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"JWT secret too short", func(c *Config) { c.Security.JWT.Secret = "short" }, true},
		{"homekit bad pin", func(c *Config) {
			c.HomeKit.Enabled = true
			c.HomeKit.Pin = "1234"
		}, true},
		{"homekit valid", func(c *Config) { c.HomeKit.Enabled = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateAggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Bridge.ID = ""
	cfg.Database.Path = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if !strings.Contains(err.Error(), "bridge.id") || !strings.Contains(err.Error(), "database.path") {
		t.Errorf("error = %v, want both problems reported", err)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetHealthInterval(); got != DefaultHealthInterval {
		t.Errorf("GetHealthInterval() = %v, want default", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("VENSTAR_BRIDGE_ID", "venstar-upstairs")
	t.Setenv("VENSTAR_BRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("VENSTAR_BRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("VENSTAR_BRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("VENSTAR_BRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("VENSTAR_BRIDGE_API_HOST", "192.168.1.1")
	t.Setenv("VENSTAR_BRIDGE_API_PORT", "9000")
	t.Setenv("VENSTAR_BRIDGE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("VENSTAR_BRIDGE_JWT_SECRET", "jwt-secret")
	t.Setenv("VENSTAR_BRIDGE_HOMEKIT_PIN", "11122333")

	applyEnvOverrides(cfg)

	checks := []struct {
		name, got, want string
	}{
		{"Bridge.ID", cfg.Bridge.ID, "venstar-upstairs"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
		{"HomeKit.Pin", cfg.HomeKit.Pin, "11122333"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Bridge.ID == "" {
		t.Error("defaultConfig should have non-empty Bridge.ID")
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("defaultConfig API.Port = %d, want 8090", cfg.API.Port)
	}
}
