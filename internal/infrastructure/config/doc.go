// Package config handles loading and validating the Venstar bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with VENSTAR_BRIDGE_* environment variables
//   - Validation of required fields (all problems reported at once)
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, JWT secret, InfluxDB token) should be
//     set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/venstar.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, t := range cfg.Thermostats {
//	    fmt.Println(t.ID, t.BaseURL(), t.GetPollInterval())
//	}
package config
