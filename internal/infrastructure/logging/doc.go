// Package logging provides structured logging for the Venstar bridge.
//
// It wraps log/slog with the bridge's defaults: JSON or text output, level
// filtering, service and version fields on every entry, and redaction of
// attributes whose keys name credentials (password, secret, token, pin).
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components tag their entries with ForComponent, and per-thermostat code
// adds ForDevice:
//
//	log := logging.New(cfg.Logging, version).ForComponent("venstar")
//	log.ForDevice("hallway").Warn("poll failed", "error", err)
package logging
