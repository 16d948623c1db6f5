// Gray Logic Venstar Bridge
//
// This is the main entry point for the Venstar thermostat bridge. It polls
// Venstar Explorer Mini controllers on the local network, publishes their
// normalized state over MQTT, and accepts commands from MQTT, the REST API
// and (optionally) HomeKit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nerrad567/gray-logic-venstar/migrations"

	"github.com/nerrad567/gray-logic-venstar/internal/api"
	"github.com/nerrad567/gray-logic-venstar/internal/bridges/venstar"
	"github.com/nerrad567/gray-logic-venstar/internal/history"
	"github.com/nerrad567/gray-logic-venstar/internal/homekit"
	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/venstar.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// Components are torn down in reverse order of startup via defers.
func run(ctx context.Context) error {
	log := logging.Default(version)
	log.Info("starting Venstar bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "thermostats", len(cfg.Thermostats))

	log = logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	historyRepo := history.NewSQLiteRepository(db.DB)

	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.ID)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
	)

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := venstar.NewMetrics()
	registry.MustRegister(metrics)

	bridgeOpts := venstar.BridgeOptions{
		Config:     cfg,
		MQTTClient: &mqttBridgeAdapter{client: mqttClient},
		Version:    version,
		History:    historyRepo,
		Metrics:    metrics,
		Logger:     log.ForComponent("venstar"),
	}
	if influxClient != nil {
		bridgeOpts.Telemetry = influxClient
	}
	bridge, err := venstar.NewBridge(bridgeOpts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()
	log.Info("bridge started", "thermostats", bridge.ThermostatIDs())

	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.ForComponent("api"),
		Bridge:   bridge,
		History:  historyRepo,
		Gatherer: registry,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if cfg.HomeKit.Enabled {
		hk, hkErr := homekit.New(homekit.Options{
			Config:   cfg.HomeKit,
			BridgeID: cfg.Bridge.ID,
			Version:  version,
			Limits:   venstar.LimitsFor(cfg.Control, config.ThermostatConfig{}),
			Bridge:   bridge,
			Logger:   log.ForComponent("homekit"),
		})
		if hkErr != nil {
			return fmt.Errorf("creating HomeKit server: %w", hkErr)
		}
		if startErr := hk.Start(); startErr != nil {
			return fmt.Errorf("starting HomeKit server: %w", startErr)
		}
		defer func() {
			log.Info("stopping HomeKit server")
			hk.Stop()
		}()
	} else {
		log.Info("HomeKit disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the config file path from environment or default.
func getConfigPath() string {
	if path := os.Getenv("VENSTAR_BRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure components are responsive.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// the infrastructure client's handlers return an error, the bridge's do not.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements venstar.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements venstar.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements venstar.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Disconnect implements venstar.MQTTClient. The client's lifecycle belongs
// to run's defer chain, so this is a no-op.
func (a *mqttBridgeAdapter) Disconnect(_ uint) {}
