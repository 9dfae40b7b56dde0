package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/gray-logic-telemetry/internal/api"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-telemetry/internal/sensor"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
	"github.com/nerrad567/gray-logic-telemetry/migrations"
)

// backlogSaveTimeout bounds the final backlog save during shutdown.
const backlogSaveTimeout = 5 * time.Second

// core is the part of the service that needs no network.
type core struct {
	sensors   *sensor.Registry
	publisher *telemetry.Publisher
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// buildCore creates the sensor registry and a publisher holding every
// configured measurement.
//
// Parameters:
//   - cfg: Validated configuration
//   - transport: Where writes go
//   - metrics: Prometheus instruments, or nil
//
// Returns:
//   - core: Registry and publisher
//   - error: If a sensor or measurement is rejected
func buildCore(cfg *config.Config, transport telemetry.Transport, metrics *telemetry.Metrics) (core, error) {
	sensors, err := sensor.FromConfig(cfg.Sensors)
	if err != nil {
		return core{}, fmt.Errorf("building sensors: %w", err)
	}

	opts := telemetry.OptionsFromConfig(cfg)
	opts.Transport = transport
	opts.Metrics = metrics
	pub, err := telemetry.NewPublisher(opts)
	if err != nil {
		return core{}, fmt.Errorf("creating publisher: %w", err)
	}
	if err := pub.AddFromConfig(cfg.Measurements, sensors); err != nil {
		return core{}, fmt.Errorf("adding measurements: %w", err)
	}

	return core{sensors: sensors, publisher: pub}, nil
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path to the YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Telemetry",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	target, err := newWriteTarget(ctx, cfg.InfluxDB)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := target.close(); closeErr != nil {
			log.Error("error closing InfluxDB transport", "error", closeErr)
		}
	}()
	log.Info("InfluxDB transport ready",
		"transport", cfg.InfluxDB.Transport,
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Organization,
	)

	svc, err := buildCore(cfg, target.transport, telemetry.NewMetrics(registry))
	if err != nil {
		return err
	}
	svc.publisher.SetLogger(log.Component("telemetry"))
	log.Info("publisher initialised",
		"sensors", svc.sensors.Len(),
		"measurements", len(svc.publisher.Measurements()),
		"backlog_depth", cfg.InfluxDB.BacklogMaxDepth,
	)

	checks := map[string]api.HealthCheck{"influxdb": target.health}

	// Backlog persistence
	var db *database.DB
	if cfg.InfluxDB.BacklogPersist {
		db, err = openBacklogStore(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		checks["database"] = db.HealthCheck

		repo := telemetry.NewSQLiteBacklogRepository(db.DB)
		restored, restoreErr := svc.publisher.RestoreFrom(ctx, repo)
		if restoreErr != nil {
			return fmt.Errorf("restoring backlog: %w", restoreErr)
		}
		log.Info("backlog restored", "entries", restored)

		// Registered before the scheduler and API so it runs after they stop.
		defer func() {
			saveCtx, cancel := context.WithTimeout(context.Background(), backlogSaveTimeout)
			defer cancel()
			if saveErr := svc.publisher.SaveTo(saveCtx, repo); saveErr != nil {
				log.Error("error saving backlog", "error", saveErr)
				return
			}
			log.Info("backlog saved", "entries", svc.publisher.BacklogStatus().Depth)
		}()
	}

	// MQTT: sensor ingest and commands
	var mqttState api.ConnectionState
	if cfg.MQTT.Enabled {
		mqttClient, stopMQTT, mqttErr := startMQTT(cfg.MQTT, svc, log)
		if mqttErr != nil {
			return mqttErr
		}
		defer stopMQTT()
		mqttState = mqttClient
		checks["mqtt"] = mqttClient.HealthCheck
	} else {
		log.Info("MQTT disabled, sensors will stay empty")
	}

	// Scheduled publishes and periodic drain
	schedules := make([]telemetry.Schedule, len(cfg.Schedules))
	for i, sc := range cfg.Schedules {
		schedules[i] = telemetry.Schedule{Interval: sc.Interval, Measurements: sc.Measurements}
	}
	scheduler := telemetry.NewScheduler(svc.publisher, schedules, cfg.InfluxDB.BacklogDrainInterval)
	scheduler.SetLogger(log.Component("scheduler"))
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer scheduler.Stop()

	// HTTP API
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:    cfg.API,
			Logger:    log.Component("api"),
			Publisher: svc.publisher,
			Sensors:   svc.sensors,
			Gatherer:  registry,
			Checks:    checks,
			MQTT:      mqttState,
			Version:   version,
		}
		if db != nil {
			deps.DB = db.DB
		}
		srv, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Scheduler
	// 3. MQTT
	// 4. Backlog save and database
	// 5. InfluxDB transport

	log.Info("Gray Logic Telemetry stopped")
	return nil
}

// openBacklogStore opens and migrates the backlog database.
func openBacklogStore(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Path, "migrations_applied", applied)
	return db, nil
}

// startMQTT connects, starts sensor ingest and subscribes to commands.
//
// Parameters:
//   - cfg: MQTT section of the configuration
//   - svc: Sensors to feed and publisher to command
//   - log: Logger instance
//
// Returns:
//   - *mqtt.Client: Connected client
//   - func(): Unsubscribes ingest and commands, then closes the client
//   - error: If connection or a subscription fails
func startMQTT(cfg config.MQTTConfig, svc core, log *logging.Logger) (*mqtt.Client, func(), error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT session established")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)

	// #nosec G115 -- QoS is validated to 0-2
	qos := byte(cfg.QoS)

	ingester := sensor.NewIngester(svc.sensors, qos)
	ingester.SetLogger(log.Component("ingest"))
	if err := ingester.Start(client); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("starting sensor ingest: %w", err)
	}

	commands := newCommandHandler(svc.publisher, client, qos, log.Component("commands"))
	commandTopic := mqtt.Topics{}.AllCommands()
	if err := client.Subscribe(commandTopic, qos, commands.handle); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("subscribing to commands: %w", err)
	}
	svc.publisher.SetOnPublish(commands.onPublish)

	stop := func() {
		svc.publisher.SetOnPublish(nil)
		if err := client.Unsubscribe(commandTopic); err != nil {
			log.Warn("unsubscribing from commands failed", "error", err)
		}
		if err := ingester.Stop(client); err != nil {
			log.Warn("stopping sensor ingest failed", "error", err)
		}
		log.Info("disconnecting from MQTT")
		if err := client.Close(); err != nil {
			log.Error("error closing MQTT", "error", err)
		}
	}
	return client, stop, nil
}
