// lwm2md is the LWM2M server data plane.
//
// It keeps the registration directory, decodes device payloads received
// from a CoAP gateway over MQTT, and serves the admin API. Lifecycle
// events go to MQTT, InfluxDB and WebSocket subscribers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-lwm2m/internal/api"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lifecycle"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/content"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/objects"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/registration"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
	"github.com/nerrad567/gray-logic-lwm2m/internal/telemetry"
	"github.com/nerrad567/gray-logic-lwm2m/internal/uplink"
	"github.com/nerrad567/gray-logic-lwm2m/migrations"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is read when present and LWM2M_CONFIG is unset.
const defaultConfigPath = "configs/config.yaml"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled. Deferred
// closes run in reverse start order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting lwm2md",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	catalog, err := loadCatalog(cfg.Objects)
	if err != nil {
		return err
	}
	log.Info("object catalog loaded", "objects", catalog.Len())

	checks := make(map[string]api.HealthChecker)

	// Database (persistent directory only)
	var db *database.DB
	var repo registration.Repository
	if cfg.Directory.Persistent {
		db, err = database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS()); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Database.Path)
		repo = registration.NewSQLiteRepository(db.DB)
		checks["database"] = db
	}

	// Registration directory
	registry := registration.NewRegistry(registration.Options{
		CheckInterval:   cfg.GetLifetimeCheckInterval(),
		DefaultLifetime: cfg.Directory.DefaultLifetime,
		Repository:      repo,
	})
	registry.SetLogger(log.Component("registration"))
	if loadErr := registry.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading registrations: %w", loadErr)
	}
	if startErr := registry.Start(ctx); startErr != nil {
		return fmt.Errorf("starting registration directory: %w", startErr)
	}
	defer func() {
		log.Info("stopping registration directory")
		if closeErr := registry.Close(); closeErr != nil {
			log.Error("error stopping registration directory", "error", closeErr)
		}
	}()
	log.Info("registration directory started", "registrations", registry.Count())

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log.Component("mqtt"))
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// The hub runs before the API server so no early event is lost.
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	// Lifecycle forwarding. Sinks are set only when enabled so the
	// interfaces stay nil.
	fwdOpts := lifecycle.Options{Broadcaster: hub, QoS: byte(cfg.MQTT.QoS)}
	if mqttClient != nil {
		fwdOpts.Publisher = mqttClient
	}
	if influxClient != nil {
		fwdOpts.Writer = influxClient
	}
	forwarder := lifecycle.New(fwdOpts)
	forwarder.SetLogger(log.Component("lifecycle"))
	detach := forwarder.Attach(registry)
	defer detach()

	fwdCtx, stopForwarder := context.WithCancel(context.WithoutCancel(ctx))
	fwdDone := make(chan struct{})
	go func() {
		defer close(fwdDone)
		forwarder.Run(fwdCtx)
	}()
	defer func() {
		stopForwarder()
		<-fwdDone
		if n := forwarder.Dropped(); n > 0 {
			log.Warn("lifecycle events dropped", "count", n)
		}
	}()

	processor := content.NewProcessor(catalog)

	// Uplink bridge (requires MQTT)
	if mqttClient != nil {
		bridgeOpts := uplink.Options{
			Directory: registry,
			Processor: processor,
			QoS:       byte(cfg.MQTT.QoS),
		}
		if influxClient != nil {
			bridgeOpts.Recorder = telemetry.NewRecorder(influxClient)
		}
		bridge, bridgeErr := uplink.New(bridgeOpts)
		if bridgeErr != nil {
			return fmt.Errorf("creating uplink bridge: %w", bridgeErr)
		}
		bridge.SetLogger(log.Component("uplink"))
		if startErr := bridge.Start(mqttClient); startErr != nil {
			return fmt.Errorf("starting uplink bridge: %w", startErr)
		}
	}

	// Admin API (optional)
	if cfg.API.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			JWT:       cfg.Security.JWT,
			Logger:    log.Component("api"),
			Registry:  registry,
			Catalog:   catalog,
			Processor: processor,
			DB:        db,
			Checks:    checks,
			Hub:       hub,
			Version:   version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// issueToken prints a signed API token. The signing secret and default
// lifetime come from the same configuration the server loads.
//
//	lwm2md token -subject gw-east -role gateway -ttl 720h
func issueToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	subject := fs.String("subject", "", "token subject, e.g. an operator or gateway name")
	role := fs.String("role", string(api.RoleAdmin), "admin, gateway or viewer")
	ttl := fs.Duration("ttl", 0, "token lifetime (default security.jwt.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing token flags: %w", err)
	}

	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}
	if *ttl == 0 {
		*ttl = cfg.GetTokenTTL()
	}

	token, err := api.IssueToken(cfg.Security.JWT.Secret, *subject, api.Role(*role), *ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// getConfigPath returns LWM2M_CONFIG when set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("LWM2M_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads path. A missing file at the default path falls back to
// built-in defaults; a missing file named by LWM2M_CONFIG is an error.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default()
		if err != nil {
			return nil, fmt.Errorf("loading default config: %w", err)
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

// loadCatalog returns the standard objects plus any definitions found in
// cfg.Dir. Files in cfg.Dir replace built-in objects with the same ID.
func loadCatalog(cfg config.ObjectsConfig) (*schema.Catalog, error) {
	catalog, err := objects.NewCatalog()
	if err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return catalog, nil
	}
	if _, err := catalog.LoadFS(os.DirFS(cfg.Dir)); err != nil {
		return nil, fmt.Errorf("loading objects from %s: %w", cfg.Dir, err)
	}
	return catalog, nil
}

// healthCheck runs every check once and returns the first failure.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
