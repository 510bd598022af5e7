package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/customfield"
	"github.com/Ramsey-B/fern/internal/repositories/engagement"
	entityrepo "github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/entityrelationship"
	"github.com/Ramsey-B/fern/internal/repositories/identifier"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/internal/repositories/tagging"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/dedupe"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/routes/duplicates"
	entityroutes "github.com/Ramsey-B/fern/pkg/routes/entity"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

func main() {
	// .env is optional; real deployments use environment variables
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := setupTracing(ctx, cfg)
		if err != nil {
			logger.WithError(err).Error("Failed to set up tracing")
			os.Exit(1)
		}
		defer shutdown(context.Background())
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	// PostgreSQL
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)
	sqlxDB, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	db := database.NewDatabaseInstance(sqlxDB, logger)
	defer db.Close()

	// Migrations
	driver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	migrationService := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrationService.Migrate(cfg.DatabaseName, driver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Redis (merge locks)
	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()
	locker := redis.NewLocker(redisClient, "fern:")

	// Kafka producer
	var producer *kafka.Producer
	if cfg.KafkaProducerEnabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
	}

	// Repositories
	entityRepo := entityrepo.NewRepository(db, logger)
	identifierRepo := identifier.NewRepository(db, logger)
	relationshipRepo := relationship.NewRepository(db, logger)
	entityRelRepo := entityrelationship.NewRepository(db, logger)
	engagementRepo := engagement.NewRepository(db, logger)
	customFieldRepo := customfield.NewRepository(db, logger)
	taggingRepo := tagging.NewRepository(db, logger)

	// Services
	detector := dedupe.NewDetector(entityRepo, identifierRepo, logger, cfg.DetectionMaxEntities)
	emitter := events.NewEmitter(producer, logger)
	engine := merging.NewEngine(
		logger,
		entityRepo,
		identifierRepo,
		relationshipRepo,
		entityRelRepo,
		engagementRepo,
		customFieldRepo,
		taggingRepo,
		detector,
		emitter,
		locker,
		cfg.MergeLockTTL,
		cfg.MergeLockWait,
	)

	// Dependency injection
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}
	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*entityrepo.Repository](container, entityRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*identifier.Repository](container, identifierRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*dedupe.Detector](container, detector); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*merging.Engine](container, engine); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*events.Emitter](container, emitter); err != nil {
		return err
	}

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	checker := health.NewChecker(db, redisClient, cfg.Version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	duplicates.Register(api.Group("/duplicates"))
	entityroutes.Register(api.Group("/entities"))

	// Startup orchestration
	s := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	s.AddDependency(&serviceDependency{
		name: "database",
		start: func(ctx context.Context) error {
			return db.PingContext(ctx)
		},
	})
	s.AddDependency(&serviceDependency{
		name: "redis",
		start: func(ctx context.Context) error {
			return redisClient.Ping(ctx)
		},
	})
	s.AddDependency(&serviceDependency{
		name:      "http-server",
		dependsOn: []string{"database", "redis"},
		start: func(ctx context.Context) error {
			go func() {
				addr := fmt.Sprintf(":%d", cfg.Port)
				if err := e.Start(addr); err != nil {
					logger.WithError(err).Info("HTTP server stopped")
				}
			}()
			checker.SetReady(true)
			return nil
		},
		stop: func(ctx context.Context) error {
			checker.SetReady(false)
			return e.Shutdown(ctx)
		},
	})

	if err := s.Start(ctx); err != nil {
		return err
	}
	logger.Infof("%s listening on port %d", cfg.AppName, cfg.Port)

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// serviceDependency adapts start/stop funcs to the startup orchestrator.
type serviceDependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *serviceDependency) GetName() string {
	return d.name
}

func (d *serviceDependency) DependsOn() []string {
	return d.dependsOn
}

func (d *serviceDependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}

func (d *serviceDependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func newLogger(cfg config.Config) ectologger.Logger {
	encoder := json.NewEncoder(os.Stdout)
	if cfg.PrettyLogs {
		encoder.SetIndent("", "  ")
	}
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		_ = encoder.Encode(msg)
	})
}

func setupTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter = &exporters.ConsoleExporter{}
	if cfg.TracingOTLPEndpoint != "" {
		otlp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.TracingOTLPEndpoint,
			Protocol: cfg.TracingOTLPProtocol,
			Insecure: cfg.TracingOTLPInsecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		exporter = otlp
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.AppName),
			attribute.String("service.version", cfg.Version),
		)),
	)
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	return tp.Shutdown, nil
}
