package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"linkage/internal/contact/events"
	"linkage/internal/contact/handler"
	contactmetrics "linkage/internal/contact/metrics"
	"linkage/internal/contact/ports"
	"linkage/internal/contact/service"
	"linkage/internal/contact/store"
	"linkage/internal/platform/config"
	"linkage/internal/platform/database"
	"linkage/internal/platform/health"
	"linkage/internal/platform/httpserver"
	"linkage/internal/platform/logger"
	"linkage/internal/platform/metrics"
	"linkage/internal/platform/redis"
	"linkage/pkg/platform/circuit"
)

const (
	identifyLockKey = "identify"
	topicPartitions = 3
	topicReplicas   = 1
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	if err := config.LoadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	probes := map[string]health.Probe{}

	contacts, db, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		probes["postgres"] = health.ProbeFunc(database.Probe(db))
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		probes["redis"] = health.ProbeFunc(redisClient.Health)
		contacts = store.NewLockedTx(contacts, redis.NewLocker(redisClient), identifyLockKey, cfg.Identify.LockTTL, log)
		log.Info("identify lock enabled", "backend", "redis")
	}

	publisher, closePublisher, err := buildPublisher(ctx, cfg, log, probes)
	if err != nil {
		return err
	}
	defer closePublisher()

	svc := service.New(contacts,
		service.WithLogger(log),
		service.WithMetrics(contactmetrics.New(reg)),
		service.WithPublisher(publisher),
	)

	r := chi.NewRouter()
	handler.New(svc, log, metrics.New(reg), handler.WithRequestTimeout(cfg.Server.RequestTimeout)).Register(r)
	health.New(log, probes).Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := httpserver.New(cfg.Server.Addr, r, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildStore selects Postgres when a database URL is configured and the
// in-memory store otherwise.
func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (ports.ContactStoreTx, *sql.DB, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, contacts are kept in memory")
		return store.NewInMemoryStore(), nil, nil
	}

	db, err := database.Open(ctx, database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Migrate {
		if err := database.Migrate(db, store.Migrations, store.MigrationsDir); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("database migrations applied")
	}
	return store.NewPostgres(db, cfg.Identify.TxTimeout), db, nil
}

// buildPublisher ships events to Kafka when brokers are configured and logs
// them otherwise. Events Kafka keeps rejecting are logged instead.
func buildPublisher(ctx context.Context, cfg config.Config, log *slog.Logger, probes map[string]health.Probe) (ports.EventPublisher, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NewLogPublisher(log), func() {}, nil
	}

	publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	if err := publisher.EnsureTopic(ctx, topicPartitions, topicReplicas); err != nil {
		publisher.Close()
		return nil, nil, err
	}
	probes["kafka"] = health.ProbeFunc(publisher.Health)
	log.Info("publishing contact events", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	guarded := events.NewFallbackPublisher(publisher, events.NewLogPublisher(log), circuit.New("kafka"), log)
	return guarded, publisher.Close, nil
}
