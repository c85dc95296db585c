package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"timeclock/internal/attendance/handler"
	"timeclock/internal/attendance/metrics"
	"timeclock/internal/attendance/models"
	"timeclock/internal/attendance/ports"
	"timeclock/internal/attendance/service"
	"timeclock/internal/attendance/store"
	"timeclock/internal/attendance/store/memory"
	"timeclock/internal/attendance/store/postgres"
	"timeclock/internal/audit"
	internalhttp "timeclock/internal/http"
	"timeclock/internal/lock"
	"timeclock/internal/platform/config"
	"timeclock/internal/platform/httpserver"
	"timeclock/internal/platform/logger"
	"timeclock/internal/platform/middleware"
	platformredis "timeclock/internal/platform/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()

	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		return err
	}

	backends := map[string]internalhttp.HealthChecker{}

	var recordStore store.Store = memory.New()
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("connect postgres", "error", err)
			return err
		}
		defer pool.Close()

		pg := postgres.New(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("ensure schema", "error", err)
			return err
		}
		recordStore = pg
		backends["postgres"] = healthFunc(pool.Ping)
		log.Info("using postgres record store")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory record store")
	}

	serviceOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithTimezone(tz),
		service.WithTimeouts(cfg.LocationTimeout, cfg.SideStepTimeout),
	}

	if cfg.Redis.URL != "" {
		redisClient, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("connect redis", "error", err)
			return err
		}
		defer redisClient.Close()
		backends["redis"] = redisClient
		serviceOpts = append(serviceOpts, service.WithLocker(lock.NewRedisLocker(redisClient.Client)))
		log.Info("distributed locking enabled")
	}

	auditOpts := []audit.Option{}
	if sink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
		log.Error("connect kafka", "error", err)
		return err
	} else if sink != nil {
		defer sink.Close()
		auditOpts = append(auditOpts, audit.WithSink(sink))
		log.Info("audit kafka sink enabled", "topic", cfg.Kafka.Topic)
	}
	auditPublisher := audit.NewPublisher(audit.NewMemoryStore(), log, auditOpts...)
	serviceOpts = append(serviceOpts, service.WithAuditPublisher(auditPublisher))

	svc := service.New(recordStore, defaultSettings(), defaultLocationProvider(), serviceOpts...)

	router := internalhttp.New(internalhttp.Deps{
		Attendance: handler.New(svc, log),
		Validator:  middleware.NewJWTValidator(cfg.JWTSigningKey),
		Logger:     log,
		Backends:   backends,
	})

	server := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error("server failed", "error", err)
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
		return err
	}
	return nil
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

// defaultSettings is the built-in policy used until an external settings
// backend is wired; overridable per deployment through a settings service.
func defaultSettings() ports.SettingsSource {
	return ports.NewStaticSettings(models.Settings{
		CheckInTime:           models.TimeOfDay{Hour: 9},
		CheckOutTime:          models.TimeOfDay{Hour: 17},
		LateThresholdMinutes:  15,
		HalfDayThresholdHours: 4,
		WorkingDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		LocationRequired:  false,
		GPSAccuracyMeters: 100,
	})
}

// defaultLocationProvider reports no fix, which with an optional-location
// policy yields manual, approval-required entries. Deployments with a real
// positioning backend swap this out.
func defaultLocationProvider() ports.LocationProvider {
	return &ports.FakeLocationProvider{}
}
