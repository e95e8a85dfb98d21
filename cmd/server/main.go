// Command server runs the registry compliance engine: the public
// verification gateway, the administrator API and the notice outbox worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	auditstore "careledger/internal/audit/store"
	jwttoken "careledger/internal/jwt_token"
	outboxmetrics "careledger/internal/notices/outbox/metrics"
	outboxpostgres "careledger/internal/notices/outbox/store/postgres"
	outboxworker "careledger/internal/notices/outbox/worker"
	"careledger/internal/platform/config"
	"careledger/internal/platform/database"
	"careledger/internal/platform/httpserver"
	"careledger/internal/platform/kafka/producer"
	"careledger/internal/platform/logger"
	platformredis "careledger/internal/platform/redis"
	registryhandler "careledger/internal/registry/handler"
	registrymetrics "careledger/internal/registry/metrics"
	registryservice "careledger/internal/registry/service"
	caregiverstore "careledger/internal/registry/store/caregiver"
	facilitystore "careledger/internal/registry/store/facility"
	transporthttp "careledger/internal/transport/http"
	verifycache "careledger/internal/verify/cache"
	verifyhandler "careledger/internal/verify/handler"
	verifymetrics "careledger/internal/verify/metrics"
	verifyservice "careledger/internal/verify/service"
	"careledger/internal/verify/store/querylog"
)

func main() {
	log := logger.New()
	cfg := config.FromEnv()

	// Database.
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	if pool == nil {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	defer pool.Close()

	// Redis is optional; without it verification falls through to Postgres.
	redisClient, err := platformredis.New(config.DefaultRedisConfig(cfg.RedisURL))
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Stores.
	caregivers := caregiverstore.NewPostgres(pool.DB())
	facilities := facilitystore.NewPostgres(pool.DB())
	audit := auditstore.NewPostgres(pool.DB())
	noticeOutbox := outboxpostgres.New(pool.DB())
	queryLog := querylog.NewPostgres(pool.DB())

	// Registry administration.
	registryOpts := []registryservice.Option{
		registryservice.WithMetrics(registrymetrics.New()),
		registryservice.WithLogger(log),
	}
	var resultCache *verifycache.Cache
	if redisClient != nil {
		resultCache = verifycache.New(redisClient.Client, cfg.VerifyCacheTTL, log)
		registryOpts = append(registryOpts, registryservice.WithVerificationCache(resultCache))
	}
	registrySvc := registryservice.New(
		caregivers, facilities, audit, noticeOutbox,
		registryservice.NewSQLTxRunner(pool.DB()),
		registryOpts...,
	)

	// Verification gateway.
	verifyOpts := []verifyservice.Option{
		verifyservice.WithMetrics(verifymetrics.New()),
		verifyservice.WithLogger(log),
	}
	if resultCache != nil {
		verifyOpts = append(verifyOpts, verifyservice.WithCache(resultCache))
	}
	verifySvc := verifyservice.New(caregivers, facilities, queryLog, verifyOpts...)

	// Notice outbox worker.
	var noticeWorker *outboxworker.Worker
	if cfg.KafkaBrokers != "" {
		prod, err := producer.New(producer.Config{
			Brokers:         cfg.KafkaBrokers,
			Retries:         5,
			DeliveryTimeout: 10 * time.Second,
		}, log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer prod.Close()

		noticeWorker = outboxworker.New(noticeOutbox, prod,
			outboxworker.WithTopic(cfg.NoticeTopic),
			outboxworker.WithMetrics(outboxmetrics.New()),
			outboxworker.WithLogger(log),
		)
	} else {
		log.Warn("KAFKA_BROKERS not set; registry notices stay queued in the outbox")
	}

	// HTTP surface.
	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	healthChecks := map[string]transporthttp.HealthChecker{"postgres": pool}
	if redisClient != nil {
		healthChecks["redis"] = redisClient
	}
	router := transporthttp.NewRouter(transporthttp.Config{
		Registry:       registryhandler.New(registrySvc, log),
		Verify:         verifyhandler.New(verifySvc, log),
		TokenValidator: jwtService,
		ServiceKeyHash: cfg.ServiceKeyHash,
		HealthChecks:   healthChecks,
		Logger:         log,
	})
	server := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if noticeWorker != nil {
		noticeWorker.Start()
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if noticeWorker != nil {
			if err := noticeWorker.Stop(shutdownCtx); err != nil {
				log.Error("outbox worker shutdown failed", "error", err)
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
