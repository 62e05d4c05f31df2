package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codelabx/regdesk/internal/auth"
	"github.com/codelabx/regdesk/internal/config"
	"github.com/codelabx/regdesk/internal/db"
	"github.com/codelabx/regdesk/internal/domain/registration"
	httpx "github.com/codelabx/regdesk/internal/http"
	"github.com/codelabx/regdesk/internal/kvstore"
	"github.com/codelabx/regdesk/internal/notifications"
	"github.com/codelabx/regdesk/internal/observability"
	"github.com/codelabx/regdesk/internal/repo/postgres"
	"github.com/codelabx/regdesk/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	ctx := context.Background()

	// tracing is optional, it only turns on when an endpoint is configured
	var traceShutdown func(context.Context) error

	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, "regdesk", cfg.Env, cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		traceShutdown = shutdown
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	// database
	pool, err := db.NewPool(ctx, cfg.DBURL)

	if err != nil {
		log.Error("database connection failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	backend := postgres.NewRegistrationsRepo(pool, prom)

	// already-registered markers live in redis when available, otherwise in
	// process memory
	var markers kvstore.Store

	if cfg.RedisAddr != "" {
		rds := kvstore.NewRedis(kvstore.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		if err := rds.Ping(ctx); err != nil {
			log.Error("redis connection failed", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}

		defer func() { _ = rds.Close() }()

		markers = rds
	} else {
		log.Warn("REDIS_ADDR not set, markers are kept in process memory")
		markers = kvstore.NewMemory(0)
	}

	// receipt object storage
	uploader, err := storage.NewReceiptStore(ctx, storage.S3Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		Bucket:        cfg.S3Bucket,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	}, prom)

	if err != nil {
		log.Error("receipt store init failed", "err", err)
		os.Exit(1)
	}

	// confirmation emails go through the external function when configured,
	// otherwise to the log
	var notifier notifications.Notifier

	if cfg.NotifyURL != "" {
		notifier = notifications.NewProtectedNotifier(
			notifications.NewHTTPNotifier(cfg.NotifyURL),
			notifications.ProtectedNotifierConfig{},
		)
	} else {
		log.Warn("NOTIFY_URL not set, confirmations are logged only")
		notifier = notifications.NewLogNotifier()
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTAccessTTL)

	router := httpx.NewRouter(httpx.RouterDeps{
		Cfg:      cfg,
		Log:      log,
		Pool:     pool,
		Backend:  backend,
		Uploader: uploader,
		Notifier: notifier,
		Markers:  markers,
		Prom:     prom,
		Tokens:   tokens,
		Flows: []registration.Flow{
			registration.HackathonFlow(cfg.HackathonCapacity),
			registration.GeneralFlow(),
		},
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// start server using a concurrent go-routine driven anonymous function.

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctxTimeOut := 10 * time.Second

		sctx, cancel := config.WithTimeout(ctxTimeOut)

		defer cancel()

		err := srv.Shutdown(sctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)
			return
		}

		if traceShutdown != nil {
			if err := traceShutdown(sctx); err != nil {
				log.Error("tracer shutdown failed", "err", err)
			}
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
