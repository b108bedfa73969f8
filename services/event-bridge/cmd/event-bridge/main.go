package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tmnlabs/bizsuite/libs/config"
	"github.com/tmnlabs/bizsuite/libs/db"
	"github.com/tmnlabs/bizsuite/libs/httpx"
	otelx "github.com/tmnlabs/bizsuite/libs/otel"
	"github.com/tmnlabs/bizsuite/libs/redisx"
	"github.com/tmnlabs/bizsuite/libs/runtime"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/bridge"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/engine"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/stream"
)

func main() {
	service := config.String("SERVICE_NAME", "event-bridge")
	port, err := config.Port("PORT", "8090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	if !config.Bool("WORKFLOW_ENGINE_ENABLED", true) {
		logger.Info("workflow engine disabled, event bridge will not start")
		return
	}

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	redisURL, err := config.RequiredString("REDIS_URL")
	if err != nil {
		panic(err)
	}
	rdb, err := redisx.Open(ctx, redisURL)
	if err != nil {
		logger.Error("redis connection failed", "err", err)
		panic(err)
	}
	defer func() { _ = rdb.Close() }()

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	group := config.String("CONSUMER_GROUP", "bizsuite-bridge")
	consumer := fmt.Sprintf("%s-%d", group, os.Getpid())

	logClient := stream.NewClient(rdb, logger)
	dispatcher := bridge.NewEngineDispatcher(
		engine.NewClient(engine.NewStore(pool)),
		engine.TaskQueueEventBridge,
	)
	b := bridge.New(logger, logClient, dispatcher, bridge.Config{
		Group:     group,
		Consumer:  consumer,
		ReadCount:    int64(config.Int("BRIDGE_READ_COUNT", 10)),
		BlockFor:     config.Duration("BRIDGE_BLOCK_FOR", 5*time.Second),
		ErrPause:     config.Duration("BRIDGE_ERROR_PAUSE", 5*time.Second),
		ClaimMinIdle: config.Duration("BRIDGE_CLAIM_MIN_IDLE", 1*time.Minute),
	})

	if err := b.Initialize(ctx); err != nil {
		logger.Error("bridge initialization failed", "err", err)
		panic(err)
	}

	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		if err := b.Run(ctx); err != nil {
			logger.Error("bridge loop exited with error", "err", err)
		}
	}()

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)},
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.Handle("/metrics", promhttp.Handler())
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "event-bridge")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	<-bridgeDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("event bridge stopped")
}
