package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tmnlabs/bizsuite/libs/config"
	"github.com/tmnlabs/bizsuite/libs/db"
	"github.com/tmnlabs/bizsuite/libs/httpx"
	"github.com/tmnlabs/bizsuite/libs/kafkax"
	otelx "github.com/tmnlabs/bizsuite/libs/otel"
	"github.com/tmnlabs/bizsuite/libs/runtime"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/activities"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/crud"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/engine"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/workflows"
)

func main() {
	service := config.String("SERVICE_NAME", "workflow-worker")
	port, err := config.Port("PORT", "8091")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

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

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	publisher := activities.NewKafkaPublisher(kafkaBrokers)
	defer func() { _ = publisher.Close() }()

	crudURL, err := config.RequiredString("CRUD_API_URL")
	if err != nil {
		panic(err)
	}
	crudClient := crud.NewClient(crudURL)

	acts := &activities.Activities{
		Publisher: publisher,
		Apps:      crudClient,
		Orgs:      crudClient,
		CRM:       crudClient,
		Logger:    logger,
	}

	worker := engine.NewWorker(engine.NewStore(pool), logger, engine.WorkerConfig{
		TaskQueue:       engine.TaskQueueEventBridge,
		Interval:        config.Duration("WORKER_POLL_INTERVAL", 1*time.Second),
		BatchSize:       config.Int("WORKER_BATCH_SIZE", 20),
		LeaseFor:        config.Duration("WORKER_LEASE_FOR", 10*time.Minute),
		RetryPolicy:     engine.DefaultRetryPolicy(),
		ActivityTimeout: engine.DefaultActivityTimeout,
	})
	workflows.Register(worker, acts)
	go worker.Run(ctx)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
	)
	mux.Handle("/metrics", promhttp.Handler())
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "workflow-worker")
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("workflow worker stopped")
}
