package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/tmnlabs/bizsuite/libs/otel"
)

var (
	workflowsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_workflows_completed_total",
		Help: "Workflow executions that finished successfully",
	}, []string{"workflow_type"})
	workflowsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_workflows_failed_total",
		Help: "Workflow executions that were marked failed",
	}, []string{"workflow_type"})
	activityRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_activity_retries_total",
		Help: "Activity attempts beyond the first",
	}, []string{"activity"})
)

// Worker polls one task queue, claims due executions and runs the
// registered workflow definition for each. Workflow runs are
// at-least-once: a worker crash surrenders the lease and another worker
// reruns the execution from the top.
type Worker struct {
	store           *Store
	logger          *slog.Logger
	taskQueue       string
	interval        time.Duration
	batchSize       int
	leaseFor        time.Duration
	retry           RetryPolicy
	activityTimeout time.Duration
	registry        map[WorkflowType]WorkflowFunc
}

type WorkerConfig struct {
	TaskQueue       string
	Interval        time.Duration
	BatchSize       int
	LeaseFor        time.Duration
	RetryPolicy     RetryPolicy
	ActivityTimeout time.Duration
}

func NewWorker(store *Store, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.TaskQueue == "" {
		cfg.TaskQueue = TaskQueueEventBridge
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.LeaseFor <= 0 {
		cfg.LeaseFor = 10 * time.Minute
	}
	if cfg.RetryPolicy.MaximumAttempts <= 0 {
		cfg.RetryPolicy = DefaultRetryPolicy()
	}
	if cfg.ActivityTimeout <= 0 {
		cfg.ActivityTimeout = DefaultActivityTimeout
	}
	// The lease must outlive one activity attempt plus the longest
	// backoff; ExecuteActivity re-extends it before every attempt, so
	// that window is all a live run ever needs covered at once.
	if floor := cfg.ActivityTimeout + cfg.RetryPolicy.MaximumInterval + 1*time.Minute; cfg.LeaseFor < floor {
		cfg.LeaseFor = floor
	}
	return &Worker{
		store:           store,
		logger:          logger,
		taskQueue:       cfg.TaskQueue,
		interval:        cfg.Interval,
		batchSize:       cfg.BatchSize,
		leaseFor:        cfg.LeaseFor,
		retry:           cfg.RetryPolicy,
		activityTimeout: cfg.ActivityTimeout,
		registry:        make(map[WorkflowType]WorkflowFunc),
	}
}

// Register binds a workflow type to its definition. Not safe to call
// once Run has started.
func (w *Worker) Register(wt WorkflowType, fn WorkflowFunc) {
	w.registry[wt] = fn
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("workflow worker started", "task_queue", w.taskQueue)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("workflow batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	execs, err := w.store.ClaimDue(ctx, w.taskQueue, w.batchSize, w.leaseFor)
	if err != nil {
		return err
	}
	for _, exec := range execs {
		w.runExecution(ctx, exec)
	}
	return nil
}

func (w *Worker) runExecution(ctx context.Context, exec Execution) {
	logger := w.logger.With("workflow_id", exec.WorkflowID, "workflow_type", string(exec.Type))

	fn, ok := w.registry[exec.Type]
	if !ok {
		logger.Error("no workflow registered for type")
		w.markFailed(ctx, exec, "unregistered workflow type "+string(exec.Type))
		return
	}

	runCtx := otelx.ContextWithTraceContext(ctx, exec.Traceparent, exec.Tracestate)
	runCtx, span := otel.Tracer("engine").Start(runCtx, "workflow.run",
		trace.WithAttributes(
			attribute.String("workflow.type", string(exec.Type)),
			attribute.String("workflow.id", exec.WorkflowID),
			attribute.Int("workflow.run_attempt", exec.Attempts),
		),
	)
	defer span.End()

	wf := &workflowContext{worker: w, execution: exec, logger: logger}
	result, err := fn(runCtx, wf, exec.Input)
	if err != nil {
		span.RecordError(err)
		logger.Error("workflow failed", "err", err)
		w.markFailed(runCtx, exec, err.Error())
		return
	}

	out, err := json.Marshal(result)
	if err != nil {
		logger.Error("workflow result not serializable", "err", err)
		w.markFailed(runCtx, exec, "unserializable result: "+err.Error())
		return
	}
	if err := w.store.MarkCompleted(runCtx, exec.ID, out); err != nil {
		// The lease will expire and the run repeats; activities are
		// idempotent so this stays safe.
		logger.Error("mark completed failed", "err", err)
		return
	}
	workflowsCompleted.WithLabelValues(string(exec.Type)).Inc()
	logger.Info("workflow completed")
}

// extendLease is best-effort: a failed extension only risks a duplicate
// run, which the idempotent-activities contract already tolerates.
func (w *Worker) extendLease(ctx context.Context, id int64) {
	if w.store == nil {
		return
	}
	if err := w.store.ExtendLease(ctx, id, w.leaseFor); err != nil {
		w.logger.Warn("lease extension failed", "execution_id", id, "err", err)
	}
}

func (w *Worker) markFailed(ctx context.Context, exec Execution, cause string) {
	if err := w.store.MarkFailed(ctx, exec.ID, cause); err != nil {
		w.logger.Error("mark failed failed", "workflow_id", exec.WorkflowID, "err", err)
		return
	}
	workflowsFailed.WithLabelValues(string(exec.Type)).Inc()
}

// workflowContext is the engine's WorkflowContext: activity calls run
// with the worker's retry policy and per-attempt timeout.
type workflowContext struct {
	worker    *Worker
	execution Execution
	logger    *slog.Logger
}

func (wf *workflowContext) WorkflowID() string { return wf.execution.WorkflowID }

func (wf *workflowContext) ExecuteActivity(ctx context.Context, name string, fn ActivityFunc) (any, error) {
	policy := wf.worker.retry
	for attempt := 1; ; attempt++ {
		wf.worker.extendLease(ctx, wf.execution.ID)
		actCtx, span := otel.Tracer("engine").Start(ctx, "activity."+name,
			trace.WithAttributes(
				attribute.String("workflow.id", wf.execution.WorkflowID),
				attribute.Int("activity.attempt", attempt),
			),
		)
		actCtx, cancel := context.WithTimeout(actCtx, wf.worker.activityTimeout)
		result, err := fn(actCtx)
		cancel()
		if err == nil {
			span.End()
			return result, nil
		}
		span.RecordError(err)
		span.End()

		if IsTerminal(err) {
			return nil, err
		}
		if attempt >= policy.MaximumAttempts {
			return nil, fmt.Errorf("activity %s failed after %d attempts: %w", name, attempt, err)
		}

		delay := policy.NextDelay(attempt)
		wf.logger.Warn("activity failed, retrying",
			"activity", name, "attempt", attempt, "retry_in", delay.String(), "err", err)
		activityRetries.WithLabelValues(name).Inc()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
