package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/tmnlabs/bizsuite/libs/otel"
)

// Client starts workflow executions. It is the only engine surface the
// bridge holds: once a start succeeds, the execution belongs entirely to
// the worker side.
type Client struct {
	store *Store
}

func NewClient(store *Store) *Client {
	return &Client{store: store}
}

type StartOptions struct {
	WorkflowID string
	Type       WorkflowType
	TaskQueue  string
	// DedupKey suppresses duplicate starts for the same source record
	// across broker redeliveries. Empty disables dedup.
	DedupKey string
	Input    any
}

// StartWorkflow durably records a new execution and returns its
// workflow id. ErrDuplicateWorkflow means an execution for the same
// dedup key already exists.
func (c *Client) StartWorkflow(ctx context.Context, opts StartOptions) (string, error) {
	input, err := json.Marshal(opts.Input)
	if err != nil {
		return "", fmt.Errorf("marshal workflow input: %w", err)
	}

	ctx, span := otel.Tracer("engine").Start(ctx, "workflow.start",
		trace.WithAttributes(
			attribute.String("workflow.type", string(opts.Type)),
			attribute.String("workflow.id", opts.WorkflowID),
			attribute.String("workflow.task_queue", opts.TaskQueue),
		),
	)
	defer span.End()

	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	err = c.store.Insert(ctx, Execution{
		WorkflowID:  opts.WorkflowID,
		Type:        opts.Type,
		TaskQueue:   opts.TaskQueue,
		DedupKey:    opts.DedupKey,
		Input:       input,
		Traceparent: traceparent,
		Tracestate:  tracestate,
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return opts.WorkflowID, nil
}
