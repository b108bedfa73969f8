// Package engine is a small durable workflow engine backed by Postgres.
// A workflow execution is a row: dispatched by the bridge with
// Client.StartWorkflow, claimed and run by a Worker polling its task
// queue. Activities inside a run are retried under a shared policy;
// crash recovery comes from lease expiry on the claimed row, so
// activities must be idempotent.
package engine

import (
	"context"
	"encoding/json"
	"time"
)

// WorkflowType identifies a registered workflow definition.
type WorkflowType string

const (
	WorkflowInterAppRouting   WorkflowType = "inter-app-routing"
	WorkflowOrgAssignmentSync WorkflowType = "org-assignment-sync"
)

// TaskQueueEventBridge is the queue both bridge-dispatched workflow
// types run on.
const TaskQueueEventBridge = "event-bridge-tasks"

// DefaultActivityTimeout bounds a single activity attempt.
const DefaultActivityTimeout = 2 * time.Minute

// Execution statuses. pending -> running -> completed | failed, with
// running -> pending again when a worker dies and the lease expires.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Execution is one durable workflow run.
type Execution struct {
	ID          int64
	WorkflowID  string
	Type        WorkflowType
	TaskQueue   string
	DedupKey    string
	Input       json.RawMessage
	Status      string
	Attempts    int
	LastError   string
	Traceparent string
	Tracestate  string
	CreatedAt   time.Time
}

// WorkflowFunc is a registered workflow definition. It receives the
// execution's input and runs its activities through wf.
type WorkflowFunc func(ctx context.Context, wf WorkflowContext, input json.RawMessage) (any, error)

// ActivityFunc is one retryable unit of work.
type ActivityFunc func(ctx context.Context) (any, error)

// WorkflowContext is handed to workflow definitions for running their
// activities under the engine's retry policy.
type WorkflowContext interface {
	WorkflowID() string
	// ExecuteActivity runs fn with a per-attempt timeout, retrying
	// under the shared policy. A TerminalError aborts immediately;
	// exhausting MaximumAttempts fails the workflow.
	ExecuteActivity(ctx context.Context, name string, fn ActivityFunc) (any, error)
}
