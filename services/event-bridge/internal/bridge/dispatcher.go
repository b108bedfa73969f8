package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/engine"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/event"
)

// Dispatcher hands a decoded event to the workflow engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, wt engine.WorkflowType, ev event.Event, dedupKey string) (string, error)
}

// EngineDispatcher starts executions through the engine client. The
// dedup key makes redelivered records collide with the execution their
// first delivery started, so broker-level at-least-once does not turn
// into duplicate workflows.
type EngineDispatcher struct {
	client    *engine.Client
	taskQueue string
}

func NewEngineDispatcher(client *engine.Client, taskQueue string) *EngineDispatcher {
	if taskQueue == "" {
		taskQueue = engine.TaskQueueEventBridge
	}
	return &EngineDispatcher{client: client, taskQueue: taskQueue}
}

func (d *EngineDispatcher) Dispatch(ctx context.Context, wt engine.WorkflowType, ev event.Event, dedupKey string) (string, error) {
	return d.client.StartWorkflow(ctx, engine.StartOptions{
		WorkflowID: workflowID(wt, ev.Tenant()),
		Type:       wt,
		TaskQueue:  d.taskQueue,
		DedupKey:   dedupKey,
		Input:      ev,
	})
}

// workflowID composes a human-traceable id: operators can read the
// workflow type, tenant and rough time of dispatch straight off it.
// Uniqueness against redelivery is the dedup key's job, not the id's.
func workflowID(wt engine.WorkflowType, tenantID string) string {
	if tenantID == "" {
		tenantID = "unknown"
	}
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("bridge-%s-%s-%d-%s", wt, tenantID, time.Now().UnixMilli(), suffix)
}
