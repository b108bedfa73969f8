// Package workflows holds the bridge's two workflow definitions. Each
// validates its input terminally (structural gaps never retry) and runs
// its activities in order under the engine's shared retry policy.
package workflows

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/activities"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/engine"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/event"
)

// Register binds both workflow definitions to the worker.
func Register(w *engine.Worker, acts *activities.Activities) {
	w.Register(engine.WorkflowInterAppRouting, InterAppRouting(acts))
	w.Register(engine.WorkflowOrgAssignmentSync, OrgAssignmentSync(acts))
}

// InterAppRouting routes an inter-application event and then executes
// the target application's side effect, in that order.
func InterAppRouting(acts *activities.Activities) engine.WorkflowFunc {
	return func(ctx context.Context, wf engine.WorkflowContext, input json.RawMessage) (any, error) {
		var ev event.InterApp
		if err := json.Unmarshal(input, &ev); err != nil {
			return nil, engine.Terminal(fmt.Errorf("bad inter-app input: %w", err))
		}
		// The bridge validates before dispatch, but an execution may
		// predate a decoder change; the same gap stays terminal here.
		if err := ev.Validate(); err != nil {
			return nil, engine.Terminal(err)
		}

		routing, err := wf.ExecuteActivity(ctx, "routeInterAppEvent", func(ctx context.Context) (any, error) {
			return acts.RouteInterAppEvent(ctx, &ev)
		})
		if err != nil {
			return nil, err
		}

		processing, err := wf.ExecuteActivity(ctx, "processInterAppEvent", func(ctx context.Context) (any, error) {
			return acts.ProcessInterAppEvent(ctx, &ev)
		})
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"routing":    routing,
			"processing": processing,
		}, nil
	}
}
