package workflows

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/activities"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/engine"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/event"
)

// OrgAssignmentSync applies an organization-assignment change and, for
// creations and updates only, mirrors the organization into the CRM.
func OrgAssignmentSync(acts *activities.Activities) engine.WorkflowFunc {
	return func(ctx context.Context, wf engine.WorkflowContext, input json.RawMessage) (any, error) {
		var ev event.OrgAssignment
		if err := json.Unmarshal(input, &ev); err != nil {
			return nil, engine.Terminal(fmt.Errorf("bad org-assignment input: %w", err))
		}
		if err := ev.Validate(); err != nil {
			return nil, engine.Terminal(err)
		}

		processed, err := wf.ExecuteActivity(ctx, "processOrganizationAssignment", func(ctx context.Context) (any, error) {
			return acts.ProcessOrganizationAssignment(ctx, &ev)
		})
		if err != nil {
			return nil, err
		}

		result := map[string]any{"assignment": processed}

		if needsCRMSync(ev.EventType) {
			synced, err := wf.ExecuteActivity(ctx, "syncOrganizationToCRM", func(ctx context.Context) (any, error) {
				return acts.SyncOrganizationToCRM(ctx, &ev)
			})
			if err != nil {
				return nil, err
			}
			result["crmSync"] = synced
		}

		return result, nil
	}
}

// Deactivations, activations and deletions change assignment state but
// not the organization record the CRM mirrors.
func needsCRMSync(eventType string) bool {
	return eventType == event.OrgAssignmentCreated || eventType == event.OrgAssignmentUpdated
}
