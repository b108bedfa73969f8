// Package activities implements the retryable units of work the bridge
// workflows run. Business operations live behind interfaces wired in at
// composition time; every activity must be idempotent because the
// engine reruns workflows after crashes and retries activities on
// failure.
package activities

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/engine"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/event"
)

// InterAppPublisher records a routing decision on the suite's event bus.
type InterAppPublisher interface {
	PublishRouted(ctx context.Context, ev *event.InterApp) error
}

// AppProcessor executes the target application's side effect for an
// inter-app event.
type AppProcessor interface {
	ProcessEvent(ctx context.Context, ev *event.InterApp) (map[string]any, error)
}

// OrganizationService is the CRUD layer's surface for assignment
// changes, one call per event sub-type.
type OrganizationService interface {
	AssignmentCreated(ctx context.Context, ev *event.OrgAssignment) error
	AssignmentUpdated(ctx context.Context, ev *event.OrgAssignment) error
	AssignmentDeactivated(ctx context.Context, ev *event.OrgAssignment) error
	AssignmentActivated(ctx context.Context, ev *event.OrgAssignment) error
	AssignmentDeleted(ctx context.Context, ev *event.OrgAssignment) error
}

// CRMSyncResult is what the downstream CRM reports back for a sync.
type CRMSyncResult struct {
	Success        bool      `json:"success"`
	OrganizationID string    `json:"organizationId"`
	TenantID       string    `json:"tenantId"`
	SyncedAt       time.Time `json:"syncedAt"`
}

// CRMClient pushes an organization into the downstream CRM.
type CRMClient interface {
	SyncOrganization(ctx context.Context, tenantID, organizationID string, assignmentData map[string]any) (CRMSyncResult, error)
}

// Activities bundles the collaborators the workflow definitions call.
type Activities struct {
	Publisher InterAppPublisher
	Apps      AppProcessor
	Orgs      OrganizationService
	CRM       CRMClient
	Logger    *slog.Logger
}

// RouteInterAppEvent publishes the routing decision and returns the
// routing record that becomes part of the workflow result.
func (a *Activities) RouteInterAppEvent(ctx context.Context, ev *event.InterApp) (map[string]any, error) {
	if err := a.Publisher.PublishRouted(ctx, ev); err != nil {
		return nil, fmt.Errorf("publish routing decision: %w", err)
	}
	a.Logger.Info("inter-app event routed",
		"event_type", ev.EventType, "source", ev.SourceApp, "target", ev.TargetApp, "tenant_id", ev.TenantID)
	return map[string]any{
		"routedTo":  ev.TargetApp,
		"eventType": ev.EventType,
		"tenantId":  ev.TenantID,
		"entityId":  ev.EntityID,
	}, nil
}

// ProcessInterAppEvent executes the target application's side effect.
func (a *Activities) ProcessInterAppEvent(ctx context.Context, ev *event.InterApp) (map[string]any, error) {
	result, err := a.Apps.ProcessEvent(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("process %s for %s: %w", ev.EventType, ev.TargetApp, err)
	}
	return result, nil
}

// ProcessOrganizationAssignment dispatches to the CRUD layer call for
// the event sub-type. An unrecognized sub-type is terminal: retrying
// will not teach the bridge a handler it does not have.
func (a *Activities) ProcessOrganizationAssignment(ctx context.Context, ev *event.OrgAssignment) (map[string]any, error) {
	var err error
	switch ev.EventType {
	case event.OrgAssignmentCreated:
		err = a.Orgs.AssignmentCreated(ctx, ev)
	case event.OrgAssignmentUpdated:
		err = a.Orgs.AssignmentUpdated(ctx, ev)
	case event.OrgAssignmentDeactivated:
		err = a.Orgs.AssignmentDeactivated(ctx, ev)
	case event.OrgAssignmentActivated:
		err = a.Orgs.AssignmentActivated(ctx, ev)
	case event.OrgAssignmentDeleted:
		err = a.Orgs.AssignmentDeleted(ctx, ev)
	default:
		return nil, engine.Terminal(fmt.Errorf("unrecognized organization assignment event type %q", ev.EventType))
	}
	if err != nil {
		return nil, fmt.Errorf("handle %s: %w", ev.EventType, err)
	}
	return map[string]any{
		"eventType":      ev.EventType,
		"tenantId":       ev.TenantID,
		"organizationId": ev.ResolveOrganizationID(),
	}, nil
}

// SyncOrganizationToCRM mirrors the organization into the CRM.
func (a *Activities) SyncOrganizationToCRM(ctx context.Context, ev *event.OrgAssignment) (CRMSyncResult, error) {
	orgID := ev.ResolveOrganizationID()
	result, err := a.CRM.SyncOrganization(ctx, ev.TenantID, orgID, ev.AssignmentData)
	if err != nil {
		return CRMSyncResult{}, fmt.Errorf("sync organization %s to crm: %w", orgID, err)
	}
	a.Logger.Info("organization synced to crm",
		"organization_id", result.OrganizationID, "tenant_id", result.TenantID)
	return result, nil
}
