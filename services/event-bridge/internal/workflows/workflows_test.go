package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/activities"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/engine"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/event"
)

// fakeWorkflowContext runs every activity exactly once, recording order.
type fakeWorkflowContext struct {
	ran []string
}

func (f *fakeWorkflowContext) WorkflowID() string { return "wf-test" }

func (f *fakeWorkflowContext) ExecuteActivity(ctx context.Context, name string, fn engine.ActivityFunc) (any, error) {
	f.ran = append(f.ran, name)
	return fn(ctx)
}

type fakePublisher struct {
	published []*event.InterApp
	err       error
}

func (f *fakePublisher) PublishRouted(_ context.Context, ev *event.InterApp) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, ev)
	return nil
}

type fakeApps struct {
	processed []*event.InterApp
}

func (f *fakeApps) ProcessEvent(_ context.Context, ev *event.InterApp) (map[string]any, error) {
	f.processed = append(f.processed, ev)
	return map[string]any{"status": "applied"}, nil
}

type fakeOrgs struct {
	calls []string
	err   error
}

func (f *fakeOrgs) record(call string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeOrgs) AssignmentCreated(_ context.Context, _ *event.OrgAssignment) error {
	return f.record("created")
}
func (f *fakeOrgs) AssignmentUpdated(_ context.Context, _ *event.OrgAssignment) error {
	return f.record("updated")
}
func (f *fakeOrgs) AssignmentDeactivated(_ context.Context, _ *event.OrgAssignment) error {
	return f.record("deactivated")
}
func (f *fakeOrgs) AssignmentActivated(_ context.Context, _ *event.OrgAssignment) error {
	return f.record("activated")
}
func (f *fakeOrgs) AssignmentDeleted(_ context.Context, _ *event.OrgAssignment) error {
	return f.record("deleted")
}

type fakeCRM struct {
	synced []string // organization ids
}

func (f *fakeCRM) SyncOrganization(_ context.Context, tenantID, organizationID string, _ map[string]any) (activities.CRMSyncResult, error) {
	f.synced = append(f.synced, organizationID)
	return activities.CRMSyncResult{Success: true, OrganizationID: organizationID, TenantID: tenantID}, nil
}

func testActivities() (*activities.Activities, *fakePublisher, *fakeApps, *fakeOrgs, *fakeCRM) {
	pub := &fakePublisher{}
	apps := &fakeApps{}
	orgs := &fakeOrgs{}
	crm := &fakeCRM{}
	acts := &activities.Activities{
		Publisher: pub,
		Apps:      apps,
		Orgs:      orgs,
		CRM:       crm,
		Logger:    slog.Default(),
	}
	return acts, pub, apps, orgs, crm
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestInterAppRouting_RunsActivitiesInOrder(t *testing.T) {
	acts, pub, apps, _, _ := testActivities()
	wf := &fakeWorkflowContext{}

	input := mustJSON(t, event.InterApp{
		TargetApp: "crm",
		EventType: "user.created",
		TenantID:  "t1",
	})
	result, err := InterAppRouting(acts)(context.Background(), wf, input)
	if err != nil {
		t.Fatalf("workflow failed: %v", err)
	}

	want := []string{"routeInterAppEvent", "processInterAppEvent"}
	if len(wf.ran) != 2 || wf.ran[0] != want[0] || wf.ran[1] != want[1] {
		t.Fatalf("activities ran: %v", wf.ran)
	}
	if len(pub.published) != 1 || len(apps.processed) != 1 {
		t.Fatalf("collaborators: published=%d processed=%d", len(pub.published), len(apps.processed))
	}
	out := result.(map[string]any)
	if out["routing"] == nil || out["processing"] == nil {
		t.Fatalf("combined result incomplete: %v", out)
	}
}

func TestInterAppRouting_MissingTargetIsTerminal(t *testing.T) {
	acts, pub, _, _, _ := testActivities()
	wf := &fakeWorkflowContext{}

	input := mustJSON(t, event.InterApp{EventType: "user.created", TenantID: "t1"})
	_, err := InterAppRouting(acts)(context.Background(), wf, input)
	if !engine.IsTerminal(err) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if len(wf.ran) != 0 {
		t.Fatalf("no activity may run on structural failure: %v", wf.ran)
	}
	if len(pub.published) != 0 {
		t.Fatal("nothing may be published on structural failure")
	}
}

func TestInterAppRouting_ActivityErrorPropagates(t *testing.T) {
	acts, pub, _, _, _ := testActivities()
	pub.err = errors.New("kafka down")
	wf := &fakeWorkflowContext{}

	input := mustJSON(t, event.InterApp{TargetApp: "crm", EventType: "user.created"})
	_, err := InterAppRouting(acts)(context.Background(), wf, input)
	if err == nil {
		t.Fatal("expected failure from routing activity")
	}
	if engine.IsTerminal(err) {
		t.Fatalf("transient publish failure must stay retryable: %v", err)
	}
	if len(wf.ran) != 1 {
		t.Fatalf("processing must not run after routing fails: %v", wf.ran)
	}
}

func TestOrgAssignmentSync_CreatedSyncsToCRM(t *testing.T) {
	acts, _, _, orgs, crm := testActivities()
	wf := &fakeWorkflowContext{}

	input := mustJSON(t, event.OrgAssignment{
		EventType: event.OrgAssignmentCreated,
		TenantID:  "t1",
		AssignmentData: map[string]any{
			"data": map[string]any{"organizationId": "org-9"},
		},
	})
	result, err := OrgAssignmentSync(acts)(context.Background(), wf, input)
	if err != nil {
		t.Fatalf("workflow failed: %v", err)
	}

	want := []string{"processOrganizationAssignment", "syncOrganizationToCRM"}
	if len(wf.ran) != 2 || wf.ran[0] != want[0] || wf.ran[1] != want[1] {
		t.Fatalf("activities ran: %v", wf.ran)
	}
	if len(orgs.calls) != 1 || orgs.calls[0] != "created" {
		t.Fatalf("org calls: %v", orgs.calls)
	}
	// Organization id must come from the nested data object.
	if len(crm.synced) != 1 || crm.synced[0] != "org-9" {
		t.Fatalf("crm synced: %v", crm.synced)
	}
	out := result.(map[string]any)
	if out["crmSync"] == nil {
		t.Fatalf("result missing crmSync: %v", out)
	}
}

func TestOrgAssignmentSync_DeactivatedSkipsCRM(t *testing.T) {
	acts, _, _, orgs, crm := testActivities()
	wf := &fakeWorkflowContext{}

	input := mustJSON(t, event.OrgAssignment{
		EventType: event.OrgAssignmentDeactivated,
		TenantID:  "t1",
	})
	result, err := OrgAssignmentSync(acts)(context.Background(), wf, input)
	if err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	if len(wf.ran) != 1 || wf.ran[0] != "processOrganizationAssignment" {
		t.Fatalf("activities ran: %v", wf.ran)
	}
	if len(orgs.calls) != 1 || orgs.calls[0] != "deactivated" {
		t.Fatalf("org calls: %v", orgs.calls)
	}
	if len(crm.synced) != 0 {
		t.Fatalf("crm must not sync on deactivation: %v", crm.synced)
	}
	out := result.(map[string]any)
	if _, ok := out["crmSync"]; ok {
		t.Fatal("result must not contain crmSync")
	}
}

func TestOrgAssignmentSync_MissingTenantIsTerminal(t *testing.T) {
	acts, _, _, _, _ := testActivities()
	wf := &fakeWorkflowContext{}

	input := mustJSON(t, event.OrgAssignment{EventType: event.OrgAssignmentUpdated})
	_, err := OrgAssignmentSync(acts)(context.Background(), wf, input)
	if !engine.IsTerminal(err) {
		t.Fatalf("expected terminal error, got %v", err)
	}
}

func TestOrgAssignmentSync_UnknownEventTypeIsTerminal(t *testing.T) {
	acts, _, _, orgs, _ := testActivities()
	wf := &fakeWorkflowContext{}

	input := mustJSON(t, event.OrgAssignment{
		EventType: "organization.assignment.exploded",
		TenantID:  "t1",
	})
	_, err := OrgAssignmentSync(acts)(context.Background(), wf, input)
	if !engine.IsTerminal(err) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if len(orgs.calls) != 0 {
		t.Fatalf("no handler may run: %v", orgs.calls)
	}
}

func TestOrgAssignmentSync_UpdatedUsesTopLevelOrganizationID(t *testing.T) {
	acts, _, _, _, crm := testActivities()
	wf := &fakeWorkflowContext{}

	input := mustJSON(t, event.OrgAssignment{
		EventType:      event.OrgAssignmentUpdated,
		TenantID:       "t1",
		OrganizationID: "org-1",
		AssignmentData: map[string]any{"organizationId": "org-2"},
	})
	if _, err := OrgAssignmentSync(acts)(context.Background(), wf, input); err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	if len(crm.synced) != 1 || crm.synced[0] != "org-1" {
		t.Fatalf("crm synced: %v", crm.synced)
	}
}
