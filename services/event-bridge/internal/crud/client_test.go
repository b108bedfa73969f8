package crud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/event"
)

func TestClient_ProcessEvent(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if body["eventType"] != "user.created" {
			t.Errorf("unexpected eventType: %v", body["eventType"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "applied"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.ProcessEvent(context.Background(), &event.InterApp{
		TargetApp: "crm",
		EventType: "user.created",
		TenantID:  "t1",
	})
	if err != nil {
		t.Fatalf("process event: %v", err)
	}
	if gotPath != "/apps/crm/events" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if result["status"] != "applied" {
		t.Fatalf("unexpected result: %v", result)
	}
}

func TestClient_SyncOrganization(t *testing.T) {
	syncedAt := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm/organizations/sync" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":        true,
			"organizationId": "org-9",
			"tenantId":       "t1",
			"syncedAt":       syncedAt.Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.SyncOrganization(context.Background(), "t1", "org-9", map[string]any{"role": "manager"})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !result.Success || result.OrganizationID != "org-9" || !result.SyncedAt.Equal(syncedAt) {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClient_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "tenant not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.AssignmentCreated(context.Background(), &event.OrgAssignment{
		EventType: event.OrgAssignmentCreated,
		TenantID:  "missing",
	})
	if err == nil {
		t.Fatal("expected error on 404")
	}
}
