// Package event defines the typed events the bridge extracts from raw
// stream records and the tolerant decoding rules that produce them.
package event

import "fmt"

// Event is one decoded stream record. Exactly two kinds exist: InterApp
// and OrgAssignment.
type Event interface {
	// Tenant returns the tenant the event belongs to, or "" for
	// system-wide operations.
	Tenant() string
	// Validate checks the structural discriminants the rest of the
	// pipeline relies on. A failure here is a *ValidationError and is
	// never worth retrying.
	Validate() error
}

// InterApp is an event emitted by one application of the suite for
// another (e.g. HR telling CRM a user was created).
type InterApp struct {
	ID        string         `json:"id"`
	SourceApp string         `json:"sourceApplication"`
	TargetApp string         `json:"targetApplication"`
	EventType string         `json:"eventType"`
	TenantID  string         `json:"tenantId"`
	EntityID  string         `json:"entityId"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func (e *InterApp) Tenant() string { return e.TenantID }

func (e *InterApp) Validate() error {
	if e.EventType == "" {
		return &ValidationError{Field: "eventType"}
	}
	if e.TargetApp == "" {
		return &ValidationError{Field: "targetApplication"}
	}
	return nil
}

// Organization-assignment event types the sync workflow understands.
const (
	OrgAssignmentCreated     = "organization.assignment.created"
	OrgAssignmentUpdated     = "organization.assignment.updated"
	OrgAssignmentDeactivated = "organization.assignment.deactivated"
	OrgAssignmentActivated   = "organization.assignment.activated"
	OrgAssignmentDeleted     = "organization.assignment.deleted"
)

// OrgAssignment is a change to an organizational assignment that must be
// mirrored into downstream systems.
type OrgAssignment struct {
	ID             string         `json:"id"`
	EventType      string         `json:"eventType"`
	TenantID       string         `json:"tenantId"`
	OrganizationID string         `json:"organizationId,omitempty"`
	AssignmentData map[string]any `json:"assignmentData,omitempty"`
}

func (e *OrgAssignment) Tenant() string { return e.TenantID }

func (e *OrgAssignment) Validate() error {
	if e.EventType == "" {
		return &ValidationError{Field: "eventType"}
	}
	if e.TenantID == "" {
		return &ValidationError{Field: "tenantId"}
	}
	return nil
}

// ResolveOrganizationID returns the organization the assignment belongs
// to. Producers are inconsistent about where they put it: some set it
// top-level, older ones bury it in the assignment payload.
func (e *OrgAssignment) ResolveOrganizationID() string {
	if e.OrganizationID != "" {
		return e.OrganizationID
	}
	if v, ok := e.AssignmentData["organizationId"].(string); ok && v != "" {
		return v
	}
	if data, ok := e.AssignmentData["data"].(map[string]any); ok {
		if v, ok := data["organizationId"].(string); ok {
			return v
		}
	}
	return ""
}

// ValidationError marks an event that parsed fine but is structurally
// incomplete. Distinct from parse trouble on purpose: a record missing
// its discriminant will be just as invalid on every redelivery.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("event is missing required field %q", e.Field)
}
