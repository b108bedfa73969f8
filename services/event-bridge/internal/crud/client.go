// Package crud is the HTTP client for the suite's CRUD layer and the
// downstream CRM sync endpoint. The bridge treats both as external
// collaborators: it only knows their request/response shapes.
package crud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/activities"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/event"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ProcessEvent asks the target application to apply an inter-app event.
func (c *Client) ProcessEvent(ctx context.Context, ev *event.InterApp) (map[string]any, error) {
	var result map[string]any
	path := fmt.Sprintf("/apps/%s/events", ev.TargetApp)
	if err := c.post(ctx, path, ev, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) AssignmentCreated(ctx context.Context, ev *event.OrgAssignment) error {
	return c.post(ctx, "/organization-assignments/created", ev, nil)
}

func (c *Client) AssignmentUpdated(ctx context.Context, ev *event.OrgAssignment) error {
	return c.post(ctx, "/organization-assignments/updated", ev, nil)
}

func (c *Client) AssignmentDeactivated(ctx context.Context, ev *event.OrgAssignment) error {
	return c.post(ctx, "/organization-assignments/deactivated", ev, nil)
}

func (c *Client) AssignmentActivated(ctx context.Context, ev *event.OrgAssignment) error {
	return c.post(ctx, "/organization-assignments/activated", ev, nil)
}

func (c *Client) AssignmentDeleted(ctx context.Context, ev *event.OrgAssignment) error {
	return c.post(ctx, "/organization-assignments/deleted", ev, nil)
}

// SyncOrganization mirrors the organization into the CRM.
func (c *Client) SyncOrganization(ctx context.Context, tenantID, organizationID string, assignmentData map[string]any) (activities.CRMSyncResult, error) {
	req := map[string]any{
		"tenantId":       tenantID,
		"organizationId": organizationID,
		"assignmentData": assignmentData,
	}
	var result activities.CRMSyncResult
	if err := c.post(ctx, "/crm/organizations/sync", req, &result); err != nil {
		return activities.CRMSyncResult{}, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

var (
	_ activities.AppProcessor        = (*Client)(nil)
	_ activities.OrganizationService = (*Client)(nil)
	_ activities.CRMClient           = (*Client)(nil)
)
