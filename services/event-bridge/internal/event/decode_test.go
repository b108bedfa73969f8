package event

import (
	"errors"
	"reflect"
	"testing"

	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/stream"
)

func TestParseField_KeepsRawStringOnParseFailure(t *testing.T) {
	f := ParseField("not json at all")
	if v, ok := f.Value().(string); !ok || v != "not json at all" {
		t.Fatalf("expected raw string preserved, got %#v", f.Value())
	}
}

func TestParseField_ParsesJSON(t *testing.T) {
	f := ParseField(`{"a":1,"b":"x"}`)
	obj, ok := f.Object()
	if !ok {
		t.Fatalf("expected object, got %#v", f.Value())
	}
	if obj["b"] != "x" {
		t.Fatalf("expected b=x, got %v", obj["b"])
	}
}

func TestDecode_InterApp(t *testing.T) {
	rec := stream.Record{
		ID: "1700000000000-0",
		Values: map[string]string{
			"sourceApplication": "hr",
			"targetApplication": "crm",
			"eventType":         "user.created",
			"tenantId":          "t1",
			"entityId":          "u42",
			"payload":           `{"email":"a@b.c"}`,
		},
	}
	ev, err := Decode(stream.InterAppEvents, rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ia, ok := ev.(*InterApp)
	if !ok {
		t.Fatalf("expected *InterApp, got %T", ev)
	}
	if ia.ID != "1700000000000-0" || ia.TargetApp != "crm" || ia.TenantID != "t1" {
		t.Fatalf("unexpected event: %+v", ia)
	}
	if ia.Payload["email"] != "a@b.c" {
		t.Fatalf("payload not parsed: %+v", ia.Payload)
	}
}

func TestDecode_NumericIDKeepsAllDigits(t *testing.T) {
	// A bare numeric field parses as a JSON number; formatting it back
	// must not drift into scientific notation.
	rec := stream.Record{
		ID: "1-0",
		Values: map[string]string{
			"targetApplication": "crm",
			"eventType":         "user.created",
			"tenantId":          "1234567890123",
			"entityId":          "42",
		},
	}
	ev, err := Decode(stream.InterAppEvents, rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ia := ev.(*InterApp)
	if ia.TenantID != "1234567890123" {
		t.Fatalf("tenant id mangled: %q", ia.TenantID)
	}
	if ia.EntityID != "42" {
		t.Fatalf("entity id mangled: %q", ia.EntityID)
	}
}

func TestDecode_InterAppEnvelopeFlattening(t *testing.T) {
	rec := stream.Record{
		ID: "1-0",
		Values: map[string]string{
			"message": `{"targetApplication":"billing","eventType":"credit.allocated","tenantId":"t2"}`,
		},
	}
	ev, err := Decode(stream.InterAppEvents, rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ia := ev.(*InterApp)
	if ia.TargetApp != "billing" || ia.EventType != "credit.allocated" || ia.TenantID != "t2" {
		t.Fatalf("envelope not flattened: %+v", ia)
	}
}

func TestDecode_EnvelopeDoesNotClobberTopLevel(t *testing.T) {
	rec := stream.Record{
		ID: "1-0",
		Values: map[string]string{
			"eventType": "user.created",
			"message":   `{"eventType":"stale.type","targetApplication":"crm"}`,
		},
	}
	ev, err := Decode(stream.InterAppEvents, rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ia := ev.(*InterApp)
	if ia.EventType != "user.created" {
		t.Fatalf("top-level eventType clobbered: %q", ia.EventType)
	}
	if ia.TargetApp != "crm" {
		t.Fatalf("envelope key lost: %q", ia.TargetApp)
	}
}

func TestDecode_MissingTargetApplicationIsValidationError(t *testing.T) {
	rec := stream.Record{
		ID:     "1-0",
		Values: map[string]string{"eventType": "user.created", "tenantId": "t1"},
	}
	_, err := Decode(stream.InterAppEvents, rec)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "targetApplication" {
		t.Fatalf("unexpected field: %q", verr.Field)
	}
}

func TestDecode_OrgAssignmentEnvelope(t *testing.T) {
	rec := stream.Record{
		ID: "2-0",
		Values: map[string]string{
			"event": `{"eventType":"organization.assignment.created","tenantId":"t1","data":{"organizationId":"org-9","role":"manager"}}`,
		},
	}
	ev, err := Decode(stream.OrgAssignmentEvents, rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	oa := ev.(*OrgAssignment)
	if oa.EventType != OrgAssignmentCreated || oa.TenantID != "t1" {
		t.Fatalf("unexpected event: %+v", oa)
	}
	if oa.AssignmentData["role"] != "manager" {
		t.Fatalf("assignment data lost: %+v", oa.AssignmentData)
	}
}

func TestDecode_OrgAssignmentMissingTenantIsValidationError(t *testing.T) {
	rec := stream.Record{
		ID:     "2-0",
		Values: map[string]string{"eventType": "organization.assignment.updated"},
	}
	_, err := Decode(stream.OrgAssignmentEvents, rec)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDecode_UnknownStream(t *testing.T) {
	_, err := Decode("mystery-stream", stream.Record{ID: "1-0"})
	if err == nil {
		t.Fatal("expected error for unknown stream")
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Fatal("unknown stream must not be a validation error")
	}
}

func TestDecode_IsDeterministic(t *testing.T) {
	rec := stream.Record{
		ID: "3-0",
		Values: map[string]string{
			"targetApplication": "crm",
			"eventType":         "user.created",
			"tenantId":          "t1",
		},
	}
	first, err := Decode(stream.InterAppEvents, rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := Decode(stream.InterAppEvents, rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("redelivered record decoded differently: %+v vs %+v", first, second)
	}
}

func TestResolveOrganizationID(t *testing.T) {
	cases := []struct {
		name string
		ev   OrgAssignment
		want string
	}{
		{
			name: "top level wins",
			ev:   OrgAssignment{OrganizationID: "org-1", AssignmentData: map[string]any{"organizationId": "org-2"}},
			want: "org-1",
		},
		{
			name: "assignment data",
			ev:   OrgAssignment{AssignmentData: map[string]any{"organizationId": "org-2"}},
			want: "org-2",
		},
		{
			name: "nested data",
			ev:   OrgAssignment{AssignmentData: map[string]any{"data": map[string]any{"organizationId": "org-3"}}},
			want: "org-3",
		},
		{
			name: "absent",
			ev:   OrgAssignment{},
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ev.ResolveOrganizationID(); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
