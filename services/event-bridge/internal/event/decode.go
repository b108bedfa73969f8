package event

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/stream"
)

// Field is the tagged value of one record field: either the JSON value
// it parsed into, or the raw string when it is not valid JSON. Producers
// mix plain strings and serialized objects in the same record, so field
// parsing must never fail the record.
type Field struct {
	raw    string
	parsed any
	isJSON bool
}

func ParseField(raw string) Field {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Field{raw: raw}
	}
	return Field{raw: raw, parsed: v, isJSON: true}
}

// Value returns the parsed JSON value, or the raw string when the field
// was not valid JSON.
func (f Field) Value() any {
	if f.isJSON {
		return f.parsed
	}
	return f.raw
}

func (f Field) Raw() string { return f.raw }

// Object returns the field as a JSON object, if it is one.
func (f Field) Object() (map[string]any, bool) {
	obj, ok := f.parsed.(map[string]any)
	return obj, ok
}

// Envelope fields some producers wrap their payload in; their keys get
// flattened one level into the event.
const (
	interAppEnvelopeField      = "message"
	orgAssignmentEnvelopeField = "event"
)

// Decode turns a raw record into the typed event for its stream. Every
// field is parsed tolerantly; envelope unwrapping happens before the
// typed event is built. The returned error is a *ValidationError when
// the record parsed but lacks a required discriminant.
func Decode(streamName string, rec stream.Record) (Event, error) {
	fields := map[string]any{"id": rec.ID}
	for k, v := range rec.Values {
		fields[k] = ParseField(v).Value()
	}

	switch streamName {
	case stream.InterAppEvents:
		flattenEnvelope(fields, interAppEnvelopeField)
		ev := &InterApp{
			ID:        stringField(fields, "id"),
			SourceApp: stringField(fields, "sourceApplication"),
			TargetApp: stringField(fields, "targetApplication"),
			EventType: stringField(fields, "eventType"),
			TenantID:  stringField(fields, "tenantId"),
			EntityID:  stringField(fields, "entityId"),
		}
		if payload, ok := fields["payload"].(map[string]any); ok {
			ev.Payload = payload
		}
		if err := ev.Validate(); err != nil {
			return nil, err
		}
		return ev, nil

	case stream.OrgAssignmentEvents:
		flattenEnvelope(fields, orgAssignmentEnvelopeField)
		ev := &OrgAssignment{
			ID:             stringField(fields, "id"),
			EventType:      stringField(fields, "eventType"),
			TenantID:       stringField(fields, "tenantId"),
			OrganizationID: stringField(fields, "organizationId"),
		}
		if data, ok := fields["data"].(map[string]any); ok {
			ev.AssignmentData = data
		} else if data, ok := fields["assignmentData"].(map[string]any); ok {
			ev.AssignmentData = data
		}
		if err := ev.Validate(); err != nil {
			return nil, err
		}
		return ev, nil
	}

	return nil, fmt.Errorf("no decoder for stream %q", streamName)
}

// flattenEnvelope merges the keys of an object-valued envelope field one
// level up. Explicit top-level fields win over envelope keys; the
// envelope field itself is consumed.
func flattenEnvelope(fields map[string]any, envelope string) {
	obj, ok := fields[envelope].(map[string]any)
	if !ok {
		return
	}
	delete(fields, envelope)
	for k, v := range obj {
		if _, exists := fields[k]; !exists {
			fields[k] = v
		}
	}
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		// Stream record values are strings on the wire; a bare number
		// only shows up when a producer JSON-encoded one. Plain
		// formatting, so a long numeric id never turns scientific.
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
