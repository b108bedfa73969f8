// Package route maps stream names to the workflow type that handles
// them.
package route

import (
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/engine"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/stream"
)

var streamWorkflows = map[string]engine.WorkflowType{
	stream.InterAppEvents:      engine.WorkflowInterAppRouting,
	stream.OrgAssignmentEvents: engine.WorkflowOrgAssignmentSync,
}

// Route returns the workflow type for a stream. ok is false for unknown
// streams: that is a configuration gap, so the caller logs the record
// and leaves it pending for an operator instead of acking or crashing.
func Route(streamName string) (engine.WorkflowType, bool) {
	wt, ok := streamWorkflows[streamName]
	return wt, ok
}

// Streams returns every stream the bridge consumes, in a stable order.
func Streams() []string {
	return []string{stream.InterAppEvents, stream.OrgAssignmentEvents}
}
