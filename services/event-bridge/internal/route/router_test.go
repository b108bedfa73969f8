package route

import (
	"testing"

	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/engine"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/stream"
)

func TestRoute_KnownStreams(t *testing.T) {
	wt, ok := Route(stream.InterAppEvents)
	if !ok || wt != engine.WorkflowInterAppRouting {
		t.Fatalf("inter-app stream routed to %q (ok=%v)", wt, ok)
	}
	wt, ok = Route(stream.OrgAssignmentEvents)
	if !ok || wt != engine.WorkflowOrgAssignmentSync {
		t.Fatalf("org-assignment stream routed to %q (ok=%v)", wt, ok)
	}
}

func TestRoute_UnknownStream(t *testing.T) {
	if wt, ok := Route("some-new-stream"); ok {
		t.Fatalf("unknown stream unexpectedly routed to %q", wt)
	}
}

func TestStreams_CoversEveryRoute(t *testing.T) {
	for _, s := range Streams() {
		if _, ok := Route(s); !ok {
			t.Fatalf("stream %q is consumed but has no route", s)
		}
	}
	if len(Streams()) != len(streamWorkflows) {
		t.Fatalf("Streams() and route table disagree")
	}
}
