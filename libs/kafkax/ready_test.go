package kafkax

import (
	"context"
	"testing"
)

func TestReadyCheck_NoBrokersConfigured(t *testing.T) {
	check := ReadyCheck("")
	if err := check(context.Background()); err == nil {
		t.Fatal("expected error with no brokers configured")
	}
}
