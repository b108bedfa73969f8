package config

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "250ms")
	if got := Duration("TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Fatalf("got %s", got)
	}
	t.Setenv("TEST_DURATION", "garbage")
	if got := Duration("TEST_DURATION", time.Second); got != time.Second {
		t.Fatalf("fallback not used, got %s", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "false")
	if Bool("TEST_BOOL", true) {
		t.Fatal("expected false")
	}
	t.Setenv("TEST_BOOL", "")
	if !Bool("TEST_BOOL", true) {
		t.Fatal("expected fallback true")
	}
}

func TestInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := Int("TEST_INT", 7); got != 42 {
		t.Fatalf("got %d", got)
	}
	t.Setenv("TEST_INT", "4.2")
	if got := Int("TEST_INT", 7); got != 7 {
		t.Fatalf("fallback not used, got %d", got)
	}
}
