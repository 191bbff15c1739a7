package app

import (
	"testing"
	"time"
)

// TestAppLifecycle verifies New/Start/Stop complete without error on the
// default configuration, in which the demo HTTP and metrics servers are
// both disabled.
func TestAppLifecycle(t *testing.T) {
	a, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestAppStartsDemoServerWhenEnabled(t *testing.T) {
	t.Setenv("TRACEFIELDS_SERVER_ENABLED", "true")
	t.Setenv("TRACEFIELDS_SERVER_HOST", "127.0.0.1")
	t.Setenv("TRACEFIELDS_SERVER_PORT", "18401")

	a, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.httpServer == nil {
		t.Fatal("expected demo http server to be built when enabled")
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop()

	time.Sleep(50 * time.Millisecond)
}

func TestAppBuildsPropagationEvenWithoutConfigFile(t *testing.T) {
	a, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.tracingManager.Propagation() == nil {
		t.Fatal("expected a non-nil Propagation even with tracing disabled")
	}
}
