package config

import (
	"strings"
	"testing"

	"tracefields/pkg/tracing"
)

func validBaseConfig() *Config {
	return &Config{
		App:     AppConfig{Name: "test", Version: "1.0", LogLevel: "info", LogFormat: "json"},
		Server:  ServerConfig{Enabled: true, Host: "0.0.0.0", Port: 8080},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Tracing: tracing.TracingConfig{
			Enabled:     true,
			ServiceName: "test-tracer",
			Exporter:    "console",
			SampleRate:  1.0,
		},
	}
}

func TestValidConfigPasses(t *testing.T) {
	config := validBaseConfig()
	if err := ValidateConfig(config); err != nil {
		t.Errorf("valid config should pass validation, got error: %v", err)
	}
}

func TestInvalidServerPort(t *testing.T) {
	testCases := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"port too large", 65536},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := validBaseConfig()
			config.Server.Port = tc.port

			err := ValidateConfig(config)
			if err == nil {
				t.Fatalf("invalid server port %d should fail validation", tc.port)
			}
			if !strings.Contains(err.Error(), "invalid server port") {
				t.Errorf("expected 'invalid server port' error, got: %v", err)
			}
		})
	}
}

func TestPortConflict(t *testing.T) {
	config := validBaseConfig()
	config.Metrics.Port = config.Server.Port

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("port conflict should fail validation")
	}
	if !strings.Contains(err.Error(), "port conflict") {
		t.Errorf("expected 'port conflict' error, got: %v", err)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	config := validBaseConfig()
	config.App.LogLevel = "invalid-level"

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("invalid log level should fail validation")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("expected 'invalid log level' error, got: %v", err)
	}
}

func TestInvalidExporter(t *testing.T) {
	config := validBaseConfig()
	config.Tracing.Exporter = "carrier-pigeon"

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("unsupported exporter should fail validation")
	}
	if !strings.Contains(err.Error(), "unsupported exporter") {
		t.Errorf("expected 'unsupported exporter' error, got: %v", err)
	}
}

func TestInvalidSampleRate(t *testing.T) {
	config := validBaseConfig()
	config.Tracing.SampleRate = 1.5

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("out-of-range sample rate should fail validation")
	}
	if !strings.Contains(err.Error(), "sample rate must be in") {
		t.Errorf("expected sample rate error, got: %v", err)
	}
}

func TestDuplicateFieldNameRejected(t *testing.T) {
	config := validBaseConfig()
	config.Tracing.Fields = []tracing.FieldConfig{{Name: "user-id"}, {Name: "User-Id"}}

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("duplicate field name should fail validation")
	}
	if !strings.Contains(err.Error(), "declared more than once") {
		t.Errorf("expected duplicate-field error, got: %v", err)
	}
}

func TestPrefixGroupRequiresPrefixAndNames(t *testing.T) {
	config := validBaseConfig()
	config.Tracing.PrefixedFields = []tracing.PrefixedFieldConfig{{Prefix: "", Names: nil}}

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("empty prefix group should fail validation")
	}
	if !strings.Contains(err.Error(), "non-empty prefix") {
		t.Errorf("expected prefix error, got: %v", err)
	}
}

func TestDuplicateRedactedFieldRejected(t *testing.T) {
	config := validBaseConfig()
	config.Tracing.RedactedFields = []string{"internal-token", "internal-token"}

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("duplicate redacted field should fail validation")
	}
	if !strings.Contains(err.Error(), "redacted more than once") {
		t.Errorf("expected redacted-field error, got: %v", err)
	}
}

func TestDuplicateOverlaySystemRejected(t *testing.T) {
	config := validBaseConfig()
	config.Tracing.OverlayEnabled = true
	config.Tracing.OverlaySystems = []tracing.OverlaySystemConfig{{Name: "edge"}, {Name: "edge"}}

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("duplicate overlay system should fail validation")
	}
	if !strings.Contains(err.Error(), "configured more than once") {
		t.Errorf("expected overlay-system error, got: %v", err)
	}
}

func TestInvalidReadTimeout(t *testing.T) {
	config := validBaseConfig()
	config.Server.ReadTimeout = "invalid-duration"

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("invalid read timeout should fail validation")
	}
	if !strings.Contains(err.Error(), "invalid read timeout") {
		t.Errorf("expected 'invalid read timeout' error, got: %v", err)
	}
}

func TestMultipleErrorsAggregated(t *testing.T) {
	config := validBaseConfig()
	config.App.LogLevel = "bogus"
	config.Server.Port = -1

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("expected aggregated validation error")
	}
	if !strings.Contains(err.Error(), "invalid log level") || !strings.Contains(err.Error(), "invalid server port") {
		t.Errorf("expected both errors aggregated, got: %v", err)
	}
}
