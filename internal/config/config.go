// Package config loads this service's configuration from a YAML file plus
// environment variable overrides, following the same two-phase
// (file-then-env) load the teacher repo uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "tracefields/pkg/errors"
	"tracefields/pkg/tracing"

	"gopkg.in/yaml.v2"
)

// AppConfig holds process-identity and logging settings.
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// ServerConfig configures the demo HTTP server that exercises the
// propagation core end-to-end (see internal/app).
type ServerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Config is this service's root configuration, decoded from YAML and then
// overridden by environment variables.
type Config struct {
	App     AppConfig             `yaml:"app"`
	Server  ServerConfig          `yaml:"server"`
	Metrics MetricsConfig         `yaml:"metrics"`
	Tracing tracing.TracingConfig `yaml:"tracing"`

	loadedFromFile bool
}

// LoadConfig loads configuration from configFile (if non-empty), applies
// defaults for anything left unset, then applies environment variable
// overrides, and finally validates the result.
func LoadConfig(configFile string) (*Config, error) {
	config := &Config{}

	if configFile != "" {
		if err := loadConfigFile(configFile, config); err != nil {
			fmt.Printf("Warning: failed to load config file %s: %v\n", configFile, err)
		} else {
			config.loadedFromFile = true
			fmt.Printf("Loaded configuration from file: %s\n", configFile)
		}
	}

	applyDefaults(config)
	applyEnvironmentOverrides(config)

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadConfigFile(filename string, config *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyDefaults fills in every field LoadConfig found unset, mirroring
// DefaultTracingConfig for the Tracing section.
func applyDefaults(config *Config) {
	if config.App.Name == "" {
		config.App.Name = "tracefields"
	}
	if config.App.Version == "" {
		config.App.Version = "v1.0.0"
	}
	if config.App.Environment == "" {
		config.App.Environment = "production"
	}
	if config.App.LogLevel == "" {
		config.App.LogLevel = "info"
	}
	if config.App.LogFormat == "" {
		config.App.LogFormat = "json"
	}

	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8401
	}
	if config.Server.ReadTimeout == "" {
		config.Server.ReadTimeout = "5s"
	}
	if config.Server.WriteTimeout == "" {
		config.Server.WriteTimeout = "5s"
	}

	if config.Metrics.Port == 0 {
		config.Metrics.Port = 8001
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}

	def := tracing.DefaultTracingConfig()
	if config.Tracing.ServiceName == "" {
		config.Tracing.ServiceName = def.ServiceName
	}
	if config.Tracing.ServiceVersion == "" {
		config.Tracing.ServiceVersion = config.App.Version
	}
	if config.Tracing.Environment == "" {
		config.Tracing.Environment = config.App.Environment
	}
	if config.Tracing.Exporter == "" {
		config.Tracing.Exporter = def.Exporter
	}
	if config.Tracing.Endpoint == "" {
		config.Tracing.Endpoint = def.Endpoint
	}
	if config.Tracing.SampleRate == 0 {
		config.Tracing.SampleRate = def.SampleRate
	}
	if config.Tracing.BatchTimeout == 0 {
		config.Tracing.BatchTimeout = def.BatchTimeout
	}
	if config.Tracing.MaxBatchSize == 0 {
		config.Tracing.MaxBatchSize = def.MaxBatchSize
	}
	if config.Tracing.Headers == nil {
		config.Tracing.Headers = make(map[string]string)
	}
}

// applyEnvironmentOverrides mirrors the teacher's SSW_* env-var convention,
// prefixed TRACEFIELDS_ for this service.
func applyEnvironmentOverrides(config *Config) {
	config.App.Name = getEnvString("TRACEFIELDS_APP_NAME", config.App.Name)
	config.App.Version = getEnvString("TRACEFIELDS_APP_VERSION", config.App.Version)
	config.App.Environment = getEnvString("TRACEFIELDS_APP_ENVIRONMENT", config.App.Environment)
	config.App.LogLevel = getEnvString("TRACEFIELDS_LOG_LEVEL", config.App.LogLevel)
	config.App.LogFormat = getEnvString("TRACEFIELDS_LOG_FORMAT", config.App.LogFormat)

	config.Server.Enabled = getEnvBool("TRACEFIELDS_SERVER_ENABLED", config.Server.Enabled)
	config.Server.Host = getEnvString("TRACEFIELDS_SERVER_HOST", config.Server.Host)
	config.Server.Port = getEnvInt("TRACEFIELDS_SERVER_PORT", config.Server.Port)

	config.Metrics.Enabled = getEnvBool("TRACEFIELDS_METRICS_ENABLED", config.Metrics.Enabled)
	config.Metrics.Port = getEnvInt("TRACEFIELDS_METRICS_PORT", config.Metrics.Port)
	config.Metrics.Path = getEnvString("TRACEFIELDS_METRICS_PATH", config.Metrics.Path)

	config.Tracing.Enabled = getEnvBool("TRACEFIELDS_TRACING_ENABLED", config.Tracing.Enabled)
	config.Tracing.ServiceName = getEnvString("TRACEFIELDS_TRACING_SERVICE_NAME", config.Tracing.ServiceName)
	config.Tracing.Exporter = getEnvString("TRACEFIELDS_TRACING_EXPORTER", config.Tracing.Exporter)
	config.Tracing.Endpoint = getEnvString("TRACEFIELDS_TRACING_ENDPOINT", config.Tracing.Endpoint)
	config.Tracing.OverlayEnabled = getEnvBool("TRACEFIELDS_OVERLAY_ENABLED", config.Tracing.OverlayEnabled)
	if names := getEnvStringSlice("TRACEFIELDS_REDACTED_FIELDS", nil); names != nil {
		config.Tracing.RedactedFields = names
	}
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return defaultValue
}

// ValidateConfig runs every field-group validator and aggregates their
// errors into a single ConfigError (spec §7 "Fail fast at build time").
func ValidateConfig(config *Config) error {
	v := &ConfigValidator{config: config}
	return v.Validate()
}

// ConfigValidator accumulates validation errors across field groups instead
// of failing on the first one, so a caller sees every problem at once.
type ConfigValidator struct {
	config *Config
	errors []error
}

func (v *ConfigValidator) Validate() error {
	v.validateApp()
	v.validateServer()
	v.validateMetrics()
	v.validateTracing()

	if len(v.errors) > 0 {
		return v.buildValidationError()
	}
	return nil
}

func (v *ConfigValidator) addError(component, operation, message string) {
	err := apperrors.ConfigError(operation, message).WithMetadata("component", component)
	v.errors = append(v.errors, err)
}

func (v *ConfigValidator) validateApp() {
	if v.config.App.Name == "" {
		v.addError("app", "validate_name", "application name cannot be empty")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[v.config.App.LogLevel] {
		v.addError("app", "validate_log_level", fmt.Sprintf("invalid log level: %s", v.config.App.LogLevel))
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[v.config.App.LogFormat] {
		v.addError("app", "validate_log_format", fmt.Sprintf("invalid log format: %s", v.config.App.LogFormat))
	}
}

func (v *ConfigValidator) validateServer() {
	if !v.config.Server.Enabled {
		return
	}
	if v.config.Server.Port <= 0 || v.config.Server.Port > 65535 {
		v.addError("server", "validate_port", fmt.Sprintf("invalid server port: %d", v.config.Server.Port))
	}
	if v.config.Server.Host == "" {
		v.addError("server", "validate_host", "server host cannot be empty when enabled")
	}
	if v.config.Server.ReadTimeout != "" {
		if _, err := time.ParseDuration(v.config.Server.ReadTimeout); err != nil {
			v.addError("server", "validate_read_timeout", fmt.Sprintf("invalid read timeout: %s", v.config.Server.ReadTimeout))
		}
	}
	if v.config.Server.WriteTimeout != "" {
		if _, err := time.ParseDuration(v.config.Server.WriteTimeout); err != nil {
			v.addError("server", "validate_write_timeout", fmt.Sprintf("invalid write timeout: %s", v.config.Server.WriteTimeout))
		}
	}
}

func (v *ConfigValidator) validateMetrics() {
	if !v.config.Metrics.Enabled {
		return
	}
	if v.config.Metrics.Port <= 0 || v.config.Metrics.Port > 65535 {
		v.addError("metrics", "validate_port", fmt.Sprintf("invalid metrics port: %d", v.config.Metrics.Port))
	}
	if v.config.Metrics.Path == "" {
		v.addError("metrics", "validate_path", "metrics path cannot be empty when enabled")
	}
	if v.config.Server.Enabled && v.config.Server.Port == v.config.Metrics.Port {
		v.addError("metrics", "validate_port_conflict", "metrics port conflicts with server port")
	}
}

// validateTracing checks the propagation-layer declarations (spec §7
// ConfigError: "null/empty field name, empty prefix, ... duplicate field
// under redaction"). The authoritative check still happens inside
// propagation.FactoryBuilder.Build when internal/app wires the declared
// fields; this pass only catches what is visible from the raw config shape
// so a caller gets a fast, file-line-free diagnosis before any factory is
// even built.
func (v *ConfigValidator) validateTracing() {
	if !v.config.Tracing.Enabled {
		return
	}
	if v.config.Tracing.ServiceName == "" {
		v.addError("tracing", "validate_service_name", "service name cannot be empty when tracing is enabled")
	}

	validExporters := map[string]bool{"jaeger": true, "otlp": true, "console": true}
	if !validExporters[v.config.Tracing.Exporter] {
		v.addError("tracing", "validate_exporter", fmt.Sprintf("unsupported exporter: %s", v.config.Tracing.Exporter))
	}

	if v.config.Tracing.SampleRate < 0 || v.config.Tracing.SampleRate > 1 {
		v.addError("tracing", "validate_sample_rate", fmt.Sprintf("sample rate must be in [0,1]: %v", v.config.Tracing.SampleRate))
	}

	seen := make(map[string]bool, len(v.config.Tracing.Fields))
	for _, f := range v.config.Tracing.Fields {
		if f.Name == "" {
			v.addError("tracing", "validate_field_name", "declared field name cannot be empty")
			continue
		}
		if seen[strings.ToLower(f.Name)] {
			v.addError("tracing", "validate_field_name", fmt.Sprintf("field %q declared more than once", f.Name))
		}
		seen[strings.ToLower(f.Name)] = true
	}
	for _, g := range v.config.Tracing.PrefixedFields {
		if g.Prefix == "" {
			v.addError("tracing", "validate_prefix", "prefixed field group must declare a non-empty prefix")
		}
		if len(g.Names) == 0 {
			v.addError("tracing", "validate_prefix", fmt.Sprintf("prefix group %q declares no field names", g.Prefix))
		}
	}

	redacted := make(map[string]bool, len(v.config.Tracing.RedactedFields))
	for _, name := range v.config.Tracing.RedactedFields {
		lower := strings.ToLower(name)
		if lower == "" {
			v.addError("tracing", "validate_redacted_field", "redacted field name cannot be empty")
			continue
		}
		if redacted[lower] {
			v.addError("tracing", "validate_redacted_field", fmt.Sprintf("field %q is redacted more than once", name))
		}
		redacted[lower] = true
	}

	if v.config.Tracing.OverlayEnabled {
		names := make(map[string]bool, len(v.config.Tracing.OverlaySystems))
		for _, s := range v.config.Tracing.OverlaySystems {
			if s.Name == "" {
				v.addError("tracing", "validate_overlay_system", "overlay system name cannot be empty")
				continue
			}
			if names[s.Name] {
				v.addError("tracing", "validate_overlay_system", fmt.Sprintf("overlay system %q configured more than once", s.Name))
			}
			names[s.Name] = true
		}
	}
}

func (v *ConfigValidator) buildValidationError() error {
	if len(v.errors) == 1 {
		return v.errors[0]
	}
	messages := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return apperrors.ConfigError("validate", fmt.Sprintf("multiple validation errors: %s", strings.Join(messages, "; ")))
}
