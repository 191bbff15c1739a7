// Package tracing wires this module's extra-field propagation core onto a
// concrete OpenTelemetry tracer: it owns the TracerProvider, the exporter,
// and the composed propagation.TextMapPropagator that carries both the
// primary trace context and the extra fields/overlay systems declared in
// configuration.
package tracing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelpropagation "go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"tracefields/pkg/propagation"
	"tracefields/pkg/samplingoverlay"
)

// FieldConfig configures a single direct extra field.
type FieldConfig struct {
	Name string `yaml:"name"`
}

// PrefixedFieldConfig configures a prefix-aliased group of extra fields.
type PrefixedFieldConfig struct {
	Prefix string   `yaml:"prefix"`
	Names  []string `yaml:"names"`
}

// OverlaySystemConfig declares one secondary-sampling system as configured
// locally at process start (spec §4.7's "Configured locally?").
type OverlaySystemConfig struct {
	Name string `yaml:"name"`
}

// TracingConfig configures distributed tracing and this module's extra-field
// propagation layer.
type TracingConfig struct {
	Enabled        bool              `yaml:"enabled"`
	ServiceName    string            `yaml:"service_name"`
	ServiceVersion string            `yaml:"service_version"`
	Environment    string            `yaml:"environment"`
	Exporter       string            `yaml:"exporter"` // "jaeger", "otlp", "console"
	Endpoint       string            `yaml:"endpoint"`
	SampleRate     float64           `yaml:"sample_rate"`
	BatchTimeout   time.Duration     `yaml:"batch_timeout"`
	MaxBatchSize   int               `yaml:"max_batch_size"`
	Headers        map[string]string `yaml:"headers"`

	Fields          []FieldConfig          `yaml:"fields"`
	PrefixedFields  []PrefixedFieldConfig  `yaml:"prefixed_fields"`
	RedactedFields  []string               `yaml:"redacted_fields"`
	OverlayEnabled  bool                   `yaml:"overlay_enabled"`
	OverlaySystems  []OverlaySystemConfig  `yaml:"overlay_systems"`
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Enabled:        false,
		ServiceName:    "tracefields",
		ServiceVersion: "v1.0.0",
		Environment:    "production",
		Exporter:       "otlp",
		Endpoint:       "http://localhost:4318/v1/traces",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		MaxBatchSize:   512,
		Headers:        make(map[string]string),
	}
}

// TracingManager owns the OpenTelemetry TracerProvider and the composed
// Propagation built from config.
type TracingManager struct {
	config   TracingConfig
	logger   *logrus.Logger
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer

	propagation *propagation.Propagation
	overlay     *samplingoverlay.Overlay
	registry    *samplingoverlay.Registry
	metrics     *TracingMetrics
}

// NewTracingManager creates a new tracing manager. When config.Enabled is
// false it still builds the extra-field Propagation (so in-process
// Get/Set/overlay registration keep working) but skips exporter setup and
// hands back a noop tracer. Metrics are built regardless of config.Enabled,
// matching the ambient-stack convention of instrumenting the propagation
// core even when the exporter side is off.
func NewTracingManager(config TracingConfig, logger *logrus.Logger) (*TracingManager, error) {
	tm := &TracingManager{config: config, logger: logger, metrics: NewTracingMetrics()}

	propagation.SetDiagnosticSink(&meteredDiagnosticSink{logger: logger, metrics: tm.metrics})

	if err := tm.buildPropagation(); err != nil {
		return nil, err
	}

	if tm.overlay != nil {
		tm.overlay.SetObserver(tm.metrics)
		tm.metrics.SetOverlaySystemsActive(tm.registry.ConfiguredCount())
	}

	globalPropagator := tm.meteredPropagator()

	if !config.Enabled {
		tm.tracer = otel.Tracer("noop")
		otel.SetTextMapPropagator(globalPropagator)
		return tm, nil
	}

	if err := tm.initialize(globalPropagator); err != nil {
		return nil, err
	}

	return tm, nil
}

// meteredPropagator wraps the composed propagator so every Extract/Inject
// that goes through the globally installed otel propagator also updates
// this manager's Prometheus counters (spec ambient stack: the propagation
// core itself stays metrics-free; pkg/propagation imports no metrics library).
type meteredPropagator struct {
	inner               otelpropagation.TextMapPropagator
	metrics             *TracingMetrics
	redactionConfigured bool
}

func (tm *TracingManager) meteredPropagator() *meteredPropagator {
	return &meteredPropagator{
		inner:               tm.propagation,
		metrics:             tm.metrics,
		redactionConfigured: len(tm.config.RedactedFields) > 0,
	}
}

func (p *meteredPropagator) Extract(ctx context.Context, carrier otelpropagation.TextMapCarrier) context.Context {
	p.metrics.RecordExtraction()
	return p.inner.Extract(ctx, carrier)
}

func (p *meteredPropagator) Inject(ctx context.Context, carrier otelpropagation.TextMapCarrier) {
	p.metrics.RecordInjection(p.redactionConfigured)
	p.inner.Inject(ctx, carrier)
}

func (p *meteredPropagator) Fields() []string {
	return p.inner.Fields()
}

var _ otelpropagation.TextMapPropagator = (*meteredPropagator)(nil)

// meteredDiagnosticSink adapts this manager's logger and metrics to
// propagation.DiagnosticSink, so a recovered plugin/handler panic both logs
// (spec §4.6/§4.8) and increments the ambient exception counter.
type meteredDiagnosticSink struct {
	logger  *logrus.Logger
	metrics *TracingMetrics
}

func (s *meteredDiagnosticSink) Warn(component, operation string, fields map[string]interface{}, err any) {
	f := logrus.Fields{"component": component, "operation": operation, "panic": err}
	for k, v := range fields {
		f[k] = v
	}
	s.logger.WithFields(f).Warn("propagation: recovered from plugin failure")
	s.metrics.RecordHandlerException()
}

var _ propagation.DiagnosticSink = (*meteredDiagnosticSink)(nil)

// buildPropagation assembles the Factory, Overlay, and Registry from
// config and composes them with the W3C trace-context primary.
func (tm *TracingManager) buildPropagation() error {
	builder := propagation.NewFactoryBuilder()
	for _, f := range tm.config.Fields {
		builder = builder.AddField(f.Name)
	}
	for _, g := range tm.config.PrefixedFields {
		builder = builder.AddPrefixedFields(g.Prefix, g.Names)
	}
	for _, name := range tm.config.RedactedFields {
		builder = builder.AddRedactedField(name)
	}

	if tm.config.OverlayEnabled {
		systems := make([]string, 0, len(tm.config.OverlaySystems))
		for _, s := range tm.config.OverlaySystems {
			systems = append(systems, s.Name)
		}
		tm.registry = samplingoverlay.NewRegistry(systems...)
		tm.overlay = samplingoverlay.NewOverlay(tm.registry)
		// Plugin field names get no wire key, so the overlay's header is
		// declared as a direct field for it to be read and written.
		builder = builder.AddField(samplingoverlay.WireKey)
		builder = builder.AddPlugin(tm.overlay)
	}

	factory, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build field propagation: %w", err)
	}

	tm.propagation = factory.Create(otelpropagation.NewCompositeTextMapPropagator(
		otelpropagation.TraceContext{},
		otelpropagation.Baggage{},
	))
	return nil
}

// Registry exposes the overlay's dynamic-registration surface, nil if the
// overlay is disabled.
func (tm *TracingManager) Registry() *samplingoverlay.Registry {
	return tm.registry
}

// Propagation returns the composed propagator, without the metrics wrapper
// that this manager installs globally, for handlers that want to
// extract/inject explicitly rather than rely on the global otel propagator.
func (tm *TracingManager) Propagation() *propagation.Propagation {
	return tm.propagation
}

// Metrics returns this manager's Prometheus metrics, for a host that wants
// to register its own handler wrapping or refresh the active-systems gauge
// after calling Registry().Configure.
func (tm *TracingManager) Metrics() *TracingMetrics {
	return tm.metrics
}

// initialize sets up the tracing provider.
func (tm *TracingManager) initialize(globalPropagator otelpropagation.TextMapPropagator) error {
	exporter, err := tm.createExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := tm.createResource()
	if err != nil {
		return fmt.Errorf("failed to create trace resource: %w", err)
	}

	tm.provider = trace.NewTracerProvider(
		trace.WithBatcher(exporter,
			trace.WithBatchTimeout(tm.config.BatchTimeout),
			trace.WithMaxExportBatchSize(tm.config.MaxBatchSize),
		),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(tm.config.SampleRate)),
	)

	otel.SetTracerProvider(tm.provider)
	otel.SetTextMapPropagator(globalPropagator)

	tm.tracer = otel.Tracer(tm.config.ServiceName)

	tm.logger.WithFields(logrus.Fields{
		"service_name": tm.config.ServiceName,
		"exporter":     tm.config.Exporter,
		"endpoint":     tm.config.Endpoint,
		"sample_rate":  tm.config.SampleRate,
		"overlay":      tm.config.OverlayEnabled,
	}).Info("distributed tracing initialized")

	return nil
}

// createExporter creates the appropriate trace exporter.
func (tm *TracingManager) createExporter() (trace.SpanExporter, error) {
	switch tm.config.Exporter {
	case "jaeger":
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(tm.config.Endpoint)))

	case "otlp":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(tm.config.Endpoint),
		}
		if len(tm.config.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(tm.config.Headers))
		}
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))

	case "console":
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint("http://localhost:4318"),
			otlptracehttp.WithInsecure(),
		))

	default:
		return nil, fmt.Errorf("unsupported exporter: %s", tm.config.Exporter)
	}
}

// createResource creates the trace resource.
func (tm *TracingManager) createResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(tm.config.ServiceName),
			semconv.ServiceVersion(tm.config.ServiceVersion),
			semconv.DeploymentEnvironment(tm.config.Environment),
		),
	)
}

// GetTracer returns the tracer instance.
func (tm *TracingManager) GetTracer() oteltrace.Tracer {
	return tm.tracer
}

// Shutdown gracefully shuts down the tracing provider, if one was built. It
// does not mark any finished-span pipeline as noop.
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider != nil {
		return tm.provider.Shutdown(ctx)
	}
	return nil
}

// TraceableContext wraps a context with tracing utilities, carrying both the
// OpenTelemetry span and this module's extra fields attached to the same
// context value.
type TraceableContext struct {
	ctx    context.Context
	span   oteltrace.Span
	tracer oteltrace.Tracer
}

// NewTraceableContext creates a new traceable context.
func NewTraceableContext(ctx context.Context, tracer oteltrace.Tracer, operationName string) *TraceableContext {
	ctx, span := tracer.Start(ctx, operationName)
	return &TraceableContext{ctx: ctx, span: span, tracer: tracer}
}

// Context returns the underlying context.
func (tc *TraceableContext) Context() context.Context {
	return tc.ctx
}

// Span returns the current span.
func (tc *TraceableContext) Span() oteltrace.Span {
	return tc.span
}

// SetAttribute adds an attribute to the current span.
func (tc *TraceableContext) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	tc.span.SetAttributes(attr)
}

// SetExtraField sets a named extra field on this context (spec §6
// `set(ctx, name, value)`), in addition to any span attribute.
func (tc *TraceableContext) SetExtraField(name, value string) {
	tc.ctx = propagation.Set(tc.ctx, name, value)
}

// SetError records an error in the span.
func (tc *TraceableContext) SetError(err error) {
	if err != nil {
		tc.span.RecordError(err)
		tc.span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds an event to the span.
func (tc *TraceableContext) AddEvent(name string, attributes ...attribute.KeyValue) {
	tc.span.AddEvent(name, oteltrace.WithAttributes(attributes...))
}

// End finalizes the span.
func (tc *TraceableContext) End() {
	tc.span.End()
}

// Child creates a child span, forking this context's FieldStore so the
// child may shadow extra fields without mutating the parent's (spec §4.1).
func (tc *TraceableContext) Child(operationName string) *TraceableContext {
	ctx := tc.ctx
	if store := propagation.StoreFromContext(ctx); store != nil {
		ctx = propagation.ContextWithStore(ctx, store.Fork())
	}
	return NewTraceableContext(ctx, tc.tracer, operationName)
}

// CorrelationID returns the span's trace ID, or "unknown" when the span has
// no trace ID.
func (tc *TraceableContext) CorrelationID() string {
	if tc.span.SpanContext().HasTraceID() {
		return tc.span.SpanContext().TraceID().String()
	}
	return "unknown"
}

// InstrumentedFunction wraps a function with span creation, timing, and
// error recording.
type InstrumentedFunction struct {
	tracer oteltrace.Tracer
	name   string
}

// NewInstrumentedFunction creates a new instrumented function.
func NewInstrumentedFunction(tracer oteltrace.Tracer, name string) *InstrumentedFunction {
	return &InstrumentedFunction{tracer: tracer, name: name}
}

// Execute executes a function with tracing.
func (fn *InstrumentedFunction) Execute(ctx context.Context, f func(*TraceableContext) error) error {
	tc := NewTraceableContext(ctx, fn.tracer, fn.name)
	defer tc.End()

	start := time.Now()
	tc.SetAttribute("start_time", start.Format(time.RFC3339))

	err := f(tc)

	duration := time.Since(start)
	tc.SetAttribute("duration_ms", duration.Milliseconds())

	if err != nil {
		tc.SetError(err)
		return err
	}

	tc.span.SetStatus(codes.Ok, "completed")
	return nil
}

// traceableContextKey is the unexported context key under which TraceHandler
// publishes the *TraceableContext it builds for the request, so a downstream
// handler can retrieve it instead of hand-rolling its own Extract/span pair.
type traceableContextKey struct{}

// ContextWithTraceableContext attaches tc to ctx.
func ContextWithTraceableContext(ctx context.Context, tc *TraceableContext) context.Context {
	return context.WithValue(ctx, traceableContextKey{}, tc)
}

// TraceableContextFromContext returns the TraceableContext TraceHandler
// attached to ctx, if any.
func TraceableContextFromContext(ctx context.Context) (*TraceableContext, bool) {
	tc, ok := ctx.Value(traceableContextKey{}).(*TraceableContext)
	return tc, ok
}

// TraceHandler is HTTP middleware that extracts the composed propagator's
// context (primary trace + extra fields + overlay) from the request,
// starts a span for the request, and publishes the resulting
// *TraceableContext for handlers to read/set extra fields on before they
// inject the result back onto the response themselves (spec §4.5 is an
// egress-time concern, not something this middleware should pre-empt by
// injecting before the handler has had a chance to mutate fields).
func TraceHandler(tracer oteltrace.Tracer, operationName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), otelpropagation.HeaderCarrier(r.Header))

			tc := NewTraceableContext(ctx, tracer, operationName)
			defer tc.End()

			tc.SetAttribute("http.method", r.Method)
			tc.SetAttribute("http.target", r.URL.Path)
			tc.span.SetAttributes(
				semconv.HTTPScheme(r.URL.Scheme),
				semconv.UserAgentOriginal(r.UserAgent()),
				semconv.ClientAddress(r.RemoteAddr),
			)

			next.ServeHTTP(w, r.WithContext(ContextWithTraceableContext(tc.ctx, tc)))
		})
	}
}

// ExtractTraceInfo extracts trace information from context.
func ExtractTraceInfo(ctx context.Context) (traceID, spanID string) {
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
		spanID = span.SpanContext().SpanID().String()
	}
	return
}
