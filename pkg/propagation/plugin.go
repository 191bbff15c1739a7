package propagation

import "context"

// Updater maps a (fieldName, value) pair to a possibly different value.
// Returning ok=false signals deletion. Plugins observe every configured
// field name on each call, in configured order, regardless of whether the
// field was present.
type Updater interface {
	Update(fieldName, value string, ok bool) (string, bool)
}

// UpdaterFunc adapts a plain function to the Updater interface.
type UpdaterFunc func(fieldName, value string, ok bool) (string, bool)

// Update implements Updater.
func (f UpdaterFunc) Update(fieldName, value string, ok bool) (string, bool) {
	return f(fieldName, value, ok)
}

// passthroughUpdater returns its input unchanged; used when a plugin's
// factory yields no meaningful per-call behavior and when a failed updater
// is treated as if it returned its input unchanged (spec §7).
var passthroughUpdater = UpdaterFunc(func(name, value string, ok bool) (string, bool) { return value, ok })

// ExtractFlags is the per-extraction mutable sampling-flags builder handed
// to every plugin's extract-time updater factory. A plugin calls
// SampleLocal to force local recording for the current process regardless
// of the primary decision, or Sampled to permanently override the primary
// decision for the rest of the trace.
type ExtractFlags struct {
	sampledLocal bool
	sampledSet   bool
	sampled      bool
}

// SampleLocal marks this extraction as locally sampled.
func (f *ExtractFlags) SampleLocal() {
	f.sampledLocal = true
}

// Sampled overrides the primary sampling decision for the rest of the
// trace. Reserved for overlays that intend to subsume the primary decision.
func (f *ExtractFlags) Sampled(v bool) {
	f.sampledSet = true
	f.sampled = v
}

// SampledLocal reports whether any updater called SampleLocal.
func (f *ExtractFlags) SampledLocal() bool {
	return f != nil && f.sampledLocal
}

// SampledOverride reports the overridden primary decision, if any updater
// called Sampled.
func (f *ExtractFlags) SampledOverride() (bool, bool) {
	if f == nil {
		return false, false
	}
	return f.sampled, f.sampledSet
}

// FinishedSpanHandler is invoked when a span finishes. Returning false
// signals "drop" — composition short-circuits on the first handler that
// returns false (spec §4.6).
type FinishedSpanHandler interface {
	Handle(ctx context.Context, span FinishedSpan) bool
}

// FinishedSpanHandlerFunc adapts a plain function to FinishedSpanHandler.
type FinishedSpanHandlerFunc func(ctx context.Context, span FinishedSpan) bool

// Handle implements FinishedSpanHandler.
func (f FinishedSpanHandlerFunc) Handle(ctx context.Context, span FinishedSpan) bool {
	return f(ctx, span)
}

// FinishedSpan is the minimal view of a finished span a handler needs. It
// is populated by the tracer (an external collaborator referenced only)
// when a span completes.
type FinishedSpan struct {
	Name       string
	Sampled    bool
	DurationNS int64
	Attributes map[string]string
}

// Plugin is the capability set every extra-field plugin exposes: the field
// names it cares about, factories for per-call extract/inject updaters,
// and an optional finished-span handler. Modeled as a small interface
// rather than a deep class hierarchy (spec §9 "Dynamic dispatch without
// inheritance graphs").
type Plugin interface {
	// FieldNames returns the logical field names this plugin observes.
	// Added to the KeyPlan at Factory build time.
	FieldNames() []string

	// ExtractFactory returns a per-call Updater, invoked once per
	// extraction and bound to the shared ExtractFlags builder for that
	// extraction.
	ExtractFactory(flags *ExtractFlags) Updater

	// InjectFactory returns a per-call Updater, invoked once per
	// injection and bound to the trace context being injected from.
	InjectFactory(ctx context.Context) Updater

	// FinishedSpanHandler returns this plugin's handler, or nil if it does
	// not participate in span-finish routing.
	FinishedSpanHandler() FinishedSpanHandler
}

// AlwaysSampleLocalPlugin is implemented by a Plugin (or FinishedSpanHandler)
// that can force local recording even when the primary decision is false
// (spec §4.6, E6).
type AlwaysSampleLocalPlugin interface {
	AlwaysSampleLocal() bool
}
