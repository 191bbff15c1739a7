package samplingoverlay

import (
	"context"
	"strings"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"tracefields/pkg/propagation"
)

// recordedFieldName is a plugin-only logical field (no wire key, per
// propagation.keyPlanBuilder.addPluginFields) used to carry the set of
// systems this overlay recorded during extraction forward to
// FinishedSpanHandler, since §4.7's finished-span routing needs to know
// which systems were recorded for this trace context even after a system
// with ttl=1 has already been dropped from the outgoing wire value.
const recordedFieldName = "sampling.recorded"

// Overlay is the concrete plugin described by spec §4.7: it owns the
// "sampling" wire key, applies the per-system state machine on extraction,
// re-serializes on injection, and dispatches finished spans to
// per-system handlers via its Registry.
type Overlay struct {
	registry *Registry
	limiters *rateLimiterSet
	observer Observer
}

// Observer receives per-system bookkeeping events occurring during Overlay
// extraction, used by the ambient metrics layer to expose the "overlay
// systems recorded/expired" counters a complete tracer exposes alongside
// the propagation core. Calls happen on the extraction hot path, so
// implementations must be cheap and non-blocking; a nil Observer (the
// default) costs nothing.
type Observer interface {
	SystemRecorded(name string)
	SystemExpired(name string)
}

// NewOverlay builds an Overlay bound to registry. The registry is exposed
// separately so the host application can configure systems and attach
// per-system finished-span handlers at any time (E2 "dynamic
// registration").
func NewOverlay(registry *Registry) *Overlay {
	return &Overlay{registry: registry, limiters: newRateLimiterSet(time.Now)}
}

// SetObserver installs obs to receive per-system record/expire events on
// every subsequent extraction. Passing nil disables observation.
func (o *Overlay) SetObserver(obs Observer) {
	o.observer = obs
}

func (o *Overlay) notifyRecorded(name string) {
	if o.observer != nil {
		o.observer.SystemRecorded(name)
	}
}

func (o *Overlay) notifyExpired(name string) {
	if o.observer != nil {
		o.observer.SystemExpired(name)
	}
}

var _ propagation.Plugin = (*Overlay)(nil)

// FieldNames implements propagation.Plugin.
func (o *Overlay) FieldNames() []string {
	return []string{WireKey, recordedFieldName}
}

// extractState accumulates the systems recorded during one extraction call,
// so the recordedFieldName updater (processed after the WireKey updater,
// per FieldNames order) can report them.
type extractState struct {
	recorded []string
}

func (s *extractState) record(name string) {
	s.recorded = append(s.recorded, name)
}

func (s *extractState) recordedCSV() string {
	return strings.Join(s.recorded, ",")
}

func splitRecorded(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

// ExtractFactory implements propagation.Plugin: applies the per-system
// state machine from spec §4.7's table to the incoming "sampling" value,
// and separately reports the recorded-systems bookkeeping field.
func (o *Overlay) ExtractFactory(flags *propagation.ExtractFlags) propagation.Updater {
	state := &extractState{}
	return propagation.UpdaterFunc(func(name, value string, ok bool) (string, bool) {
		switch name {
		case WireKey:
			return o.extractSampling(flags, state, value, ok)
		case recordedFieldName:
			csv := state.recordedCSV()
			return csv, csv != ""
		default:
			return value, ok
		}
	})
}

func (o *Overlay) extractSampling(flags *propagation.ExtractFlags, state *extractState, value string, ok bool) (string, bool) {
	systems := parseSampling(value)
	out := make([]system, 0, len(systems))

	for _, s := range systems {
		if !o.registry.IsConfigured(s.name) {
			out = append(out, s) // not configured locally: pass through unchanged
			continue
		}

		switch {
		case s.sampledSet && !s.sampled:
			// explicit sampled=0: do not record, keep as-is
			out = append(out, s)

		case s.tpsSet && !s.sampledSet:
			// rate-admitted system with no explicit sampled decision yet
			if o.limiters.allow(s.name, s.tps) {
				s.sampled, s.sampledSet = true, true
				flags.SampleLocal()
				state.record(s.name)
				o.notifyRecorded(s.name)
			}
			out = append(out, s)

		default:
			// Bare name, explicit sampled=1, or a ttl carried over from a
			// prior hop: all imply this system is being actively recorded.
			s.sampled, s.sampledSet = true, true
			flags.SampleLocal()
			state.record(s.name)
			o.notifyRecorded(s.name)
			if s.ttlSet {
				if s.ttl > 1 {
					s.ttl--
					out = append(out, s)
				} else {
					// ttl <= 1: expired this hop, drop from the outgoing value
					o.notifyExpired(s.name)
				}
			} else {
				out = append(out, s)
			}
		}
	}

	serialized := serializeSampling(out)
	return serialized, serialized != ""
}

// InjectFactory implements propagation.Plugin. Re-serialization of the
// per-system state already happened during extraction (the stored field
// value is canonical); injection only adds spec §4.7 "Primary coexistence":
// when the primary propagator's span context is itself sampled, the
// outgoing wire value is tagged with a trailing `sampled=zipkin[,<systems>]`
// segment naming every system this overlay recorded locally, so a
// downstream router can route on the primary decision without rerunning it.
func (o *Overlay) InjectFactory(ctx context.Context) propagation.Updater {
	primarySampled := oteltrace.SpanContextFromContext(ctx).IsSampled()
	recorded, _ := propagation.Get(ctx, recordedFieldName)

	return propagation.UpdaterFunc(func(name, value string, ok bool) (string, bool) {
		if name != WireKey || !primarySampled {
			return value, ok
		}
		tag := "sampled=zipkin"
		if recorded != "" {
			tag += "," + recorded
		}
		if ok && value != "" {
			return value + ";" + tag, true
		}
		return tag, true
	})
}

// FinishedSpanHandler implements propagation.Plugin: routes a finished span
// to every system recorded for its trace context.
func (o *Overlay) FinishedSpanHandler() propagation.FinishedSpanHandler {
	return &dispatchingHandler{registry: o.registry}
}
