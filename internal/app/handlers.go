package app

import (
	"encoding/json"
	"errors"
	"net/http"

	otelpropagation "go.opentelemetry.io/otel/propagation"

	"tracefields/pkg/propagation"
	"tracefields/pkg/tracing"
)

var errNameRequired = errors.New("name is required")

// registerHandlers wires the demo endpoints that exercise the propagation
// core end to end: a caller sends extra fields and an overlay "sampling"
// header in, this service reads/mutates them through the same context a
// real span would carry, and reflects the resulting outgoing wire value
// back for inspection. Every route is wrapped in tracing.TraceHandler so
// each request gets a real span and a *tracing.TraceableContext the
// handlers below read instead of hand-rolling their own Extract call.
func (a *App) registerHandlers(router *http.ServeMux) {
	traced := tracing.TraceHandler(a.tracingManager.GetTracer(), "tracefields.demo")
	router.Handle("/health", traced(http.HandlerFunc(a.healthHandler)))
	router.Handle("/fields", traced(http.HandlerFunc(a.fieldsHandler)))
	router.Handle("/overlay/systems", traced(http.HandlerFunc(a.overlaySystemsHandler)))
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// fieldsHandler reads the *tracing.TraceableContext TraceHandler already
// extracted for this request, optionally sets an extra field from a query
// parameter via TraceableContext.SetExtraField (spec §6 `set(ctx, name,
// value)`), injects the result back into the response headers, and reports
// every field currently visible (spec §6 `getAll(ctx)`).
func (a *App) fieldsHandler(w http.ResponseWriter, r *http.Request) {
	tc, ok := tracing.TraceableContextFromContext(r.Context())
	if !ok {
		http.Error(w, "no traceable context", http.StatusInternalServerError)
		return
	}

	if r.Method == http.MethodPost {
		name := r.URL.Query().Get("name")
		value := r.URL.Query().Get("value")
		if name != "" {
			tc.SetExtraField(name, value)
			tc.AddEvent("field.set")
		}
	}

	ctx := tc.Context()
	a.tracingManager.Propagation().Inject(ctx, otelpropagation.HeaderCarrier(w.Header()))

	traceID, spanID := tracing.ExtractTraceInfo(ctx)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"fields":         propagation.GetAll(ctx),
		"sampled_local":  propagation.SampledLocal(ctx),
		"trace_id":       traceID,
		"span_id":        spanID,
		"correlation_id": tc.CorrelationID(),
	})
}

// overlaySystemsHandler reports how many secondary sampling systems are
// configured locally (GET), or configures/deconfigures one (POST), mirroring
// spec §4.7's E2 "dynamic registration" example. A no-overlay configuration
// answers 404, since there is no registry to report on. The mutation itself
// runs inside a child span via tracing.InstrumentedFunction so a slow
// registry write is visible in the trace alongside the request span
// TraceHandler already started.
func (a *App) overlaySystemsHandler(w http.ResponseWriter, r *http.Request) {
	registry := a.tracingManager.Registry()
	if registry == nil {
		http.Error(w, "secondary sampling overlay not enabled", http.StatusNotFound)
		return
	}

	if r.Method == http.MethodPost {
		name := r.URL.Query().Get("name")
		if name == "" {
			if tc, ok := tracing.TraceableContextFromContext(r.Context()); ok {
				tc.SetError(errNameRequired)
			}
			http.Error(w, errNameRequired.Error(), http.StatusBadRequest)
			return
		}
		configured := r.URL.Query().Get("configured") != "false"

		fn := tracing.NewInstrumentedFunction(a.tracingManager.GetTracer(), "overlay.configure")
		_ = fn.Execute(r.Context(), func(tc *tracing.TraceableContext) error {
			tc.SetAttribute("overlay.system", name)
			tc.SetAttribute("overlay.configured", configured)
			registry.Configure(name, configured)
			a.tracingManager.Metrics().SetOverlaySystemsActive(registry.ConfiguredCount())
			return nil
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"configured_count": registry.ConfiguredCount(),
	})
}
