package samplingoverlay

import (
	"context"
	"sync"
	"sync/atomic"

	"tracefields/pkg/propagation"
)

// Registry holds which overlay systems are configured locally and which
// finished-span handler (if any) each one should route to. Mutations are
// published as an atomic snapshot so extraction — the hot path — never
// takes a lock (spec §5: "mutations must be visible to subsequent
// extractions without locking on the hot path"). Grounded on
// pkg/tracing.OnDemandController's map-of-rules shape, generalized from a
// TTL-only rule to a (configured, handler) pair and rewired onto
// atomic.Value publication instead of a cleanup goroutine — this overlay
// has no TTL of its own to sweep; TTL lives per-hop in the wire value
// itself (spec §4.7), not in the registry.
type Registry struct {
	snapshot atomic.Value // registrySnapshot
	mu       sync.Mutex   // serializes writers; readers never block
}

type registrySnapshot struct {
	configured map[string]bool
	handlers   map[string]propagation.FinishedSpanHandler
}

// NewRegistry returns a registry with the given systems pre-configured
// locally (no handlers attached yet).
func NewRegistry(configuredSystems ...string) *Registry {
	r := &Registry{}
	snap := registrySnapshot{
		configured: make(map[string]bool, len(configuredSystems)),
		handlers:   make(map[string]propagation.FinishedSpanHandler),
	}
	for _, name := range configuredSystems {
		snap.configured[name] = true
	}
	r.snapshot.Store(snap)
	return r
}

func (r *Registry) load() registrySnapshot {
	return r.snapshot.Load().(registrySnapshot)
}

// IsConfigured reports whether systemName is recognized locally (spec §4.7
// state table's "Configured locally?" column).
func (r *Registry) IsConfigured(systemName string) bool {
	return r.load().configured[systemName]
}

// ConfiguredCount reports how many systems are currently configured
// locally, for the ambient metrics layer's active-systems gauge.
func (r *Registry) ConfiguredCount() int {
	return len(r.load().configured)
}

// Configure adds or removes a system from the local configuration (E2
// "dynamic registration"). Safe for concurrent use; takes effect for
// extractions that start after this call returns.
func (r *Registry) Configure(systemName string, configured bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	next := registrySnapshot{
		configured: cloneBoolMap(cur.configured),
		handlers:   cloneHandlerMap(cur.handlers),
	}
	if configured {
		next.configured[systemName] = true
	} else {
		delete(next.configured, systemName)
	}
	r.snapshot.Store(next)
}

// SetHandler registers (or, with a nil handler, removes) the finished-span
// handler for systemName. Configuring a handler does not by itself
// configure the system locally — call Configure too.
func (r *Registry) SetHandler(systemName string, handler propagation.FinishedSpanHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	next := registrySnapshot{
		configured: cloneBoolMap(cur.configured),
		handlers:   cloneHandlerMap(cur.handlers),
	}
	if handler == nil {
		delete(next.handlers, systemName)
	} else {
		next.handlers[systemName] = handler
	}
	r.snapshot.Store(next)
}

// handlerFor returns the handler registered for systemName, if any.
func (r *Registry) handlerFor(systemName string) (propagation.FinishedSpanHandler, bool) {
	h, ok := r.load().handlers[systemName]
	return h, ok
}

func cloneBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneHandlerMap(m map[string]propagation.FinishedSpanHandler) map[string]propagation.FinishedSpanHandler {
	out := make(map[string]propagation.FinishedSpanHandler, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// dispatchingHandler routes a finished span to the handler registered for
// each system recorded against the current trace context (spec §4.7
// "Finished-span routing"). It never itself returns false to short-circuit
// a surrounding FinishedSpanPipeline — routing is fan-out, not a gate.
type dispatchingHandler struct {
	registry *Registry
}

func (d *dispatchingHandler) Handle(ctx context.Context, span propagation.FinishedSpan) bool {
	recorded, _ := propagation.Get(ctx, recordedFieldName)
	for _, name := range splitRecorded(recorded) {
		if h, ok := d.registry.handlerFor(name); ok {
			h.Handle(ctx, span)
		}
	}
	return true
}

var _ propagation.FinishedSpanHandler = (*dispatchingHandler)(nil)
