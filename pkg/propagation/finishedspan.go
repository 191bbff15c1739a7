package propagation

import (
	"context"
	"sync/atomic"
)

// FinishedSpanPipeline composes plugin-contributed and user-provided
// finished-span handlers (spec §4.6).
//
// Composition rules: an empty set composes to a noop; a singleton composes
// to itself; otherwise handlers run in order and the pipeline
// short-circuits on the first handler that returns false. If any member
// reports AlwaysSampleLocal, the pipeline does too — the tracer consults
// this to force local recording even when the primary decision is false
// (E6).
//
// Each handler is wrapped so a runtime panic is logged via the diagnostic
// sink and treated as "false" (drop), never propagating into the tracer's
// span-finish path. A Noop flag, once set, makes every subsequent Handle
// call return false immediately without invoking any delegate — the
// tracing subsystem shut-down signal from spec §4.6.
type FinishedSpanPipeline struct {
	handlers []FinishedSpanHandler
	noop     atomic.Bool
}

// NewFinishedSpanPipeline composes handlers in order. A nil handler is
// skipped.
func NewFinishedSpanPipeline(handlers ...FinishedSpanHandler) *FinishedSpanPipeline {
	p := &FinishedSpanPipeline{}
	for _, h := range handlers {
		if h != nil {
			p.handlers = append(p.handlers, h)
		}
	}
	return p
}

// SetNoop marks the pipeline as shut down (or reactivates it). Handle
// checks this before delegating.
func (p *FinishedSpanPipeline) SetNoop(v bool) {
	p.noop.Store(v)
}

// Handle runs every handler in order, short-circuiting on the first false.
// An empty pipeline, or one marked noop, returns false without invoking
// anything.
func (p *FinishedSpanPipeline) Handle(ctx context.Context, span FinishedSpan) bool {
	if p == nil || p.noop.Load() {
		return false
	}
	if len(p.handlers) == 0 {
		return false
	}
	for _, h := range p.handlers {
		if !safeHandle(h, ctx, span) {
			return false
		}
	}
	return true
}

// AlwaysSampleLocal reports whether any composed handler declares it.
func (p *FinishedSpanPipeline) AlwaysSampleLocal() bool {
	if p == nil {
		return false
	}
	for _, h := range p.handlers {
		if asl, ok := h.(AlwaysSampleLocalPlugin); ok && asl.AlwaysSampleLocal() {
			return true
		}
	}
	return false
}

// safeHandle isolates a panic inside h so it cannot crash the tracer's
// span-finish path (spec §7 "HandlerException at finish"): logged, treated
// as false.
func safeHandle(h FinishedSpanHandler, ctx context.Context, span FinishedSpan) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			diagnosticSink().Warn("propagation", "finished_span_handler", map[string]interface{}{"span": span.Name}, r)
			ok = false
		}
	}()
	return h.Handle(ctx, span)
}
