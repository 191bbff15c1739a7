package propagation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeHandler struct {
	result       bool
	calls        *[]string
	name         string
	alwaysSample bool
	panics       bool
}

func (h *fakeHandler) Handle(ctx context.Context, span FinishedSpan) bool {
	if h.calls != nil {
		*h.calls = append(*h.calls, h.name)
	}
	if h.panics {
		panic("handler boom")
	}
	return h.result
}

func (h *fakeHandler) AlwaysSampleLocal() bool { return h.alwaysSample }

var _ FinishedSpanHandler = (*fakeHandler)(nil)
var _ AlwaysSampleLocalPlugin = (*fakeHandler)(nil)

func TestFinishedSpanPipeline_EmptyIsNoop(t *testing.T) {
	p := NewFinishedSpanPipeline()
	assert.False(t, p.Handle(context.Background(), FinishedSpan{Name: "op"}))
}

func TestFinishedSpanPipeline_Singleton(t *testing.T) {
	h := &fakeHandler{result: true}
	p := NewFinishedSpanPipeline(h)
	assert.True(t, p.Handle(context.Background(), FinishedSpan{Name: "op"}))
}

func TestFinishedSpanPipeline_ShortCircuitsOnFirstFalse(t *testing.T) {
	var calls []string
	a := &fakeHandler{result: false, calls: &calls, name: "a"}
	b := &fakeHandler{result: true, calls: &calls, name: "b"}
	p := NewFinishedSpanPipeline(a, b)

	assert.False(t, p.Handle(context.Background(), FinishedSpan{Name: "op"}))
	assert.Equal(t, []string{"a"}, calls, "b must not run once a returns false")
}

func TestFinishedSpanPipeline_AllMustPass(t *testing.T) {
	var calls []string
	a := &fakeHandler{result: true, calls: &calls, name: "a"}
	b := &fakeHandler{result: true, calls: &calls, name: "b"}
	p := NewFinishedSpanPipeline(a, b)

	assert.True(t, p.Handle(context.Background(), FinishedSpan{Name: "op"}))
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestFinishedSpanPipeline_Noop(t *testing.T) {
	h := &fakeHandler{result: true}
	p := NewFinishedSpanPipeline(h)
	p.SetNoop(true)
	assert.False(t, p.Handle(context.Background(), FinishedSpan{Name: "op"}))

	p.SetNoop(false)
	assert.True(t, p.Handle(context.Background(), FinishedSpan{Name: "op"}))
}

func TestFinishedSpanPipeline_ExceptionIsolation(t *testing.T) {
	var calls []string
	a := &fakeHandler{panics: true, calls: &calls, name: "a"}
	b := &fakeHandler{result: true, calls: &calls, name: "b"}
	p := NewFinishedSpanPipeline(a, b)

	assert.NotPanics(t, func() {
		result := p.Handle(context.Background(), FinishedSpan{Name: "op"})
		assert.False(t, result)
	})
	assert.Equal(t, []string{"a"}, calls, "a panicking short-circuits like a false return")
}

func TestFinishedSpanPipeline_AlwaysSampleLocal(t *testing.T) {
	a := &fakeHandler{result: true}
	b := &fakeHandler{result: true, alwaysSample: true}

	p := NewFinishedSpanPipeline(a, b)
	assert.True(t, p.AlwaysSampleLocal())

	p2 := NewFinishedSpanPipeline(a)
	assert.False(t, p2.AlwaysSampleLocal())
}

func TestFinishedSpanPipeline_NilSafe(t *testing.T) {
	var p *FinishedSpanPipeline
	assert.False(t, p.Handle(context.Background(), FinishedSpan{}))
	assert.False(t, p.AlwaysSampleLocal())
}

func TestFinishedSpanPipeline_SkipsNilHandlers(t *testing.T) {
	h := &fakeHandler{result: true}
	p := NewFinishedSpanPipeline(nil, h, nil)
	assert.True(t, p.Handle(context.Background(), FinishedSpan{Name: "op"}))
}
