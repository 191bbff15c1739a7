package samplingoverlay

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"tracefields/pkg/propagation"
)

func TestRegistry_ConfigureAndQuery(t *testing.T) {
	r := NewRegistry("links")
	assert.True(t, r.IsConfigured("links"))
	assert.False(t, r.IsConfigured("triage"))

	r.Configure("triage", true)
	assert.True(t, r.IsConfigured("triage"))

	r.Configure("links", false)
	assert.False(t, r.IsConfigured("links"))
}

func TestRegistry_HandlerRegistration(t *testing.T) {
	r := NewRegistry()
	var got propagation.FinishedSpan
	h := propagation.FinishedSpanHandlerFunc(func(ctx context.Context, span propagation.FinishedSpan) bool {
		got = span
		return true
	})
	r.SetHandler("triage", h)

	stored, ok := r.handlerFor("triage")
	if assert.True(t, ok) {
		stored.Handle(context.Background(), propagation.FinishedSpan{Name: "op"})
		assert.Equal(t, "op", got.Name)
	}

	r.SetHandler("triage", nil)
	_, ok = r.handlerFor("triage")
	assert.False(t, ok)
}

func TestRegistry_ConcurrentReadsDuringWrites(t *testing.T) {
	r := NewRegistry("edge")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Configure("links", true)
		}()
		go func() {
			defer wg.Done()
			r.IsConfigured("edge")
		}()
	}
	wg.Wait()

	assert.True(t, r.IsConfigured("edge"))
	assert.True(t, r.IsConfigured("links"))
}

func TestDispatchingHandler_RoutesToRecordedSystems(t *testing.T) {
	r := NewRegistry("edge", "links")
	var edgeCalls, linksCalls int
	r.SetHandler("edge", propagation.FinishedSpanHandlerFunc(func(ctx context.Context, span propagation.FinishedSpan) bool {
		edgeCalls++
		return true
	}))
	r.SetHandler("links", propagation.FinishedSpanHandlerFunc(func(ctx context.Context, span propagation.FinishedSpan) bool {
		linksCalls++
		return true
	}))

	d := &dispatchingHandler{registry: r}

	plan := buildTestPlan(t)
	store := propagation.NewStore(plan, nil)
	ctx := propagation.ContextWithStore(context.Background(), store)
	ctx = propagation.Set(ctx, recordedFieldName, "edge,links")

	d.Handle(ctx, propagation.FinishedSpan{Name: "op"})
	assert.Equal(t, 1, edgeCalls)
	assert.Equal(t, 1, linksCalls)
}

func buildTestPlan(t *testing.T) *propagation.KeyPlan {
	t.Helper()
	f, err := propagation.NewFactoryBuilder().AddPlugin(NewOverlay(NewRegistry())).Build()
	if err != nil {
		t.Fatalf("build factory: %v", err)
	}
	return f.Plan()
}
