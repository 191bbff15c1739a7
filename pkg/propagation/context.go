package propagation

import (
	"context"
	"strings"
)

type storeContextKey struct{}
type sampledLocalContextKey struct{}
type sampledOverrideContextKey struct{}

// ContextWithStore attaches store to ctx, as extra state on an extraction
// result (spec §3 ExtractionResult.extra = [FieldStore]).
func ContextWithStore(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, store)
}

// StoreFromContext returns the FieldStore attached to ctx, or nil.
func StoreFromContext(ctx context.Context) *Store {
	store, _ := ctx.Value(storeContextKey{}).(*Store)
	return store
}

func contextWithSampledLocal(ctx context.Context, v bool) context.Context {
	return context.WithValue(ctx, sampledLocalContextKey{}, v)
}

// SampledLocal reports whether the extraction that produced ctx set the
// sampled-local flag (spec GLOSSARY "Sampled-local").
func SampledLocal(ctx context.Context) bool {
	v, _ := ctx.Value(sampledLocalContextKey{}).(bool)
	return v
}

func contextWithSampledOverride(ctx context.Context, v bool) context.Context {
	return context.WithValue(ctx, sampledOverrideContextKey{}, v)
}

// SampledOverride reports the permanent primary-sampling override an
// updater requested via ExtractFlags.Sampled, if any (spec §4.4:
// "reserved for overlays that intend to subsume the primary decision").
func SampledOverride(ctx context.Context) (bool, bool) {
	v, ok := ctx.Value(sampledOverrideContextKey{}).(bool)
	return v, ok
}

// Get returns the value of field name in ctx's attached FieldStore, with
// case-folded lookup (spec §6 `get(ctx, name)`).
func Get(ctx context.Context, name string) (string, bool) {
	return StoreFromContext(ctx).GetByName(strings.ToLower(name))
}

// Set writes value for field name into ctx's attached FieldStore.
// Case-folded (spec §6 `set(ctx, name, value)`). A ctx with no attached
// FieldStore (one never Extracted nor passed through Factory.NewContext)
// is a no-op; the returned context is always ctx itself since Store
// mutation is in-place.
func Set(ctx context.Context, name, value string) context.Context {
	store := StoreFromContext(ctx)
	if store == nil {
		return ctx
	}
	store.SetByName(strings.ToLower(name), value)
	return ctx
}

// GetAll returns every field currently set in ctx's attached FieldStore
// (spec §6 `getAll(ctx)`).
func GetAll(ctx context.Context) map[string]string {
	return StoreFromContext(ctx).ToMap()
}
