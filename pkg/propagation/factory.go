package propagation

import (
	"context"
	"strings"

	otelpropagation "go.opentelemetry.io/otel/propagation"
)

// FactoryBuilder accumulates field declarations, plugins, and redacted
// field names before Build freezes them into a Factory. Mirrors spec §6's
// `newFactoryBuilder(primaryFactory).addField(...).addPrefixedFields(...).
// addRedactedField(...).addPlugin(...).build()`.
type FactoryBuilder struct {
	plan        *keyPlanBuilder
	plugins     []Plugin
	redacted    []string
	redactedSet map[string]bool
	err         error
}

// NewFactoryBuilder starts a builder. primaryFactory is referenced only by
// name in spec.md; this codebase has no use for it beyond documenting that
// the caller supplies the primary (B3-equivalent) propagator later, at
// Factory.Create time — the builder shapes the KeyPlan and plugin chain,
// which are independent of which primary format will eventually be paired
// with them.
func NewFactoryBuilder() *FactoryBuilder {
	return &FactoryBuilder{plan: newKeyPlanBuilder(), redactedSet: make(map[string]bool)}
}

// AddField declares a direct field (spec §4.2 step 2).
func (b *FactoryBuilder) AddField(name string) *FactoryBuilder {
	if b.err != nil {
		return b
	}
	b.err = b.plan.addField(name)
	return b
}

// AddPrefixedFields declares a prefix group (spec §4.2 step 3).
func (b *FactoryBuilder) AddPrefixedFields(prefix string, names []string) *FactoryBuilder {
	if b.err != nil {
		return b
	}
	b.err = b.plan.addPrefixedFields(prefix, names)
	return b
}

// AddRedactedField marks name for unconditional deletion on inject. A name
// redacted twice is a ConfigError (spec §7 "duplicate field under
// redaction").
func (b *FactoryBuilder) AddRedactedField(name string) *FactoryBuilder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = newConfigError("addRedactedField", "redacted field name must not be empty")
		return b
	}
	lower := lowerTrim(name)
	if b.redactedSet[lower] {
		b.err = newConfigError("addRedactedField", "field \""+lower+"\" is already redacted")
		return b
	}
	b.redactedSet[lower] = true
	b.redacted = append(b.redacted, lower)
	return b
}

// AddPlugin registers a plugin. A nil plugin is a ConfigError.
func (b *FactoryBuilder) AddPlugin(p Plugin) *FactoryBuilder {
	if b.err != nil {
		return b
	}
	if p == nil {
		b.err = newConfigError("addPlugin", "plugin must not be nil")
		return b
	}
	if b.err = b.plan.addPluginFields(p.FieldNames()); b.err != nil {
		return b
	}
	b.plugins = append(b.plugins, p)
	return b
}

// Build freezes the KeyPlan and plugin chain into a Factory, appending the
// redaction plugin last if any field was redacted.
func (b *FactoryBuilder) Build() (*Factory, error) {
	if b.err != nil {
		return nil, b.err
	}
	plugins := append([]Plugin(nil), b.plugins...)
	if len(b.redacted) > 0 {
		if err := b.plan.addPluginFields(b.redacted); err != nil {
			return nil, err
		}
		plugins = append(plugins, newRedactionPlugin(b.redacted))
	}
	return &Factory{
		plan:  b.plan.build(),
		chain: NewChain(plugins...),
	}, nil
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Factory holds the immutable KeyPlan and plugin Chain shared by every
// Propagation it creates (spec §4.2 "The plan is shared by all contexts
// created by the factory").
type Factory struct {
	plan  *KeyPlan
	chain *Chain
}

// Plan exposes the frozen KeyPlan, mostly useful for tests and for wiring a
// SecondarySamplingOverlay's own diagnostics.
func (f *Factory) Plan() *KeyPlan {
	return f.plan
}

// NewContext attaches a fresh, empty FieldStore to ctx. Extraction always
// attaches one automatically; a locally-started trace root (no incoming
// carrier to extract from) must call NewContext itself before the first
// Set, matching the explicit-context idiom the rest of this codebase uses
// instead of an implicit current-context global (spec §9 "Global
// accessors" — see DESIGN.md for why the no-context `get`/`set` helpers
// from spec §6 are not implemented).
func (f *Factory) NewContext(ctx context.Context) context.Context {
	return ContextWithStore(ctx, NewStore(f.plan, nil))
}

// Fork attaches a child FieldStore to ctx that inherits from whatever
// FieldStore is already attached (or a fresh empty one if none is), for use
// when a new scope (e.g. a span created in a nested call) must be able to
// shadow parent fields without mutating them (spec §4.1 "Parent chaining").
func (f *Factory) Fork(ctx context.Context) context.Context {
	parent := StoreFromContext(ctx)
	if parent == nil {
		return f.NewContext(ctx)
	}
	return ContextWithStore(ctx, parent.Fork())
}

// Create returns a Propagation that composes primary (the out-of-scope
// B3-equivalent wire format collaborator) with this factory's extra-field
// logic. primary may be nil, in which case only the extra fields are
// extracted/injected.
func (f *Factory) Create(primary otelpropagation.TextMapPropagator) *Propagation {
	return &Propagation{factory: f, primary: primary}
}

// Propagation implements go.opentelemetry.io/otel/propagation.TextMapPropagator,
// composing the primary propagation format with this library's extra-field
// extractor/injector pipeline (spec §4.4, §4.5).
type Propagation struct {
	factory *Factory
	primary otelpropagation.TextMapPropagator
}

var _ otelpropagation.TextMapPropagator = (*Propagation)(nil)

// Extract implements §4.4: delegates to the primary extractor, computes each
// logical field's wire value (the last-processed aliasing wire key wins, per
// testable property #2), threads every configured field — including
// plugin-only fields with no wire key at all — through the extract-time
// updater chain exactly once, and attaches the resulting FieldStore (always
// created, even if empty) to the returned context.
func (p *Propagation) Extract(ctx context.Context, carrier otelpropagation.TextMapCarrier) context.Context {
	if p.primary != nil {
		ctx = p.primary.Extract(ctx, carrier)
	}

	plan := p.factory.plan

	wireVal := make([]string, len(plan.fieldNames))
	wireOk := make([]bool, len(plan.fieldNames))
	for i, wireKey := range plan.wireKeys {
		raw := carrier.Get(wireKey)
		if raw == "" {
			continue
		}
		fieldIdx := plan.wireToField[i]
		wireVal[fieldIdx] = raw
		wireOk[fieldIdx] = true
	}

	flags := &ExtractFlags{}
	updaters := p.factory.chain.buildExtractUpdaters(flags, nil)
	store := NewStore(plan, nil)

	for fieldIdx, fieldName := range plan.fieldNames {
		val, ok := updaters.fold(fieldName, wireVal[fieldIdx], wireOk[fieldIdx])
		if ok {
			store.Put(fieldIdx, val, true)
		}
	}

	ctx = ContextWithStore(ctx, store)
	if override, has := flags.SampledOverride(); has {
		ctx = contextWithSampledOverride(ctx, override)
	}
	if flags.SampledLocal() {
		ctx = contextWithSampledLocal(ctx, true)
	}
	return ctx
}

// Inject implements §4.5: delegates to the primary injector, then locates
// the FieldStore attached to ctx (a no-op if absent) and threads each wire
// key's value through the inject-time updater chain — which already ends
// in the redactor, if one is configured — writing survivors to the
// carrier. A wire key whose final value is absent is never written.
func (p *Propagation) Inject(ctx context.Context, carrier otelpropagation.TextMapCarrier) {
	if p.primary != nil {
		p.primary.Inject(ctx, carrier)
	}

	store := StoreFromContext(ctx)
	if store == nil {
		return
	}

	updaters := p.factory.chain.buildInjectUpdaters(ctx, nil)
	plan := p.factory.plan
	for i, wireKey := range plan.wireKeys {
		fieldIdx := plan.wireToField[i]
		fieldName := plan.fieldNames[fieldIdx]
		val, ok := store.Get(fieldIdx)
		val, ok = updaters.fold(fieldName, val, ok)
		if ok {
			carrier.Set(wireKey, val)
		}
	}
}

// Fields implements otelpropagation.TextMapPropagator: every wire key this
// Propagation will read or write, plus the primary's own fields.
func (p *Propagation) Fields() []string {
	fields := p.factory.plan.WireKeys()
	if p.primary != nil {
		fields = append(fields, p.primary.Fields()...)
	}
	return fields
}
