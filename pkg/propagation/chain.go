package propagation

import "context"

// Chain composes an ordered list of plugins into a single value that itself
// satisfies the Plugin capability set, so composition is associative (spec
// §9 "Composite as first-class value"). Nested chains are flattened at
// construction so the hot-path updater array stays one level deep.
type Chain struct {
	plugins []Plugin
}

// NewChain builds a Chain from plugins, flattening any member that is
// itself a *Chain.
func NewChain(plugins ...Plugin) *Chain {
	c := &Chain{}
	for _, p := range plugins {
		if p == nil {
			continue
		}
		if nested, ok := p.(*Chain); ok {
			c.plugins = append(c.plugins, nested.plugins...)
			continue
		}
		c.plugins = append(c.plugins, p)
	}
	return c
}

// Plugins returns the flattened, ordered member list.
func (c *Chain) Plugins() []Plugin {
	out := make([]Plugin, len(c.plugins))
	copy(out, c.plugins)
	return out
}

// Len returns the number of flattened plugins in this chain.
func (c *Chain) Len() int {
	return len(c.plugins)
}

// FieldNames returns the insertion-ordered union of every member's field
// names.
func (c *Chain) FieldNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.plugins {
		for _, n := range p.FieldNames() {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// updaterChain is the reusable scratch buffer used by the extract/inject
// hot paths: one Updater per chain member, built once per call and then
// folded across every field (spec §4.3 "Allocation discipline").
type updaterChain []Updater

// fold threads value through every updater in order, passing fieldName
// (never the wire key) as the name each updater sees.
func (u updaterChain) fold(fieldName, value string, ok bool) (string, bool) {
	for _, upd := range u {
		if upd == nil {
			continue
		}
		value, ok = upd.Update(fieldName, value, ok)
	}
	return value, ok
}

// buildExtractUpdaters invokes each member's ExtractFactory once, reusing
// buf if it already has the right capacity.
func (c *Chain) buildExtractUpdaters(flags *ExtractFlags, buf updaterChain) updaterChain {
	if cap(buf) < len(c.plugins) {
		buf = make(updaterChain, len(c.plugins))
	}
	buf = buf[:len(c.plugins)]
	for i, p := range c.plugins {
		buf[i] = safeUpdater(p.ExtractFactory(flags))
	}
	return buf
}

// buildInjectUpdaters invokes each member's InjectFactory once, reusing buf
// if it already has the right capacity.
func (c *Chain) buildInjectUpdaters(ctx context.Context, buf updaterChain) updaterChain {
	if cap(buf) < len(c.plugins) {
		buf = make(updaterChain, len(c.plugins))
	}
	buf = buf[:len(c.plugins)]
	for i, p := range c.plugins {
		buf[i] = safeUpdater(p.InjectFactory(ctx))
	}
	return buf
}

// ExtractFactory implements Plugin: a Chain's own extract factory builds
// its members' updaters once and folds through them, so a Chain nested
// inside another Chain behaves exactly like a single flattened member.
func (c *Chain) ExtractFactory(flags *ExtractFlags) Updater {
	updaters := c.buildExtractUpdaters(flags, nil)
	return UpdaterFunc(func(name, value string, ok bool) (string, bool) {
		return updaters.fold(name, value, ok)
	})
}

// InjectFactory implements Plugin, mirroring ExtractFactory.
func (c *Chain) InjectFactory(ctx context.Context) Updater {
	updaters := c.buildInjectUpdaters(ctx, nil)
	return UpdaterFunc(func(name, value string, ok bool) (string, bool) {
		return updaters.fold(name, value, ok)
	})
}

// FinishedSpanHandler implements Plugin: the chain's handler is the
// composition (in configured order) of its members' non-nil handlers, via
// NewFinishedSpanPipeline.
func (c *Chain) FinishedSpanHandler() FinishedSpanHandler {
	var handlers []FinishedSpanHandler
	for _, p := range c.plugins {
		if h := p.FinishedSpanHandler(); h != nil {
			handlers = append(handlers, h)
		}
	}
	return NewFinishedSpanPipeline(handlers...)
}

var _ Plugin = (*Chain)(nil)
