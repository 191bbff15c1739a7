package propagation

import "strings"

// KeyPlan is the immutable description of logical field names, wire keys,
// and the wire-key -> field-index map, shared by every Store created by one
// Factory. It is built once at Factory construction and never mutated
// afterward.
type KeyPlan struct {
	fieldNames []string       // index -> lowercase field name
	fieldIndex map[string]int // lowercase field name -> index
	wireKeys   []string       // wire-key position -> wire key string
	wireToField []int         // wire-key position -> field index
}

// FieldIndex resolves a (case-folded) field name to its index.
func (p *KeyPlan) FieldIndex(name string) (int, bool) {
	idx, ok := p.fieldIndex[strings.ToLower(name)]
	return idx, ok
}

// FieldNames returns the plan's field names in declaration order.
func (p *KeyPlan) FieldNames() []string {
	out := make([]string, len(p.fieldNames))
	copy(out, p.fieldNames)
	return out
}

// WireKeys returns every wire key this plan reads or writes, in declaration
// order. Used to implement propagation.TextMapPropagator.Fields().
func (p *KeyPlan) WireKeys() []string {
	out := make([]string, len(p.wireKeys))
	copy(out, p.wireKeys)
	return out
}

// keyPlanBuilder accumulates field names, prefix groups, and plugin- and
// redaction-contributed names before Build freezes them into a KeyPlan.
//
// Algorithm (spec §4.2):
//  1. collect the union of field names, first-seen order preserved;
//  2. one identity wire key per direct field;
//  3. for each prefix group member, alias onto an existing field or
//     allocate a new one;
//  4. freeze.
type keyPlanBuilder struct {
	fieldOrder []string
	fieldSeen  map[string]bool
	wireKeys   []string
	wireToField []int
}

func newKeyPlanBuilder() *keyPlanBuilder {
	return &keyPlanBuilder{fieldSeen: make(map[string]bool)}
}

// addField declares a direct field: its name becomes both the logical field
// and its own identity wire key.
func (b *keyPlanBuilder) addField(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return newConfigError("addField", "field name must not be empty")
	}
	idx := b.ensureField(name)
	b.addWireKey(name, idx)
	return nil
}

// addPrefixedFields declares a prefix group: for each name, the wire key is
// prefix+name. If name already exists as a field (from a prior addField or
// another group), the new wire key aliases onto it; otherwise a new field
// is allocated.
func (b *keyPlanBuilder) addPrefixedFields(prefix string, names []string) error {
	if prefix == "" {
		return newConfigError("addPrefixedFields", "prefix must not be empty")
	}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			return newConfigError("addPrefixedFields", "field name must not be empty")
		}
		idx := b.ensureField(n)
		b.addWireKey(prefix+n, idx)
	}
	return nil
}

// addPluginFields declares field names a plugin observes, without allocating
// a wire key for them (a plugin may see a field that is never carried
// directly on the wire, e.g. one only set in-process).
func (b *keyPlanBuilder) addPluginFields(names []string) error {
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			return newConfigError("addPluginFields", "field name must not be empty")
		}
		b.ensureField(n)
	}
	return nil
}

func (b *keyPlanBuilder) ensureField(name string) int {
	if b.fieldSeen[name] {
		for i, n := range b.fieldOrder {
			if n == name {
				return i
			}
		}
	}
	b.fieldSeen[name] = true
	b.fieldOrder = append(b.fieldOrder, name)
	return len(b.fieldOrder) - 1
}

func (b *keyPlanBuilder) addWireKey(wireKey string, fieldIdx int) {
	for _, k := range b.wireKeys {
		if k == wireKey {
			return // duplicate wire key targeting the same or another field is ignored
		}
	}
	b.wireKeys = append(b.wireKeys, wireKey)
	b.wireToField = append(b.wireToField, fieldIdx)
}

func (b *keyPlanBuilder) build() *KeyPlan {
	fieldIndex := make(map[string]int, len(b.fieldOrder))
	for i, n := range b.fieldOrder {
		fieldIndex[n] = i
	}
	return &KeyPlan{
		fieldNames:  b.fieldOrder,
		fieldIndex:  fieldIndex,
		wireKeys:    b.wireKeys,
		wireToField: b.wireToField,
	}
}
