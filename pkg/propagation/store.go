package propagation

import "sync"

// Store holds field values for a single trace context. It is a fixed-length,
// plan-indexed value holder: conceptually an array of optional strings
// indexed by logical field, one per KeyPlan.
//
// A Store may chain to a parent Store from which unset slots are inherited
// at read time. The own map of slot overrides is allocated lazily so that a
// Store that never diverges from its parent never allocates one at all; the
// first Put materializes it. Reads and writes on the same Store may come
// from multiple goroutines sharing one in-process trace context, so every
// access is taken under a single mutex. There is no cross-slot atomicity:
// later writes simply win.
//
// Grounded on pkg/types.LabelsCOW's lazy-allocate-under-lock discipline,
// adapted from a flat shared map to an index-addressed map with live
// delegation to a parent Store (LabelsCOW never chains to a second holder).
type Store struct {
	mu     sync.RWMutex
	plan   *KeyPlan
	own    map[int]string
	parent *Store
}

// NewStore creates an empty Store bound to plan, optionally chained to parent.
func NewStore(plan *KeyPlan, parent *Store) *Store {
	return &Store{plan: plan, parent: parent}
}

// Plan returns the KeyPlan this Store is indexed by.
func (s *Store) Plan() *KeyPlan {
	return s.plan
}

// Get returns the value stored at index and whether it is present, checking
// this Store's own overrides first (honoring tombstones left by a deleted
// field) and falling back to the parent chain for slots this Store has
// never written.
func (s *Store) Get(index int) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	v, ok := s.own[index]
	parent := s.parent
	s.mu.RUnlock()
	if ok {
		if v == tombstone {
			return "", false
		}
		return v, true
	}
	if parent != nil {
		return parent.Get(index)
	}
	return "", false
}

// tombstone is an unexported sentinel value used to mark a slot as
// explicitly cleared in this Store even though a parent still holds a value
// for it.
const tombstone = "\x00propagation-tombstone\x00"

// Put sets (or, when ok is false, deletes) the value owned by this Store at
// index. When this Store has a parent, a delete is recorded as a tombstone
// so the parent's value does not resurface on read; without a parent the
// slot is simply removed from the own map.
func (s *Store) Put(index int, value string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		if s.own == nil {
			s.own = make(map[int]string, len(s.plan.fieldNames))
		}
		s.own[index] = value
		return
	}
	if s.parent == nil {
		if s.own != nil {
			delete(s.own, index)
		}
		return
	}
	if s.own == nil {
		s.own = make(map[int]string, len(s.plan.fieldNames))
	}
	s.own[index] = tombstone
}

// GetByName resolves a field by its (case-folded) name.
func (s *Store) GetByName(name string) (string, bool) {
	if s == nil || s.plan == nil {
		return "", false
	}
	idx, ok := s.plan.FieldIndex(name)
	if !ok {
		return "", false
	}
	return s.Get(idx)
}

// SetByName sets a field by its (case-folded) name. It is a no-op if the
// name is not part of this Store's plan.
func (s *Store) SetByName(name, value string) {
	if s == nil || s.plan == nil {
		return
	}
	idx, ok := s.plan.FieldIndex(name)
	if !ok {
		return
	}
	s.Put(idx, value, true)
}

// ToMap returns a snapshot of every currently set field, keyed by field
// name. The returned map has no defined iteration order.
func (s *Store) ToMap() map[string]string {
	out := make(map[string]string)
	if s == nil || s.plan == nil {
		return out
	}
	for i, name := range s.plan.fieldNames {
		if v, ok := s.Get(i); ok {
			out[name] = v
		}
	}
	return out
}

// Fork returns a new Store that inherits from s, for use when decorating a
// child trace context (e.g. a span created in a nested scope). The child
// may shadow parent fields via Put (a delete leaves a tombstone) without
// ever mutating s.
func (s *Store) Fork() *Store {
	return NewStore(s.plan, s)
}
