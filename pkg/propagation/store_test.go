package propagation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan(t *testing.T, fields ...string) *KeyPlan {
	t.Helper()
	b := newKeyPlanBuilder()
	for _, f := range fields {
		require.NoError(t, b.addField(f))
	}
	return b.build()
}

func TestStore_GetPutRoundTrip(t *testing.T) {
	plan := testPlan(t, "user-id", "country-code")
	s := NewStore(plan, nil)

	_, ok := s.Get(0)
	assert.False(t, ok)

	s.Put(0, "alice", true)
	v, ok := s.Get(0)
	require.True(t, ok)
	assert.Equal(t, "alice", v)

	s.Put(0, "", false)
	_, ok = s.Get(0)
	assert.False(t, ok)
}

func TestStore_ParentChaining(t *testing.T) {
	plan := testPlan(t, "a", "b")
	parent := NewStore(plan, nil)
	parent.Put(0, "parent-a", true)
	parent.Put(1, "parent-b", true)

	child := parent.Fork()

	// Unset slots are inherited.
	v, ok := child.Get(0)
	require.True(t, ok)
	assert.Equal(t, "parent-a", v)

	// Shadowing does not mutate the parent.
	child.Put(0, "child-a", true)
	v, ok = child.Get(0)
	require.True(t, ok)
	assert.Equal(t, "child-a", v)

	v, ok = parent.Get(0)
	require.True(t, ok)
	assert.Equal(t, "parent-a", v)

	// Deleting in the child tombstones rather than resurrecting the parent value.
	child.Put(1, "", false)
	_, ok = child.Get(1)
	assert.False(t, ok)
	v, ok = parent.Get(1)
	require.True(t, ok)
	assert.Equal(t, "parent-b", v)
}

func TestStore_ToMap(t *testing.T) {
	plan := testPlan(t, "a", "b", "c")
	parent := NewStore(plan, nil)
	parent.Put(0, "1", true)
	child := parent.Fork()
	child.Put(1, "2", true)

	got := child.ToMap()
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}

func TestStore_GetByName_CaseFolded(t *testing.T) {
	plan := testPlan(t, "user-id")
	s := NewStore(plan, nil)
	s.SetByName("User-Id", "bob")

	v, ok := s.GetByName("user-id")
	require.True(t, ok)
	assert.Equal(t, "bob", v)

	v, ok = s.GetByName("USER-ID")
	require.True(t, ok)
	assert.Equal(t, "bob", v)
}

func TestStore_NilSafe(t *testing.T) {
	var s *Store
	_, ok := s.Get(0)
	assert.False(t, ok)
	assert.Empty(t, s.ToMap())
	_, ok = s.GetByName("x")
	assert.False(t, ok)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	plan := testPlan(t, "a")
	s := NewStore(plan, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Put(0, "v", true)
		}(i)
		go func() {
			defer wg.Done()
			s.Get(0)
		}()
	}
	wg.Wait()

	v, ok := s.Get(0)
	require.True(t, ok)
	assert.Equal(t, "v", v)
}
