package propagation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPlanBuilder_DirectFields(t *testing.T) {
	b := newKeyPlanBuilder()
	require.NoError(t, b.addField("X-Vcap-Request-Id"))
	plan := b.build()

	assert.Equal(t, []string{"x-vcap-request-id"}, plan.FieldNames())
	assert.Equal(t, []string{"x-vcap-request-id"}, plan.WireKeys())
	idx, ok := plan.FieldIndex("x-vcap-request-id")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestKeyPlanBuilder_PrefixedAliasesOntoExistingField(t *testing.T) {
	b := newKeyPlanBuilder()
	require.NoError(t, b.addField("country-code"))
	require.NoError(t, b.addPrefixedFields("baggage-", []string{"country-code"}))
	plan := b.build()

	assert.Equal(t, []string{"country-code"}, plan.FieldNames())
	assert.ElementsMatch(t, []string{"country-code", "baggage-country-code"}, plan.WireKeys())

	for i, wk := range plan.wireKeys {
		fieldIdx := plan.wireToField[i]
		if wk == "country-code" || wk == "baggage-country-code" {
			assert.Equal(t, 0, fieldIdx)
		}
	}
}

func TestKeyPlanBuilder_PrefixedAllocatesNewField(t *testing.T) {
	b := newKeyPlanBuilder()
	require.NoError(t, b.addPrefixedFields("baggage-", []string{"shard-id"}))
	plan := b.build()

	assert.Equal(t, []string{"shard-id"}, plan.FieldNames())
	assert.Equal(t, []string{"baggage-shard-id"}, plan.WireKeys())
}

func TestKeyPlanBuilder_RejectsEmptyFieldName(t *testing.T) {
	b := newKeyPlanBuilder()
	err := b.addField("")
	assert.Error(t, err)
}

func TestKeyPlanBuilder_RejectsEmptyPrefix(t *testing.T) {
	b := newKeyPlanBuilder()
	err := b.addPrefixedFields("", []string{"a"})
	assert.Error(t, err)
}

func TestKeyPlanBuilder_PluginFieldsNoWireKey(t *testing.T) {
	b := newKeyPlanBuilder()
	require.NoError(t, b.addPluginFields([]string{"sampling"}))
	plan := b.build()

	assert.Equal(t, []string{"sampling"}, plan.FieldNames())
	assert.Empty(t, plan.WireKeys())
}
