package fhir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bundleOf(resources ...string) *Bundle {
	b := &Bundle{ResourceType: "Bundle", Type: "searchset"}
	for _, r := range resources {
		b.Entry = append(b.Entry, BundleEntry{Resource: json.RawMessage(r)})
	}
	return b
}

func TestSingle(t *testing.T) {
	none, err := Single[Encounter](bundleOf())
	require.NoError(t, err)
	assert.Equal(t, NotFound, none.State)
	assert.Nil(t, none.Resource)

	one, err := Single[Encounter](bundleOf(`{"resourceType":"Encounter","id":"e1","status":"finished"}`))
	require.NoError(t, err)
	assert.Equal(t, Found, one.State)
	assert.Equal(t, "e1", one.Resource.ID)

	many, err := Single[Encounter](bundleOf(`{"resourceType":"Encounter","id":"e1"}`, `{"resourceType":"Encounter","id":"e2"}`))
	require.NoError(t, err)
	assert.Equal(t, Ambiguous, many.State)
	assert.Equal(t, 2, many.Matches)
	assert.Nil(t, many.Resource)
}

func TestSingle_BadEntry(t *testing.T) {
	_, err := Single[Encounter](bundleOf(`{"status": 5}`))
	assert.Error(t, err)
}
