package serialization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalworks/granary/pkg/granary/support/util/serialization"
)

func TestMarshalJSONMap(t *testing.T) {
	data, err := serialization.MarshalJSONMap(map[string]interface{}{
		"granuleId": "g1",
		"published": true,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"granuleId":"g1","published":true}`, string(data))
}

func TestMarshalJSONMap_NilIsEmptyObject(t *testing.T) {
	data, err := serialization.MarshalJSONMap(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestMarshalJSONMap_UnserializableValue(t *testing.T) {
	_, err := serialization.MarshalJSONMap(map[string]interface{}{
		"bad": make(chan int),
	})
	assert.Error(t, err)
}

func TestUnmarshalJSONMap(t *testing.T) {
	var m map[string]interface{}
	require.NoError(t, serialization.UnmarshalJSONMap([]byte(`{"status":"completed","duration":1.5}`), &m))
	assert.Equal(t, "completed", m["status"])
	assert.Equal(t, 1.5, m["duration"])
}

func TestUnmarshalJSONMap_EmptyInput(t *testing.T) {
	var m map[string]interface{}
	require.NoError(t, serialization.UnmarshalJSONMap(nil, &m))
	assert.NotNil(t, m)
	assert.Empty(t, m)
}

func TestUnmarshalJSONMap_Malformed(t *testing.T) {
	var m map[string]interface{}
	assert.Error(t, serialization.UnmarshalJSONMap([]byte("{"), &m))
}
