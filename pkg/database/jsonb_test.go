package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonbPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"`
}

func TestJSONB_Scan(t *testing.T) {
	t.Run("bytes", func(t *testing.T) {
		var col JSONB[jsonbPayload]
		require.NoError(t, col.Scan([]byte(`{"name":"john","count":2}`)))
		assert.Equal(t, jsonbPayload{Name: "john", Count: 2}, col.Data)
	})

	t.Run("string", func(t *testing.T) {
		var col JSONB[jsonbPayload]
		require.NoError(t, col.Scan(`{"name":"jane"}`))
		assert.Equal(t, "jane", col.Data.Name)
	})

	t.Run("nil resets to zero value", func(t *testing.T) {
		col := JSONB[jsonbPayload]{Data: jsonbPayload{Name: "stale"}}
		require.NoError(t, col.Scan(nil))
		assert.Equal(t, jsonbPayload{}, col.Data)
	})

	t.Run("unsupported type", func(t *testing.T) {
		var col JSONB[jsonbPayload]
		assert.Error(t, col.Scan(42))
	})
}

func TestJSONB_Value(t *testing.T) {
	col := JSONB[jsonbPayload]{Data: jsonbPayload{Name: "john"}}
	v, err := col.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"john"}`, string(v.([]byte)))
}

func TestJSONB_JSONRoundTrip(t *testing.T) {
	col := JSONB[jsonbPayload]{Data: jsonbPayload{Name: "john", Count: 3}}
	b, err := col.MarshalJSON()
	require.NoError(t, err)

	var decoded JSONB[jsonbPayload]
	require.NoError(t, decoded.UnmarshalJSON(b))
	assert.Equal(t, col.Data, decoded.Data)
}
