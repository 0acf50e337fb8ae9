package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrecon/internal/store"
)

func TestNewEnvelope(t *testing.T) {
	env := NewEnvelope(store.Page[string]{Items: []string{"a", "b"}, Total: 5, Limit: 2, Offset: 0})
	assert.True(t, env.Pagination.HasNext)
	assert.Equal(t, 2, env.Pagination.NextOffset)

	data, err := json.Marshal(NewEnvelope(store.Page[string]{}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"items":[]`)
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope[string]([]byte(`{"items":["x"],"pagination":{"total":3,"limit":1,"offset":1,"hasNext":true,"nextOffset":2}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, env.Items)

	page := env.Page()
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.NextOffset())
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `oops`},
		{"bare array", `[1,2]`},
		{"missing items", `{"pagination":{}}`},
		{"null items", `{"items":null,"pagination":{}}`},
		{"missing pagination", `{"items":[]}`},
		{"items not array", `{"items":{},"pagination":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope[string]([]byte(tt.body))
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}
