package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntryID(t *testing.T) {
	a := NewEntryID()
	b := NewEntryID()
	assert.True(t, strings.HasPrefix(a, EntryPrefix))
	assert.NotEqual(t, a, b)

	u, err := ParseEntryID(a)
	require.NoError(t, err)
	assert.Equal(t, a, EntryPrefix+u.String())
}

func TestParseEntryID_Errors(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "missing BE- prefix"},
		{"INV-0b6f1c1e-3c0e-4d3f-9d2a-6f7c0b1d2e3f", "missing BE- prefix"},
		{"BE-notauuid", "invalid entry ID"},
	}
	for _, tt := range tests {
		_, err := ParseEntryID(tt.in)
		require.Error(t, err, tt.in)
		assert.Contains(t, err.Error(), tt.want)
	}
}

func TestIsPersisted(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{NewEntryID(), true},
		{"BE-1736899200000000000-1a2b3c4d", true},
		{"BE-1736899200000000000-xyz", false},
		{"3", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPersisted(tt.id), "IsPersisted(%q)", tt.id)
	}
}
