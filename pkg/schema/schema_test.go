package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderAssignsIndices(t *testing.T) {
	s, err := NewBuilder().
		Add("id", TypeLong).
		Add("ts", TypeTimestamp).
		Add("label", TypeString).
		Build()
	require.NoError(t, err)

	require.Equal(t, 3, s.Len())
	col, ok := s.Lookup("ts")
	require.True(t, ok)
	assert.Equal(t, 1, col.Index)
	assert.Equal(t, "ts (timestamp)", col.String())

	_, ok = s.Lookup("missing")
	assert.False(t, ok)
}

func TestNewRejectsInvalidColumns(t *testing.T) {
	tests := []struct {
		name    string
		columns []Column
		errMsg  string
	}{
		{"empty name", []Column{{Type: TypeLong}}, "has no name"},
		{"duplicate", []Column{{Name: "a", Type: TypeLong}, {Name: "a", Type: TypeString}}, "duplicate column"},
		{"unknown type", []Column{{Name: "a", Type: "decimal"}}, "unknown column type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.columns...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseTypeAliases(t *testing.T) {
	tests := map[string]Type{
		"int":       TypeLong,
		"Bool":      TypeBoolean,
		"float":     TypeDouble,
		"text":      TypeString,
		"timestamp": TypeTimestamp,
		"json":      TypeJSON,
	}
	for name, want := range tests {
		got, err := ParseType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestColumnsReturnsCopy(t *testing.T) {
	s, err := New(Column{Name: "id", Type: TypeLong})
	require.NoError(t, err)

	cols := s.Columns()
	cols[0].Name = "changed"
	assert.Equal(t, "id", s.Column(0).Name)
}
