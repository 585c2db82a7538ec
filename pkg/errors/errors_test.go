package errors

import (
	stderrors "errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsOrigin(t *testing.T) {
	inner := New(ErrorTypeLocator, "index into scalar")
	outer := Wrap(inner, ErrorTypeColumnImport, "column failed")

	require.NotNil(t, outer)
	assert.Contains(t, inner.Origin, "errors_test.go:")
	assert.Equal(t, inner.Origin, outer.Origin)
	assert.Contains(t, Wrapf(io.EOF, ErrorTypeData, "page %d", 1).Origin, "errors_test.go:")
	assert.Equal(t, "column_import: column failed: locator: index into scalar", outer.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeData, "nothing"))
	assert.Nil(t, Wrapf(nil, ErrorTypeData, "nothing %d", 1))
}

func TestIsTypeWalksChain(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		errType  ErrorType
		expected bool
	}{
		{"outer type", New(ErrorTypeSplit, "x"), ErrorTypeSplit, true},
		{"inner type", Wrap(New(ErrorTypeCoercion, "x"), ErrorTypeColumnImport, "y"), ErrorTypeCoercion, true},
		{"absent type", Wrap(New(ErrorTypeCoercion, "x"), ErrorTypeColumnImport, "y"), ErrorTypeLocator, false},
		{"plain error", io.EOF, ErrorTypeData, false},
		{"nil", nil, ErrorTypeData, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsType(tt.err, tt.errType))
		})
	}
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrorTypeInternal, GetType(io.EOF))
	assert.Equal(t, ErrorTypeConfig, GetType(Newf(ErrorTypeConfig, "bad %s", "value")))
}

func TestUnwrapInterop(t *testing.T) {
	err := Wrapf(io.ErrUnexpectedEOF, ErrorTypeData, "page %d", 3)
	assert.True(t, stderrors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, "data: page 3: unexpected EOF", err.Error())
}

func TestDetailWalksChain(t *testing.T) {
	inner := New(ErrorTypeCoercion, "not a number").WithDetail("column", "amount")
	outer := Wrap(inner, ErrorTypeColumnImport, "record rejected").WithDetail("record_index", 4)

	v, ok := Detail(outer, "column")
	require.True(t, ok)
	assert.Equal(t, "amount", v)

	v, ok = Detail(outer, "record_index")
	require.True(t, ok)
	assert.Equal(t, 4, v)

	_, ok = Detail(outer, "task_index")
	assert.False(t, ok)
	_, ok = Detail(io.EOF, "column")
	assert.False(t, ok)
}
