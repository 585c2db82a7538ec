package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/json"
)

const document = `{
	"id": 7,
	"name": "embulk",
	"owner": null,
	"meta": {"tags": ["a", "b"], "a.b": true},
	"items": [{"sku": "x-1", "qty": 2}, {"sku": "x-2", "qty": null}]
}`

func mustParse(t *testing.T, s string) *Record {
	t.Helper()
	r, err := Parse([]byte(s))
	require.NoError(t, err)
	return r
}

func TestPathLocate(t *testing.T) {
	rec := mustParse(t, document)

	tests := []struct {
		name  string
		path  string
		state State
		raw   interface{}
	}{
		{"top level", "id", StatePresent, json.Number("7")},
		{"dollar prefix", "$.name", StatePresent, "embulk"},
		{"explicit null", "owner", StateNull, nil},
		{"missing key", "missing", StateAbsent, nil},
		{"nested index", "meta.tags[1]", StatePresent, "b"},
		{"index out of range", "meta.tags[5]", StateAbsent, nil},
		{"quoted key", `meta["a.b"]`, StatePresent, true},
		{"child of null", "owner.name", StateAbsent, nil},
		{"child of missing", "missing.deeper[0].x", StateAbsent, nil},
		{"null leaf in array", "items[1].qty", StateNull, nil},
		{"json pointer index", "/items/0/sku", StatePresent, "x-1"},
		{"json pointer key", "/meta/a.b", StatePresent, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := rec.Get(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.state, v.State())
			assert.Equal(t, tt.raw, v.Raw())
		})
	}
}

func TestPathLocateStructuralErrors(t *testing.T) {
	rec := mustParse(t, document)

	tests := []struct {
		name   string
		path   string
		errMsg string
	}{
		{"index into scalar", "name[0]", "cannot apply [0] to string at $.name"},
		{"key into scalar", "id.value", "cannot apply value to number at $.id"},
		{"key into array", "items.sku", "cannot apply sku to array at $.items"},
		{"index into object", "meta[0]", "cannot apply [0] to object at $.meta"},
		{"pointer word into array", "/items/first", "to array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rec.Get(tt.path)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeLocator))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPathComposition(t *testing.T) {
	rec := mustParse(t, document)

	items := MustParsePath("items")
	sku := items.Elem(1).Child("sku")
	assert.Equal(t, "$.items[1].sku", sku.String())

	v, err := sku.Locate(rec)
	require.NoError(t, err)
	assert.Equal(t, "x-2", v.Raw())

	// chaining a second locator on a located value
	first, err := items.Elem(0).Locate(rec)
	require.NoError(t, err)
	qty, err := MustParsePath("qty").From(first)
	require.NoError(t, err)
	assert.Equal(t, json.Number("2"), qty.Raw())

	// an absent value stays absent through any chain
	missing, err := MustParsePath("nothing").Locate(rec)
	require.NoError(t, err)
	v, err = MustParsePath("a[0].b").From(missing)
	require.NoError(t, err)
	assert.True(t, v.IsAbsent())
}

func TestRootPath(t *testing.T) {
	rec := FromValue("scalar")
	v, err := MustParsePath("").Locate(rec)
	require.NoError(t, err)
	assert.Equal(t, "scalar", v.Raw())
	assert.Equal(t, "$", Path{}.String())

	v, err = Path{}.Locate(nil)
	require.NoError(t, err)
	assert.True(t, v.IsAbsent())
}

func TestParsePathErrors(t *testing.T) {
	for _, expr := range []string{"a..b", "a[", "a[-1]", "a[x]", `a["unterminated]`} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParsePath(expr)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestLocatorFunc(t *testing.T) {
	var loc Locator = LocatorFunc(func(r *Record) (Value, error) {
		return Of("constant"), nil
	})
	v, err := loc.Locate(FromValue(nil))
	require.NoError(t, err)
	assert.Equal(t, "constant", v.Raw())
}
