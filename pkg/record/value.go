package record

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/json"
	"github.com/ajitpratap0/nebula-restclient/pkg/timestamp"
)

// State tells whether a located value exists
type State int

const (
	// StateAbsent means the path did not reach a node
	StateAbsent State = iota
	// StateNull means the path reached an explicit JSON null
	StateNull
	// StatePresent means the path reached a non-null node
	StatePresent
)

// Value is a located node with type-coercion accessors. Both absent and
// null values are written as null by importers, but only null ones exist in
// the record.
type Value struct {
	state State
	raw   interface{}
}

// Absent returns a value for a path that reached nothing
func Absent() Value {
	return Value{state: StateAbsent}
}

// Of wraps a node. A nil node is an explicit null.
func Of(node interface{}) Value {
	if node == nil {
		return Value{state: StateNull}
	}
	return Value{state: StatePresent, raw: node}
}

// State returns the state of the value
func (v Value) State() State { return v.state }

// IsAbsent reports whether the path reached nothing
func (v Value) IsAbsent() bool { return v.state == StateAbsent }

// IsNull reports whether the path reached an explicit null
func (v Value) IsNull() bool { return v.state == StateNull }

// IsMissing reports whether the value is absent or null
func (v Value) IsMissing() bool { return v.state != StatePresent }

// Raw returns the underlying node
func (v Value) Raw() interface{} { return v.raw }

// Kind names the shape of the value
func (v Value) Kind() string {
	if v.state == StateAbsent {
		return "absent"
	}
	return kindOf(v.raw)
}

// Long reads the value as a 64-bit integer. JSON numbers and numeric strings
// are accepted when they denote an integer within range; fractions are
// rejected rather than truncated.
func (v Value) Long() (int64, error) {
	text, err := v.numericText("long")
	if err != nil {
		return 0, err
	}

	n, perr := strconv.ParseInt(text, 10, 64)
	if perr == nil {
		return n, nil
	}
	if numErr, ok := perr.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
		return 0, v.coercionError("long", "out of range")
	}

	// 1.0 and 1e3 are integral, 1.5 is not
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return 0, v.coercionError("long", "not a number")
	}
	if !r.IsInt() {
		return 0, v.coercionError("long", "has a fractional part")
	}
	if !r.Num().IsInt64() {
		return 0, v.coercionError("long", "out of range")
	}
	return r.Num().Int64(), nil
}

// Double reads the value as a 64-bit float. Integers widen; values beyond
// float64 range are rejected.
func (v Value) Double() (float64, error) {
	text, err := v.numericText("double")
	if err != nil {
		return 0, err
	}
	f, perr := strconv.ParseFloat(text, 64)
	if perr != nil || math.IsInf(f, 0) {
		return 0, v.coercionError("double", "out of range")
	}
	return f, nil
}

// Boolean reads a JSON true or false. Strings and numbers are not accepted.
func (v Value) Boolean() (bool, error) {
	if err := v.requirePresent("boolean"); err != nil {
		return false, err
	}
	b, ok := v.raw.(bool)
	if !ok {
		return false, v.coercionError("boolean", "not a boolean literal")
	}
	return b, nil
}

// Text renders the value as a string. Scalars render in their canonical
// form; objects and arrays render as compact JSON.
func (v Value) Text() (string, error) {
	if err := v.requirePresent("string"); err != nil {
		return "", err
	}
	switch t := v.raw.(type) {
	case string:
		return t, nil
	case json.Number:
		return string(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return v.JSON()
	}
}

// Timestamp parses the value with f. Strings are parsed with the pattern;
// numbers are accepted only by epoch patterns.
func (v Value) Timestamp(f *timestamp.Formatter) (time.Time, error) {
	if err := v.requirePresent("timestamp"); err != nil {
		return time.Time{}, err
	}
	var (
		t   time.Time
		err error
	)
	switch raw := v.raw.(type) {
	case string:
		t, err = f.Parse(raw)
	case json.Number:
		t, err = f.ParseEpoch(string(raw))
	default:
		return time.Time{}, v.coercionError("timestamp", "not a string or number")
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, errors.ErrorTypeCoercion, "cannot read "+v.describe()+" as timestamp").
			WithDetail("pattern", f.Pattern())
	}
	return t, nil
}

// JSON renders the value as compact JSON
func (v Value) JSON() (string, error) {
	if v.state == StateAbsent {
		return "", v.coercionError("json", "value is absent")
	}
	out, err := json.Marshal(v.raw)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeCoercion, "cannot render value as json")
	}
	return string(out), nil
}

func (v Value) numericText(target string) (string, error) {
	if err := v.requirePresent(target); err != nil {
		return "", err
	}
	var text string
	switch t := v.raw.(type) {
	case json.Number:
		text = string(t)
	case string:
		text = strings.TrimSpace(t)
	default:
		return "", v.coercionError(target, "not a number")
	}
	if !isJSONNumber(text) {
		return "", v.coercionError(target, "not a number")
	}
	return text, nil
}

func (v Value) requirePresent(target string) error {
	if v.state != StatePresent {
		return v.coercionError(target, "value is "+v.Kind())
	}
	return nil
}

func (v Value) coercionError(target, reason string) error {
	return errors.Newf(errors.ErrorTypeCoercion, "cannot read %s as %s: %s", v.describe(), target, reason).
		WithDetail("target", target)
}

func (v Value) describe() string {
	switch t := v.raw.(type) {
	case string:
		const max = 32
		if len(t) > max {
			t = t[:max] + "..."
		}
		return "string " + strconv.Quote(t)
	case json.Number:
		return "number " + string(t)
	case bool:
		return "boolean " + strconv.FormatBool(t)
	default:
		return v.Kind()
	}
}

// isJSONNumber checks s against the JSON number grammar. It keeps
// hexadecimal, underscores, NaN and Inf out of numeric coercion.
func isJSONNumber(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	if i >= len(s) {
		return false
	}
	switch {
	case s[i] == '0':
		i++
	case s[i] >= '1' && s[i] <= '9':
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	default:
		return false
	}
	if i < len(s) && s[i] == '.' {
		i++
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	return i == len(s)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
