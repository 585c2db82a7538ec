// Package timestamp parses and renders instants according to a configured
// pattern and default zone.
//
// A pattern is one of:
//   - a preset name: rfc3339, rfc3339nano, epoch, epoch_millis
//   - a strftime pattern, recognised by a '%' (for example %Y-%m-%dT%H:%M:%S.%L%z)
//   - a Go reference layout (for example 2006-01-02 15:04:05)
//
// The zone is used for inputs without an offset and for rendering.
package timestamp

import (
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/ncruces/go-strftime"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
)

// DefaultOutputPattern renders instants as 2017-11-03T19:42:41.000+0000.
const DefaultOutputPattern = "%Y-%m-%dT%H:%M:%S.%L%z"

// Epoch values must land in years 0001 through 9999.
const (
	minEpochSeconds = -62135596800
	maxEpochSeconds = 253402300799
)

type kind int

const (
	kindLayout kind = iota
	kindEpochSeconds
	kindEpochMillis
)

// Formatter parses and formats timestamps. It is immutable and safe for
// concurrent use.
type Formatter struct {
	pattern string
	layout  string
	kind    kind
	loc     *time.Location
}

// New builds a formatter. An empty pattern means rfc3339, an empty zone UTC.
func New(pattern, zone string) (*Formatter, error) {
	loc := time.UTC
	if zone != "" {
		l, err := time.LoadLocation(zone)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "unknown time zone %q", zone)
		}
		loc = l
	}

	f := &Formatter{pattern: pattern, loc: loc}
	switch strings.ToLower(pattern) {
	case "", "rfc3339":
		f.layout = time.RFC3339
	case "rfc3339nano":
		f.layout = time.RFC3339Nano
	case "epoch", "epoch_seconds":
		f.kind = kindEpochSeconds
	case "epoch_millis":
		f.kind = kindEpochMillis
	default:
		if strings.Contains(pattern, "%") {
			// Literals that read as Go layout elements (digits, Jan, Mon,
			// MST, PM) are rejected rather than silently reinterpreted.
			layout, err := strftime.Layout(pattern)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "invalid timestamp pattern %q", pattern)
			}
			f.layout = layout
		} else {
			f.layout = pattern
		}
	}
	return f, nil
}

// MustNew is like New but panics on error. Intended for package-level defaults.
func MustNew(pattern, zone string) *Formatter {
	f, err := New(pattern, zone)
	if err != nil {
		panic(err)
	}
	return f
}

// Pattern returns the pattern the formatter was built from
func (f *Formatter) Pattern() string { return f.pattern }

// Location returns the default zone
func (f *Formatter) Location() *time.Location { return f.loc }

// IsEpoch reports whether the formatter reads numeric epoch values
func (f *Formatter) IsEpoch() bool { return f.kind != kindLayout }

// Parse reads a textual timestamp.
func (f *Formatter) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New(errors.ErrorTypeCoercion, "empty timestamp")
	}
	if f.kind != kindLayout {
		return f.ParseEpoch(s)
	}
	t, err := time.ParseInLocation(f.layout, s, f.loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, errors.ErrorTypeCoercion, "timestamp %q does not match %q", s, f.describe())
	}
	return t, nil
}

// ParseEpoch reads a decimal epoch value in the formatter's unit. Fractions
// are kept down to nanoseconds. Values outside years 0001 to 9999 fail.
func (f *Formatter) ParseEpoch(s string) (time.Time, error) {
	if f.kind == kindLayout {
		return time.Time{}, errors.Newf(errors.ErrorTypeCoercion, "pattern %q does not accept numeric timestamps", f.describe())
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, errors.ErrorTypeCoercion, "invalid epoch value %q", s)
	}

	digits, lo, hi := 9, int64(minEpochSeconds), int64(maxEpochSeconds)
	if f.kind == kindEpochMillis {
		digits, lo, hi = 6, lo*1000, hi*1000+999
	}
	if whole < lo || whole > hi {
		return time.Time{}, errors.Newf(errors.ErrorTypeCoercion, "epoch value %q is out of range", s).
			WithDetail("pattern", f.describe())
	}

	var frac int64
	if fracPart != "" {
		if len(fracPart) > digits {
			fracPart = fracPart[:digits]
		}
		n, err := strconv.ParseUint(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, errors.Wrapf(err, errors.ErrorTypeCoercion, "invalid epoch value %q", s)
		}
		for i := len(fracPart); i < digits; i++ {
			n *= 10
		}
		frac = int64(n)
		if strings.HasPrefix(intPart, "-") {
			frac = -frac
		}
	}

	var t time.Time
	if f.kind == kindEpochMillis {
		t = time.UnixMilli(whole).Add(time.Duration(frac))
	} else {
		t = time.Unix(whole, frac)
	}
	return t.In(f.loc), nil
}

// Format renders t in the formatter's zone
func (f *Formatter) Format(t time.Time) string {
	t = t.In(f.loc)
	switch f.kind {
	case kindEpochSeconds:
		return strconv.FormatInt(t.Unix(), 10)
	case kindEpochMillis:
		return strconv.FormatInt(t.UnixMilli(), 10)
	default:
		return t.Format(f.layout)
	}
}

func (f *Formatter) describe() string {
	if f.pattern == "" {
		return "rfc3339"
	}
	return f.pattern
}
