package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
)

// Locator finds a value inside a record. Implementations are pure: a missing
// value is reported as an absent Value, never as an error. Errors are
// reserved for paths that cannot be applied to the shape of the record.
type Locator interface {
	Locate(r *Record) (Value, error)
}

// LocatorFunc adapts a function to the Locator interface
type LocatorFunc func(r *Record) (Value, error)

// Locate calls f(r)
func (f LocatorFunc) Locate(r *Record) (Value, error) {
	return f(r)
}

type segmentKind int

const (
	segmentKey segmentKind = iota
	segmentIndex
	// segmentToken is a JSON Pointer reference token: a key on objects and,
	// when numeric, an index on arrays.
	segmentToken
)

// Segment is one step of a path
type Segment struct {
	kind  segmentKind
	key   string
	index int
}

// Key returns a segment selecting an object member
func Key(name string) Segment {
	return Segment{kind: segmentKey, key: name}
}

// Index returns a segment selecting an array element
func Index(i int) Segment {
	return Segment{kind: segmentIndex, index: i}
}

func (s Segment) String() string {
	switch s.kind {
	case segmentIndex:
		return "[" + strconv.Itoa(s.index) + "]"
	case segmentToken:
		return "/" + s.key
	default:
		if isIdentifier(s.key) {
			return "." + s.key
		}
		return "[" + strconv.Quote(s.key) + "]"
	}
}

// Path is a chain of segments. The zero Path locates the record root.
type Path struct {
	segments []Segment
}

// NewPath builds a path from segments
func NewPath(segments ...Segment) Path {
	return Path{segments: append([]Segment(nil), segments...)}
}

// Child returns a new path extended with an object member
func (p Path) Child(key string) Path {
	return p.Join(NewPath(Key(key)))
}

// Elem returns a new path extended with an array element
func (p Path) Elem(i int) Path {
	return p.Join(NewPath(Index(i)))
}

// Join returns a new path made of p followed by q
func (p Path) Join(q Path) Path {
	segments := make([]Segment, 0, len(p.segments)+len(q.segments))
	segments = append(segments, p.segments...)
	segments = append(segments, q.segments...)
	return Path{segments: segments}
}

// Len returns the number of segments
func (p Path) Len() int {
	return len(p.segments)
}

func (p Path) String() string {
	if len(p.segments) == 0 {
		return "$"
	}
	var b strings.Builder
	b.WriteByte('$')
	for _, s := range p.segments {
		b.WriteString(s.String())
	}
	return b.String()
}

// Locate applies the path to a record
func (p Path) Locate(r *Record) (Value, error) {
	if r == nil {
		return Absent(), nil
	}
	return p.walk(r.root)
}

// From applies the path to a previously located value, so locators can be
// chained across values.
func (p Path) From(v Value) (Value, error) {
	if v.IsAbsent() {
		return Absent(), nil
	}
	return p.walk(v.raw)
}

func (p Path) walk(node interface{}) (Value, error) {
	for i, seg := range p.segments {
		if node == nil {
			// a null parent has no children
			return Absent(), nil
		}

		switch n := node.(type) {
		case map[string]interface{}:
			if seg.kind == segmentIndex {
				return Value{}, p.shapeError(i, node)
			}
			child, ok := n[seg.key]
			if !ok {
				return Absent(), nil
			}
			node = child

		case []interface{}:
			idx := seg.index
			switch seg.kind {
			case segmentKey:
				return Value{}, p.shapeError(i, node)
			case segmentToken:
				parsed, err := strconv.Atoi(seg.key)
				if err != nil || parsed < 0 {
					return Value{}, p.shapeError(i, node)
				}
				idx = parsed
			}
			if idx >= len(n) {
				return Absent(), nil
			}
			node = n[idx]

		default:
			return Value{}, p.shapeError(i, node)
		}
	}
	return Of(node), nil
}

func (p Path) shapeError(i int, node interface{}) error {
	prefix := Path{segments: p.segments[:i]}
	return errors.Newf(errors.ErrorTypeLocator, "cannot apply %s to %s at %s",
		strings.TrimPrefix(p.segments[i].String(), "."), kindOf(node), prefix).
		WithDetail("path", p.String())
}

// MustParsePath is like ParsePath but panics on error
func MustParsePath(expr string) Path {
	p, err := ParsePath(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePath compiles a path expression. Two syntaxes are accepted:
//
//	data.items[0].id      dotted keys and bracket indices, optional "$." prefix
//	["a.b"].c             quoted keys for names with dots or brackets
//	/data/items/0/id      JSON Pointer (RFC 6901)
//
// The empty string and "$" denote the root.
func ParsePath(expr string) (Path, error) {
	if expr == "" || expr == "$" {
		return Path{}, nil
	}
	if strings.HasPrefix(expr, "/") {
		return parsePointer(expr), nil
	}
	return parseDotted(expr)
}

func parsePointer(expr string) Path {
	tokens := strings.Split(expr[1:], "/")
	segments := make([]Segment, len(tokens))
	unescape := strings.NewReplacer("~1", "/", "~0", "~")
	for i, tok := range tokens {
		segments[i] = Segment{kind: segmentToken, key: unescape.Replace(tok)}
	}
	return Path{segments: segments}
}

func parseDotted(expr string) (Path, error) {
	s := strings.TrimPrefix(expr, "$")
	var segments []Segment
	pos := 0
	fail := func(msg string) (Path, error) {
		return Path{}, errors.Newf(errors.ErrorTypeConfig, "invalid path %q at offset %d: %s", expr, len(expr)-len(s)+pos, msg)
	}

	for pos < len(s) {
		switch s[pos] {
		case '.':
			pos++
			start := pos
			for pos < len(s) && s[pos] != '.' && s[pos] != '[' {
				pos++
			}
			if start == pos {
				return fail("empty key")
			}
			segments = append(segments, Key(s[start:pos]))

		case '[':
			end := strings.IndexByte(s[pos:], ']')
			if end < 0 {
				return fail("unterminated bracket")
			}
			inner := s[pos+1 : pos+end]
			if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
				key := inner[1 : len(inner)-1]
				if inner[0] == '"' {
					unq, err := strconv.Unquote(inner)
					if err != nil {
						return fail("bad quoted key")
					}
					key = unq
				}
				segments = append(segments, Key(key))
			} else {
				idx, err := strconv.Atoi(inner)
				if err != nil || idx < 0 {
					return fail(fmt.Sprintf("bad index %q", inner))
				}
				segments = append(segments, Index(idx))
			}
			pos += end + 1

		default:
			if pos != 0 {
				return fail("expected '.' or '['")
			}
			start := pos
			for pos < len(s) && s[pos] != '.' && s[pos] != '[' {
				pos++
			}
			segments = append(segments, Key(s[start:pos]))
		}
	}
	return Path{segments: segments}, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, ".[]\"'")
}
