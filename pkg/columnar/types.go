package columnar

import (
	"time"

	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
)

// Column is a typed, append-only column with null support
type Column interface {
	Type() schema.Type
	Len() int
	IsNull(i int) bool
	// Get returns the value at i, or nil for null
	Get(i int) interface{}
	Clear()
	MemoryUsage() int64

	appendValue(v interface{})
	appendNull()
}

// bitmap is a bit-packed bool slice, 64 entries per word
type bitmap struct {
	words []uint64
	count int
}

func (b *bitmap) append(v bool) {
	word, bit := b.count/64, b.count%64
	if word >= len(b.words) {
		b.words = append(b.words, 0)
	}
	if v {
		b.words[word] |= 1 << bit
	}
	b.count++
}

func (b *bitmap) get(i int) bool {
	return b.words[i/64]&(1<<(i%64)) != 0
}

func (b *bitmap) clear() {
	b.words = b.words[:0]
	b.count = 0
}

func (b *bitmap) bytes() int64 {
	return int64(len(b.words) * 8)
}

// nulls tracks validity; a set bit means the row holds a value
type nulls struct {
	valid bitmap
}

func (n *nulls) IsNull(i int) bool { return !n.valid.get(i) }
func (n *nulls) Len() int          { return n.valid.count }

// LongColumn stores 64-bit integers
type LongColumn struct {
	nulls
	values   []int64
	min, max int64
	hasRange bool
}

func NewLongColumn() *LongColumn {
	return &LongColumn{values: make([]int64, 0, 1024)}
}

func (c *LongColumn) Type() schema.Type { return schema.TypeLong }

func (c *LongColumn) Get(i int) interface{} {
	if c.IsNull(i) {
		return nil
	}
	return c.values[i]
}

// Value returns the raw slot, zero for nulls
func (c *LongColumn) Value(i int) int64 { return c.values[i] }

// Range returns the smallest and largest non-null values
func (c *LongColumn) Range() (min, max int64) { return c.min, c.max }

func (c *LongColumn) appendValue(v interface{}) {
	n := v.(int64)
	if !c.hasRange {
		c.min, c.max = n, n
		c.hasRange = true
	} else {
		if n < c.min {
			c.min = n
		}
		if n > c.max {
			c.max = n
		}
	}
	c.values = append(c.values, n)
	c.valid.append(true)
}

func (c *LongColumn) appendNull() {
	c.values = append(c.values, 0)
	c.valid.append(false)
}

func (c *LongColumn) Clear() {
	c.values = c.values[:0]
	c.valid.clear()
	c.min, c.max = 0, 0
	c.hasRange = false
}

func (c *LongColumn) MemoryUsage() int64 {
	return int64(len(c.values)*8) + c.valid.bytes()
}

// DoubleColumn stores 64-bit floats
type DoubleColumn struct {
	nulls
	values []float64
}

func NewDoubleColumn() *DoubleColumn {
	return &DoubleColumn{values: make([]float64, 0, 1024)}
}

func (c *DoubleColumn) Type() schema.Type { return schema.TypeDouble }

func (c *DoubleColumn) Get(i int) interface{} {
	if c.IsNull(i) {
		return nil
	}
	return c.values[i]
}

func (c *DoubleColumn) Value(i int) float64 { return c.values[i] }

func (c *DoubleColumn) appendValue(v interface{}) {
	c.values = append(c.values, v.(float64))
	c.valid.append(true)
}

func (c *DoubleColumn) appendNull() {
	c.values = append(c.values, 0)
	c.valid.append(false)
}

func (c *DoubleColumn) Clear() {
	c.values = c.values[:0]
	c.valid.clear()
}

func (c *DoubleColumn) MemoryUsage() int64 {
	return int64(len(c.values)*8) + c.valid.bytes()
}

// BooleanColumn stores booleans bit-packed
type BooleanColumn struct {
	nulls
	values bitmap
}

func NewBooleanColumn() *BooleanColumn {
	return &BooleanColumn{}
}

func (c *BooleanColumn) Type() schema.Type { return schema.TypeBoolean }

func (c *BooleanColumn) Get(i int) interface{} {
	if c.IsNull(i) {
		return nil
	}
	return c.values.get(i)
}

func (c *BooleanColumn) Value(i int) bool { return c.values.get(i) }

func (c *BooleanColumn) appendValue(v interface{}) {
	c.values.append(v.(bool))
	c.valid.append(true)
}

func (c *BooleanColumn) appendNull() {
	c.values.append(false)
	c.valid.append(false)
}

func (c *BooleanColumn) Clear() {
	c.values.clear()
	c.valid.clear()
}

func (c *BooleanColumn) MemoryUsage() int64 {
	return c.values.bytes() + c.valid.bytes()
}

// TimestampColumn stores instants as UTC nanoseconds since the epoch
type TimestampColumn struct {
	nulls
	values []int64
}

func NewTimestampColumn() *TimestampColumn {
	return &TimestampColumn{values: make([]int64, 0, 1024)}
}

func (c *TimestampColumn) Type() schema.Type { return schema.TypeTimestamp }

func (c *TimestampColumn) Get(i int) interface{} {
	if c.IsNull(i) {
		return nil
	}
	return c.Value(i)
}

func (c *TimestampColumn) Value(i int) time.Time {
	return time.Unix(0, c.values[i]).UTC()
}

// Nanos returns the raw slot
func (c *TimestampColumn) Nanos(i int) int64 { return c.values[i] }

func (c *TimestampColumn) appendValue(v interface{}) {
	c.values = append(c.values, v.(time.Time).UnixNano())
	c.valid.append(true)
}

func (c *TimestampColumn) appendNull() {
	c.values = append(c.values, 0)
	c.valid.append(false)
}

func (c *TimestampColumn) Clear() {
	c.values = c.values[:0]
	c.valid.clear()
}

func (c *TimestampColumn) MemoryUsage() int64 {
	return int64(len(c.values)*8) + c.valid.bytes()
}

// StringColumn stores strings, switching to dictionary codes once values
// repeat enough
type StringColumn struct {
	nulls
	typ       schema.Type
	values    []string
	dict      map[string]uint32
	entries   []string
	codes     []uint32
	dictMode  bool
	threshold float64
}

func NewStringColumn() *StringColumn {
	return newStringColumn(schema.TypeString)
}

// NewJSONColumn stores compact JSON text
func NewJSONColumn() *StringColumn {
	return newStringColumn(schema.TypeJSON)
}

func newStringColumn(t schema.Type) *StringColumn {
	return &StringColumn{
		typ:       t,
		values:    make([]string, 0, 1024),
		dict:      make(map[string]uint32),
		threshold: 0.5,
	}
}

func (c *StringColumn) Type() schema.Type { return c.typ }

func (c *StringColumn) Get(i int) interface{} {
	if c.IsNull(i) {
		return nil
	}
	return c.Value(i)
}

func (c *StringColumn) Value(i int) string {
	if c.dictMode {
		return c.entries[c.codes[i]]
	}
	return c.values[i]
}

func (c *StringColumn) appendValue(v interface{}) {
	c.appendString(v.(string))
	c.valid.append(true)
}

func (c *StringColumn) appendNull() {
	c.appendString("")
	c.valid.append(false)
}

func (c *StringColumn) appendString(s string) {
	if c.dictMode {
		c.codes = append(c.codes, c.code(s))
		return
	}
	c.values = append(c.values, s)
	if len(c.values) == 128 && c.shouldUseDictionary() {
		c.convertToDictionary()
	}
}

func (c *StringColumn) code(s string) uint32 {
	if code, ok := c.dict[s]; ok {
		return code
	}
	code := uint32(len(c.entries))
	c.dict[s] = code
	c.entries = append(c.entries, s)
	return code
}

func (c *StringColumn) shouldUseDictionary() bool {
	unique := make(map[string]struct{}, len(c.values))
	for _, v := range c.values {
		unique[v] = struct{}{}
	}
	return float64(len(unique))/float64(len(c.values)) < c.threshold
}

func (c *StringColumn) convertToDictionary() {
	c.dictMode = true
	c.codes = make([]uint32, 0, cap(c.values))
	for _, v := range c.values {
		c.codes = append(c.codes, c.code(v))
	}
	c.values = nil
}

// Dictionary reports whether the column switched to dictionary codes
func (c *StringColumn) Dictionary() bool { return c.dictMode }

func (c *StringColumn) Clear() {
	c.values = c.values[:0]
	c.codes = c.codes[:0]
	c.entries = c.entries[:0]
	c.dict = make(map[string]uint32)
	c.dictMode = false
	c.valid.clear()
}

func (c *StringColumn) MemoryUsage() int64 {
	var total int64
	if c.dictMode {
		for _, e := range c.entries {
			total += int64(len(e)) + 4
		}
		total += int64(len(c.codes) * 4)
	} else {
		for _, v := range c.values {
			total += int64(len(v)) + 16
		}
	}
	return total + c.valid.bytes()
}

func newColumn(t schema.Type) Column {
	switch t {
	case schema.TypeLong:
		return NewLongColumn()
	case schema.TypeDouble:
		return NewDoubleColumn()
	case schema.TypeBoolean:
		return NewBooleanColumn()
	case schema.TypeTimestamp:
		return NewTimestampColumn()
	case schema.TypeJSON:
		return NewJSONColumn()
	default:
		return NewStringColumn()
	}
}
