package splitter

import (
	"fmt"
	"math"
	"math/big"
	"time"
)

// SplitCalculator decides where the boundaries of a window fall. For any
// begin < end with N = NumberOfSplits(begin, end):
//
//	BeginningOfSplit(begin, end, 0) == begin
//	EndingOfSplit(begin, end, N-1) == end
//	EndingOfSplit(begin, end, i) == BeginningOfSplit(begin, end, i+1)
//
// and N >= 1 is a pure function of its arguments.
type SplitCalculator interface {
	NumberOfSplits(begin, end time.Time) int
	BeginningOfSplit(begin, end time.Time, index int) time.Time
	EndingOfSplit(begin, end time.Time, index int) time.Time
}

// FixedCount splits a window into N windows of equal width. The remainder
// nanoseconds go to the leading windows. Windows shorter than N nanoseconds
// get one split per nanosecond.
type FixedCount struct {
	N int
}

func (c FixedCount) count(total *big.Int) int {
	if total.Sign() <= 0 {
		return 0
	}
	n := c.N
	if n < 1 {
		n = 1
	}
	if total.IsInt64() && total.Int64() < int64(n) {
		n = int(total.Int64())
	}
	return n
}

func (c FixedCount) boundary(begin time.Time, total *big.Int, n, i int) time.Time {
	q, r := new(big.Int).QuoRem(total, big.NewInt(int64(n)), new(big.Int))
	extra := big.NewInt(int64(i))
	if extra.Cmp(r) > 0 {
		extra = r
	}
	return advance(begin, q.Mul(q, big.NewInt(int64(i))).Add(q, extra))
}

func (c FixedCount) NumberOfSplits(begin, end time.Time) int {
	return c.count(span(begin, end))
}

func (c FixedCount) BeginningOfSplit(begin, end time.Time, index int) time.Time {
	if index == 0 {
		return begin
	}
	total := span(begin, end)
	return c.boundary(begin, total, c.count(total), index)
}

func (c FixedCount) EndingOfSplit(begin, end time.Time, index int) time.Time {
	total := span(begin, end)
	n := c.count(total)
	if index >= n-1 {
		return end
	}
	return c.boundary(begin, total, n, index+1)
}

// FixedDuration splits a window into blocks of Step, truncating the last
// block at the ending. A window needing more than math.MaxInt blocks gets
// math.MaxInt, the last one absorbing the rest.
type FixedDuration struct {
	Step time.Duration
}

func (c FixedDuration) NumberOfSplits(begin, end time.Time) int {
	total := span(begin, end)
	if total.Sign() <= 0 {
		return 0
	}
	if c.Step <= 0 {
		return 1
	}
	q, r := new(big.Int).QuoRem(total, big.NewInt(int64(c.Step)), new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	if !q.IsInt64() || q.Int64() > math.MaxInt {
		return math.MaxInt
	}
	return int(q.Int64())
}

// cut is begin + index*Step, clamped to end
func (c FixedDuration) cut(begin, end time.Time, index int) time.Time {
	off := new(big.Int).Mul(big.NewInt(int64(c.Step)), big.NewInt(int64(index)))
	if off.Cmp(span(begin, end)) >= 0 {
		return end
	}
	return advance(begin, off)
}

func (c FixedDuration) BeginningOfSplit(begin, end time.Time, index int) time.Time {
	if c.Step <= 0 || index == 0 {
		return begin
	}
	return c.cut(begin, end, index)
}

func (c FixedDuration) EndingOfSplit(begin, end time.Time, index int) time.Time {
	if c.Step <= 0 || index >= c.NumberOfSplits(begin, end)-1 {
		return end
	}
	return c.cut(begin, end, index+1)
}

var nanosPerSecond = big.NewInt(int64(time.Second))

// span is end - begin in nanoseconds. Unlike time.Time.Sub it does not
// saturate on windows longer than about 292 years.
func span(begin, end time.Time) *big.Int {
	s := big.NewInt(end.Unix() - begin.Unix())
	s.Mul(s, nanosPerSecond)
	return s.Add(s, big.NewInt(int64(end.Nanosecond()-begin.Nanosecond())))
}

// advance moves t forward by a non-negative number of nanoseconds
func advance(t time.Time, nanos *big.Int) time.Time {
	sec, nsec := new(big.Int).QuoRem(nanos, nanosPerSecond, new(big.Int))
	return time.Unix(t.Unix()+sec.Int64(), int64(t.Nanosecond())+nsec.Int64()).In(t.Location())
}

// Unit is a calendar period
type Unit int

const (
	Daily Unit = iota
	Weekly
	Monthly
	Yearly
)

func (u Unit) String() string {
	switch u {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Yearly:
		return "yearly"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

// Calendar splits at calendar boundaries in Location: midnights, week
// starts, first days of months or years. The first and last windows are
// truncated to the overall window, so the overall beginning need not be
// aligned.
type Calendar struct {
	Unit     Unit
	Location *time.Location
	// WeekStart is the first day of a week for Weekly; the zero value is Sunday
	WeekStart time.Weekday
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// floor returns the start of the period containing t
func (c Calendar) floor(t time.Time) time.Time {
	t = t.In(c.loc())
	y, m, d := t.Date()
	switch c.Unit {
	case Weekly:
		day := time.Date(y, m, d, 0, 0, 0, 0, c.loc())
		offset := (int(day.Weekday()) - int(c.WeekStart) + 7) % 7
		return day.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, c.loc())
	case Yearly:
		return time.Date(y, 1, 1, 0, 0, 0, 0, c.loc())
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, c.loc())
	}
}

// cut returns the i-th period start after the one containing begin
func (c Calendar) cut(begin time.Time, i int) time.Time {
	start := c.floor(begin)
	switch c.Unit {
	case Weekly:
		return start.AddDate(0, 0, 7*i)
	case Monthly:
		return start.AddDate(0, i, 0)
	case Yearly:
		return start.AddDate(i, 0, 0)
	default:
		return start.AddDate(0, 0, i)
	}
}

func (c Calendar) NumberOfSplits(begin, end time.Time) int {
	if !begin.Before(end) {
		return 0
	}
	n := 1
	for c.cut(begin, n).Before(end) {
		n++
	}
	return n
}

func (c Calendar) BeginningOfSplit(begin, end time.Time, index int) time.Time {
	if index == 0 {
		return begin
	}
	return c.cut(begin, index)
}

func (c Calendar) EndingOfSplit(begin, end time.Time, index int) time.Time {
	e := c.cut(begin, index+1)
	if !e.Before(end) {
		return end
	}
	return e
}

// Bounded caps the number of splits of Calculator at Max by merging runs of
// consecutive windows.
type Bounded struct {
	Calculator SplitCalculator
	Max        int
}

func (b Bounded) groups(begin, end time.Time) (inner, n int) {
	inner = b.Calculator.NumberOfSplits(begin, end)
	if b.Max < 1 || inner <= b.Max {
		return inner, inner
	}
	return inner, b.Max
}

func (b Bounded) NumberOfSplits(begin, end time.Time) int {
	_, n := b.groups(begin, end)
	return n
}

func (b Bounded) BeginningOfSplit(begin, end time.Time, index int) time.Time {
	inner, n := b.groups(begin, end)
	return b.Calculator.BeginningOfSplit(begin, end, index*inner/n)
}

func (b Bounded) EndingOfSplit(begin, end time.Time, index int) time.Time {
	inner, n := b.groups(begin, end)
	return b.Calculator.EndingOfSplit(begin, end, (index+1)*inner/n-1)
}
