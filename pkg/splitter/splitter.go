// Package splitter partitions a task into independent sub-tasks.
//
// A ServiceDataSplitter decides how many sub-tasks a task runs as and builds
// the per-task value for each index. TimestampSplitter is the time-window
// implementation: it reads the overall window through a WindowAccessor,
// asks a SplitCalculator where the boundaries fall, and writes each
// sub-window into a fresh copy of the task.
package splitter

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
)

// Window is a half-open interval [Begin, End)
type Window struct {
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

// Duration returns End - Begin
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Begin)
}

// IsEmpty reports whether the window contains no instant
func (w Window) IsEmpty() bool {
	return !w.Begin.Before(w.End)
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Begin) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Begin.Format(time.RFC3339Nano), w.End.Format(time.RFC3339Nano))
}

// Validate rejects a window whose beginning is after its ending
func (w Window) Validate() error {
	if w.Begin.After(w.End) {
		return errors.New(errors.ErrorTypeSplit, "beginning of the overall window is after its ending").
			WithDetail("beginning", w.Begin).
			WithDetail("ending", w.End)
	}
	return nil
}

// ServiceDataSplitter splits a task of type T into per-task values
type ServiceDataSplitter[T any] interface {
	// NumberOfSplits returns how many sub-tasks the task runs as. Zero means
	// there is no work.
	NumberOfSplits(task T) (int, error)
	// HintSplit returns the per-task value for index in [0, N). It never
	// modifies task and may be called concurrently for different indices.
	HintSplit(task T, s *schema.Schema, index int) (T, error)
}

// WindowAccessor is the only place a TimestampSplitter touches the task
type WindowAccessor[T any] interface {
	OverallWindow(task T) (Window, error)
	// WithSplitWindow returns a copy of task carrying w as its window
	WithSplitWindow(task T, w Window) T
}

// CalculatorSelector chooses the calculator for a task
type CalculatorSelector[T any] func(task T) (SplitCalculator, error)

// Static always selects calc
func Static[T any](calc SplitCalculator) CalculatorSelector[T] {
	return func(T) (SplitCalculator, error) { return calc, nil }
}

// TimestampSplitter splits a task by time windows
type TimestampSplitter[T any] struct {
	accessor WindowAccessor[T]
	selector CalculatorSelector[T]
}

// NewTimestampSplitter builds a splitter from an accessor and a calculator
// selector
func NewTimestampSplitter[T any](accessor WindowAccessor[T], selector CalculatorSelector[T]) *TimestampSplitter[T] {
	return &TimestampSplitter[T]{accessor: accessor, selector: selector}
}

func (s *TimestampSplitter[T]) prepare(task T) (Window, SplitCalculator, error) {
	w, err := s.accessor.OverallWindow(task)
	if err != nil {
		return Window{}, nil, errors.Wrap(err, errors.ErrorTypeSplit, "cannot read the overall window")
	}
	if err := w.Validate(); err != nil {
		return Window{}, nil, err
	}
	calc, err := s.selector(task)
	if err != nil {
		return Window{}, nil, errors.Wrap(err, errors.ErrorTypeSplit, "cannot select a split calculator")
	}
	return w, calc, nil
}

// NumberOfSplits implements ServiceDataSplitter
func (s *TimestampSplitter[T]) NumberOfSplits(task T) (int, error) {
	w, calc, err := s.prepare(task)
	if err != nil {
		return 0, err
	}
	if w.IsEmpty() {
		return 0, nil
	}
	n := calc.NumberOfSplits(w.Begin, w.End)
	if n < 1 {
		return 0, errors.Newf(errors.ErrorTypeSplit, "calculator returned %d splits for non-empty window %s", n, w)
	}
	return n, nil
}

// HintSplit implements ServiceDataSplitter. The schema is accepted for
// splitters that need it; time windows do not.
func (s *TimestampSplitter[T]) HintSplit(task T, _ *schema.Schema, index int) (T, error) {
	var zero T
	w, calc, err := s.prepare(task)
	if err != nil {
		return zero, err
	}
	n := 0
	if !w.IsEmpty() {
		n = calc.NumberOfSplits(w.Begin, w.End)
	}
	if index < 0 || index >= n {
		return zero, errors.Newf(errors.ErrorTypeSplit, "split index %d out of range [0, %d)", index, n)
	}
	sub := Window{
		Begin: calc.BeginningOfSplit(w.Begin, w.End, index),
		End:   calc.EndingOfSplit(w.Begin, w.End, index),
	}
	return s.accessor.WithSplitWindow(task, sub), nil
}

// Plan hints every split of task and verifies that the resulting windows
// partition the overall window. It fails before any sub-task could start.
func (s *TimestampSplitter[T]) Plan(task T) ([]T, error) {
	w, calc, err := s.prepare(task)
	if err != nil {
		return nil, err
	}
	windows := Windows(calc, w)
	if err := VerifyPartition(w, windows); err != nil {
		return nil, err
	}
	tasks := make([]T, len(windows))
	for i, sub := range windows {
		tasks[i] = s.accessor.WithSplitWindow(task, sub)
	}
	return tasks, nil
}

// Windows returns every sub-window calc produces for overall
func Windows(calc SplitCalculator, overall Window) []Window {
	if overall.IsEmpty() {
		return nil
	}
	n := calc.NumberOfSplits(overall.Begin, overall.End)
	if n < 1 {
		return nil
	}
	windows := make([]Window, n)
	for i := range windows {
		windows[i] = Window{
			Begin: calc.BeginningOfSplit(overall.Begin, overall.End, i),
			End:   calc.EndingOfSplit(overall.Begin, overall.End, i),
		}
	}
	return windows
}

// VerifyPartition checks that windows tile overall: the first begins at the
// overall beginning, the last ends at the overall ending, each ends where
// the next begins and none runs backwards. An empty overall window must have
// no sub-windows.
func VerifyPartition(overall Window, windows []Window) error {
	if err := overall.Validate(); err != nil {
		return err
	}
	if overall.IsEmpty() {
		if len(windows) > 1 {
			return errors.Newf(errors.ErrorTypeSplit, "empty window %s produced %d splits", overall, len(windows))
		}
		return nil
	}
	if len(windows) == 0 {
		return errors.Newf(errors.ErrorTypeSplit, "non-empty window %s produced no splits", overall)
	}

	if !windows[0].Begin.Equal(overall.Begin) {
		return partitionError(0, "first split begins at %s, not at %s", windows[0].Begin, overall.Begin)
	}
	last := len(windows) - 1
	if !windows[last].End.Equal(overall.End) {
		return partitionError(last, "last split ends at %s, not at %s", windows[last].End, overall.End)
	}
	for i, w := range windows {
		if w.End.Before(w.Begin) {
			return partitionError(i, "split %s runs backwards", w)
		}
		if i < last && !w.End.Equal(windows[i+1].Begin) {
			return partitionError(i, "split ends at %s but the next begins at %s", w.End, windows[i+1].Begin)
		}
	}
	return nil
}

func partitionError(index int, format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeSplit, format, args...).WithDetail("index", index)
}
