// Package rest binds a task configuration to the splitter, the schema
// writer, a record source and an output sink.
package rest

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/nebula-restclient/pkg/config"
	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/splitter"
)

// Task is the per-task value the splitter hands out. The configuration is
// shared and read only; each sub-task differs only in Window and Index.
type Task struct {
	Config *config.Config
	Window splitter.Window
	// Index is the sub-task index, -1 for the overall task
	Index int
}

// NewTask builds the overall task from cfg
func NewTask(cfg *config.Config) (*Task, error) {
	begin, err := config.ParseTime(cfg.Window.Begin, cfg.Window.Location)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "window.begin")
	}
	end, err := config.ParseTime(cfg.Window.End, cfg.Window.Location)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "window.end")
	}
	return &Task{
		Config: cfg,
		Window: splitter.Window{Begin: begin, End: end},
		Index:  -1,
	}, nil
}

func (t *Task) String() string {
	if t.Index < 0 {
		return fmt.Sprintf("%s %s", t.Config.Name, t.Window)
	}
	return fmt.Sprintf("%s#%d %s", t.Config.Name, t.Index, t.Window)
}

// windowAccessor reads and writes Task windows for the splitter. The copy
// keeps the parent's index; the connector stamps the split index.
type windowAccessor struct{}

func (windowAccessor) OverallWindow(t *Task) (splitter.Window, error) {
	if t == nil {
		return splitter.Window{}, errors.New(errors.ErrorTypeSplit, "no task")
	}
	return t.Window, nil
}

func (windowAccessor) WithSplitWindow(t *Task, w splitter.Window) *Task {
	sub := *t
	sub.Window = w
	return &sub
}

// Calculator picks the split calculator for the configured cadence
func Calculator(cfg *config.Config) (splitter.SplitCalculator, error) {
	loc := time.UTC
	if cfg.Window.Location != "" {
		l, err := time.LoadLocation(cfg.Window.Location)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "window.location")
		}
		loc = l
	}

	var calc splitter.SplitCalculator
	switch cfg.Window.Cadence {
	case config.CadenceCount:
		calc = splitter.FixedCount{N: cfg.Window.Count}
	case config.CadenceDuration:
		calc = splitter.FixedDuration{Step: cfg.Window.Step}
	case config.CadenceDaily, config.CadenceWeekly, config.CadenceMonthly, config.CadenceYearly:
		weekStart, err := config.ParseWeekday(cfg.Window.WeekStart)
		if err != nil {
			return nil, err
		}
		calc = splitter.Calendar{Unit: units[cfg.Window.Cadence], Location: loc, WeekStart: weekStart}
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown cadence %q", cfg.Window.Cadence)
	}

	if cfg.Window.MaxSplits > 0 {
		calc = splitter.Bounded{Calculator: calc, Max: cfg.Window.MaxSplits}
	}
	return calc, nil
}

var units = map[string]splitter.Unit{
	config.CadenceDaily:   splitter.Daily,
	config.CadenceWeekly:  splitter.Weekly,
	config.CadenceMonthly: splitter.Monthly,
	config.CadenceYearly:  splitter.Yearly,
}

// NewSplitter returns the time window splitter for tasks
func NewSplitter() *splitter.TimestampSplitter[*Task] {
	return splitter.NewTimestampSplitter[*Task](windowAccessor{}, func(t *Task) (splitter.SplitCalculator, error) {
		return Calculator(t.Config)
	})
}
