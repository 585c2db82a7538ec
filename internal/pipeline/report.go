package pipeline

import (
	"time"

	"github.com/ajitpratap0/nebula-restclient/pkg/splitter"
)

// Report summarizes one Run
type Report struct {
	JobID    string        `json:"job_id"`
	Splits   int           `json:"splits"`
	Duration time.Duration `json:"duration"`
	Tasks    []TaskReport  `json:"tasks"`
}

// TaskReport summarizes one sub-task
type TaskReport struct {
	Index    int             `json:"index"`
	Window   splitter.Window `json:"window"`
	Records  int             `json:"records"`
	Skipped  int             `json:"skipped"`
	Errors   []string        `json:"errors,omitempty"`
	Output   string          `json:"output,omitempty"`
	Failed   bool            `json:"failed,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// Records is the number of rows written by all sub-tasks
func (r *Report) Records() int {
	n := 0
	for _, t := range r.Tasks {
		n += t.Records
	}
	return n
}

// Skipped is the number of records dropped by all sub-tasks
func (r *Report) Skipped() int {
	n := 0
	for _, t := range r.Tasks {
		n += t.Skipped
	}
	return n
}
