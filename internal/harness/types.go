package harness

import "github.com/roach88/seedgraph/internal/engine"

// TraceEvent is one record write observed during a scenario.
type TraceEvent struct {
	Run    int    `json:"run"`
	Batch  int64  `json:"batch"`
	Index  int    `json:"index"`
	Table  string `json:"table"`
	Record string `json:"record"`
	Key    any    `json:"key"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion held.
	Pass bool `json:"pass"`

	// Trace lists every write of every run in order.
	Trace []TraceEvent `json:"trace"`

	// Broken lists the edges left empty to break cycles, across all runs.
	Broken []engine.BrokenEdge `json:"broken,omitempty"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// RunError is the persist error of the failing run, if any.
	RunError string `json:"run_error,omitempty"`

	// State holds every fixture table's rows after the last run.
	State map[string][]map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string][]map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddReport appends a batch report's writes and broken edges.
func (r *Result) AddReport(run int, report *engine.Report) {
	for _, w := range report.Writes {
		r.Trace = append(r.Trace, TraceEvent{
			Run:    run,
			Batch:  report.Batch,
			Index:  w.Index,
			Table:  w.Table,
			Record: w.Record,
			Key:    w.Key,
		})
	}
	r.Broken = append(r.Broken, report.Broken...)
}
