package pipeline

import (
	"time"

	"github.com/c360studio/entrygate/entry"
	"github.com/c360studio/entrygate/routing"
)

// Result aggregates one pipeline run.
type Result struct {
	RunID       string                        `json:"run_id"`
	Base        string                        `json:"base,omitempty"`
	Head        string                        `json:"head,omitempty"`
	Status      entry.Status                  `json:"status"`
	Entries     []string                      `json:"entries"`
	Verdicts    map[string]*entry.Verdict     `json:"verdicts"`
	Assignments map[string]routing.Assignment `json:"assignments"`
	Report      string                        `json:"report"`
	Reviewers   []string                      `json:"reviewers"`
	StartedAt   time.Time                     `json:"started_at"`
	Duration    time.Duration                 `json:"duration_ns"`
}

// Passed reports whether every verdict passed.
func (r *Result) Passed() bool {
	return r.Status == entry.StatusPass
}

// Failed returns the entries whose verdict failed, in entry order.
func (r *Result) Failed() []string {
	var out []string
	for _, e := range r.Entries {
		if v := r.Verdicts[e]; v != nil && !v.Passed() {
			out = append(out, e)
		}
	}
	return out
}

// Warnings counts warnings across all verdicts.
func (r *Result) Warnings() int {
	n := 0
	for _, v := range r.Verdicts {
		n += len(v.Warnings)
	}
	return n
}
