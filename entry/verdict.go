package entry

import (
	"encoding/json"
	"fmt"
)

// Phase identifies the validation phase that produced an issue.
type Phase string

// Phases in the order they run.
const (
	PhaseNaming     Phase = "naming"
	PhaseFiles      Phase = "required_files"
	PhaseSchema     Phase = "schema"
	PhaseReferences Phase = "cross_references"
	PhaseDocs       Phase = "documentation"
)

// Phases lists every phase in execution order.
var Phases = []Phase{PhaseNaming, PhaseFiles, PhaseSchema, PhaseReferences, PhaseDocs}

// Status is the terminal state of a verdict.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// Issue is one field-addressed problem found in an entry.
type Issue struct {
	Phase   Phase  `json:"phase"`
	Path    string `json:"path"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

func (i Issue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", i.Path, i.Message, i.Line)
	}
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Verdict is the outcome of validating one entry. A verdict is built by a
// single Validate call and not modified afterwards.
type Verdict struct {
	Entry    string  `json:"entry"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	// Skipped lists phases that did not run because an earlier phase made
	// them impossible.
	Skipped []Phase `json:"skipped,omitempty"`
}

// Status returns PASS when there are no errors.
func (v *Verdict) Status() Status {
	if len(v.Errors) > 0 {
		return StatusFail
	}
	return StatusPass
}

// Passed reports whether the verdict has no errors.
func (v *Verdict) Passed() bool {
	return v.Status() == StatusPass
}

// ErrorsIn returns the errors produced by phase.
func (v *Verdict) ErrorsIn(phase Phase) []Issue {
	return filterPhase(v.Errors, phase)
}

// WarningsIn returns the warnings produced by phase.
func (v *Verdict) WarningsIn(phase Phase) []Issue {
	return filterPhase(v.Warnings, phase)
}

// WasSkipped reports whether phase did not run.
func (v *Verdict) WasSkipped(phase Phase) bool {
	for _, p := range v.Skipped {
		if p == phase {
			return true
		}
	}
	return false
}

// MarshalJSON adds the computed status to the encoded verdict.
func (v *Verdict) MarshalJSON() ([]byte, error) {
	type plain Verdict
	errs, warns := v.Errors, v.Warnings
	if errs == nil {
		errs = []Issue{}
	}
	if warns == nil {
		warns = []Issue{}
	}
	return json.Marshal(struct {
		*plain
		Errors   []Issue `json:"errors"`
		Warnings []Issue `json:"warnings"`
		Status   Status  `json:"status"`
	}{
		plain:    (*plain)(v),
		Errors:   errs,
		Warnings: warns,
		Status:   v.Status(),
	})
}

func filterPhase(issues []Issue, phase Phase) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Phase == phase {
			out = append(out, i)
		}
	}
	return out
}

// builder accumulates issues for one validation run.
type builder struct {
	v *Verdict
}

func newBuilder(entryPath string) *builder {
	return &builder{v: &Verdict{Entry: entryPath}}
}

func (b *builder) errorf(phase Phase, path, format string, args ...any) {
	b.v.Errors = append(b.v.Errors, Issue{Phase: phase, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (b *builder) warnf(phase Phase, path, format string, args ...any) {
	b.v.Warnings = append(b.v.Warnings, Issue{Phase: phase, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (b *builder) issue(phase Phase, path, message string, line int, warning bool) {
	i := Issue{Phase: phase, Path: path, Message: message, Line: line}
	if warning {
		b.v.Warnings = append(b.v.Warnings, i)
		return
	}
	b.v.Errors = append(b.v.Errors, i)
}

func (b *builder) skip(phases ...Phase) {
	b.v.Skipped = append(b.v.Skipped, phases...)
}

func (b *builder) verdict() *Verdict {
	return b.v
}
