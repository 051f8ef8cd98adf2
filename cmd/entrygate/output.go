package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/c360studio/entrygate/entry"
	"github.com/c360studio/entrygate/pipeline"
)

// printVerdict writes the step-by-step log for one entry.
func printVerdict(w io.Writer, v *entry.Verdict) {
	fmt.Fprintf(w, "Validating entry %s\n", v.Entry)
	for i, phase := range entry.Phases {
		errs, warns := v.ErrorsIn(phase), v.WarningsIn(phase)
		var status string
		switch {
		case v.WasSkipped(phase):
			status = "skipped"
		case len(errs) > 0:
			status = fmt.Sprintf("✗ %d error(s)", len(errs))
		case len(warns) > 0:
			status = fmt.Sprintf("! %d warning(s)", len(warns))
		default:
			status = "✓"
		}
		fmt.Fprintf(w, "  [%d/%d] %-18s %s\n", i+1, len(entry.Phases), phase, status)
		for _, e := range errs {
			fmt.Fprintf(w, "        ✗ %s\n", e)
		}
		for _, wn := range warns {
			fmt.Fprintf(w, "        ! %s\n", wn)
		}
	}
	fmt.Fprintf(w, "Result: %s (%d error(s), %d warning(s))\n\n", v.Status(), len(v.Errors), len(v.Warnings))
}

// printSummary writes the run summary line.
func printSummary(w io.Writer, r *pipeline.Result) {
	if len(r.Entries) == 0 {
		fmt.Fprintln(w, "No changed entries.")
	}
	failed := r.Failed()
	fmt.Fprintf(w, "Overall: %s (%d entries, %d failed, %d warning(s))\n", r.Status, len(r.Entries), len(failed), r.Warnings())
	if len(failed) > 0 {
		fmt.Fprintf(w, "Failed entries: %s\n", strings.Join(failed, ", "))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
