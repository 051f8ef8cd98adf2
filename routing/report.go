package routing

import (
	"fmt"
	"sort"
	"strings"
)

// ReportMarker opens every report so a poster can find and replace an
// earlier one.
const ReportMarker = "<!-- entrygate:reviewer-assignment -->"

// Checklist is appended to every report.
var Checklist = []string{
	"Metadata is accurate and complete",
	"Architecture diagram matches the documentation",
	"Referenced code snippets are correct",
	"Security considerations and limitations are stated",
	"Documentation is clear and free of placeholder text",
}

type group struct {
	category  string
	label     string
	reviewers []string
	entries   []string
}

// groups buckets assignments by category, ordered by category id with the
// fallback group last. Entries are sorted and deduplicated.
func groups(assignments []Assignment) []group {
	byCategory := make(map[string]*group)
	for _, a := range assignments {
		g, ok := byCategory[a.Category]
		if !ok {
			g = &group{category: a.Category, label: a.Label, reviewers: a.Reviewers}
			byCategory[a.Category] = g
		}
		g.entries = append(g.entries, a.Entry)
	}

	out := make([]group, 0, len(byCategory))
	for _, g := range byCategory {
		g.entries = dedupe(g.entries)
		sort.Strings(g.entries)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].category == Unknown) != (out[j].category == Unknown) {
			return out[j].category == Unknown
		}
		return out[i].category < out[j].category
	})
	return out
}

// Report renders the reviewer report. The output depends only on the set of
// assignments, so the same entries and mapping always give identical text.
func Report(assignments []Assignment) string {
	var sb strings.Builder
	sb.WriteString(ReportMarker)
	sb.WriteString("\n## Reviewer assignment\n\n")

	gs := groups(assignments)
	if len(gs) == 0 {
		sb.WriteString("No entries changed in this submission.\n")
	}
	for _, g := range gs {
		fmt.Fprintf(&sb, "### %s (`%s`)\n\n", g.label, g.category)
		fmt.Fprintf(&sb, "Reviewers: %s\n\n", mentions(g.reviewers))
		for _, e := range g.entries {
			fmt.Fprintf(&sb, "- `%s`\n", e)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Review checklist\n\n")
	for _, item := range Checklist {
		fmt.Fprintf(&sb, "- [ ] %s\n", item)
	}
	return sb.String()
}

// Reviewers returns every reviewer across the report groups in order of first
// appearance, without duplicates.
func Reviewers(assignments []Assignment) []string {
	var all []string
	for _, g := range groups(assignments) {
		all = append(all, g.reviewers...)
	}
	return dedupe(all)
}
