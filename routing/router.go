package routing

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/entrygate/metadata"
)

// Unknown is the category of entries routed to the fallback reviewers.
const (
	Unknown      = "unknown"
	UnknownLabel = "Unknown category"
)

// Assignment is the routing outcome for one entry.
type Assignment struct {
	Entry     string   `json:"entry"`
	Category  string   `json:"category"`
	Label     string   `json:"label"`
	Reviewers []string `json:"reviewers"`
	Comment   string   `json:"comment"`
}

// Fallback reports whether the entry went to the fallback reviewers.
func (a Assignment) Fallback() bool {
	return a.Category == Unknown
}

// Router resolves reviewer assignments from an injected mapping.
type Router struct {
	mapping *Mapping
	logger  *slog.Logger
}

// NewRouter creates a router over mapping.
func NewRouter(mapping *Mapping, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{mapping: mapping, logger: logger}
}

// Route assigns reviewers to the entry. A nil record or a category missing
// from the mapping selects the fallback reviewers; routing never fails.
func (r *Router) Route(entryPath string, record *metadata.Record) Assignment {
	a := Assignment{Entry: entryPath}

	var category string
	if record != nil {
		category = strings.TrimSpace(record.Category)
	}
	if route, ok := r.mapping.Categories[category]; ok && category != "" {
		a.Category = category
		a.Label = route.Description
		if a.Label == "" {
			a.Label = category
		}
		a.Reviewers = append([]string(nil), route.Reviewers...)
	} else {
		r.logger.Debug("Routing to fallback reviewers", "entry", entryPath, "category", category)
		a.Category = Unknown
		a.Label = UnknownLabel
		a.Reviewers = append([]string(nil), r.mapping.Fallback...)
	}
	if len(a.Reviewers) == 0 {
		a.Reviewers = append([]string(nil), r.mapping.Fallback...)
	}

	a.Comment = comment(a)
	return a
}

func comment(a Assignment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### Reviewer assignment for `%s`\n\n", a.Entry)
	fmt.Fprintf(&sb, "**Category:** %s (`%s`)\n", a.Label, a.Category)
	fmt.Fprintf(&sb, "**Reviewers:** %s\n", mentions(a.Reviewers))
	if a.Fallback() {
		sb.WriteString("\nThe category is missing or not recognised, so the default reviewers were assigned.\n")
	}
	return sb.String()
}

func mentions(ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if !strings.HasPrefix(id, "@") {
			id = "@" + id
		}
		out[i] = id
	}
	return strings.Join(out, " ")
}
