package schema

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/Masterminds/semver/v3"
)

// KebabPattern matches lowercase alphanumerics separated by single hyphens.
var KebabPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Formats named by @format attributes in the schema document. They are
// checked after unification.
const (
	FormatRelPath = "relpath"
	FormatSemver  = "semver"
)

const notAllowed = "field not allowed"

// Violation is one schema problem addressed by field path.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Result holds everything found by one Validate pass.
type Result struct {
	Violations []Violation
	// UnknownFields lists keys the schema does not declare.
	UnknownFields []Violation
}

// Valid reports whether no violations were found.
func (r *Result) Valid() bool {
	return len(r.Violations) == 0
}

// Validate unifies a YAML metadata document with the #Metadata definition and
// reports every violation, at most one per field path. filename is used to
// attribute source lines. An error means data could not be read as YAML.
func (r *Registry) Validate(filename string, data []byte) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	doc := r.ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("build %s: %w", filename, err)
	}

	unified := doc.Unify(r.def)
	res := &Result{}
	seen := make(map[string]bool)

	for _, e := range cueerrors.Errors(unified.Validate(cue.Concrete(true), cue.All())) {
		p := fieldPath(e.Path())
		if seen[p] {
			continue
		}
		seen[p] = true

		format, args := e.Msg()
		v := Violation{Path: p, Message: fmt.Sprintf(format, args...), Line: errorLine(doc, filename, e)}
		if strings.Contains(v.Message, notAllowed) {
			v.Message = "field is not part of the schema"
			res.UnknownFields = append(res.UnknownFields, v)
			continue
		}
		res.Violations = append(res.Violations, v)
	}

	checkFormats(doc, unified, nil, res, seen)
	return res, nil
}

// checkFormats walks the unified value and applies the @format checks CUE
// cannot express.
func checkFormats(doc, v cue.Value, segments []string, res *Result, seen map[string]bool) {
	switch v.IncompleteKind() {
	case cue.StructKind:
		it, err := v.Fields()
		if err != nil {
			return
		}
		for it.Next() {
			checkFormats(doc, it.Value(), child(segments, it.Selector().String()), res, seen)
		}
	case cue.ListKind:
		it, err := v.List()
		if err != nil {
			return
		}
		for i := 0; it.Next(); i++ {
			checkFormats(doc, it.Value(), child(segments, strconv.Itoa(i)), res, seen)
		}
	case cue.StringKind:
		attr := v.Attribute("format")
		if attr.Err() != nil {
			return
		}
		s, err := v.String()
		if err != nil {
			return
		}
		msg := checkFormat(attr.Contents(), s)
		p := fieldPath(segments)
		if msg == "" || seen[p] {
			return
		}
		seen[p] = true
		res.Violations = append(res.Violations, Violation{Path: p, Message: msg, Line: nearestLine(doc, segments)})
	}
}

// checkFormat returns a message when value violates format, or "".
func checkFormat(format, value string) string {
	switch format {
	case FormatRelPath:
		if !IsRelativePath(value) {
			return fmt.Sprintf("%q must be a relative path inside the entry", value)
		}
	case FormatSemver:
		if _, err := semver.StrictNewVersion(value); err != nil {
			return fmt.Sprintf("%q is not a semantic version", value)
		}
	}
	return ""
}

// IsRelativePath reports whether p is a slash-separated path that stays
// inside the directory it is resolved against.
func IsRelativePath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return false
	}
	clean := path.Clean(p)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}

// errorLine picks the position of err inside the metadata document, falling
// back to the closest enclosing value when the field itself is absent.
func errorLine(doc cue.Value, filename string, err cueerrors.Error) int {
	for _, pos := range cueerrors.Positions(err) {
		if pos.IsValid() && pos.Filename() == filename && pos.Line() > 0 {
			return pos.Line()
		}
	}
	return nearestLine(doc, err.Path())
}

func nearestLine(doc cue.Value, segments []string) int {
	sels := selectors(segments)
	for n := len(sels); n >= 0; n-- {
		v := doc.LookupPath(cue.MakePath(sels[:n]...))
		if !v.Exists() {
			continue
		}
		if pos := v.Pos(); pos.IsValid() && pos.Line() > 0 {
			return pos.Line()
		}
	}
	return 0
}

// fieldPath renders CUE path segments as `author.email` or `tags[2]`.
func fieldPath(segments []string) string {
	var sb strings.Builder
	for _, s := range segments {
		if strings.HasPrefix(s, "#") && sb.Len() == 0 {
			continue
		}
		if _, err := strconv.Atoi(s); err == nil {
			fmt.Fprintf(&sb, "[%s]", s)
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(unquote(s))
	}
	if sb.Len() == 0 {
		return "$"
	}
	return sb.String()
}

func selectors(segments []string) []cue.Selector {
	sels := make([]cue.Selector, 0, len(segments))
	for _, s := range segments {
		if strings.HasPrefix(s, "#") {
			continue
		}
		if i, err := strconv.Atoi(s); err == nil {
			sels = append(sels, cue.Index(i))
			continue
		}
		sels = append(sels, cue.Str(unquote(s)))
	}
	return sels
}

func child(segments []string, s string) []string {
	out := make([]string, len(segments), len(segments)+1)
	copy(out, segments)
	return append(out, s)
}

func unquote(s string) string {
	if strings.HasPrefix(s, `"`) {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}
