package entry

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Defaults for the documentation heuristics.
var (
	DefaultRecommendedSections = []string{"Overview", "Architecture", "Implementation", "Prerequisites"}
	DefaultPlaceholders        = []string{"TODO", "TBD", "Lorem ipsum", "[placeholder]"}
)

// DefaultMinDocLength is the documentation length below which a warning is raised.
const DefaultMinDocLength = 100

// DocChecker applies warning-only heuristics to an entry's documentation.
type DocChecker struct {
	// MinLength is the minimum content length in bytes (0 disables the check).
	MinLength int
	// Sections are matched as case-insensitive substrings.
	Sections []string
	// Placeholders flag unfinished text. They match case-sensitively as
	// whole words.
	Placeholders []string
}

// NewDocChecker creates a checker with default requirements.
func NewDocChecker() *DocChecker {
	return &DocChecker{
		MinLength:    DefaultMinDocLength,
		Sections:     DefaultRecommendedSections,
		Placeholders: DefaultPlaceholders,
	}
}

// Check returns the warnings for content.
func (c *DocChecker) Check(content string) []string {
	var warnings []string

	if c.MinLength > 0 && len(content) < c.MinLength {
		warnings = append(warnings,
			fmt.Sprintf("documentation may be too short (%d chars, recommend at least %d)", len(content), c.MinLength))
	}

	lower := strings.ToLower(content)
	if missing := missingSubstrings(lower, c.Sections); len(missing) > 0 {
		warnings = append(warnings,
			fmt.Sprintf("documentation is missing recommended sections: %s", strings.Join(missing, ", ")))
	}

	var found []string
	for _, p := range c.Placeholders {
		if containsWord(content, p) {
			found = append(found, p)
		}
	}
	if len(found) > 0 {
		warnings = append(warnings,
			fmt.Sprintf("documentation contains placeholder text: %s", strings.Join(found, ", ")))
	}

	return warnings
}

func missingSubstrings(lower string, wanted []string) []string {
	var missing []string
	for _, s := range wanted {
		if !strings.Contains(lower, strings.ToLower(s)) {
			missing = append(missing, s)
		}
	}
	return missing
}

// containsWord reports whether word occurs in s with no letter, digit,
// underscore or hyphen directly before or after it.
func containsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(s); {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(word)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		i = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
