// Package routing assigns entries to subject-matter reviewers by category and
// renders the aggregated reviewer report.
package routing

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed reviewers.yaml
var defaultMapping []byte

// ErrMappingNotFound is returned when a configured mapping file does not exist.
var ErrMappingNotFound = errors.New("reviewer mapping not found")

// Route describes the reviewers for one category.
type Route struct {
	Description string   `yaml:"description"`
	Reviewers   []string `yaml:"reviewers"`
}

// Mapping is the read-only category to reviewer table. Build one with
// DefaultMapping, LoadMapping or ParseMapping and do not modify it afterwards.
type Mapping struct {
	Fallback   []string         `yaml:"fallback"`
	Categories map[string]Route `yaml:"categories"`
}

// DefaultMapping returns the embedded mapping.
func DefaultMapping() (*Mapping, error) {
	return ParseMapping(defaultMapping)
}

// LoadMapping reads a mapping from a YAML file.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMappingNotFound, path)
		}
		return nil, fmt.Errorf("read reviewer mapping: %w", err)
	}
	return ParseMapping(data)
}

// ParseMapping decodes and checks a mapping document.
func ParseMapping(data []byte) (*Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse reviewer mapping: %w", err)
	}
	if len(m.Fallback) == 0 {
		return nil, errors.New("reviewer mapping: fallback reviewers are required")
	}
	if m.Categories == nil {
		m.Categories = map[string]Route{}
	}
	for id, route := range m.Categories {
		if id == Unknown {
			return nil, fmt.Errorf("reviewer mapping: category id %q is reserved", Unknown)
		}
		route.Reviewers = dedupe(route.Reviewers)
		m.Categories[id] = route
	}
	m.Fallback = dedupe(m.Fallback)
	return &m, nil
}

// Drift lists the differences between a mapping and the schema category set.
type Drift struct {
	// Unmapped categories route to the fallback reviewers.
	Unmapped []string
	// Unknown mapping keys can never be selected.
	Unknown []string
}

// Empty reports whether the mapping and category set agree.
func (d Drift) Empty() bool {
	return len(d.Unmapped) == 0 && len(d.Unknown) == 0
}

// Check compares the mapping keys with the valid categories.
func (m *Mapping) Check(categories []string) Drift {
	var d Drift
	valid := make(map[string]bool, len(categories))
	for _, c := range categories {
		valid[c] = true
		if _, ok := m.Categories[c]; !ok {
			d.Unmapped = append(d.Unmapped, c)
		}
	}
	for id := range m.Categories {
		if !valid[id] {
			d.Unknown = append(d.Unknown, id)
		}
	}
	sort.Strings(d.Unmapped)
	sort.Strings(d.Unknown)
	return d
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
