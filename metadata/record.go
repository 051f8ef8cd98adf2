// Package metadata defines the typed entry metadata record and how it is read
// from an entry directory.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the metadata file name inside an entry directory.
const DefaultFile = "metadata.yaml"

var (
	// ErrNotFound is returned when an entry has no metadata file.
	ErrNotFound = errors.New("metadata file not found")
	// ErrNotMapping is returned for a document that is not a mapping of fields.
	ErrNotMapping = errors.New("metadata must be a mapping of fields")
)

// Author identifies the contributor of an entry.
type Author struct {
	Name   string `yaml:"name" json:"name"`
	Email  string `yaml:"email" json:"email"`
	GitHub string `yaml:"github,omitempty" json:"github,omitempty"`
}

// Technology is one technology an entry uses.
type Technology struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// CodeSnippet points at a source file shipped with the entry.
type CodeSnippet struct {
	File        string `yaml:"file" json:"file"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Language    string `yaml:"language,omitempty" json:"language,omitempty"`
}

// Implementation groups optional implementation details.
type Implementation struct {
	RepoURL      string        `yaml:"repo_url,omitempty" json:"repo_url,omitempty"`
	Language     string        `yaml:"language,omitempty" json:"language,omitempty"`
	Framework    string        `yaml:"framework,omitempty" json:"framework,omitempty"`
	CodeSnippets []CodeSnippet `yaml:"code_snippets,omitempty" json:"code_snippets,omitempty"`
}

// Record is the parsed metadata of one entry.
type Record struct {
	Title               string          `yaml:"title" json:"title"`
	Description         string          `yaml:"description" json:"description"`
	Author              Author          `yaml:"author" json:"author"`
	Category            string          `yaml:"category" json:"category"`
	Tags                []string        `yaml:"tags" json:"tags"`
	Technologies        []Technology    `yaml:"technologies" json:"technologies"`
	UseCase             string          `yaml:"use_case" json:"use_case"`
	ArchitectureDiagram string          `yaml:"architecture_diagram,omitempty" json:"architecture_diagram,omitempty"`
	Prerequisites       []string        `yaml:"prerequisites,omitempty" json:"prerequisites,omitempty"`
	Implementation      *Implementation `yaml:"implementation,omitempty" json:"implementation,omitempty"`
	Security            []string        `yaml:"security,omitempty" json:"security,omitempty"`
	Limitations         []string        `yaml:"limitations,omitempty" json:"limitations,omitempty"`
	RelatedEntries      []string        `yaml:"related_entries,omitempty" json:"related_entries,omitempty"`
	CreatedDate         string          `yaml:"created_date,omitempty" json:"created_date,omitempty"`
	LastUpdated         string          `yaml:"last_updated,omitempty" json:"last_updated,omitempty"`
	Version             string          `yaml:"version,omitempty" json:"version,omitempty"`
	Status              string          `yaml:"status,omitempty" json:"status,omitempty"`
}

// Reference is a path named inside a record that must exist in the entry.
type Reference struct {
	Field string
	Path  string
}

// References lists every relative path the record points at, in field order.
func (r *Record) References() []Reference {
	var refs []Reference
	if r.ArchitectureDiagram != "" {
		refs = append(refs, Reference{Field: "architecture_diagram", Path: r.ArchitectureDiagram})
	}
	if r.Implementation != nil {
		for i, s := range r.Implementation.CodeSnippets {
			if s.File == "" {
				continue
			}
			refs = append(refs, Reference{
				Field: fmt.Sprintf("implementation.code_snippets[%d].file", i),
				Path:  s.File,
			})
		}
	}
	return refs
}

// Parse reads raw metadata into its YAML node tree and returns the root
// mapping. Syntax errors, a document that is not a mapping and mapping keys
// defined twice at any level are all errors.
func Parse(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	root := &doc
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root = doc.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w (line %d)", ErrNotMapping, root.Line)
	}
	// Decoding into an untyped value only fails on duplicate keys.
	var plain any
	if err := root.Decode(&plain); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return root, nil
}

// FromNode decodes a tree returned by Parse. When some fields have the wrong
// shape the record still carries every field that decoded, together with the
// *yaml.TypeError.
func FromNode(root *yaml.Node) (*Record, error) {
	var rec Record
	if err := root.Decode(&rec); err != nil {
		return &rec, err
	}
	return &rec, nil
}

// Decode parses and decodes raw metadata. Errors from Parse return a nil
// record; shape errors behave as in FromNode.
func Decode(data []byte) (*Record, error) {
	root, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return FromNode(root)
}

// Load reads and decodes the metadata file of the entry at entryPath.
func Load(fsys billy.Filesystem, entryPath, file string) (*Record, error) {
	if file == "" {
		file = DefaultFile
	}
	data, err := util.ReadFile(fsys, path.Join(entryPath, file))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path.Join(entryPath, file))
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return Decode(data)
}
