// Package schema holds the entry metadata schema and the closed category set.
//
// Both live in one CUE document so the required-field set and the category
// list cannot drift apart. Metadata is validated by unifying it with the
// #Metadata definition. A Registry is built once per process and is
// read-only afterwards; it is safe for concurrent use.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed metadata.cue
var defaultDocument []byte

const defaultFilename = "metadata.cue"

// Definitions the schema document must provide.
const (
	metadataDef   = "#Metadata"
	categoriesDef = "#Categories"
	versionDef    = "#Version"
)

// ErrSchemaNotFound is returned when a configured schema document does not exist.
var ErrSchemaNotFound = errors.New("schema document not found")

// Category is one member of the closed category set.
type Category struct {
	ID          string
	Description string
}

// Registry exposes the compiled schema document.
type Registry struct {
	// mu serialises evaluation; CUE values are not safe for concurrent use.
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value

	version    int
	categories map[string]Category
	required   []string
}

// Default returns the registry built from the embedded schema document.
func Default() (*Registry, error) {
	return compile(defaultFilename, defaultDocument)
}

// LoadFile reads a CUE schema document from path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, path)
		}
		return nil, fmt.Errorf("read schema document: %w", err)
	}
	return compile(path, data)
}

// Parse builds a registry from CUE schema source.
func Parse(data []byte) (*Registry, error) {
	return compile(defaultFilename, data)
}

func compile(filename string, data []byte) (*Registry, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(data, cue.Filename(filename))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema document: %w", err)
	}
	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("compile schema document: %w", err)
	}

	def := root.LookupPath(cue.ParsePath(metadataDef))
	if !def.Exists() {
		return nil, fmt.Errorf("schema document does not define %s", metadataDef)
	}
	r := &Registry{ctx: ctx, def: def, categories: make(map[string]Category)}

	if v := root.LookupPath(cue.ParsePath(versionDef)); v.Exists() {
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("schema document %s: %w", versionDef, err)
		}
		r.version = int(n)
	}

	cats := root.LookupPath(cue.ParsePath(categoriesDef))
	if !cats.Exists() {
		return nil, fmt.Errorf("schema document does not define %s", categoriesDef)
	}
	it, err := cats.Fields()
	if err != nil {
		return nil, fmt.Errorf("schema document %s: %w", categoriesDef, err)
	}
	for it.Next() {
		id := unquote(it.Selector().String())
		desc, err := it.Value().String()
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", id, err)
		}
		r.categories[id] = Category{ID: id, Description: desc}
	}
	if len(r.categories) == 0 {
		return nil, errors.New("schema document declares no categories")
	}

	// A field is required when an empty document violates it.
	res, err := r.Validate("empty.yaml", []byte("{}"))
	if err != nil {
		return nil, fmt.Errorf("schema document: %w", err)
	}
	for _, v := range res.Violations {
		if !strings.ContainsAny(v.Path, ".[") {
			r.required = append(r.required, v.Path)
		}
	}
	sort.Strings(r.required)
	return r, nil
}

// Version returns the schema document version.
func (r *Registry) Version() int {
	return r.version
}

// RequiredFields returns the names of the required top-level fields, sorted.
func (r *Registry) RequiredFields() []string {
	return append([]string(nil), r.required...)
}

// Categories returns the category ids in sorted order.
func (r *Registry) Categories() []string {
	ids := make([]string, 0, len(r.categories))
	for id := range r.categories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Category looks up a category by id.
func (r *Registry) Category(id string) (Category, bool) {
	c, ok := r.categories[id]
	return c, ok
}

// IsCategory reports whether id belongs to the closed category set.
func (r *Registry) IsCategory(id string) bool {
	_, ok := r.categories[id]
	return ok
}
