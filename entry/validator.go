// Package entry validates the structure and metadata of one entry directory.
//
// Validation runs five ordered phases (naming, required files, schema,
// cross-references, documentation heuristics) and collects every problem it
// can find in a single pass, so contributors get one complete report.
package entry

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/c360studio/entrygate/metadata"
	"github.com/c360studio/entrygate/schema"
)

// Default layout of an entry directory.
const (
	DefaultDocFile   = "README.md"
	DefaultAssetsDir = "assets"
)

// Layout names the files every entry must carry.
type Layout struct {
	MetadataFile string
	DocFile      string
	AssetsDir    string
}

// DefaultLayout returns the standard entry layout.
func DefaultLayout() Layout {
	return Layout{
		MetadataFile: metadata.DefaultFile,
		DocFile:      DefaultDocFile,
		AssetsDir:    DefaultAssetsDir,
	}
}

// Validator runs the entry checks against a read-only schema registry.
// It holds no per-run state and may be shared between goroutines.
type Validator struct {
	registry *schema.Registry
	layout   Layout
	docs     *DocChecker
	logger   *slog.Logger
}

// NewValidator creates a validator. A nil docs checker uses NewDocChecker.
func NewValidator(registry *schema.Registry, layout Layout, docs *DocChecker, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if docs == nil {
		docs = NewDocChecker()
	}
	def := DefaultLayout()
	if layout.MetadataFile == "" {
		layout.MetadataFile = def.MetadataFile
	}
	if layout.DocFile == "" {
		layout.DocFile = def.DocFile
	}
	if layout.AssetsDir == "" {
		layout.AssetsDir = def.AssetsDir
	}
	return &Validator{registry: registry, layout: layout, docs: docs, logger: logger}
}

// Layout returns the entry layout the validator checks.
func (v *Validator) Layout() Layout {
	return v.layout
}

// Validate checks the entry at entryPath (slash-separated, relative to the
// root of fsys) and returns a fresh verdict.
func (v *Validator) Validate(fsys billy.Filesystem, entryPath string) *Verdict {
	entryPath = strings.Trim(path.Clean(entryPath), "/")
	b := newBuilder(entryPath)

	v.checkNaming(b, entryPath)
	files := v.checkRequiredFiles(b, fsys, entryPath)

	record, parsed := v.checkSchema(b, fsys, entryPath, files)
	if parsed {
		v.checkReferences(b, fsys, entryPath, record)
	} else {
		b.skip(PhaseReferences)
	}

	if parsed || !files.metadataPresent {
		v.checkDocs(b, fsys, entryPath, files)
	} else {
		b.skip(PhaseDocs)
	}

	verdict := b.verdict()
	v.logger.Debug("Entry validated",
		"entry", entryPath,
		"status", verdict.Status(),
		"errors", len(verdict.Errors),
		"warnings", len(verdict.Warnings))
	return verdict
}

// checkNaming requires the final path segment to be kebab-case.
func (v *Validator) checkNaming(b *builder, entryPath string) {
	name := path.Base(entryPath)
	if entryPath == "" || entryPath == "." {
		name = ""
	}
	if !schema.KebabPattern.MatchString(name) {
		b.errorf(PhaseNaming, "name",
			"entry name %q must be lowercase letters and digits separated by single hyphens", name)
	}
}

// presence records what the required-file phase found.
type presence struct {
	metadataPresent bool
	docPresent      bool
}

// checkRequiredFiles checks all three required items independently.
func (v *Validator) checkRequiredFiles(b *builder, fsys billy.Filesystem, entryPath string) presence {
	var p presence
	p.metadataPresent = v.requireFile(b, fsys, entryPath, v.layout.MetadataFile)
	p.docPresent = v.requireFile(b, fsys, entryPath, v.layout.DocFile)

	assets := path.Join(entryPath, v.layout.AssetsDir)
	info, err := fsys.Stat(assets)
	switch {
	case err != nil:
		b.errorf(PhaseFiles, v.layout.AssetsDir, "required directory %s is missing", v.layout.AssetsDir)
	case !info.IsDir():
		b.errorf(PhaseFiles, v.layout.AssetsDir, "%s must be a directory", v.layout.AssetsDir)
	}
	return p
}

func (v *Validator) requireFile(b *builder, fsys billy.Filesystem, entryPath, name string) bool {
	info, err := fsys.Stat(path.Join(entryPath, name))
	switch {
	case err != nil:
		b.errorf(PhaseFiles, name, "required file %s is missing", name)
		return false
	case info.IsDir():
		b.errorf(PhaseFiles, name, "%s must be a file, found a directory", name)
		return false
	case info.Size() == 0:
		b.errorf(PhaseFiles, name, "required file %s is empty", name)
		return false
	}
	return true
}

// checkSchema parses the metadata and validates it. It returns the typed
// record and whether parsing succeeded.
func (v *Validator) checkSchema(b *builder, fsys billy.Filesystem, entryPath string, files presence) (*metadata.Record, bool) {
	if !files.metadataPresent {
		b.skip(PhaseSchema)
		return nil, false
	}

	data, err := util.ReadFile(fsys, path.Join(entryPath, v.layout.MetadataFile))
	if err != nil {
		b.errorf(PhaseSchema, "metadata", "cannot read %s: %v", v.layout.MetadataFile, err)
		return nil, false
	}

	root, err := metadata.Parse(data)
	if err != nil {
		b.errorf(PhaseSchema, "metadata", "cannot parse %s: %v", v.layout.MetadataFile, err)
		return nil, false
	}

	res, err := v.registry.Validate(path.Join(entryPath, v.layout.MetadataFile), data)
	if err != nil {
		b.errorf(PhaseSchema, "metadata", "cannot parse %s: %v", v.layout.MetadataFile, err)
		return nil, false
	}
	for _, viol := range res.Violations {
		b.issue(PhaseSchema, viol.Path, viol.Message, viol.Line, false)
	}
	for _, unk := range res.UnknownFields {
		b.issue(PhaseSchema, unk.Path, unk.Message, unk.Line, true)
	}

	// The record comes from the tree validated above. Shape errors are
	// already violations; the partial record keeps every path that decoded.
	record, err := metadata.FromNode(root)
	if err != nil {
		v.logger.Debug("Metadata decoded partially", "entry", entryPath, "error", err)
	}
	return record, true
}

// checkReferences requires every referenced path to be a file inside the entry.
func (v *Validator) checkReferences(b *builder, fsys billy.Filesystem, entryPath string, record *metadata.Record) {
	for _, ref := range record.References() {
		// Paths that failed the relpath format were already reported by the schema phase.
		if !schema.IsRelativePath(ref.Path) {
			continue
		}
		target := path.Join(entryPath, ref.Path)
		info, err := fsys.Stat(target)
		switch {
		case errors.Is(err, os.ErrNotExist):
			b.errorf(PhaseReferences, ref.Field, "referenced file %s does not exist", ref.Path)
		case err != nil:
			b.errorf(PhaseReferences, ref.Field, "cannot access referenced file %s: %v", ref.Path, err)
		case info.IsDir():
			b.errorf(PhaseReferences, ref.Field, "referenced path %s is a directory, not a file", ref.Path)
		}
	}
}

// checkDocs adds documentation warnings. It never adds errors.
func (v *Validator) checkDocs(b *builder, fsys billy.Filesystem, entryPath string, files presence) {
	if !files.docPresent {
		b.skip(PhaseDocs)
		return
	}
	data, err := util.ReadFile(fsys, path.Join(entryPath, v.layout.DocFile))
	if err != nil {
		b.skip(PhaseDocs)
		return
	}
	for _, w := range v.docs.Check(string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))) {
		b.warnf(PhaseDocs, v.layout.DocFile, "%s", w)
	}
}
