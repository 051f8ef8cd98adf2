package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const minimalRecord = `
title: Sample pattern
description: A sample entry.
author:
  name: Jane Doe
  email: jane@example.com
category: automation
tags: [sample, event-driven]
technologies:
  - name: Step Functions
    type: service
use_case: |
  Automates a nightly batch.
  Second line.
`

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Default()
	require.NoError(t, err)
	return reg
}

func validate(t *testing.T, reg *Registry, src string) *Result {
	t.Helper()
	res, err := reg.Validate("metadata.yaml", []byte(src))
	require.NoError(t, err)
	return res
}

func paths(vs []Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Path)
	}
	return out
}

func TestDefaultRegistry(t *testing.T) {
	reg := defaultRegistry(t)

	assert.Equal(t, 1, reg.Version())
	assert.True(t, reg.IsCategory("automation"))
	assert.True(t, reg.IsCategory("ai-ml"))
	assert.False(t, reg.IsCategory("Automation"))
	assert.Len(t, reg.Categories(), 12)
	assert.Equal(t,
		[]string{"author", "category", "description", "tags", "technologies", "title", "use_case"},
		reg.RequiredFields())

	c, ok := reg.Category("devops")
	require.True(t, ok)
	assert.Equal(t, "DevOps and CI/CD", c.Description)
}

func TestParseRejectsBrokenDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"syntax error", "#Metadata: {", "compile schema document"},
		{"no metadata definition", `#Categories: {a: "A"}`, "does not define #Metadata"},
		{"no categories", `#Metadata: {title!: string}`, "does not define #Categories"},
		{"empty categories", "#Metadata: {title!: string}\n#Categories: {}", "no categories"},
		{"conflicting category", "#Metadata: {}\n#Categories: {a: \"A\"}\n#Categories: {a: \"B\"}", "compile schema document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseCustomDocument(t *testing.T) {
	reg, err := Parse([]byte(`
#Version: 3
#Categories: {tools: "Tools"}
#Metadata: {
	title!:    string
	category!: "tools"
	note?:     string
}
`))
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Version())
	assert.Equal(t, []string{"tools"}, reg.Categories())
	assert.Equal(t, []string{"category", "title"}, reg.RequiredFields())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.cue"))
	require.ErrorIs(t, err, ErrSchemaNotFound)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.cue")
	require.NoError(t, os.WriteFile(path, defaultDocument, 0o644))

	reg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, defaultRegistry(t).Categories(), reg.Categories())
}

func TestValidateMinimalRecord(t *testing.T) {
	res := validate(t, defaultRegistry(t), minimalRecord)

	assert.True(t, res.Valid(), "violations: %v", res.Violations)
	assert.Empty(t, res.UnknownFields)
}

func TestValidateReportsEveryMissingRequiredField(t *testing.T) {
	reg := defaultRegistry(t)
	required := reg.RequiredFields()

	for n := 1; n <= len(required); n++ {
		removed := required[:n]
		t.Run(strings.Join(removed, ","), func(t *testing.T) {
			var doc map[string]any
			require.NoError(t, yaml.Unmarshal([]byte(minimalRecord), &doc))
			for _, field := range removed {
				delete(doc, field)
			}
			out, err := yaml.Marshal(doc)
			require.NoError(t, err)

			res := validate(t, reg, string(out))
			assert.GreaterOrEqual(t, len(res.Violations), n)
			for _, field := range removed {
				assert.Contains(t, paths(res.Violations), field)
			}
		})
	}
}

func TestValidateViolations(t *testing.T) {
	tests := []struct {
		name     string
		patch    string
		wantPath string
	}{
		{"empty title", `title: ""`, "title"},
		{"blank title", `title: "   "`, "title"},
		{"numeric title", `title: 42`, "title"},
		{"null title", `title: null`, "title"},
		{"bad email", "author:\n  name: Jane\n  email: not-an-email", "author.email"},
		{"display-name email", "author:\n  name: Jane\n  email: Jane <jane@example.com>", "author.email"},
		{"undotted email domain", "author:\n  name: Jane\n  email: jane@localhost", "author.email"},
		{"author missing email", "author:\n  name: Jane", "author.email"},
		{"unknown category", `category: robotics`, "category"},
		{"category prefix", `category: auto`, "category"},
		{"tags not array", `tags: sample`, "tags"},
		{"empty tags", `tags: []`, "tags"},
		{"non-kebab tag", `tags: [ok, Not_Kebab]`, "tags[1]"},
		{"duplicate tag", `tags: [a, a]`, "tags"},
		{"empty technologies", `technologies: []`, "technologies"},
		{"technology missing type", "technologies:\n  - name: Lambda", "technologies[0].type"},
		{"technology not object", "technologies: [Lambda]", "technologies[0]"},
		{"bad status", `status: shipped`, "status"},
		{"bad version", `version: "1.0"`, "version"},
		{"bad date", `created_date: "15/01/2024"`, "created_date"},
		{"absolute diagram", `architecture_diagram: /etc/passwd`, "architecture_diagram"},
		{"escaping diagram", `architecture_diagram: ../other/diagram.png`, "architecture_diagram"},
		{"bad repo url", "implementation:\n  repo_url: ftp://example.com/x", "implementation.repo_url"},
		{"snippet without file", "implementation:\n  code_snippets:\n    - description: x", "implementation.code_snippets[0].file"},
		{"escaping snippet", "implementation:\n  code_snippets:\n    - file: ../../etc/passwd", "implementation.code_snippets[0].file"},
		{"null list item", "prerequisites: [a, null]", "prerequisites[1]"},
		{"duplicate related entry", "related_entries: [a, a]", "related_entries"},
	}
	reg := defaultRegistry(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(t, reg, withPatch(t, tt.patch))
			require.False(t, res.Valid())

			var found bool
			for _, v := range res.Violations {
				if v.Path == tt.wantPath {
					found = true
					assert.NotEmpty(t, v.Message)
					assert.NotZero(t, v.Line)
				}
			}
			assert.True(t, found, "no violation for %s in %v", tt.wantPath, res.Violations)
		})
	}
}

func TestValidateOneViolationPerPath(t *testing.T) {
	res := validate(t, defaultRegistry(t), withPatch(t, "status: shipped\ncategory: robotics"))

	assert.ElementsMatch(t, []string{"status", "category"}, paths(res.Violations))
}

func TestValidateFormatMessages(t *testing.T) {
	reg := defaultRegistry(t)

	res := validate(t, reg, withPatch(t, `version: "1.0"`))
	require.Len(t, res.Violations, 1)
	assert.Contains(t, res.Violations[0].Message, "semantic version")

	res = validate(t, reg, withPatch(t, "architecture_diagram: /etc/passwd"))
	require.Len(t, res.Violations, 1)
	assert.Contains(t, res.Violations[0].Message, "relative path")
}

func TestValidateLines(t *testing.T) {
	src := minimalRecord + "status: shipped\n"
	res := validate(t, defaultRegistry(t), src)

	require.Len(t, res.Violations, 1)
	assert.Equal(t, strings.Count(src, "\n"), res.Violations[0].Line)
}

func TestValidateAcceptsOptionalFields(t *testing.T) {
	patch := `
architecture_diagram: assets/architecture.png
prerequisites: [An account]
implementation:
  repo_url: https://github.com/example/sample
  language: python
  code_snippets:
    - file: implementation/handler.py
      description: Handler
security: [Least privilege]
limitations: [Single region]
related_entries: [other-pattern]
created_date: 2024-01-15
last_updated: "2024-02-01"
version: 1.2.0
status: published
`
	res := validate(t, defaultRegistry(t), minimalRecord+patch)
	assert.True(t, res.Valid(), "violations: %v", res.Violations)
	assert.Empty(t, res.UnknownFields)
}

func TestValidateUnknownFields(t *testing.T) {
	res := validate(t, defaultRegistry(t), minimalRecord+"colour: blue\n")

	assert.True(t, res.Valid(), "violations: %v", res.Violations)
	require.Len(t, res.UnknownFields, 1)
	assert.Equal(t, "colour", res.UnknownFields[0].Path)
	assert.NotZero(t, res.UnknownFields[0].Line)
}

func TestValidateConcurrentUse(t *testing.T) {
	reg := defaultRegistry(t)
	done := make(chan *Result)
	for i := 0; i < 8; i++ {
		go func() {
			res, err := reg.Validate("metadata.yaml", []byte(minimalRecord))
			if err != nil {
				res = nil
			}
			done <- res
		}()
	}
	for i := 0; i < 8; i++ {
		res := <-done
		require.NotNil(t, res)
		assert.True(t, res.Valid())
	}
}

func TestIsRelativePath(t *testing.T) {
	tests := map[string]bool{
		"assets/diagram.png":   true,
		"./assets/diagram.png": true,
		"a/../b.txt":           true,
		"":                     false,
		".":                    false,
		"/abs/path":            false,
		"../escape.png":        false,
		"a/../../escape.png":   false,
		`assets\diagram.png`:   false,
	}
	for p, want := range tests {
		assert.Equal(t, want, IsRelativePath(p), p)
	}
}

func TestFieldPath(t *testing.T) {
	assert.Equal(t, "author.email", fieldPath([]string{"author", "email"}))
	assert.Equal(t, "implementation.code_snippets[0].file",
		fieldPath([]string{"#Metadata", "implementation", "code_snippets", "0", "file"}))
	assert.Equal(t, "my-field", fieldPath([]string{`"my-field"`}))
	assert.Equal(t, "$", fieldPath(nil))
}

// withPatch replaces the top-level keys in patch on top of minimalRecord.
func withPatch(t *testing.T, patch string) string {
	t.Helper()
	var base, over map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(minimalRecord), &base))
	require.NoError(t, yaml.Unmarshal([]byte(patch), &over))
	for k, v := range over {
		base[k] = v
	}
	out, err := yaml.Marshal(base)
	require.NoError(t, err)
	return string(out)
}
