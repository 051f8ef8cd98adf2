package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/c360studio/entrygate/changes"
	"github.com/c360studio/entrygate/config"
	"github.com/c360studio/entrygate/entry"
	"github.com/c360studio/entrygate/metadata"
	"github.com/c360studio/entrygate/pipeline"
	"github.com/c360studio/entrygate/routing"
	"github.com/c360studio/entrygate/schema"
)

// App wires the pipeline components from configuration.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	root   string

	registry  *schema.Registry
	mapping   *routing.Mapping
	validator *entry.Validator
	router    *routing.Router
	fsys      billy.Filesystem
	metrics   *pipeline.Metrics
	publisher *pipeline.NATSPublisher
}

// NewApp loads the schema and reviewer mapping and checks the content root.
// Every error it returns is a *pipeline.FatalError.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(cfg.Repo.Path)
	if err != nil {
		return nil, pipeline.Fatal(pipeline.CodeInvalidConfiguration, "resolve repo path", err)
	}
	if err := pipeline.CheckRoot(root); err != nil {
		return nil, err
	}

	registry, err := loadRegistry(cfg.Schema.Path)
	if err != nil {
		return nil, pipeline.Fatal(pipeline.CodeSchemaUnavailable, "load schema", err)
	}
	mapping, err := loadMapping(cfg.Reviewers.Path)
	if err != nil {
		return nil, pipeline.Fatal(pipeline.CodeInvalidConfiguration, "load reviewer mapping", err)
	}
	if drift := mapping.Check(registry.Categories()); !drift.Empty() {
		logger.Warn("Reviewer mapping does not match schema categories",
			"unmapped", drift.Unmapped,
			"unknown", drift.Unknown)
	}

	docs := &entry.DocChecker{
		MinLength:    cfg.Docs.MinLength,
		Sections:     cfg.Docs.RecommendedSections,
		Placeholders: cfg.Docs.Placeholders,
	}
	layout := entry.Layout{
		MetadataFile: cfg.Content.MetadataFile,
		DocFile:      cfg.Content.DocFile,
		AssetsDir:    cfg.Content.AssetsDir,
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		root:      root,
		registry:  registry,
		mapping:   mapping,
		validator: entry.NewValidator(registry, layout, docs, logger),
		router:    routing.NewRouter(mapping, logger),
		fsys:      osfs.New(root),
		metrics:   pipeline.NewMetrics(),
	}, nil
}

func loadRegistry(path string) (*schema.Registry, error) {
	if path == "" {
		return schema.Default()
	}
	return schema.LoadFile(path)
}

func loadMapping(path string) (*routing.Mapping, error) {
	if path == "" {
		return routing.DefaultMapping()
	}
	return routing.LoadMapping(path)
}

// Detector opens the repository for change detection.
func (a *App) Detector() (*changes.Detector, error) {
	repo, err := changes.OpenRepository(a.root)
	if err != nil {
		return nil, pipeline.Fatal(pipeline.CodeRevisionUnresolved, "open repository", err)
	}
	return changes.NewDetector(repo, changes.Options{
		Remote:       a.cfg.Repo.Remote,
		Denylist:     a.cfg.Detect.Denylist,
		ContentRoots: a.cfg.Content.Roots,
	}, a.logger), nil
}

// ConnectPublisher connects to NATS when publishing is configured. A failed
// connection is logged and publishing is disabled.
func (a *App) ConnectPublisher() {
	if a.cfg.Publish.NATSURL == "" || a.publisher != nil {
		return
	}
	pub, err := pipeline.ConnectNATS(a.cfg.Publish.NATSURL, a.cfg.Publish.SubjectPrefix, a.logger)
	if err != nil {
		a.logger.Warn("Result publishing disabled", "url", a.cfg.Publish.NATSURL, "error", err)
		return
	}
	a.publisher = pub
}

// Orchestrator builds a pipeline over the app's components.
func (a *App) Orchestrator(detector pipeline.Detector) *pipeline.Orchestrator {
	opts := pipeline.Options{
		Workers: a.cfg.Pipeline.Workers,
		Metrics: a.metrics,
		Logger:  a.logger,
	}
	if a.publisher != nil {
		opts.Publisher = a.publisher
	}
	return pipeline.New(detector, a.validator, a.router, a.fsys, opts)
}

// Route resolves reviewer assignments for entries without validating them.
func (a *App) Route(entries []string) []routing.Assignment {
	out := make([]routing.Assignment, 0, len(entries))
	for _, e := range entries {
		record, err := metadata.Load(a.fsys, e, a.validator.Layout().MetadataFile)
		if err != nil {
			a.logger.Debug("Metadata unavailable for routing", "entry", e, "error", err)
		}
		out = append(out, a.router.Route(e, record))
	}
	return out
}

// EntryPath converts a command-line directory into a slash-separated path
// relative to the content root.
func (a *App) EntryPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(a.root, abs)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not an entry directory inside %s", dir, a.root)
	}
	return filepath.ToSlash(rel), nil
}

// WithTimeout applies the configured run timeout.
func (a *App) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Pipeline.Timeout > 0 {
		return context.WithTimeout(ctx, a.cfg.Pipeline.Timeout)
	}
	return context.WithCancel(ctx)
}

// Close releases the publisher connection.
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
}
