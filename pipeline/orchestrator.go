// Package pipeline runs change detection, entry validation and reviewer
// routing for one submission and aggregates the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/c360studio/entrygate/entry"
	"github.com/c360studio/entrygate/metadata"
	"github.com/c360studio/entrygate/routing"
)

// Detector lists the entries changed between two revisions.
type Detector interface {
	DetectChangedEntries(ctx context.Context, base, head string) ([]string, error)
}

// Options configures an Orchestrator. Zero values are valid.
type Options struct {
	// Workers bounds how many entries are processed at once
	// (default runtime.NumCPU).
	Workers int
	// Metrics receives per-entry and per-run observations when set.
	Metrics *Metrics
	// Publisher receives every finished result when set. Failures are logged.
	Publisher Publisher
	Logger    *slog.Logger
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	detector  Detector
	validator *entry.Validator
	router    *routing.Router
	fsys      billy.Filesystem
	workers   int
	metrics   *Metrics
	publisher Publisher
	logger    *slog.Logger
}

// New creates an orchestrator. The detector may be nil when only
// ValidateEntries is used.
func New(detector Detector, validator *entry.Validator, router *routing.Router, fsys billy.Filesystem, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Orchestrator{
		detector:  detector,
		validator: validator,
		router:    router,
		fsys:      fsys,
		workers:   opts.Workers,
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		logger:    opts.Logger,
	}
}

// Run detects the entries changed between base and head and processes each
// of them. It returns a *FatalError when the run cannot complete.
func (o *Orchestrator) Run(ctx context.Context, base, head string) (*Result, error) {
	if o.detector == nil {
		return nil, Fatal(CodeInvalidConfiguration, "run", errors.New("no change detector configured"))
	}
	started := time.Now()

	entries, err := o.detector.DetectChangedEntries(ctx, base, head)
	if err != nil {
		if fatal := Classify(err); fatal != nil {
			return nil, fatal
		}
		return nil, fmt.Errorf("detect changed entries: %w", err)
	}
	o.logger.Info("Detected changed entries", "base", base, "head", head, "count", len(entries))

	result, err := o.process(ctx, entries, started)
	if err != nil {
		return nil, err
	}
	result.Base = base
	result.Head = head

	o.publish(ctx, result)
	return result, nil
}

// ValidateEntries processes an explicit list of entry paths.
func (o *Orchestrator) ValidateEntries(ctx context.Context, entries []string) (*Result, error) {
	result, err := o.process(ctx, entries, time.Now())
	if err != nil {
		return nil, err
	}
	o.publish(ctx, result)
	return result, nil
}

type outcome struct {
	verdict    *entry.Verdict
	assignment routing.Assignment
}

func (o *Orchestrator) process(ctx context.Context, entries []string, started time.Time) (*Result, error) {
	entries = uniqueSorted(entries)
	outcomes := make([]outcome, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = o.processEntry(e)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("process entries: %w", err)
	}

	// Report generation waits for every entry.
	result := &Result{
		RunID:       uuid.NewString(),
		Status:      entry.StatusPass,
		Entries:     entries,
		Verdicts:    make(map[string]*entry.Verdict, len(entries)),
		Assignments: make(map[string]routing.Assignment, len(entries)),
		StartedAt:   started,
	}
	assignments := make([]routing.Assignment, 0, len(entries))
	for i, e := range entries {
		oc := outcomes[i]
		result.Verdicts[e] = oc.verdict
		result.Assignments[e] = oc.assignment
		assignments = append(assignments, oc.assignment)
		if !oc.verdict.Passed() {
			result.Status = entry.StatusFail
		}
	}
	result.Report = routing.Report(assignments)
	result.Reviewers = routing.Reviewers(assignments)
	result.Duration = time.Since(started)

	if o.metrics != nil {
		o.metrics.observeRun(result.Duration)
	}
	o.logger.Info("Pipeline finished",
		"run_id", result.RunID,
		"status", result.Status,
		"entries", len(entries),
		"failed", len(result.Failed()),
		"duration", result.Duration)
	return result, nil
}

// processEntry validates and routes one entry. Phases inside the entry stay
// ordered; entries share nothing mutable.
func (o *Orchestrator) processEntry(entryPath string) outcome {
	verdict := o.validator.Validate(o.fsys, entryPath)

	record, err := metadata.Load(o.fsys, entryPath, o.validator.Layout().MetadataFile)
	if err != nil {
		o.logger.Debug("Metadata unavailable for routing", "entry", entryPath, "error", err)
	}
	assignment := o.router.Route(entryPath, record)

	if o.metrics != nil {
		o.metrics.observeVerdict(verdict)
	}
	return outcome{verdict: verdict, assignment: assignment}
}

func (o *Orchestrator) publish(ctx context.Context, result *Result) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, result); err != nil {
		o.logger.Warn("Failed to publish result", "run_id", result.RunID, "error", err)
	}
}

// CheckRoot verifies that the content root is a readable directory.
func CheckRoot(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return Fatal(CodeFilesystemUnreadable, "stat content root", err)
	}
	if !info.IsDir() {
		return Fatal(CodeFilesystemUnreadable, "stat content root", fmt.Errorf("%s is not a directory", dir))
	}
	if _, err := os.ReadDir(dir); err != nil {
		return Fatal(CodeFilesystemUnreadable, "read content root", err)
	}
	return nil
}

func uniqueSorted(entries []string) []string {
	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.Trim(path.Clean(e), "/")
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
