// Package changes computes which entry directories a revision range touches.
package changes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultDenylist excludes hidden directories and repository tooling.
var DefaultDenylist = []string{".", "_", "scripts", "templates", "schema", "tools", "docs"}

// Options configures a Detector.
type Options struct {
	// Remote is fetched once when a revision does not resolve locally.
	Remote string
	// Denylist items without glob metacharacters exclude first segments that
	// start with them; items with metacharacters are doublestar patterns.
	Denylist []string
	// ContentRoots are first segments whose children are entries.
	ContentRoots []string
}

// Detector diffs two revisions of a repository.
type Detector struct {
	repo    *git.Repository
	remote  string
	deny    []string
	roots   map[string]bool
	logger  *slog.Logger
	fetched bool
}

// NewDetector creates a detector over repo.
func NewDetector(repo *git.Repository, opts Options, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Remote == "" {
		opts.Remote = DefaultRemote
	}
	roots := make(map[string]bool, len(opts.ContentRoots))
	for _, r := range opts.ContentRoots {
		r = strings.Trim(r, "/")
		if r != "" {
			roots[r] = true
		}
	}
	return &Detector{
		repo:   repo,
		remote: opts.Remote,
		deny:   opts.Denylist,
		roots:  roots,
		logger: logger,
	}
}

// DetectChangedEntries returns the sorted, deduplicated entry paths touched
// between base and head. Zero changes yield an empty slice and no error.
// A Detector is not safe for concurrent calls.
func (d *Detector) DetectChangedEntries(ctx context.Context, base, head string) ([]string, error) {
	baseCommit, err := d.resolve(ctx, base)
	if err != nil {
		return nil, err
	}
	headCommit, err := d.resolve(ctx, head)
	if err != nil {
		return nil, err
	}
	if baseCommit.Hash == headCommit.Hash {
		return []string{}, nil
	}

	baseTree, err := baseCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get tree for %s: %w", base, err)
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get tree for %s: %w", head, err)
	}

	diff, err := baseTree.DiffContext(ctx, headTree)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", base, head, err)
	}

	candidates := make(map[string]bool)
	for _, change := range diff {
		for _, name := range []string{change.From.Name, change.To.Name} {
			if entry, ok := d.entryOf(name); ok {
				candidates[entry] = true
			}
		}
	}

	entries := make([]string, 0, len(candidates))
	for entry := range candidates {
		if _, err := headTree.Tree(entry); err != nil {
			// Deleted entries and files are not entries at head.
			continue
		}
		entries = append(entries, entry)
	}
	sort.Strings(entries)

	d.logger.Debug("Detected changed entries",
		"base", base,
		"head", head,
		"changed_files", len(diff),
		"entries", len(entries))
	return entries, nil
}

// entryOf maps a changed file path to the entry directory containing it.
func (d *Detector) entryOf(name string) (string, bool) {
	name = strings.Trim(name, "/")
	first, rest, found := strings.Cut(name, "/")
	if first == "" || !found {
		return "", false
	}
	if d.denied(first) {
		return "", false
	}
	if !d.roots[first] {
		return first, true
	}
	second, _, found := strings.Cut(rest, "/")
	if second == "" || !found {
		return "", false
	}
	return first + "/" + second, true
}

func (d *Detector) denied(segment string) bool {
	for _, item := range d.deny {
		if item == "" {
			continue
		}
		if strings.ContainsAny(item, "*?[{") {
			if ok, err := doublestar.Match(item, segment); err == nil && ok {
				return true
			}
			continue
		}
		if strings.HasPrefix(segment, item) {
			return true
		}
	}
	return false
}

// resolve returns the commit for rev, fetching from the remote at most once
// per detector when rev is unknown locally.
func (d *Detector) resolve(ctx context.Context, rev string) (*object.Commit, error) {
	if rev == "" {
		return nil, &RevisionResolutionError{Revision: rev, Err: errors.New("empty revision")}
	}

	hash, err := d.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil && !d.fetched {
		d.fetched = true
		d.fetch(ctx)
		hash, err = d.repo.ResolveRevision(plumbing.Revision(rev))
	}
	if err != nil {
		remoteRef := plumbing.NewRemoteReferenceName(d.remote, rev)
		if h, rerr := d.repo.ResolveRevision(plumbing.Revision(remoteRef.String())); rerr == nil {
			hash, err = h, nil
		}
	}
	if err != nil {
		return nil, &RevisionResolutionError{Revision: rev, Err: err}
	}

	commit, err := d.repo.CommitObject(*hash)
	if err != nil {
		return nil, &RevisionResolutionError{Revision: rev, Err: err}
	}
	return commit, nil
}

func (d *Detector) fetch(ctx context.Context) {
	d.logger.Info("Fetching from remote", "remote", d.remote)
	err := d.repo.FetchContext(ctx, &git.FetchOptions{RemoteName: d.remote})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
	case errors.Is(err, git.ErrRemoteNotFound):
		d.logger.Debug("Remote not configured", "remote", d.remote)
	default:
		d.logger.Warn("Fetch failed", "remote", d.remote, "error", err)
	}
}
