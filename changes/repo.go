package changes

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// DefaultRemote is fetched from when a revision is missing locally.
const DefaultRemote = "origin"

// OpenRepository opens the git repository containing path, searching parent
// directories for the .git directory.
func OpenRepository(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", path, err)
	}
	return repo, nil
}

// WorktreeRoot returns the root directory of the repository's worktree.
func WorktreeRoot(repo *git.Repository) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("get worktree: %w", err)
	}
	return wt.Filesystem.Root(), nil
}
