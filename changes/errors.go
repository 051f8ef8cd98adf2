package changes

import (
	"errors"
	"fmt"
)

// ErrResolveFailed is returned when a revision cannot be resolved to a commit,
// locally or after fetching from the remote.
var ErrResolveFailed = errors.New("cannot resolve revision")

// RevisionResolutionError reports the revision that could not be resolved.
type RevisionResolutionError struct {
	Revision string
	Err      error
}

func (e *RevisionResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v %q", ErrResolveFailed, e.Revision)
	}
	return fmt.Sprintf("%v %q: %v", ErrResolveFailed, e.Revision, e.Err)
}

// Unwrap exposes both ErrResolveFailed and the underlying go-git error.
func (e *RevisionResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrResolveFailed}
	}
	return []error{ErrResolveFailed, e.Err}
}
