package pipeline

import (
	"errors"
	"fmt"

	"github.com/c360studio/entrygate/changes"
	"github.com/c360studio/entrygate/routing"
	"github.com/c360studio/entrygate/schema"
)

// ErrorCode classifies fatal infrastructure failures.
type ErrorCode string

const (
	CodeRevisionUnresolved   ErrorCode = "REVISION_UNRESOLVED"
	CodeSchemaUnavailable    ErrorCode = "SCHEMA_UNAVAILABLE"
	CodeFilesystemUnreadable ErrorCode = "FILESYSTEM_UNREADABLE"
	CodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
)

// Process exit codes.
const (
	ExitPass  = 0
	ExitFail  = 1
	ExitFatal = 2
)

// FatalError aborts a whole run. No partial result accompanies it.
type FatalError struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a fatal error with code.
func Fatal(code ErrorCode, op string, err error) *FatalError {
	return &FatalError{Code: code, Op: op, Err: err}
}

// Classify maps known infrastructure errors to fatal errors. Errors that are
// already fatal are returned unchanged; anything else becomes nil.
func Classify(err error) *FatalError {
	var fatal *FatalError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &fatal):
		return fatal
	case errors.Is(err, changes.ErrResolveFailed):
		return Fatal(CodeRevisionUnresolved, "resolve revisions", err)
	case errors.Is(err, schema.ErrSchemaNotFound):
		return Fatal(CodeSchemaUnavailable, "load schema", err)
	case errors.Is(err, routing.ErrMappingNotFound):
		return Fatal(CodeInvalidConfiguration, "load reviewer mapping", err)
	}
	return nil
}

// ExitCode returns the process exit code for a run outcome: 0 when the result
// passed, 1 when it failed and 2 on any error.
func ExitCode(result *Result, err error) int {
	if err != nil || result == nil {
		return ExitFatal
	}
	if result.Passed() {
		return ExitPass
	}
	return ExitFail
}
