package skipgate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/op-skipgate/runner"
	"github.com/ethereum-optimism/infra/op-skipgate/types"
)

// RuntimeError is returned when a run could not be classified at all: bad
// configuration, unreadable input, or a go test that did not run. Exit code 2.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError wraps err as a RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError reports whether err wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return errors.As(err, &runtimeErr)
}

// TestFailureError reports a classified run with failed outcomes. Exit code 1.
type TestFailureError struct {
	RunID  string
	Failed []string // names of the failed outcomes, sorted
	Total  int
}

// NewTestFailureError builds the error for result, which must have failures.
func NewTestFailureError(result *runner.Result) *TestFailureError {
	return &TestFailureError{
		RunID:  result.RunID,
		Failed: result.Names(types.OutcomeFailed),
		Total:  result.Stats.Total,
	}
}

func (e *TestFailureError) Error() string {
	const shown = 3
	names := e.Failed
	more := ""
	if len(names) > shown {
		more = fmt.Sprintf(" and %d more", len(names)-shown)
		names = names[:shown]
	}
	return fmt.Sprintf("test failure: %d of %d tests failed in run %s: %s%s",
		len(e.Failed), e.Total, e.RunID, strings.Join(names, ", "), more)
}

// IsTestFailureError reports whether err wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return errors.As(err, &testErr)
}
