package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	skipgate "github.com/ethereum-optimism/infra/op-skipgate"
	"github.com/ethereum-optimism/infra/op-skipgate/exitcodes"
	"github.com/ethereum-optimism/infra/op-skipgate/runner"
	"github.com/ethereum-optimism/infra/op-skipgate/types"
)

func failedResult() *runner.Result {
	c := runner.NewCollector()
	c.Record(types.Outcome{Name: "p::TestFailure", Kind: types.OutcomeFailed, Error: errors.New("boom")})
	return c.Result("run1")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: exitcodes.Success},
		{name: "test failure", err: skipgate.NewTestFailureError(failedResult()), want: exitcodes.TestFailure},
		{name: "runtime error", err: skipgate.NewRuntimeError(errors.New("no input")), want: exitcodes.RuntimeErr},
		{name: "wrapped runtime error", err: fmt.Errorf("start: %w", skipgate.NewRuntimeError(errors.New("x"))), want: exitcodes.RuntimeErr},
		{name: "unspecified error", err: errors.New("boom"), want: exitcodes.TestFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
