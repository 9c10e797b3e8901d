package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-skipgate/testlist"
	"github.com/ethereum-optimism/infra/op-skipgate/types"
)

// CmdBuilder builds the command for one go invocation and returns a cleanup
// function called once the command has finished.
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// DefaultCmdBuilder runs the command as a child process bound to ctx.
func DefaultCmdBuilder(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	return exec.CommandContext(ctx, name, arg...), func() {}
}

// ExecutorConfig holds configuration for creating a new executor
type ExecutorConfig struct {
	TestDir  string
	GoBinary string
	Timeout  time.Duration
	// Discover lists the package's test functions from source and records the
	// ones the run never reported as failed.
	Discover   bool
	CmdBuilder CmdBuilder
	Log        log.Logger
}

// Executor runs go test -json for a package and classifies its events.
type Executor struct {
	testDir    string
	goBinary   string
	timeout    time.Duration
	discover   bool
	cmdBuilder CmdBuilder
	log        log.Logger
	tracer     trace.Tracer
}

// NewExecutor creates a new executor
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.TestDir == "" {
		return nil, fmt.Errorf("testDir cannot be empty")
	}
	if cfg.GoBinary == "" {
		cfg.GoBinary = DefaultGoBinary
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = DefaultCmdBuilder
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	return &Executor{
		testDir:    cfg.TestDir,
		goBinary:   cfg.GoBinary,
		timeout:    cfg.Timeout,
		discover:   cfg.Discover,
		cmdBuilder: cfg.CmdBuilder,
		log:        cfg.Log,
		tracer:     otel.Tracer("skipgate executor"),
	}, nil
}

// Execute runs the tests of pkg and records their outcomes in collector. Test
// failures are outcomes, not errors: an error is only returned when go test
// could not be run or its output could not be read.
func (e *Executor) Execute(ctx context.Context, pkg string, collector *Collector) error {
	if pkg == "" {
		return fmt.Errorf("package cannot be empty")
	}
	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("package %s", pkg))
	defer span.End()

	var declared []testlist.Package
	if e.discover {
		var err error
		declared, err = testlist.FindPackageTests(pkg, e.testDir)
		if err != nil {
			return fmt.Errorf("failed to list tests of %s: %w", pkg, err)
		}
	}

	args := e.buildTestArgs(pkg)
	e.log.Info("Running tests", "package", pkg, "dir", e.testDir)

	cmd, cleanup := e.cmdBuilder(ctx, e.goBinary, args...)
	defer cleanup()

	var stdout, stderr bytes.Buffer
	cmd.Dir = e.testDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		exitErr := &exec.ExitError{}
		if !errors.As(runErr, &exitErr) || exitErr.ExitCode() != 1 {
			span.RecordError(runErr)
			return fmt.Errorf("go test %s failed: %w: %s", pkg, runErr, stderr.String())
		}
	}

	if err := ClassifyEvents(&stdout, collector); err != nil {
		return err
	}

	e.recordMissing(declared, collector)
	return nil
}

// recordMissing fails every declared test function that produced no terminal
// event.
func (e *Executor) recordMissing(pkgs []testlist.Package, collector *Collector) {
	for _, p := range pkgs {
		for _, name := range p.Tests {
			key := OutcomeKey(p.ImportPath, name)
			if collector.Has(key) {
				continue
			}
			e.log.Warn("Test produced no terminal event", "package", p.ImportPath, "test", name)
			collector.Record(types.Outcome{
				Name:    key,
				Fixture: p.ImportPath,
				Kind:    types.OutcomeFailed,
				Error:   errors.New("no terminal event observed"),
			})
		}
	}
}

func (e *Executor) buildTestArgs(pkg string) []string {
	args := []string{TestCommand, JSONFlag, CountFlag, DisableCacheCount}
	if e.timeout > 0 {
		args = append(args, TimeoutFlag, e.timeout.String())
	}
	return append(args, pkg)
}
