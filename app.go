package skipgate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-skipgate/exitcodes"
	"github.com/ethereum-optimism/infra/op-skipgate/runner"
	"github.com/ethereum-optimism/infra/op-skipgate/service"
	"github.com/ethereum-optimism/infra/op-skipgate/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

var _ cliapp.Lifecycle = &App{}

// App classifies one go test run, prints the outcome buckets and exits.
type App struct {
	config    *Config
	version   string
	executor  *runner.Executor
	formatter ResultFormatter
	reporter  MetricsReporter
	service   *service.Service
	result    *runner.Result

	stdin io.Reader

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates the application for config. Results are written to out.
func New(config *Config, version string, out io.Writer, shutdownCallback func(error)) (*App, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	config.Log.Debug("Creating op-skipgate with config",
		"input", config.Input,
		"package", config.Package,
		"testDir", config.TestDir,
		"discover", config.Discover,
		"format", config.Format)

	formatter, err := NewResultFormatter(config.Format, out, config.Log)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:           config,
		version:          version,
		formatter:        formatter,
		reporter:         NewDefaultMetricsReporter(),
		stdin:            os.Stdin,
		shutdownCallback: shutdownCallback,
	}

	if config.Input == "" {
		a.executor, err = runner.NewExecutor(runner.ExecutorConfig{
			TestDir:  config.TestDir,
			GoBinary: config.GoBinary,
			Timeout:  config.Timeout,
			Discover: config.Discover,
			Log:      config.Log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create executor: %w", err)
		}
	}

	if config.MetricsConfig.Enabled {
		metricsAddr := net.JoinHostPort(config.MetricsConfig.ListenAddr, strconv.Itoa(config.MetricsConfig.ListenPort))
		a.service = service.New(config.HealthzAddr, metricsAddr)
	}
	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.running.Store(true)
	a.config.Log.Info("Starting op-skipgate", "version", a.version)
	if a.service != nil {
		a.service.Start(ctx)
	}

	result, err := a.classify(ctx)
	if err != nil {
		a.config.Log.Error("Runtime error classifying tests", "error", err)
		return NewRuntimeError(err)
	}
	a.result = result

	a.reporter.ReportResults(result)
	if err := a.formatter.FormatResults(result); err != nil {
		return NewRuntimeError(fmt.Errorf("failed to print results: %w", err))
	}
	a.config.Log.Info("Classification completed", "run_id", result.RunID, "status", result.Status,
		"completed", result.Stats.Completed, "ignored", result.Stats.SkippedPermanently,
		"skipped", result.Stats.SkippedByGate, "failed", result.Stats.Failed)

	if result.Status == types.TestStatusFail {
		a.config.Log.Warn("Run completed with failures, returning exit code 1")
		return NewTestFailureError(result)
	}

	go func() {
		a.shutdownCallback(nil)
	}()
	return nil
}

// classify builds the result from the recorded stream or from a fresh go test run.
func (a *App) classify(ctx context.Context) (*runner.Result, error) {
	runID := uuid.New().String()

	if a.executor != nil {
		collector := runner.NewCollector()
		if err := a.executor.Execute(ctx, a.config.Package, collector); err != nil {
			return nil, err
		}
		return collector.Result(runID), nil
	}

	in := a.stdin
	if a.config.Input != StdinInput {
		f, err := os.Open(a.config.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}
	return runner.ParseTestEvents(in, runID)
}

func (a *App) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping op-skipgate")
	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	a.running.Store(false)
	if a.service != nil {
		a.service.Shutdown()
	}
	a.config.Log.Info("op-skipgate stopped successfully")
	return nil
}

func (a *App) Stopped() bool {
	return !a.running.Load()
}

// Result returns the result of the last classification, if any.
func (a *App) Result() *runner.Result {
	return a.result
}
