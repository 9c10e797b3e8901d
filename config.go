package skipgate

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-skipgate/flags"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

// StdinInput selects standard input as the event source
const StdinInput = "-"

// Config holds the application configuration
type Config struct {
	Input         string             // recorded go test -json stream, or StdinInput
	Package       string             // package to run with go test when Input is empty
	TestDir       string             // directory go test runs from
	GoBinary      string             // path to the Go binary
	Timeout       time.Duration      // timeout passed to go test
	Discover      bool               // fail declared tests that never reported
	Format        flags.OutputFormat // how results are printed
	HealthzAddr   string
	MetricsConfig opmetrics.CLIConfig
	Log           log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	format := flags.OutputFormat(ctx.String(flags.Format.Name))
	if !format.IsValid() {
		return nil, fmt.Errorf("invalid output format: %s", format)
	}

	input := ctx.String(flags.Input.Name)
	if input != "" && input != StdinInput {
		abs, err := filepath.Abs(input)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for input '%s': %w", input, err)
		}
		input = abs
	}

	testDir := ctx.String(flags.TestDir.Name)
	absTestDir, err := filepath.Abs(testDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for test directory '%s': %w", testDir, err)
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	return &Config{
		Input:         input,
		Package:       ctx.String(flags.Package.Name),
		TestDir:       absTestDir,
		GoBinary:      ctx.String(flags.GoBinary.Name),
		Timeout:       ctx.Duration(flags.Timeout.Name),
		Discover:      ctx.Bool(flags.Discover.Name),
		Format:        format,
		HealthzAddr:   ctx.String(flags.HealthzAddr.Name),
		MetricsConfig: metricsCfg,
		Log:           log,
	}, nil
}
