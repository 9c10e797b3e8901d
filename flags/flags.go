package flags

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_SKIPGATE"

// OutputFormat selects how classified results are printed
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatYAML  OutputFormat = "yaml"
)

func (f OutputFormat) String() string {
	return string(f)
}

// ValidOutputFormats returns every supported output format
func ValidOutputFormats() []OutputFormat {
	return []OutputFormat{FormatTable, FormatYAML}
}

func (f OutputFormat) IsValid() bool {
	return slices.Contains(ValidOutputFormats(), f)
}

func validateFormat(value string) error {
	if !OutputFormat(value).IsValid() {
		names := make([]string, 0, len(ValidOutputFormats()))
		for _, f := range ValidOutputFormats() {
			names = append(names, f.String())
		}
		return fmt.Errorf("format must be one of: %s", strings.Join(names, ", "))
	}
	return nil
}

var (
	Input = &cli.StringFlag{
		Name:    "input",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INPUT"),
		Usage:   "Path to a recorded go test -json stream to classify, or '-' for stdin",
	}
	Package = &cli.StringFlag{
		Name:    "package",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PACKAGE"),
		Usage:   "Package to run with go test -json and classify (eg. './gated/...')",
	}
	TestDir = &cli.StringFlag{
		Name:    "testdir",
		Value:   ".",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TESTDIR"),
		Usage:   "Directory go test is run from",
	}
	GoBinary = &cli.StringFlag{
		Name:    "go-binary",
		Value:   "go",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "GO_BINARY"),
		Usage:   "Path to the Go binary to use for running tests",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   10 * time.Minute,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Timeout passed to go test (0 disables it)",
	}
	Discover = &cli.BoolFlag{
		Name:    "discover",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DISCOVER"),
		Usage:   "List the package's test functions from source and fail those that never reported",
	}
	Format = &cli.StringFlag{
		Name:    "format",
		Value:   string(FormatTable),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FORMAT"),
		Usage:   "Output format: table or yaml",
		Action: func(_ *cli.Context, value string) error {
			return validateFormat(value)
		},
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz-addr",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Address of the healthz server, started together with the metrics server",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Input,
	Package,
	TestDir,
	GoBinary,
	Timeout,
	Discover,
	Format,
	HealthzAddr,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

// CheckRequired verifies that exactly one event source is configured
func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	hasInput := ctx.String(Input.Name) != ""
	hasPackage := ctx.String(Package.Name) != ""
	if hasInput == hasPackage {
		return fmt.Errorf("exactly one of --%s or --%s is required", Input.Name, Package.Name)
	}
	return nil
}
