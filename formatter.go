package skipgate

import (
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-skipgate/flags"
	"github.com/ethereum-optimism/infra/op-skipgate/runner"
	"github.com/ethereum-optimism/infra/op-skipgate/types"
)

// ResultFormatter is responsible for formatting and displaying test results.
type ResultFormatter interface {
	FormatResults(result *runner.Result) error
}

// NewResultFormatter returns the formatter for format writing to out.
func NewResultFormatter(format flags.OutputFormat, out io.Writer, logger log.Logger) (ResultFormatter, error) {
	switch format {
	case flags.FormatTable, "":
		return NewConsoleResultFormatter(out, logger), nil
	case flags.FormatYAML:
		return NewYAMLResultFormatter(out), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// ConsoleResultFormatter prints one table row per classified test.
type ConsoleResultFormatter struct {
	out    io.Writer
	logger log.Logger
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(out io.Writer, logger log.Logger) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		out:    out,
		logger: logger,
	}
}

// FormatResults formats and displays the test results.
func (f *ConsoleResultFormatter) FormatResults(result *runner.Result) error {
	f.logger.Debug("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Skip Gate Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Outcome", "Test", "Duration", "Status", "Detail",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Outcome", AutoMerge: true},
		{Name: "Test", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Detail", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, kind := range types.OutcomeKinds {
		outcomes := result.ByKind(kind)
		for i, o := range outcomes {
			prefix := "├──"
			if i == len(outcomes)-1 {
				prefix = "└──"
			}
			name := o.Name
			if o.FixtureLevel {
				name += " (fixture)"
			}
			t.AppendRow(table.Row{
				kind.String(),
				fmt.Sprintf("%s %s", prefix, name),
				formatDuration(o.Duration),
				getResultString(kind.Status()),
				o.Detail(),
			})
		}
	}

	t.AppendSeparator()
	t.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("%d tests: %d completed, %d ignored, %d skipped, %d failed",
			result.Stats.Total, result.Stats.Completed, result.Stats.SkippedPermanently,
			result.Stats.SkippedByGate, result.Stats.Failed),
		formatDuration(result.Duration),
		getResultString(result.Status),
		"",
	})

	t.Render()
	return nil
}

// YAMLResultFormatter writes the classified buckets as a YAML document.
type YAMLResultFormatter struct {
	out io.Writer
}

// NewYAMLResultFormatter creates a new YAMLResultFormatter.
func NewYAMLResultFormatter(out io.Writer) *YAMLResultFormatter {
	return &YAMLResultFormatter{out: out}
}

type yamlReport struct {
	RunID    string                   `yaml:"run_id"`
	Status   types.TestStatus         `yaml:"status"`
	Duration string                   `yaml:"duration"`
	Outcomes map[string][]yamlOutcome `yaml:"outcomes"`
}

type yamlOutcome struct {
	Name     string `yaml:"name"`
	Detail   string `yaml:"detail,omitempty"`
	Fixture  string `yaml:"fixture,omitempty"`
	Duration string `yaml:"duration,omitempty"`
}

// FormatResults formats and writes the test results.
func (f *YAMLResultFormatter) FormatResults(result *runner.Result) error {
	report := yamlReport{
		RunID:    result.RunID,
		Status:   result.Status,
		Duration: formatDuration(result.Duration),
		Outcomes: make(map[string][]yamlOutcome, len(types.OutcomeKinds)),
	}
	for _, kind := range types.OutcomeKinds {
		entries := []yamlOutcome{}
		for _, o := range result.ByKind(kind) {
			entry := yamlOutcome{Name: o.Name, Detail: o.Detail(), Fixture: o.Fixture}
			if o.Duration > 0 {
				entry.Duration = o.Duration.String()
			}
			entries = append(entries, entry)
		}
		report.Outcomes[kind.String()] = entries
	}

	enc := yaml.NewEncoder(f.out)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return enc.Close()
}

func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusSkip:
		return "- skip"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
