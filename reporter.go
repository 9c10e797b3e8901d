package skipgate

import (
	"github.com/ethereum-optimism/infra/op-skipgate/metrics"
	"github.com/ethereum-optimism/infra/op-skipgate/runner"
)

// MetricsReporter is responsible for reporting metrics from test results.
type MetricsReporter interface {
	ReportResults(result *runner.Result)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults records every classified outcome and the run status.
func (r *DefaultMetricsReporter) ReportResults(result *runner.Result) {
	for _, o := range result.Outcomes {
		metrics.RecordOutcome(result.RunID, o)
	}
	metrics.RecordRun(result.RunID, result.Status, result.Duration)
}
