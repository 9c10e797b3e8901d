package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-skipgate/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "skipgate"
)

var (
	Debug                bool = true
	validResults              = []types.TestStatus{types.TestStatusPass, types.TestStatusFail, types.TestStatusSkip}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "verdicts_total",
		Help:      "Count of gate verdicts",
	}, []string{
		"verdict",
	})

	resolutionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "resolution_errors_total",
		Help:      "Count of condition resolution failures",
	}, []string{
		"kind",
	})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "outcomes_total",
		Help:      "Count of classified test outcomes",
	}, []string{
		"run_id",
		"kind",
		"result",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of gated test runs",
	}, []string{
		"run_id",
		"result",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration",
		Help:      "Duration of gated test runs",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordVerdict(v types.Verdict) {
	if Debug {
		log.Debug("metric inc",
			"m", "verdicts_total",
			"verdict", v.Label())
	}
	verdictsTotal.WithLabelValues(v.Label()).Inc()
}

// RecordResolutionError counts a declaration that could not be turned into a
// live condition.
func RecordResolutionError(kind string, err error) {
	if err == nil {
		return
	}
	resolutionErrorsTotal.WithLabelValues(kind).Inc()
	RecordErrorDetails("resolution", err)
}

func RecordOutcome(runID string, o types.Outcome) {
	result := o.Kind.Status()
	if !isValidResult(result) {
		log.Error("RecordOutcome - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "outcomes_total",
			"run_id", runID,
			"name", o.Name,
			"kind", o.Kind,
			"result", result)
	}
	outcomesTotal.WithLabelValues(runID, o.Kind.String(), string(result)).Inc()
}

func RecordRun(runID string, result types.TestStatus, duration time.Duration) {
	if !isValidResult(result) {
		log.Error("RecordRun - invalid result", "result", result)
		return
	}
	runResults.WithLabelValues(runID, string(result)).Set(1)
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
