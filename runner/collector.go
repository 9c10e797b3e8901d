package runner

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-skipgate/types"
)

// Collector records one outcome per key. The first outcome recorded for a key
// wins and later ones are dropped. It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	outcomes map[string]types.Outcome
	start    time.Time
}

// NewCollector creates a new collector
func NewCollector() *Collector {
	return &Collector{
		outcomes: make(map[string]types.Outcome),
		start:    time.Now(),
	}
}

// Record stores o under o.Name unless an outcome is already stored there, and
// reports whether it did.
func (c *Collector) Record(o types.Outcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.outcomes[o.Name]; exists {
		return false
	}
	c.outcomes[o.Name] = o
	return true
}

// Has reports whether an outcome is stored under name.
func (c *Collector) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.outcomes[name]
	return exists
}

// Len returns the number of recorded outcomes.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

// Result snapshots the recorded outcomes into a finalized result.
func (c *Collector) Result(runID string) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := time.Now()
	result := &Result{
		RunID:    runID,
		Outcomes: make(map[string]types.Outcome, len(c.outcomes)),
		Duration: end.Sub(c.start),
		Stats: ResultStats{
			StartTime: c.start,
			EndTime:   end,
		},
	}

	allSkipped := true
	anyFailed := false
	for name, o := range c.outcomes {
		result.Outcomes[name] = o
		result.Stats.add(o.Kind)
		if o.Kind.Status() != types.TestStatusSkip {
			allSkipped = false
		}
		if o.Kind == types.OutcomeFailed {
			anyFailed = true
		}
	}
	result.Status = determineStatusFromFlags(allSkipped, anyFailed)
	return result
}

// determineStatusFromFlags returns a status based on test results.
// It prioritizes failures over skips - if any test failed, the overall status is fail.
func determineStatusFromFlags(allSkipped, anyFailed bool) types.TestStatus {
	if anyFailed {
		return types.TestStatusFail
	}
	if allSkipped {
		return types.TestStatusSkip
	}
	return types.TestStatusPass
}

// ResultStats tracks the number of outcomes per bucket
type ResultStats struct {
	Total              int
	Completed          int
	SkippedPermanently int
	SkippedByGate      int
	Failed             int
	StartTime          time.Time
	EndTime            time.Time
}

func (s *ResultStats) add(kind types.OutcomeKind) {
	s.Total++
	switch kind {
	case types.OutcomeCompleted:
		s.Completed++
	case types.OutcomeSkippedPermanently:
		s.SkippedPermanently++
	case types.OutcomeSkippedByGate:
		s.SkippedByGate++
	case types.OutcomeFailed:
		s.Failed++
	}
}

// Result holds the classified outcomes of one run. An empty run has status skip.
type Result struct {
	RunID    string
	Status   types.TestStatus
	Duration time.Duration
	Stats    ResultStats
	Outcomes map[string]types.Outcome
}

// Get returns the outcome recorded under name.
func (r *Result) Get(name string) (types.Outcome, bool) {
	o, ok := r.Outcomes[name]
	return o, ok
}

// Completed returns the outcomes of methods whose body ran to its normal end.
func (r *Result) Completed() []types.Outcome {
	return r.ByKind(types.OutcomeCompleted)
}

// SkippedPermanently returns the outcomes of unconditionally ignored methods.
func (r *Result) SkippedPermanently() []types.Outcome {
	return r.ByKind(types.OutcomeSkippedPermanently)
}

// SkippedByGate returns the outcomes of methods skipped at run time.
func (r *Result) SkippedByGate() []types.Outcome {
	return r.ByKind(types.OutcomeSkippedByGate)
}

// Failures returns the failed outcomes, method and fixture level alike.
func (r *Result) Failures() []types.Outcome {
	return r.ByKind(types.OutcomeFailed)
}

// ByKind returns the outcomes in one bucket, sorted by name.
func (r *Result) ByKind(kind types.OutcomeKind) []types.Outcome {
	var out []types.Outcome
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b types.Outcome) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Names returns the names in one bucket, sorted.
func (r *Result) Names(kind types.OutcomeKind) []string {
	outcomes := r.ByKind(kind)
	names := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		names = append(names, o.Name)
	}
	return names
}

func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status=%s total=%d", r.Status, r.Stats.Total)
	for _, kind := range types.OutcomeKinds {
		fmt.Fprintf(&b, "\n%s:", kind)
		for _, o := range r.ByKind(kind) {
			fmt.Fprintf(&b, " %s", o.String())
		}
	}
	return b.String()
}
