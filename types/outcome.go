// Package types contains shared types used across the skip gate and its harness
package types

import (
	"fmt"
	"time"
)

// TestStatus represents the aggregate state of a run
type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
	TestStatusSkip TestStatus = "skip"
)

// OutcomeKind is the terminal bucket a test method lands in
type OutcomeKind string

const (
	// OutcomeCompleted means the method body ran to its normal end.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeSkippedPermanently means the method carries an unconditional ignore
	// marker and the gate never evaluated it.
	OutcomeSkippedPermanently OutcomeKind = "ignored"
	// OutcomeSkippedByGate means the method was skipped at run time, carrying a message.
	OutcomeSkippedByGate OutcomeKind = "skipped"
	// OutcomeFailed means the body or the condition resolution raised an error.
	OutcomeFailed OutcomeKind = "failed"
)

// OutcomeKinds lists every bucket in reporting order
var OutcomeKinds = []OutcomeKind{
	OutcomeCompleted,
	OutcomeSkippedPermanently,
	OutcomeSkippedByGate,
	OutcomeFailed,
}

// String implements the Stringer interface for OutcomeKind
func (k OutcomeKind) String() string {
	return string(k)
}

// Status maps a bucket onto the pass/fail/skip status used for aggregation
func (k OutcomeKind) Status() TestStatus {
	switch k {
	case OutcomeFailed:
		return TestStatusFail
	case OutcomeSkippedByGate, OutcomeSkippedPermanently:
		return TestStatusSkip
	default:
		return TestStatusPass
	}
}

// Outcome is the terminal record of one test method (or one fixture, when a
// failure could not be attributed to a single method)
type Outcome struct {
	Name         string
	Fixture      string
	Kind         OutcomeKind
	Message      string // skip explanation for OutcomeSkippedByGate and OutcomeSkippedPermanently
	Error        error  // cause for OutcomeFailed
	Duration     time.Duration
	FixtureLevel bool // recorded against the fixture rather than a method
}

// Detail returns the human readable explanation attached to the outcome
func (o *Outcome) Detail() string {
	if o.Error != nil {
		return o.Error.Error()
	}
	return o.Message
}

func (o *Outcome) String() string {
	if detail := o.Detail(); detail != "" {
		return fmt.Sprintf("%s[%s: %s]", o.Name, o.Kind, detail)
	}
	return fmt.Sprintf("%s[%s]", o.Name, o.Kind)
}
