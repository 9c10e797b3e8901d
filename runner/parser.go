package runner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-skipgate/gate"
	"github.com/ethereum-optimism/infra/op-skipgate/types"
)

// TestEvent represents a test event from go test -json output
type TestEvent struct {
	Time    time.Time // Time the event occurred
	Action  string    // The action taken (run, pause, cont, pass, fail, skip, output)
	Package string    // The package being tested
	Test    string    // The test function name (may be empty for package events)
	Output  string    // Output text (may be empty)
	Elapsed float64   // Elapsed time in seconds for the specific action
}

// locationPrefix matches the "file_test.go:12: " prefix testing adds to logged lines
var locationPrefix = regexp.MustCompile(`^\s*[\w.\-]+\.go:\d+: `)

// testState accumulates the output of one test until its terminal event
type testState struct {
	pkg    string
	output []string
}

// ClassifyEvents reads a go test -json stream and records one outcome per test
// in collector, keyed by OutcomeKey. Skips are classified with SkipKind. A failing
// package without a failing test of its own is recorded against the package
// import path. Lines that are not JSON test events are ignored.
func ClassifyEvents(r io.Reader, collector *Collector) error {
	states := make(map[string]*testState)
	failedTests := make(map[string]bool) // per package

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	for scanner.Scan() {
		event, err := parseTestEvent(scanner.Bytes())
		if err != nil {
			continue
		}

		if event.Test == "" {
			processPackageEvent(event, states, failedTests, collector)
			continue
		}

		key := event.Package + "\x00" + event.Test
		state, ok := states[key]
		if !ok {
			state = &testState{pkg: event.Package}
			states[key] = state
		}

		switch event.Action {
		case ActionOutput:
			if line := cleanOutputLine(event.Output); line != "" {
				state.output = append(state.output, line)
			}
		case ActionPass, ActionFail, ActionSkip:
			if event.Action == ActionFail {
				failedTests[event.Package] = true
			}
			collector.Record(classifyTest(event, state))
			delete(states, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read test events: %w", err)
	}
	return nil
}

// ParseTestEvents is ClassifyEvents into a fresh collector.
func ParseTestEvents(r io.Reader, runID string) (*Result, error) {
	collector := NewCollector()
	if err := ClassifyEvents(r, collector); err != nil {
		return nil, err
	}
	return collector.Result(runID), nil
}

func parseTestEvent(line []byte) (TestEvent, error) {
	var event TestEvent
	if err := json.Unmarshal(line, &event); err != nil {
		return event, err
	}
	return event, nil
}

// OutcomeKey names the outcome of test in the package with import path pkg. A
// package-level outcome is keyed by pkg alone.
func OutcomeKey(pkg, test string) string {
	if test == "" {
		return pkg
	}
	return pkg + "::" + test
}

// SkipKind classifies a skip by its message: skips written by the gate are
// SkippedByGate, any other skip is SkippedPermanently.
func SkipKind(message string) types.OutcomeKind {
	if _, ok := gateMessage(strings.Split(message, "\n")); ok {
		return types.OutcomeSkippedByGate
	}
	return types.OutcomeSkippedPermanently
}

func processPackageEvent(event TestEvent, states map[string]*testState, failedTests map[string]bool, collector *Collector) {
	state, ok := states[event.Package]
	if !ok {
		state = &testState{pkg: event.Package}
		states[event.Package] = state
	}

	switch event.Action {
	case ActionOutput:
		if line := cleanOutputLine(event.Output); line != "" {
			state.output = append(state.output, line)
		}
	case ActionFail:
		if !failedTests[event.Package] {
			msg := strings.Join(state.output, "\n")
			if msg == "" {
				msg = "package failed without a failing test"
			}
			collector.Record(types.Outcome{
				Name:         OutcomeKey(event.Package, ""),
				Fixture:      event.Package,
				Kind:         types.OutcomeFailed,
				Error:        fmt.Errorf("%s", msg),
				Duration:     elapsed(event),
				FixtureLevel: true,
			})
		}
		delete(states, event.Package)
	case ActionPass, ActionSkip:
		delete(states, event.Package)
	}
}

func classifyTest(event TestEvent, state *testState) types.Outcome {
	o := types.Outcome{
		Name:     OutcomeKey(event.Package, event.Test),
		Fixture:  event.Package,
		Duration: elapsed(event),
	}

	switch event.Action {
	case ActionPass:
		o.Kind = types.OutcomeCompleted
	case ActionFail:
		o.Kind = types.OutcomeFailed
		msg := strings.Join(state.output, "\n")
		if msg == "" {
			msg = "test failed"
		}
		o.Error = fmt.Errorf("%s", msg)
	case ActionSkip:
		o.Message = strings.Join(state.output, "\n")
		o.Kind = SkipKind(o.Message)
		if msg, ok := gateMessage(state.output); ok {
			o.Message = msg
		}
	}
	return o
}

// gateMessage finds the skip message written by the gate in a test's output.
// testing prints every line of a multi-line message as its own output event,
// so the lines after the first are part of the message.
func gateMessage(lines []string) (string, bool) {
	for i, line := range lines {
		if strings.HasPrefix(line, gate.SkipPrefix) {
			return strings.Join(lines[i:], "\n"), true
		}
	}
	return "", false
}

// cleanOutputLine strips colors, the location prefix and the lines the testing
// package prints around every test. Empty results are dropped by the caller.
func cleanOutputLine(output string) string {
	line := strings.TrimSpace(stripansi.Strip(output))
	for _, marker := range []string{"=== RUN", "=== PAUSE", "=== CONT", "=== NAME", "--- PASS:", "--- FAIL:", "--- SKIP:"} {
		if strings.HasPrefix(line, marker) {
			return ""
		}
	}
	switch line {
	case "PASS", "FAIL":
		return ""
	}
	if strings.HasPrefix(line, "ok ") || strings.HasPrefix(line, "FAIL\t") || strings.HasPrefix(line, "ok\t") {
		return ""
	}
	return locationPrefix.ReplaceAllString(line, "")
}

func elapsed(event TestEvent) time.Duration {
	return time.Duration(event.Elapsed * float64(time.Second))
}
