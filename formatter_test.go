package skipgate

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-skipgate/flags"
	"github.com/ethereum-optimism/infra/op-skipgate/runner"
	"github.com/ethereum-optimism/infra/op-skipgate/types"
)

func createSampleResult() *runner.Result {
	c := runner.NewCollector()
	c.Record(types.Outcome{Name: "TestRun", Kind: types.OutcomeCompleted, Duration: 1500 * time.Millisecond})
	c.Record(types.Outcome{Name: "TestIgnored", Kind: types.OutcomeSkippedPermanently})
	c.Record(types.Outcome{Name: "TestGated", Kind: types.OutcomeSkippedByGate, Message: "Ignored by alwaysSkip: because I can"})
	c.Record(types.Outcome{Name: "Broken", Fixture: "Broken", Kind: types.OutcomeFailed, Error: errors.New("no usable constructor"), FixtureLevel: true})
	return c.Result("sample-run")
}

func TestConsoleResultFormatter_FormatResults(t *testing.T) {
	var out bytes.Buffer
	formatter := NewConsoleResultFormatter(&out, log.New())

	require.NoError(t, formatter.FormatResults(createSampleResult()))

	s := out.String()
	assert.Contains(t, s, "Skip Gate Results")
	assert.Contains(t, s, "TestRun")
	assert.Contains(t, s, "Ignored by alwaysSkip: because I can")
	assert.Contains(t, s, "Broken (fixture)")
	assert.Contains(t, s, "4 tests: 1 completed, 1 ignored, 1 skipped, 1 failed")
}

func TestConsoleResultFormatter_FormatResults_EmptyResult(t *testing.T) {
	var out bytes.Buffer
	formatter := NewConsoleResultFormatter(&out, log.New())

	require.NoError(t, formatter.FormatResults(runner.NewCollector().Result("empty-run")))
	assert.Contains(t, out.String(), "0 tests")
}

func TestYAMLResultFormatter_FormatResults(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewYAMLResultFormatter(&out).FormatResults(createSampleResult()))

	var report yamlReport
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "sample-run", report.RunID)
	assert.Equal(t, types.TestStatusFail, report.Status)
	require.Len(t, report.Outcomes["skipped"], 1)
	assert.Equal(t, "Ignored by alwaysSkip: because I can", report.Outcomes["skipped"][0].Detail)
	assert.Equal(t, "1.5s", report.Outcomes["completed"][0].Duration)
	assert.Equal(t, "no usable constructor", report.Outcomes["failed"][0].Detail)
	assert.Len(t, report.Outcomes["ignored"], 1)
}

func TestNewResultFormatter(t *testing.T) {
	f, err := NewResultFormatter(flags.FormatTable, &bytes.Buffer{}, log.New())
	require.NoError(t, err)
	assert.IsType(t, &ConsoleResultFormatter{}, f)

	f, err = NewResultFormatter(flags.FormatYAML, &bytes.Buffer{}, log.New())
	require.NoError(t, err)
	assert.IsType(t, &YAMLResultFormatter{}, f)

	_, err = NewResultFormatter("xml", &bytes.Buffer{}, log.New())
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "0.0s", formatDuration(0))
}
