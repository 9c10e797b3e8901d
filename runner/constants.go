package runner

import "time"

// go test -json actions
const (
	ActionStart  = "start"
	ActionRun    = "run"
	ActionPause  = "pause"
	ActionCont   = "cont"
	ActionPass   = "pass"
	ActionFail   = "fail"
	ActionSkip   = "skip"
	ActionOutput = "output"
)

// Test execution constants
const (
	// DefaultTestTimeout is the default timeout for one go test invocation
	DefaultTestTimeout = 10 * time.Minute

	// Default go binary name
	DefaultGoBinary = "go"

	// Test command arguments
	TestCommand = "test"
	JSONFlag    = "-json"
	TimeoutFlag = "-timeout"
	CountFlag   = "-count"

	// Test count to disable caching
	DisableCacheCount = "1"

	// maxEventSize bounds a single go test -json line
	maxEventSize = 4 * 1024 * 1024
)
