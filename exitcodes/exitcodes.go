// Package exitcodes defines the standard exit codes used by op-skipgate.
package exitcodes

// Exit code constants used by op-skipgate
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Every test completed or was skipped
// * TestFailure (1): One or more tests failed, including condition resolution failures
// * RuntimeErr (2): Runtime errors such as unreadable input or a go test that could not run
const (
	Success     = 0 // No failures
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors
)
