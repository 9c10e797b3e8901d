// Package runner observes the skip gate from the outside and classifies what
// happened to every test method it saw.
//
// The main components are:
//   - Harness: runs in-process fixtures through the gate and records one outcome per method
//   - Collector: insert-if-absent store of outcomes, safe for concurrent writers
//   - ClassifyEvents: classifies a go test -json stream into the same outcome buckets
//   - Executor: runs go test -json for a package and classifies its output
package runner
