// Package condition defines the predicates that decide at run time whether a
// gated test runs or is skipped.
//
// A condition type implements Condition (NeedSkip), Runner (NeedRun) or both;
// the two are complements and implementing one of them is sufficient. A type
// may additionally implement Reasoner to explain a skip.
package condition

import (
	"errors"
	"reflect"
)

// ErrNoDecision is returned when a constructed value implements neither
// NeedSkip nor NeedRun.
var ErrNoDecision = errors.New("condition implements neither NeedSkip nor NeedRun")

// Condition decides whether the gated test must not run.
type Condition interface {
	NeedSkip() bool
}

// Runner decides whether the gated test is allowed to run.
type Runner interface {
	NeedRun() bool
}

// Reasoner describes why a test is skipped. An empty reason means none.
type Reasoner interface {
	Reason() string
}

// NeedSkip reports whether c votes to skip.
func NeedSkip(c Condition) bool {
	return c.NeedSkip()
}

// NeedRun reports whether c lets the test run, falling back to the negation of
// NeedSkip when c has no NeedRun of its own.
func NeedRun(c Condition) bool {
	if r, ok := c.(Runner); ok {
		return r.NeedRun()
	}
	return !c.NeedSkip()
}

// Reason returns the skip reason of c, or "" if c has none.
func Reason(c Condition) string {
	if r, ok := c.(Reasoner); ok {
		return r.Reason()
	}
	return ""
}

// Name returns the simple type name of c, looking through adapters.
func Name(c Condition) string {
	var v any = c
	if u, ok := c.(interface{ Unwrap() any }); ok {
		v = u.Unwrap()
	}
	return simpleName(reflect.TypeOf(v))
}

// FromRunner adapts a run-only condition. The adapter reports the name and the
// reason of r.
func FromRunner(r Runner) Condition {
	return runnerCondition{r: r}
}

// Adapt turns a constructed value into a Condition.
func Adapt(v any) (Condition, error) {
	switch c := v.(type) {
	case Condition:
		return c, nil
	case Runner:
		return FromRunner(c), nil
	default:
		return nil, ErrNoDecision
	}
}

type runnerCondition struct {
	r Runner
}

func (a runnerCondition) NeedSkip() bool {
	return !a.r.NeedRun()
}

func (a runnerCondition) NeedRun() bool {
	return a.r.NeedRun()
}

func (a runnerCondition) Reason() string {
	if rs, ok := a.r.(Reasoner); ok {
		return rs.Reason()
	}
	return ""
}

func (a runnerCondition) Unwrap() any {
	return a.r
}

func simpleName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func qualifiedName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
