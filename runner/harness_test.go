package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-skipgate/condition"
	"github.com/ethereum-optimism/infra/op-skipgate/gate"
	"github.com/ethereum-optimism/infra/op-skipgate/registry"
	"github.com/ethereum-optimism/infra/op-skipgate/types"
)

type alwaysSkipCondition struct{}

func (alwaysSkipCondition) NeedSkip() bool { return true }

type alwaysRunCondition struct{}

func (alwaysRunCondition) NeedRun() bool { return true }

type skipWithReasonCondition struct{}

func (skipWithReasonCondition) NeedRun() bool  { return false }
func (skipWithReasonCondition) Reason() string { return "because I can" }

var (
	alwaysSkip     = condition.Standalone(func() alwaysSkipCondition { return alwaysSkipCondition{} })
	alwaysRun      = condition.Standalone(func() alwaysRunCondition { return alwaysRunCondition{} })
	skipWithReason = condition.Standalone(func() skipWithReasonCondition { return skipWithReasonCondition{} })
)

type basic struct{}

func newBasic() any { return &basic{} }

func notBlank(_ *basic, t T) {
	assert.NotEmpty(t, "Blank")
}

func newTestHarness() *Harness {
	return NewHarness(Config{Log: log.New()})
}

func runFixture(t *testing.T, f Fixture) *Result {
	t.Helper()
	result, err := newTestHarness().Run(context.Background(), f)
	require.NoError(t, err)
	return result
}

func TestHarness_OnlySkip(t *testing.T) {
	result := runFixture(t, Fixture{
		Name: "OnlySkip",
		New:  newBasic,
		Methods: []Method{
			Test("test1", notBlank, alwaysSkip),
			Test("test2", notBlank, alwaysSkip),
		},
	})

	assert.Empty(t, result.Failures())
	assert.Empty(t, result.Completed())
	assert.Empty(t, result.SkippedPermanently())
	assert.Equal(t, []string{"OnlySkip/test1", "OnlySkip/test2"}, result.Names(types.OutcomeSkippedByGate))

	o, ok := result.Get("OnlySkip/test1")
	require.True(t, ok)
	assert.Equal(t, "Ignored by alwaysSkipCondition", o.Message)
	assert.Equal(t, types.TestStatusSkip, result.Status)
}

func TestHarness_OnlyRun(t *testing.T) {
	result := runFixture(t, Fixture{
		Name: "OnlyRun",
		New:  newBasic,
		Methods: []Method{
			Test("test1", notBlank, alwaysRun),
			Test("test2", notBlank, alwaysRun),
		},
	})

	assert.Empty(t, result.Failures())
	assert.Equal(t, []string{"OnlyRun/test1", "OnlyRun/test2"}, result.Names(types.OutcomeCompleted))
	assert.Empty(t, result.SkippedPermanently())
	assert.Empty(t, result.SkippedByGate())
	assert.Equal(t, types.TestStatusPass, result.Status)
}

func TestHarness_Mixed(t *testing.T) {
	result := runFixture(t, Fixture{
		Name: "Mixed",
		New:  newBasic,
		Methods: []Method{
			Test("alwaysRun", notBlank),
			Test("runByRule", notBlank, alwaysRun),
			Test("skipByRule", notBlank, alwaysSkip),
			Ignore(Test("alwaysSkip", notBlank)),
			Test("failure", func(_ *basic, t T) {
				assert.Empty(t, "Blank")
			}),
		},
	})

	assert.Equal(t, []string{"Mixed/failure"}, result.Names(types.OutcomeFailed))
	assert.Equal(t, []string{"Mixed/alwaysRun", "Mixed/runByRule"}, result.Names(types.OutcomeCompleted))
	assert.Equal(t, []string{"Mixed/alwaysSkip"}, result.Names(types.OutcomeSkippedPermanently))
	assert.Equal(t, []string{"Mixed/skipByRule"}, result.Names(types.OutcomeSkippedByGate))

	failure, _ := result.Get("Mixed/failure")
	assert.Contains(t, failure.Detail(), "Should be empty")
	assert.Equal(t, types.TestStatusFail, result.Status)
	assert.Equal(t, 5, result.Stats.Total)
}

func TestHarness_SkipWithReason(t *testing.T) {
	result := runFixture(t, Fixture{
		Name:    "SkipWithReason",
		New:     newBasic,
		Methods: []Method{Test("test", notBlank, skipWithReason)},
	})

	assert.Empty(t, result.Failures())
	assert.Empty(t, result.Completed())
	require.Equal(t, []string{"SkipWithReason/test"}, result.Names(types.OutcomeSkippedByGate))
	o, _ := result.Get("SkipWithReason/test")
	assert.Equal(t, "Ignored by skipWithReasonCondition: because I can", o.Message)
	assert.Equal(t, "SkipWithReason", o.Fixture)
}

// outer plays the role of an enclosing test case other fixtures must not borrow
// conditions from.
type outer struct{ id string }

type outerCondition struct{ o *outer }

func (c outerCondition) NeedSkip() bool { return true }
func (c outerCondition) Reason() string { return c.o.id }

var outerBound = condition.Bound(func(o *outer) outerCondition { return outerCondition{o: o} })

func TestHarness_BoundConditionOutsideItsFixture(t *testing.T) {
	result := runFixture(t, Fixture{
		Name:    "NonStaticIncorrect",
		New:     newBasic,
		Methods: []Method{Test("test", notBlank, outerBound)},
	})

	require.Equal(t, []string{"NonStaticIncorrect"}, result.Names(types.OutcomeFailed))
	o, _ := result.Get("NonStaticIncorrect")
	assert.True(t, o.FixtureLevel)
	assert.Equal(t,
		fmt.Sprintf(registry.InvalidClassDeclaration, "github.com/ethereum-optimism/infra/op-skipgate/runner.outerCondition"),
		o.Detail())
	assert.Empty(t, result.Completed())
	assert.Empty(t, result.SkippedPermanently())
	assert.Empty(t, result.SkippedByGate())
}

type inner struct{ rnd string }

type innerCondition struct{ i *inner }

func (c innerCondition) NeedSkip() bool { return true }
func (c innerCondition) Reason() string { return "inner value = " + c.i.rnd }

func TestHarness_BoundConditionInsideItsFixture(t *testing.T) {
	rnd := strconv.FormatFloat(rand.Float64()*3, 'f', 5, 64)
	var value atomic.Pointer[string]

	result := runFixture(t, Fixture{
		Name: "NonStaticInner",
		New:  func() any { return &inner{rnd: rnd} },
		Methods: []Method{
			Test("ignored", func(_ *inner, t T) {
				assert.NotEmpty(t, "Blank")
			}, condition.Bound(func(i *inner) innerCondition { return innerCondition{i: i} })),
			Test("executed", func(i *inner, t T) {
				assert.True(t, value.CompareAndSwap(nil, &i.rnd))
			}),
		},
	})

	assert.Empty(t, result.Failures())
	assert.Equal(t, []string{"NonStaticInner/executed"}, result.Names(types.OutcomeCompleted))
	assert.Equal(t, []string{"NonStaticInner/ignored"}, result.Names(types.OutcomeSkippedByGate))
	require.NotNil(t, value.Load())

	o, _ := result.Get("NonStaticInner/ignored")
	assert.True(t, len(o.Message) > 0)
	assert.Equal(t, "Ignored by innerCondition: inner value = "+*value.Load(), o.Message)
}

func TestHarness_Repeatable(t *testing.T) {
	result := runFixture(t, Fixture{
		Name: "Repeatable",
		New:  newBasic,
		Methods: []Method{
			Test("runAndRun", notBlank, alwaysRun, alwaysRun),
			Test("runAndSkip", notBlank, alwaysRun, alwaysSkip),
			Test("skipAndRun", notBlank, alwaysSkip, alwaysRun),
			Test("skipAndSkip", notBlank, alwaysSkip, alwaysSkip),
		},
	})

	assert.Empty(t, result.Failures())
	assert.Equal(t, []string{"Repeatable/runAndRun"}, result.Names(types.OutcomeCompleted))
	assert.Empty(t, result.SkippedPermanently())
	assert.Equal(t,
		[]string{"Repeatable/runAndSkip", "Repeatable/skipAndRun", "Repeatable/skipAndSkip"},
		result.Names(types.OutcomeSkippedByGate))
}

type constructorWithErrorCondition struct{}

func (constructorWithErrorCondition) NeedRun() bool { return true }

func TestHarness_ConstructorWithError(t *testing.T) {
	t.Run("panic", func(t *testing.T) {
		panicking := condition.Standalone(func() constructorWithErrorCondition {
			panic("Some unchecked exception")
		})
		result := runFixture(t, Fixture{
			Name:    "ConstructorWithError",
			New:     newBasic,
			Methods: []Method{Test("test", notBlank, panicking)},
		})

		require.Equal(t, []string{"ConstructorWithError"}, result.Names(types.OutcomeFailed))
		o, _ := result.Get("ConstructorWithError")
		assert.Equal(t, "Some unchecked exception", o.Detail())
		assert.Empty(t, result.Completed())
		assert.Empty(t, result.SkippedPermanently())
		assert.Empty(t, result.SkippedByGate())
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("Some checked exception")
		failing := condition.StandaloneE(func() (constructorWithErrorCondition, error) {
			return constructorWithErrorCondition{}, boom
		})
		result := runFixture(t, Fixture{
			Name:    "ConstructorWithError",
			New:     newBasic,
			Methods: []Method{Test("test", notBlank, failing)},
		})

		o, ok := result.Get("ConstructorWithError")
		require.True(t, ok)
		assert.Same(t, boom, o.Error)
	})
}

type constructorHiddenCondition struct{}

func (constructorHiddenCondition) NeedRun() bool { return true }

func TestHarness_ConstructorHidden(t *testing.T) {
	result := runFixture(t, Fixture{
		Name:    "ConstructorHidden",
		New:     newBasic,
		Methods: []Method{Test("test", notBlank, condition.Of[constructorHiddenCondition]())},
	})

	require.Equal(t, []string{"ConstructorHidden"}, result.Names(types.OutcomeFailed))
	o, _ := result.Get("ConstructorHidden")
	assert.Equal(t,
		fmt.Sprintf(registry.InvalidClassConstructor,
			"github.com/ethereum-optimism/infra/op-skipgate/runner.constructorHiddenCondition",
			condition.ErrNoConstructor),
		o.Detail())
	assert.Empty(t, result.Completed())
	assert.Empty(t, result.SkippedByGate())
}

type constructorWithArgumentsCondition struct{ value string }

func (c constructorWithArgumentsCondition) NeedRun() bool { return c.value != "" }

func TestHarness_ConstructorWithArguments(t *testing.T) {
	withArgs := condition.Constructor(func(value string) constructorWithArgumentsCondition {
		return constructorWithArgumentsCondition{value: value}
	})
	result := runFixture(t, Fixture{
		Name:    "ConstructorWithArguments",
		New:     newBasic,
		Methods: []Method{Test("test", notBlank, withArgs)},
	})

	require.Equal(t, []string{"ConstructorWithArguments"}, result.Names(types.OutcomeFailed))
	o, _ := result.Get("ConstructorWithArguments")
	var ctorErr *registry.InvalidConstructorError
	require.ErrorAs(t, o.Error, &ctorErr)
	assert.Equal(t, "github.com/ethereum-optimism/infra/op-skipgate/runner.constructorWithArgumentsCondition", ctorErr.TypeName)
	assert.Empty(t, result.Completed())
}

func TestHarness_FixtureFailureStopsFixture(t *testing.T) {
	var ran atomic.Int32
	result := runFixture(t, Fixture{
		Name: "Stops",
		New:  newBasic,
		Methods: []Method{
			Test("broken", notBlank, condition.Of[alwaysSkipCondition]()),
			Test("after", func(_ *basic, t T) { ran.Add(1) }),
		},
	})

	assert.Equal(t, []string{"Stops"}, result.Names(types.OutcomeFailed))
	assert.Zero(t, ran.Load())
	assert.Equal(t, 1, result.Stats.Total)
}

func TestHarness_BodyBehaviour(t *testing.T) {
	result := runFixture(t, Fixture{
		Name: "Body",
		New:  newBasic,
		Methods: []Method{
			Test("panics", func(_ *basic, t T) { panic(errors.New("body exploded")) }),
			Test("fatal", func(_ *basic, t T) {
				t.Fatalf("stopped at %d", 1)
				t.Error("unreachable")
			}),
			Test("skipsItself", func(_ *basic, t T) { t.Skip("not today") }),
			Test("failsThenSkips", func(_ *basic, t T) {
				t.Error("first")
				t.SkipNow()
			}),
			Test("logs", func(_ *basic, t T) { t.Logf("hello %s", t.Name()) }),
		},
	})

	assert.Equal(t, []string{"Body/failsThenSkips", "Body/fatal", "Body/panics"}, result.Names(types.OutcomeFailed))
	assert.Equal(t, []string{"Body/logs"}, result.Names(types.OutcomeCompleted))
	assert.Equal(t, []string{"Body/skipsItself"}, result.Names(types.OutcomeSkippedPermanently),
		"a skip the gate did not write is a native skip")
	assert.Empty(t, result.Names(types.OutcomeSkippedByGate))

	o, _ := result.Get("Body/panics")
	assert.EqualError(t, o.Error, "body exploded")
	o, _ = result.Get("Body/fatal")
	assert.EqualError(t, o.Error, "stopped at 1")
	o, _ = result.Get("Body/skipsItself")
	assert.Equal(t, "not today", o.Message)
}

func TestHarness_Idempotent(t *testing.T) {
	var built atomic.Int32
	counting := condition.Standalone(func() alwaysRunCondition {
		built.Add(1)
		return alwaysRunCondition{}
	})
	f := Fixture{
		Name: "Idempotent",
		New:  newBasic,
		Methods: []Method{
			Test("a", notBlank, counting),
			Test("b", notBlank, counting),
		},
	}

	h := newTestHarness()
	first, err := h.Run(context.Background(), f)
	require.NoError(t, err)
	second, err := h.Run(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, first.Names(types.OutcomeCompleted), second.Names(types.OutcomeCompleted))
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, int32(4), built.Load(), "one fresh condition per method execution")
}

func TestHarness_Parallel(t *testing.T) {
	var fixtures []Fixture
	for i := range 20 {
		fixtures = append(fixtures, Fixture{
			Name: fmt.Sprintf("Fixture%02d", i),
			New:  newBasic,
			Methods: []Method{
				Test("run", notBlank, alwaysRun),
				Test("skip", notBlank, alwaysSkip),
				Ignore(Test("ignored", notBlank)),
			},
		})
	}

	h := NewHarness(Config{Log: log.New(), Parallel: true, Concurrency: 4})
	result, err := h.Run(context.Background(), fixtures...)
	require.NoError(t, err)

	assert.Equal(t, 60, result.Stats.Total)
	assert.Equal(t, 20, result.Stats.Completed)
	assert.Equal(t, 20, result.Stats.SkippedByGate)
	assert.Equal(t, 20, result.Stats.SkippedPermanently)
	assert.Zero(t, result.Stats.Failed)
}

func TestHarness_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := Fixture{Name: "Cancelled", New: newBasic, Methods: []Method{Test("test", notBlank)}}
	for _, parallel := range []bool{false, true} {
		_, err := NewHarness(Config{Log: log.New(), Parallel: parallel}).Run(ctx, f)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestHarness_SharedRule(t *testing.T) {
	reg, err := registry.NewRegistry(registry.Config{Log: log.New()})
	require.NoError(t, err)
	rule := gate.NewRule(gate.Config{Log: log.New(), Registry: reg})

	result, err := NewHarness(Config{Rule: rule, Log: log.New()}).Run(context.Background(), Fixture{
		Name:    "Shared",
		New:     newBasic,
		Methods: []Method{Test("test", notBlank, skipWithReason)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Shared/test"}, result.Names(types.OutcomeSkippedByGate))
}
