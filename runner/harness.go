package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-skipgate/condition"
	"github.com/ethereum-optimism/infra/op-skipgate/gate"
	"github.com/ethereum-optimism/infra/op-skipgate/metrics"
	"github.com/ethereum-optimism/infra/op-skipgate/types"
)

// Fixture is a test case: a set of methods sharing one fixture type. New is
// called once per method execution.
type Fixture struct {
	Name    string
	New     func() any
	Methods []Method
}

// Method is one test method of a fixture.
type Method struct {
	Name string
	// Ignored marks the method as unconditionally ignored; it is never
	// instantiated nor gated.
	Ignored    bool
	Conditions []condition.Type
	Run        func(fixture any, t T)
}

// Test declares a method whose body receives the fixture as an F.
func Test[F any](name string, body func(F, T), conds ...condition.Type) Method {
	return Method{
		Name:       name,
		Conditions: conds,
		Run: func(fixture any, t T) {
			body(fixture.(F), t)
		},
	}
}

// Ignore marks m as unconditionally ignored.
func Ignore(m Method) Method {
	m.Ignored = true
	return m
}

// Config holds configuration for creating a new harness
type Config struct {
	Rule        *gate.Rule
	Log         log.Logger
	Parallel    bool // run fixtures concurrently
	Concurrency int  // maximum concurrently running fixtures, 0 for no limit
}

// Harness runs fixtures through the gate and classifies every method.
type Harness struct {
	rule        *gate.Rule
	log         log.Logger
	parallel    bool
	concurrency int
	tracer      trace.Tracer
}

// NewHarness creates a new harness instance
func NewHarness(cfg Config) *Harness {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Rule == nil {
		cfg.Rule = gate.NewRule(gate.Config{Log: cfg.Log})
	}
	return &Harness{
		rule:        cfg.Rule,
		log:         cfg.Log,
		parallel:    cfg.Parallel,
		concurrency: cfg.Concurrency,
		tracer:      otel.Tracer("skipgate harness"),
	}
}

// Run executes every method of every fixture and returns the classified
// outcomes. The returned error is only set when ctx ends before all fixtures
// have started.
func (h *Harness) Run(ctx context.Context, fixtures ...Fixture) (*Result, error) {
	runID := uuid.New().String()
	collector := NewCollector()
	h.log.Debug("Running fixtures", "run_id", runID, "fixtures", len(fixtures), "parallel", h.parallel)

	if h.parallel {
		p := pool.New().WithContext(ctx).WithCancelOnError()
		if h.concurrency > 0 {
			p = p.WithMaxGoroutines(h.concurrency)
		}
		for _, f := range fixtures {
			p.Go(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				h.runFixture(ctx, runID, f, collector)
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			return nil, err
		}
	} else {
		for _, f := range fixtures {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			h.runFixture(ctx, runID, f, collector)
		}
	}

	result := collector.Result(runID)
	metrics.RecordRun(runID, result.Status, result.Duration)
	h.log.Info("Run finished", "run_id", runID, "status", result.Status,
		"completed", result.Stats.Completed, "ignored", result.Stats.SkippedPermanently,
		"skipped", result.Stats.SkippedByGate, "failed", result.Stats.Failed)
	return result, nil
}

// runFixture runs the methods of f in order. The first resolution failure is
// recorded against the fixture and ends it.
func (h *Harness) runFixture(ctx context.Context, runID string, f Fixture, collector *Collector) {
	ctx, span := h.tracer.Start(ctx, fmt.Sprintf("fixture %s", f.Name))
	defer span.End()

	for _, m := range f.Methods {
		name := f.Name + "/" + m.Name
		if m.Ignored {
			h.record(runID, collector, types.Outcome{
				Name:    name,
				Fixture: f.Name,
				Kind:    types.OutcomeSkippedPermanently,
			})
			continue
		}

		if err := h.runMethod(ctx, runID, f, m, name, collector); err != nil {
			span.RecordError(err)
			h.log.Warn("Fixture failed", "fixture", f.Name, "method", m.Name, "err", err)
			h.record(runID, collector, types.Outcome{
				Name:         f.Name,
				Fixture:      f.Name,
				Kind:         types.OutcomeFailed,
				Error:        err,
				FixtureLevel: true,
			})
			return
		}
	}
}

// runMethod gates and executes one method. It returns an error only when the
// method's conditions could not be resolved.
func (h *Harness) runMethod(ctx context.Context, runID string, f Fixture, m Method, name string, collector *Collector) error {
	start := time.Now()
	instance := f.New()

	stmt, err := h.apply(ctx, m, instance)
	if err != nil {
		return err
	}

	t := newCommon(name, h.log)
	t.run(func(t T) {
		stmt(t)
	})

	o := types.Outcome{
		Name:     name,
		Fixture:  f.Name,
		Duration: time.Since(start),
	}
	switch {
	case t.Failed():
		o.Kind = types.OutcomeFailed
		o.Error = t.failure()
	case t.Skipped():
		o.Kind = SkipKind(t.skipMsg)
		o.Message = t.skipMsg
	default:
		o.Kind = types.OutcomeCompleted
	}
	h.record(runID, collector, o)
	return nil
}

// apply resolves the gate for one method. A panic raised while constructing a
// condition is returned as the resolution error.
func (h *Harness) apply(ctx context.Context, m Method, instance any) (stmt gate.Statement, err error) {
	defer func() {
		if r := recover(); r != nil {
			stmt, err = nil, panicError(r)
		}
	}()
	base := func(t gate.T) {
		m.Run(instance, t.(T))
	}
	return h.rule.Apply(ctx, base, m.Conditions, instance)
}

func (h *Harness) record(runID string, collector *Collector, o types.Outcome) {
	if !collector.Record(o) {
		h.log.Debug("Outcome already recorded", "name", o.Name, "kind", o.Kind)
		return
	}
	metrics.RecordOutcome(runID, o)
}
