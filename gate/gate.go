// Package gate decides whether a test runs or is skipped, based on the
// conditions declared for it.
package gate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-skipgate/condition"
	"github.com/ethereum-optimism/infra/op-skipgate/metrics"
	"github.com/ethereum-optimism/infra/op-skipgate/registry"
	"github.com/ethereum-optimism/infra/op-skipgate/types"
)

// SkipPrefix starts every skip message produced by the gate.
const SkipPrefix = "Ignored by "

// T is the part of a test handle the gate needs to signal its verdict.
// *testing.T satisfies it.
type T interface {
	Helper()
	Skip(args ...any)
	Fatal(args ...any)
}

// Statement is the unit of work executed for one test method.
type Statement func(t T)

// Decide scans conds in order and skips on the first condition voting to skip.
// An empty list always proceeds.
func Decide(conds []condition.Condition) types.Verdict {
	for _, c := range conds {
		if !condition.NeedSkip(c) {
			continue
		}
		msg := SkipPrefix + condition.Name(c)
		if reason := condition.Reason(c); reason != "" {
			msg += ": " + reason
		}
		return types.Skip(msg)
	}
	return types.Proceed()
}

// Config contains gate configuration
type Config struct {
	Log log.Logger
	// Registry supplies the declarations used by CheckDeclared; optional.
	Registry *registry.Registry
}

// Rule resolves the conditions declared on a test against its fixture and
// applies the resulting verdict. A Rule holds no per-test state and may be
// shared by tests running in parallel.
type Rule struct {
	log      log.Logger
	registry *registry.Registry
	resolver *registry.Resolver
	tracer   trace.Tracer
}

// NewRule creates a new gate rule
func NewRule(cfg Config) *Rule {
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	resolver := registry.NewResolver(cfg.Log)
	if cfg.Registry != nil {
		resolver = cfg.Registry.Resolver()
	}
	return &Rule{
		log:      cfg.Log,
		registry: cfg.Registry,
		resolver: resolver,
		tracer:   otel.Tracer("skip gate"),
	}
}

// Evaluate resolves decls against fixture and decides. Resolution errors are
// returned as they were raised by the resolver or the condition constructor.
func (r *Rule) Evaluate(ctx context.Context, decls []condition.Type, fixture any) (types.Verdict, error) {
	_, span := r.tracer.Start(ctx, "skipgate.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("fixture", fmt.Sprintf("%T", fixture)),
		attribute.Int("declarations", len(decls)),
	)

	conds, err := r.resolver.Resolve(decls, fixture)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "condition resolution failed")
		metrics.RecordResolutionError(resolutionKind(err), err)
		return types.Verdict{}, err
	}

	v := Decide(conds)
	span.SetAttributes(attribute.String("verdict", v.Label()))
	metrics.RecordVerdict(v)
	if v.Skip {
		r.log.Debug("Gate verdict", "verdict", v.Label(), "message", v.Message)
	}
	return v, nil
}

// Apply returns the statement to execute in place of base: base itself when the
// test proceeds, or a statement that only signals the skip.
func (r *Rule) Apply(ctx context.Context, base Statement, decls []condition.Type, fixture any) (Statement, error) {
	v, err := r.Evaluate(ctx, decls, fixture)
	if err != nil {
		return nil, err
	}
	if !v.Skip {
		return base, nil
	}
	return func(t T) {
		t.Helper()
		t.Skip(v.Message)
	}, nil
}

// Check gates the calling test: it skips t when one of decls votes to skip and
// fails t when the conditions cannot be resolved. Call it first in the test body.
func (r *Rule) Check(t testing.TB, fixture any, decls ...condition.Type) {
	t.Helper()
	v, err := r.Evaluate(t.Context(), decls, fixture)
	if err != nil {
		t.Fatal(err)
		return
	}
	if v.Skip {
		t.Skip(v.Message)
	}
}

// CheckDeclared is Check with the conditions the registry declares for t.Name().
func (r *Rule) CheckDeclared(t testing.TB, fixture any) {
	t.Helper()
	if r.registry == nil {
		t.Fatal("skip gate: no registry configured")
		return
	}
	decls, err := r.registry.Declarations(t.Name())
	if err != nil {
		t.Fatal(err)
		return
	}
	r.Check(t, fixture, decls...)
}

var defaultRule = NewRule(Config{})

// Check gates the calling test with a rule using the root logger.
func Check(t testing.TB, fixture any, decls ...condition.Type) {
	t.Helper()
	defaultRule.Check(t, fixture, decls...)
}

// resolutionKind labels a resolution error for metrics.
func resolutionKind(err error) string {
	var declErr *registry.InvalidDeclarationError
	var ctorErr *registry.InvalidConstructorError
	switch {
	case errors.As(err, &declErr):
		return "declaration"
	case errors.As(err, &ctorErr):
		return "constructor"
	case errors.Is(err, condition.ErrNoDecision):
		return "no_decision"
	default:
		return "construction"
	}
}
