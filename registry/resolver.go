package registry

import (
	"fmt"
	"reflect"

	"github.com/ethereum-optimism/infra/op-skipgate/condition"
	"github.com/ethereum/go-ethereum/log"
)

// Resolver turns the condition types declared on a test into live conditions.
// It keeps no state between calls: every call constructs fresh instances.
type Resolver struct {
	log log.Logger
}

// NewResolver creates a new resolver
func NewResolver(logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.Root()
	}
	return &Resolver{log: logger}
}

// Resolve constructs one condition per declaration, in declaration order.
//
// A bound type is only constructed when fixture is assignable to its owner;
// otherwise an *InvalidDeclarationError is returned. A type without a usable
// constructor yields an *InvalidConstructorError. Errors returned by a
// constructor are passed through unwrapped, and panics are not recovered.
func (r *Resolver) Resolve(decls []condition.Type, fixture any) ([]condition.Condition, error) {
	conds := make([]condition.Condition, 0, len(decls))
	for _, decl := range decls {
		c, err := r.resolve(decl, fixture)
		if err != nil {
			r.log.Debug("Condition resolution failed", "condition", decl.Name(), "fixture", fmt.Sprintf("%T", fixture), "err", err)
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func (r *Resolver) resolve(decl condition.Type, fixture any) (condition.Condition, error) {
	if !decl.Standalone() && !declaredFor(decl.Owner(), fixture) {
		return nil, &InvalidDeclarationError{TypeName: decl.Name()}
	}
	if err := decl.ConstructorError(); err != nil {
		return nil, &InvalidConstructorError{TypeName: decl.Name(), Err: err}
	}

	v, err := decl.Construct(fixture)
	if err != nil {
		return nil, err
	}

	c, err := condition.Adapt(v)
	if err != nil {
		return nil, fmt.Errorf("conditional class '%s': %w", decl.Name(), err)
	}
	return c, nil
}

// declaredFor reports whether a fixture instance may be handed to a
// constructor bound to owner: the fixture type must be owner itself or
// assignable to it.
func declaredFor(owner reflect.Type, fixture any) bool {
	if owner == nil || fixture == nil {
		return false
	}
	return reflect.TypeOf(fixture).AssignableTo(owner)
}
