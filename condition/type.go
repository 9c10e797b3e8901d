package condition

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNoConstructor is reported for a condition type declared without a usable constructor.
var ErrNoConstructor = errors.New("no constructor declared")

var errorType = reflect.TypeFor[error]()

// Type references a condition type together with the way to construct it. A
// test declares the conditions it is gated on as an ordered list of Types.
//
// A standalone type is constructed from nothing. A bound type is constructed
// from the fixture instance the gated test runs against, and may only be used
// by fixtures assignable to its owner type.
type Type struct {
	typ   reflect.Type
	owner reflect.Type
	build func(fixture any) (any, error)
	err   error
}

// Of references the condition type C without a constructor. Resolving it
// always fails; it exists for types whose construction is not exposed.
func Of[C any]() Type {
	return Type{typ: reflect.TypeFor[C](), err: ErrNoConstructor}
}

// Standalone declares a condition type constructed without a fixture.
func Standalone[C any](ctor func() C) Type {
	if ctor == nil {
		return Of[C]()
	}
	return Type{
		typ: reflect.TypeFor[C](),
		build: func(any) (any, error) {
			return ctor(), nil
		},
	}
}

// StandaloneE is Standalone for constructors that can fail.
func StandaloneE[C any](ctor func() (C, error)) Type {
	if ctor == nil {
		return Of[C]()
	}
	return Type{
		typ: reflect.TypeFor[C](),
		build: func(any) (any, error) {
			return ctor()
		},
	}
}

// Bound declares a condition type that captures the fixture of type F it gates.
func Bound[F, C any](ctor func(F) C) Type {
	if ctor == nil {
		return Of[C]()
	}
	return BoundE(func(f F) (C, error) {
		return ctor(f), nil
	})
}

// BoundE is Bound for constructors that can fail.
func BoundE[F, C any](ctor func(F) (C, error)) Type {
	if ctor == nil {
		return Of[C]()
	}
	owner := reflect.TypeFor[F]()
	return Type{
		typ:   reflect.TypeFor[C](),
		owner: owner,
		build: func(fixture any) (any, error) {
			f, ok := fixture.(F)
			if !ok {
				return nil, fmt.Errorf("fixture %T is not a %s", fixture, owner)
			}
			return ctor(f)
		},
	}
}

// Constructor declares a condition type from an arbitrary constructor function,
// inspected at run time: func() C and func() (C, error) are standalone,
// func(F) C and func(F) (C, error) are bound to F. Any other shape is kept and
// reported when the type is resolved.
func Constructor(ctor any) Type {
	v := reflect.ValueOf(ctor)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return Type{typ: reflect.TypeOf(ctor), err: fmt.Errorf("constructor must be a non-nil function, got %T", ctor)}
	}

	ft := v.Type()
	t := Type{typ: ft}
	if ft.NumOut() > 0 {
		t.typ = ft.Out(0)
	}
	if ft.NumIn() == 1 && !ft.IsVariadic() && canHoldFixture(ft.In(0)) {
		t.owner = ft.In(0)
	}

	switch {
	case ft.NumOut() == 0 || ft.NumOut() > 2 || (ft.NumOut() == 2 && ft.Out(1) != errorType):
		t.err = fmt.Errorf("constructor %s must return the condition and an optional error", ft)
		return t
	case ft.IsVariadic():
		t.err = fmt.Errorf("variadic constructor %s is not supported", ft)
		return t
	case ft.NumIn() > 1:
		t.err = fmt.Errorf("constructor %s takes %d arguments, want none or the fixture", ft, ft.NumIn())
		return t
	case ft.NumIn() == 1 && !canHoldFixture(ft.In(0)):
		t.err = fmt.Errorf("constructor %s takes a %s, which cannot hold a fixture", ft, ft.In(0))
		return t
	}

	t.build = func(fixture any) (any, error) {
		var in []reflect.Value
		if t.owner != nil {
			in = []reflect.Value{reflect.ValueOf(fixture)}
		}
		out := v.Call(in)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}
	return t
}

// Name returns the fully-qualified name of the condition type.
func (t Type) Name() string {
	return qualifiedName(t.typ)
}

// SimpleName returns the unqualified name of the condition type.
func (t Type) SimpleName() string {
	return simpleName(t.typ)
}

// Standalone reports whether the type is constructed without a fixture.
func (t Type) Standalone() bool {
	return t.owner == nil
}

// Owner returns the fixture type a bound condition is declared for, or nil.
func (t Type) Owner() reflect.Type {
	return t.owner
}

// ConstructorError reports why the type cannot be constructed, or nil.
func (t Type) ConstructorError() error {
	if t.err != nil {
		return t.err
	}
	if t.build == nil {
		return ErrNoConstructor
	}
	return nil
}

// Construct invokes the constructor. Errors returned and panics raised by the
// constructor itself reach the caller untouched.
func (t Type) Construct(fixture any) (any, error) {
	if err := t.ConstructorError(); err != nil {
		return nil, err
	}
	return t.build(fixture)
}

func (t Type) String() string {
	return t.Name()
}

func canHoldFixture(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Struct, reflect.Interface:
		return true
	default:
		return false
	}
}
