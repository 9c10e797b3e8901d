package registry

import (
	"errors"
	"fmt"
)

// Message templates for resolution failures; %s is the fully-qualified
// condition type name.
const (
	InvalidClassDeclaration = "Conditional class '%s' is a member class but was not declared inside the test case using it.\n" +
		"Either make this class a static class, standalone class (by declaring it in its own file) " +
		"or move it inside the test case using it"
	InvalidClassConstructor = "Conditional class '%s' has no usable constructor: %v"
)

// ErrUnknownCondition is returned when a declaration names an unregistered condition.
var ErrUnknownCondition = errors.New("unknown condition")

// InvalidDeclarationError reports a bound condition type used by a fixture it
// was not declared for.
type InvalidDeclarationError struct {
	TypeName string
}

func (e *InvalidDeclarationError) Error() string {
	return fmt.Sprintf(InvalidClassDeclaration, e.TypeName)
}

// InvalidConstructorError reports a condition type that cannot be constructed
// under the standalone/bound rules.
type InvalidConstructorError struct {
	TypeName string
	Err      error
}

func (e *InvalidConstructorError) Error() string {
	return fmt.Sprintf(InvalidClassConstructor, e.TypeName, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *InvalidConstructorError) Unwrap() error {
	return e.Err
}

// IsResolutionError reports whether err was raised by the resolver itself
// rather than by a condition's constructor.
func IsResolutionError(err error) bool {
	var declErr *InvalidDeclarationError
	var ctorErr *InvalidConstructorError
	return errors.As(err, &declErr) || errors.As(err, &ctorErr)
}
