package plugin

import (
	"errors"
	"fmt"
	"strings"
)

// Plugin loading errors.
var (
	// ErrContractViolation is matched by errors for descriptors that do not
	// satisfy the plugin contract.
	ErrContractViolation = errors.New("plugin contract violation")

	// ErrInstantiation is matched by errors raised while constructing a plugin.
	ErrInstantiation = errors.New("plugin instantiation failed")

	// ErrCyclicDependency is returned when plugins have circular dependencies.
	ErrCyclicDependency = errors.New("cyclic plugin dependency detected")

	// ErrNilInstance is the cause recorded when a factory returns no plugin and no error.
	ErrNilInstance = errors.New("factory returned a nil plugin")
)

// ContractViolationError reports a descriptor that cannot be loaded as a plugin.
// Its constructor is never invoked.
type ContractViolationError struct {
	// ID is the offending descriptor's identity. It is empty when the
	// descriptor itself is nil.
	ID ID
	// Reason describes which part of the contract was violated.
	Reason string
}

// Error implements the error interface.
func (e *ContractViolationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", ErrContractViolation, e.Reason)
	}
	return fmt.Sprintf("plugin %q: %s: %s", e.ID, ErrContractViolation, e.Reason)
}

// Is reports whether target is ErrContractViolation.
func (e *ContractViolationError) Is(target error) bool {
	return target == ErrContractViolation
}

// InstantiationError reports a failure inside a plugin's constructor.
type InstantiationError struct {
	// ID is the plugin whose constructor failed.
	ID ID
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *InstantiationError) Error() string {
	return fmt.Sprintf("plugin %q: %s: %v", e.ID, ErrInstantiation, e.Err)
}

// Unwrap returns the underlying cause.
func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInstantiation.
func (e *InstantiationError) Is(target error) bool {
	return target == ErrInstantiation
}

// CyclicDependencyError reports a dependency cycle found while planning a load.
type CyclicDependencyError struct {
	// Cycle lists the plugins along the cycle; the first ID is repeated at the end.
	Cycle []ID
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		parts[i] = string(id)
	}
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(parts, " -> "))
}

// Is reports whether target is ErrCyclicDependency.
func (e *CyclicDependencyError) Is(target error) bool {
	return target == ErrCyclicDependency
}
