package plugin

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// Plugin is the capability every loaded plugin instance provides.
type Plugin interface {
	// Name returns a human-readable name used in diagnostics.
	Name() string
}

// Initializer is implemented by plugins that need a second setup phase once
// the whole load they belong to has completed.
type Initializer interface {
	Init(ctx context.Context) error
}

// Destroyer is implemented by plugins that hold resources which must be
// released when the host shuts down.
type Destroyer interface {
	Destroy(ctx context.Context) error
}

// Descriptor declares a loadable plugin and the plugins it requires.
// H is the type of the host context passed to every constructor.
type Descriptor[H any] interface {
	// ID returns the plugin identity used for deduplication and lookup.
	ID() ID

	// Requires returns the plugins that must be loaded first, in order.
	Requires() []Descriptor[H]

	// New constructs the plugin instance. It may block; ctx is cancelled
	// when the load it belongs to fails elsewhere.
	New(ctx context.Context, host H) (Plugin, error)
}

// Factory constructs a plugin instance for a host.
type Factory[H any] func(ctx context.Context, host H) (Plugin, error)

// Spec is a Descriptor assembled from an ID, a factory and a requires list.
type Spec[H any] struct {
	id       ID
	factory  Factory[H]
	requires []Descriptor[H]
}

// Define creates a Spec descriptor.
func Define[H any](id ID, factory Factory[H], requires ...Descriptor[H]) *Spec[H] {
	return &Spec[H]{
		id:       id,
		factory:  factory,
		requires: requires,
	}
}

// Require appends dependencies after creation, which allows descriptors to
// reference each other.
func (s *Spec[H]) Require(more ...Descriptor[H]) *Spec[H] {
	s.requires = append(s.requires, more...)
	return s
}

// ID implements Descriptor.
func (s *Spec[H]) ID() ID {
	return s.id
}

// Requires implements Descriptor.
func (s *Spec[H]) Requires() []Descriptor[H] {
	return s.requires
}

// New implements Descriptor.
func (s *Spec[H]) New(ctx context.Context, host H) (Plugin, error) {
	return s.factory(ctx, host)
}

// Validate reports whether the descriptor can construct anything at all.
func (s *Spec[H]) Validate() error {
	if s.factory == nil {
		return errors.New("no factory")
	}
	return nil
}

// validator is the optional hook a descriptor implements to take part in
// contract validation.
type validator interface {
	Validate() error
}

// Validate checks d against the plugin contract without constructing it.
// The returned error, if any, is a *ContractViolationError.
func Validate[H any](d Descriptor[H]) error {
	if isNil(d) {
		return &ContractViolationError{Reason: "descriptor is nil"}
	}

	id := d.ID()
	if !id.Valid() {
		return &ContractViolationError{ID: id, Reason: fmt.Sprintf("invalid identifier %q", id)}
	}

	if v, ok := d.(validator); ok {
		if err := v.Validate(); err != nil {
			return &ContractViolationError{ID: id, Reason: err.Error()}
		}
	}

	for i, req := range d.Requires() {
		if isNil(req) {
			return &ContractViolationError{ID: id, Reason: fmt.Sprintf("requires[%d] is nil", i)}
		}
	}

	return nil
}

// isNil reports whether v is nil or an interface holding a nil pointer.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
