package environ

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var ErrDefined = errors.New("undefined identifier")

// Environ is a lexically scoped symbol table: lookups fall back to the
// enclosing table when an identifier is not defined locally.
type Environ[T any] interface {
	Resolve(string) (T, error)
	Define(string, T)
	Defined(string) bool
	Names() []string
	Len() int
}

type Env[T any] struct {
	values map[string]T
	parent Environ[T]
}

func Empty[T any]() Environ[T] {
	return Enclosed[T](nil)
}

func Enclosed[T any](parent Environ[T]) Environ[T] {
	e := Env[T]{
		values: make(map[string]T),
		parent: parent,
	}
	return &e
}

func (e *Env[T]) Len() int {
	return len(e.values)
}

// Names returns the identifiers visible from this scope, the local ones
// shadowing the ones of the enclosing scopes.
func (e *Env[T]) Names() []string {
	set := make(map[string]struct{})
	for k := range e.values {
		set[k] = struct{}{}
	}
	if e.parent != nil {
		for _, k := range e.parent.Names() {
			set[k] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

func (e *Env[T]) Define(ident string, value T) {
	e.values[ident] = value
}

// Defined only reports identifiers of the local scope.
func (e *Env[T]) Defined(ident string) bool {
	_, ok := e.values[ident]
	return ok
}

func (e *Env[T]) Resolve(ident string) (T, error) {
	value, ok := e.values[ident]
	if ok {
		return value, nil
	}
	if e.parent != nil {
		return e.parent.Resolve(ident)
	}
	var t T
	return t, fmt.Errorf("%s: %w", ident, ErrDefined)
}

func (e *Env[T]) Parent() Environ[T] {
	return e.parent
}

func (e *Env[T]) Unwrap() Environ[T] {
	if e.parent == nil {
		return e
	}
	return e.parent
}

func (e *Env[T]) Merge(other Environ[T]) {
	x, ok := other.(*Env[T])
	if !ok {
		return
	}
	maps.Copy(e.values, x.values)
}

func (e *Env[T]) Clone() Environ[T] {
	var x Env[T]
	x.values = make(map[string]T)
	maps.Copy(x.values, e.values)

	if c, ok := e.parent.(interface{ Clone() Environ[T] }); ok {
		x.parent = c.Clone()
	}
	return &x
}

// Unwrap returns the scope enclosing env, or env itself for a top level
// scope.
func Unwrap[T any](env Environ[T]) Environ[T] {
	if u, ok := env.(interface{ Unwrap() Environ[T] }); ok {
		return u.Unwrap()
	}
	return env
}
