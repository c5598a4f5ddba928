// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package codec

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/creachadair/pipechan/code"
)

// A Registry associates type names with Go types. Codecs record the name of
// a value's dynamic type on encode and use the registry to reconstruct a value
// of that same type on decode. The methods of a *Registry are safe for
// concurrent use by multiple goroutines.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

// NewRegistry returns a registry with the predeclared scalar types, []byte,
// []any, and map[string]any already registered under their Go names.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
	for _, v := range []any{
		false, "",
		int(0), int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0),
		[]byte(nil), []any(nil), map[string]any(nil),
	} {
		t := reflect.TypeOf(v)
		if err := r.add(t, t.String()); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds T to r under the given name. If name == "", the
// fully-qualified name of T is used, which is the import path and name for a
// defined type and the Go syntax of the type otherwise.
//
// Registering the same name and type again is not an error. It is an error
// to register a name already bound to a different type, or a type already
// bound to a different name.
func Register[T any](r *Registry, name string) error {
	return r.add(reflect.TypeFor[T](), name)
}

// MustRegister calls Register and panics if it reports an error.
func MustRegister[T any](r *Registry, name string) {
	if err := Register[T](r, name); err != nil {
		panic(err)
	}
}

// TypeName returns the fully-qualified name of t.
func TypeName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

func (r *Registry) add(t reflect.Type, name string) error {
	if t == nil {
		return fmt.Errorf("cannot register a nil type")
	}
	if name == "" {
		name = TypeName(t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old, nameOK := r.byName[name]
	oldName, typeOK := r.byType[t]
	if nameOK && old == t {
		return nil
	} else if nameOK {
		return fmt.Errorf("name %q is already registered for %v", name, old)
	} else if typeOK {
		return fmt.Errorf("type %v is already registered as %q", t, oldName)
	}
	r.byName[name] = t
	r.byType[t] = name
	return nil
}

// Name reports the registered name of t. It reports an error wrapping
// code.UnknownType if t has not been registered.
func (r *Registry) Name(t reflect.Type) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.byType[t]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: %v is not registered", code.UnknownType.Err(), t)
}

// Type reports the type registered for name. It reports an error wrapping
// code.UnknownType if name has not been registered.
func (r *Registry) Type(name string) (reflect.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.byName[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: no type registered for %q", code.UnknownType.Err(), name)
}
