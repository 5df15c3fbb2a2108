package container

import (
	"fmt"
	"reflect"
	"sync"
)

// Introspector describes constructors and methods to the container.
type Introspector interface {
	// Constructor returns the constructor registered for id, if any.
	Constructor(id string) (*Callable, bool)
	// Method describes method on the live value target.
	Method(target any, method string) (*Callable, error)
}

// TypeRegistry is the default Introspector: constructors are registered
// explicitly, keyed by the name of the type they produce.
type TypeRegistry struct {
	mu           sync.RWMutex
	constructors map[string]*Callable
	methods      map[string]map[string]*MethodSpec // type → method
}

// MethodSpec holds what Invoke needs to know about a method beyond its
// signature: parameter names and defaults.
type MethodSpec struct {
	mu       sync.Mutex
	names    []string
	defaults map[string]any
}

// WithDefault declares the default used for the named parameter when no
// preset is supplied.
//
//	types.DescribeMethod(key, "Index", "page").WithDefault("page", 1)
func (m *MethodSpec) WithDefault(name string, value any) *MethodSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.defaults == nil {
		m.defaults = make(map[string]any)
	}
	m.defaults[name] = value
	return m
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		constructors: make(map[string]*Callable),
		methods:      make(map[string]map[string]*MethodSpec),
	}
}

// Add registers ctor under the name of its result type and returns that
// name.
//
//	key, err := types.Add(NewUserService, "repo", "logger")  // "*example.com/shop/app.UserService"
func (r *TypeRegistry) Add(ctor any, names ...string) (string, error) {
	cb, err := Describe(ctor, names...)
	if err != nil {
		return "", err
	}
	result := cb.Result()
	if result == nil {
		return "", fmt.Errorf("%w: %s produces no value", ErrNotCallable, cb.fn.Type())
	}
	key := typeKey(result)
	r.Define(key, cb)
	return key, nil
}

// AddNamed registers ctor under id.
func (r *TypeRegistry) AddNamed(id string, ctor any, names ...string) error {
	cb, err := Describe(ctor, names...)
	if err != nil {
		return err
	}
	r.Define(id, cb)
	return nil
}

// Define registers an already described constructor under id, replacing
// any previous one. Finish configuring cb (WithDefault) before defining it.
func (r *TypeRegistry) Define(id string, cb *Callable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[id] = cb
}

// DescribeMethod records parameter names for a method, so Invoke can
// match presets against them. Defaults are added on the returned spec.
//
//	types.DescribeMethod(container.Key[*UserController](), "Show", "request", "id")
func (r *TypeRegistry) DescribeMethod(typeName, method string, names ...string) *MethodSpec {
	spec := &MethodSpec{names: names}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.methods[typeName] == nil {
		r.methods[typeName] = make(map[string]*MethodSpec)
	}
	r.methods[typeName][method] = spec
	return spec
}

func (r *TypeRegistry) Constructor(id string) (*Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.constructors[id]
	return cb, ok
}

func (r *TypeRegistry) Method(target any, method string) (*Callable, error) {
	v := reflect.ValueOf(target)
	if !v.IsValid() {
		return nil, ErrInvalidTarget
	}
	m := v.MethodByName(method)
	if !m.IsValid() {
		return nil, fmt.Errorf("%w: %s has no method %q", ErrUnknownMethod, v.Type(), method)
	}

	r.mu.RLock()
	spec := r.methods[typeKey(v.Type())][method]
	r.mu.RUnlock()

	var names []string
	defaults := make(map[string]any)
	if spec != nil {
		spec.mu.Lock()
		names = spec.names
		for k, d := range spec.defaults {
			defaults[k] = d
		}
		spec.mu.Unlock()
	}

	cb, err := describeValue(m, names)
	if err != nil {
		return nil, err
	}
	for name, d := range defaults {
		if !cb.setDefault(name, d) {
			return nil, fmt.Errorf("%w: default for unknown parameter %q of %s.%s",
				ErrInvalidDefinition, name, v.Type(), method)
		}
	}
	return cb, nil
}

// Key returns the identifier of type T, as used for auto-wired parameters.
//
//	container.Key[*UserService]()   // "*example.com/shop/app.UserService"
//	container.Key[UserRepository]() // "example.com/shop/app.UserRepository"
func Key[T any]() string {
	return typeKey(reflect.TypeFor[T]())
}

// TypeKey returns the identifier of v's type. A nil pointer to an interface
// yields the interface's identifier.
//
//	container.TypeKey((*UserRepository)(nil)) // "example.com/shop/app.UserRepository"
func TypeKey(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Interface {
		t = t.Elem()
	}
	return typeKey(t)
}

// typeKey names t by import path rather than package name, so same-named
// packages never share an identifier. Unnamed composites and builtins keep
// reflect's spelling.
func typeKey(t reflect.Type) string {
	switch {
	case t.Kind() == reflect.Pointer && t.Name() == "":
		return "*" + typeKey(t.Elem())
	case t.Name() != "" && t.PkgPath() != "":
		return t.PkgPath() + "." + t.Name()
	default:
		return t.String()
	}
}
