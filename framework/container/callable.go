package container

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeFor[error]()

// Parameter describes one parameter of a constructor or method.
type Parameter struct {
	Name       string
	Type       reflect.Type
	HasDefault bool
	Default    any
}

// TypeName is the identifier a resolvable parameter is fetched by.
func (p Parameter) TypeName() string {
	if p.Type == nil {
		return ""
	}
	return typeKey(p.Type)
}

// Resolvable reports whether the parameter names a user-defined type the
// container can fetch. Builtin kinds, unnamed composites and the empty
// interface are not resolvable.
func (p Parameter) Resolvable() bool {
	t := p.Type
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return false
	}
	return t.Kind() != reflect.Interface || t.NumMethod() > 0
}

// Callable is a function or bound method together with its parameter list.
type Callable struct {
	fn     reflect.Value
	params []Parameter
}

// Describe reflects over fn. Go keeps no parameter names at runtime, so
// they are given positionally; missing names become "arg0", "arg1", ...
//
//	cb, err := container.Describe(NewServer, "logger", "port")
//	cb.WithDefault("port", 8080)
func Describe(fn any, names ...string) (*Callable, error) {
	return describeValue(reflect.ValueOf(fn), names)
}

func describeValue(v reflect.Value, names []string) (*Callable, error) {
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, typeString(v))
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic %s", ErrNotCallable, t)
	}
	switch t.NumOut() {
	case 0, 1:
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("%w: second result of %s must be error", ErrNotCallable, t)
		}
	default:
		return nil, fmt.Errorf("%w: %s returns too many values", ErrNotCallable, t)
	}
	if len(names) > t.NumIn() {
		return nil, fmt.Errorf("%w: %d names for %s", ErrNotCallable, len(names), t)
	}

	params := make([]Parameter, t.NumIn())
	for i := range params {
		name := fmt.Sprintf("arg%d", i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		params[i] = Parameter{Name: name, Type: t.In(i)}
	}
	return &Callable{fn: v, params: params}, nil
}

func typeString(v reflect.Value) string {
	if !v.IsValid() {
		return "<nil>"
	}
	return v.Type().String()
}

// WithDefault declares the default used for the named parameter when no
// preset is supplied. It panics on an unknown name.
func (c *Callable) WithDefault(name string, value any) *Callable {
	if !c.setDefault(name, value) {
		panic(fmt.Sprintf("container: %s has no parameter %q", c.fn.Type(), name))
	}
	return c
}

func (c *Callable) setDefault(name string, value any) bool {
	for i := range c.params {
		if c.params[i].Name == name {
			c.params[i].HasDefault = true
			c.params[i].Default = value
			return true
		}
	}
	return false
}

// Parameters returns a copy of the parameter list in declaration order.
func (c *Callable) Parameters() []Parameter {
	return append([]Parameter(nil), c.params...)
}

// Result is the type of the value the callable produces, or nil when it
// produces none.
func (c *Callable) Result() reflect.Type {
	t := c.fn.Type()
	if t.NumOut() == 0 || t.Out(0) == errorType {
		return nil
	}
	return t.Out(0)
}

// Call invokes the callable positionally. A trailing error result is
// returned as the error.
func (c *Callable) Call(args []any) (any, error) {
	in, err := c.prepare(args)
	if err != nil {
		return nil, err
	}
	return c.call(in)
}

func (c *Callable) prepare(args []any) ([]reflect.Value, error) {
	if len(args) != len(c.params) {
		return nil, fmt.Errorf("%w: %s wants %d arguments, got %d",
			ErrTypeMismatch, c.fn.Type(), len(c.params), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		p := c.params[i]
		if arg == nil {
			if !nillable(p.Type) {
				return nil, fmt.Errorf("%w: nil for parameter %q (%s)", ErrTypeMismatch, p.Name, p.Type)
			}
			in[i] = reflect.Zero(p.Type)
			continue
		}
		v := reflect.ValueOf(arg)
		if !v.Type().AssignableTo(p.Type) {
			return nil, fmt.Errorf("%w: %s for parameter %q (%s)", ErrTypeMismatch, v.Type(), p.Name, p.Type)
		}
		in[i] = v
	}
	return in, nil
}

func (c *Callable) call(in []reflect.Value) (any, error) {
	out := c.fn.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if c.fn.Type().Out(0) == errorType {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	default:
		return out[0].Interface(), asError(out[1])
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}
