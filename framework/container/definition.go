package container

// Factory builds a value. It receives the container that is resolving it,
// and may fetch other identifiers from it.
//
// Fetch through c, never through a container captured from outside. c
// knows which resolution it belongs to, so reaching a singleton that is
// still being frozen by that resolution fails with ErrCircularDependency.
// A captured container cannot tell, and waits for the freeze to finish,
// which never happens when the caller is the freezing goroutine itself.
type Factory func(c *Container) (any, error)

// Kind tags the variant held by a Definition.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindArguments
	KindFactory
	KindInstance
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindArguments:
		return "arguments"
	case KindFactory:
		return "factory"
	case KindInstance:
		return "instance"
	case KindAlias:
		return "alias"
	default:
		return "invalid"
	}
}

// Argument is one planned constructor or method argument: either a literal
// Value, or the ID of a container entry to fetch at build time.
type Argument struct {
	Name    string
	Value   any
	ID      string
	Resolve bool
}

// Definition is the recipe an identifier is built from. The zero value is
// invalid and fails at build time.
type Definition struct {
	kind    Kind
	ctor    *Callable
	args    []Argument
	factory Factory
	value   any
	alias   string

	// set on the placeholders of deferred providers
	deferred *deferredLoad
}

// Arguments builds a value by calling ctor with args, fetching every
// argument marked Resolve first.
func Arguments(ctor *Callable, args []Argument) Definition {
	return Definition{kind: KindArguments, ctor: ctor, args: args}
}

// FromFactory builds a value by calling f.
func FromFactory(f Factory) Definition {
	return Definition{kind: KindFactory, factory: f}
}

// Instance always yields v itself.
func Instance(v any) Definition {
	return Definition{kind: KindInstance, value: v}
}

// Alias delegates to another identifier.
func Alias(id string) Definition {
	return Definition{kind: KindAlias, alias: id}
}

func (d Definition) Kind() Kind { return d.kind }

// Args returns a copy of the planned arguments of a KindArguments definition.
func (d Definition) Args() []Argument {
	return append([]Argument(nil), d.args...)
}

// Target returns the aliased identifier of a KindAlias definition.
func (d Definition) Target() string { return d.alias }

func (d Definition) valid() bool {
	switch d.kind {
	case KindArguments:
		return d.ctor != nil
	case KindFactory:
		return d.factory != nil
	case KindInstance, KindAlias:
		return true
	default:
		return false
	}
}
