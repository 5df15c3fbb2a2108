package container

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the IoC container — mirrors Laravel's Illuminate\Container\Container.
//
// An identifier is either absent, backed by a Definition, or frozen as a
// singleton. Identifiers with no definition that name a constructor known
// to the Introspector are auto-wired on first fetch.
//
// A Container is safe for concurrent use. The value handed to factories is
// a view of the same container that remembers which identifiers are being
// built and which resolution it belongs to, so dependency cycles through
// that view fail with ErrCircularDependency. See Factory for the one case
// that cannot be detected.
type Container struct {
	*state

	// identifiers being built by this view, outermost first
	chain []string

	// resolution this view belongs to; nil for the container itself
	token *buildToken
}

// buildToken identifies one top-level resolution and every view derived
// from it. Singletons being frozen record the token of their builder.
type buildToken struct{ _ byte }

type state struct {
	mu sync.RWMutex

	// id → recipe
	definitions map[string]Definition

	// id → frozen singleton value
	singletons map[string]any

	// id → lock held across register/build/freeze of a singleton
	locks map[string]*sync.Mutex

	// ids whose singleton build is in progress → builder
	freezing map[string]*buildToken

	types Introspector
	log   *zap.Logger
}

// Option configures a Container.
type Option func(*state)

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *state) {
		if l != nil {
			s.log = l
		}
	}
}

// WithIntrospector sets the source of constructor and method descriptions.
func WithIntrospector(i Introspector) Option {
	return func(s *state) {
		if i != nil {
			s.types = i
		}
	}
}

// New creates an empty container. The container is bound to itself as
// "container" and under Key[*Container]().
func New(opts ...Option) *Container {
	s := &state{
		definitions: make(map[string]Definition),
		singletons:  make(map[string]any),
		locks:       make(map[string]*sync.Mutex),
		freezing:    make(map[string]*buildToken),
		types:       NewTypeRegistry(),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	c := &Container{state: s}
	s.singletons["container"] = c
	s.singletons[Key[*Container]()] = c
	return c
}

// ── Registration ──────────────────────────────────────────────────────────────

// Register stores def under id. It fails only when id is frozen.
//
//	// Laravel: $app->bind(UserRepository::class, EloquentUserRepository::class)
//	c.Register(container.Key[UserRepository](), container.Alias(container.Key[*SQLUserRepository]()))
func (c *Container) Register(id string, def Definition) error {
	if c.selfFreezing(id) {
		return c.cycle(id)
	}
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return c.register(id, def, nil)
}

// register stores def; a non-nil builder marks id as freezing in the same
// critical section.
func (c *Container) register(id string, def Definition, builder *buildToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, frozen := c.singletons[id]; frozen {
		c.log.Warn("rejected re-registration of singleton", zap.String("id", id))
		return containerErr(id, "register", ErrFrozen, "'%s' is already a singleton", id)
	}
	c.definitions[id] = def
	if builder != nil {
		c.freezing[id] = builder
	}
	return nil
}

// RegisterSingleton registers def, builds it immediately and freezes the
// result as the value of id for the lifetime of the container.
//
//	// Laravel: $app->singleton(Cache::class, fn($app) => new RedisCache($app))
//	c.RegisterSingleton("cache", container.FromFactory(func(c *container.Container) (any, error) {
//	    return cache.NewRedis(container.MustResolve[*config.Config](c, "config")), nil
//	}))
func (c *Container) RegisterSingleton(id string, def Definition) error {
	if slices.Contains(c.chain, id) || c.selfFreezing(id) {
		return c.cycle(id)
	}
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	builder := c.ownToken()
	if err := c.register(id, def, builder); err != nil {
		return err
	}

	v, err := (&Container{state: c.state, chain: c.chain, token: builder}).build(id, def)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.freezing, id)
	if err != nil {
		return err
	}
	delete(c.definitions, id)
	c.singletons[id] = v
	c.log.Debug("singleton frozen", zap.String("id", id), zap.Stringer("kind", def.Kind()))
	return nil
}

func (c *Container) lockFor(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	return l
}

// selfFreezing reports whether this view belongs to the resolution that is
// freezing id.
func (c *Container) selfFreezing(id string) bool {
	if c.token == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.freezing[id] == c.token
}

// ownToken returns the view's token, or a fresh one for the container itself.
func (c *Container) ownToken() *buildToken {
	if c.token != nil {
		return c.token
	}
	return new(buildToken)
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Fetch resolves id: a frozen singleton is returned as is, a definition is
// built fresh, and a registered constructor is auto-wired, remembered as a
// definition and built. Anything else fails with *NotFoundError.
//
//	// Laravel: $app->make(UserRepository::class)
//	repo, err := c.Fetch("UserRepository")
func (c *Container) Fetch(id string) (any, error) {
	c.mu.RLock()
	if v, ok := c.singletons[id]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	def, ok := c.definitions[id]
	builder, freezing := c.freezing[id]
	c.mu.RUnlock()

	if freezing && builder == c.token {
		return nil, c.cycle(id)
	}
	if freezing {
		// another resolution is promoting id; wait for it instead of
		// building a second copy
		lock := c.lockFor(id)
		lock.Lock()
		lock.Unlock() //nolint:staticcheck // barrier
		return c.Fetch(id)
	}

	if !ok {
		var err error
		if def, err = c.autowire(id); err != nil {
			return nil, err
		}
	}
	return c.build(id, def)
}

// Get implements Lookup; it is Fetch.
func (c *Container) Get(id string) (any, error) {
	return c.Fetch(id)
}

// Has reports whether id has a definition or a frozen singleton. When it
// does, Fetch(id) never fails with *NotFoundError.
func (c *Container) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, hasDef := c.definitions[id]
	_, hasSingleton := c.singletons[id]
	return hasDef || hasSingleton
}

// autowire plans the constructor registered for id and commits the result
// as id's definition. Nothing is committed when planning fails.
func (c *Container) autowire(id string) (Definition, error) {
	ctor, ok := c.types.Constructor(id)
	if !ok {
		return Definition{}, &NotFoundError{ID: id}
	}
	args, err := plan(id, ctor, nil)
	if err != nil {
		return Definition{}, err
	}
	def := Arguments(ctor, args)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.definitions[id]; ok {
		return existing, nil
	}
	if _, frozen := c.singletons[id]; frozen {
		return Instance(c.singletons[id]), nil
	}
	c.definitions[id] = def
	c.log.Debug("auto-wired definition", zap.String("id", id), zap.Int("arguments", len(args)))
	return def, nil
}

// Autowire plans the constructor registered for typeID with presets and
// returns the resulting definition without registering it.
//
//	def, err := c.Autowire(container.Key[*Mailer](), map[string]any{"host": "smtp.local"})
//	err = c.RegisterSingleton("mailer", def)
func (c *Container) Autowire(typeID string, presets map[string]any) (Definition, error) {
	ctor, ok := c.types.Constructor(typeID)
	if !ok {
		return Definition{}, &NotFoundError{ID: typeID}
	}
	args, err := plan(typeID, ctor, presets)
	if err != nil {
		return Definition{}, err
	}
	return Arguments(ctor, args), nil
}

// Plan decides, for every parameter of cb in order: a preset by name, then
// the parameter's default, then fetching its type; otherwise it fails.
func Plan(cb *Callable, presets map[string]any) ([]Argument, error) {
	return plan(cb.fn.Type().String(), cb, presets)
}

func plan(owner string, cb *Callable, presets map[string]any) ([]Argument, error) {
	args := make([]Argument, 0, len(cb.params))
	for _, p := range cb.params {
		if v, ok := presets[p.Name]; ok {
			args = append(args, Argument{Name: p.Name, Value: v})
			continue
		}
		if p.HasDefault {
			args = append(args, Argument{Name: p.Name, Value: p.Default})
			continue
		}
		if p.Resolvable() {
			args = append(args, Argument{Name: p.Name, ID: p.TypeName(), Resolve: true})
			continue
		}
		return nil, containerErr(owner, "plan", ErrUnresolvable,
			"unable to resolve parameter '%s' (%s) of '%s'", p.Name, p.TypeName(), owner)
	}
	return args, nil
}

// build produces a value for id from def.
func (c *Container) build(id string, def Definition) (any, error) {
	if slices.Contains(c.chain, id) {
		return nil, c.cycle(id)
	}
	if !def.valid() {
		return nil, containerErr(id, "build", ErrInvalidDefinition, "Invalid map for '%s'", id)
	}
	scope := c.enter(id)

	switch def.kind {
	case KindInstance:
		return def.value, nil
	case KindAlias:
		return scope.dependency(id, def.alias)
	case KindFactory:
		v, err := def.factory(scope)
		if err != nil {
			if isContainerError(err) {
				return nil, err
			}
			return nil, containerErr(id, "build", err, "factory for '%s' failed", id)
		}
		return v, nil
	default:
		values, err := scope.resolve(id, def.args)
		if err != nil {
			return nil, err
		}
		in, err := def.ctor.prepare(values)
		if err != nil {
			return nil, containerErr(id, "build", err, "cannot construct '%s'", id)
		}
		v, err := def.ctor.call(in)
		if err != nil {
			return nil, containerErr(id, "build", err, "constructor of '%s' failed", id)
		}
		return v, nil
	}
}

// resolve turns planned arguments into values, left to right.
func (c *Container) resolve(owner string, args []Argument) ([]any, error) {
	values := make([]any, len(args))
	for i, arg := range args {
		if !arg.Resolve {
			values[i] = arg.Value
			continue
		}
		v, err := c.dependency(owner, arg.ID)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// dependency fetches dep on behalf of owner. A missing dependency is a
// build error of owner, not a not-found of owner.
func (c *Container) dependency(owner, dep string) (any, error) {
	v, err := c.Fetch(dep)
	if IsNotFound(err) {
		return nil, containerErr(owner, "resolve", err, "dependency '%s' of '%s'", dep, owner)
	}
	return v, err
}

// placeholder reports whether id is still backed by a placeholder of load
// (or by nothing at all).
func (c *Container) placeholder(id string, load *deferredLoad) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, frozen := c.singletons[id]; frozen {
		return false
	}
	def, ok := c.definitions[id]
	return !ok || def.deferred == load
}

func (c *Container) enter(id string) *Container {
	chain := make([]string, len(c.chain), len(c.chain)+1)
	copy(chain, c.chain)
	return &Container{state: c.state, chain: append(chain, id), token: c.ownToken()}
}

// root returns a view with an empty build chain that still belongs to the
// same resolution.
func (c *Container) root() *Container {
	return &Container{state: c.state, token: c.token}
}

func (c *Container) cycle(id string) error {
	path := strings.Join(append(slices.Clone(c.chain), id), " -> ")
	return containerErr(id, "fetch", ErrCircularDependency, "%s", path)
}

// ── Invocation ────────────────────────────────────────────────────────────────

// Invoke calls method on target with auto-wired arguments and returns its
// result. A string target is fetched first; any other non-nil value is used
// as the receiver. Presets are matched by parameter name and passed as is.
//
//	// Laravel: $app->call([$controller, 'show'], ['id' => 1])
//	out, err := c.Invoke("UserController", "Show", map[string]any{"id": "1"})
func (c *Container) Invoke(target any, method string, presets map[string]any) (any, error) {
	receiver := target
	label := fmt.Sprintf("%T", target)
	if id, ok := target.(string); ok {
		v, err := c.Fetch(id)
		if err != nil {
			return nil, err
		}
		receiver, label = v, id
	}
	if receiver == nil || (reflect.ValueOf(receiver).Kind() == reflect.Pointer && reflect.ValueOf(receiver).IsNil()) {
		return nil, containerErr(label, "invoke", ErrInvalidTarget, "cannot invoke '%s' on a nil target", method)
	}

	cb, err := c.types.Method(receiver, method)
	if err != nil {
		return nil, containerErr(label, "invoke", err, "cannot describe '%s::%s'", label, method)
	}
	owner := label + "::" + method
	args, err := plan(owner, cb, presets)
	if err != nil {
		return nil, err
	}
	values, err := c.resolve(owner, args)
	if err != nil {
		return nil, err
	}
	in, err := cb.prepare(values)
	if err != nil {
		return nil, containerErr(owner, "invoke", err, "cannot call '%s'", owner)
	}
	c.log.Debug("invoke", zap.String("target", label), zap.String("method", method))
	return cb.call(in)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// IsSingleton reports whether id is frozen as a singleton.
//
//	// Laravel: $app->resolved(Cache::class)
func (c *Container) IsSingleton(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.singletons[id]
	return ok
}

// Bindings returns all registered identifiers, sorted (for debugging).
func (c *Container) Bindings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.definitions)+len(c.singletons))
	for k := range c.definitions {
		out = append(out, k)
	}
	for k := range c.singletons {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ── Lookup interface ──────────────────────────────────────────────────────────

// Lookup is the minimal read-only container contract.
type Lookup interface {
	Get(id string) (any, error)
	Has(id string) bool
}

var _ Lookup = (*Container)(nil)

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve fetches id and type-asserts the result.
//
//	// Instead of: v, err := c.Fetch("db"); db := v.(*sql.DB)
//	// Write:      db, err := container.Resolve[*sql.DB](c, "db")
func Resolve[T any](c *Container, id string) (T, error) {
	var zero T
	v, err := c.Fetch(id)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, containerErr(id, "resolve", ErrTypeMismatch, "'%s' resolved to %T, want %s", id, v, reflect.TypeFor[T]())
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](c *Container, id string) T {
	v, err := Resolve[T](c, id)
	if err != nil {
		panic(err)
	}
	return v
}
