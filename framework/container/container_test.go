package container_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/container"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type AInterface interface{ Name() string }

type A struct{ serial int64 }

func (a *A) Name() string { return "A" }

var serials atomic.Int64

func NewA() *A { return &A{serial: serials.Add(1)} }

type B struct{ A AInterface }

func NewB(a AInterface) *B { return &B{A: a} }

type Inner struct{ n int }

type Outer struct{ Inner *Inner }

func NewInner() *Inner              { return &Inner{n: 1} }
func NewOuter(inner *Inner) *Outer { return &Outer{Inner: inner} }

type Server struct {
	Port int
	Host string
}

func NewServer(port int) *Server { return &Server{Port: port} }

type Loose struct{ V any }

func NewLoose(v any) *Loose { return &Loose{V: v} }

type Cyclic1 struct{ Next *Cyclic2 }
type Cyclic2 struct{ Next *Cyclic1 }

func NewCyclic1(n *Cyclic2) *Cyclic1 { return &Cyclic1{Next: n} }
func NewCyclic2(n *Cyclic1) *Cyclic2 { return &Cyclic2{Next: n} }

func newContainer(t *testing.T, ctors ...any) (*container.Container, *container.TypeRegistry) {
	t.Helper()
	types := container.NewTypeRegistry()
	for _, ctor := range ctors {
		_, err := types.Add(ctor)
		require.NoError(t, err)
	}
	return container.New(container.WithIntrospector(types)), types
}

// ── Auto-wiring ───────────────────────────────────────────────────────────────

func TestFetch_AutowiresNestedType(t *testing.T) {
	c, _ := newContainer(t, NewInner, NewOuter)

	v, err := c.Fetch(container.Key[*Outer]())
	require.NoError(t, err)

	outer, ok := v.(*Outer)
	require.True(t, ok, "got %T", v)
	require.NotNil(t, outer.Inner)
	assert.Equal(t, 1, outer.Inner.n)
}

func TestFetch_AutowiredDefinitionIsRemembered(t *testing.T) {
	c, _ := newContainer(t, NewInner)
	id := container.Key[*Inner]()

	assert.False(t, c.Has(id), "constructors are not definitions until first fetch")

	_, err := c.Fetch(id)
	require.NoError(t, err)
	assert.True(t, c.Has(id))
}

func TestFetch_InterfaceAliasScenario(t *testing.T) {
	c, _ := newContainer(t, NewA, NewB)
	require.NoError(t, c.Register(container.Key[AInterface](), container.Alias(container.Key[*A]())))

	a, err := c.Fetch(container.Key[AInterface]())
	require.NoError(t, err)
	assert.IsType(t, &A{}, a)

	b1, err := container.Resolve[*B](c, container.Key[*B]())
	require.NoError(t, err)
	b2, err := container.Resolve[*B](c, container.Key[*B]())
	require.NoError(t, err)

	assert.NotSame(t, b1, b2, "auto-wired types are transient")
	assert.NotSame(t, b1.A, b2.A, "each B gets its own A")
	assert.NotEqual(t, b1.A.(*A).serial, b2.A.(*A).serial)
}

func TestFetch_PrimitiveWithoutDefaultFails(t *testing.T) {
	c, _ := newContainer(t, NewServer)
	id := container.Key[*Server]()

	v, err := c.Fetch(id)
	require.Error(t, err)
	assert.Nil(t, v)
	assert.ErrorIs(t, err, container.ErrUnresolvable)
	assert.False(t, container.IsNotFound(err))

	var ce *container.ContainerError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, id, ce.ID)
	assert.False(t, c.Has(id), "failed planning must not commit a definition")
}

func TestFetch_UntypedParameterFails(t *testing.T) {
	c, _ := newContainer(t, NewLoose)

	_, err := c.Fetch(container.Key[*Loose]())
	assert.ErrorIs(t, err, container.ErrUnresolvable)
}

func TestFetch_DefaultValueUsed(t *testing.T) {
	types := container.NewTypeRegistry()
	cb, err := container.Describe(NewServer, "port")
	require.NoError(t, err)
	types.Define(container.Key[*Server](), cb.WithDefault("port", 8080))
	c := container.New(container.WithIntrospector(types))

	srv, err := container.Resolve[*Server](c, container.Key[*Server]())
	require.NoError(t, err)
	assert.Equal(t, 8080, srv.Port)
}

func TestFetch_NotFound(t *testing.T) {
	c := container.New()

	_, err := c.Fetch("nope")
	require.Error(t, err)
	assert.True(t, container.IsNotFound(err))
	assert.ErrorIs(t, err, container.ErrNotFound)
	assert.EqualError(t, err, "Couldn't create 'nope'")
}

func TestFetch_DependencyFailureAbortsBuild(t *testing.T) {
	var built atomic.Int32
	types := container.NewTypeRegistry()
	_, err := types.Add(func(s *Server) *Outer {
		built.Add(1)
		return &Outer{}
	})
	require.NoError(t, err)
	c := container.New(container.WithIntrospector(types))

	_, err = c.Fetch(container.Key[*Outer]())
	require.Error(t, err)
	assert.False(t, container.IsNotFound(err), "a missing dependency is a build error")
	assert.ErrorIs(t, err, container.ErrNotFound)
	assert.Zero(t, built.Load())
}

func TestFetch_CircularDependency(t *testing.T) {
	c, _ := newContainer(t, NewCyclic1, NewCyclic2)

	_, err := c.Fetch(container.Key[*Cyclic1]())
	require.Error(t, err)
	assert.ErrorIs(t, err, container.ErrCircularDependency)
	c1, c2 := container.Key[*Cyclic1](), container.Key[*Cyclic2]()
	assert.Contains(t, err.Error(), c1+" -> "+c2+" -> "+c1)
}

func TestFetch_ConstructorError(t *testing.T) {
	boom := errors.New("boom")
	types := container.NewTypeRegistry()
	_, err := types.Add(func() (*Inner, error) { return nil, boom })
	require.NoError(t, err)
	c := container.New(container.WithIntrospector(types))

	_, err = c.Fetch(container.Key[*Inner]())
	assert.ErrorIs(t, err, boom)
}

// ── Definitions ───────────────────────────────────────────────────────────────

func TestRegister_InstanceReturnedAsIs(t *testing.T) {
	c := container.New()
	inst := &Inner{n: 7}
	require.NoError(t, c.Register("inner", container.Instance(inst)))

	v1, err := c.Fetch("inner")
	require.NoError(t, err)
	v2, err := c.Fetch("inner")
	require.NoError(t, err)
	assert.Same(t, inst, v1)
	assert.Same(t, inst, v2)
}

func TestRegister_FactoryReinvokedEachFetch(t *testing.T) {
	c := container.New()
	var calls int
	require.NoError(t, c.Register("counter", container.FromFactory(func(*container.Container) (any, error) {
		calls++
		return &Inner{n: calls}, nil
	})))

	v1, _ := c.Fetch("counter")
	v2, _ := c.Fetch("counter")
	assert.Equal(t, 2, calls)
	assert.NotSame(t, v1, v2)
}

func TestRegister_FactoryReceivesContainer(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Register("port", container.Instance(9000)))
	require.NoError(t, c.Register("server", container.FromFactory(func(c *container.Container) (any, error) {
		port, err := container.Resolve[int](c, "port")
		if err != nil {
			return nil, err
		}
		return &Server{Port: port}, nil
	})))

	srv, err := container.Resolve[*Server](c, "server")
	require.NoError(t, err)
	assert.Equal(t, 9000, srv.Port)
}

func TestRegister_AliasTransparent(t *testing.T) {
	c := container.New()
	inst := &Inner{}
	require.NoError(t, c.Register("Y", container.Instance(inst)))
	require.NoError(t, c.Register("X", container.Alias("Y")))

	x, err := c.Fetch("X")
	require.NoError(t, err)
	y, err := c.Fetch("Y")
	require.NoError(t, err)
	assert.Same(t, y, x)
}

func TestRegister_AliasToMissingIsBuildError(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Register("X", container.Alias("missing")))

	require.True(t, c.Has("X"))
	_, err := c.Fetch("X")
	require.Error(t, err)
	assert.False(t, container.IsNotFound(err))
	assert.ErrorIs(t, err, container.ErrNotFound)
}

func TestRegister_InvalidDefinition(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Register("broken", container.Definition{}))
	require.NoError(t, c.Register("nil-factory", container.FromFactory(nil)))

	for _, id := range []string{"broken", "nil-factory"} {
		_, err := c.Fetch(id)
		assert.ErrorIs(t, err, container.ErrInvalidDefinition, id)
		assert.Contains(t, err.Error(), "Invalid map", id)
	}
}

func TestRegister_OverwritesTransientDefinition(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Register("v", container.Instance(1)))
	require.NoError(t, c.Register("v", container.Instance(2)))

	v, err := c.Fetch("v")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestAutowire_WithPresets(t *testing.T) {
	types := container.NewTypeRegistry()
	require.NoError(t, types.AddNamed("server", NewServer, "port"))
	c := container.New(container.WithIntrospector(types))

	def, err := c.Autowire("server", map[string]any{"port": 443})
	require.NoError(t, err)
	assert.Equal(t, container.KindArguments, def.Kind())
	require.NoError(t, c.Register("https", def))

	srv, err := container.Resolve[*Server](c, "https")
	require.NoError(t, err)
	assert.Equal(t, 443, srv.Port)
}

func TestAutowire_PresetTypeMismatch(t *testing.T) {
	types := container.NewTypeRegistry()
	require.NoError(t, types.AddNamed("server", NewServer, "port"))
	c := container.New(container.WithIntrospector(types))

	def, err := c.Autowire("server", map[string]any{"port": "443"})
	require.NoError(t, err, "presets are taken verbatim when planning")
	require.NoError(t, c.Register("https", def))

	_, err = c.Fetch("https")
	assert.ErrorIs(t, err, container.ErrTypeMismatch)
}

func TestAutowire_UnknownType(t *testing.T) {
	c := container.New()
	_, err := c.Autowire("nope", nil)
	assert.True(t, container.IsNotFound(err))
}

// ── Singletons ────────────────────────────────────────────────────────────────

func TestRegisterSingleton_Identity(t *testing.T) {
	c := container.New()
	var calls int
	require.NoError(t, c.RegisterSingleton("inner", container.FromFactory(func(*container.Container) (any, error) {
		calls++
		return &Inner{}, nil
	})))

	v1, err := c.Fetch("inner")
	require.NoError(t, err)
	v2, err := c.Fetch("inner")
	require.NoError(t, err)

	assert.Same(t, v1, v2)
	assert.Equal(t, 1, calls, "singleton is built once, at registration")
	assert.True(t, c.IsSingleton("inner"))
	assert.True(t, c.Has("inner"))
}

func TestRegisterSingleton_ReRegistrationRejected(t *testing.T) {
	c := container.New()
	orig := &Inner{n: 1}
	require.NoError(t, c.RegisterSingleton("inner", container.Instance(orig)))

	err := c.Register("inner", container.Instance(&Inner{n: 2}))
	assert.ErrorIs(t, err, container.ErrFrozen)

	err = c.RegisterSingleton("inner", container.Instance(&Inner{n: 3}))
	assert.ErrorIs(t, err, container.ErrFrozen)

	v, err := c.Fetch("inner")
	require.NoError(t, err)
	assert.Same(t, orig, v)
}

func TestRegisterSingleton_FailedBuildIsNotFrozen(t *testing.T) {
	c := container.New()
	err := c.RegisterSingleton("bad", container.FromFactory(func(*container.Container) (any, error) {
		return nil, errors.New("nope")
	}))
	require.Error(t, err)
	assert.False(t, c.IsSingleton("bad"))

	require.NoError(t, c.RegisterSingleton("bad", container.Instance(1)))
}

func TestRegisterSingleton_FactoryMayFetchOthers(t *testing.T) {
	c, _ := newContainer(t, NewInner)
	require.NoError(t, c.RegisterSingleton("outer", container.FromFactory(func(c *container.Container) (any, error) {
		inner, err := container.Resolve[*Inner](c, container.Key[*Inner]())
		if err != nil {
			return nil, err
		}
		return NewOuter(inner), nil
	})))

	outer, err := container.Resolve[*Outer](c, "outer")
	require.NoError(t, err)
	assert.NotNil(t, outer.Inner)
}

func TestRegisterSingleton_SelfReferenceIsCycle(t *testing.T) {
	c := container.New()
	err := c.RegisterSingleton("self", container.FromFactory(func(c *container.Container) (any, error) {
		return c.Fetch("self")
	}))
	assert.ErrorIs(t, err, container.ErrCircularDependency)
	assert.False(t, c.IsSingleton("self"))
}

func TestRegisterSingleton_SelfRegistrationIsCycle(t *testing.T) {
	c := container.New()
	err := c.RegisterSingleton("self", container.FromFactory(func(c *container.Container) (any, error) {
		return nil, c.Register("self", container.Instance(1))
	}))
	assert.ErrorIs(t, err, container.ErrCircularDependency)
}

func TestRegisterSingleton_ConcurrentBuildsOnce(t *testing.T) {
	c := container.New()
	var builds atomic.Int32
	def := container.FromFactory(func(*container.Container) (any, error) {
		builds.Add(1)
		return &Inner{}, nil
	})

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.RegisterSingleton("shared", def); err == nil {
				successes.Add(1)
			} else {
				assert.ErrorIs(t, err, container.ErrFrozen)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(1), builds.Load())
}

func TestRegisterSingleton_ConcurrentFetchNeverBuildsCopy(t *testing.T) {
	for range 200 {
		c := container.New()
		var builds atomic.Int32
		def := container.FromFactory(func(*container.Container) (any, error) {
			builds.Add(1)
			return &Inner{}, nil
		})

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			got   = make(chan any, 8)
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if v, err := c.Fetch("svc"); err == nil {
					got <- v
				}
			}()
		}
		close(start)
		require.NoError(t, c.RegisterSingleton("svc", def))
		wg.Wait()
		close(got)

		frozen := container.MustResolve[*Inner](c, "svc")
		for v := range got {
			assert.Same(t, frozen, v)
		}
		require.Equal(t, int32(1), builds.Load())
	}
}

func TestFetch_WaitsForSingletonBeingFrozen(t *testing.T) {
	c := container.New()
	fetched := make(chan any, 1)
	err := c.RegisterSingleton("slow", container.FromFactory(func(*container.Container) (any, error) {
		go func() {
			v, _ := c.Fetch("slow")
			fetched <- v
		}()
		time.Sleep(20 * time.Millisecond)
		return &Inner{n: 2}, nil
	}))
	require.NoError(t, err)

	select {
	case v := <-fetched:
		assert.Same(t, container.MustResolve[*Inner](c, "slow"), v)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch of a singleton being frozen never returned")
	}
}

// ── Invoke ────────────────────────────────────────────────────────────────────

type Greeter struct{ prefix string }

func NewGreeter() *Greeter { return &Greeter{prefix: "hello"} }

func (g *Greeter) Greet(name string, inner *Inner) string {
	if inner == nil {
		return "no inner"
	}
	return g.prefix + " " + name
}

func (g *Greeter) Fail() error { return errors.New("greeter failed") }

func (g *Greeter) Count(n int) int { return n }

func newGreeterContainer(t *testing.T) *container.Container {
	t.Helper()
	c, types := newContainer(t, NewGreeter, NewInner)
	types.DescribeMethod(container.Key[*Greeter](), "Greet", "name", "inner")
	types.DescribeMethod(container.Key[*Greeter](), "Count", "n")
	return c
}

func TestInvoke_ByIdentifier(t *testing.T) {
	c := newGreeterContainer(t)

	out, err := c.Invoke(container.Key[*Greeter](), "Greet", map[string]any{"name": "gopher"})
	require.NoError(t, err)
	assert.Equal(t, "hello gopher", out)
}

func TestInvoke_DefaultValueUsed(t *testing.T) {
	c, types := newContainer(t, NewGreeter)
	types.DescribeMethod(container.Key[*Greeter](), "Count", "n").WithDefault("n", 7)

	out, err := c.Invoke(container.Key[*Greeter](), "Count", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, out)

	out, err = c.Invoke(container.Key[*Greeter](), "Count", map[string]any{"n": 3})
	require.NoError(t, err)
	assert.Equal(t, 3, out, "a preset wins over the default")
}

func TestInvoke_ByValue(t *testing.T) {
	c := newGreeterContainer(t)

	out, err := c.Invoke(&Greeter{prefix: "hi"}, "Greet", map[string]any{"name": "there"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestInvoke_PresetOverridesResolution(t *testing.T) {
	c := newGreeterContainer(t)

	out, err := c.Invoke(NewGreeter(), "Greet", map[string]any{"name": "x", "inner": nil})
	require.NoError(t, err)
	assert.Equal(t, "no inner", out)
}

func TestInvoke_MissingPrimitive(t *testing.T) {
	c := newGreeterContainer(t)

	_, err := c.Invoke(NewGreeter(), "Count", nil)
	assert.ErrorIs(t, err, container.ErrUnresolvable)
}

func TestInvoke_MethodErrorReturnedUnchanged(t *testing.T) {
	c := newGreeterContainer(t)

	_, err := c.Invoke(NewGreeter(), "Fail", nil)
	require.Error(t, err)
	assert.EqualError(t, err, "greeter failed")
}

func TestInvoke_InvalidTargets(t *testing.T) {
	c := newGreeterContainer(t)

	_, err := c.Invoke(nil, "Greet", nil)
	assert.ErrorIs(t, err, container.ErrInvalidTarget)

	_, err = c.Invoke((*Greeter)(nil), "Greet", nil)
	assert.ErrorIs(t, err, container.ErrInvalidTarget)

	_, err = c.Invoke(NewGreeter(), "Missing", nil)
	assert.ErrorIs(t, err, container.ErrUnknownMethod)

	_, err = c.Invoke("unknown", "Greet", nil)
	assert.True(t, container.IsNotFound(err))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func TestNew_BindsItself(t *testing.T) {
	c := container.New()

	v, err := c.Fetch("container")
	require.NoError(t, err)
	assert.Same(t, c, v)

	self, err := container.Resolve[*container.Container](c, container.Key[*container.Container]())
	require.NoError(t, err)
	assert.Same(t, c, self)
}

func TestResolve_TypeMismatch(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Register("n", container.Instance(1)))

	_, err := container.Resolve[string](c, "n")
	assert.ErrorIs(t, err, container.ErrTypeMismatch)

	assert.Panics(t, func() { container.MustResolve[string](c, "n") })
	assert.Equal(t, 1, container.MustResolve[int](c, "n"))
}

func TestBindings_Sorted(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Register("b", container.Instance(1)))
	require.NoError(t, c.RegisterSingleton("a", container.Instance(2)))

	assert.Equal(t, []string{container.Key[*container.Container](), "a", "b", "container"}, c.Bindings())
}

func TestContainer_SatisfiesLookup(t *testing.T) {
	var l container.Lookup = container.New()
	assert.True(t, l.Has("container"))
	assert.False(t, l.Has("missing"))
}
