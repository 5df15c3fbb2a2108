// Package container provides a Laravel-compatible IoC (Inversion of Control)
// container and Service Provider system for Go.
//
// # Overview
//
// Given an identifier, such as the fully qualified type name
// "*example.com/shop/app.UserService" or any alias, the container produces a fully constructed object graph. When an
// identifier has no definition but names a constructor known to the
// container's Introspector, the constructor's parameters are auto-wired by
// type.
//
// Go keeps no parameter names or default values at runtime, so
// constructors are registered explicitly in a TypeRegistry together with
// their parameter names:
//
//	types := container.NewTypeRegistry()
//	types.Add(NewSQLUserRepository, "db")
//	types.Add(NewUserService, "repo", "logger")
//
//	c := container.New(container.WithIntrospector(types))
//
// # Definitions
//
//	// Alias — delegate to another identifier
//	// Laravel: $app->bind(UserRepository::class, SqlUserRepository::class)
//	c.Register(container.Key[UserRepository](), container.Alias(container.Key[*SQLUserRepository]()))
//
//	// Factory — new value on every Fetch
//	c.Register("clock", container.FromFactory(func(c *container.Container) (any, error) {
//	    return time.Now, nil
//	}))
//
//	// Pre-built value
//	// Laravel: $app->instance(Config::class, $config)
//	c.Register("config", container.Instance(cfg))
//
//	// Planned constructor call with literal presets
//	def, _ := c.Autowire(container.Key[*Mailer](), map[string]any{"host": "smtp.local"})
//	c.Register("mailer", def)
//
// # Singletons
//
// RegisterSingleton builds the definition immediately and freezes the
// result. Frozen identifiers can never be registered again.
//
//	// Laravel: $app->singleton(Cache::class, fn($app) => new RedisCache)
//	c.RegisterSingleton("cache", container.FromFactory(newCache))
//
// # Resolving
//
//	// Laravel: $app->make(UserService::class)
//	raw, err := c.Fetch(container.Key[*UserService]())
//
//	// Generic (preferred — no type assertion required)
//	svc, err := container.Resolve[*UserService](c, container.Key[*UserService]())
//
// # Argument planning
//
// For every parameter, in order: a preset supplied by name is used
// verbatim; otherwise the parameter's default; otherwise, if its type is a
// named user type, the type name is fetched from the container; otherwise
// planning fails with a *ContainerError wrapping ErrUnresolvable.
//
// # Invoke
//
//	// Laravel: $app->call([UserController::class, 'show'], ['id' => $id])
//	types.DescribeMethod(container.Key[*UserController](), "Show", "id", "svc")
//	out, err := c.Invoke(container.Key[*UserController](), "Show", map[string]any{"id": "42"})
//
// # Errors
//
// Fetch fails with *NotFoundError only for the identifier it was asked for
// (see IsNotFound). Every other failure, including a missing dependency, is
// a *ContainerError whose cause is one of the Err* sentinels. Dependency
// cycles fail with ErrCircularDependency.
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(app *container.Container) error {
//	    return app.RegisterSingleton("mailer", container.FromFactory(newMailer))
//	}
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(&AppServiceProvider{})
//	registry.Boot()
//
// # Deferred Providers
//
//	type HeavyProvider struct{ container.BaseProvider }
//
//	func (p *HeavyProvider) IsDeferred() bool   { return true }
//	func (p *HeavyProvider) Provides() []string { return []string{"heavy"} }
//	func (p *HeavyProvider) Register(app *container.Container) error {
//	    // only called on the first app.Fetch("heavy")
//	    return app.RegisterSingleton("heavy", container.FromFactory(heavySetup))
//	}
package container
