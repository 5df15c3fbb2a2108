package container

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider mirrors Laravel's Illuminate\Support\ServiceProvider.
//
// Register binds definitions; Boot runs after ALL providers have been
// registered, so it is safe to fetch other identifiers there.
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(app *container.Container) error {
//	    return app.RegisterSingleton("mailer", container.FromFactory(newMailer))
//	}
type ServiceProvider interface {
	// Register binds definitions into the container.
	// Do NOT fetch other identifiers here — use Boot() for that.
	Register(app *Container) error

	// Boot is called after all providers are registered.
	Boot(app *Container) error

	// Provides lists the identifiers a deferred provider registers.
	//
	//	// Laravel: public function provides(): array { return [Cache::class]; }
	Provides() []string

	// IsDeferred returns true if the provider should only be registered
	// when one of its Provides() identifiers is first fetched.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct that provides no-op implementations
// of Boot(), Provides(), and IsDeferred().
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }
func (p *BaseProvider) Provides() []string      { return nil }
func (p *BaseProvider) IsDeferred() bool        { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry manages registration and booting of ServiceProviders,
// including deferred (lazy) providers.
type ProviderRegistry struct {
	mu         sync.Mutex
	app        *Container
	eager      []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// deferredLoad serializes the registration of one deferred provider.
type deferredLoad struct {
	mu     sync.Mutex
	loaded bool

	// resolution currently running the provider's Register
	owner atomic.Pointer[buildToken]
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register adds a provider and calls its Register() method, unless it is
// deferred. Registering the same provider twice is a no-op.
//
//	// Laravel: $app->register(new AppServiceProvider($app))
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	r.mu.Lock()
	if r.registered[provider] {
		r.mu.Unlock()
		return nil
	}
	r.registered[provider] = true
	booted := r.booted
	r.mu.Unlock()

	if provider.IsDeferred() {
		load := &deferredLoad{}
		for _, id := range provider.Provides() {
			placeholder := FromFactory(r.loader(provider, id, load))
			placeholder.deferred = load
			if err := r.app.Register(id, placeholder); err != nil {
				return fmt.Errorf("defer provider %T: %w", provider, err)
			}
		}
		return nil
	}

	if err := provider.Register(r.app); err != nil {
		return fmt.Errorf("register provider %T: %w", provider, err)
	}

	r.mu.Lock()
	r.eager = append(r.eager, provider)
	r.mu.Unlock()

	// If already booted, boot this provider immediately
	if booted {
		if err := provider.Boot(r.app); err != nil {
			return fmt.Errorf("boot provider %T: %w", provider, err)
		}
	}
	return nil
}

// loader is the placeholder definition of a deferred identifier. The first
// fetch registers the provider for real, which replaces the placeholder;
// concurrent first fetches wait for that and then fetch the real definition.
func (r *ProviderRegistry) loader(provider ServiceProvider, id string, load *deferredLoad) Factory {
	return func(c *Container) (any, error) {
		if tok := load.owner.Load(); tok != nil && tok == c.token {
			return nil, containerErr(id, "build", ErrCircularDependency,
				"deferred provider %T fetched '%s' from its own Register", provider, id)
		}
		if err := r.load(provider, load, c); err != nil {
			return nil, err
		}

		app := c.root()
		if app.placeholder(id, load) {
			return nil, containerErr(id, "build", ErrInvalidDefinition,
				"deferred provider %T did not register '%s'", provider, id)
		}
		return app.Fetch(id)
	}
}

// load runs provider's Register (and Boot, once the registry is booted) at
// most once successfully. A failed Register is retried on the next fetch.
func (r *ProviderRegistry) load(provider ServiceProvider, load *deferredLoad, c *Container) error {
	load.mu.Lock()
	defer load.mu.Unlock()
	if load.loaded {
		return nil
	}

	r.mu.Lock()
	booted := r.booted
	r.mu.Unlock()

	app := c.root()
	app.token = app.ownToken()
	load.owner.Store(app.token)
	defer load.owner.Store(nil)

	if err := provider.Register(app); err != nil {
		return fmt.Errorf("register deferred provider %T: %w", provider, err)
	}
	load.loaded = true
	if booted {
		if err := provider.Boot(app); err != nil {
			return fmt.Errorf("boot deferred provider %T: %w", provider, err)
		}
	}
	return nil
}

// Boot calls Boot() on all eager providers, in registration order.
// Must be called after ALL providers have been registered.
//
//	// Laravel: $app->boot()
func (r *ProviderRegistry) Boot() error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	providers := append([]ServiceProvider(nil), r.eager...)
	r.mu.Unlock()

	for _, provider := range providers {
		if err := provider.Boot(r.app); err != nil {
			return fmt.Errorf("boot provider %T: %w", provider, err)
		}
	}
	return nil
}

// Booted returns true if Boot() has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Providers returns all registered eager providers.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.eager...)
}
