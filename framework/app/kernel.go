package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/logging"
	"github.com/km-arc/go-ioc/framework/providers"
	"github.com/km-arc/go-ioc/framework/routing"
)

// Application is the top-level application container.
// It embeds the IoC Container so user code can call app.Register(),
// app.RegisterSingleton() and app.Fetch() directly, exactly like $app in
// Laravel's bootstrap/app.php.
type Application struct {
	*container.Container
	Types     *container.TypeRegistry
	Providers *container.ProviderRegistry
}

// New loads configuration, builds the logger and registers the framework
// providers (config, logger, validator, router) in that order.
func New(envFiles ...string) (*Application, error) {
	cfg := config.Load(envFiles...)
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	types := container.NewTypeRegistry()
	c := container.New(container.WithLogger(log), container.WithIntrospector(types))
	app := &Application{
		Container: c,
		Types:     types,
		Providers: container.NewProviderRegistry(c),
	}

	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LogServiceProvider{Logger: log},
		&providers.ValidationServiceProvider{},
		&providers.RoutingServiceProvider{},
	} {
		if err := app.RegisterProvider(p); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Provide makes a constructor available for auto-wiring and returns the
// identifier it is known under.
//
//	app.Provide(NewUserService, "repo", "logger")
//	svc, err := container.Resolve[*UserService](app.Container, container.Key[*UserService]())
func (a *Application) Provide(ctor any, names ...string) (string, error) {
	return a.Types.Add(ctor, names...)
}

// RegisterProvider adds a ServiceProvider to the application.
//
//	// Laravel: $app->register(AppServiceProvider::class)
func (a *Application) RegisterProvider(provider container.ServiceProvider) error {
	return a.Providers.Register(provider)
}

// Boot runs the Boot() phase on all providers.
func (a *Application) Boot() error {
	return a.Providers.Boot()
}

// Config resolves *config.Config from the container.
func (a *Application) Config() *config.Config {
	return container.MustResolve[*config.Config](a.Container, "config")
}

// Logger resolves *zap.Logger from the container.
func (a *Application) Logger() *zap.Logger {
	return container.MustResolve[*zap.Logger](a.Container, "logger")
}

// Router resolves *routing.Router from the container.
func (a *Application) Router() *routing.Router {
	return container.MustResolve[*routing.Router](a.Container, "router")
}

// Handler boots the application (if needed) and returns the root handler.
func (a *Application) Handler() (http.Handler, error) {
	if !a.Providers.Booted() {
		if err := a.Boot(); err != nil {
			return nil, err
		}
	}
	return a.Router().Handler(), nil
}

// Run boots the application and serves HTTP until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	handler, err := a.Handler()
	if err != nil {
		return err
	}
	cfg := a.Config()
	log := a.Logger()

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started",
			zap.String("app", cfg.App.Name),
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config().App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config().App.Debug }
func (a *Application) Version() string     { return "0.2.0" }
