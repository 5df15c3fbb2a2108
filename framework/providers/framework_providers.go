package providers

import (
	"io"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	gohttp "github.com/km-arc/go-ioc/framework/http"
	"github.com/km-arc/go-ioc/framework/logging"
	"github.com/km-arc/go-ioc/framework/routing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the application configuration.
//
// Bound identifiers:
//   - "config"               → *config.Config (singleton)
//   - "configuration"        → alias of "config"
//   - Key[*config.Config]()  → alias of "config", so constructors taking
//     *config.Config are auto-wired
//
// Config is used when set; otherwise it is loaded from EnvFiles.
type ConfigServiceProvider struct {
	container.BaseProvider
	Config   *config.Config
	EnvFiles []string
}

func (p *ConfigServiceProvider) Register(app *container.Container) error {
	cfg, envFiles := p.Config, p.EnvFiles
	err := app.RegisterSingleton("config", container.FromFactory(func(*container.Container) (any, error) {
		if cfg != nil {
			return cfg, nil
		}
		return config.Load(envFiles...), nil
	}))
	if err != nil {
		return err
	}
	return aliases(app, "config", "configuration", container.Key[*config.Config]())
}

// ── LogServiceProvider ────────────────────────────────────────────────────────

// LogServiceProvider binds the zap logger.
//
// Bound identifiers:
//   - "logger"             → *zap.Logger (singleton)
//   - Key[*zap.Logger]()   → alias of "logger"
//
// Logger is used when set; otherwise one is built from "config" and
// written to Output (stdout when nil).
type LogServiceProvider struct {
	container.BaseProvider
	Logger *zap.Logger
	Output io.Writer
}

func (p *LogServiceProvider) Register(app *container.Container) error {
	log, out := p.Logger, p.Output
	err := app.RegisterSingleton("logger", container.FromFactory(func(c *container.Container) (any, error) {
		if log != nil {
			return log, nil
		}
		cfg, err := container.Resolve[*config.Config](c, "config")
		if err != nil {
			return nil, err
		}
		if out != nil {
			return logging.NewWithWriter(cfg.Log, out)
		}
		return logging.New(cfg.Log)
	}))
	if err != nil {
		return err
	}
	return aliases(app, "logger", container.Key[*zap.Logger]())
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router. Controller actions are
// dispatched through the container the provider is registered in.
//
// Bound identifiers:
//   - "router"                → *routing.Router (singleton)
//   - Key[*routing.Router]()  → alias of "router"
//
// Laravel equivalent:
//
//	// Illuminate\Routing\RoutingServiceProvider
//	$app->singleton('router', fn($app) => new Router($app['events'], $app));
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) error {
	err := app.RegisterSingleton("router", container.FromFactory(func(c *container.Container) (any, error) {
		root, err := container.Resolve[*container.Container](c, "container")
		if err != nil {
			return nil, err
		}
		log, err := container.Resolve[*zap.Logger](c, "logger")
		if err != nil {
			return nil, err
		}
		return routing.New(root, log), nil
	}))
	if err != nil {
		return err
	}
	return aliases(app, "router", container.Key[*routing.Router]())
}

// ── ValidationServiceProvider ─────────────────────────────────────────────────

// ValidationServiceProvider binds the request validator.
//
// Bound identifiers:
//   - "validator"                → *gohttp.Validator (singleton)
//   - Key[*gohttp.Validator]()   → alias of "validator"
type ValidationServiceProvider struct {
	container.BaseProvider
}

func (p *ValidationServiceProvider) Register(app *container.Container) error {
	if err := app.RegisterSingleton("validator", container.Instance(gohttp.NewValidator())); err != nil {
		return err
	}
	return aliases(app, "validator", container.Key[*gohttp.Validator]())
}

func aliases(app *container.Container, target string, ids ...string) error {
	for _, id := range ids {
		if err := app.Register(id, container.Alias(target)); err != nil {
			return err
		}
	}
	return nil
}
