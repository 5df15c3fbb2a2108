package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/app"
	"github.com/km-arc/go-ioc/framework/container"
	gohttp "github.com/km-arc/go-ioc/framework/http"
	"github.com/km-arc/go-ioc/framework/routing"
)

// ── Domain ────────────────────────────────────────────────────────────────────

type User struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required,min=2,max=100"`
}

type UserRepository interface {
	Find(id string) (*User, bool)
	Save(u *User)
}

type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: map[string]*User{
		"1": {ID: "1", Name: "Alice"},
		"2": {ID: "2", Name: "Bob"},
	}}
}

func (r *MemoryUserRepository) Find(id string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

func (r *MemoryUserRepository) Save(u *User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

// ── Controller ────────────────────────────────────────────────────────────────

type UserController struct {
	users     UserRepository
	validator *gohttp.Validator
	log       *zap.Logger
}

func NewUserController(users UserRepository, validator *gohttp.Validator, log *zap.Logger) *UserController {
	return &UserController{users: users, validator: validator, log: log}
}

func (c *UserController) Show(id string) (*User, error) {
	u, ok := c.users.Find(id)
	if !ok {
		return nil, routing.Abort(http.StatusNotFound, "user not found")
	}
	return u, nil
}

func (c *UserController) Store(req *gohttp.Request, res *gohttp.Response) error {
	var u User
	if err := c.validator.Bind(req, &u); err != nil {
		var verrs *gohttp.ValidationErrors
		if errors.As(err, &verrs) {
			return err
		}
		return routing.Abort(http.StatusBadRequest, "invalid JSON body")
	}
	c.users.Save(&u)
	c.log.Info("user stored", zap.String("id", u.ID))
	res.Created(u)
	return nil
}

// ── AppServiceProvider ────────────────────────────────────────────────────────

type AppServiceProvider struct {
	container.BaseProvider
	types *container.TypeRegistry
}

func (p *AppServiceProvider) Register(c *container.Container) error {
	if _, err := p.types.Add(NewMemoryUserRepository); err != nil {
		return err
	}
	if _, err := p.types.Add(NewUserController, "users", "validator", "log"); err != nil {
		return err
	}
	p.types.DescribeMethod(container.Key[*UserController](), "Show", "id")
	p.types.DescribeMethod(container.Key[*UserController](), "Store", "request", "response")

	// Laravel: $app->singleton(UserRepository::class, MemoryUserRepository::class)
	return c.RegisterSingleton(container.Key[UserRepository](), container.Alias(container.Key[*MemoryUserRepository]()))
}

func (p *AppServiceProvider) Boot(c *container.Container) error {
	router, err := container.Resolve[*routing.Router](c, "router")
	if err != nil {
		return err
	}
	controller := container.Key[*UserController]()

	router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		gohttp.NewResponse(w).Success(map[string]any{"message": "Welcome to GoIoC!"})
	})
	router.Prefix("/api/v1", func(api *routing.Router) {
		api.Action(http.MethodGet, "/users/{id}", controller, "Show")
		api.Group(func(protected *routing.Router) {
			protected.Middleware(AuthMiddleware)
			protected.Action(http.MethodPost, "/users", controller, "Store")
		})
	})
	return nil
}

func main() {
	application, err := app.New() // loads .env automatically
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := application.Logger()
	defer func() { _ = log.Sync() }()

	if err := application.RegisterProvider(&AppServiceProvider{types: application.Types}); err != nil {
		log.Fatal("register provider", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := application.Run(ctx); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

// AuthMiddleware is an example token guard.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gohttp.NewRequest(r).BearerToken() == "" {
			gohttp.NewResponse(w).Unauthorized()
			return
		}
		next.ServeHTTP(w, r)
	})
}
