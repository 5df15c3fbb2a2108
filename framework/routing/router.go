package routing

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/container"
	gohttp "github.com/km-arc/go-ioc/framework/http"
)

// Invoker calls a method on a container-resolved target.
// *container.Container implements it.
type Invoker interface {
	Invoke(target any, method string, presets map[string]any) (any, error)
}

// Router wraps chi.Router with Laravel-style helpers and controller actions
// dispatched through the container.
type Router struct {
	mux     chi.Router
	invoker Invoker
	log     *zap.Logger
}

// New creates a Router with sane defaults (RequestID, RealIP, request logging, Recoverer).
func New(invoker Invoker, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	return &Router{mux: r, invoker: invoker, log: log}
}

// ── HTTP verbs ───────────────────────────────────────────────────────────────

func (r *Router) Get(pattern string, h http.HandlerFunc)    { r.mux.Get(pattern, h) }
func (r *Router) Post(pattern string, h http.HandlerFunc)   { r.mux.Post(pattern, h) }
func (r *Router) Put(pattern string, h http.HandlerFunc)    { r.mux.Put(pattern, h) }
func (r *Router) Patch(pattern string, h http.HandlerFunc)  { r.mux.Patch(pattern, h) }
func (r *Router) Delete(pattern string, h http.HandlerFunc) { r.mux.Delete(pattern, h) }

// Any registers a handler for all common HTTP methods.
func (r *Router) Any(pattern string, h http.HandlerFunc) {
	for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"} {
		r.mux.Method(m, pattern, h)
	}
}

// ── Groups & Prefixes ────────────────────────────────────────────────────────

// Group creates an inline group — Laravel: Route::group([], fn)
func (r *Router) Group(fn func(r *Router)) {
	r.mux.Group(func(mx chi.Router) {
		fn(&Router{mux: mx, invoker: r.invoker, log: r.log})
	})
}

// Prefix creates a sub-router with a URL prefix — Laravel: Route::prefix('/api')
func (r *Router) Prefix(pattern string, fn func(r *Router)) {
	r.mux.Route(pattern, func(mx chi.Router) {
		fn(&Router{mux: mx, invoker: r.invoker, log: r.log})
	})
}

// Middleware adds one or more middleware to the router.
func (r *Router) Middleware(mw ...func(http.Handler) http.Handler) {
	r.mux.Use(mw...)
}

// ── Controller actions ───────────────────────────────────────────────────────

// Action routes method+pattern to a controller method. The controller is
// target (an identifier fetched from the container on every request, or
// a live value) and the method's parameters are planned by the container
// with these presets:
//
//	"request"  → *gohttp.Request
//	"response" → *gohttp.Response
//	"ctx"      → context.Context of the request
//	<param>    → every URL route parameter, as a string
//
// A non-nil result is sent as 200 {"data": result}, a nil result as 204,
// unless the action already wrote through the response.
//
//	// Laravel: Route::get('/users/{id}', [UserController::class, 'show'])
//	r.Action(http.MethodGet, "/users/{id}", container.Key[*UserController](), "Show")
func (r *Router) Action(method, pattern string, target any, action string) {
	r.mux.Method(method, pattern, r.dispatch(target, action))
}

// Resource registers standard RESTful actions for a resource controller.
//
//	GET    /photos           → Index
//	POST   /photos           → Store
//	GET    /photos/{id}      → Show
//	PUT    /photos/{id}      → Update
//	PATCH  /photos/{id}      → Update
//	DELETE /photos/{id}      → Destroy
func (r *Router) Resource(pattern string, target any) {
	r.Action(http.MethodGet, pattern, target, "Index")
	r.Action(http.MethodPost, pattern, target, "Store")
	r.Action(http.MethodGet, pattern+"/{id}", target, "Show")
	r.Action(http.MethodPut, pattern+"/{id}", target, "Update")
	r.Action(http.MethodPatch, pattern+"/{id}", target, "Update")
	r.Action(http.MethodDelete, pattern+"/{id}", target, "Destroy")
}

func (r *Router) dispatch(target any, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		request := gohttp.NewRequest(req)
		res := gohttp.NewResponse(w)

		presets := map[string]any{
			"request":  request,
			"response": res,
			"ctx":      req.Context(),
		}
		for k, v := range request.RouteParams() {
			presets[k] = v
		}

		out, err := r.invoker.Invoke(target, action, presets)
		switch {
		case err != nil:
			r.fail(res, target, action, err)
		case res.Written():
		case out == nil:
			res.NoContent()
		default:
			res.Success(out)
		}
	}
}

func (r *Router) fail(res *gohttp.Response, target any, action string, err error) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		res.Error(httpErr.Status, httpErr.Message)
		return
	}
	var verrs *gohttp.ValidationErrors
	if errors.As(err, &verrs) {
		res.ValidationError(verrs)
		return
	}

	var ce *container.ContainerError
	if container.IsNotFound(err) || errors.As(err, &ce) {
		r.log.Error("controller action misconfigured",
			zap.Any("target", target), zap.String("action", action), zap.Error(err))
	} else {
		r.log.Error("controller action failed",
			zap.Any("target", target), zap.String("action", action), zap.Error(err))
	}
	res.ServerError()
}

// ── Errors ───────────────────────────────────────────────────────────────────

// HTTPError is returned by controller actions to send a specific status.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// Abort builds an *HTTPError.
//
//	// Laravel: abort(404, 'User not found')
//	return nil, routing.Abort(http.StatusNotFound, "User not found")
func Abort(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &HTTPError{Status: status, Message: message}
}

// ── Middleware ───────────────────────────────────────────────────────────────

// RequestLogger logs every request through log once it completes.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("method", req.Method),
					zap.String("path", req.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(req.Context())),
				)
			}()
			next.ServeHTTP(ww, req)
		})
	}
}

// ── Params ───────────────────────────────────────────────────────────────────

// Param extracts a URL param — equivalent to $request->route('id')
func Param(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// ── Serve ────────────────────────────────────────────────────────────────────

// ServeHTTP implements http.Handler so Router can be passed to http.ListenAndServe.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the underlying http.Handler (for testing etc.).
func (r *Router) Handler() http.Handler {
	return r.mux
}
