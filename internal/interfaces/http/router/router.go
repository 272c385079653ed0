// Package router assembles the gin engine of the finance API.
package router

import (
	"fmt"
	"time"

	"github.com/erp/finkernel/internal/infrastructure/logger"
	"github.com/erp/finkernel/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration. Public registrars are mounted at
// the root without a tenant scope; the rest live under /api/{version}.
type Router struct {
	engine        *gin.Engine
	apiVersion    string
	apiMiddleware []gin.HandlerFunc
	public        []RouteRegistrar
	registrars    []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithAPIMiddleware adds middleware that runs only for versioned routes
func WithAPIMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.apiMiddleware = append(r.apiMiddleware, mw...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds registrars mounted under the versioned API group
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// RegisterPublic adds registrars mounted at the engine root
func (r *Router) RegisterPublic(registrars ...RouteRegistrar) *Router {
	r.public = append(r.public, registrars...)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	for _, registrar := range r.public {
		registrar.RegisterRoutes(&r.engine.RouterGroup)
	}
	api := r.engine.Group("/api/"+r.apiVersion, r.apiMiddleware...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// Options configures the middleware chain of NewEngine. A zero Scope
// falls back to middleware.DefaultScopeConfig.
type Options struct {
	Logger         *zap.Logger
	Tracing        middleware.TracingConfig
	Meter          metric.Meter
	Profiling      bool
	Limiter        *middleware.RateLimiter
	MaxBodySize    int64
	CORS           middleware.CORSConfig
	Timeout        time.Duration
	Scope          middleware.ScopeConfig
	TrustedProxies []string
}

// NewEngine builds a gin engine with the global middleware chain. Access
// logs and metrics wrap RequestScope so rejected requests are still
// recorded; span tags and the rate limiter run after it.
func NewEngine(opts Options) (*gin.Engine, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	scope := opts.Scope
	if scope.SkipPaths == nil {
		scope = middleware.DefaultScopeConfig()
	}

	metrics, err := middleware.HTTPMetrics(opts.Meter)
	if err != nil {
		return nil, fmt.Errorf("create http metrics: %w", err)
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Tracing(opts.Tracing),
		metrics,
		middleware.CORS(opts.CORS),
		middleware.Secure(),
		middleware.RequestScope(scope),
		middleware.SpanScope(),
		middleware.Profiling(opts.Profiling),
	)
	if opts.Limiter != nil {
		engine.Use(middleware.RateLimit(opts.Limiter))
	}
	if opts.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(opts.MaxBodySize))
	}
	if opts.Timeout > 0 {
		engine.Use(middleware.Timeout(opts.Timeout))
	}
	return engine, nil
}
