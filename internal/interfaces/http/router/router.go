package router

import (
	"net/http"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/interfaces/http/dto"
	"github.com/erp/fulfillment/internal/interfaces/http/handler"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
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

// Register adds registrars to be mounted by Setup
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup mounts every registrar under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig configures the middleware chain of the HTTP engine
type EngineConfig struct {
	ServiceName      string
	Logger           *zap.Logger
	Meter            metric.Meter
	TracingEnabled   bool
	ProfilingEnabled bool
	CORS             middleware.CORSConfig
	TrustedProxies   []string
	MaxBodySize      int64
	IdempotencyStore shared.IdempotencyStore
	IdempotencyTTL   time.Duration
}

// NewEngine builds a gin engine with the service middleware chain. The
// order matters: recovery wraps everything, the request id exists before
// tracing and logging read it, and idempotency runs last so a duplicate is
// still traced, measured and logged.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled}),
		middleware.SpanAnnotator(),
		middleware.HTTPMetrics(cfg.Meter),
		middleware.Profiling(middleware.ProfilingConfig{Enabled: cfg.ProfilingEnabled, SkipPaths: []string{"/health"}}),
		logger.GinMiddleware(log),
		middleware.CORS(cfg.CORS),
		middleware.Secure(),
		middleware.BodyLimit(cfg.MaxBodySize),
		middleware.Idempotency(cfg.IdempotencyStore, cfg.IdempotencyTTL),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.Set(middleware.ErrorCodeKey, dto.ErrCodeRouteNotFound)
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRouteNotFound,
			"Route "+c.Request.Method+" "+c.Request.URL.Path+" not found",
			middleware.GetRequestID(c),
		))
	})

	return engine, nil
}

// Handlers groups the HTTP handlers of the service
type Handlers struct {
	Documents    *handler.DocumentHandler
	Conversions  *handler.ConversionHandler
	Availability *handler.AvailabilityHandler
	Rules        *handler.RuleHandler
	Items        *handler.ItemHandler
	Events       *handler.EventHandler
	System       *handler.SystemHandler
}

// Mount registers the health check and every API route of the service
func Mount(engine *gin.Engine, h Handlers) {
	engine.GET("/health", h.System.Health)

	NewRouter(engine).Register(
		documentRoutes(h),
		conversionRoutes(h),
		inventoryRoutes(h),
		ruleRoutes(h),
		systemRoutes(h),
	).Setup()
}

func documentRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("documents", "/documents")
	g.POST("", h.Documents.Create)
	g.GET("", h.Documents.List)
	g.GET("/number/:number", h.Documents.GetByNumber)
	g.GET("/:id", h.Documents.GetByID)
	g.PUT("/:id", h.Documents.Update)
	g.POST("/:id/open", h.Documents.Open)
	g.POST("/:id/cancel", h.Documents.Cancel)
	g.POST("/:id/close", h.Documents.Close)
	g.POST("/:id/transition", h.Documents.Transition)
	g.POST("/:id/payments", h.Documents.RecordPayment)
	g.GET("/:id/conversions", h.Conversions.Targets)
	g.POST("/:id/conversions/prepare", h.Conversions.Prepare)
	g.GET("/:id/events", h.Events.History)
	return g
}

func conversionRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("conversions", "/conversions")
	g.POST("", h.Conversions.Commit)
	return g
}

func inventoryRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("inventory", "")
	g.GET("/availability/reorder", h.Availability.BelowReorderLevel)

	items := g.Group("items", "/items")
	items.PUT("/:code", h.Items.Save)
	items.GET("/:code", h.Items.Get)
	items.GET("/:code/availability", h.Availability.ListByItem)
	items.GET("/:code/availability/:warehouse", h.Availability.Get)
	items.POST("/:code/availability/:warehouse/adjust", h.Availability.AdjustStock)
	items.PUT("/:code/availability/:warehouse/thresholds", h.Availability.SetThresholds)
	items.GET("/:code/availability/:warehouse/journal", h.Availability.Journal)
	return g
}

func ruleRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("free-item-rules", "/free-item-rules")
	g.POST("", h.Rules.Create)
	g.GET("", h.Rules.List)
	g.POST("/:id/deactivate", h.Rules.Deactivate)
	return g
}

func systemRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("system", "/system")
	g.GET("/info", h.System.Info)
	return g
}

// DomainGroup collects the routes of one resource before they are mounted
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	subgroups  []*DomainGroup
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

// PUT registers a PUT route
func (dg *DomainGroup) PUT(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPut, path, handlers)
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// Group creates a sub-group within this domain
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	subgroup := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, subgroup)
	return subgroup
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
	for _, subgroup := range dg.subgroups {
		subgroup.RegisterRoutes(group)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}
