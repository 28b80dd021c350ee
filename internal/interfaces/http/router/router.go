// Package router assembles the gin engine: the middleware chain and the
// versioned route groups of the stock ledger API.
package router

import (
	"net/http"

	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/interfaces/http/handler"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
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

// Register adds a RouteRegistrar to be registered by Setup
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup collects the routes of one resource under a shared prefix
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// Handle registers a route with an arbitrary method
func (dg *DomainGroup) Handle(method, path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, path, handlers...)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, path, handlers...)
}

// PUT registers a PUT route
func (dg *DomainGroup) PUT(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPut, path, handlers...)
}

// DELETE registers a DELETE route
func (dg *DomainGroup) DELETE(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodDelete, path, handlers...)
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
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// Handlers bundles the API handlers. A nil handler leaves its group unregistered.
type Handlers struct {
	Item       *handler.ItemHandler
	Batch      *handler.BatchHandler
	Stock      *handler.StockHandler
	Transfer   *handler.TransferHandler
	Conversion *handler.ConversionHandler
	Expiry     *handler.ExpiryHandler
	Health     *handler.HealthHandler
}

// Options configures the engine middleware
type Options struct {
	ServiceName    string
	HTTP           config.HTTPConfig
	TracingEnabled bool
	Meter          metric.Meter
	Logger         *zap.Logger
}

// NewEngine builds a gin engine with the full middleware chain and every route
func NewEngine(opts Options, h Handlers) (*gin.Engine, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	cors := middleware.DefaultCORSConfig()
	if len(opts.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = opts.HTTP.CORSAllowOrigins
	}
	if len(opts.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = opts.HTTP.CORSAllowMethods
	}
	if len(opts.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = opts.HTTP.CORSAllowHeaders
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Actor(),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: opts.ServiceName,
			Enabled:     opts.TracingEnabled,
		}),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		middleware.HTTPMetrics(opts.Meter, log),
		middleware.CORSWithConfig(cors),
		middleware.BodyLimit(opts.HTTP.MaxBodySize),
		middleware.Timeout(opts.HTTP.RequestTimeout),
	)

	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
		engine.GET("/ping", h.Health.Ping)
	}

	NewRouter(engine).Register(domainGroups(h)...).Setup()
	return engine, nil
}

func domainGroups(h Handlers) []RouteRegistrar {
	var groups []RouteRegistrar

	if h.Item != nil {
		groups = append(groups, NewDomainGroup("items", "/items").
			POST("", h.Item.Create).
			GET("", h.Item.List).
			GET("/sku/:sku", h.Item.GetBySKU).
			GET("/:id", h.Item.GetByID).
			PUT("/:id/thresholds", h.Item.UpdateThresholds).
			POST("/:id/deactivate", h.Item.Deactivate))
	}

	if h.Batch != nil {
		groups = append(groups, NewDomainGroup("batches", "/batches").
			POST("", h.Batch.Create).
			GET("", h.Batch.List).
			GET("/lookup", h.Batch.GetByNumber).
			GET("/expiring", h.Batch.ListExpiring).
			GET("/expired", h.Batch.ListExpired).
			GET("/statistics", h.Batch.Statistics).
			GET("/:id", h.Batch.GetByID).
			PUT("/:id", h.Batch.Update).
			DELETE("/:id", h.Batch.Delete).
			POST("/:id/quarantine", h.Batch.Quarantine).
			POST("/:id/release", h.Batch.Release).
			POST("/:id/quantity", h.Batch.UpdateQuantity))
	}

	if h.Stock != nil {
		groups = append(groups,
			NewDomainGroup("stock", "/stock").
				GET("", h.Stock.Get).
				POST("/add", h.Stock.Add).
				POST("/remove", h.Stock.Remove).
				POST("/adjust", h.Stock.Adjust).
				POST("/allocate", h.Stock.Allocate).
				POST("/release", h.Stock.Release).
				PUT("/reorder-point", h.Stock.SetReorderPoint).
				GET("/low", h.Stock.LowStock).
				GET("/items/:id", h.Stock.ByItem).
				GET("/locations/:id", h.Stock.ByLocation),
			NewDomainGroup("movements", "/movements").
				GET("", h.Stock.Movements),
		)
	}

	if h.Transfer != nil {
		groups = append(groups, NewDomainGroup("transfers", "/transfers").
			POST("", h.Transfer.Transfer))
	}

	if h.Conversion != nil {
		groups = append(groups, NewDomainGroup("conversions", "/conversions").
			POST("/units", h.Conversion.Units).
			POST("/boxes", h.Conversion.Boxes).
			POST("/cartons", h.Conversion.Cartons).
			POST("/line-total", h.Conversion.LineTotal).
			POST("/format", h.Conversion.Format))
	}

	if h.Expiry != nil {
		groups = append(groups, NewDomainGroup("expiry", "/expiry").
			POST("/sweep", h.Expiry.Trigger).
			GET("/status", h.Expiry.Status))
	}

	return groups
}
