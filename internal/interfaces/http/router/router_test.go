package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/stockledger/internal/domain/shared/service"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/interfaces/http/handler"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("test", "/test").
		GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") }).
		DELETE("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
	NewRouter(engine).Register(group).Setup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/test/42", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, "42", w.Body.String())
}

func TestDomainGroup_Middleware(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("guarded", "/guarded").
		Use(func(c *gin.Context) {
			c.Header("X-Group", "guarded")
			c.Next()
		}).
		POST("", func(c *gin.Context) { c.Status(http.StatusCreated) })
	group.RegisterRoutes(engine.Group("/api/v1"))

	assert.Equal(t, "guarded", group.Name())
	assert.Equal(t, "/guarded", group.Prefix())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/guarded", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "guarded", w.Header().Get("X-Group"))
}

func newTestEngine(t *testing.T, httpCfg config.HTTPConfig) *gin.Engine {
	t.Helper()
	engine, err := NewEngine(Options{
		ServiceName: "stockledger-test",
		HTTP:        httpCfg,
		Logger:      zaptest.NewLogger(t),
	}, Handlers{
		Conversion: handler.NewConversionHandler(service.NewUnitConversionService()),
		Health:     handler.NewHealthHandler(nil),
	})
	require.NoError(t, err)
	return engine
}

func TestNewEngine_Routes(t *testing.T) {
	engine := newTestEngine(t, config.HTTPConfig{})

	routes := make(map[string]bool)
	for _, r := range engine.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	assert.True(t, routes["GET /health"])
	assert.True(t, routes["POST /api/v1/conversions/units"])
	assert.True(t, routes["POST /api/v1/conversions/line-total"])
	assert.False(t, routes["POST /api/v1/transfers"], "nil handlers are not registered")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversions/units",
		strings.NewReader(`{"box_qty":2,"pack_size":6}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"units":12`)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestNewEngine_Middleware(t *testing.T) {
	engine := newTestEngine(t, config.HTTPConfig{
		MaxBodySize:      16,
		CORSAllowOrigins: []string{"https://ops.example.com"},
	})

	t.Run("request id is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("invalid actor is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(middleware.ActorIDHeader, "someone")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/conversions/units",
			strings.NewReader(`{"box_qty":2,"pack_size":6,"padding":"xxxxxxxx"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("configured origin gets cors headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/conversions/units", nil)
		req.Header.Set("Origin", "https://ops.example.com")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})
}
