package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Equal(t, "/api/v1", r.BasePath())
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "/api/v2", r.BasePath())
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/test/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup_Methods(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("test", "/test")
	ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }
	g.GET("/items", ok).
		POST("/items", ok).
		PUT("/items/:id", ok).
		PATCH("/items/:id", ok).
		DELETE("/items/:id", ok)
	g.RegisterRoutes(engine.Group("/api/v1"))

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/test/items"},
		{http.MethodPost, "/api/v1/test/items"},
		{http.MethodPut, "/api/v1/test/items/1"},
		{http.MethodPatch, "/api/v1/test/items/1"},
		{http.MethodDelete, "/api/v1/test/items/1"},
	}
	for _, tt := range tests {
		w := serve(engine, tt.method, tt.path)
		assert.Equal(t, http.StatusOK, w.Code, "%s %s", tt.method, tt.path)
		assert.Equal(t, tt.method, w.Body.String())
	}
}

func TestDomainGroup_Middleware(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("shop", "/shop")
	g.Use(nil, func(c *gin.Context) {
		c.Header("X-Group", "shop")
		c.Next()
	})
	g.Group("inner", "/inner").GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	g.RegisterRoutes(engine.Group("/api/v1"))

	w := serve(engine, http.MethodGet, "/api/v1/shop/inner/x")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "shop", w.Header().Get("X-Group"), "sub-groups inherit middleware")
}

func TestDomainGroup_Routes(t *testing.T) {
	noop := func(*gin.Context) {}
	g := NewDomainGroup("catalog", "/catalog")
	g.GET("", noop)
	g.Group("products", "/products").GET("/:id", noop)
	g.Group("empty-prefix", "").POST("/search", noop)

	assert.Equal(t, []RouteInfo{
		{Method: http.MethodGet, Path: "/catalog"},
		{Method: http.MethodGet, Path: "/catalog/products/:id"},
		{Method: http.MethodPost, Path: "/catalog/search"},
	}, g.Routes())
}

func TestOpenAPIPathOf(t *testing.T) {
	assert.Equal(t, "/orders/{id}/checkout/pix", OpenAPIPathOf("/orders/:id/checkout/pix"))
	assert.Equal(t, "/cart/items/{product_id}", OpenAPIPathOf("/cart/items/:product_id"))
	assert.Equal(t, "/cart", OpenAPIPathOf("/cart"))
}
