package router

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"regexp"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// OpenAPIPath is where the API description is served
const OpenAPIPath = "/openapi.yaml"

//go:embed openapi.yaml
var openAPISpec []byte

// OpenAPISpec returns the raw API description
func OpenAPISpec() []byte {
	return openAPISpec
}

// LoadOpenAPI parses and validates the embedded API description
func LoadOpenAPI(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("parse openapi: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi: %w", err)
	}
	return doc, nil
}

// RegisterDocs serves the API description and the Swagger UI pointing at it.
// guard runs before both routes.
func RegisterDocs(engine *gin.Engine, guard gin.HandlerFunc) {
	handlers := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if guard == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{guard, h}
	}

	engine.GET(OpenAPIPath, handlers(func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", openAPISpec)
	})...)
	engine.GET("/swagger/*any", handlers(ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(OpenAPIPath)))...)
}

var ginParam = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// OpenAPIPathOf converts a gin route path to its OpenAPI template form
func OpenAPIPathOf(ginPath string) string {
	return ginParam.ReplaceAllString(ginPath, "{$1}")
}
