package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gamekeys/backend/internal/infrastructure/auth"
	"github.com/gamekeys/backend/internal/infrastructure/config"
	"github.com/gamekeys/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testJWT = auth.NewJWTService(config.JWTConfig{
	Secret:                 "handler-test-secret-32-characters",
	RefreshSecret:          "handler-test-refresh-32-characters",
	AccessTokenExpiration:  15 * time.Minute,
	RefreshTokenExpiration: time.Hour,
	Issuer:                 "gamekeys-test",
	MaxRefreshCount:        5,
})

// tokenFor issues an access token for a fresh user with the given role
func tokenFor(t *testing.T, role string) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	pair, err := testJWT.GenerateTokenPair(auth.GenerateTokenInput{
		UserID: userID,
		Email:  role + "@example.com",
		Role:   role,
	})
	require.NoError(t, err)
	return pair.AccessToken, userID
}

// newTestRouter returns an engine with request IDs and a protected group
func newTestRouter() (*gin.Engine, *gin.RouterGroup) {
	router := gin.New()
	router.Use(middleware.RequestID())
	protected := router.Group("/", middleware.JWTAuthMiddleware(testJWT))
	return router, protected
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
