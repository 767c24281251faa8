package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gamekeys/backend/internal/application/identity"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAuthService is a mock implementation of AuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, input identity.RegisterInput) (*identity.AuthResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.AuthResult), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, input identity.LoginInput) (*identity.AuthResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.AuthResult), args.Error(1)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, input identity.RefreshTokenInput) (*identity.TokenResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.TokenResult), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, input identity.LogoutInput) error {
	return m.Called(ctx, input).Error(0)
}

func (m *MockAuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*identity.UserDTO, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.UserDTO), args.Error(1)
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, input identity.UpdateProfileInput) (*identity.UserDTO, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.UserDTO), args.Error(1)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID uuid.UUID, input identity.ChangePasswordInput) error {
	return m.Called(ctx, userID, input).Error(0)
}

func setupAuthRouter(svc *MockAuthService) *gin.Engine {
	h := NewAuthHandler(svc)
	router, protected := newTestRouter()
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)
	router.POST("/auth/refresh", h.RefreshToken)
	protected.POST("/auth/logout", h.Logout)
	protected.GET("/auth/me", h.GetCurrentUser)
	protected.PUT("/auth/me", h.UpdateProfile)
	protected.PUT("/auth/password", h.ChangePassword)
	return router
}

func TestAuthHandler_Register(t *testing.T) {
	svc := new(MockAuthService)
	router := setupAuthRouter(svc)

	svc.On("Register", mock.Anything, mock.MatchedBy(func(in identity.RegisterInput) bool {
		return in.Email == "ana@example.com" && in.IP != ""
	})).Return(&identity.AuthResult{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}, nil)

	w := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"email":    "ana@example.com",
		"name":     "Ana",
		"password": "s3cret-pass",
	}, "")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"a"`)
	svc.AssertExpectations(t)
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	svc := new(MockAuthService)
	router := setupAuthRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"email":    "not-an-email",
		"name":     "Ana",
		"password": "short",
	}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ERR_VALIDATION", resp.Error.Code)
	assert.Len(t, resp.Error.Details, 2)
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, mock.AnythingOfType("identity.LoginInput")).
			Return(&identity.AuthResult{AccessToken: "tok"}, nil)

		w := doJSON(t, setupAuthRouter(svc), http.MethodPost, "/auth/login",
			map[string]string{"email": "ana@example.com", "password": "whatever"}, "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"tok"`)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, mock.Anything).
			Return(nil, shared.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password"))

		w := doJSON(t, setupAuthRouter(svc), http.MethodPost, "/auth/login",
			map[string]string{"email": "ana@example.com", "password": "wrong"}, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "INVALID_CREDENTIALS", decode(t, w).Error.Code)
	})

	t.Run("locked account", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, mock.Anything).
			Return(nil, shared.NewDomainError("ACCOUNT_LOCKED", "Account is locked"))

		w := doJSON(t, setupAuthRouter(svc), http.MethodPost, "/auth/login",
			map[string]string{"email": "ana@example.com", "password": "wrong"}, "")

		assert.Equal(t, http.StatusLocked, w.Code)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		svc := new(MockAuthService)
		w := doJSON(t, setupAuthRouter(svc), http.MethodPost, "/auth/login", `{"email":`, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "ERR_INVALID_JSON", decode(t, w).Error.Code)
	})
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	svc := new(MockAuthService)
	svc.On("RefreshToken", mock.Anything, identity.RefreshTokenInput{RefreshToken: "old"}).
		Return(&identity.TokenResult{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil)

	w := doJSON(t, setupAuthRouter(svc), http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": "old"}, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "new-refresh")
	svc.AssertExpectations(t)
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Run("revokes the access token and the sent refresh token", func(t *testing.T) {
		svc := new(MockAuthService)
		token, userID := tokenFor(t, "customer")
		claims, err := testJWT.ValidateAccessToken(token)
		require.NoError(t, err)

		svc.On("Logout", mock.Anything, mock.MatchedBy(func(in identity.LogoutInput) bool {
			return in.UserID == userID &&
				in.AccessJTI == claims.ID &&
				in.AccessTTL > 0 && in.AccessTTL <= 15*time.Minute &&
				in.RefreshToken == "refresh-me"
		})).Return(nil)

		w := doJSON(t, setupAuthRouter(svc), http.MethodPost, "/auth/logout",
			map[string]string{"refresh_token": "refresh-me"}, token)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("body is optional", func(t *testing.T) {
		svc := new(MockAuthService)
		token, _ := tokenFor(t, "customer")
		svc.On("Logout", mock.Anything, mock.MatchedBy(func(in identity.LogoutInput) bool {
			return in.RefreshToken == ""
		})).Return(nil)

		w := doJSON(t, setupAuthRouter(svc), http.MethodPost, "/auth/logout", nil, token)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("requires a token", func(t *testing.T) {
		svc := new(MockAuthService)
		w := doJSON(t, setupAuthRouter(svc), http.MethodPost, "/auth/logout", nil, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_Me(t *testing.T) {
	svc := new(MockAuthService)
	token, userID := tokenFor(t, "customer")
	svc.On("GetCurrentUser", mock.Anything, userID).
		Return(&identity.UserDTO{ID: userID, Email: "customer@example.com", Role: "customer"}, nil)

	w := doJSON(t, setupAuthRouter(svc), http.MethodGet, "/auth/me", nil, token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
}

func TestAuthHandler_UpdateProfile(t *testing.T) {
	svc := new(MockAuthService)
	token, userID := tokenFor(t, "customer")
	input := identity.UpdateProfileInput{Name: "Ana Lima", TaxID: "390.533.447-05"}
	svc.On("UpdateProfile", mock.Anything, userID, input).
		Return(&identity.UserDTO{ID: userID, Name: "Ana Lima"}, nil)

	w := doJSON(t, setupAuthRouter(svc), http.MethodPut, "/auth/me", input, token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ana Lima")
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockAuthService)
		token, userID := tokenFor(t, "customer")
		input := identity.ChangePasswordInput{OldPassword: "old-password", NewPassword: "new-password"}
		svc.On("ChangePassword", mock.Anything, userID, input).Return(nil)

		w := doJSON(t, setupAuthRouter(svc), http.MethodPut, "/auth/password", input, token)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("wrong current password", func(t *testing.T) {
		svc := new(MockAuthService)
		token, _ := tokenFor(t, "customer")
		svc.On("ChangePassword", mock.Anything, mock.Anything, mock.Anything).
			Return(shared.NewDomainError("INVALID_CREDENTIALS", "Current password is incorrect"))

		w := doJSON(t, setupAuthRouter(svc), http.MethodPut, "/auth/password",
			identity.ChangePasswordInput{OldPassword: "nope", NewPassword: "new-password"}, token)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
