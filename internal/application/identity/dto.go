package identity

import (
	"time"

	"github.com/gamekeys/backend/internal/domain/identity"
	"github.com/google/uuid"
)

// RegisterInput contains the input for customer sign-up
type RegisterInput struct {
	Email    string `json:"email" binding:"required,email,max=200"`
	Name     string `json:"name" binding:"required,min=1,max=120"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	TaxID    string `json:"tax_id,omitempty" binding:"omitempty,max=18"`
	IP       string `json:"-"`
}

// LoginInput contains the input for user login
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	IP       string `json:"-"` // Client IP for login tracking
}

// AuthResult contains the token pair and the authenticated user
type AuthResult struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
	User                  UserDTO   `json:"user"`
}

// RefreshTokenInput contains the input for token refresh
type RefreshTokenInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResult contains a refreshed token pair
type TokenResult struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// LogoutInput contains the input for user logout
type LogoutInput struct {
	UserID       uuid.UUID
	AccessJTI    string        // JWT ID of the access token in use
	AccessTTL    time.Duration // remaining lifetime of the access token
	RefreshToken string        // optional, revoked as well when present
}

// UpdateProfileInput contains the editable profile fields
type UpdateProfileInput struct {
	Name  string `json:"name" binding:"required,min=1,max=120"`
	TaxID string `json:"tax_id" binding:"omitempty,max=18"`
}

// ChangePasswordInput contains the input for a password change
type ChangePasswordInput struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

// UserDTO represents a user in API responses
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	TaxID       string     `json:"tax_id,omitempty"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	IsLocked    bool       `json:"is_locked"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ToUserDTO converts a domain User to UserDTO
func ToUserDTO(user *identity.User) UserDTO {
	return UserDTO{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		TaxID:       user.TaxID,
		Role:        string(user.Role),
		Status:      string(user.Status),
		IsLocked:    user.IsLocked(),
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

// UserListFilter contains the admin user listing filters
type UserListFilter struct {
	Search   string `form:"search"`
	Role     string `form:"role" binding:"omitempty,oneof=customer admin"`
	Status   string `form:"status" binding:"omitempty,oneof=active disabled"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// UserListResult contains a page of users
type UserListResult struct {
	Users    []UserDTO `json:"users"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}
