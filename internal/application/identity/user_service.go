package identity

import (
	"context"
	"time"

	"github.com/gamekeys/backend/internal/domain/identity"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/gamekeys/backend/internal/infrastructure/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserService handles account administration
type UserService struct {
	userRepo  identity.UserRepository
	blacklist auth.TokenBlacklist
	tokenTTL  time.Duration // lifetime of the longest-lived token, used for revocation entries
	logger    *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(
	userRepo identity.UserRepository,
	blacklist auth.TokenBlacklist,
	tokenTTL time.Duration,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		blacklist: blacklist,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// List returns a page of users
func (s *UserService) List(ctx context.Context, filter UserListFilter) (*UserListResult, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
		filter.OrderDir = "desc"
	}

	users, total, err := s.userRepo.FindAll(ctx, identity.UserFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		Role:   identity.Role(filter.Role),
		Status: identity.UserStatus(filter.Status),
	})
	if err != nil {
		return nil, err
	}

	dtos := make([]UserDTO, len(users))
	for i := range users {
		dtos[i] = ToUserDTO(&users[i])
	}

	return &UserListResult{
		Users:    dtos,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// Get retrieves a user by ID
func (s *UserService) Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := ToUserDTO(user)
	return &dto, nil
}

// Enable re-activates a disabled account
func (s *UserService) Enable(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := user.Enable(); err != nil {
		return nil, err
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User enabled", zap.String("user_id", userID.String()))

	dto := ToUserDTO(user)
	return &dto, nil
}

// Disable blocks an account and revokes its tokens. Admins cannot disable
// their own account.
func (s *UserService) Disable(ctx context.Context, actorID, userID uuid.UUID) (*UserDTO, error) {
	if actorID == userID {
		return nil, shared.NewDomainError("CANNOT_DISABLE_SELF", "You cannot disable your own account")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := user.Disable(); err != nil {
		return nil, err
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := s.blacklist.AddUserTokensToBlacklist(ctx, userID.String(), s.tokenTTL); err != nil {
		s.logger.Error("Failed to revoke tokens of disabled user",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("User disabled",
		zap.String("user_id", userID.String()),
		zap.String("actor_id", actorID.String()))

	dto := ToUserDTO(user)
	return &dto, nil
}
