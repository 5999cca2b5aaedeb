package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/johkker/delice/internal/models"
	pkglogger "github.com/johkker/delice/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	GetByDocument(ctx context.Context, document string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateEmail(ctx context.Context, id, email string) (*models.User, error)
	UpdatePhone(ctx context.Context, id, phone string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, name, avatarURL *string) (*models.User, error)
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Document      string   `json:"document"`
	AvatarURL     *string  `json:"avatar_url,omitempty"`
	Roles         []string `json:"roles"`
	EmailVerified bool     `json:"email_verified"`
	PhoneVerified bool     `json:"phone_verified"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

func NewUserResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		Document:      u.Document,
		AvatarURL:     u.AvatarURL,
		Roles:         u.Roles,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		CreatedAt:     u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     u.UpdatedAt.Format(time.RFC3339),
	}
}

// UpdateProfileInput carries the profile fields that need no verification.
// Nil fields are left unchanged.
type UpdateProfileInput struct {
	Name      *string
	AvatarURL *string
}

// UserService handles profile reads and unverified profile updates
type UserService struct {
	repo        UserRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewUserService(repo UserRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found", slog.String("user_id", userID))
			return nil, models.ErrNotFound
		}
		return nil, internalError(ctx, s.logger, "failed to get user", err, slog.String("user_id", userID))
	}

	return NewUserResponse(user), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*UserResponse, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, models.ErrBadRequest
		}
		in.Name = &name
	}
	if in.AvatarURL != nil {
		avatar := strings.TrimSpace(*in.AvatarURL)
		in.AvatarURL = &avatar
	}
	if in.Name == nil && in.AvatarURL == nil {
		return s.GetProfile(ctx, userID)
	}

	user, err := s.repo.UpdateProfile(ctx, userID, in.Name, in.AvatarURL)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, internalError(ctx, s.logger, "failed to update profile", err, slog.String("user_id", userID))
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventProfileUpdated, userID, nil)
	return NewUserResponse(user), nil
}

// internalError logs err with full detail and returns the generic sentinel.
func internalError(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) error {
	logger.ErrorContext(ctx, msg, append(attrs, slog.Any("error", err))...)
	return models.ErrInternalServer
}
