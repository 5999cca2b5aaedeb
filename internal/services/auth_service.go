package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/johkker/delice/internal/auth"
	"github.com/johkker/delice/internal/models"
	pkgauth "github.com/johkker/delice/pkg/auth"
	pkglogger "github.com/johkker/delice/pkg/logger"
)

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int64         `json:"expires_in"`
	User        *UserResponse `json:"user"`
}

func newAuthResponse(tm *auth.TokenManager, user *models.User) (*AuthResponse, error) {
	token, err := tm.GenerateAccessToken(user.ID, user.Email, user.Roles)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   tm.ExpiresIn(),
		User:        NewUserResponse(user),
	}, nil
}

// AuthService handles password login
type AuthService struct {
	repo        UserRepository
	tm          *auth.TokenManager
	hasher      *pkgauth.Hasher
	timingDelay *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAuthService(repo UserRepository, tm *auth.TokenManager, hasher *pkgauth.Hasher, timingDelay *auth.TimingDelay, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		tm:          tm,
		hasher:      hasher,
		timingDelay: timingDelay,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Login authenticates a user by email and password. Unknown accounts and
// wrong passwords both return ErrUnauthorized after the same padded delay.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	start := time.Now()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		s.timingDelay.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.auditLogger.Log(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventLogin,
				FailureReason: "invalid_credentials",
			})
			s.timingDelay.WaitFrom(start, false)
			return nil, models.ErrUnauthorized
		}
		return nil, internalError(ctx, s.logger, "failed to get user by email", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.logger.Info("login failed: invalid credentials", slog.String("user_id", user.ID))
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLogin,
			UserID:        user.ID,
			FailureReason: "invalid_credentials",
		})
		s.timingDelay.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	resp, err := newAuthResponse(s.tm, user)
	if err != nil {
		return nil, internalError(ctx, s.logger, "failed to generate access token", err, slog.String("user_id", user.ID))
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		UserID:    user.ID,
		Success:   true,
	})
	return resp, nil
}
