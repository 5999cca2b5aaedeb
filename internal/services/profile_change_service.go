package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/johkker/delice/internal/auth"
	"github.com/johkker/delice/internal/cache"
	"github.com/johkker/delice/internal/config"
	"github.com/johkker/delice/internal/models"
	"github.com/johkker/delice/internal/verification"
	pkgauth "github.com/johkker/delice/pkg/auth"
	pkglogger "github.com/johkker/delice/pkg/logger"
)

const profileChangePrefix = "profile-update:"

type ChangeResult struct {
	Kind verification.Kind `json:"kind"`
	User *UserResponse     `json:"user"`
}

// ProfileChangeService confirms email, phone and password changes with a
// single code sent to the channel the change is about.
type ProfileChangeService struct {
	repo        UserRepository
	sessions    *verification.Manager
	hasher      *pkgauth.Hasher
	timingDelay *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewProfileChangeService(
	repo UserRepository,
	store cache.Store,
	notifier verification.Notifier,
	hasher *pkgauth.Hasher,
	timingDelay *auth.TimingDelay,
	cfg config.VerificationConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *ProfileChangeService {
	sessions := verification.NewManager(store, withSendTimeout(notifier, cfg.SendTimeout), verification.Options{
		Prefix:     profileChangePrefix,
		TTL:        cfg.TTL,
		CodeDigits: cfg.CodeDigits,
	}, logger)

	return &ProfileChangeService{
		repo:        repo,
		sessions:    sessions,
		hasher:      hasher,
		timingDelay: timingDelay,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// InitiateEmailChange sends a code to newEmail after re-checking the
// current password.
func (s *ProfileChangeService) InitiateEmailChange(ctx context.Context, userID, newEmail, currentPassword string) (*VerificationStarted, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	email, err := normalizeEmail(newEmail)
	if err != nil {
		return nil, err
	}
	if email == user.Email {
		return nil, models.ErrSameValue
	}

	if err := s.checkPassword(ctx, user, currentPassword); err != nil {
		return nil, err
	}

	if err := s.checkUnclaimed(ctx, user.ID, s.repo.GetByEmail, email, models.ErrEmailInUse); err != nil {
		return nil, err
	}

	return s.start(ctx, user.ID, verification.EmailChangePayload{UserID: user.ID, NewEmail: email},
		verification.ChannelEmail, verification.Recipient{Address: email, Name: user.Name})
}

// InitiatePhoneChange sends a code to newPhone after re-checking the
// current password.
func (s *ProfileChangeService) InitiatePhoneChange(ctx context.Context, userID, newPhone, currentPassword string) (*VerificationStarted, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	phone, err := normalizePhone(newPhone)
	if err != nil {
		return nil, err
	}
	if phone == user.Phone {
		return nil, models.ErrSameValue
	}

	if err := s.checkPassword(ctx, user, currentPassword); err != nil {
		return nil, err
	}

	if err := s.checkUnclaimed(ctx, user.ID, s.repo.GetByPhone, phone, models.ErrPhoneInUse); err != nil {
		return nil, err
	}

	return s.start(ctx, user.ID, verification.PhoneChangePayload{UserID: user.ID, NewPhone: phone},
		verification.ChannelPhone, verification.Recipient{Address: phone, Name: user.Name})
}

// InitiatePasswordChange hashes newPassword into the session and sends the
// code to the account's current email.
func (s *ProfileChangeService) InitiatePasswordChange(ctx context.Context, userID, newPassword string) (*VerificationStarted, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return nil, models.ErrInvalidPassword
	}
	if s.hasher.Compare(user.PasswordHash, newPassword) == nil {
		return nil, models.ErrSameValue
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, internalError(ctx, s.logger, "failed to hash password", err)
	}

	return s.start(ctx, user.ID, verification.PasswordChangePayload{UserID: user.ID, PasswordHash: hash},
		verification.ChannelEmail, verification.Recipient{Address: user.Email, Name: user.Name})
}

// Complete verifies code and applies the pending change. The session is
// consumed before the change is written; if the write fails the change is
// discarded and must be requested again.
func (s *ProfileChangeService) Complete(ctx context.Context, userID, token, code string) (*ChangeResult, error) {
	session, err := s.ownedSession(ctx, userID, token)
	if err != nil {
		return nil, err
	}

	channel := session.Kind.Channels()[0]
	ok, err := s.sessions.VerifyCode(ctx, token, channel, strings.TrimSpace(code))
	if err != nil {
		return nil, s.sessionErr(ctx, "failed to verify change code", err)
	}
	if !ok {
		return nil, models.ErrInvalidCode
	}

	consumed, err := s.sessions.Consume(ctx, token)
	if err != nil {
		return nil, s.sessionErr(ctx, "failed to consume change session", err)
	}

	var user *models.User
	switch p := consumed.Payload.(type) {
	case verification.EmailChangePayload:
		user, err = s.repo.UpdateEmail(ctx, p.UserID, p.NewEmail)
	case verification.PhoneChangePayload:
		user, err = s.repo.UpdatePhone(ctx, p.UserID, p.NewPhone)
	case verification.PasswordChangePayload:
		user, err = s.repo.UpdatePassword(ctx, p.UserID, p.PasswordHash)
	default:
		return nil, internalError(ctx, s.logger, "unexpected change payload",
			fmt.Errorf("payload kind %s", consumed.Payload.Kind()))
	}
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			s.logger.WarnContext(ctx, "verified change discarded: user no longer exists",
				slog.String("user_id", userID),
				slog.String("kind", string(consumed.Kind)))
			return nil, models.ErrNotFound
		case errors.Is(err, models.ErrConflict):
			return nil, err
		default:
			return nil, internalError(ctx, s.logger, "failed to apply profile change", err,
				slog.String("user_id", userID),
				slog.String("kind", string(consumed.Kind)))
		}
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventChangeApplied, user.ID, map[string]string{
		"kind": string(consumed.Kind),
	})

	return &ChangeResult{Kind: consumed.Kind, User: NewUserResponse(user)}, nil
}

// Resend issues a fresh code to the recipient captured at initiation.
func (s *ProfileChangeService) Resend(ctx context.Context, userID, token string) (*VerificationStarted, error) {
	session, err := s.ownedSession(ctx, userID, token)
	if err != nil {
		return nil, err
	}

	resent, err := s.sessions.Resend(ctx, token, session.Kind.Channels())
	if err != nil {
		if errors.Is(err, models.ErrDeliveryFailed) {
			s.logger.WarnContext(ctx, "change code not delivered on resend",
				slog.String("user_id", userID),
				slog.Any("error", err))
			return nil, models.ErrDeliveryFailed
		}
		return nil, s.sessionErr(ctx, "failed to resend change code", err)
	}

	// A verified channel left behind by a failed completion gets no new code.
	if len(resent) == 0 {
		return nil, models.ErrAlreadyVerified
	}

	return &VerificationStarted{Token: token, ExpiresInMinutes: s.expiresInMinutes()}, nil
}

func (s *ProfileChangeService) start(ctx context.Context, userID string, payload verification.ChangePayload, channel verification.Channel, to verification.Recipient) (*VerificationStarted, error) {
	token, err := s.sessions.Start(ctx, verification.StartRequest{
		Payload:    payload,
		Recipients: map[verification.Channel]verification.Recipient{channel: to},
		Channels:   []verification.Channel{channel},
	})
	if err != nil {
		if errors.Is(err, models.ErrDeliveryFailed) {
			s.logger.WarnContext(ctx, "change code not delivered",
				slog.String("user_id", userID),
				slog.String("kind", string(payload.Kind())),
				slog.Any("error", err))
			if derr := s.sessions.Delete(ctx, token); derr != nil {
				s.logger.ErrorContext(ctx, "failed to delete undelivered change session", slog.Any("error", derr))
			}
			return nil, models.ErrDeliveryFailed
		}
		return nil, internalError(ctx, s.logger, "failed to start change session", err)
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventChangeRequested, userID, map[string]string{
		"kind": string(payload.Kind()),
	})

	return &VerificationStarted{Token: token, ExpiresInMinutes: s.expiresInMinutes()}, nil
}

func (s *ProfileChangeService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, internalError(ctx, s.logger, "failed to get user", err, slog.String("user_id", userID))
	}
	return user, nil
}

func (s *ProfileChangeService) checkPassword(ctx context.Context, user *models.User, password string) error {
	start := time.Now()
	if password == "" || s.hasher.Compare(user.PasswordHash, password) != nil {
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventChangeRequested,
			UserID:        user.ID,
			FailureReason: "invalid_password",
		})
		s.timingDelay.WaitFrom(start, false)
		return models.ErrUnauthorized
	}
	return nil
}

// checkUnclaimed fails with inUse when value belongs to another account.
func (s *ProfileChangeService) checkUnclaimed(ctx context.Context, userID string, lookup func(context.Context, string) (*models.User, error), value string, inUse error) error {
	other, err := lookup(ctx, value)
	switch {
	case err == nil && other.ID != userID:
		return inUse
	case err == nil, errors.Is(err, models.ErrNotFound):
		return nil
	default:
		return internalError(ctx, s.logger, "failed to check availability", err)
	}
}

// ownedSession returns the session only if it is a change of userID's account.
func (s *ProfileChangeService) ownedSession(ctx context.Context, userID, token string) (*verification.Session, error) {
	session, err := s.sessions.Session(ctx, token)
	if err != nil {
		return nil, s.sessionErr(ctx, "failed to read change session", err)
	}

	payload, ok := session.Payload.(verification.ChangePayload)
	if !ok || payload.TargetUserID() != userID {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

func (s *ProfileChangeService) sessionErr(ctx context.Context, msg string, err error) error {
	if errors.Is(err, models.ErrSessionNotFound) {
		return models.ErrSessionNotFound
	}
	return internalError(ctx, s.logger, msg, err)
}

func (s *ProfileChangeService) expiresInMinutes() int {
	return expiresInMinutes(s.sessions.TTL())
}
