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

const registrationPrefix = "verification:"

// Notifier delivers verification codes and the post-signup welcome email.
type Notifier interface {
	verification.Notifier
	SendWelcome(ctx context.Context, name, email string) error
}

type RegistrationInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Document string
	Role     string
}

// VerificationStarted is returned when a session has been created.
type VerificationStarted struct {
	Token            string `json:"token"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

type RegistrationVerification struct {
	Channel         verification.Channel `json:"channel"`
	EmailVerified   bool                 `json:"email_verified"`
	PhoneVerified   bool                 `json:"phone_verified"`
	AlreadyVerified bool                 `json:"already_verified"`
	// Set once the phone is verified and the account exists.
	Auth *AuthResponse `json:"auth,omitempty"`
}

type ResendTarget string

const (
	ResendEmail ResendTarget = "email"
	ResendPhone ResendTarget = "phone"
	ResendBoth  ResendTarget = "both"
)

func (t ResendTarget) channels() ([]verification.Channel, bool) {
	switch t {
	case ResendEmail:
		return []verification.Channel{verification.ChannelEmail}, true
	case ResendPhone:
		return []verification.Channel{verification.ChannelPhone}, true
	case ResendBoth:
		return []verification.Channel{verification.ChannelEmail, verification.ChannelPhone}, true
	}
	return nil, false
}

type ResendResult struct {
	Resent          []verification.Channel `json:"resent"`
	AlreadyVerified bool                   `json:"already_verified"`
}

// RegistrationService runs phone-gated signup. The phone code is sent at
// start; the email code is only created on the first email resend.
type RegistrationService struct {
	repo        UserRepository
	sessions    *verification.Manager
	notifier    Notifier
	tm          *auth.TokenManager
	hasher      *pkgauth.Hasher
	sendTimeout time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewRegistrationService(
	repo UserRepository,
	store cache.Store,
	notifier Notifier,
	tm *auth.TokenManager,
	hasher *pkgauth.Hasher,
	cfg config.VerificationConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *RegistrationService {
	sessions := verification.NewManager(store, withSendTimeout(notifier, cfg.SendTimeout), verification.Options{
		Prefix:     registrationPrefix,
		TTL:        cfg.TTL,
		CodeDigits: cfg.CodeDigits,
	}, logger)

	return &RegistrationService{
		repo:        repo,
		sessions:    sessions,
		notifier:    notifier,
		tm:          tm,
		hasher:      hasher,
		sendTimeout: cfg.SendTimeout,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Start validates the signup data, rejects identities already registered,
// and opens a session with the phone code sent.
func (s *RegistrationService) Start(ctx context.Context, in RegistrationInput) (*VerificationStarted, error) {
	payload, err := s.buildPayload(in)
	if err != nil {
		return nil, err
	}

	if err := s.checkAvailable(ctx, payload); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, internalError(ctx, s.logger, "failed to hash password", err)
	}
	payload.PasswordHash = hash

	token, err := s.sessions.Start(ctx, verification.StartRequest{
		Payload: payload,
		Recipients: map[verification.Channel]verification.Recipient{
			verification.ChannelPhone: {Address: payload.Phone, Name: payload.Name},
			verification.ChannelEmail: {Address: payload.Email, Name: payload.Name},
		},
		Channels: []verification.Channel{verification.ChannelPhone},
	})
	if err != nil {
		var derr *verification.DeliveryError
		if !errors.As(err, &derr) {
			return nil, internalError(ctx, s.logger, "failed to start registration session", err)
		}
		s.logger.WarnContext(ctx, "registration code not delivered",
			slog.String("phone", pkglogger.SanitizedPhone(payload.Phone)),
			slog.Any("error", err))
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRegistrationStarted,
		Success:   true,
		Metadata: map[string]string{
			"email": pkglogger.SanitizedEmail(payload.Email),
			"phone": pkglogger.SanitizedPhone(payload.Phone),
		},
	})

	return &VerificationStarted{Token: token, ExpiresInMinutes: s.expiresInMinutes()}, nil
}

// VerifyChannel checks a code for one channel. Verifying the phone creates
// the account and consumes the session.
func (s *RegistrationService) VerifyChannel(ctx context.Context, token string, channel verification.Channel, code string) (*RegistrationVerification, error) {
	if !channel.Valid() {
		return nil, models.ErrBadRequest
	}

	if err := s.requireSession(ctx, token); err != nil {
		return nil, err
	}

	already, err := s.sessions.IsChannelVerified(ctx, token, channel)
	if err != nil {
		return nil, internalError(ctx, s.logger, "failed to read registration session", err)
	}

	if !already {
		ok, err := s.sessions.VerifyCode(ctx, token, channel, strings.TrimSpace(code))
		if err != nil {
			return nil, s.sessionErr(ctx, "failed to verify registration code", err)
		}
		if !ok {
			return nil, models.ErrInvalidCode
		}
	}

	if channel == verification.ChannelPhone {
		result, err := s.complete(ctx, token)
		if err != nil {
			return nil, err
		}
		result.AlreadyVerified = already
		return result, nil
	}

	phoneVerified, err := s.sessions.IsChannelVerified(ctx, token, verification.ChannelPhone)
	if err != nil {
		return nil, internalError(ctx, s.logger, "failed to read registration session", err)
	}

	return &RegistrationVerification{
		Channel:         verification.ChannelEmail,
		EmailVerified:   true,
		PhoneVerified:   phoneVerified,
		AlreadyVerified: already,
	}, nil
}

// Resend re-issues codes for the unverified channels in target. A single
// channel that is already verified is reported and not re-sent.
func (s *RegistrationService) Resend(ctx context.Context, token string, target ResendTarget) (*ResendResult, error) {
	channels, ok := target.channels()
	if !ok {
		return nil, models.ErrBadRequest
	}

	if err := s.requireSession(ctx, token); err != nil {
		return nil, err
	}

	if len(channels) == 1 {
		verified, err := s.sessions.IsChannelVerified(ctx, token, channels[0])
		if err != nil {
			return nil, internalError(ctx, s.logger, "failed to read registration session", err)
		}
		if verified {
			return &ResendResult{Resent: []verification.Channel{}, AlreadyVerified: true}, nil
		}
	}

	resent, err := s.sessions.Resend(ctx, token, channels)
	if err != nil {
		var derr *verification.DeliveryError
		if !errors.As(err, &derr) {
			return nil, s.sessionErr(ctx, "failed to resend registration codes", err)
		}
		s.logger.WarnContext(ctx, "registration code not delivered on resend",
			slog.Any("channels", derr.Channels),
			slog.Any("error", err))
	}

	if resent == nil {
		resent = []verification.Channel{}
	}
	return &ResendResult{Resent: resent, AlreadyVerified: len(resent) == 0}, nil
}

func (s *RegistrationService) complete(ctx context.Context, token string) (*RegistrationVerification, error) {
	session, err := s.sessions.Consume(ctx, token)
	if err != nil {
		return nil, s.sessionErr(ctx, "failed to consume registration session", err)
	}

	payload, ok := session.Payload.(verification.RegistrationPayload)
	if !ok {
		return nil, internalError(ctx, s.logger, "unexpected registration payload",
			fmt.Errorf("payload kind %s", session.Payload.Kind()))
	}

	emailVerified := session.IsVerified(verification.ChannelEmail)

	user, err := s.repo.Create(ctx, &models.User{
		Name:          payload.Name,
		Email:         payload.Email,
		PasswordHash:  payload.PasswordHash,
		Phone:         payload.Phone,
		Document:      payload.Document,
		Roles:         payload.Roles,
		EmailVerified: emailVerified,
		PhoneVerified: true,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.InfoContext(ctx, "registration lost identity race", slog.Any("error", err))
			return nil, err
		}
		return nil, internalError(ctx, s.logger, "failed to create user", err)
	}

	resp, err := newAuthResponse(s.tm, user)
	if err != nil {
		return nil, internalError(ctx, s.logger, "failed to generate access token", err, slog.String("user_id", user.ID))
	}

	s.sendWelcome(ctx, user)

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventRegistrationCompleted, user.ID, map[string]string{
		"email_verified": fmt.Sprint(emailVerified),
	})

	return &RegistrationVerification{
		Channel:       verification.ChannelPhone,
		EmailVerified: emailVerified,
		PhoneVerified: true,
		Auth:          resp,
	}, nil
}

func (s *RegistrationService) sendWelcome(ctx context.Context, user *models.User) {
	ctx = context.WithoutCancel(ctx)
	if s.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sendTimeout)
		defer cancel()
	}

	if err := s.notifier.SendWelcome(ctx, user.Name, user.Email); err != nil {
		s.logger.WarnContext(ctx, "welcome email not sent",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}
}

func (s *RegistrationService) buildPayload(in RegistrationInput) (verification.RegistrationPayload, error) {
	var p verification.RegistrationPayload

	p.Name = strings.TrimSpace(in.Name)
	if p.Name == "" {
		return p, models.ErrBadRequest
	}

	var err error
	if p.Email, err = normalizeEmail(in.Email); err != nil {
		return p, err
	}
	if p.Phone, err = normalizePhone(in.Phone); err != nil {
		return p, err
	}
	if p.Document, err = normalizeDocument(in.Document); err != nil {
		return p, err
	}
	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return p, models.ErrInvalidPassword
	}
	if p.Roles, err = normalizeRoles(in.Role); err != nil {
		return p, err
	}

	return p, nil
}

// checkAvailable rejects identities already registered, in the order
// email, phone, document.
func (s *RegistrationService) checkAvailable(ctx context.Context, p verification.RegistrationPayload) error {
	checks := []struct {
		field  string
		lookup func(context.Context, string) (*models.User, error)
		value  string
		inUse  error
	}{
		{"email", s.repo.GetByEmail, p.Email, models.ErrEmailInUse},
		{"phone", s.repo.GetByPhone, p.Phone, models.ErrPhoneInUse},
		{"document", s.repo.GetByDocument, p.Document, models.ErrDocumentInUse},
	}

	for _, c := range checks {
		_, err := c.lookup(ctx, c.value)
		switch {
		case err == nil:
			return c.inUse
		case errors.Is(err, models.ErrNotFound):
			continue
		default:
			return internalError(ctx, s.logger, "failed to check "+c.field+" availability", err)
		}
	}
	return nil
}

func (s *RegistrationService) requireSession(ctx context.Context, token string) error {
	ok, err := s.sessions.IsValid(ctx, token)
	if err != nil {
		return internalError(ctx, s.logger, "failed to check registration session", err)
	}
	if !ok {
		return models.ErrSessionNotFound
	}
	return nil
}

func (s *RegistrationService) sessionErr(ctx context.Context, msg string, err error) error {
	if errors.Is(err, models.ErrSessionNotFound) {
		return models.ErrSessionNotFound
	}
	return internalError(ctx, s.logger, msg, err)
}

func (s *RegistrationService) expiresInMinutes() int {
	return expiresInMinutes(s.sessions.TTL())
}

// expiresInMinutes rounds up so a sub-minute TTL never reports zero.
func expiresInMinutes(ttl time.Duration) int {
	return int((ttl + time.Minute - 1) / time.Minute)
}
