// Package verification manages short-lived, code-based verification sessions
// stored in an expiring key-value store.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/johkker/delice/internal/cache"
	"github.com/johkker/delice/internal/models"
)

const (
	DefaultTTL        = 10 * time.Minute
	DefaultCodeDigits = 6
)

var (
	ErrChannelNotInScope = errors.New("channel not in scope for session kind")
	ErrMissingRecipient  = errors.New("no recipient for channel")
)

type Options struct {
	// Prefix namespaces session keys, e.g. "verification:".
	Prefix     string
	TTL        time.Duration
	CodeDigits int
}

// StartRequest describes a new session. Codes are issued and delivered for
// Channels only; other in-scope channels stay empty until Resend.
type StartRequest struct {
	Payload    Payload
	Recipients map[Channel]Recipient
	Channels   []Channel
}

// Manager owns the lifecycle of verification sessions. All state lives in
// the store; nothing is cached between calls.
type Manager struct {
	store    cache.Store
	notifier Notifier
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(store cache.Store, notifier Notifier, opts Options, logger *slog.Logger) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CodeDigits <= 0 {
		opts.CodeDigits = DefaultCodeDigits
	}

	return &Manager{
		store:    store,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// TTL is the lifetime a session gets on creation and on every mutation.
func (m *Manager) TTL() time.Duration {
	return m.opts.TTL
}

// Start persists a new session and delivers its initial codes. If delivery
// fails the token is still returned, together with a *DeliveryError.
func (m *Manager) Start(ctx context.Context, req StartRequest) (string, error) {
	if req.Payload == nil {
		return "", errors.New("start session: nil payload")
	}
	kind := req.Payload.Kind()

	channels := dedupe(req.Channels)
	for _, ch := range channels {
		if !kind.InScope(ch) {
			return "", fmt.Errorf("%w: %s for %s", ErrChannelNotInScope, ch, kind)
		}
		if req.Recipients[ch].Address == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingRecipient, ch)
		}
	}

	s := &Session{
		Token:      uuid.NewString(),
		Kind:       kind,
		Payload:    req.Payload,
		Codes:      make(map[Channel]string, len(channels)),
		Recipients: maps.Clone(req.Recipients),
		Version:    1,
		CreatedAt:  m.now().UTC(),
	}
	if s.Recipients == nil {
		s.Recipients = make(map[Channel]Recipient)
	}

	for _, ch := range channels {
		code, err := NewCode(m.opts.CodeDigits)
		if err != nil {
			return "", err
		}
		s.Codes[ch] = code
	}

	data, err := encodeSession(s)
	if err != nil {
		return "", err
	}

	if err := m.store.Set(ctx, m.key(s.Token), data, m.opts.TTL); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	m.logger.Debug("verification session started",
		slog.String("kind", string(kind)),
		slog.Any("channels", channels),
	)

	if err := m.deliver(ctx, s, channels); err != nil {
		return s.Token, err
	}

	return s.Token, nil
}

// VerifyCode reports whether code matches the current code for channel.
// A mismatch returns false and leaves the session untouched; a match marks
// the channel verified and renews the TTL.
func (m *Manager) VerifyCode(ctx context.Context, token string, channel Channel, code string) (bool, error) {
	var matched bool

	err := m.update(ctx, token, func(s *Session) (bool, error) {
		matched = false

		want, ok := s.Codes[channel]
		if !ok || want == "" || code != want {
			return false, nil
		}

		matched = true
		s.markVerified(channel)
		return true, nil
	})
	if err != nil {
		return false, err
	}

	return matched, nil
}

// IsChannelVerified is a pure read. A missing session reports false.
func (m *Manager) IsChannelVerified(ctx context.Context, token string, channel Channel) (bool, error) {
	s, err := m.Session(ctx, token)
	if errors.Is(err, models.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.IsVerified(channel), nil
}

// Resend issues fresh codes for the requested channels that are not yet
// verified, creating the code if the channel never had one, and delivers
// them. It returns the channels that were actually re-sent.
func (m *Manager) Resend(ctx context.Context, token string, channels []Channel) ([]Channel, error) {
	var (
		resent   []Channel
		snapshot *Session
	)

	err := m.update(ctx, token, func(s *Session) (bool, error) {
		resent = resent[:0]

		for _, ch := range dedupe(channels) {
			if !s.Kind.InScope(ch) {
				return false, fmt.Errorf("%w: %s for %s", ErrChannelNotInScope, ch, s.Kind)
			}
			if s.IsVerified(ch) {
				continue
			}
			if s.Recipients[ch].Address == "" {
				return false, fmt.Errorf("%w: %s", ErrMissingRecipient, ch)
			}

			code, err := NewCode(m.opts.CodeDigits)
			if err != nil {
				return false, err
			}
			s.Codes[ch] = code
			resent = append(resent, ch)
		}

		snapshot = s
		return len(resent) > 0, nil
	})
	if err != nil {
		return nil, err
	}

	if len(resent) == 0 {
		return nil, nil
	}

	if err := m.deliver(ctx, snapshot, resent); err != nil {
		return resent, err
	}

	return resent, nil
}

// Session returns a snapshot of the stored session.
func (m *Manager) Session(ctx context.Context, token string) (*Session, error) {
	if !validToken(token) {
		return nil, models.ErrSessionNotFound
	}

	data, err := m.store.Get(ctx, m.key(token))
	if err != nil {
		return nil, m.storeErr(err)
	}

	return decodeSession(data)
}

// Payload reads the pending data without consuming the session.
func (m *Manager) Payload(ctx context.Context, token string) (Payload, error) {
	s, err := m.Session(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Payload, nil
}

// Consume atomically removes the session and returns it. Of several
// concurrent callers exactly one succeeds; the rest get ErrSessionNotFound.
func (m *Manager) Consume(ctx context.Context, token string) (*Session, error) {
	if !validToken(token) {
		return nil, models.ErrSessionNotFound
	}

	data, err := m.store.Take(ctx, m.key(token))
	if err != nil {
		return nil, m.storeErr(err)
	}

	return decodeSession(data)
}

func (m *Manager) Delete(ctx context.Context, token string) error {
	if !validToken(token) {
		return nil
	}
	if err := m.store.Delete(ctx, m.key(token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// IsValid reports whether the session exists.
func (m *Manager) IsValid(ctx context.Context, token string) (bool, error) {
	if !validToken(token) {
		return false, nil
	}

	ok, err := m.store.Exists(ctx, m.key(token))
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return ok, nil
}

// update runs fn inside an optimistic store transaction. fn reports whether
// it changed the session; unchanged sessions are not written back.
func (m *Manager) update(ctx context.Context, token string, fn func(s *Session) (bool, error)) error {
	if !validToken(token) {
		return models.ErrSessionNotFound
	}

	err := m.store.Update(ctx, m.key(token), m.opts.TTL, func(current []byte) ([]byte, error) {
		s, err := decodeSession(current)
		if err != nil {
			return nil, err
		}

		changed, err := fn(s)
		if err != nil || !changed {
			return nil, err
		}

		s.Version++
		return encodeSession(s)
	})
	if err != nil {
		return m.storeErr(err)
	}
	return nil
}

func (m *Manager) deliver(ctx context.Context, s *Session, channels []Channel) error {
	var (
		failed []Channel
		errs   []error
	)

	for _, ch := range channels {
		err := m.notifier.SendCode(ctx, Delivery{
			Kind:    s.Kind,
			Channel: ch,
			To:      s.Recipients[ch],
			Code:    s.Codes[ch],
			TTL:     m.opts.TTL,
		})
		if err != nil {
			failed = append(failed, ch)
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		}
	}

	if len(failed) == 0 {
		return nil
	}

	return &DeliveryError{Token: s.Token, Channels: failed, Err: errors.Join(errs...)}
}

func (m *Manager) storeErr(err error) error {
	if errors.Is(err, cache.ErrMiss) {
		return models.ErrSessionNotFound
	}
	return fmt.Errorf("verification store: %w", err)
}

func (m *Manager) key(token string) string {
	return m.opts.Prefix + token
}

// validToken rejects anything that is not a UUID before it reaches the store.
func validToken(token string) bool {
	_, err := uuid.Parse(token)
	return err == nil
}

func dedupe(channels []Channel) []Channel {
	out := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if !slices.Contains(out, ch) {
			out = append(out, ch)
		}
	}
	return out
}
