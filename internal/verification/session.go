package verification

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Channel is a delivery medium through which a code is issued and confirmed.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelPhone
}

// Kind is the workflow variant a session belongs to.
type Kind string

const (
	KindRegistration   Kind = "registration"
	KindEmailChange    Kind = "email_change"
	KindPhoneChange    Kind = "phone_change"
	KindPasswordChange Kind = "password_change"
)

// Channels returns the channels that may carry a code for k.
func (k Kind) Channels() []Channel {
	switch k {
	case KindRegistration:
		return []Channel{ChannelEmail, ChannelPhone}
	case KindEmailChange, KindPasswordChange:
		return []Channel{ChannelEmail}
	case KindPhoneChange:
		return []Channel{ChannelPhone}
	}
	return nil
}

func (k Kind) InScope(c Channel) bool {
	return slices.Contains(k.Channels(), c)
}

// Recipient is the destination of one channel's code.
type Recipient struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Session is one pending verification, stored as a single record under its token.
type Session struct {
	Token      string
	Kind       Kind
	Payload    Payload
	Codes      map[Channel]string
	Verified   []Channel
	Recipients map[Channel]Recipient
	// Version increases on every persisted mutation.
	Version   int64
	CreatedAt time.Time
}

func (s *Session) IsVerified(c Channel) bool {
	return slices.Contains(s.Verified, c)
}

func (s *Session) markVerified(c Channel) {
	if !s.IsVerified(c) {
		s.Verified = append(s.Verified, c)
		slices.Sort(s.Verified)
	}
}

type sessionRecord struct {
	Token      string                `json:"token"`
	Kind       Kind                  `json:"kind"`
	Payload    json.RawMessage       `json:"payload"`
	Codes      map[Channel]string    `json:"codes"`
	Verified   []Channel             `json:"verified_channels"`
	Recipients map[Channel]Recipient `json:"recipients"`
	Version    int64                 `json:"version"`
	CreatedAt  time.Time             `json:"created_at"`
}

func encodeSession(s *Session) ([]byte, error) {
	if s.Payload == nil || s.Payload.Kind() != s.Kind {
		return nil, fmt.Errorf("session %s: payload does not match kind %q", s.Token, s.Kind)
	}

	payload, err := json.Marshal(s.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return json.Marshal(sessionRecord{
		Token:      s.Token,
		Kind:       s.Kind,
		Payload:    payload,
		Codes:      s.Codes,
		Verified:   s.Verified,
		Recipients: s.Recipients,
		Version:    s.Version,
		CreatedAt:  s.CreatedAt,
	})
}

func decodeSession(data []byte) (*Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	payload, err := decodePayload(rec.Kind, rec.Payload)
	if err != nil {
		return nil, err
	}

	if rec.Codes == nil {
		rec.Codes = make(map[Channel]string)
	}
	if rec.Recipients == nil {
		rec.Recipients = make(map[Channel]Recipient)
	}

	return &Session{
		Token:      rec.Token,
		Kind:       rec.Kind,
		Payload:    payload,
		Codes:      rec.Codes,
		Verified:   rec.Verified,
		Recipients: rec.Recipients,
		Version:    rec.Version,
		CreatedAt:  rec.CreatedAt,
	}, nil
}
