package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/johkker/delice/internal/models"
	"github.com/johkker/delice/internal/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registrationFixture struct {
	svc      *RegistrationService
	repo     *MemoryUserRepository
	notifier *RecordingNotifier
	mr       *miniredis.Miniredis
}

func newRegistrationFixture(t *testing.T, seed ...*models.User) *registrationFixture {
	t.Helper()

	mr, store := newTestStore(t)
	repo := NewMemoryUserRepository(seed...)
	notifier := &RecordingNotifier{}

	svc := NewRegistrationService(repo, store, notifier, testTokenManager(), testHasher(),
		testVerificationConfig(), testLogger(), newTestAudit())

	return &registrationFixture{svc: svc, repo: repo, notifier: notifier, mr: mr}
}

func validRegistration() RegistrationInput {
	return RegistrationInput{
		Name:     "  Maria Souza ",
		Email:    "Maria@Example.com",
		Password: "pao-de-queijo-42",
		Phone:    "+5511999990000",
		Document: "52998224725",
	}
}

func TestRegistration_PhoneVerificationCreatesUser(t *testing.T) {
	f := newRegistrationFixture(t)

	started, err := f.svc.Start(bg, validRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, started.Token)
	assert.Equal(t, 10, started.ExpiresInMinutes)

	// Phone-gated signup: only the SMS code goes out at start.
	assert.Equal(t, 1, f.notifier.Count(verification.ChannelPhone))
	assert.Equal(t, 0, f.notifier.Count(verification.ChannelEmail))

	sms, ok := f.notifier.LastCode(verification.ChannelPhone)
	require.True(t, ok)
	assert.Len(t, sms.Code, 6)
	assert.Equal(t, "+5511999990000", sms.To.Address)
	assert.Equal(t, verification.KindRegistration, sms.Kind)

	result, err := f.svc.VerifyChannel(bg, started.Token, verification.ChannelPhone, sms.Code)
	require.NoError(t, err)
	assert.True(t, result.PhoneVerified)
	assert.False(t, result.EmailVerified)
	assert.False(t, result.AlreadyVerified)
	require.NotNil(t, result.Auth)
	assert.NotEmpty(t, result.Auth.AccessToken)
	assert.Equal(t, "Bearer", result.Auth.TokenType)

	user, err := f.repo.GetByEmail(bg, "maria@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza", user.Name)
	assert.Equal(t, "529.982.247-25", user.Document)
	assert.True(t, user.PhoneVerified)
	assert.False(t, user.EmailVerified)
	assert.Equal(t, []string{models.RoleCustomer}, user.Roles)
	assert.NotEqual(t, "pao-de-queijo-42", user.PasswordHash)
	assert.NoError(t, testHasher().Compare(user.PasswordHash, "pao-de-queijo-42"))

	claims, err := testTokenManager().ValidateToken(result.Auth.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	assert.Equal(t, []string{"maria@example.com"}, f.notifier.Welcomes)

	// The session was consumed.
	assert.Empty(t, f.mr.Keys())
	_, err = f.svc.VerifyChannel(bg, started.Token, verification.ChannelPhone, sms.Code)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestRegistration_WrongCodeKeepsSession(t *testing.T) {
	f := newRegistrationFixture(t)

	started, err := f.svc.Start(bg, validRegistration())
	require.NoError(t, err)
	sms, _ := f.notifier.LastCode(verification.ChannelPhone)

	_, err = f.svc.VerifyChannel(bg, started.Token, verification.ChannelPhone, wrongCode(sms.Code))
	assert.ErrorIs(t, err, models.ErrInvalidCode)
	assert.Len(t, f.mr.Keys(), 1)

	_, err = f.repo.GetByEmail(bg, "maria@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)

	result, err := f.svc.VerifyChannel(bg, started.Token, verification.ChannelPhone, sms.Code)
	require.NoError(t, err)
	assert.NotNil(t, result.Auth)
}

func TestRegistration_EmailCodeIsCreatedOnResend(t *testing.T) {
	f := newRegistrationFixture(t)

	started, err := f.svc.Start(bg, validRegistration())
	require.NoError(t, err)

	// No email code exists yet, so any code is wrong.
	_, err = f.svc.VerifyChannel(bg, started.Token, verification.ChannelEmail, "123456")
	assert.ErrorIs(t, err, models.ErrInvalidCode)

	resent, err := f.svc.Resend(bg, started.Token, ResendEmail)
	require.NoError(t, err)
	assert.Equal(t, []verification.Channel{verification.ChannelEmail}, resent.Resent)
	assert.False(t, resent.AlreadyVerified)

	mail, ok := f.notifier.LastCode(verification.ChannelEmail)
	require.True(t, ok)
	assert.Equal(t, "maria@example.com", mail.To.Address)

	result, err := f.svc.VerifyChannel(bg, started.Token, verification.ChannelEmail, mail.Code)
	require.NoError(t, err)
	assert.True(t, result.EmailVerified)
	assert.False(t, result.PhoneVerified)
	assert.Nil(t, result.Auth)

	// Email verification alone does not create the account.
	_, err = f.repo.GetByEmail(bg, "maria@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)

	sms, _ := f.notifier.LastCode(verification.ChannelPhone)
	done, err := f.svc.VerifyChannel(bg, started.Token, verification.ChannelPhone, sms.Code)
	require.NoError(t, err)
	assert.True(t, done.EmailVerified)

	user, err := f.repo.GetByEmail(bg, "maria@example.com")
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
	assert.True(t, user.PhoneVerified)
}

func TestRegistration_ResendSkipsVerifiedChannels(t *testing.T) {
	f := newRegistrationFixture(t)

	started, err := f.svc.Start(bg, validRegistration())
	require.NoError(t, err)

	_, err = f.svc.Resend(bg, started.Token, ResendEmail)
	require.NoError(t, err)
	mail, _ := f.notifier.LastCode(verification.ChannelEmail)
	_, err = f.svc.VerifyChannel(bg, started.Token, verification.ChannelEmail, mail.Code)
	require.NoError(t, err)

	again, err := f.svc.Resend(bg, started.Token, ResendEmail)
	require.NoError(t, err)
	assert.True(t, again.AlreadyVerified)
	assert.Empty(t, again.Resent)
	assert.Equal(t, 1, f.notifier.Count(verification.ChannelEmail))

	both, err := f.svc.Resend(bg, started.Token, ResendBoth)
	require.NoError(t, err)
	assert.Equal(t, []verification.Channel{verification.ChannelPhone}, both.Resent)
	assert.Equal(t, 2, f.notifier.Count(verification.ChannelPhone))
	assert.Equal(t, 1, f.notifier.Count(verification.ChannelEmail))

	// Re-verifying a verified channel is reported, not rejected.
	result, err := f.svc.VerifyChannel(bg, started.Token, verification.ChannelEmail, "anything")
	require.NoError(t, err)
	assert.True(t, result.AlreadyVerified)
}

func TestRegistration_ResendRotatesPhoneCode(t *testing.T) {
	f := newRegistrationFixture(t)

	started, err := f.svc.Start(bg, validRegistration())
	require.NoError(t, err)

	_, err = f.svc.Resend(bg, started.Token, ResendPhone)
	require.NoError(t, err)
	assert.Equal(t, 2, f.notifier.Count(verification.ChannelPhone))

	sms, _ := f.notifier.LastCode(verification.ChannelPhone)
	result, err := f.svc.VerifyChannel(bg, started.Token, verification.ChannelPhone, sms.Code)
	require.NoError(t, err)
	assert.NotNil(t, result.Auth)
}

func TestRegistration_StartValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *RegistrationInput)
		want   error
	}{
		{"empty name", func(in *RegistrationInput) { in.Name = "  " }, models.ErrBadRequest},
		{"invalid email", func(in *RegistrationInput) { in.Email = "not-an-email" }, models.ErrInvalidEmail},
		{"phone without country code", func(in *RegistrationInput) { in.Phone = "11999990000" }, models.ErrInvalidPhone},
		{"phone without plus", func(in *RegistrationInput) { in.Phone = "5511999990000" }, models.ErrInvalidPhone},
		{"phone too short", func(in *RegistrationInput) { in.Phone = "+5511" }, models.ErrInvalidPhone},
		{"invalid cpf", func(in *RegistrationInput) { in.Document = "123.456.789-00" }, models.ErrInvalidDocument},
		{"repeated digits", func(in *RegistrationInput) { in.Document = "11111111111" }, models.ErrInvalidDocument},
		{"short password", func(in *RegistrationInput) { in.Password = "abc1" }, models.ErrInvalidPassword},
		{"common password", func(in *RegistrationInput) { in.Password = "senha123" }, models.ErrInvalidPassword},
		{"admin role", func(in *RegistrationInput) { in.Role = "admin" }, models.ErrInvalidRole},
		{"unknown role", func(in *RegistrationInput) { in.Role = "superuser" }, models.ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegistrationFixture(t)

			in := validRegistration()
			tt.mutate(&in)

			_, err := f.svc.Start(bg, in)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, models.ErrBadRequest)
			assert.Empty(t, f.mr.Keys())
			assert.Empty(t, f.notifier.Deliveries)
		})
	}
}

func TestRegistration_StartRejectsRegisteredIdentity(t *testing.T) {
	existing := newTestUser(t, "outra-senha-9")

	tests := []struct {
		name   string
		mutate func(in *RegistrationInput)
		want   error
	}{
		{"email first", func(in *RegistrationInput) {}, models.ErrEmailInUse},
		{"phone", func(in *RegistrationInput) { in.Email = "other@example.com" }, models.ErrPhoneInUse},
		{"document", func(in *RegistrationInput) {
			in.Email = "other@example.com"
			in.Phone = "+5521988887777"
		}, models.ErrDocumentInUse},
		{"masked document matches", func(in *RegistrationInput) {
			in.Email = "other@example.com"
			in.Phone = "+5521988887777"
			in.Document = "529.982.247-25"
		}, models.ErrDocumentInUse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegistrationFixture(t, existing)

			in := validRegistration()
			tt.mutate(&in)

			_, err := f.svc.Start(bg, in)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, models.ErrConflict)
			assert.Empty(t, f.mr.Keys())
		})
	}
}

func TestRegistration_ProducerRole(t *testing.T) {
	f := newRegistrationFixture(t)

	in := validRegistration()
	in.Role = "Producer"
	in.Document = "11.222.333/0001-81"

	started, err := f.svc.Start(bg, in)
	require.NoError(t, err)
	sms, _ := f.notifier.LastCode(verification.ChannelPhone)

	result, err := f.svc.VerifyChannel(bg, started.Token, verification.ChannelPhone, sms.Code)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.RoleCustomer, models.RoleProducer}, result.Auth.User.Roles)
	assert.Equal(t, "11.222.333/0001-81", result.Auth.User.Document)
}

func TestRegistration_DeliveryFailureIsNotFatal(t *testing.T) {
	f := newRegistrationFixture(t)
	f.notifier.FailCodes = errors.New("sns throttled")

	started, err := f.svc.Start(bg, validRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, started.Token)
	assert.Len(t, f.mr.Keys(), 1)

	resent, err := f.svc.Resend(bg, started.Token, ResendPhone)
	require.NoError(t, err)
	assert.Equal(t, []verification.Channel{verification.ChannelPhone}, resent.Resent)
}

func TestRegistration_WelcomeFailureIsNotFatal(t *testing.T) {
	f := newRegistrationFixture(t)
	f.notifier.FailWelcome = errors.New("ses down")

	started, err := f.svc.Start(bg, validRegistration())
	require.NoError(t, err)
	sms, _ := f.notifier.LastCode(verification.ChannelPhone)

	result, err := f.svc.VerifyChannel(bg, started.Token, verification.ChannelPhone, sms.Code)
	require.NoError(t, err)
	assert.NotNil(t, result.Auth)
}

func TestRegistration_IdentityTakenBeforeCompletion(t *testing.T) {
	f := newRegistrationFixture(t)

	started, err := f.svc.Start(bg, validRegistration())
	require.NoError(t, err)
	sms, _ := f.notifier.LastCode(verification.ChannelPhone)

	rival := newTestUser(t, "outra-senha-9")
	rival.Phone = "+5521988887777"
	rival.Document = "11.222.333/0001-81"
	_, err = f.repo.Create(bg, rival)
	require.NoError(t, err)

	_, err = f.svc.VerifyChannel(bg, started.Token, verification.ChannelPhone, sms.Code)
	assert.ErrorIs(t, err, models.ErrEmailInUse)
}

func TestRegistration_ExpiredSession(t *testing.T) {
	f := newRegistrationFixture(t)

	started, err := f.svc.Start(bg, validRegistration())
	require.NoError(t, err)
	sms, _ := f.notifier.LastCode(verification.ChannelPhone)

	f.mr.FastForward(testVerificationConfig().TTL + time.Second)

	_, err = f.svc.VerifyChannel(bg, started.Token, verification.ChannelPhone, sms.Code)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	_, err = f.svc.Resend(bg, started.Token, ResendBoth)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestRegistration_BadArguments(t *testing.T) {
	f := newRegistrationFixture(t)

	started, err := f.svc.Start(bg, validRegistration())
	require.NoError(t, err)

	_, err = f.svc.VerifyChannel(bg, started.Token, verification.Channel("fax"), "123456")
	assert.ErrorIs(t, err, models.ErrBadRequest)

	_, err = f.svc.Resend(bg, started.Token, ResendTarget("carrier-pigeon"))
	assert.ErrorIs(t, err, models.ErrBadRequest)

	_, err = f.svc.VerifyChannel(bg, "not-a-token", verification.ChannelPhone, "123456")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestRegistration_RepositoryFailureIsInternal(t *testing.T) {
	mr, store := newTestStore(t)
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, errors.New("connection refused")
		},
	}

	svc := NewRegistrationService(repo, store, &RecordingNotifier{}, testTokenManager(), testHasher(),
		testVerificationConfig(), testLogger(), newTestAudit())

	_, err := svc.Start(bg, validRegistration())
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.NotContains(t, err.Error(), "connection refused")
	assert.Empty(t, mr.Keys())
}
