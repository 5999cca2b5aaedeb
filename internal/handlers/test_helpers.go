package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johkker/delice/internal/auth"
	"github.com/johkker/delice/internal/models"
	"github.com/johkker/delice/internal/services"
	"github.com/johkker/delice/internal/verification"
	pkghttp "github.com/johkker/delice/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Roles:  []string{models.RoleCustomer},
		Type:   models.TokenTypeAccess,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc func(ctx context.Context, email, password string) (*services.AuthResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, models.ErrUnauthorized
}

// MockRegistrationService implements RegistrationServiceInterface for testing
type MockRegistrationService struct {
	StartFunc         func(ctx context.Context, in services.RegistrationInput) (*services.VerificationStarted, error)
	VerifyChannelFunc func(ctx context.Context, token string, channel verification.Channel, code string) (*services.RegistrationVerification, error)
	ResendFunc        func(ctx context.Context, token string, target services.ResendTarget) (*services.ResendResult, error)
}

func (m *MockRegistrationService) Start(ctx context.Context, in services.RegistrationInput) (*services.VerificationStarted, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, in)
	}
	return nil, models.ErrInternalServer
}

func (m *MockRegistrationService) VerifyChannel(ctx context.Context, token string, channel verification.Channel, code string) (*services.RegistrationVerification, error) {
	if m.VerifyChannelFunc != nil {
		return m.VerifyChannelFunc(ctx, token, channel, code)
	}
	return nil, models.ErrSessionNotFound
}

func (m *MockRegistrationService) Resend(ctx context.Context, token string, target services.ResendTarget) (*services.ResendResult, error) {
	if m.ResendFunc != nil {
		return m.ResendFunc(ctx, token, target)
	}
	return nil, models.ErrSessionNotFound
}

// MockUserService implements UserService for testing
type MockUserService struct {
	GetProfileFunc    func(ctx context.Context, userID string) (*services.UserResponse, error)
	UpdateProfileFunc func(ctx context.Context, userID string, in services.UpdateProfileInput) (*services.UserResponse, error)
}

func (m *MockUserService) GetProfile(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID string, in services.UpdateProfileInput) (*services.UserResponse, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, in)
	}
	return nil, models.ErrNotFound
}

// MockProfileChangeService implements ProfileChangeService for testing
type MockProfileChangeService struct {
	InitiateEmailChangeFunc    func(ctx context.Context, userID, newEmail, currentPassword string) (*services.VerificationStarted, error)
	InitiatePhoneChangeFunc    func(ctx context.Context, userID, newPhone, currentPassword string) (*services.VerificationStarted, error)
	InitiatePasswordChangeFunc func(ctx context.Context, userID, newPassword string) (*services.VerificationStarted, error)
	CompleteFunc               func(ctx context.Context, userID, token, code string) (*services.ChangeResult, error)
	ResendFunc                 func(ctx context.Context, userID, token string) (*services.VerificationStarted, error)
}

func (m *MockProfileChangeService) InitiateEmailChange(ctx context.Context, userID, newEmail, currentPassword string) (*services.VerificationStarted, error) {
	if m.InitiateEmailChangeFunc != nil {
		return m.InitiateEmailChangeFunc(ctx, userID, newEmail, currentPassword)
	}
	return nil, models.ErrInternalServer
}

func (m *MockProfileChangeService) InitiatePhoneChange(ctx context.Context, userID, newPhone, currentPassword string) (*services.VerificationStarted, error) {
	if m.InitiatePhoneChangeFunc != nil {
		return m.InitiatePhoneChangeFunc(ctx, userID, newPhone, currentPassword)
	}
	return nil, models.ErrInternalServer
}

func (m *MockProfileChangeService) InitiatePasswordChange(ctx context.Context, userID, newPassword string) (*services.VerificationStarted, error) {
	if m.InitiatePasswordChangeFunc != nil {
		return m.InitiatePasswordChangeFunc(ctx, userID, newPassword)
	}
	return nil, models.ErrInternalServer
}

func (m *MockProfileChangeService) Complete(ctx context.Context, userID, token, code string) (*services.ChangeResult, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, userID, token, code)
	}
	return nil, models.ErrSessionNotFound
}

func (m *MockProfileChangeService) Resend(ctx context.Context, userID, token string) (*services.VerificationStarted, error) {
	if m.ResendFunc != nil {
		return m.ResendFunc(ctx, userID, token)
	}
	return nil, models.ErrSessionNotFound
}
