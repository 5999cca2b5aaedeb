package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johkker/delice/internal/handlers"
	"github.com/johkker/delice/internal/models"
	"github.com/johkker/delice/internal/services"
	"github.com/johkker/delice/internal/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "0b7c9a2e-5f1d-4c1a-8f7e-3d2b1a0c9e8f"

func TestGetMe(t *testing.T) {
	users := &handlers.MockUserService{
		GetProfileFunc: func(ctx context.Context, userID string) (*services.UserResponse, error) {
			assert.Equal(t, testUserID, userID)
			return &services.UserResponse{ID: userID, Email: "maria@example.com"}, nil
		},
	}
	handler := handlers.NewUserHandler(users, &handlers.MockProfileChangeService{})

	req := handlers.WithAuthContext(httptest.NewRequest("GET", "/users/me", nil), testUserID, "maria@example.com")
	w := httptest.NewRecorder()
	handler.GetMe(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, testUserID, resp.ID)
}

func TestGetMe_Unauthenticated(t *testing.T) {
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, &handlers.MockProfileChangeService{})

	w := httptest.NewRecorder()
	handler.GetMe(w, httptest.NewRequest("GET", "/users/me", nil))

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestUpdateMe(t *testing.T) {
	users := &handlers.MockUserService{
		UpdateProfileFunc: func(ctx context.Context, userID string, in services.UpdateProfileInput) (*services.UserResponse, error) {
			require.NotNil(t, in.Name)
			assert.Nil(t, in.AvatarURL)
			return &services.UserResponse{ID: userID, Name: *in.Name}, nil
		},
	}
	handler := handlers.NewUserHandler(users, &handlers.MockProfileChangeService{})

	name := "Maria S."
	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "PATCH", "/users/me",
		handlers.UpdateProfileRequest{Name: &name}), testUserID, "maria@example.com")
	w := httptest.NewRecorder()
	handler.UpdateMe(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "Maria S.", resp.Name)

	bad := "not a url"
	req = handlers.WithAuthContext(handlers.NewTestRequest(t, "PATCH", "/users/me",
		handlers.UpdateProfileRequest{AvatarURL: &bad}), testUserID, "maria@example.com")
	w = httptest.NewRecorder()
	handler.UpdateMe(w, req)
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_error")
}

func TestRequestEmailChange(t *testing.T) {
	changes := &handlers.MockProfileChangeService{
		InitiateEmailChangeFunc: func(ctx context.Context, userID, newEmail, currentPassword string) (*services.VerificationStarted, error) {
			assert.Equal(t, testUserID, userID)
			assert.Equal(t, "nova@example.com", newEmail)
			if currentPassword != "senha-atual-77" {
				return nil, models.ErrUnauthorized
			}
			return &services.VerificationStarted{Token: testToken, ExpiresInMinutes: 10}, nil
		},
	}
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, changes)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/users/me/email", handlers.ChangeEmailRequest{
		NewEmail:        "nova@example.com",
		CurrentPassword: "senha-atual-77",
	}), testUserID, "maria@example.com")
	w := httptest.NewRecorder()
	handler.RequestEmailChange(w, req)

	var resp services.VerificationStarted
	handlers.AssertJSONResponse(t, w, http.StatusAccepted, &resp)
	assert.Equal(t, testToken, resp.Token)

	req = handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/users/me/email", handlers.ChangeEmailRequest{
		NewEmail:        "nova@example.com",
		CurrentPassword: "errada",
	}), testUserID, "maria@example.com")
	w = httptest.NewRecorder()
	handler.RequestEmailChange(w, req)
	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestRequestPhoneChange_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"taken", models.ErrPhoneInUse, http.StatusConflict, "phone_in_use"},
		{"same", models.ErrSameValue, http.StatusBadRequest, "same_value"},
		{"delivery", models.ErrDeliveryFailed, http.StatusBadGateway, "delivery_failed"},
		{"user gone", models.ErrNotFound, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := &handlers.MockProfileChangeService{
				InitiatePhoneChangeFunc: func(ctx context.Context, userID, newPhone, currentPassword string) (*services.VerificationStarted, error) {
					return nil, tt.err
				},
			}
			handler := handlers.NewUserHandler(&handlers.MockUserService{}, changes)

			req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/users/me/phone", handlers.ChangePhoneRequest{
				NewPhone:        "+5531977776666",
				CurrentPassword: "senha-atual-77",
			}), testUserID, "maria@example.com")
			w := httptest.NewRecorder()
			handler.RequestPhoneChange(w, req)

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestRequestPasswordChange(t *testing.T) {
	changes := &handlers.MockProfileChangeService{
		InitiatePasswordChangeFunc: func(ctx context.Context, userID, newPassword string) (*services.VerificationStarted, error) {
			if newPassword == "curta" {
				return nil, models.ErrInvalidPassword
			}
			return &services.VerificationStarted{Token: testToken, ExpiresInMinutes: 10}, nil
		},
	}
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, changes)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/users/me/password",
		handlers.ChangePasswordRequest{NewPassword: "nova-senha-forte-1"}), testUserID, "maria@example.com")
	w := httptest.NewRecorder()
	handler.RequestPasswordChange(w, req)
	handlers.AssertJSONResponse(t, w, http.StatusAccepted, nil)

	req = handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/users/me/password",
		handlers.ChangePasswordRequest{NewPassword: "curta"}), testUserID, "maria@example.com")
	w = httptest.NewRecorder()
	handler.RequestPasswordChange(w, req)
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "invalid_password")
}

func TestVerifyChange(t *testing.T) {
	changes := &handlers.MockProfileChangeService{
		CompleteFunc: func(ctx context.Context, userID, token, code string) (*services.ChangeResult, error) {
			switch code {
			case "123456":
				return &services.ChangeResult{
					Kind: verification.KindEmailChange,
					User: &services.UserResponse{ID: userID, Email: "nova@example.com", EmailVerified: true},
				}, nil
			case "000000":
				return nil, models.ErrInvalidCode
			}
			return nil, models.ErrSessionNotFound
		},
	}
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, changes)

	tests := []struct {
		code       string
		wantStatus int
		wantError  string
	}{
		{"123456", http.StatusOK, ""},
		{"000000", http.StatusUnprocessableEntity, "invalid_code"},
		{"999999", http.StatusGone, "token_expired"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/users/me/verify-change",
				handlers.VerifyCodeRequest{Token: testToken, Code: tt.code}), testUserID, "maria@example.com")
			w := httptest.NewRecorder()
			handler.VerifyChange(w, req)

			if tt.wantError != "" {
				handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantError)
				return
			}

			var resp services.ChangeResult
			handlers.AssertJSONResponse(t, w, tt.wantStatus, &resp)
			assert.Equal(t, verification.KindEmailChange, resp.Kind)
			assert.Equal(t, "nova@example.com", resp.User.Email)
		})
	}
}

func TestResendChange(t *testing.T) {
	changes := &handlers.MockProfileChangeService{
		ResendFunc: func(ctx context.Context, userID, token string) (*services.VerificationStarted, error) {
			return &services.VerificationStarted{Token: token, ExpiresInMinutes: 10}, nil
		},
	}
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, changes)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/users/me/resend-change",
		handlers.ResendChangeRequest{Token: testToken}), testUserID, "maria@example.com")
	w := httptest.NewRecorder()
	handler.ResendChange(w, req)

	var resp services.VerificationStarted
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, testToken, resp.Token)
}

func TestResendChange_AlreadyVerified(t *testing.T) {
	changes := &handlers.MockProfileChangeService{
		ResendFunc: func(ctx context.Context, userID, token string) (*services.VerificationStarted, error) {
			return nil, models.ErrAlreadyVerified
		},
	}
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, changes)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/users/me/resend-change",
		handlers.ResendChangeRequest{Token: testToken}), testUserID, "maria@example.com")
	w := httptest.NewRecorder()
	handler.ResendChange(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusConflict, "already_verified")
}

func TestRequestPhoneChange_RequiresPlusPrefix(t *testing.T) {
	called := false
	changes := &handlers.MockProfileChangeService{
		InitiatePhoneChangeFunc: func(ctx context.Context, userID, newPhone, currentPassword string) (*services.VerificationStarted, error) {
			called = true
			return &services.VerificationStarted{}, nil
		},
	}
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, changes)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/users/me/phone", handlers.ChangePhoneRequest{
		NewPhone:        "5531977776666",
		CurrentPassword: "senha-atual-77",
	}), testUserID, "maria@example.com")
	w := httptest.NewRecorder()
	handler.RequestPhoneChange(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_error")
	assert.Contains(t, w.Body.String(), "E.164")
	assert.False(t, called)
}
