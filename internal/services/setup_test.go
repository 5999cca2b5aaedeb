package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/johkker/delice/internal/auth"
	"github.com/johkker/delice/internal/cache"
	"github.com/johkker/delice/internal/config"
	"github.com/johkker/delice/internal/models"
	pkgauth "github.com/johkker/delice/pkg/auth"
	pkglogger "github.com/johkker/delice/pkg/logger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-32-characters-long!"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHasher() *pkgauth.Hasher {
	return pkgauth.NewHasher(bcrypt.MinCost)
}

func testTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(testSecret, time.Hour)
}

func testVerificationConfig() config.VerificationConfig {
	return config.VerificationConfig{
		TTL:         10 * time.Minute,
		CodeDigits:  6,
		SendTimeout: time.Second,
		NotifyMode:  config.NotifyModeLog,
	}
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, cache.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, cache.NewRedisStore(client)
}

// newTestUser returns a stored user whose password is plainPassword.
func newTestUser(t *testing.T, plainPassword string) *models.User {
	t.Helper()

	hash, err := testHasher().Hash(plainPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	now := time.Now().UTC()
	return &models.User{
		ID:            uuid.NewString(),
		Name:          "Maria Souza",
		Email:         "maria@example.com",
		PasswordHash:  hash,
		Phone:         "+5511999990000",
		Document:      "529.982.247-25",
		Roles:         []string{models.RoleCustomer},
		PhoneVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func newTestAudit() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

// wrongCode returns a code of the same length that differs from code.
func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

var bg = context.Background()
