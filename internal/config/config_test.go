package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
		{"VerificationTTL", cfg.Verification.TTL, 10 * time.Minute},
		{"SendTimeout", cfg.Verification.SendTimeout, 5 * time.Second},
		{"DBConnectTimeout", cfg.Database.ConnectTimeout, 10 * time.Second},
		{"AccessTokenExpiry", cfg.Auth.AccessTokenExpiry, 24 * time.Hour},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Verification.CodeDigits != 6 {
		t.Errorf("CodeDigits: got %d, want 6", cfg.Verification.CodeDigits)
	}
	if cfg.Verification.NotifyMode != NotifyModeLog {
		t.Errorf("NotifyMode: got %q, want %q in development", cfg.Verification.NotifyMode, NotifyModeLog)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr: got %q", cfg.Redis.Addr)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_READ_TIMEOUT", "30s")
	t.Setenv("VERIFICATION_TTL", "5m")
	t.Setenv("NOTIFICATION_SEND_TIMEOUT", "2s")
	t.Setenv("NOTIFY_MODE", "AWS")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout: got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Verification.TTL != 5*time.Minute {
		t.Errorf("TTL: got %v", cfg.Verification.TTL)
	}
	if cfg.Verification.SendTimeout != 2*time.Second {
		t.Errorf("SendTimeout: got %v", cfg.Verification.SendTimeout)
	}
	if cfg.Verification.NotifyMode != NotifyModeAWS {
		t.Errorf("NotifyMode: got %q", cfg.Verification.NotifyMode)
	}
	if cfg.Redis.Addr != "redis:6380" || cfg.Redis.DB != 3 {
		t.Errorf("Redis: got %+v", cfg.Redis)
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout with invalid value: got %v, want %v", cfg.Server.ReadTimeout, 15*time.Second)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "test")

	if _, err := Load(); err == nil {
		t.Fatal("Load() without JWT_SECRET should fail")
	}

	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() without DB_PASSWORD should fail")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Env: "development"},
			Database: DatabaseConfig{ConnectTimeout: 10 * time.Second},
			Auth:     AuthConfig{JWTSecret: "test-secret-32-characters-long!"},
			Verification: VerificationConfig{
				TTL:         10 * time.Minute,
				CodeDigits:  6,
				SendTimeout: 5 * time.Second,
				NotifyMode:  NotifyModeLog,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid development", func(c *Config) {}, false},
		{"log mode in production", func(c *Config) {
			c.Server.Env = "production"
			c.Auth.JWTSecret = "a-much-longer-production-secret-value-123"
		}, true},
		{"aws mode in production", func(c *Config) {
			c.Server.Env = "production"
			c.Auth.JWTSecret = "a-much-longer-production-secret-value-123"
			c.Verification.NotifyMode = NotifyModeAWS
		}, false},
		{"unknown notify mode", func(c *Config) { c.Verification.NotifyMode = "pigeon" }, true},
		{"code digits too small", func(c *Config) { c.Verification.CodeDigits = 3 }, true},
		{"zero ttl", func(c *Config) { c.Verification.TTL = 0 }, true},
		{"zero send timeout", func(c *Config) { c.Verification.SendTimeout = 0 }, true},
		{"zero db connect timeout", func(c *Config) { c.Database.ConnectTimeout = 0 }, true},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }, true},
		{"short production jwt secret", func(c *Config) {
			c.Server.Env = "production"
			c.Verification.NotifyMode = NotifyModeAWS
			c.Auth.JWTSecret = "only-twenty-characters"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
