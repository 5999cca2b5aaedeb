package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/johkker/delice/internal/auth"
	"github.com/johkker/delice/internal/cache"
	"github.com/johkker/delice/internal/config"
	"github.com/johkker/delice/internal/database"
	"github.com/johkker/delice/internal/handlers"
	middlewareCustom "github.com/johkker/delice/internal/middleware"
	"github.com/johkker/delice/internal/repositories"
	"github.com/johkker/delice/internal/routes"
	"github.com/johkker/delice/internal/services"
	pkgauth "github.com/johkker/delice/pkg/auth"
	pkghttp "github.com/johkker/delice/pkg/http"
	pkglogger "github.com/johkker/delice/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("notify_mode", cfg.Verification.NotifyMode))

	ctx := context.Background()

	// Initialize database
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Verification sessions live in Redis
	redisClient := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()

	store := cache.NewRedisStore(redisClient)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("redis not reachable at startup", slog.String("addr", cfg.Redis.Addr), slog.Any("error", err))
	}
	cancel()

	// Outbound email and SMS
	emailSender, smsSender, err := newSenders(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize notification senders", slog.Any("error", err))
		os.Exit(1)
	}
	notifier := services.NewNotificationService(emailSender, smsSender, logger)

	// Security primitives
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	hasher := pkgauth.NewHasher(cfg.Auth.BcryptCost)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   250 * time.Millisecond,
		RandomDelay: 100 * time.Millisecond,
	})
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Initialize services
	userRepo := repositories.NewUserRepository(db)
	userService := services.NewUserService(userRepo, logger, auditLogger)
	authService := services.NewAuthService(userRepo, tokenManager, hasher, timingDelay, logger, auditLogger)
	registrationService := services.NewRegistrationService(userRepo, store, notifier, tokenManager, hasher, cfg.Verification, logger, auditLogger)
	profileChangeService := services.NewProfileChangeService(userRepo, store, notifier, hasher, timingDelay, cfg.Verification, logger, auditLogger)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, profileChangeService)
	authHandler := handlers.NewAuthHandler(authService, registrationService)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.ClientIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(cfg.Server.AllowedOrigins))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, userHandler, authHandler, tokenManager,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Server.AuthRateLimit})

	// Health check with database and session store
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "healthy", "database": "up", "redis": "up"}
		code := http.StatusOK

		if err := db.HealthCheck(ctx); err != nil {
			status["database"] = "down"
			code = http.StatusServiceUnavailable
		}
		if err := store.Ping(ctx); err != nil {
			status["redis"] = "down"
			code = http.StatusServiceUnavailable
		}
		if code != http.StatusOK {
			status["status"] = "unhealthy"
		}

		pkghttp.WriteJSON(w, code, status)
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newSenders picks the real AWS senders or the log-only development senders.
func newSenders(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.EmailSender, services.SMSSender, error) {
	if cfg.Verification.NotifyMode == config.NotifyModeLog {
		logger.Warn("notifications are logged, not delivered")
		sender := services.NewLogSender(logger)
		return sender, sender, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, nil, err
	}

	return services.NewSESEmailSender(awsCfg, cfg.AWS.SenderEmail, logger),
		services.NewSNSSMSSender(awsCfg, cfg.AWS.SMSSenderID, logger),
		nil
}
