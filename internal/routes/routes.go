package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/johkker/delice/internal/auth"
	"github.com/johkker/delice/internal/handlers"
	"github.com/johkker/delice/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	userHandler *handlers.UserHandler,
	authHandler *handlers.AuthHandler,
	tokenManager *auth.TokenManager,
	rateLimit middleware.RateLimitConfig,
) {
	// Public routes, limited per client IP
	router.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimit))

		r.Post("/register", authHandler.Register)
		r.Post("/verify-phone", authHandler.VerifyPhone)
		r.Post("/verify-email", authHandler.VerifyEmail)
		r.Post("/resend-code", authHandler.ResendCode)
		r.Post("/login", authHandler.Login)
	})

	// Protected routes
	router.Route("/users/me", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))

		r.Get("/", userHandler.GetMe)
		r.Patch("/", userHandler.UpdateMe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByUser(rateLimit, claimsUserID))

			r.Post("/email", userHandler.RequestEmailChange)
			r.Post("/phone", userHandler.RequestPhoneChange)
			r.Post("/password", userHandler.RequestPasswordChange)
			r.Post("/verify-change", userHandler.VerifyChange)
			r.Post("/resend-change", userHandler.ResendChange)
		})
	})
}

func claimsUserID(r *http.Request) string {
	if claims := auth.GetUserFromContext(r); claims != nil {
		return claims.UserID
	}
	return ""
}
