package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/referral-service/internal/api/http/handlers"
	"github.com/spec-kit/referral-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Referrals      *handlers.ReferralsHandler
	AuthMiddleware *auth.AuthMiddleware
	UserLookup     auth.UserLookup
}

// RegisterRoutes wires HTTP routes. Gates run in order: token, role, setup completion.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")
	api.Get("/health", cfg.Health.Health)

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/setup", cfg.AuthMiddleware.Handle, cfg.Auth.Setup)
	authGroup.Post("/setup-inicial", cfg.AuthMiddleware.Handle, cfg.Auth.Setup)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	users := api.Group("/usuarios", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	users.Get("/", cfg.Users.List)
	users.Post("/", cfg.Users.Create)
	users.Put("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Delete)

	setupDone := auth.RequireSetupCompleted(cfg.UserLookup)
	referrals := api.Group("/indicacoes", cfg.AuthMiddleware.Handle)
	referrals.Post("/migrate-status-date", auth.RequireAdmin(), cfg.Referrals.MigrateStatusDates)
	referrals.Get("/", setupDone, cfg.Referrals.List)
	referrals.Post("/", setupDone, cfg.Referrals.Create)
	referrals.Put("/:id", setupDone, cfg.Referrals.Update)
	referrals.Delete("/:id", auth.RequireAdmin(), cfg.Referrals.Delete)
}
