package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Aklabu/e-commerce/internal/config"
	"github.com/Aklabu/e-commerce/internal/handlers"
	"github.com/Aklabu/e-commerce/internal/metrics"
	"github.com/Aklabu/e-commerce/internal/middleware"
	"github.com/Aklabu/e-commerce/internal/ratelimit"
	"github.com/Aklabu/e-commerce/internal/services"
)

// Pinger reports whether the backing database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services is everything the HTTP layer calls into.
type Services struct {
	Registration  *services.RegistrationService
	Auth          *services.AuthService
	Tokens        *services.TokenService
	PasswordReset *services.PasswordResetService
	Profiles      *services.ProfileService
	Admin         *services.AdminService
	Trade         *services.TradeGate
	Health        Pinger
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, svc *Services, cfg *config.Config) {
	registrationHandler := handlers.NewRegistrationHandler(svc.Registration, svc.PasswordReset)
	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Tokens)
	resetHandler := handlers.NewPasswordResetHandler(svc.PasswordReset)
	profileHandler := handlers.NewProfileHandler(svc.Profiles)
	adminHandler := handlers.NewAdminHandler(svc.Admin, svc.Trade)

	requireAuth := middleware.AuthMiddleware(svc.Tokens)
	throttle := ratelimit.PerClient(cfg.AuthRateLimit)

	app.Get("/healthz", health(svc.Health))
	app.Get("/metrics", middleware.MetricsAuth(cfg.MetricsUsername, cfg.MetricsPassword), metrics.Handler())

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", throttle, registrationHandler.Register)
	auth.Post("/register/billing-address", registrationHandler.BillingAddress)
	auth.Post("/register/delivery-address", registrationHandler.DeliveryAddress)
	auth.Post("/register/trade-info", registrationHandler.TradeInfo)
	auth.Post("/register/trade-info/resubmit", throttle, registrationHandler.ResubmitTradeInfo)
	auth.Post("/verify-email", throttle, registrationHandler.VerifyEmail)
	auth.Post("/resend-otp", throttle, registrationHandler.ResendOTP)

	auth.Post("/login", throttle, authHandler.Login)
	auth.Post("/token/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)
	auth.Post("/logout-all", requireAuth, authHandler.LogoutAll)
	auth.Post("/change-password", requireAuth, throttle, authHandler.ChangePassword)

	auth.Post("/forgot-password", throttle, resetHandler.ForgotPassword)
	auth.Post("/verify-reset-otp", throttle, resetHandler.VerifyResetOTP)
	auth.Post("/reset-password", throttle, resetHandler.ResetPassword)

	// Profile (authenticated)
	profile := api.Group("/profile", requireAuth)
	profile.Get("/", profileHandler.GetProfile)
	profile.Put("/", profileHandler.UpdateProfile)
	profile.Post("/addresses/:kind", profileHandler.CreateAddress)
	profile.Put("/addresses/:kind/:id", profileHandler.UpdateAddress)
	profile.Delete("/addresses/:kind/:id", profileHandler.DeleteAddress)

	// Admin (staff only)
	admin := api.Group("/admin", requireAuth, middleware.StaffOnly())
	admin.Get("/dashboard", adminHandler.DashboardStats)
	admin.Get("/customers", adminHandler.ListAccounts)
	admin.Get("/customers/export", adminHandler.ExportAccounts)
	admin.Get("/customers/:id", adminHandler.GetAccount)
	admin.Post("/customers/:id/activate", adminHandler.ActivateAccount)
	admin.Post("/customers/:id/deactivate", adminHandler.DeactivateAccount)

	admin.Get("/trade-applications", adminHandler.ListTradeApplications)
	admin.Post("/trade-applications/:id/approve", adminHandler.ApproveTrade)
	admin.Post("/trade-applications/:id/reject", adminHandler.RejectTrade)
	admin.Get("/trade-documents/:id", adminHandler.DownloadDocument)
}

func health(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
