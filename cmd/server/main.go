package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/Aklabu/e-commerce/internal/blob"
	"github.com/Aklabu/e-commerce/internal/config"
	"github.com/Aklabu/e-commerce/internal/database"
	"github.com/Aklabu/e-commerce/internal/handlers"
	"github.com/Aklabu/e-commerce/internal/logger"
	"github.com/Aklabu/e-commerce/internal/metrics"
	"github.com/Aklabu/e-commerce/internal/notify"
	"github.com/Aklabu/e-commerce/internal/ratelimit"
	"github.com/Aklabu/e-commerce/internal/routes"
	"github.com/Aklabu/e-commerce/internal/services"
	"github.com/Aklabu/e-commerce/internal/store"
)

// Five 10 MB documents plus form fields.
const bodyLimit = 60 * 1024 * 1024

func main() {
	if err := run(); err != nil {
		logger.Log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Initialize(cfg.LogLevel, cfg.LogJSON)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	st := store.New(db)

	cooldown, closeCooldown, err := newCooldown(cfg)
	if err != nil {
		return err
	}
	defer closeCooldown()

	blobs, err := blob.New(cfg.BlobDir)
	if err != nil {
		return fmt.Errorf("blob storage: %w", err)
	}

	mailer, err := newMailer(cfg)
	if err != nil {
		return err
	}
	defer mailer.Wait()

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)

	otp := services.NewOTPEngine(st, cooldown, nil, services.OTPOptions{ResendInterval: cfg.OTPResendInterval})
	tokens := services.NewTokenService(st, cfg.JWTSecret, nil)
	auth, err := services.NewAuthService(st, tokens, mailer, nil)
	if err != nil {
		return err
	}

	svc := &routes.Services{
		Registration: services.NewRegistrationService(st, otp, blobs, mailer, telegram, nil,
			services.RegistrationOptions{AllowTradeResubmit: cfg.TradeAllowResubmit}),
		Auth:          auth,
		Tokens:        tokens,
		PasswordReset: services.NewPasswordResetService(st, otp, mailer, nil),
		Profiles:      services.NewProfileService(st),
		Admin:         services.NewAdminService(st, nil),
		Trade:         services.NewTradeGate(st, blobs, mailer, nil),
		Health:        st,
	}

	app := fiber.New(fiber.Config{
		AppName:      "Storefront Accounts",
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    bodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(metrics.Middleware())

	routes.Register(app, svc, cfg)

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("starting server", "port", cfg.AppPort)
		errCh <- app.Listen(":" + cfg.AppPort)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Log.Info("shutting down", "signal", sig.String())
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newCooldown(cfg *config.Config) (services.Cooldown, func(), error) {
	if cfg.RedisURL == "" {
		logger.Log.Warn("REDIS_URL not set, OTP resend cooldown is per process")
		return ratelimit.NewMemoryCooldown(nil), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	return ratelimit.NewRedisCooldown(client, "otp:cooldown:"), func() { _ = client.Close() }, nil
}

func newMailer(cfg *config.Config) (*notify.Async, error) {
	catalog, err := notify.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("email templates: %w", err)
	}

	var transport notify.Transport = notify.LogTransport{}
	if cfg.MailRelayURL != "" {
		transport = notify.NewRelayTransport(notify.RelayConfig{
			URL:      cfg.MailRelayURL,
			Username: cfg.MailRelayUsername,
			Password: cfg.MailRelayPassword,
			Timeout:  15 * time.Second,
		})
	} else {
		logger.Log.Warn("MAIL_RELAY_URL not set, emails are written to the log")
	}

	return notify.NewAsync(notify.NewMailer(catalog, transport, cfg.MailFrom), 30*time.Second), nil
}
