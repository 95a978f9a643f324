package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/services"
)

type authenticator interface {
	Login(ctx context.Context, email, password string, rememberMe bool) (*services.LoginResult, error)
	ChangePassword(ctx context.Context, accountID uuid.UUID, current, next string) error
}

type tokenRotator interface {
	Refresh(ctx context.Context, raw string) (*services.TokenPair, error)
	Logout(ctx context.Context, raw string) error
	RevokeAll(ctx context.Context, accountID uuid.UUID, reason string) (int64, error)
}

// AuthHandler bundles the sign-in and session endpoints.
type AuthHandler struct {
	auth   authenticator
	tokens tokenRotator
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService, tokens *services.TokenService) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens}
}

type loginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// Login authenticates a verified, eligible account.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		return err
	}

	return ok(c, "Login successful", fiber.Map{
		"tokens": res.Tokens,
		"customer": fiber.Map{
			"id":            res.Account.ID,
			"email":         res.Account.Email,
			"first_name":    res.Account.FirstName,
			"last_name":     res.Account.LastName,
			"customer_type": res.Account.CustomerType,
			"is_staff":      res.Account.IsStaff,
		},
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// Refresh rotates a refresh token.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	pair, err := h.tokens.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return err
	}
	return ok(c, "Token refreshed successfully", pair)
}

// Logout revokes the session of the given refresh token. It always succeeds
// for well-formed requests.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.tokens.Logout(c.UserContext(), req.Refresh); err != nil {
		return err
	}
	return ok(c, "Logout successful", nil)
}

// LogoutAll revokes every session of the signed-in account.
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	accountID, err := currentAccount(c)
	if err != nil {
		return err
	}
	n, err := h.tokens.RevokeAll(c.UserContext(), accountID, models.RevokedLogout)
	if err != nil {
		return err
	}
	return ok(c, "Logged out from all sessions", fiber.Map{"revoked": n})
}

type changePasswordRequest struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// ChangePassword replaces the signed-in account's password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	accountID, err := currentAccount(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ChangePassword(c.UserContext(), accountID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return ok(c, "Password changed successfully. Please log in again.", nil)
}
