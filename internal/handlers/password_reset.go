package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/services"
)

type passwordResetter interface {
	RequestReset(ctx context.Context, email string) error
	VerifyResetOTP(ctx context.Context, email, code string) (*services.ResetTicket, error)
	ResetPassword(ctx context.Context, ticketToken, newPassword string) error
	ResetPasswordWithCode(ctx context.Context, email, code, newPassword string) error
}

// PasswordResetHandler manages forgot-password endpoints.
type PasswordResetHandler struct {
	reset passwordResetter
}

func NewPasswordResetHandler(reset *services.PasswordResetService) *PasswordResetHandler {
	return &PasswordResetHandler{reset: reset}
}

// ForgotPassword answers identically whether or not the email is known.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.reset.RequestReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return ok(c, "If an account exists for this email, a reset code has been sent.", nil)
}

func (h *PasswordResetHandler) VerifyResetOTP(c *fiber.Ctx) error {
	var req otpRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.reset.VerifyResetOTP(c.UserContext(), req.Email, req.OTP)
	if err != nil {
		return err
	}
	return ok(c, "OTP verified. You can now set a new password.", ticket)
}

type resetPasswordRequest struct {
	ResetToken      string `json:"reset_token"`
	Email           string `json:"email" validate:"omitempty,email"`
	OTP             string `json:"otp" validate:"omitempty,numeric,len=8"`
	NewPassword     string `json:"new_password" validate:"required,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// ResetPassword accepts either a reset token from verify-reset-otp or the
// email and code directly.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var err error
	switch {
	case req.ResetToken != "":
		err = h.reset.ResetPassword(c.UserContext(), req.ResetToken, req.NewPassword)
	case req.Email != "" && req.OTP != "":
		err = h.reset.ResetPasswordWithCode(c.UserContext(), req.Email, req.OTP, req.NewPassword)
	default:
		return apperr.New(apperr.KindValidation, "Provide reset_token, or email and otp.")
	}
	if err != nil {
		return err
	}
	return ok(c, "Password reset successfully. Please log in with your new password.", nil)
}
