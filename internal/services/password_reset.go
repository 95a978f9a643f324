package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/logger"
	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/store"
	"github.com/Aklabu/e-commerce/internal/utils"
)

const (
	ResetTicketTTL   = 10 * time.Minute
	resetTicketBytes = 32
)

type passwordResetStore interface {
	Transactor
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	RevokeAccountTokens(ctx context.Context, accountID uuid.UUID, reason string, now time.Time) (int64, error)
	ResetTicketStore
}

// PasswordResetService runs forgot-password by emailed OTP.
type PasswordResetService struct {
	store    passwordResetStore
	otp      *OTPEngine
	notifier Notifier
	now      Clock
}

func NewPasswordResetService(st passwordResetStore, otp *OTPEngine, notifier Notifier, clock Clock) *PasswordResetService {
	if clock == nil {
		clock = SystemClock
	}
	return &PasswordResetService{store: st, otp: otp, notifier: notifier, now: clock}
}

// ResetTicket is the single-use credential returned by VerifyResetOTP.
type ResetTicket struct {
	Token     string    `json:"reset_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RequestReset sends a reset code when the email belongs to an active
// account. The caller always gets the same answer.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	account, err := s.store.AccountByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Log.Error("password reset lookup failed", "error", err)
		}
		return nil
	}
	if !account.IsActive {
		return nil
	}

	code, err := s.otp.Resend(ctx, account.ID, models.PurposePasswordReset)
	if err != nil {
		if !apperr.Is(err, apperr.KindRateLimited) {
			logger.Log.Error("password reset code not issued", "account_id", account.ID, "error", err)
		}
		return nil
	}

	sendNotification(ctx, s.notifier, TemplatePasswordResetCode, account.Email, map[string]any{
		"first_name":      account.FirstName,
		"code":            code,
		"expires_minutes": int(OTPTTL.Minutes()),
	})
	return nil
}

// VerifyResetOTP consumes the reset code and hands out a reset ticket.
func (s *PasswordResetService) VerifyResetOTP(ctx context.Context, email, code string) (*ResetTicket, error) {
	account, err := s.resetAccount(ctx, email, code)
	if err != nil {
		return nil, err
	}

	raw, err := utils.RandomToken(resetTicketBytes)
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(ResetTicketTTL)

	err = s.otp.Redeem(ctx, account.ID, models.PurposePasswordReset, code, func(ctx context.Context) error {
		return s.store.CreateResetTicket(ctx, &models.PasswordResetTicket{
			AccountID: account.ID,
			TokenHash: utils.HashToken(raw),
			ExpiresAt: expiresAt,
		})
	})
	if err != nil {
		return nil, maskResetCodeError(err)
	}
	return &ResetTicket{Token: raw, ExpiresAt: expiresAt}, nil
}

// ResetPassword exchanges a reset ticket for a new password. The ticket is
// spent, the password replaced and every refresh token revoked atomically.
func (s *PasswordResetService) ResetPassword(ctx context.Context, ticketToken, newPassword string) error {
	ticket, err := s.store.ResetTicketByHash(ctx, utils.HashToken(ticketToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.KindInvalidToken, "Invalid or expired reset token")
		}
		return err
	}

	account, err := s.accountByID(ctx, ticket.AccountID)
	if err != nil {
		return err
	}
	hash, err := s.newPasswordHash(account, newPassword)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.store.ConsumeResetTicket(ctx, ticket.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			if ticket.UsedAt != nil {
				return apperr.New(apperr.KindAlreadyConsumed, "This reset token has already been used.")
			}
			return apperr.New(apperr.KindExpired, "Invalid or expired reset token")
		}
		return s.replacePassword(ctx, account.ID, hash, now)
	})
	if err != nil {
		return err
	}

	s.passwordChanged(ctx, account)
	return nil
}

// ResetPasswordWithCode is the one-shot variant that verifies the emailed
// code and sets the new password in a single request.
func (s *PasswordResetService) ResetPasswordWithCode(ctx context.Context, email, code, newPassword string) error {
	account, err := s.resetAccount(ctx, email, code)
	if err != nil {
		return err
	}
	hash, err := s.newPasswordHash(account, newPassword)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.otp.Redeem(ctx, account.ID, models.PurposePasswordReset, code, func(ctx context.Context) error {
		return s.replacePassword(ctx, account.ID, hash, now)
	})
	if err != nil {
		return maskResetCodeError(err)
	}

	s.passwordChanged(ctx, account)
	return nil
}

// resetAccount answers an unknown or inactive email exactly as a wrong code
// for a real account, including the time spent on the hash compare.
func (s *PasswordResetService) resetAccount(ctx context.Context, email, code string) (*models.Account, error) {
	account, err := s.store.AccountByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.otp.Decoy(code)
			return nil, invalidResetCode()
		}
		return nil, err
	}
	if !account.IsActive {
		s.otp.Decoy(code)
		return nil, invalidResetCode()
	}
	return account, nil
}

func invalidResetCode() error {
	return apperr.New(apperr.KindMismatch, "Invalid or expired OTP")
}

// maskResetCodeError folds the code states that only exist for a real
// account into the unknown-email answer. Expired stays distinct.
func maskResetCodeError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindAlreadyConsumed, apperr.KindMismatch:
		return invalidResetCode()
	}
	return err
}

func (s *PasswordResetService) accountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := s.store.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindInvalidToken, "Invalid or expired reset token")
		}
		return nil, err
	}
	return account, nil
}

func (s *PasswordResetService) newPasswordHash(account *models.Account, password string) (string, error) {
	if err := CheckPasswordStrength(password, account.Email, account.FirstName, account.LastName); err != nil {
		return "", err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *PasswordResetService) replacePassword(ctx context.Context, accountID uuid.UUID, hash string, now time.Time) error {
	if err := s.store.UpdatePassword(ctx, accountID, hash); err != nil {
		return err
	}
	_, err := s.store.RevokeAccountTokens(ctx, accountID, models.RevokedPassword, now)
	return err
}

func (s *PasswordResetService) passwordChanged(ctx context.Context, account *models.Account) {
	logger.Log.Info("password reset", "account_id", account.ID)
	sendNotification(ctx, s.notifier, TemplatePasswordChanged, account.Email, map[string]any{
		"first_name": account.FirstName,
	})
}
