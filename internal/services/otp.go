package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/logger"
	"github.com/Aklabu/e-commerce/internal/metrics"
	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/store"
	"github.com/Aklabu/e-commerce/internal/utils"
)

const (
	OTPLength = 8
	OTPTTL    = 10 * time.Minute

	DefaultResendInterval = 60 * time.Second

	// MaxOTPAttempts wrong guesses consume the live code.
	MaxOTPAttempts = 5
)

// OTPOptions tunes the engine. Zero values fall back to defaults.
type OTPOptions struct {
	ResendInterval time.Duration
	HashCost       int
}

type otpEngineStore interface {
	Transactor
	LockAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	OTPStore
}

// OTPEngine issues and verifies one-time codes scoped to an account and a
// purpose. Codes are stored hashed and consumed at most once.
type OTPEngine struct {
	store    otpEngineStore
	cooldown Cooldown
	now      Clock
	opts     OTPOptions
	decoy    string
}

func NewOTPEngine(st otpEngineStore, cooldown Cooldown, clock Clock, opts OTPOptions) *OTPEngine {
	if opts.ResendInterval <= 0 {
		opts.ResendInterval = DefaultResendInterval
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if clock == nil {
		clock = SystemClock
	}
	// A failed hash only disables the decoy compare.
	decoy, err := utils.HashPasswordCost("decoy-otp", opts.HashCost)
	if err != nil {
		logger.Log.Warn("otp decoy hash unavailable", "error", err)
	}
	return &OTPEngine{store: st, cooldown: cooldown, now: clock, opts: opts, decoy: decoy}
}

// Issue creates a fresh code, superseding any live one for the pair. The
// plaintext code is returned for delivery and never stored.
func (e *OTPEngine) Issue(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose) (string, error) {
	// Starts the resend window; a held window does not block a direct issue.
	if _, _, err := e.reserve(ctx, accountID, purpose); err != nil {
		logger.Log.Warn("otp cooldown unavailable", "error", err)
	}
	return e.issue(ctx, accountID, purpose)
}

// Resend issues a new code unless one was issued within the resend interval.
func (e *OTPEngine) Resend(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose) (string, error) {
	ok, wait, err := e.reserve(ctx, accountID, purpose)
	if err != nil {
		// Fails open when the cooldown backend is down.
		logger.Log.Warn("otp cooldown unavailable", "error", err)
	} else if !ok {
		secs := int(math.Ceil(wait.Seconds()))
		return "", apperr.New(apperr.KindRateLimited,
			fmt.Sprintf("Please wait %d seconds before requesting a new code.", secs)).
			With("retryAfterSeconds", secs)
	}
	return e.issue(ctx, accountID, purpose)
}

func (e *OTPEngine) reserve(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose) (bool, time.Duration, error) {
	if e.cooldown == nil {
		return true, 0, nil
	}
	key := fmt.Sprintf("otp:%s:%s", purpose, accountID)
	return e.cooldown.Reserve(ctx, key, e.opts.ResendInterval)
}

func (e *OTPEngine) issue(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose) (string, error) {
	code, err := utils.RandomDigits(OTPLength)
	if err != nil {
		return "", err
	}
	hash, err := utils.HashPasswordCost(code, e.opts.HashCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}

	now := e.now()
	err = e.store.WithinTx(ctx, func(ctx context.Context) error {
		// Serialises concurrent issues for the same account.
		if _, err := e.store.LockAccount(ctx, accountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.New(apperr.KindNotFound, "Account not found")
			}
			return err
		}
		if err := e.store.SupersedeOTPs(ctx, accountID, purpose, now); err != nil {
			return err
		}
		return e.store.CreateOTP(ctx, &models.OTPCode{
			AccountID: accountID,
			Purpose:   purpose,
			CodeHash:  hash,
			IssuedAt:  now,
			ExpiresAt: now.Add(OTPTTL),
		})
	})
	if err != nil {
		return "", err
	}

	metrics.OTPIssued.WithLabelValues(string(purpose)).Inc()
	return code, nil
}

// Verify consumes the live code for the pair if it matches. Expiry is
// exclusive: a code is dead from the instant now reaches expires_at.
func (e *OTPEngine) Verify(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose, code string) error {
	return e.Redeem(ctx, accountID, purpose, code, nil)
}

// Redeem verifies and consumes the code, then runs then in the same
// transaction. A wrong guess is counted after the transaction has rolled
// back, and MaxOTPAttempts of them consume the code.
func (e *OTPEngine) Redeem(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose, code string, then func(ctx context.Context) error) error {
	err := e.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.verify(ctx, accountID, purpose, code); err != nil {
			return err
		}
		if then == nil {
			return nil
		}
		return then(ctx)
	})

	var miss *wrongCode
	if errors.As(err, &miss) {
		err = e.recordFailure(ctx, miss)
	}
	metrics.OTPVerifications.WithLabelValues(string(purpose), outcome(err)).Inc()
	return err
}

// Decoy spends the same hashing time as a real compare so callers can
// answer for unknown accounts without a timing tell.
func (e *OTPEngine) Decoy(code string) {
	if e.decoy != "" {
		utils.CheckPassword(e.decoy, code)
	}
}

// wrongCode carries the mismatched code's ID out of the rolled back
// transaction so the attempt can be recorded.
type wrongCode struct {
	id  uuid.UUID
	err error
}

func (w *wrongCode) Error() string { return w.err.Error() }
func (w *wrongCode) Unwrap() error { return w.err }

func (e *OTPEngine) recordFailure(ctx context.Context, miss *wrongCode) error {
	burned, err := e.store.RecordOTPFailure(ctx, miss.id, MaxOTPAttempts, e.now())
	if err != nil {
		logger.Log.Error("record otp failure", "error", err, "code_id", miss.id)
		return miss.err
	}
	if burned {
		logger.Log.Warn("otp burned after repeated mismatches", "code_id", miss.id)
		return apperr.New(apperr.KindMismatch, "Too many incorrect attempts. Request a new code.")
	}
	return miss.err
}

func (e *OTPEngine) verify(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose, code string) error {
	now := e.now()

	otp, err := e.store.LatestOTP(ctx, accountID, purpose)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "No verification code has been issued.")
		}
		return err
	}
	if otp.ConsumedAt != nil {
		return apperr.New(apperr.KindAlreadyConsumed, "This code has already been used. Request a new one.")
	}
	if !now.Before(otp.ExpiresAt) {
		return apperr.New(apperr.KindExpired, "Invalid or expired OTP")
	}
	if !utils.CheckPassword(otp.CodeHash, code) {
		return &wrongCode{id: otp.ID, err: apperr.New(apperr.KindMismatch, "Invalid or expired OTP")}
	}

	ok, err := e.store.ConsumeOTP(ctx, otp.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindAlreadyConsumed, "This code has already been used. Request a new one.")
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
