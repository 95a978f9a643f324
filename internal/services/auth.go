package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/logger"
	"github.com/Aklabu/e-commerce/internal/metrics"
	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/store"
	"github.com/Aklabu/e-commerce/internal/utils"
)

type authStore interface {
	Transactor
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	RevokeAccountTokens(ctx context.Context, accountID uuid.UUID, reason string, now time.Time) (int64, error)
}

// AuthService handles sign-in and password changes.
type AuthService struct {
	store     authStore
	tokens    *TokenService
	notifier  Notifier
	now       Clock
	dummyHash string
}

func NewAuthService(st authStore, tokens *TokenService, notifier Notifier, clock Clock) (*AuthService, error) {
	if clock == nil {
		clock = SystemClock
	}
	// Compared against when the email is unknown so both paths cost one bcrypt.
	dummy, err := utils.HashPassword(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AuthService{store: st, tokens: tokens, notifier: notifier, now: clock, dummyHash: dummy}, nil
}

// LoginResult carries the signed-in account and its tokens.
type LoginResult struct {
	Account *models.Account
	Tokens  *TokenPair
}

// Login checks credentials, then account eligibility. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	res, err := s.login(ctx, utils.NormalizeEmail(email), password, rememberMe)
	metrics.Logins.WithLabelValues(outcome(err)).Inc()
	return res, err
}

func (s *AuthService) login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	account, err := s.store.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.CheckPassword(s.dummyHash, password)
			return nil, apperr.New(apperr.KindInvalidCredentials, "Invalid credentials")
		}
		return nil, err
	}
	if !utils.CheckPassword(account.PasswordHash, password) {
		return nil, apperr.New(apperr.KindInvalidCredentials, "Invalid credentials")
	}

	pair, err := s.tokens.Issue(ctx, account, rememberMe)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("login", "account_id", account.ID, "remember_me", rememberMe)
	return &LoginResult{Account: account, Tokens: pair}, nil
}

// ChangePassword replaces the password of a signed-in account and revokes
// all of its refresh tokens.
func (s *AuthService) ChangePassword(ctx context.Context, accountID uuid.UUID, current, next string) error {
	account, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "Account not found")
		}
		return err
	}
	if !utils.CheckPassword(account.PasswordHash, current) {
		return apperr.New(apperr.KindInvalidCredentials, "Current password is incorrect").
			With("fields", map[string]string{"old_password": "Current password is incorrect."})
	}
	if err := CheckPasswordStrength(next, account.Email, account.FirstName, account.LastName); err != nil {
		return err
	}

	hash, err := utils.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdatePassword(ctx, accountID, hash); err != nil {
			return err
		}
		_, err := s.store.RevokeAccountTokens(ctx, accountID, models.RevokedPassword, now)
		return err
	})
	if err != nil {
		return err
	}

	sendNotification(ctx, s.notifier, TemplatePasswordChanged, account.Email, map[string]any{"first_name": account.FirstName})
	return nil
}

func sendNotification(ctx context.Context, n Notifier, templateID, recipient string, data map[string]any) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, templateID, recipient, data); err != nil {
		logger.Log.Error("notification failed", "template", templateID, "error", err)
	}
}
