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

const (
	AccessTokenTTL       = 60 * time.Minute
	RefreshTokenTTL      = 7 * 24 * time.Hour
	RememberMeRefreshTTL = 30 * 24 * time.Hour

	refreshTokenBytes = 32
)

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken      string    `json:"access"`
	RefreshToken     string    `json:"refresh"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	RememberMe       bool      `json:"remember_me"`
}

type tokenServiceStore interface {
	Transactor
	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	TradeInfoByAccount(ctx context.Context, accountID uuid.UUID) (*models.TradeInfo, error)
	TokenStore
}

// TokenService mints stateless access tokens and rotating refresh tokens.
// Every refresh token belongs to a family rooted at the token issued by
// login; presenting a rotated token revokes the whole family.
type TokenService struct {
	store  tokenServiceStore
	secret string
	now    Clock
}

func NewTokenService(st tokenServiceStore, secret string, clock Clock) *TokenService {
	if clock == nil {
		clock = SystemClock
	}
	return &TokenService{store: st, secret: secret, now: clock}
}

var errRotationLost = errors.New("refresh token rotated concurrently")

// Issue starts a new token family for an account allowed to sign in.
func (s *TokenService) Issue(ctx context.Context, account *models.Account, rememberMe bool) (*TokenPair, error) {
	if err := s.CheckEligible(ctx, account); err != nil {
		return nil, err
	}
	return s.mint(ctx, account, rememberMe, uuid.Nil, nil, s.now())
}

// CheckEligible reports why an account may not hold tokens, if it may not.
func (s *TokenService) CheckEligible(ctx context.Context, account *models.Account) error {
	if !account.IsActive {
		return apperr.New(apperr.KindAccountDisabled, "Account is deactivated")
	}
	if !account.EmailVerified {
		return apperr.New(apperr.KindNotVerified, "Email not verified. Please verify your email first.").
			With("currentStage", int(account.Stage)).
			With("nextStep", models.NextStep(account.Stage, account.CustomerType))
	}
	if account.CustomerType != models.CustomerTrade {
		return nil
	}

	info, err := s.store.TradeInfoByAccount(ctx, account.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.KindPendingApproval, "Your trade account is awaiting approval.")
		}
		return err
	}
	switch info.ApprovalStatus {
	case models.ApprovalApproved:
		return nil
	case models.ApprovalRejected:
		e := apperr.New(apperr.KindTradeRejected, "Your trade application was rejected.")
		if info.RejectionReason != "" {
			e = e.With("reason", info.RejectionReason)
		}
		return e
	default:
		return apperr.New(apperr.KindPendingApproval, "Your trade account is awaiting approval.")
	}
}

// Refresh exchanges a live refresh token for a new pair. The old token is
// revoked in the same transaction that creates its successor.
func (s *TokenService) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	pair, err := s.refresh(ctx, raw)
	metrics.TokenRefreshes.WithLabelValues(outcome(err)).Inc()
	return pair, err
}

func (s *TokenService) refresh(ctx context.Context, raw string) (*TokenPair, error) {
	now := s.now()

	current, err := s.store.RefreshTokenByHash(ctx, utils.HashToken(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindInvalidToken, "Token is invalid or expired")
		}
		return nil, err
	}

	if current.RevokedAt != nil {
		if current.RevokedReason == models.RevokedRotated {
			s.reuseDetected(ctx, current, now)
		}
		return nil, apperr.New(apperr.KindRevoked, "Token has been revoked")
	}
	if !now.Before(current.ExpiresAt) {
		return nil, apperr.New(apperr.KindExpired, "Token is invalid or expired")
	}

	account, err := s.store.AccountByID(ctx, current.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindInvalidToken, "Token is invalid or expired")
		}
		return nil, err
	}
	if err := s.CheckEligible(ctx, account); err != nil {
		return nil, err
	}

	var pair *TokenPair
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.store.RevokeRefreshToken(ctx, current.ID, models.RevokedRotated, now)
		if err != nil {
			return err
		}
		if !ok {
			return errRotationLost
		}
		rotatedFrom := current.ID
		pair, err = s.mint(ctx, account, current.RememberMe, current.FamilyID, &rotatedFrom, now)
		return err
	})
	if errors.Is(err, errRotationLost) {
		s.reuseDetected(ctx, current, now)
		return nil, apperr.New(apperr.KindRevoked, "Token has been revoked")
	}
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *TokenService) reuseDetected(ctx context.Context, token *models.RefreshToken, now time.Time) {
	n, err := s.store.RevokeTokenFamily(ctx, token.FamilyID, models.RevokedReuse, now)
	if err != nil {
		logger.Log.Error("failed to revoke token family", "family_id", token.FamilyID, "error", err)
	}
	metrics.RefreshReuseDetected.Inc()
	logger.Log.Warn("refresh token reuse detected",
		"account_id", token.AccountID,
		"family_id", token.FamilyID,
		"token_id", token.ID,
		"revoked", n,
	)
}

// Logout revokes the family of the presented token. Unknown or already
// revoked tokens are not an error.
func (s *TokenService) Logout(ctx context.Context, raw string) error {
	current, err := s.store.RefreshTokenByHash(ctx, utils.HashToken(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = s.store.RevokeTokenFamily(ctx, current.FamilyID, models.RevokedLogout, s.now())
	return err
}

// RevokeAll revokes every live refresh token of the account. Access tokens
// already handed out stay valid until they expire.
func (s *TokenService) RevokeAll(ctx context.Context, accountID uuid.UUID, reason string) (int64, error) {
	return s.store.RevokeAccountTokens(ctx, accountID, reason, s.now())
}

// ParseAccessToken validates an access token without touching the store.
func (s *TokenService) ParseAccessToken(token string) (*utils.AccessClaims, error) {
	claims, err := utils.ParseAccessToken(s.secret, token, s.now())
	if err != nil {
		if errors.Is(err, utils.ErrExpiredToken) {
			return nil, apperr.New(apperr.KindInvalidToken, "Token has expired")
		}
		return nil, apperr.New(apperr.KindInvalidToken, "Token is invalid or expired")
	}
	return claims, nil
}

func (s *TokenService) mint(ctx context.Context, account *models.Account, rememberMe bool, familyID uuid.UUID, rotatedFrom *uuid.UUID, now time.Time) (*TokenPair, error) {
	access, err := utils.GenerateAccessToken(s.secret, utils.AccessClaims{
		AccountID:    account.ID.String(),
		Email:        account.Email,
		CustomerType: string(account.CustomerType),
		Staff:        account.IsStaff,
	}, now, AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	raw, err := utils.RandomToken(refreshTokenBytes)
	if err != nil {
		return nil, err
	}

	ttl := RefreshTokenTTL
	if rememberMe {
		ttl = RememberMeRefreshTTL
	}

	record := &models.RefreshToken{
		AccountID:     account.ID,
		FamilyID:      familyID,
		RotatedFromID: rotatedFrom,
		TokenHash:     utils.HashToken(raw),
		RememberMe:    rememberMe,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}
	record.ID = uuid.New()
	if record.FamilyID == uuid.Nil {
		record.FamilyID = record.ID
	}
	if err := s.store.CreateRefreshToken(ctx, record); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     raw,
		AccessExpiresAt:  now.Add(AccessTokenTTL),
		RefreshExpiresAt: record.ExpiresAt,
		RememberMe:       rememberMe,
	}, nil
}
