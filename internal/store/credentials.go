package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Aklabu/e-commerce/internal/models"
)

// SupersedeOTPs retires every live code for the pair so a new one can be
// inserted under the partial unique index.
func (s *Store) SupersedeOTPs(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose, now time.Time) error {
	return s.conn(ctx).Model(&models.OTPCode{}).
		Where("account_id = ? AND purpose = ? AND consumed_at IS NULL", accountID, purpose).
		Updates(map[string]interface{}{
			"consumed_at": now,
			"superseded":  true,
		}).Error
}

func (s *Store) CreateOTP(ctx context.Context, code *models.OTPCode) error {
	return translate(s.conn(ctx).Create(code).Error)
}

func (s *Store) LatestOTP(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose) (*models.OTPCode, error) {
	var code models.OTPCode
	err := s.conn(ctx).
		Where("account_id = ? AND purpose = ?", accountID, purpose).
		Order("issued_at DESC, created_at DESC").
		First(&code).Error
	if err != nil {
		return nil, translate(err)
	}
	return &code, nil
}

// ConsumeOTP marks a code used. Only one caller can ever see true.
func (s *Store) ConsumeOTP(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.OTPCode{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", now)
	return res.RowsAffected == 1, res.Error
}

// RecordOTPFailure counts a wrong guess against a live code and consumes the
// code once maxAttempts is reached. It reports whether this call burned it.
func (s *Store) RecordOTPFailure(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (bool, error) {
	var burned bool
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		res := s.conn(ctx).Model(&models.OTPCode{}).
			Where("id = ? AND consumed_at IS NULL", id).
			Update("attempts", gorm.Expr("attempts + 1"))
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		res = s.conn(ctx).Model(&models.OTPCode{}).
			Where("id = ? AND consumed_at IS NULL AND attempts >= ?", id, maxAttempts).
			Update("consumed_at", now)
		burned = res.RowsAffected == 1
		return res.Error
	})
	return burned, err
}

func (s *Store) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return translate(s.conn(ctx).Create(token).Error)
}

func (s *Store) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := s.conn(ctx).Where("token_hash = ?", hash).First(&token).Error; err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

// RevokeRefreshToken revokes a single live token and reports whether this
// call was the one that did it.
func (s *Store) RevokeRefreshToken(ctx context.Context, id uuid.UUID, reason string, now time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]interface{}{
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	return res.RowsAffected == 1, res.Error
}

func (s *Store) RevokeTokenFamily(ctx context.Context, familyID uuid.UUID, reason string, now time.Time) (int64, error) {
	res := s.conn(ctx).Model(&models.RefreshToken{}).
		Where("family_id = ? AND revoked_at IS NULL", familyID).
		Updates(map[string]interface{}{
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	return res.RowsAffected, res.Error
}

func (s *Store) RevokeAccountTokens(ctx context.Context, accountID uuid.UUID, reason string, now time.Time) (int64, error) {
	res := s.conn(ctx).Model(&models.RefreshToken{}).
		Where("account_id = ? AND revoked_at IS NULL", accountID).
		Updates(map[string]interface{}{
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	return res.RowsAffected, res.Error
}

func (s *Store) CreateResetTicket(ctx context.Context, ticket *models.PasswordResetTicket) error {
	return translate(s.conn(ctx).Create(ticket).Error)
}

func (s *Store) ResetTicketByHash(ctx context.Context, hash string) (*models.PasswordResetTicket, error) {
	var ticket models.PasswordResetTicket
	if err := s.conn(ctx).Where("token_hash = ?", hash).First(&ticket).Error; err != nil {
		return nil, translate(err)
	}
	return &ticket, nil
}

// ConsumeResetTicket marks an unexpired ticket used exactly once.
func (s *Store) ConsumeResetTicket(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.PasswordResetTicket{}).
		Where("id = ? AND used_at IS NULL AND expires_at > ?", id, now).
		Update("used_at", now)
	return res.RowsAffected == 1, res.Error
}
