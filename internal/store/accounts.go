package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Aklabu/e-commerce/internal/models"
)

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	return translate(s.conn(ctx).Create(account).Error)
}

func (s *Store) AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := s.conn(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := s.conn(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

// AccountProfile loads an account with its addresses and trade application.
func (s *Store) AccountProfile(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := s.conn(ctx).
		Preload("BillingAddresses", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("DeliveryAddresses", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("TradeInfo.Documents").
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

// LockAccount reads the account with a row lock held until the surrounding
// transaction ends.
func (s *Store) LockAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

// AdvanceStage moves the account from one stage to the next only if it is
// still at from. It reports whether the row changed.
func (s *Store) AdvanceStage(ctx context.Context, id uuid.UUID, from, to models.RegistrationStage) (bool, error) {
	res := s.conn(ctx).Model(&models.Account{}).
		Where("id = ? AND stage = ?", id, from).
		Update("stage", to)
	return res.RowsAffected == 1, res.Error
}

func (s *Store) MarkEmailVerified(ctx context.Context, id uuid.UUID, from models.RegistrationStage) (bool, error) {
	res := s.conn(ctx).Model(&models.Account{}).
		Where("id = ? AND stage = ? AND email_verified = ?", id, from, false).
		Updates(map[string]interface{}{
			"email_verified": true,
			"stage":          models.StageEmailVerified,
		})
	return res.RowsAffected == 1, res.Error
}

func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res := s.conn(ctx).Model(&models.Account{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) error {
	fields := map[string]interface{}{}
	if update.FirstName != nil {
		fields["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		fields["last_name"] = *update.LastName
	}
	if update.PhoneNumber != nil {
		fields["phone_number"] = *update.PhoneNumber
	}
	if len(fields) == 0 {
		return nil
	}

	res := s.conn(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := s.conn(ctx).Model(&models.Account{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAccounts returns one page of accounts matching the filter, newest
// first, plus the total number of matches.
func (s *Store) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int64, error) {
	matching := func(db *gorm.DB) *gorm.DB {
		if search := strings.TrimSpace(filter.Search); search != "" {
			like := "%" + strings.ToLower(search) + "%"
			db = db.Where("email LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
		}
		if filter.CustomerType != "" {
			db = db.Where("customer_type = ?", filter.CustomerType)
		}
		if filter.Active != nil {
			db = db.Where("is_active = ?", *filter.Active)
		}
		return db
	}

	var total int64
	if err := s.conn(ctx).Model(&models.Account{}).Scopes(matching).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var accounts []models.Account
	q := s.conn(ctx).Scopes(matching).Preload("TradeInfo").Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := q.Find(&accounts).Error; err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}
