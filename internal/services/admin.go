package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/logger"
	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/store"
)

type adminStore interface {
	Transactor
	AccountProfile(ctx context.Context, id uuid.UUID) (*models.Account, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int64, error)
	RevokeAccountTokens(ctx context.Context, accountID uuid.UUID, reason string, now time.Time) (int64, error)
}

// AdminService is the staff-facing account directory.
type AdminService struct {
	store adminStore
	now   Clock
}

func NewAdminService(st adminStore, clock Clock) *AdminService {
	if clock == nil {
		clock = SystemClock
	}
	return &AdminService{store: st, now: clock}
}

func (s *AdminService) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int64, error) {
	if filter.CustomerType != "" && !filter.CustomerType.Valid() {
		return nil, 0, apperr.New(apperr.KindValidation, "Customer type must be Retail or Trade.")
	}
	return s.store.ListAccounts(ctx, filter)
}

func (s *AdminService) Account(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := s.store.AccountProfile(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Customer not found")
		}
		return nil, err
	}
	return account, nil
}

// SetActive soft-activates or deactivates an account. Deactivation also
// revokes its refresh tokens.
func (s *AdminService) SetActive(ctx context.Context, actorID, accountID uuid.UUID, active bool) error {
	if actorID == accountID && !active {
		return apperr.New(apperr.KindValidation, "You cannot deactivate your own account.")
	}
	now := s.now()
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.SetActive(ctx, accountID, active); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.New(apperr.KindNotFound, "Customer not found")
			}
			return err
		}
		if active {
			return nil
		}
		_, err := s.store.RevokeAccountTokens(ctx, accountID, models.RevokedDisabled, now)
		return err
	})
	if err != nil {
		return err
	}
	logger.Log.Info("account activation changed", "account_id", accountID, "actor_id", actorID, "active", active)
	return nil
}

var exportHeader = []string{
	"id", "email", "first_name", "last_name", "phone_number", "customer_type",
	"registration_stage", "email_verified", "is_active", "is_staff", "trade_status", "created_at",
}

const exportPageSize = 500

// ExportAccountsCSV streams every account matching the filter as CSV.
func (s *AdminService) ExportAccountsCSV(ctx context.Context, filter models.AccountFilter, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	filter.Limit = exportPageSize
	for filter.Offset = 0; ; filter.Offset += exportPageSize {
		accounts, _, err := s.ListAccounts(ctx, filter)
		if err != nil {
			return err
		}
		for _, a := range accounts {
			tradeStatus := ""
			if a.TradeInfo != nil {
				tradeStatus = string(a.TradeInfo.ApprovalStatus)
			}
			record := []string{
				a.ID.String(),
				a.Email,
				a.FirstName,
				a.LastName,
				a.PhoneNumber,
				string(a.CustomerType),
				strconv.Itoa(int(a.Stage)),
				strconv.FormatBool(a.EmailVerified),
				strconv.FormatBool(a.IsActive),
				strconv.FormatBool(a.IsStaff),
				tradeStatus,
				a.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
		}
		if len(accounts) < exportPageSize {
			break
		}
	}

	cw.Flush()
	return cw.Error()
}
