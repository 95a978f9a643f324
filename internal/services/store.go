package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/models"
)

// Clock is the single time source of the service layer.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AccountStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	AccountProfile(ctx context.Context, id uuid.UUID) (*models.Account, error)
	LockAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	AdvanceStage(ctx context.Context, id uuid.UUID, from, to models.RegistrationStage) (bool, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID, from models.RegistrationStage) (bool, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int64, error)
}

type AddressStore interface {
	CreateBillingAddress(ctx context.Context, address *models.BillingAddress) error
	CreateDeliveryAddress(ctx context.Context, address *models.DeliveryAddress) error
	UpdateBillingAddress(ctx context.Context, address *models.BillingAddress) error
	UpdateDeliveryAddress(ctx context.Context, address *models.DeliveryAddress) error
	CountAddresses(ctx context.Context, kind models.AddressKind, accountID uuid.UUID) (int64, error)
	DeleteAddress(ctx context.Context, kind models.AddressKind, accountID, id uuid.UUID) error
}

type TradeStore interface {
	CreateTradeInfo(ctx context.Context, info *models.TradeInfo) error
	TradeInfoByAccount(ctx context.Context, accountID uuid.UUID) (*models.TradeInfo, error)
	ResubmitTradeInfo(ctx context.Context, info *models.TradeInfo) (bool, error)
	SetTradeStatus(ctx context.Context, accountID uuid.UUID, from, to models.ApprovalStatus, review models.TradeReview) (bool, error)
	ListTradeInfos(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]models.TradeInfo, int64, error)
	TradeDocument(ctx context.Context, id uuid.UUID) (*models.TradeDocument, error)
}

type OTPStore interface {
	SupersedeOTPs(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose, now time.Time) error
	CreateOTP(ctx context.Context, code *models.OTPCode) error
	LatestOTP(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose) (*models.OTPCode, error)
	ConsumeOTP(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	RecordOTPFailure(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (bool, error)
}

type TokenStore interface {
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id uuid.UUID, reason string, now time.Time) (bool, error)
	RevokeTokenFamily(ctx context.Context, familyID uuid.UUID, reason string, now time.Time) (int64, error)
	RevokeAccountTokens(ctx context.Context, accountID uuid.UUID, reason string, now time.Time) (int64, error)
}

type ResetTicketStore interface {
	CreateResetTicket(ctx context.Context, ticket *models.PasswordResetTicket) error
	ResetTicketByHash(ctx context.Context, hash string) (*models.PasswordResetTicket, error)
	ConsumeResetTicket(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// Store is everything the service layer needs from persistence.
type Store interface {
	Transactor
	AccountStore
	AddressStore
	TradeStore
	OTPStore
	TokenStore
	ResetTicketStore
}

// Cooldown reserves a key for a period. Reserve reports false and the time
// left when the key is already held.
type Cooldown interface {
	Reserve(ctx context.Context, key string, period time.Duration) (bool, time.Duration, error)
}

// BlobStore keeps uploaded documents outside the database.
type BlobStore interface {
	Put(ctx context.Context, data []byte, ext string) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

// Notifier delivers a templated message to a recipient.
type Notifier interface {
	Send(ctx context.Context, templateID, recipient string, data map[string]any) error
}

// AdminAlerter pushes short operational alerts to staff.
type AdminAlerter interface {
	NotifyTradeApplication(ctx context.Context, application TradeApplicationAlert) error
}

// Template identifiers understood by the notify package.
const (
	TemplateVerificationCode  = "email_verification"
	TemplatePasswordResetCode = "password_reset"
	TemplateWelcome           = "welcome"
	TemplateStepCompleted     = "registration_step"
	TemplateTradeApproved     = "trade_approved"
	TemplateTradeRejected     = "trade_rejected"
	TemplatePasswordChanged   = "password_changed"
)
