package models

import (
	"time"

	"github.com/google/uuid"
)

// OTPCode is a hashed one-time code. At most one unconsumed code exists per
// (account, purpose); the database enforces it with a partial unique index.
type OTPCode struct {
	BaseModel
	AccountID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"account_id"`
	Purpose    OTPPurpose `gorm:"type:varchar(32);not null" json:"purpose"`
	CodeHash   string     `gorm:"not null" json:"-"`
	IssuedAt   time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	Superseded bool       `gorm:"not null" json:"superseded"`
	Attempts   int        `gorm:"not null;default:0" json:"-"`
}

// RefreshToken is the server-side record of an opaque refresh token.
// FamilyID is the ID of the first token in a rotation chain.
type RefreshToken struct {
	BaseModel
	AccountID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"account_id"`
	FamilyID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"family_id"`
	RotatedFromID *uuid.UUID `gorm:"type:uuid" json:"rotated_from_id,omitempty"`
	TokenHash     string     `gorm:"uniqueIndex;not null" json:"-"`
	RememberMe    bool       `gorm:"not null" json:"remember_me"`
	IssuedAt      time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt     time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
}

const (
	RevokedRotated  = "rotated"
	RevokedLogout   = "logout"
	RevokedReuse    = "reuse_detected"
	RevokedPassword = "password_changed"
	RevokedDisabled = "account_disabled"
)

// PasswordResetTicket is handed out after a reset OTP is verified and is
// exchanged exactly once for a new password.
type PasswordResetTicket struct {
	BaseModel
	AccountID uuid.UUID  `gorm:"type:uuid;index;not null" json:"account_id"`
	TokenHash string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
}
