package models

import (
	"time"

	"github.com/google/uuid"
)

// TradeInfo is the trade application attached to a Trade account.
type TradeInfo struct {
	BaseModel
	AccountID        uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"account_id"`
	BusinessType     BusinessType    `gorm:"type:varchar(16);not null" json:"business_type"`
	MonthlyStatement bool            `json:"monthly_statement"`
	ProcurementNo    string          `json:"procurement_no"`
	ApprovalStatus   ApprovalStatus  `gorm:"type:varchar(16);not null;index" json:"approval_status"`
	ReviewedBy       *uuid.UUID      `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time      `json:"reviewed_at,omitempty"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
	Documents        []TradeDocument `gorm:"constraint:OnDelete:CASCADE" json:"documents,omitempty"`
}

// TradeDocument references a supporting document held in the blob store.
type TradeDocument struct {
	BaseModel
	TradeInfoID uuid.UUID `gorm:"type:uuid;index;not null" json:"trade_info_id"`
	BlobID      string    `gorm:"not null" json:"-"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
}

// TradeReview records an admin decision.
type TradeReview struct {
	ReviewerID uuid.UUID
	At         time.Time
	Reason     string
}
