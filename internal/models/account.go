package models

import (
	"github.com/google/uuid"
)

// Account represents a storefront customer or staff member.
type Account struct {
	BaseModel
	Email             string            `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash      string            `gorm:"not null" json:"-"`
	CustomerType      CustomerType      `gorm:"type:varchar(16);not null" json:"customer_type"`
	FirstName         string            `json:"first_name"`
	LastName          string            `json:"last_name"`
	PhoneNumber       string            `json:"phone_number"`
	EmailVerified     bool              `gorm:"not null" json:"email_verified"`
	Stage             RegistrationStage `gorm:"not null" json:"registration_stage"`
	IsActive          bool              `gorm:"not null" json:"is_active"`
	IsStaff           bool              `gorm:"not null" json:"is_staff"`
	BillingAddresses  []BillingAddress  `gorm:"constraint:OnDelete:CASCADE" json:"billing_addresses,omitempty"`
	DeliveryAddresses []DeliveryAddress `gorm:"constraint:OnDelete:CASCADE" json:"delivery_addresses,omitempty"`
	TradeInfo         *TradeInfo        `gorm:"constraint:OnDelete:CASCADE" json:"trade_info,omitempty"`
}

// Address holds the columns shared by billing and delivery addresses.
type Address struct {
	AddressLine1 string   `gorm:"column:address_line_1;not null" json:"address_line_1"`
	AddressLine2 string   `gorm:"column:address_line_2" json:"address_line_2"`
	City         string   `gorm:"not null" json:"city"`
	Province     Province `gorm:"type:varchar(32);not null" json:"province"`
	PostalCode   string   `gorm:"not null" json:"postal_code"`
}

type BillingAddress struct {
	BaseModel
	Address
	AccountID           uuid.UUID `gorm:"type:uuid;index;not null" json:"account_id"`
	CompanyName         string    `json:"company_name"`
	VATNumber           string    `gorm:"column:vat_number" json:"vat_number"`
	CompanyRegistration string    `json:"company_registration"`
	PONumber            string    `gorm:"column:po_number" json:"po_number"`
}

type DeliveryAddress struct {
	BaseModel
	Address
	AccountID uuid.UUID `gorm:"type:uuid;index;not null" json:"account_id"`
}

// AccountFilter narrows admin account listings.
type AccountFilter struct {
	Search       string
	CustomerType CustomerType
	Active       *bool
	Limit        int
	Offset       int
}

// ProfileUpdate carries the editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
}
