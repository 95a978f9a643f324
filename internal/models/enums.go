package models

// CustomerType distinguishes retail shoppers from trade (B2B) customers.
type CustomerType string

const (
	CustomerRetail CustomerType = "Retail"
	CustomerTrade  CustomerType = "Trade"
)

func (t CustomerType) Valid() bool {
	return t == CustomerRetail || t == CustomerTrade
}

// Province is one of the nine South African provinces.
type Province string

const (
	ProvinceEasternCape  Province = "Eastern Cape"
	ProvinceFreeState    Province = "Free State"
	ProvinceGauteng      Province = "Gauteng"
	ProvinceKwaZuluNatal Province = "KwaZulu-Natal"
	ProvinceLimpopo      Province = "Limpopo"
	ProvinceMpumalanga   Province = "Mpumalanga"
	ProvinceNorthernCape Province = "Northern Cape"
	ProvinceNorthWest    Province = "North West"
	ProvinceWesternCape  Province = "Western Cape"
)

var Provinces = []Province{
	ProvinceEasternCape,
	ProvinceFreeState,
	ProvinceGauteng,
	ProvinceKwaZuluNatal,
	ProvinceLimpopo,
	ProvinceMpumalanga,
	ProvinceNorthernCape,
	ProvinceNorthWest,
	ProvinceWesternCape,
}

func (p Province) Valid() bool {
	for _, known := range Provinces {
		if p == known {
			return true
		}
	}
	return false
}

type BusinessType string

const (
	BusinessElectrician BusinessType = "Electrician"
	BusinessContractor  BusinessType = "Contractor"
	BusinessReseller    BusinessType = "Reseller"
	BusinessOther       BusinessType = "Other"
)

func (b BusinessType) Valid() bool {
	switch b {
	case BusinessElectrician, BusinessContractor, BusinessReseller, BusinessOther:
		return true
	}
	return false
}

// ApprovalStatus is the admin review state of a trade application.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

func (s ApprovalStatus) Valid() bool {
	return s == ApprovalPending || s == ApprovalApproved || s == ApprovalRejected
}

// OTPPurpose scopes a one-time code to a single flow.
type OTPPurpose string

const (
	PurposeEmailVerification OTPPurpose = "email_verification"
	PurposePasswordReset     OTPPurpose = "password_reset"
)

type AddressKind string

const (
	AddressBilling  AddressKind = "billing"
	AddressDelivery AddressKind = "delivery"
)

func (k AddressKind) Valid() bool {
	return k == AddressBilling || k == AddressDelivery
}
