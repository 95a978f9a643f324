package models

// RegistrationStage is the position of an account in the onboarding flow.
// Stages only ever move forward, one step at a time.
type RegistrationStage int

const (
	StageCreated        RegistrationStage = 1
	StageBillingAdded   RegistrationStage = 2
	StageDeliveryAdded  RegistrationStage = 3
	StageTradeInfoAdded RegistrationStage = 4
	StageEmailVerified  RegistrationStage = 5
)

// Next returns the only legal successor of s for the customer type.
// Retail accounts skip StageTradeInfoAdded.
func (s RegistrationStage) Next(ct CustomerType) (RegistrationStage, bool) {
	switch s {
	case StageCreated:
		return StageBillingAdded, true
	case StageBillingAdded:
		return StageDeliveryAdded, true
	case StageDeliveryAdded:
		if ct == CustomerTrade {
			return StageTradeInfoAdded, true
		}
		return StageEmailVerified, true
	case StageTradeInfoAdded:
		if ct == CustomerTrade {
			return StageEmailVerified, true
		}
	}
	return 0, false
}

// VerificationStage is the stage at which email verification may be requested.
func VerificationStage(ct CustomerType) RegistrationStage {
	if ct == CustomerTrade {
		return StageTradeInfoAdded
	}
	return StageDeliveryAdded
}

func (s RegistrationStage) String() string {
	switch s {
	case StageCreated:
		return "created"
	case StageBillingAdded:
		return "billing_added"
	case StageDeliveryAdded:
		return "delivery_added"
	case StageTradeInfoAdded:
		return "trade_info_added"
	case StageEmailVerified:
		return "email_verified"
	}
	return "unknown"
}

// NextStep names the client action that moves an account out of s.
func NextStep(s RegistrationStage, ct CustomerType) string {
	next, ok := s.Next(ct)
	if !ok {
		return "complete"
	}
	switch next {
	case StageBillingAdded:
		return "billing_address"
	case StageDeliveryAdded:
		return "delivery_address"
	case StageTradeInfoAdded:
		return "trade_info"
	case StageEmailVerified:
		return "verify_email"
	}
	return "complete"
}
