package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/logger"
	"github.com/Aklabu/e-commerce/internal/metrics"
	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/store"
	"github.com/Aklabu/e-commerce/internal/utils"
)

type registrationStore interface {
	Transactor
	AccountStore
	AddressStore
	TradeStore
}

// RegistrationOptions toggles optional onboarding behaviour.
type RegistrationOptions struct {
	AllowTradeResubmit bool
}

// RegistrationService drives an account through the onboarding stages.
// The stage machine lives in models.RegistrationStage.Next; every step is a
// compare-and-swap on the stored stage.
type RegistrationService struct {
	store    registrationStore
	otp      *OTPEngine
	blobs    BlobStore
	notifier Notifier
	alerts   AdminAlerter
	now      Clock
	opts     RegistrationOptions
}

func NewRegistrationService(
	st registrationStore,
	otp *OTPEngine,
	blobs BlobStore,
	notifier Notifier,
	alerts AdminAlerter,
	clock Clock,
	opts RegistrationOptions,
) *RegistrationService {
	if clock == nil {
		clock = SystemClock
	}
	return &RegistrationService{
		store:    st,
		otp:      otp,
		blobs:    blobs,
		notifier: notifier,
		alerts:   alerts,
		now:      clock,
		opts:     opts,
	}
}

// RegisterInput is the first registration step.
type RegisterInput struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	PhoneNumber  string
	CustomerType models.CustomerType
}

// StageInput is the payload of one registration step. Only the types in
// this package implement it.
type StageInput interface {
	targetStage() models.RegistrationStage
}

type BillingInput struct {
	Address             models.Address
	CompanyName         string
	VATNumber           string
	CompanyRegistration string
	PONumber            string
}

type DeliveryInput struct {
	Address models.Address
}

type TradeInput struct {
	BusinessType     models.BusinessType
	MonthlyStatement bool
	ProcurementNo    string
	Documents        []DocumentUpload
}

func (BillingInput) targetStage() models.RegistrationStage  { return models.StageBillingAdded }
func (DeliveryInput) targetStage() models.RegistrationStage { return models.StageDeliveryAdded }
func (TradeInput) targetStage() models.RegistrationStage    { return models.StageTradeInfoAdded }

// StepResult describes where an account stands after a step.
type StepResult struct {
	AccountID        uuid.UUID                `json:"customer_id"`
	Email            string                   `json:"email"`
	Stage            models.RegistrationStage `json:"registration_stage"`
	NextStep         string                   `json:"next_step"`
	VerificationSent bool                     `json:"verification_sent"`
}

// Register creates an account at StageCreated.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	email := utils.NormalizeEmail(in.Email)
	if !in.CustomerType.Valid() {
		return nil, apperr.New(apperr.KindValidation, "Customer type must be Retail or Trade.")
	}
	if err := CheckPasswordStrength(in.Password, email, in.FirstName, in.LastName); err != nil {
		return nil, err
	}

	if _, err := s.store.AccountByEmail(ctx, email); err == nil {
		return nil, duplicateEmail()
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: hash,
		CustomerType: in.CustomerType,
		FirstName:    utils.CleanText(in.FirstName),
		LastName:     utils.CleanText(in.LastName),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		Stage:        models.StageCreated,
		IsActive:     true,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, duplicateEmail()
		}
		return nil, err
	}

	metrics.RegistrationSteps.WithLabelValues(models.StageCreated.String()).Inc()
	logger.Log.Info("account registered", "account_id", account.ID, "customer_type", account.CustomerType)
	return account, nil
}

func duplicateEmail() error {
	return apperr.New(apperr.KindDuplicateEmail, "A customer with this email already exists.")
}

// Lookup finds the account a registration request refers to.
func (s *RegistrationService) Lookup(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.store.AccountByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Customer not found")
		}
		return nil, err
	}
	return account, nil
}

// Advance applies one registration step. Anything other than the single
// legal successor of the current stage is rejected with OutOfOrderStep.
func (s *RegistrationService) Advance(ctx context.Context, accountID uuid.UUID, input StageInput) (*StepResult, error) {
	account, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Customer not found")
		}
		return nil, err
	}

	if _, isTrade := input.(TradeInput); isTrade && account.CustomerType != models.CustomerTrade {
		return nil, apperr.New(apperr.KindNotTradeAccount, "Only Trade customers can submit trade information")
	}

	from := account.Stage
	to := input.targetStage()
	if next, ok := from.Next(account.CustomerType); !ok || next != to {
		return nil, outOfOrder(account)
	}

	var tradeDocs []models.TradeDocument
	if trade, ok := input.(TradeInput); ok {
		tradeDocs, err = s.storeDocuments(ctx, trade.Documents)
		if err != nil {
			return nil, err
		}
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		swapped, err := s.store.AdvanceStage(ctx, account.ID, from, to)
		if err != nil {
			return err
		}
		if !swapped {
			current, err := s.store.AccountByID(ctx, account.ID)
			if err != nil {
				return err
			}
			return outOfOrder(current)
		}
		return s.persistStep(ctx, account.ID, input, tradeDocs)
	})
	if err != nil {
		s.discardDocuments(ctx, tradeDocs)
		return nil, err
	}

	account.Stage = to
	metrics.RegistrationSteps.WithLabelValues(to.String()).Inc()
	logger.Log.Info("registration step completed", "account_id", account.ID, "stage", to.String())

	sendNotification(ctx, s.notifier, TemplateStepCompleted, account.Email, map[string]any{
		"first_name": account.FirstName,
		"step":       to.String(),
		"next_step":  models.NextStep(to, account.CustomerType),
	})

	if trade, ok := input.(TradeInput); ok {
		s.alertTradeApplication(ctx, account, trade.BusinessType, len(tradeDocs), false)
	}

	result := &StepResult{
		AccountID: account.ID,
		Email:     account.Email,
		Stage:     to,
		NextStep:  models.NextStep(to, account.CustomerType),
	}

	if to == models.VerificationStage(account.CustomerType) {
		if err := s.sendVerificationCode(ctx, account, false); err != nil {
			// The step is committed; the client can ask for a resend.
			logger.Log.Error("failed to send verification code", "account_id", account.ID, "error", err)
		} else {
			result.VerificationSent = true
		}
	}
	return result, nil
}

func (s *RegistrationService) persistStep(ctx context.Context, accountID uuid.UUID, input StageInput, docs []models.TradeDocument) error {
	switch in := input.(type) {
	case BillingInput:
		return s.store.CreateBillingAddress(ctx, &models.BillingAddress{
			AccountID:           accountID,
			Address:             cleanAddress(in.Address),
			CompanyName:         utils.CleanText(in.CompanyName),
			VATNumber:           strings.TrimSpace(in.VATNumber),
			CompanyRegistration: strings.TrimSpace(in.CompanyRegistration),
			PONumber:            strings.TrimSpace(in.PONumber),
		})
	case DeliveryInput:
		return s.store.CreateDeliveryAddress(ctx, &models.DeliveryAddress{
			AccountID: accountID,
			Address:   cleanAddress(in.Address),
		})
	case TradeInput:
		err := s.store.CreateTradeInfo(ctx, &models.TradeInfo{
			AccountID:        accountID,
			BusinessType:     in.BusinessType,
			MonthlyStatement: in.MonthlyStatement,
			ProcurementNo:    strings.TrimSpace(in.ProcurementNo),
			ApprovalStatus:   models.ApprovalPending,
			Documents:        docs,
		})
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.New(apperr.KindOutOfOrderStep, "Trade information has already been submitted.")
		}
		return err
	}
	return fmt.Errorf("unsupported registration input %T", input)
}

func (s *RegistrationService) storeDocuments(ctx context.Context, uploads []DocumentUpload) ([]models.TradeDocument, error) {
	checked, err := CheckDocuments(uploads)
	if err != nil {
		return nil, err
	}
	if len(checked) > 0 && s.blobs == nil {
		return nil, errors.New("document storage is not configured")
	}

	docs := make([]models.TradeDocument, 0, len(checked))
	for _, doc := range checked {
		blobID, err := s.blobs.Put(ctx, doc.Data, doc.Extension)
		if err != nil {
			return nil, fmt.Errorf("store document: %w", err)
		}
		docs = append(docs, models.TradeDocument{
			BlobID:      blobID,
			FileName:    utils.CleanText(doc.FileName),
			ContentType: doc.ContentType,
			SizeBytes:   int64(len(doc.Data)),
		})
	}
	return docs, nil
}

// discardDocuments removes blobs whose database rows were never committed.
func (s *RegistrationService) discardDocuments(ctx context.Context, docs []models.TradeDocument) {
	for _, doc := range docs {
		if err := s.blobs.Delete(ctx, doc.BlobID); err != nil {
			logger.Log.Warn("orphaned trade document", "blob_id", doc.BlobID, "error", err)
		}
	}
}

func (s *RegistrationService) alertTradeApplication(ctx context.Context, account *models.Account, business models.BusinessType, docs int, resubmission bool) {
	if s.alerts == nil {
		return
	}
	err := s.alerts.NotifyTradeApplication(ctx, TradeApplicationAlert{
		AccountID:    account.ID.String(),
		Email:        account.Email,
		Name:         strings.TrimSpace(account.FirstName + " " + account.LastName),
		PhoneNumber:  account.PhoneNumber,
		BusinessType: string(business),
		Documents:    docs,
		Resubmission: resubmission,
		SubmittedAt:  s.now(),
	})
	if err != nil {
		logger.Log.Error("trade application alert failed", "account_id", account.ID, "error", err)
	}
}

// RequestVerification sends a new email verification code. It is allowed
// only once every prior step is done, and is subject to the resend interval.
func (s *RegistrationService) RequestVerification(ctx context.Context, email string) error {
	account, err := s.Lookup(ctx, email)
	if err != nil {
		return err
	}
	if account.EmailVerified {
		return apperr.New(apperr.KindAlreadyVerified, "Email is already verified.")
	}
	if account.Stage != models.VerificationStage(account.CustomerType) {
		return outOfOrder(account)
	}
	return s.sendVerificationCode(ctx, account, true)
}

func (s *RegistrationService) sendVerificationCode(ctx context.Context, account *models.Account, resend bool) error {
	issue := s.otp.Issue
	if resend {
		issue = s.otp.Resend
	}
	code, err := issue(ctx, account.ID, models.PurposeEmailVerification)
	if err != nil {
		return err
	}
	sendNotification(ctx, s.notifier, TemplateVerificationCode, account.Email, map[string]any{
		"first_name":      account.FirstName,
		"code":            code,
		"expires_minutes": int(OTPTTL.Minutes()),
	})
	return nil
}

// CompleteVerification checks the code and marks the email verified in one
// transaction. OTP failures are returned as the engine reports them.
func (s *RegistrationService) CompleteVerification(ctx context.Context, email, code string) (*models.Account, error) {
	account, err := s.Lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if account.EmailVerified {
		return nil, apperr.New(apperr.KindAlreadyVerified, "Email is already verified.")
	}
	from := models.VerificationStage(account.CustomerType)
	if account.Stage != from {
		return nil, outOfOrder(account)
	}

	err = s.otp.Redeem(ctx, account.ID, models.PurposeEmailVerification, code, func(ctx context.Context) error {
		swapped, err := s.store.MarkEmailVerified(ctx, account.ID, from)
		if err != nil {
			return err
		}
		if !swapped {
			return apperr.New(apperr.KindAlreadyVerified, "Email is already verified.")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	account.EmailVerified = true
	account.Stage = models.StageEmailVerified
	metrics.RegistrationSteps.WithLabelValues(models.StageEmailVerified.String()).Inc()
	logger.Log.Info("email verified", "account_id", account.ID)

	sendNotification(ctx, s.notifier, TemplateWelcome, account.Email, map[string]any{
		"first_name":    account.FirstName,
		"customer_type": string(account.CustomerType),
		"needs_review":  account.CustomerType == models.CustomerTrade,
	})
	return account, nil
}

// ResubmitTradeInfo lets a rejected Trade customer send a corrected
// application. Credentials are required since rejected accounts cannot log in.
func (s *RegistrationService) ResubmitTradeInfo(ctx context.Context, email, password string, in TradeInput) (*models.TradeInfo, error) {
	if !s.opts.AllowTradeResubmit {
		return nil, apperr.New(apperr.KindForbidden, "Trade applications cannot be resubmitted.")
	}

	account, err := s.store.AccountByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindInvalidCredentials, "Invalid credentials")
		}
		return nil, err
	}
	if !utils.CheckPassword(account.PasswordHash, password) {
		return nil, apperr.New(apperr.KindInvalidCredentials, "Invalid credentials")
	}
	if account.CustomerType != models.CustomerTrade {
		return nil, apperr.New(apperr.KindNotTradeAccount, "Only Trade customers can submit trade information")
	}

	docs, err := s.storeDocuments(ctx, in.Documents)
	if err != nil {
		return nil, err
	}

	info := &models.TradeInfo{
		AccountID:        account.ID,
		BusinessType:     in.BusinessType,
		MonthlyStatement: in.MonthlyStatement,
		ProcurementNo:    strings.TrimSpace(in.ProcurementNo),
		Documents:        docs,
	}
	changed, err := s.store.ResubmitTradeInfo(ctx, info)
	if err != nil || !changed {
		s.discardDocuments(ctx, docs)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, outOfOrder(account)
		}
		return nil, err
	}
	if !changed {
		return nil, apperr.New(apperr.KindInvalidTransition, "Only rejected applications can be resubmitted.")
	}

	logger.Log.Info("trade application resubmitted", "account_id", account.ID)
	s.alertTradeApplication(ctx, account, in.BusinessType, len(docs), true)
	return info, nil
}

func outOfOrder(account *models.Account) error {
	return apperr.New(apperr.KindOutOfOrderStep, "Please complete the registration steps in order.").
		With("currentStage", int(account.Stage)).
		With("nextStep", models.NextStep(account.Stage, account.CustomerType))
}

func cleanAddress(a models.Address) models.Address {
	return models.Address{
		AddressLine1: utils.CleanText(a.AddressLine1),
		AddressLine2: utils.CleanText(a.AddressLine2),
		City:         utils.CleanText(a.City),
		Province:     a.Province,
		PostalCode:   strings.TrimSpace(a.PostalCode),
	}
}
