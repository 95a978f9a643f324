package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/services"
)

// Registrar is the registration flow as seen by the HTTP layer.
type Registrar interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Account, error)
	Lookup(ctx context.Context, email string) (*models.Account, error)
	Advance(ctx context.Context, accountID uuid.UUID, input services.StageInput) (*services.StepResult, error)
	RequestVerification(ctx context.Context, email string) error
	CompleteVerification(ctx context.Context, email, code string) (*models.Account, error)
	ResubmitTradeInfo(ctx context.Context, email, password string, in services.TradeInput) (*models.TradeInfo, error)
}

type resetRequester interface {
	RequestReset(ctx context.Context, email string) error
}

// RegistrationHandler serves the multi-step sign-up endpoints.
type RegistrationHandler struct {
	reg   Registrar
	reset resetRequester
}

func NewRegistrationHandler(reg Registrar, reset resetRequester) *RegistrationHandler {
	return &RegistrationHandler{reg: reg, reset: reset}
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"required,max=150"`
	PhoneNumber     string `json:"phone_number" validate:"required,phone"`
	CustomerType    string `json:"customer_type" validate:"required,customer_type"`
}

// Register is step 1: create the account.
func (h *RegistrationHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	account, err := h.reg.Register(c.UserContext(), services.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PhoneNumber:  req.PhoneNumber,
		CustomerType: models.CustomerType(req.CustomerType),
	})
	if err != nil {
		return err
	}

	return created(c, "Registration started. Please add your billing address.", fiber.Map{
		"customer_id":        account.ID,
		"email":              account.Email,
		"customer_type":      account.CustomerType,
		"registration_stage": account.Stage,
		"next_step":          models.NextStep(account.Stage, account.CustomerType),
	})
}

type addressFields struct {
	AddressLine1 string `json:"address_line_1" form:"address_line_1" validate:"required,max=255"`
	AddressLine2 string `json:"address_line_2" form:"address_line_2" validate:"max=255"`
	City         string `json:"city" form:"city" validate:"required,max=100"`
	Province     string `json:"province" form:"province" validate:"required,province"`
	PostalCode   string `json:"postal_code" form:"postal_code" validate:"required,max=10"`
}

func (a addressFields) model() models.Address {
	return models.Address{
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		Province:     models.Province(a.Province),
		PostalCode:   a.PostalCode,
	}
}

type billingRequest struct {
	Email string `json:"email" validate:"required,email"`
	addressFields
	CompanyName         string `json:"company_name" validate:"max=255"`
	VATNumber           string `json:"vat_number" validate:"max=50"`
	CompanyRegistration string `json:"company_registration" validate:"max=100"`
	PONumber            string `json:"po_number" validate:"max=100"`
}

// BillingAddress is step 2.
func (h *RegistrationHandler) BillingAddress(c *fiber.Ctx) error {
	var req billingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.advance(c, req.Email, "Billing address saved.", services.BillingInput{
		Address:             req.model(),
		CompanyName:         req.CompanyName,
		VATNumber:           req.VATNumber,
		CompanyRegistration: req.CompanyRegistration,
		PONumber:            req.PONumber,
	})
}

type deliveryRequest struct {
	Email string `json:"email" validate:"required,email"`
	addressFields
}

// DeliveryAddress is step 3.
func (h *RegistrationHandler) DeliveryAddress(c *fiber.Ctx) error {
	var req deliveryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.advance(c, req.Email, "Delivery address saved.", services.DeliveryInput{Address: req.model()})
}

type tradeRequest struct {
	Email            string `json:"email" form:"email" validate:"required,email"`
	Password         string `json:"password" form:"password"`
	BusinessType     string `json:"business_type" form:"business_type" validate:"required,business_type"`
	MonthlyStatement bool   `json:"monthly_statement" form:"monthly_statement"`
	ProcurementNo    string `json:"procurement_no" form:"procurement_no" validate:"max=100"`
}

// TradeInfo is step 4, Trade accounts only. Documents arrive as multipart
// files under "documents".
func (h *RegistrationHandler) TradeInfo(c *fiber.Ctx) error {
	var req tradeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	docs, err := readDocuments(c)
	if err != nil {
		return err
	}
	return h.advance(c, req.Email, "Trade information submitted for review.", services.TradeInput{
		BusinessType:     models.BusinessType(req.BusinessType),
		MonthlyStatement: req.MonthlyStatement,
		ProcurementNo:    req.ProcurementNo,
		Documents:        docs,
	})
}

// ResubmitTradeInfo replaces a rejected application.
func (h *RegistrationHandler) ResubmitTradeInfo(c *fiber.Ctx) error {
	var req tradeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Password == "" {
		return apperr.New(apperr.KindValidation, "Validation failed").
			With("fields", map[string]string{"password": "This field is required."})
	}
	docs, err := readDocuments(c)
	if err != nil {
		return err
	}

	info, err := h.reg.ResubmitTradeInfo(c.UserContext(), req.Email, req.Password, services.TradeInput{
		BusinessType:     models.BusinessType(req.BusinessType),
		MonthlyStatement: req.MonthlyStatement,
		ProcurementNo:    req.ProcurementNo,
		Documents:        docs,
	})
	if err != nil {
		return err
	}
	return ok(c, "Trade application resubmitted for review.", info)
}

func (h *RegistrationHandler) advance(c *fiber.Ctx, email, message string, input services.StageInput) error {
	account, err := h.reg.Lookup(c.UserContext(), email)
	if err != nil {
		return err
	}
	result, err := h.reg.Advance(c.UserContext(), account.ID, input)
	if err != nil {
		return err
	}
	if result.VerificationSent {
		message += " A verification code has been sent to your email."
	}
	return created(c, message, result)
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resendRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"omitempty,oneof=email_verification password_reset"`
}

// ResendOTP sends a fresh code for the requested purpose, email verification
// when none is given. Reset codes get the forgot-password answer.
func (h *RegistrationHandler) ResendOTP(c *fiber.Ctx) error {
	var req resendRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if models.OTPPurpose(req.Purpose) == models.PurposePasswordReset {
		if err := h.reset.RequestReset(c.UserContext(), req.Email); err != nil {
			return err
		}
		return ok(c, "If an account exists for this email, a reset code has been sent.", nil)
	}
	if err := h.reg.RequestVerification(c.UserContext(), req.Email); err != nil {
		return err
	}
	return ok(c, "A new verification code has been sent to your email.", nil)
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric,len=8"`
}

// VerifyEmail completes registration.
func (h *RegistrationHandler) VerifyEmail(c *fiber.Ctx) error {
	var req otpRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	account, err := h.reg.CompleteVerification(c.UserContext(), req.Email, req.OTP)
	if err != nil {
		return err
	}

	message := "Email verified successfully. You can now log in."
	if account.CustomerType == models.CustomerTrade {
		message = "Email verified successfully. Your trade account is awaiting approval."
	}
	return ok(c, message, fiber.Map{
		"customer_id":        account.ID,
		"email":              account.Email,
		"customer_type":      account.CustomerType,
		"registration_stage": account.Stage,
		"email_verified":     account.EmailVerified,
	})
}

// readDocuments loads the uploaded files, refusing oversized ones before
// they are read into memory.
func readDocuments(c *fiber.Ctx) ([]services.DocumentUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, fasthttp.ErrNoMultipartForm) {
			return nil, nil
		}
		return nil, apperr.New(apperr.KindValidation, "Invalid multipart form")
	}

	files := form.File["documents"]
	if len(files) > services.MaxTradeDocuments {
		return nil, apperr.New(apperr.KindTooManyDocuments,
			fmt.Sprintf("You can upload at most %d documents.", services.MaxTradeDocuments)).
			With("max", services.MaxTradeDocuments)
	}

	docs := make([]services.DocumentUpload, 0, len(files))
	for _, fh := range files {
		if fh.Size > services.MaxDocumentBytes {
			return nil, apperr.New(apperr.KindInvalidDocument, "Each document must be 10MB or smaller.").
				With("file", fh.Filename)
		}
		data, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		docs = append(docs, services.DocumentUpload{FileName: fh.Filename, Data: data})
	}
	return docs, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, services.MaxDocumentBytes+1))
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.KindValidation, "Invalid "+name)
	}
	return id, nil
}

func queryBool(c *fiber.Ctx, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
