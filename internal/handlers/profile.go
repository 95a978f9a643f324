package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/middleware"
	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/services"
)

type profileService interface {
	Profile(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	UpdateProfile(ctx context.Context, accountID uuid.UUID, update models.ProfileUpdate) (*models.Account, error)
	AddAddress(ctx context.Context, accountID uuid.UUID, kind models.AddressKind, in services.AddressInput) (any, error)
	UpdateAddress(ctx context.Context, accountID, addressID uuid.UUID, kind models.AddressKind, in services.AddressInput) (any, error)
	DeleteAddress(ctx context.Context, accountID, addressID uuid.UUID, kind models.AddressKind) error
}

// ProfileHandler manages the signed-in customer's profile.
type ProfileHandler struct {
	profiles profileService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func currentAccount(c *fiber.Ctx) (uuid.UUID, error) {
	id, found := middleware.GetCurrentAccountID(c)
	if !found {
		return uuid.Nil, apperr.New(apperr.KindInvalidToken, "Authentication credentials were not provided.")
	}
	return id, nil
}

// GetProfile returns the account with its addresses and trade application.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	accountID, err := currentAccount(c)
	if err != nil {
		return err
	}
	account, err := h.profiles.Profile(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return ok(c, "Profile retrieved successfully", account)
}

type updateProfileRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,min=1,max=150"`
	LastName    *string `json:"last_name" validate:"omitempty,min=1,max=150"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,phone"`
}

// UpdateProfile changes name and phone number. Omitted fields are kept.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	accountID, err := currentAccount(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.FirstName == nil && req.LastName == nil && req.PhoneNumber == nil {
		return apperr.New(apperr.KindValidation, "No fields to update")
	}

	account, err := h.profiles.UpdateProfile(c.UserContext(), accountID, models.ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return err
	}
	return ok(c, "Profile updated successfully", account)
}

type addressRequest struct {
	addressFields
	CompanyName         string `json:"company_name" validate:"max=255"`
	VATNumber           string `json:"vat_number" validate:"max=50"`
	CompanyRegistration string `json:"company_registration" validate:"max=100"`
	PONumber            string `json:"po_number" validate:"max=100"`
}

func (r addressRequest) input() services.AddressInput {
	return services.AddressInput{
		Address:             r.model(),
		CompanyName:         r.CompanyName,
		VATNumber:           r.VATNumber,
		CompanyRegistration: r.CompanyRegistration,
		PONumber:            r.PONumber,
	}
}

func addressKind(c *fiber.Ctx) (models.AddressKind, error) {
	kind := models.AddressKind(c.Params("kind"))
	if !kind.Valid() {
		return "", apperr.New(apperr.KindNotFound, "Unknown address kind")
	}
	return kind, nil
}

// CreateAddress adds a billing or delivery address.
func (h *ProfileHandler) CreateAddress(c *fiber.Ctx) error {
	accountID, err := currentAccount(c)
	if err != nil {
		return err
	}
	kind, err := addressKind(c)
	if err != nil {
		return err
	}

	var req addressRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	address, err := h.profiles.AddAddress(c.UserContext(), accountID, kind, req.input())
	if err != nil {
		return err
	}
	return created(c, "Address added successfully", address)
}

func (h *ProfileHandler) UpdateAddress(c *fiber.Ctx) error {
	accountID, err := currentAccount(c)
	if err != nil {
		return err
	}
	kind, err := addressKind(c)
	if err != nil {
		return err
	}
	addressID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req addressRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	address, err := h.profiles.UpdateAddress(c.UserContext(), accountID, addressID, kind, req.input())
	if err != nil {
		return err
	}
	return ok(c, "Address updated successfully", address)
}

func (h *ProfileHandler) DeleteAddress(c *fiber.Ctx) error {
	accountID, err := currentAccount(c)
	if err != nil {
		return err
	}
	kind, err := addressKind(c)
	if err != nil {
		return err
	}
	addressID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.profiles.DeleteAddress(c.UserContext(), accountID, addressID, kind); err != nil {
		return err
	}
	return ok(c, "Address deleted successfully", nil)
}
