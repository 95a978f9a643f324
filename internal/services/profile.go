package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/store"
	"github.com/Aklabu/e-commerce/internal/utils"
)

type profileStore interface {
	Transactor
	AccountProfile(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) error
	AddressStore
}

// ProfileService serves the signed-in customer's own data.
type ProfileService struct {
	store profileStore
}

func NewProfileService(st profileStore) *ProfileService {
	return &ProfileService{store: st}
}

func (s *ProfileService) Profile(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	account, err := s.store.AccountProfile(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Account not found")
		}
		return nil, err
	}
	return account, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, accountID uuid.UUID, update models.ProfileUpdate) (*models.Account, error) {
	if update.FirstName != nil {
		v := utils.CleanText(*update.FirstName)
		update.FirstName = &v
	}
	if update.LastName != nil {
		v := utils.CleanText(*update.LastName)
		update.LastName = &v
	}
	if update.PhoneNumber != nil {
		v := strings.TrimSpace(*update.PhoneNumber)
		update.PhoneNumber = &v
	}
	if err := s.store.UpdateProfile(ctx, accountID, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Account not found")
		}
		return nil, err
	}
	return s.Profile(ctx, accountID)
}

// AddressInput carries the fields of either address kind. Company fields
// are ignored for delivery addresses.
type AddressInput struct {
	Address             models.Address
	CompanyName         string
	VATNumber           string
	CompanyRegistration string
	PONumber            string
}

// AddAddress appends an address to the account's address book.
func (s *ProfileService) AddAddress(ctx context.Context, accountID uuid.UUID, kind models.AddressKind, in AddressInput) (any, error) {
	switch kind {
	case models.AddressBilling:
		address := billingFromInput(accountID, in)
		if err := s.store.CreateBillingAddress(ctx, address); err != nil {
			return nil, err
		}
		return address, nil
	case models.AddressDelivery:
		address := &models.DeliveryAddress{AccountID: accountID, Address: cleanAddress(in.Address)}
		if err := s.store.CreateDeliveryAddress(ctx, address); err != nil {
			return nil, err
		}
		return address, nil
	}
	return nil, unknownKind()
}

func (s *ProfileService) UpdateAddress(ctx context.Context, accountID, addressID uuid.UUID, kind models.AddressKind, in AddressInput) (any, error) {
	var (
		result any
		err    error
	)
	switch kind {
	case models.AddressBilling:
		address := billingFromInput(accountID, in)
		address.ID = addressID
		err = s.store.UpdateBillingAddress(ctx, address)
		result = address
	case models.AddressDelivery:
		address := &models.DeliveryAddress{AccountID: accountID, Address: cleanAddress(in.Address)}
		address.ID = addressID
		err = s.store.UpdateDeliveryAddress(ctx, address)
		result = address
	default:
		return nil, unknownKind()
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Address not found")
		}
		return nil, err
	}
	return result, nil
}

// DeleteAddress removes an address, keeping at least one of each kind.
func (s *ProfileService) DeleteAddress(ctx context.Context, accountID, addressID uuid.UUID, kind models.AddressKind) error {
	if !kind.Valid() {
		return unknownKind()
	}
	return s.store.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.store.CountAddresses(ctx, kind, accountID)
		if err != nil {
			return err
		}
		if n <= 1 {
			return apperr.New(apperr.KindValidation, "At least one "+string(kind)+" address is required.")
		}
		if err := s.store.DeleteAddress(ctx, kind, accountID, addressID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.New(apperr.KindNotFound, "Address not found")
			}
			return err
		}
		return nil
	})
}

func billingFromInput(accountID uuid.UUID, in AddressInput) *models.BillingAddress {
	return &models.BillingAddress{
		AccountID:           accountID,
		Address:             cleanAddress(in.Address),
		CompanyName:         utils.CleanText(in.CompanyName),
		VATNumber:           strings.TrimSpace(in.VATNumber),
		CompanyRegistration: strings.TrimSpace(in.CompanyRegistration),
		PONumber:            strings.TrimSpace(in.PONumber),
	}
}

func unknownKind() error {
	return apperr.New(apperr.KindValidation, "Address kind must be billing or delivery.")
}
