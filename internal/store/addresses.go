package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/models"
)

func (s *Store) CreateBillingAddress(ctx context.Context, address *models.BillingAddress) error {
	return translate(s.conn(ctx).Create(address).Error)
}

func (s *Store) CreateDeliveryAddress(ctx context.Context, address *models.DeliveryAddress) error {
	return translate(s.conn(ctx).Create(address).Error)
}

func (s *Store) UpdateBillingAddress(ctx context.Context, address *models.BillingAddress) error {
	res := s.conn(ctx).Model(&models.BillingAddress{}).
		Where("id = ? AND account_id = ?", address.ID, address.AccountID).
		Updates(map[string]interface{}{
			"address_line_1":       address.AddressLine1,
			"address_line_2":       address.AddressLine2,
			"city":                 address.City,
			"province":             address.Province,
			"postal_code":          address.PostalCode,
			"company_name":         address.CompanyName,
			"vat_number":           address.VATNumber,
			"company_registration": address.CompanyRegistration,
			"po_number":            address.PONumber,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateDeliveryAddress(ctx context.Context, address *models.DeliveryAddress) error {
	res := s.conn(ctx).Model(&models.DeliveryAddress{}).
		Where("id = ? AND account_id = ?", address.ID, address.AccountID).
		Updates(map[string]interface{}{
			"address_line_1": address.AddressLine1,
			"address_line_2": address.AddressLine2,
			"city":           address.City,
			"province":       address.Province,
			"postal_code":    address.PostalCode,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func addressModel(kind models.AddressKind) (interface{}, error) {
	switch kind {
	case models.AddressBilling:
		return &models.BillingAddress{}, nil
	case models.AddressDelivery:
		return &models.DeliveryAddress{}, nil
	}
	return nil, fmt.Errorf("unknown address kind %q", kind)
}

func (s *Store) CountAddresses(ctx context.Context, kind models.AddressKind, accountID uuid.UUID) (int64, error) {
	model, err := addressModel(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.conn(ctx).Model(model).Where("account_id = ?", accountID).Count(&n).Error
	return n, err
}

func (s *Store) DeleteAddress(ctx context.Context, kind models.AddressKind, accountID, id uuid.UUID) error {
	model, err := addressModel(kind)
	if err != nil {
		return err
	}
	res := s.conn(ctx).Where("id = ? AND account_id = ?", id, accountID).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
