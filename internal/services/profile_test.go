package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/models"
)

func TestProfileUpdate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	account := e.verifiedRetail(t, "me@example.com")

	first := " <i>Lindiwe</i> "
	updated, err := e.profile.UpdateProfile(ctx, account.ID, models.ProfileUpdate{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Lindiwe", updated.FirstName)
	assert.Equal(t, "Mokoena", updated.LastName, "omitted fields are kept")

	_, err = e.profile.Profile(ctx, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAddressBook(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	account := e.verifiedRetail(t, "book@example.com")

	added, err := e.profile.AddAddress(ctx, account.ID, models.AddressDelivery, AddressInput{Address: testAddress()})
	require.NoError(t, err)
	delivery, ok := added.(*models.DeliveryAddress)
	require.True(t, ok)

	in := AddressInput{Address: testAddress()}
	in.Address.City = "Stellenbosch"
	updated, err := e.profile.UpdateAddress(ctx, account.ID, delivery.ID, models.AddressDelivery, in)
	require.NoError(t, err)
	assert.Equal(t, "Stellenbosch", updated.(*models.DeliveryAddress).City)

	other := e.verifiedRetail(t, "other@example.com")
	_, err = e.profile.UpdateAddress(ctx, other.ID, delivery.ID, models.AddressDelivery, in)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err), "addresses belong to one account")

	require.NoError(t, e.profile.DeleteAddress(ctx, account.ID, delivery.ID, models.AddressDelivery))

	profile, err := e.profile.Profile(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, profile.DeliveryAddresses, 1)
	require.Len(t, profile.BillingAddresses, 1)

	err = e.profile.DeleteAddress(ctx, account.ID, profile.BillingAddresses[0].ID, models.AddressBilling)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "the last address of a kind stays")

	_, err = e.profile.AddAddress(ctx, account.ID, "shipping", in)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
