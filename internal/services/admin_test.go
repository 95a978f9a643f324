package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/models"
)

func TestAdminListAccounts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.verifiedRetail(t, "alice@example.com")
	e.verifiedTrade(t, "bob@example.com")

	all, total, err := e.admin.ListAccounts(ctx, models.AccountFilter{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, all, 2)
	assert.Equal(t, "bob@example.com", all[0].Email, "newest first")

	trade, total, err := e.admin.ListAccounts(ctx, models.AccountFilter{CustomerType: models.CustomerTrade, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.NotNil(t, trade[0].TradeInfo)
	assert.Equal(t, models.ApprovalPending, trade[0].TradeInfo.ApprovalStatus)

	found, _, err := e.admin.ListAccounts(ctx, models.AccountFilter{Search: "ALICE", Limit: 10})
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, _, err = e.admin.ListAccounts(ctx, models.AccountFilter{CustomerType: "Wholesale"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAdminSetActive(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	account := e.verifiedRetail(t, "user@example.com")
	admin := e.staff(t, "admin@example.com")

	res, err := e.auth.Login(ctx, account.Email, testPassword, false)
	require.NoError(t, err)

	require.NoError(t, e.admin.SetActive(ctx, admin.ID, account.ID, false))
	_, err = e.tokens.Refresh(ctx, res.Tokens.RefreshToken)
	assert.Equal(t, apperr.KindRevoked, apperr.KindOf(err))

	err = e.admin.SetActive(ctx, admin.ID, admin.ID, false)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, e.admin.SetActive(ctx, admin.ID, account.ID, true))
	_, err = e.auth.Login(ctx, account.Email, testPassword, false)
	assert.NoError(t, err)
}

func TestAdminExportCSV(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.verifiedRetail(t, "one@example.com")
	e.verifiedTrade(t, "two@example.com")

	var buf bytes.Buffer
	require.NoError(t, e.admin.ExportAccountsCSV(ctx, models.AccountFilter{}, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "two@example.com", rows[1][1])
	assert.Equal(t, "Trade", rows[1][5])
	assert.Equal(t, "Pending", rows[1][10])
	assert.Equal(t, "", rows[2][10])
}
