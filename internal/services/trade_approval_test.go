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

func TestTradeApprove(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	account := e.verifiedTrade(t, "approve@example.com")
	admin := e.staff(t, "admin@example.com")

	info, err := e.trade.Approve(ctx, account.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, info.ApprovalStatus)
	require.NotNil(t, info.ReviewedBy)
	assert.Equal(t, admin.ID, *info.ReviewedBy)
	require.NotNil(t, info.ReviewedAt)
	assert.Equal(t, e.clock.Now(), *info.ReviewedAt)
	assert.Equal(t, 1, e.notifier.count(TemplateTradeApproved, account.Email))

	_, err = e.trade.Approve(ctx, account.ID, admin.ID)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindInvalidTransition, appErr.Kind)
	assert.Equal(t, "Approved", appErr.Details["status"])

	_, err = e.trade.Reject(ctx, account.ID, admin.ID, "changed my mind")
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err), "decisions are final")
}

func TestTradeReject(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	account := e.verifiedTrade(t, "reject@example.com")
	admin := e.staff(t, "admin@example.com")

	info, err := e.trade.Reject(ctx, account.ID, admin.ID, "  No VAT registration  ")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, info.ApprovalStatus)
	assert.Equal(t, "No VAT registration", info.RejectionReason)
	assert.Equal(t, 1, e.notifier.count(TemplateTradeRejected, account.Email))
}

func TestTradeDecisionGuards(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	account := e.verifiedTrade(t, "guard@example.com")
	retail := e.verifiedRetail(t, "shopper@example.com")
	admin := e.staff(t, "admin@example.com")

	_, err := e.trade.Approve(ctx, account.ID, retail.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err), "customers cannot review")

	_, err = e.trade.Approve(ctx, account.ID, uuid.New())
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, e.store.SetActive(ctx, admin.ID, false))
	_, err = e.trade.Approve(ctx, account.ID, admin.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err), "inactive staff cannot review")
	require.NoError(t, e.store.SetActive(ctx, admin.ID, true))

	_, err = e.trade.Approve(ctx, retail.ID, admin.ID)
	assert.Equal(t, apperr.KindNotTradeAccount, apperr.KindOf(err))

	_, err = e.trade.Approve(ctx, uuid.New(), admin.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	info, err := e.trade.Status(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, info.ApprovalStatus)
}

func TestTradeApplicationsAndDocuments(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	first := e.verifiedTrade(t, "first@example.com")
	e.verifiedTrade(t, "second@example.com")
	admin := e.staff(t, "admin@example.com")

	_, err := e.trade.Approve(ctx, first.ID, admin.ID)
	require.NoError(t, err)

	pending, total, err := e.trade.Applications(ctx, models.ApprovalPending, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, pending, 1)

	all, total, err := e.trade.Applications(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	_, _, err = e.trade.Applications(ctx, "Maybe", 10, 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NotEmpty(t, pending[0].Documents)
	doc, data, err := e.trade.Document(ctx, pending[0].Documents[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "cipc.pdf", doc.FileName)
	assert.Equal(t, pdfBytes(), data)

	_, _, err = e.trade.Document(ctx, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
