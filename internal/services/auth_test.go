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

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	account := e.verifiedRetail(t, "login@example.com")

	res, err := e.auth.Login(ctx, " LOGIN@example.com", testPassword, true)
	require.NoError(t, err)
	assert.Equal(t, account.ID, res.Account.ID)
	assert.True(t, res.Tokens.RememberMe)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
}

func TestLoginFailures(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.verifiedRetail(t, "known@example.com")

	_, wrongPw := e.auth.Login(ctx, "known@example.com", "nope-nope-nope", false)
	_, unknown := e.auth.Login(ctx, "unknown@example.com", testPassword, false)
	assert.Equal(t, apperr.KindInvalidCredentials, apperr.KindOf(wrongPw))
	assert.Equal(t, apperr.KindInvalidCredentials, apperr.KindOf(unknown))
	assert.Equal(t, wrongPw.Error(), unknown.Error(), "unknown email and wrong password look alike")
}

func TestLoginBlockedStates(t *testing.T) {
	ctx := context.Background()

	t.Run("unverified", func(t *testing.T) {
		e := newTestEnv(t)
		e.addressesDone(t, "half@example.com", models.CustomerRetail)
		_, err := e.auth.Login(ctx, "half@example.com", testPassword, false)
		assert.Equal(t, apperr.KindNotVerified, apperr.KindOf(err))
	})

	t.Run("trade awaiting approval", func(t *testing.T) {
		e := newTestEnv(t)
		e.verifiedTrade(t, "wait@example.com")
		_, err := e.auth.Login(ctx, "wait@example.com", testPassword, false)
		assert.Equal(t, apperr.KindPendingApproval, apperr.KindOf(err))
	})

	t.Run("deactivated", func(t *testing.T) {
		e := newTestEnv(t)
		account := e.verifiedRetail(t, "off@example.com")
		require.NoError(t, e.store.SetActive(ctx, account.ID, false))
		_, err := e.auth.Login(ctx, "off@example.com", testPassword, false)
		assert.Equal(t, apperr.KindAccountDisabled, apperr.KindOf(err))
	})
}

func TestChangePassword(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	account := e.verifiedRetail(t, "change@example.com")
	res, err := e.auth.Login(ctx, account.Email, testPassword, false)
	require.NoError(t, err)

	err = e.auth.ChangePassword(ctx, account.ID, "not-my-password", newPassword)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindInvalidCredentials, appErr.Kind)
	assert.Contains(t, appErr.Details["fields"], "old_password")

	err = e.auth.ChangePassword(ctx, account.ID, testPassword, "password")
	assert.Equal(t, apperr.KindWeakPassword, apperr.KindOf(err))

	require.NoError(t, e.auth.ChangePassword(ctx, account.ID, testPassword, newPassword))
	assert.Equal(t, 1, e.notifier.count(TemplatePasswordChanged, account.Email))

	_, err = e.tokens.Refresh(ctx, res.Tokens.RefreshToken)
	assert.Equal(t, apperr.KindRevoked, apperr.KindOf(err))
	for _, tok := range e.store.Tokens(account.ID) {
		assert.Equal(t, models.RevokedPassword, tok.RevokedReason)
	}

	_, err = e.auth.Login(ctx, account.Email, newPassword, false)
	assert.NoError(t, err)

	err = e.auth.ChangePassword(ctx, uuid.New(), testPassword, newPassword)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
