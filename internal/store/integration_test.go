package store

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Aklabu/e-commerce/internal/database"
	"github.com/Aklabu/e-commerce/internal/models"
)

var testStore *Store

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			// postgres restarts once after init, so wait for the second ready line.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Printf("skipping store integration tests, postgres container unavailable: %s", err)
		os.Exit(0)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to obtain connection string: %s", err)
	}
	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatalf("failed to connect to postgres container: %s", err)
	}
	testStore = New(db)

	code := m.Run()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate container: %s", err)
	}
	os.Exit(code)
}

func createAccount(t *testing.T, ct models.CustomerType) *models.Account {
	t.Helper()
	account := &models.Account{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		CustomerType: ct,
		Stage:        models.StageCreated,
		IsActive:     true,
	}
	require.NoError(t, testStore.CreateAccount(context.Background(), account))
	return account
}

func TestDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	account := createAccount(t, models.CustomerRetail)

	err := testStore.CreateAccount(ctx, &models.Account{
		Email:        account.Email,
		PasswordHash: "hash",
		CustomerType: models.CustomerRetail,
		Stage:        models.StageCreated,
		IsActive:     true,
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = testStore.AccountByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdvanceStageCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	account := createAccount(t, models.CustomerRetail)

	ok, err := testStore.AdvanceStage(ctx, account.ID, models.StageCreated, models.StageBillingAdded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = testStore.AdvanceStage(ctx, account.ID, models.StageCreated, models.StageBillingAdded)
	require.NoError(t, err)
	assert.False(t, ok, "second swap from a stale stage must not apply")

	got, err := testStore.AccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageBillingAdded, got.Stage)
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	account := createAccount(t, models.CustomerRetail)
	boom := errors.New("boom")

	err := testStore.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := testStore.AdvanceStage(ctx, account.ID, models.StageCreated, models.StageBillingAdded); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := testStore.AccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageCreated, got.Stage)
}

func TestSingleActiveOTPIndex(t *testing.T) {
	ctx := context.Background()
	account := createAccount(t, models.CustomerRetail)
	now := time.Now().UTC()

	first := &models.OTPCode{AccountID: account.ID, Purpose: models.PurposeEmailVerification, CodeHash: "a", IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute)}
	require.NoError(t, testStore.CreateOTP(ctx, first))

	second := &models.OTPCode{AccountID: account.ID, Purpose: models.PurposeEmailVerification, CodeHash: "b", IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute)}
	assert.ErrorIs(t, testStore.CreateOTP(ctx, second), ErrDuplicate)

	require.NoError(t, testStore.SupersedeOTPs(ctx, account.ID, models.PurposeEmailVerification, now))
	second.ID = uuid.Nil
	require.NoError(t, testStore.CreateOTP(ctx, second))

	latest, err := testStore.LatestOTP(ctx, account.ID, models.PurposeEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	other := &models.OTPCode{AccountID: account.ID, Purpose: models.PurposePasswordReset, CodeHash: "c", IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute)}
	assert.NoError(t, testStore.CreateOTP(ctx, other), "purposes are independent")
}

func TestConcurrentConsumeOTP(t *testing.T) {
	ctx := context.Background()
	account := createAccount(t, models.CustomerRetail)
	now := time.Now().UTC()
	code := &models.OTPCode{AccountID: account.ID, Purpose: models.PurposeEmailVerification, CodeHash: "x", IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute)}
	require.NoError(t, testStore.CreateOTP(ctx, code))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := testStore.ConsumeOTP(ctx, code.ID, time.Now().UTC())
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestRecordOTPFailure(t *testing.T) {
	ctx := context.Background()
	account := createAccount(t, models.CustomerRetail)
	now := time.Now().UTC()
	code := &models.OTPCode{AccountID: account.ID, Purpose: models.PurposePasswordReset, CodeHash: "x", IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute)}
	require.NoError(t, testStore.CreateOTP(ctx, code))

	for i := 1; i < 3; i++ {
		burned, err := testStore.RecordOTPFailure(ctx, code.ID, 3, now)
		require.NoError(t, err)
		assert.False(t, burned)
	}
	burned, err := testStore.RecordOTPFailure(ctx, code.ID, 3, now)
	require.NoError(t, err)
	assert.True(t, burned)

	latest, err := testStore.LatestOTP(ctx, account.ID, models.PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Attempts)
	require.NotNil(t, latest.ConsumedAt)

	burned, err = testStore.RecordOTPFailure(ctx, code.ID, 3, now)
	require.NoError(t, err)
	assert.False(t, burned, "a consumed code is not counted again")
}

func TestRefreshTokenRevocation(t *testing.T) {
	ctx := context.Background()
	account := createAccount(t, models.CustomerRetail)
	now := time.Now().UTC()

	root := &models.RefreshToken{AccountID: account.ID, TokenHash: uuid.NewString(), IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	root.ID = uuid.New()
	root.FamilyID = root.ID
	require.NoError(t, testStore.CreateRefreshToken(ctx, root))

	child := &models.RefreshToken{AccountID: account.ID, FamilyID: root.ID, RotatedFromID: &root.ID, TokenHash: uuid.NewString(), IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, testStore.CreateRefreshToken(ctx, child))

	ok, err := testStore.RevokeRefreshToken(ctx, root.ID, models.RevokedRotated, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = testStore.RevokeRefreshToken(ctx, root.ID, models.RevokedRotated, now)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := testStore.RevokeTokenFamily(ctx, root.ID, models.RevokedReuse, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := testStore.RefreshTokenByHash(ctx, child.TokenHash)
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	assert.Equal(t, models.RevokedReuse, got.RevokedReason)
}

func TestTradeLifecycle(t *testing.T) {
	ctx := context.Background()
	account := createAccount(t, models.CustomerTrade)
	admin := createAccount(t, models.CustomerRetail)

	info := &models.TradeInfo{
		AccountID:      account.ID,
		BusinessType:   models.BusinessContractor,
		ApprovalStatus: models.ApprovalPending,
		Documents:      []models.TradeDocument{{BlobID: "b1", FileName: "reg.pdf", ContentType: "application/pdf", SizeBytes: 10}},
	}
	require.NoError(t, testStore.CreateTradeInfo(ctx, info))
	assert.ErrorIs(t, testStore.CreateTradeInfo(ctx, &models.TradeInfo{AccountID: account.ID, BusinessType: models.BusinessOther, ApprovalStatus: models.ApprovalPending}), ErrDuplicate)

	ok, err := testStore.ResubmitTradeInfo(ctx, &models.TradeInfo{AccountID: account.ID, BusinessType: models.BusinessReseller})
	require.NoError(t, err)
	assert.False(t, ok, "pending applications cannot be resubmitted")

	review := models.TradeReview{ReviewerID: admin.ID, At: time.Now().UTC(), Reason: "blurry"}
	ok, err = testStore.SetTradeStatus(ctx, account.ID, models.ApprovalPending, models.ApprovalRejected, review)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = testStore.SetTradeStatus(ctx, account.ID, models.ApprovalPending, models.ApprovalApproved, review)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = testStore.ResubmitTradeInfo(ctx, &models.TradeInfo{
		AccountID:    account.ID,
		BusinessType: models.BusinessReseller,
		Documents:    []models.TradeDocument{{BlobID: "b2", FileName: "new.png", ContentType: "image/png", SizeBytes: 20}},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := testStore.TradeInfoByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, got.ApprovalStatus)
	assert.Equal(t, models.BusinessReseller, got.BusinessType)
	assert.Nil(t, got.ReviewedBy)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "b2", got.Documents[0].BlobID)

	pending, total, err := testStore.ListTradeInfos(ctx, models.ApprovalPending, 50, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(1))
	assert.NotEmpty(t, pending)
}

func TestResetTicketSingleUse(t *testing.T) {
	ctx := context.Background()
	account := createAccount(t, models.CustomerRetail)
	now := time.Now().UTC()

	ticket := &models.PasswordResetTicket{AccountID: account.ID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(10 * time.Minute)}
	require.NoError(t, testStore.CreateResetTicket(ctx, ticket))

	ok, err := testStore.ConsumeResetTicket(ctx, ticket.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = testStore.ConsumeResetTicket(ctx, ticket.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	expired := &models.PasswordResetTicket{AccountID: account.ID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(-time.Second)}
	require.NoError(t, testStore.CreateResetTicket(ctx, expired))
	ok, err = testStore.ConsumeResetTicket(ctx, expired.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddressesAndProfile(t *testing.T) {
	ctx := context.Background()
	account := createAccount(t, models.CustomerRetail)
	addr := models.Address{AddressLine1: "1 Main Rd", City: "Cape Town", Province: models.ProvinceWesternCape, PostalCode: "8001"}

	billing := &models.BillingAddress{AccountID: account.ID, Address: addr, VATNumber: "4123456789"}
	require.NoError(t, testStore.CreateBillingAddress(ctx, billing))
	require.NoError(t, testStore.CreateDeliveryAddress(ctx, &models.DeliveryAddress{AccountID: account.ID, Address: addr}))

	billing.City = "Stellenbosch"
	require.NoError(t, testStore.UpdateBillingAddress(ctx, billing))

	profile, err := testStore.AccountProfile(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, profile.BillingAddresses, 1)
	assert.Equal(t, "Stellenbosch", profile.BillingAddresses[0].City)
	assert.Len(t, profile.DeliveryAddresses, 1)

	n, err := testStore.CountAddresses(ctx, models.AddressBilling, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, testStore.DeleteAddress(ctx, models.AddressBilling, uuid.New(), billing.ID), ErrNotFound)
	assert.NoError(t, testStore.DeleteAddress(ctx, models.AddressBilling, account.ID, billing.ID))
}
