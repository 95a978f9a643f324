package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/ratelimit"
	"github.com/Aklabu/e-commerce/internal/testutil/memstore"
)

const (
	testSecret   = "test-secret"
	testPassword = "Corr3ct-Horse-Battery"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentNotification struct {
	Template  string
	Recipient string
	Data      map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Send(_ context.Context, templateID, recipient string, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Template: templateID, Recipient: recipient, Data: data})
	return nil
}

func (n *recordingNotifier) count(templateID, recipient string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.Template == templateID && s.Recipient == recipient {
			c++
		}
	}
	return c
}

// lastCode returns the code carried by the most recent notification.
func (n *recordingNotifier) lastCode(t *testing.T, templateID, recipient string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		s := n.sent[i]
		if s.Template == templateID && s.Recipient == recipient {
			code, ok := s.Data["code"].(string)
			require.True(t, ok)
			return code
		}
	}
	t.Fatalf("no %s notification sent to %s", templateID, recipient)
	return ""
}

type memBlobs struct {
	mu    sync.Mutex
	data  map[string][]byte
	n     int
	fails bool
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: map[string][]byte{}}
}

func (b *memBlobs) Put(_ context.Context, data []byte, ext string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fails {
		return "", fmt.Errorf("disk full")
	}
	b.n++
	id := fmt.Sprintf("blob-%d%s", b.n, ext)
	b.data[id] = append([]byte(nil), data...)
	return id, nil
}

func (b *memBlobs) Get(_ context.Context, id string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.data[id]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", id)
	}
	return data, nil
}

func (b *memBlobs) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, id)
	return nil
}

func (b *memBlobs) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []TradeApplicationAlert
}

func (a *recordingAlerter) NotifyTradeApplication(_ context.Context, alert TradeApplicationAlert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return nil
}

type testEnv struct {
	store    *memstore.Store
	clock    *fakeClock
	notifier *recordingNotifier
	blobs    *memBlobs
	alerts   *recordingAlerter

	otp     *OTPEngine
	tokens  *TokenService
	reg     *RegistrationService
	auth    *AuthService
	reset   *PasswordResetService
	trade   *TradeGate
	profile *ProfileService
	admin   *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	e := &testEnv{
		store:    memstore.New(),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
		blobs:    newMemBlobs(),
		alerts:   &recordingAlerter{},
	}
	clock := Clock(e.clock.Now)

	e.otp = NewOTPEngine(e.store, ratelimit.NewMemoryCooldown(e.clock.Now), clock, OTPOptions{HashCost: bcrypt.MinCost})
	e.tokens = NewTokenService(e.store, testSecret, clock)
	e.reg = NewRegistrationService(e.store, e.otp, e.blobs, e.notifier, e.alerts, clock,
		RegistrationOptions{AllowTradeResubmit: true})

	auth, err := NewAuthService(e.store, e.tokens, e.notifier, clock)
	require.NoError(t, err)
	e.auth = auth

	e.reset = NewPasswordResetService(e.store, e.otp, e.notifier, clock)
	e.trade = NewTradeGate(e.store, e.blobs, e.notifier, clock)
	e.profile = NewProfileService(e.store)
	e.admin = NewAdminService(e.store, clock)
	return e
}

func testAddress() models.Address {
	return models.Address{
		AddressLine1: "12 Long Street",
		City:         "Cape Town",
		Province:     models.ProvinceWesternCape,
		PostalCode:   "8001",
	}
}

func pdfBytes() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
}

func pngBytes() []byte {
	return []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
}

func (e *testEnv) register(t *testing.T, email string, ct models.CustomerType) *models.Account {
	t.Helper()
	account, err := e.reg.Register(context.Background(), RegisterInput{
		Email:        email,
		Password:     testPassword,
		FirstName:    "Thandi",
		LastName:     "Mokoena",
		PhoneNumber:  "+27821234567",
		CustomerType: ct,
	})
	require.NoError(t, err)
	return account
}

// addressesDone registers an account and completes both address steps.
func (e *testEnv) addressesDone(t *testing.T, email string, ct models.CustomerType) *models.Account {
	t.Helper()
	ctx := context.Background()
	account := e.register(t, email, ct)
	_, err := e.reg.Advance(ctx, account.ID, BillingInput{Address: testAddress()})
	require.NoError(t, err)
	_, err = e.reg.Advance(ctx, account.ID, DeliveryInput{Address: testAddress()})
	require.NoError(t, err)
	return account
}

// verifiedRetail returns a Retail account that can sign in.
func (e *testEnv) verifiedRetail(t *testing.T, email string) *models.Account {
	t.Helper()
	e.addressesDone(t, email, models.CustomerRetail)
	account, err := e.reg.CompleteVerification(context.Background(), email,
		e.notifier.lastCode(t, TemplateVerificationCode, email))
	require.NoError(t, err)
	return account
}

// verifiedTrade returns a verified Trade account whose application is pending.
func (e *testEnv) verifiedTrade(t *testing.T, email string) *models.Account {
	t.Helper()
	account := e.addressesDone(t, email, models.CustomerTrade)
	_, err := e.reg.Advance(context.Background(), account.ID, TradeInput{
		BusinessType: models.BusinessElectrician,
		Documents:    []DocumentUpload{{FileName: "cipc.pdf", Data: pdfBytes()}},
	})
	require.NoError(t, err)
	account, err = e.reg.CompleteVerification(context.Background(), email,
		e.notifier.lastCode(t, TemplateVerificationCode, email))
	require.NoError(t, err)
	return account
}

// staff creates an active staff account directly in the store.
func (e *testEnv) staff(t *testing.T, email string) *models.Account {
	t.Helper()
	account := &models.Account{
		Email:         email,
		PasswordHash:  "x",
		CustomerType:  models.CustomerRetail,
		Stage:         models.StageEmailVerified,
		EmailVerified: true,
		IsActive:      true,
		IsStaff:       true,
	}
	require.NoError(t, e.store.CreateAccount(context.Background(), account))
	return account
}
