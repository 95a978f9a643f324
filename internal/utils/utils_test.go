package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aklabu/e-commerce/internal/apperr"
)

const testSecret = "test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	id := uuid.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	token, err := GenerateAccessToken(testSecret, AccessClaims{
		AccountID:    id.String(),
		Email:        "buyer@example.com",
		CustomerType: "Trade",
	}, now, time.Hour)
	require.NoError(t, err)

	claims, err := ParseAccessToken(testSecret, token, now.Add(59*time.Minute))
	require.NoError(t, err)
	got, err := claims.AccountUUID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, "buyer@example.com", claims.Email)
	assert.Equal(t, "Trade", claims.CustomerType)
	assert.False(t, claims.Staff)
}

func TestAccessTokenExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := GenerateAccessToken(testSecret, AccessClaims{AccountID: uuid.NewString()}, now, time.Hour)
	require.NoError(t, err)

	_, err = ParseAccessToken(testSecret, token, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAccessTokenWrongSecretAndAlg(t *testing.T) {
	now := time.Now()
	token, err := GenerateAccessToken(testSecret, AccessClaims{AccountID: uuid.NewString()}, now, time.Hour)
	require.NoError(t, err)

	_, err = ParseAccessToken("other-secret", token, now)
	assert.Error(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &AccessClaims{
		AccountID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken(testSecret, raw, now)
	assert.Error(t, err)
}

func TestRandomDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := RandomDigits(8)
		require.NoError(t, err)
		assert.Len(t, code, 8)
		assert.Regexp(t, `^\d{8}$`, code)
	}
}

func TestRandomTokenAndHash(t *testing.T) {
	a, err := RandomToken(32)
	require.NoError(t, err)
	b, err := RandomToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	assert.Equal(t, HashToken(a), HashToken(a))
	assert.NotEqual(t, HashToken(a), HashToken(b))
	assert.Len(t, HashToken(a), 64)
}

type sampleRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone_number" validate:"omitempty,phone"`
	Province string `json:"province" validate:"required,province"`
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(&sampleRequest{
		Email:    "a@b.co",
		Phone:    "+27821234567",
		Province: "Gauteng",
	}))

	err := ValidateStruct(&sampleRequest{Email: "nope", Phone: "12", Province: "Bavaria"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	fields, ok := appErr.Details["fields"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "phone_number")
	assert.Contains(t, fields, "province")
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Smith & Sons", CleanText("  <b>Smith</b> & Sons "))
	assert.Equal(t, "", CleanText("<script>alert(1)</script>"))
	assert.Equal(t, "buyer@example.com", NormalizeEmail("  Buyer@Example.COM "))
}
