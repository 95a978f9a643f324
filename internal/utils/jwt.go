package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "storefront-accounts"

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	AccountID    string `json:"account_id"`
	Email        string `json:"email"`
	CustomerType string `json:"customer_type"`
	Staff        bool   `json:"staff,omitempty"`
	jwt.RegisteredClaims
}

// AccountUUID returns the account ID carried by the claims.
func (c *AccessClaims) AccountUUID() (uuid.UUID, error) {
	return uuid.Parse(c.AccountID)
}

// GenerateAccessToken signs claims with HS256, stamping issue and expiry times.
func GenerateAccessToken(secret string, claims AccessClaims, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   claims.AccountID,
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString([]byte(secret))
}

var ErrExpiredToken = errors.New("token expired")

// ParseAccessToken validates the token against now and returns its claims.
func ParseAccessToken(secret, tokenString string, now time.Time) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, err
	}

	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if _, err := claims.AccountUUID(); err != nil {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
