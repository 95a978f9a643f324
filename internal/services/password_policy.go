package services

import (
	"strings"
	"unicode"

	"github.com/Aklabu/e-commerce/internal/apperr"
)

const minPasswordLength = 8

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {}, "12345678": {},
	"123456789": {}, "1234567890": {}, "qwerty123": {}, "qwertyuiop": {}, "iloveyou": {},
	"sunshine": {}, "princess": {}, "football": {}, "baseball": {}, "welcome1": {},
	"admin123": {}, "letmein1": {}, "trustno1": {}, "superman": {}, "11111111": {},
	"abc12345": {}, "monkey123": {}, "dragon123": {}, "starwars": {}, "whatever": {},
	"changeme": {}, "computer": {}, "michelle": {}, "1q2w3e4r": {}, "zaq12wsx": {},
}

// CheckPasswordStrength applies the storefront password rules. The email and
// names are used to reject passwords that merely repeat the user's identity.
func CheckPasswordStrength(password, email string, names ...string) error {
	var reasons []string

	if len(password) < minPasswordLength {
		reasons = append(reasons, "This password is too short. It must contain at least 8 characters.")
	}
	if isAllDigits(password) {
		reasons = append(reasons, "This password is entirely numeric.")
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		reasons = append(reasons, "This password is too common.")
	}
	if tooSimilar(password, email, names...) {
		reasons = append(reasons, "The password is too similar to your personal information.")
	}

	if len(reasons) == 0 {
		return nil
	}
	return apperr.New(apperr.KindWeakPassword, reasons[0]).With("reasons", reasons)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func tooSimilar(password, email string, names ...string) bool {
	pw := strings.ToLower(password)
	candidates := append([]string{}, names...)
	if local, _, ok := strings.Cut(strings.ToLower(email), "@"); ok {
		candidates = append(candidates, local)
	}
	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if len(c) < 4 {
			continue
		}
		if pw == c || (strings.Contains(pw, c) && len(c)*10 >= len(pw)*7) {
			return true
		}
	}
	return false
}
