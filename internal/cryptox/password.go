package cryptox

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt cost used for role password hashes.
const DefaultPasswordCost = 10

// HashPassword returns the bcrypt hash of password at the given cost.
// A cost outside bcrypt's range falls back to DefaultPasswordCost.
func HashPassword(password []byte, cost int) (string, error) {
	if len(password) == 0 {
		return "", errors.New("empty password")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	h, err := bcrypt.GenerateFromPassword(password, cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// ComparePassword reports whether password matches hash. Surrounding
// whitespace in hash is ignored since hashes usually come from env files.
// Empty inputs and malformed hashes never match.
func ComparePassword(hash string, password []byte) bool {
	hash = strings.TrimSpace(hash)
	if hash == "" || len(password) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), password) == nil
}
