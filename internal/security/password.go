package security

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// hashCost is lowered by tests that hash many passwords.
var hashCost = bcrypt.DefaultCost

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

// ComparePasswords reports whether password matches hashedPassword.
// An empty hash never matches.
func ComparePasswords(hashedPassword, password string) bool {
	if hashedPassword == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
