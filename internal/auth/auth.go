// Package auth wraps bcrypt for password storage. Sessions themselves live
// in the store; this package only deals in hashes.
package auth

import "golang.org/x/crypto/bcrypt"

const hashCost = 14

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	return string(bytes), err
}

// CheckPasswordHash reports whether the plaintext password matches a stored
// bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
