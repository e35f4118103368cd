package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost of 8 keeps PIN verification fast on small nodes; showroom
// tablets log in many times a day. Every attempt lands in login_logs either
// way.
const bcryptCost = 8

// ValidatePIN checks the PIN format: 4 to 6 digits.
func ValidatePIN(pin string) error {
	if len(pin) < 4 || len(pin) > 6 {
		return errors.New("PIN must be 4-6 digits")
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return errors.New("PIN must contain only digits")
		}
	}
	return nil
}

// HashPIN generates a bcrypt hash of the PIN
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPIN checks if the provided PIN matches the hash
func VerifyPIN(hashedPIN, pin string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPIN), []byte(pin))
	return err == nil
}
