package service

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// IsPasswordStrong requires at least 8 characters with a letter, an upper-case letter and a digit.
func IsPasswordStrong(pw string) bool {
	if len([]rune(pw)) < minPasswordLength {
		return false
	}
	var letter, upper, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper, letter = true, true
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && upper && digit
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
