// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package auth

import (
	"unicode"

	"github.com/samber/oops"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// ValidatePassword checks the password strength policy: at least
// MinPasswordLength characters, containing at least one letter and one
// digit.
//
// The Service itself only performs presence validation; strength checking
// is the caller's contract, enforced at the presentation boundary before
// Register or ResetPassword is invoked.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return oops.Code("AUTH_WEAK_PASSWORD").
			Errorf("password must contain both letters and numbers")
	}
	return nil
}

// ValidatePasswordConfirmation checks that the password and its
// confirmation match.
func ValidatePasswordConfirmation(password, confirm string) error {
	if password != confirm {
		return oops.Code("AUTH_PASSWORD_MISMATCH").Errorf("passwords do not match")
	}
	return nil
}
