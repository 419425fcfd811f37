// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// Service provides registration, authentication, and password reset.
//
// Validation and business-rule failures are reported as false/nil results;
// returned errors always mean an infrastructure failure (store unreachable,
// malformed stored digest) that the caller must not fold into "invalid
// credentials".
type Service struct {
	creds  CredentialRepository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewService creates a new Service with the default logger.
func NewService(creds CredentialRepository, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(creds, hasher, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(creds CredentialRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if creds == nil {
		return nil, oops.Errorf("credential repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{creds: creds, hasher: hasher, logger: logger}, nil
}

// Register creates a new credential for the username.
//
// Returns (false, nil) when the username or password is blank, or when the
// username is already taken. Uniqueness is enforced atomically by the
// repository, so a concurrent duplicate registration loses cleanly instead
// of racing a check-then-insert.
func (s *Service) Register(ctx context.Context, username, password string) (bool, error) {
	if isBlank(username) || isBlank(password) {
		s.logger.Warn("registration rejected: blank username or password")
		return false, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	cred, err := NewCredential(username, hash)
	if err != nil {
		return false, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "build credential").
			Wrap(err)
	}

	if err := s.creds.InsertIfAbsent(ctx, cred); err != nil {
		if errors.Is(err, ErrDuplicate) {
			s.logger.Warn("registration rejected: username already exists", "username", username)
			return false, nil
		}
		return false, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "insert credential").
			With("username", username).
			Wrap(err)
	}

	s.logger.Info("user registered", "username", username)
	return true, nil
}

// Authenticate verifies a username/password pair.
//
// Returns (nil, nil) when either input is blank, the username is unknown, or
// the password does not match — the three cases are indistinguishable to the
// caller so a probe cannot learn whether a username exists. A credential is
// returned only on an exact match.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Credential, error) {
	if isBlank(username) || isBlank(password) {
		s.logger.Warn("authentication rejected: blank username or password")
		return nil, nil
	}

	cred, lookupErr := s.creds.GetByUsername(ctx, username)

	var targetHash string
	found := false
	switch {
	case lookupErr == nil:
		found = true
		targetHash = cred.PasswordHash
	case errors.Is(lookupErr, ErrNotFound):
		// The dummy comes from the hasher so it is well-formed for the
		// configured digest format and verification runs in full instead
		// of failing an early parse check.
		targetHash = s.hasher.DummyDigest()
	default:
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get credential by username").
			Wrap(lookupErr)
	}

	// Verify even when the username is unknown to keep response time even.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !found {
			return nil, nil
		}
		return nil, oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !found || !valid {
		s.logger.Warn("authentication failed", "username", username)
		return nil, nil
	}

	s.maybeUpgradeHash(ctx, cred, password)

	s.logger.Info("user authenticated", "username", username)
	return cred, nil
}

// ResetPassword overwrites the stored hash for an existing credential.
//
// Returns (false, nil) when either input is blank or no credential exists
// for the username.
func (s *Service) ResetPassword(ctx context.Context, username, newPassword string) (bool, error) {
	if isBlank(username) || isBlank(newPassword) {
		s.logger.Warn("password reset rejected: blank username or password")
		return false, nil
	}

	cred, err := s.creds.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("password reset failed: user not found", "username", username)
			return false, nil
		}
		return false, oops.Code("AUTH_RESET_FAILED").
			With("operation", "get credential by username").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return false, oops.Code("AUTH_RESET_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	if err := s.creds.UpdatePassword(ctx, cred.ID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("password reset failed: user not found", "username", username)
			return false, nil
		}
		return false, oops.Code("AUTH_RESET_FAILED").
			With("operation", "update password").
			With("username", username).
			Wrap(err)
	}

	s.logger.Info("password reset", "username", username)
	return true, nil
}

// maybeUpgradeHash transparently rewrites the stored digest when the
// configured hasher produces a stronger format (e.g. the deployment moved
// from sha256 to argon2id). Best effort: authentication succeeds regardless.
func (s *Service) maybeUpgradeHash(ctx context.Context, cred *Credential, password string) {
	if !s.hasher.NeedsUpgrade(cred.PasswordHash) {
		return
	}
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		return
	}
	if err := s.creds.UpdatePassword(ctx, cred.ID, newHash); err != nil {
		s.logger.Warn("hash upgrade failed", "username", cred.Username, "error", err)
		return
	}
	cred.PasswordHash = newHash
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
