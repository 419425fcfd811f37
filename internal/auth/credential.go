// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Credential represents one registered identity.
//
// Username is unique and case-sensitive, and immutable after creation.
// PasswordHash is only ever written by Service.Register and
// Service.ResetPassword.
type Credential struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewCredential creates a validated Credential with a fresh ID.
func NewCredential(username, passwordHash string) (*Credential, error) {
	if strings.TrimSpace(username) == "" {
		return nil, oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be blank")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &Credential{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CredentialRepository manages credential persistence.
//
// Username uniqueness is enforced by the store, not by callers: InsertIfAbsent
// is atomic, so two concurrent registrations for the same username cannot both
// succeed.
type CredentialRepository interface {
	// InsertIfAbsent stores a new credential. Returns ErrDuplicate if a
	// credential with the same username already exists.
	InsertIfAbsent(ctx context.Context, cred *Credential) error

	// GetByID retrieves a credential by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*Credential, error)

	// GetByUsername retrieves a credential by exact username match.
	// Returns ErrNotFound if absent.
	GetByUsername(ctx context.Context, username string) (*Credential, error)

	// UpdatePassword overwrites the password hash for an existing credential.
	// Returns ErrNotFound if no credential has the given ID.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
