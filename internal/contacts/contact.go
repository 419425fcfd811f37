// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

// Package contacts provides the per-user contact records and their CRUD
// service. Every operation is scoped to an owner; a contact belonging to
// another user is indistinguishable from one that does not exist.
package contacts

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Contact represents one contact record owned by a user.
type Contact struct {
	ID        ulid.ULID
	OwnerID   ulid.ULID
	Name      string
	Email     string
	Phone     string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewContact creates a validated Contact with a fresh ID.
func NewContact(ownerID ulid.ULID, name, email, phone, notes string) (*Contact, error) {
	c := &Contact{
		ID:      ulid.Make(),
		OwnerID: ownerID,
		Name:    name,
		Email:   email,
		Phone:   phone,
		Notes:   notes,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

// Validate checks required fields and the email format.
func (c *Contact) Validate() error {
	if c.OwnerID.Compare(ulid.ULID{}) == 0 {
		return oops.Code("CONTACT_INVALID_OWNER").Errorf("owner ID cannot be zero")
	}
	if strings.TrimSpace(c.Name) == "" {
		return oops.Code("CONTACT_INVALID_NAME").Errorf("name cannot be blank")
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return oops.Code("CONTACT_INVALID_EMAIL").
				With("email", c.Email).
				Wrap(err)
		}
	}
	return nil
}

// Repository manages contact persistence. All lookups and mutations are
// owner-scoped at the query level.
type Repository interface {
	// Insert stores a new contact.
	Insert(ctx context.Context, contact *Contact) error

	// GetByID retrieves a contact owned by ownerID. Returns ErrNotFound
	// if the contact is missing or owned by someone else.
	GetByID(ctx context.Context, ownerID, id ulid.ULID) (*Contact, error)

	// ListByOwner returns all of ownerID's contacts, optionally filtered
	// to names containing search, ordered by name.
	ListByOwner(ctx context.Context, ownerID ulid.ULID, search string) ([]*Contact, error)

	// Update overwrites an existing contact owned by ownerID.
	// Returns ErrNotFound if the contact is missing or owned by someone else.
	Update(ctx context.Context, contact *Contact) error

	// Delete removes a contact owned by ownerID. Returns ErrNotFound if
	// the contact is missing or owned by someone else.
	Delete(ctx context.Context, ownerID, id ulid.ULID) error
}
