// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package contacts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service provides owner-scoped contact CRUD.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new Service with the default logger.
func NewService(repo Repository) (*Service, error) {
	return NewServiceWithLogger(repo, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(repo Repository, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, oops.Errorf("contact repository is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{repo: repo, logger: logger}, nil
}

// List returns the owner's contacts, optionally filtered to names
// containing search.
func (s *Service) List(ctx context.Context, ownerID ulid.ULID, search string) ([]*Contact, error) {
	contacts, err := s.repo.ListByOwner(ctx, ownerID, search)
	if err != nil {
		return nil, oops.Code("CONTACT_LIST_FAILED").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	return contacts, nil
}

// Add validates and stores a new contact for the owner.
func (s *Service) Add(ctx context.Context, ownerID ulid.ULID, name, email, phone, notes string) (*Contact, error) {
	contact, err := NewContact(ownerID, name, email, phone, notes)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, contact); err != nil {
		return nil, oops.Code("CONTACT_ADD_FAILED").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	s.logger.Info("contact created", "owner_id", ownerID.String(), "contact_id", contact.ID.String())
	return contact, nil
}

// Get retrieves one of the owner's contacts.
func (s *Service) Get(ctx context.Context, ownerID, id ulid.ULID) (*Contact, error) {
	contact, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err //nolint:wrapcheck // sentinel passes through for callers to branch on
		}
		return nil, oops.Code("CONTACT_GET_FAILED").
			With("contact_id", id.String()).
			Wrap(err)
	}
	return contact, nil
}

// Update overwrites an existing contact. The contact's OwnerID scopes the
// write; another user's contact surfaces as ErrNotFound.
func (s *Service) Update(ctx context.Context, contact *Contact) error {
	if err := contact.Validate(); err != nil {
		return err
	}
	contact.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, contact); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err //nolint:wrapcheck // sentinel passes through for callers to branch on
		}
		return oops.Code("CONTACT_UPDATE_FAILED").
			With("contact_id", contact.ID.String()).
			Wrap(err)
	}
	s.logger.Info("contact updated", "owner_id", contact.OwnerID.String(), "contact_id", contact.ID.String())
	return nil
}

// Delete removes one of the owner's contacts. Deleting a contact that is
// already gone is not an error.
func (s *Service) Delete(ctx context.Context, ownerID, id ulid.ULID) error {
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("CONTACT_DELETE_FAILED").
			With("contact_id", id.String()).
			Wrap(err)
	}
	s.logger.Info("contact deleted", "owner_id", ownerID.String(), "contact_id", id.String())
	return nil
}
