// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

// Package postgres implements the contacts repository over PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/contacts"
)

// DB is the subset of pgxpool.Pool the repository uses. Satisfied by
// *pgxpool.Pool and by pgxmock.PgxPoolIface in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ContactRepository implements contacts.Repository using PostgreSQL.
type ContactRepository struct {
	db DB
}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository(db DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Insert stores a new contact.
func (r *ContactRepository) Insert(ctx context.Context, contact *contacts.Contact) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO contacts (id, owner_id, name, email, phone, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		contact.ID.String(),
		contact.OwnerID.String(),
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.Notes,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		return oops.Code("CONTACT_INSERT_FAILED").
			With("operation", "insert contact").
			With("contact_id", contact.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a contact scoped to its owner.
func (r *ContactRepository) GetByID(ctx context.Context, ownerID, id ulid.ULID) (*contacts.Contact, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, owner_id, name, email, phone, notes, created_at, updated_at
		FROM contacts
		WHERE id = $1 AND owner_id = $2
	`, id.String(), ownerID.String())

	contact, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CONTACT_NOT_FOUND").
			With("contact_id", id.String()).
			Wrap(contacts.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CONTACT_GET_FAILED").
			With("operation", "get contact by id").
			With("contact_id", id.String()).
			Wrap(err)
	}
	return contact, nil
}

// ListByOwner returns the owner's contacts ordered by name, optionally
// filtered to names containing search (case-sensitive, matching the
// original substring behavior).
func (r *ContactRepository) ListByOwner(ctx context.Context, ownerID ulid.ULID, search string) ([]*contacts.Contact, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if search == "" {
		rows, err = r.db.Query(ctx, `
			SELECT id, owner_id, name, email, phone, notes, created_at, updated_at
			FROM contacts
			WHERE owner_id = $1
			ORDER BY name
		`, ownerID.String())
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT id, owner_id, name, email, phone, notes, created_at, updated_at
			FROM contacts
			WHERE owner_id = $1 AND POSITION($2 IN name) > 0
			ORDER BY name
		`, ownerID.String(), search)
	}
	if err != nil {
		return nil, oops.Code("CONTACT_LIST_FAILED").
			With("operation", "list contacts").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var out []*contacts.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, oops.Code("CONTACT_SCAN_FAILED").
				With("operation", "scan contact row").
				Wrap(err)
		}
		out = append(out, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CONTACT_LIST_FAILED").
			With("operation", "iterate contact rows").
			Wrap(err)
	}
	return out, nil
}

// Update overwrites an existing contact, scoped to its owner.
func (r *ContactRepository) Update(ctx context.Context, contact *contacts.Contact) error {
	result, err := r.db.Exec(ctx, `
		UPDATE contacts SET name = $3, email = $4, phone = $5, notes = $6, updated_at = $7
		WHERE id = $1 AND owner_id = $2
	`,
		contact.ID.String(),
		contact.OwnerID.String(),
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.Notes,
		contact.UpdatedAt,
	)
	if err != nil {
		return oops.Code("CONTACT_UPDATE_FAILED").
			With("operation", "update contact").
			With("contact_id", contact.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CONTACT_NOT_FOUND").
			With("contact_id", contact.ID.String()).
			Wrap(contacts.ErrNotFound)
	}
	return nil
}

// Delete removes a contact, scoped to its owner.
func (r *ContactRepository) Delete(ctx context.Context, ownerID, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM contacts WHERE id = $1 AND owner_id = $2
	`, id.String(), ownerID.String())
	if err != nil {
		return oops.Code("CONTACT_DELETE_FAILED").
			With("operation", "delete contact").
			With("contact_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CONTACT_NOT_FOUND").
			With("contact_id", id.String()).
			Wrap(contacts.ErrNotFound)
	}
	return nil
}

// scanContact scans a single row into a Contact.
// Callers are responsible for handling pgx.ErrNoRows.
func scanContact(row pgx.Row) (*contacts.Contact, error) {
	var (
		idStr      string
		ownerIDStr string
		name       string
		email      string
		phone      string
		notes      string
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := row.Scan(&idStr, &ownerIDStr, &name, &email, &phone, &notes, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("CONTACT_SCAN_FAILED").
			With("operation", "scan contact").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("CONTACT_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	ownerID, err := ulid.Parse(ownerIDStr)
	if err != nil {
		return nil, oops.Code("CONTACT_INVALID_OWNER_ID").
			With("owner_id", ownerIDStr).
			Wrap(err)
	}

	return &contacts.Contact{
		ID:        id,
		OwnerID:   ownerID,
		Name:      name,
		Email:     email,
		Phone:     phone,
		Notes:     notes,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// Compile-time interface check.
var _ contacts.Repository = (*ContactRepository)(nil)
