// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/contacts"
)

type contactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

type contactResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toContactResponse(c *contacts.Contact) contactResponse {
	return contactResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// writeContactError maps validation codes to 400 and anything else to 500.
func (s *Server) writeContactError(w http.ResponseWriter, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case "CONTACT_INVALID_NAME", "CONTACT_INVALID_EMAIL", "CONTACT_INVALID_OWNER":
			s.writeError(w, http.StatusBadRequest, oopsErr.Code().(string), oopsErr.Error())
			return
		}
	}
	s.serverError(w, "contact operation failed", err)
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	principal := currentPrincipal(r)
	search := r.URL.Query().Get("search")

	list, err := s.contacts.List(r.Context(), principal.UserID, search)
	if err != nil {
		s.serverError(w, "listing contacts failed", err)
		return
	}

	out := make([]contactResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toContactResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddContact(w http.ResponseWriter, r *http.Request) {
	principal := currentPrincipal(r)

	var req contactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	contact, err := s.contacts.Add(r.Context(), principal.UserID, req.Name, req.Email, req.Phone, req.Notes)
	if err != nil {
		s.writeContactError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContactResponse(contact))
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	principal := currentPrincipal(r)

	id, err := ulid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "CONTACT_INVALID_ID", "malformed contact ID")
		return
	}

	contact, err := s.contacts.Get(r.Context(), principal.UserID, id)
	if err != nil {
		if errors.Is(err, contacts.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "CONTACT_NOT_FOUND", "no such contact")
			return
		}
		s.serverError(w, "fetching contact failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	principal := currentPrincipal(r)

	id, err := ulid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "CONTACT_INVALID_ID", "malformed contact ID")
		return
	}

	var req contactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	existing, err := s.contacts.Get(r.Context(), principal.UserID, id)
	if err != nil {
		if errors.Is(err, contacts.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "CONTACT_NOT_FOUND", "no such contact")
			return
		}
		s.serverError(w, "fetching contact failed", err)
		return
	}

	existing.Name = req.Name
	existing.Email = req.Email
	existing.Phone = req.Phone
	existing.Notes = req.Notes

	if err := s.contacts.Update(r.Context(), existing); err != nil {
		if errors.Is(err, contacts.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "CONTACT_NOT_FOUND", "no such contact")
			return
		}
		s.writeContactError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContactResponse(existing))
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	principal := currentPrincipal(r)

	id, err := ulid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "CONTACT_INVALID_ID", "malformed contact ID")
		return
	}

	if err := s.contacts.Delete(r.Context(), principal.UserID, id); err != nil {
		s.serverError(w, "deleting contact failed", err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
