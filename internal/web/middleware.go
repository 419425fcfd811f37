// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/contactdir/contactdir/internal/session"
)

type contextKey string

const principalKey contextKey = "principal"

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// requireSession resolves the bearer token and stores the Principal in the
// request context. Requests without a live session get a 401.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token")
			return
		}

		principal, found, err := s.sessions.Current(r.Context(), token)
		if err != nil {
			s.serverError(w, "session lookup failed", err)
			return
		}
		if !found {
			s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next(w, r.WithContext(ctx))
	}
}

// currentPrincipal returns the Principal requireSession stored.
func currentPrincipal(r *http.Request) *session.Principal {
	principal, _ := r.Context().Value(principalKey).(*session.Principal)
	return principal
}
