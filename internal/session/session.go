// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

// Package session issues and resolves bearer tokens for authenticated
// users. Sessions live in the cache under a hash of the token, so a leaked
// cache dump never exposes usable tokens, and every resolution slides the
// idle-expiry window forward.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/auth"
	"github.com/contactdir/contactdir/internal/cache"
)

// TokenBytes is the size of the random session token. 32 bytes = 64 hex chars.
const TokenBytes = 32

// keyPrefix namespaces session entries within the cache keyspace.
const keyPrefix = "session:"

// Principal identifies the logged-in user a session resolves to.
type Principal struct {
	UserID   ulid.ULID `json:"user_id"`
	Username string    `json:"username"`
}

// Manager issues, resolves, and revokes sessions.
type Manager struct {
	auth   *auth.Service
	cache  *cache.Client
	logger *slog.Logger
}

// NewManager creates a Manager with the default logger.
func NewManager(authSvc *auth.Service, cacheClient *cache.Client) (*Manager, error) {
	return NewManagerWithLogger(authSvc, cacheClient, slog.Default())
}

// NewManagerWithLogger creates a Manager with an explicit logger.
func NewManagerWithLogger(authSvc *auth.Service, cacheClient *cache.Client, logger *slog.Logger) (*Manager, error) {
	if authSvc == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if cacheClient == nil {
		return nil, oops.Errorf("cache client is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Manager{auth: authSvc, cache: cacheClient, logger: logger}, nil
}

// GenerateToken creates a secure random token and its hash.
// The plaintext token goes to the client; only the hash keys the cache.
func GenerateToken() (token, hash string, err error) {
	tokenBytes := make([]byte, TokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	token = hex.EncodeToString(tokenBytes)
	return token, HashToken(token), nil
}

// HashToken computes the SHA256 hash of a session token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Login authenticates the user and, on success, issues a session token.
// Invalid credentials return ("", nil, nil); wrong password and unknown
// username are indistinguishable to the caller.
func (m *Manager) Login(ctx context.Context, username, password string) (string, *Principal, error) {
	cred, err := m.auth.Authenticate(ctx, username, password)
	if err != nil {
		return "", nil, oops.Code("SESSION_LOGIN_FAILED").Wrap(err)
	}
	if cred == nil {
		return "", nil, nil
	}

	token, hash, err := GenerateToken()
	if err != nil {
		return "", nil, err
	}

	principal := &Principal{UserID: cred.ID, Username: cred.Username}
	if err := cache.Store(ctx, m.cache, keyPrefix+hash, principal); err != nil {
		return "", nil, oops.Code("SESSION_STORE_FAILED").
			With("username", cred.Username).
			Wrap(err)
	}

	m.logger.Info("session created", "user_id", cred.ID.String(), "username", cred.Username)
	return token, principal, nil
}

// Current resolves a bearer token to its Principal. Resolving a live
// session slides its idle-expiry window forward. Returns found=false for
// unknown or expired tokens.
func (m *Manager) Current(ctx context.Context, token string) (*Principal, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	principal, found, err := cache.Retrieve[Principal](ctx, m.cache, keyPrefix+HashToken(token))
	if err != nil {
		return nil, false, oops.Code("SESSION_RESOLVE_FAILED").Wrap(err)
	}
	if !found {
		return nil, false, nil
	}
	return &principal, true, nil
}

// Logout revokes a session. Revoking an unknown or already-expired token
// is not an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.cache.Delete(ctx, keyPrefix+HashToken(token)); err != nil {
		return oops.Code("SESSION_LOGOUT_FAILED").Wrap(err)
	}
	return nil
}

// RevokeAll invalidates every live session and returns the count revoked.
func (m *Manager) RevokeAll(ctx context.Context) (int, error) {
	n, err := m.cache.DeleteMatching(ctx, keyPrefix+"*")
	if err != nil {
		return n, oops.Code("SESSION_REVOKE_ALL_FAILED").Wrap(err)
	}
	m.logger.Info("all sessions revoked", "count", n)
	return n, nil
}
