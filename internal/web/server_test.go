// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactdir/contactdir/internal/auth"
	"github.com/contactdir/contactdir/internal/cache"
	"github.com/contactdir/contactdir/internal/contacts"
	"github.com/contactdir/contactdir/internal/session"
	"github.com/contactdir/contactdir/internal/web"
)

// In-memory collaborators. The API tests exercise the full stack below the
// HTTP layer; only Postgres and Redis are replaced.

type memEngine struct {
	mu    sync.Mutex
	items map[string]string
}

func newMemEngine() *memEngine {
	return &memEngine{items: make(map[string]string)}
}

func (e *memEngine) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		e.items[key] = string(v)
	case string:
		e.items[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (e *memEngine) GetEx(_ context.Context, key string, _ time.Duration) *redis.StringCmd {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.items[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (e *memEngine) Del(_ context.Context, keys ...string) *redis.IntCmd {
	e.mu.Lock()
	defer e.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := e.items[k]; ok {
			delete(e.items, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (e *memEngine) Scan(_ context.Context, _ uint64, _ string, _ int64) *redis.ScanCmd {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.items))
	for k := range e.items {
		keys = append(keys, k)
	}
	return redis.NewScanCmdResult(keys, 0, nil)
}

func (e *memEngine) Ping(_ context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

type memCreds struct {
	mu    sync.Mutex
	creds map[string]*auth.Credential
}

func newMemCreds() *memCreds {
	return &memCreds{creds: make(map[string]*auth.Credential)}
}

func (r *memCreds) InsertIfAbsent(_ context.Context, cred *auth.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.creds[cred.Username]; ok {
		return auth.ErrDuplicate
	}
	cp := *cred
	r.creds[cred.Username] = &cp
	return nil
}

func (r *memCreds) GetByID(_ context.Context, id ulid.ULID) (*auth.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *memCreds) GetByUsername(_ context.Context, username string) (*auth.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCreds) UpdatePassword(_ context.Context, id ulid.ULID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.ID == id {
			c.PasswordHash = hash
			return nil
		}
	}
	return auth.ErrNotFound
}

type memContacts struct {
	mu    sync.Mutex
	items map[ulid.ULID]*contacts.Contact
}

func newMemContacts() *memContacts {
	return &memContacts{items: make(map[ulid.ULID]*contacts.Contact)}
}

func (r *memContacts) Insert(_ context.Context, c *contacts.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *memContacts) GetByID(_ context.Context, ownerID, id ulid.ULID) (*contacts.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok || c.OwnerID != ownerID {
		return nil, contacts.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memContacts) ListByOwner(_ context.Context, ownerID ulid.ULID, search string) ([]*contacts.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*contacts.Contact
	for _, c := range r.items {
		if c.OwnerID != ownerID {
			continue
		}
		if search != "" && !strings.Contains(c.Name, search) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memContacts) Update(_ context.Context, c *contacts.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[c.ID]
	if !ok || existing.OwnerID != c.OwnerID {
		return contacts.ErrNotFound
	}
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *memContacts) Delete(_ context.Context, ownerID, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok || c.OwnerID != ownerID {
		return contacts.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	authSvc, err := auth.NewService(newMemCreds(), &auth.SHA256Hasher{})
	require.NoError(t, err)

	contactSvc, err := contacts.NewService(newMemContacts())
	require.NoError(t, err)

	cacheClient := cache.New(newMemEngine(), cache.Options{Prefix: "contactdir:"})

	sessions, err := session.NewManager(authSvc, cacheClient)
	require.NoError(t, err)

	srv, err := web.NewServer(":0", web.Deps{
		Auth:     authSvc,
		Contacts: contactSvc,
		Sessions: sessions,
		Cache:    cacheClient,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// doJSON issues a request and decodes the response body into out (if non-nil).
func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body, out any) *http.Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, reqBody)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func register(t *testing.T, ts *httptest.Server, username, password string) {
	t.Helper()
	resp := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":         username,
		"password":         password,
		"confirm_password": password,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func login(t *testing.T, ts *httptest.Server, username, password string) string {
	t.Helper()
	var body struct {
		Token string `json:"token"`
	}
	resp := doJSON(t, ts, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	t.Run("creates account", func(t *testing.T) {
		register(t, ts, "alice", "Password1")
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username":         "alice",
			"password":         "Other1234",
			"confirm_password": "Other1234",
		}, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("weak password rejected", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username":         "bob",
			"password":         "short1",
			"confirm_password": "short1",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("password mismatch rejected", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username":         "bob",
			"password":         "Password1",
			"confirm_password": "Password2",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("blank username rejected", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username":         "   ",
			"password":         "Password1",
			"confirm_password": "Password1",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLoginAndSession(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice", "Password1")

	t.Run("wrong password unauthorized", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "alice",
			"password": "Wrong1234",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown user gets same response as wrong password", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "nobody",
			"password": "Password1",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	token := login(t, ts, "alice", "Password1")

	t.Run("me returns the principal", func(t *testing.T) {
		var me struct {
			Username string `json:"username"`
		}
		resp := doJSON(t, ts, http.MethodGet, "/api/auth/me", token, nil, &me)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "alice", me.Username)
	})

	t.Run("me without token unauthorized", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodGet, "/api/auth/me", "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/auth/logout", token, nil, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = doJSON(t, ts, http.MethodGet, "/api/auth/me", token, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestResetPassword(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice", "Password1")

	t.Run("unknown user not found", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
			"username":         "nobody",
			"new_password":     "NewPass123",
			"confirm_password": "NewPass123",
		}, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("reset changes the password", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
			"username":         "alice",
			"new_password":     "NewPass123",
			"confirm_password": "NewPass123",
		}, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = doJSON(t, ts, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "alice",
			"password": "Password1",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "old password must stop working")

		login(t, ts, "alice", "NewPass123")
	})
}

func TestContactsAPI(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice", "Password1")
	token := login(t, ts, "alice", "Password1")

	var created struct {
		ID string `json:"id"`
	}
	resp := doJSON(t, ts, http.MethodPost, "/api/contacts", token, map[string]string{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
		"phone": "555-0100",
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, created.ID)

	resp = doJSON(t, ts, http.MethodPost, "/api/contacts", token, map[string]string{
		"name": "Grace Hopper",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("list returns both", func(t *testing.T) {
		var list []map[string]any
		resp := doJSON(t, ts, http.MethodGet, "/api/contacts", token, nil, &list)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, list, 2)
	})

	t.Run("search filters by name", func(t *testing.T) {
		var list []map[string]any
		resp := doJSON(t, ts, http.MethodGet, "/api/contacts?search=Grace", token, nil, &list)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, list, 1)
		assert.Equal(t, "Grace Hopper", list[0]["name"])
	})

	t.Run("get by id", func(t *testing.T) {
		var contact map[string]any
		resp := doJSON(t, ts, http.MethodGet, "/api/contacts/"+created.ID, token, nil, &contact)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Ada Lovelace", contact["name"])
	})

	t.Run("malformed id is a bad request", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodGet, "/api/contacts/not-a-ulid", token, nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("update overwrites fields", func(t *testing.T) {
		var updated map[string]any
		resp := doJSON(t, ts, http.MethodPut, "/api/contacts/"+created.ID, token, map[string]string{
			"name":  "Ada Lovelace",
			"phone": "555-0199",
		}, &updated)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "555-0199", updated["phone"])
	})

	t.Run("blank name rejected", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/contacts", token, map[string]string{
			"name": "  ",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid email rejected", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/contacts", token, map[string]string{
			"name":  "Bob",
			"email": "not-an-email",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("another user cannot see the contact", func(t *testing.T) {
		register(t, ts, "mallory", "Password1")
		other := login(t, ts, "mallory", "Password1")

		resp := doJSON(t, ts, http.MethodGet, "/api/contacts/"+created.ID, other, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var list []map[string]any
		resp = doJSON(t, ts, http.MethodGet, "/api/contacts", other, nil, &list)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, list)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodDelete, "/api/contacts/"+created.ID, token, nil, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = doJSON(t, ts, http.MethodDelete, "/api/contacts/"+created.ID, token, nil, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = doJSON(t, ts, http.MethodGet, "/api/contacts/"+created.ID, token, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestCacheAPI(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice", "Password1")
	token := login(t, ts, "alice", "Password1")

	t.Run("round trip", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPut, "/api/cache/greeting", token, map[string]any{
			"value": "hello",
		}, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		var entry struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}
		resp = doJSON(t, ts, http.MethodGet, "/api/cache/greeting", token, nil, &entry)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "greeting", entry.Key)
		assert.JSONEq(t, `"hello"`, string(entry.Value))
	})

	t.Run("missing key is a 404", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodGet, "/api/cache/absent", token, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("entries are isolated per user", func(t *testing.T) {
		register(t, ts, "bob", "Password1")
		other := login(t, ts, "bob", "Password1")

		resp := doJSON(t, ts, http.MethodGet, "/api/cache/greeting", other, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete removes the entry", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodDelete, "/api/cache/greeting", token, nil, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = doJSON(t, ts, http.MethodGet, "/api/cache/greeting", token, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("pattern delete removes matching entries", func(t *testing.T) {
		for _, key := range []string{"pref:a", "pref:b", "other"} {
			resp := doJSON(t, ts, http.MethodPut, "/api/cache/"+key, token, map[string]any{
				"value": 1,
			}, nil)
			require.Equal(t, http.StatusNoContent, resp.StatusCode)
		}

		var result struct {
			Deleted int `json:"deleted"`
		}
		resp := doJSON(t, ts, http.MethodDelete, "/api/cache?pattern=pref:*", token, nil, &result)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 2, result.Deleted)

		resp = doJSON(t, ts, http.MethodGet, "/api/cache/other", token, nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("pattern is required", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodDelete, "/api/cache", token, nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
