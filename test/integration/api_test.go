// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/contactdir/contactdir/internal/auth"
	authpg "github.com/contactdir/contactdir/internal/auth/postgres"
	"github.com/contactdir/contactdir/internal/cache"
	"github.com/contactdir/contactdir/internal/contacts"
	contactspg "github.com/contactdir/contactdir/internal/contacts/postgres"
	"github.com/contactdir/contactdir/internal/session"
	"github.com/contactdir/contactdir/internal/store"
	"github.com/contactdir/contactdir/internal/web"
)

// apiEnv holds the resources backing a running API under test.
type apiEnv struct {
	ctx       context.Context
	pgC       testcontainers.Container
	redisC    testcontainers.Container
	pool      *pgxpool.Pool
	cache     *cache.Client
	sessions  *session.Manager
	server    *httptest.Server
	teardowns []func()
}

func (e *apiEnv) cleanup() {
	for i := len(e.teardowns) - 1; i >= 0; i-- {
		e.teardowns[i]()
	}
}

func setupAPI() (*apiEnv, error) {
	ctx := context.Background()
	env := &apiEnv{ctx: ctx}

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("contactdir_test"),
		postgres.WithUsername("contactdir"),
		postgres.WithPassword("contactdir"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}
	env.pgC = pgC
	env.teardowns = append(env.teardowns, func() { _ = pgC.Terminate(ctx) })

	databaseURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	redisC, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.redisC = redisC
	env.teardowns = append(env.teardowns, func() { _ = redisC.Terminate(ctx) })

	redisAddr, err := redisC.Endpoint(ctx, "")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		env.cleanup()
		return nil, err
	}
	if err := migrator.Close(); err != nil {
		env.cleanup()
		return nil, err
	}

	pool, err := store.Connect(ctx, databaseURL)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.pool = pool
	env.teardowns = append(env.teardowns, pool.Close)

	cacheClient, err := cache.Dial(ctx, cache.Options{
		Addr:   redisAddr,
		Prefix: "contactdir:",
		TTL:    30 * time.Minute,
	})
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.cache = cacheClient

	authSvc, err := auth.NewService(authpg.NewCredentialRepository(pool), auth.NewSHA256Hasher())
	if err != nil {
		env.cleanup()
		return nil, err
	}
	contactSvc, err := contacts.NewService(contactspg.NewContactRepository(pool))
	if err != nil {
		env.cleanup()
		return nil, err
	}
	sessions, err := session.NewManager(authSvc, cacheClient)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.sessions = sessions

	srv, err := web.NewServer("127.0.0.1:0", web.Deps{
		Auth:     authSvc,
		Contacts: contactSvc,
		Sessions: sessions,
		Cache:    cacheClient,
	})
	if err != nil {
		env.cleanup()
		return nil, err
	}

	env.server = httptest.NewServer(srv.Handler())
	env.teardowns = append(env.teardowns, env.server.Close)

	return env, nil
}

// doJSON issues a request with an optional JSON body and bearer token,
// decoding the response body into out when it is non-nil.
func (e *apiEnv) doJSON(method, path, token string, body any, out any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(e.ctx, method, e.server.URL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}
	return resp, nil
}

func (e *apiEnv) register(username, password string) *http.Response {
	resp, err := e.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":         username,
		"password":         password,
		"confirm_password": password,
	}, nil)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func (e *apiEnv) login(username, password string) string {
	var body struct {
		Token string `json:"token"`
	}
	resp, err := e.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &body)
	Expect(err).NotTo(HaveOccurred())
	Expect(resp.StatusCode).To(Equal(http.StatusOK))
	Expect(body.Token).NotTo(BeEmpty())
	return body.Token
}

var _ = Describe("ContactDir API", Ordered, func() {
	var env *apiEnv

	BeforeAll(func() {
		var err error
		env, err = setupAPI()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		env.cleanup()
	})

	Describe("account lifecycle", func() {
		It("registers a new user", func() {
			resp := env.register("alice", "Wonderland1")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		})

		It("rejects a duplicate username", func() {
			resp := env.register("alice", "Different1")
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("rejects wrong credentials", func() {
			resp, err := env.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
				"username": "alice",
				"password": "wrong-password",
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("logs in and resolves the session", func() {
			token := env.login("alice", "Wonderland1")

			var me struct {
				Username string `json:"username"`
			}
			resp, err := env.doJSON(http.MethodGet, "/api/auth/me", token, nil, &me)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(me.Username).To(Equal("alice"))
		})

		It("invalidates the session on logout", func() {
			token := env.login("alice", "Wonderland1")

			resp, err := env.doJSON(http.MethodPost, "/api/auth/logout", token, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, err = env.doJSON(http.MethodGet, "/api/auth/me", token, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("resets a password and accepts only the new one", func() {
			resp, err := env.doJSON(http.MethodPost, "/api/auth/reset-password", "", map[string]string{
				"username":         "alice",
				"new_password":     "Wonderland2",
				"confirm_password": "Wonderland2",
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, err = env.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
				"username": "alice",
				"password": "Wonderland1",
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			env.login("alice", "Wonderland2")
		})
	})

	Describe("contacts", func() {
		var token string

		BeforeAll(func() {
			token = env.login("alice", "Wonderland2")
		})

		It("creates and lists contacts", func() {
			for _, c := range []map[string]string{
				{"name": "Grace Hopper", "email": "grace@example.com", "phone": "555-0100"},
				{"name": "Alan Turing", "email": "alan@example.com"},
			} {
				resp, err := env.doJSON(http.MethodPost, "/api/contacts", token, c, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			}

			var listed []map[string]any
			resp, err := env.doJSON(http.MethodGet, "/api/contacts", token, nil, &listed)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(listed).To(HaveLen(2))
		})

		It("filters by name substring", func() {
			var listed []map[string]any
			resp, err := env.doJSON(http.MethodGet, "/api/contacts?search=Grace", token, nil, &listed)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(listed).To(HaveLen(1))
			Expect(listed[0]["name"]).To(Equal("Grace Hopper"))
		})

		It("updates and deletes a contact", func() {
			var created struct {
				ID string `json:"id"`
			}
			resp, err := env.doJSON(http.MethodPost, "/api/contacts", token,
				map[string]string{"name": "Temp Contact"}, &created)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var updated map[string]any
			resp, err = env.doJSON(http.MethodPut, "/api/contacts/"+created.ID, token,
				map[string]string{"name": "Renamed Contact", "phone": "555-0199"}, &updated)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(updated["name"]).To(Equal("Renamed Contact"))

			resp, err = env.doJSON(http.MethodDelete, "/api/contacts/"+created.ID, token, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, err = env.doJSON(http.MethodGet, "/api/contacts/"+created.ID, token, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("hides contacts from other users", func() {
			resp := env.register("mallory", "Sneaky12345")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			intruderToken := env.login("mallory", "Sneaky12345")

			var listed []map[string]any
			resp, err := env.doJSON(http.MethodGet, "/api/contacts", intruderToken, nil, &listed)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(listed).To(BeEmpty())
		})
	})

	Describe("cache", func() {
		var token string

		BeforeAll(func() {
			token = env.login("alice", "Wonderland2")
		})

		It("round-trips values through Redis", func() {
			resp, err := env.doJSON(http.MethodPut, "/api/cache/greeting", token,
				map[string]any{"value": "hello"}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			var entry struct {
				Key   string          `json:"key"`
				Value json.RawMessage `json:"value"`
			}
			resp, err = env.doJSON(http.MethodGet, "/api/cache/greeting", token, nil, &entry)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(entry.Key).To(Equal("greeting"))
			Expect(string(entry.Value)).To(MatchJSON(`"hello"`))
		})

		It("returns 404 for a missing key", func() {
			resp, err := env.doJSON(http.MethodGet, "/api/cache/absent", token, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("scopes entries per user", func() {
			otherToken := env.login("mallory", "Sneaky12345")

			resp, err := env.doJSON(http.MethodGet, "/api/cache/greeting", otherToken, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("deletes entries by glob pattern", func() {
			for _, key := range []string{"pref:theme", "pref:lang", "other"} {
				resp, err := env.doJSON(http.MethodPut, "/api/cache/"+key, token,
					map[string]any{"value": "x"}, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			}

			var result struct {
				Deleted int `json:"deleted"`
			}
			resp, err := env.doJSON(http.MethodDelete, "/api/cache?pattern=pref:*", token, nil, &result)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(result.Deleted).To(Equal(2))

			resp, err = env.doJSON(http.MethodGet, "/api/cache/other", token, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
