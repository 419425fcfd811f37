// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/contactdir/contactdir/internal/store"
)

// startPostgres starts a PostgreSQL container and returns its URL.
func startPostgres() (string, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
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
		return "", nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}

	cleanup := func() {
		_ = container.Terminate(ctx)
	}
	return connStr, cleanup, nil
}

var _ = Describe("Migrations", func() {
	var (
		databaseURL string
		cleanup     func()
	)

	BeforeEach(func() {
		var err error
		databaseURL, cleanup, err = startPostgres()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	It("applies and rolls back the full schema", func() {
		ctx := context.Background()

		migrator, err := store.NewMigrator(databaseURL)
		Expect(err).NotTo(HaveOccurred())
		defer migrator.Close()

		Expect(migrator.Up()).To(Succeed())

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeFalse())
		Expect(version).To(BeNumerically(">=", 1))

		pool, err := store.Connect(ctx, databaseURL)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		for _, table := range []string{"users", "contacts"} {
			var exists bool
			err = pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
				table).Scan(&exists)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue(), "table %s should exist", table)
		}

		// The unique index backs insert-if-absent registration.
		_, err = pool.Exec(ctx,
			`INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`,
			"01ARZ3NDEKTSV4RRFFQ69G5FAV", "alice", "digest")
		Expect(err).NotTo(HaveOccurred())
		_, err = pool.Exec(ctx,
			`INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`,
			"01ARZ3NDEKTSV4RRFFQ69G5FB0", "alice", "digest")
		Expect(err).To(HaveOccurred(), "duplicate username must violate unique constraint")

		Expect(migrator.Down()).To(Succeed())
	})

	It("runs up twice without error", func() {
		migrator, err := store.NewMigrator(databaseURL)
		Expect(err).NotTo(HaveOccurred())
		defer migrator.Close()

		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Up()).To(Succeed(), "second Up should be a no-op")
	})
})
