// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

// Package store provides database connectivity and schema management.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	// connectBaseDelay seeds the fibonacci backoff between ping attempts.
	connectBaseDelay = 500 * time.Millisecond

	// connectMaxRetries bounds startup pings while the database comes up.
	connectMaxRetries = 5
)

// Connect opens a pgx connection pool and verifies it with a ping.
// The ping retries with fibonacci backoff so the service survives a
// database that is still starting; all later failures surface per-call.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").
			With("operation", "parse database URL").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectMaxRetries, retry.NewFibonacci(connectBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}

	return pool, nil
}
