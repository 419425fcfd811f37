// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested credential does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert would violate the username
// uniqueness constraint.
var ErrDuplicate = errors.New("duplicate username")
