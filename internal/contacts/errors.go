// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package contacts

import "errors"

// ErrNotFound is returned when a contact does not exist for the requesting
// owner. Deliberately also covers contacts owned by other users.
var ErrNotFound = errors.New("not found")
