// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

// Package auth provides the credential management core for ContactDir.
//
// # Domain Types
//
// Credential is the stored (username, password hash) identity record.
// Create instances through NewCredential rather than direct struct
// initialization; the constructor validates the username and assigns
// the ID and timestamps.
//
// # Services
//
// Service implements registration, authentication, and password reset.
// Validation and business-rule failures (blank input, duplicate username,
// unknown username, credential mismatch) are reported as false/nil results
// so callers can branch on them; only infrastructure failures surface as
// errors. On the Authenticate path an unknown username and a wrong password
// are deliberately indistinguishable.
//
// # Hashing
//
// PasswordHasher has two implementations. SHA256Hasher is the default and
// preserves the legacy deterministic, unsalted digest format; see its doc
// comment for the weakness this carries. Argon2idHasher is the salted
// replacement, opt-in via configuration because enabling it changes the
// stored hash format and existing digests no longer verify.
package auth
