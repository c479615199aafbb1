// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package auth implements the account and credential lifecycle.
//
// # Domain Types
//
// Account carries the persisted state of a user. Its transition methods
// (IssueVerification, ConsumeVerification, IssueReset, ConsumeReset) enforce
// the lifecycle preconditions and return coded errors when violated. Callers
// should mutate accounts only through them.
//
// Single-use verification and reset tokens are stored as SHA-256 digests
// (HashToken). The plaintext token only leaves the package inside a
// notification.
//
// # Services
//
// Service coordinates registration, login, email verification, password
// reset, OAuth linking and account administration on top of an
// AccountRepository, a PasswordHasher, a TokenIssuer and a Notifier. It is
// created with NewService, which validates its dependencies.
//
// Domain failures carry the AUTH_* codes declared in errors.go. ErrorCode and
// IsDomainError distinguish them from infrastructure failures.
package auth
