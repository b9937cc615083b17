// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package account implements the account lifecycle and credential checks.
//
// # States
//
// An account is either pending activation or active. Registration creates a
// pending account with an activation code; a matching, unexpired code moves
// it to active. Only active accounts can log in.
//
// # Codes
//
// Activation and password reset each have their own code slot. A code is a
// random UUID compared by exact equality and valid while now is strictly
// before its expiry, CodeTTL after issue.
//
// # Services
//
//   - Lifecycle - Register, CheckCode, RetryActivate, RetryPassword, ChangePassword
//   - Gateway - ValidateCredentials, Login
//   - Admin - Create, List, Get, Update, Delete
//
// Services are created with New* constructors that reject nil collaborators.
// Storage goes through Repository; see the postgres subpackage.
package account
