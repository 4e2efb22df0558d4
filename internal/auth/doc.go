// Package auth provides the authentication primitives for the calendar API.
//
// This package implements:
//   - Signed, time-limited access tokens (HS256 JWT) carrying the user identity
//   - An in-process revocation list for logged-out tokens
//   - Password hashing (bcrypt)
//
// The HTTP gate that combines these lives in the middleware package.
package auth
