package auth

import "time"

// Identity is the claim embedded in every access token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// VerifiedToken is the result of a successful token verification.
type VerifiedToken struct {
	Identity  Identity
	IssuedAt  time.Time
	ExpiresAt time.Time
}
