package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/upb/calendar-api/internal/auth"
	"github.com/upb/calendar-api/utils"
	"go.uber.org/zap"
)

// ErrUnauthenticated is returned when a request carries no usable or an already revoked credential.
var ErrUnauthenticated = errors.New("unauthenticated")

// TokenVerifier verifies bearer tokens
type TokenVerifier interface {
	// Verify checks signature and expiry and returns the embedded identity
	Verify(token string) (*auth.VerifiedToken, error)
}

// RevocationChecker reports whether a token was revoked
type RevocationChecker interface {
	IsRevoked(token string) bool
}

// GateError describes why the auth gate rejected a request.
// It unwraps to ErrUnauthenticated or auth.ErrInvalidToken.
type GateError struct {
	Status  int
	Message string
	Err     error
}

// Error implements the error interface
func (e *GateError) Error() string {
	return e.Message
}

// Unwrap implements errors.Unwrap
func (e *GateError) Unwrap() error {
	return e.Err
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	tokens      TokenVerifier
	revocations RevocationChecker
	logger      *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(tokens TokenVerifier, revocations RevocationChecker, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:      tokens,
		revocations: revocations,
		logger:      logger,
	}
}

// Authenticate runs the gate against a request without writing a response.
//
// The outcomes are exactly: no header or token (401), revoked token (401),
// invalid signature or expiry (403), or the verified token.
func (m *AuthMiddleware) Authenticate(r *http.Request) (*auth.VerifiedToken, string, error) {
	authHeader := r.Header.Get("Authorization")
	if strings.TrimSpace(authHeader) == "" {
		return nil, "", &GateError{Status: http.StatusUnauthorized, Message: "Authorization header missing", Err: ErrUnauthenticated}
	}

	token, err := extractBearerToken(authHeader)
	if err != nil {
		return nil, "", err
	}

	if m.revocations.IsRevoked(token) {
		return nil, token, &GateError{Status: http.StatusUnauthorized, Message: "Token is blacklisted", Err: ErrUnauthenticated}
	}

	verified, err := m.tokens.Verify(token)
	if err != nil {
		m.logger.Debug("token verification failed",
			zap.String("request_id", GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		return nil, token, &GateError{Status: http.StatusForbidden, Message: "Invalid or expired token", Err: auth.ErrInvalidToken}
	}

	return verified, token, nil
}

// RequireAuth is a middleware that requires a valid, unrevoked bearer token.
// On success the identity and token are attached to the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		verified, token, err := m.Authenticate(r)
		if err != nil {
			var gateErr *GateError
			if !errors.As(err, &gateErr) {
				gateErr = &GateError{Status: http.StatusUnauthorized, Message: "Unauthorized access", Err: ErrUnauthenticated}
			}
			m.logger.Warn("request rejected by auth gate",
				zap.String("request_id", requestID),
				zap.Int("status", gateErr.Status),
				zap.String("reason", gateErr.Message))
			if werr := utils.WriteError(w, gateErr.Status, gateErr.Message, nil); werr != nil {
				m.logger.Error("failed to write auth response", zap.Error(werr))
			}
			return
		}

		identity := verified.Identity
		ctx = WithIdentity(ctx, &identity)
		ctx = WithToken(ctx, &BearerToken{Raw: token, ExpiresAt: verified.ExpiresAt})

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", identity.ID),
			zap.String("email", identity.Email))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken extracts the token from an "Authorization: Bearer <token>" header value
func extractBearerToken(authHeader string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(authHeader), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", &GateError{Status: http.StatusUnauthorized, Message: "Token missing", Err: ErrUnauthenticated}
	}
	return strings.TrimSpace(parts[1]), nil
}
