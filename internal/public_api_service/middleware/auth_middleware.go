package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	AuthenticatedUserContextKey = ContextKey("authenticatedUser")
)

const (
	RoleTenant = "tenant"
	RoleAdmin  = "admin"
)

// AuthenticatedUser is the caller resolved from a bearer token. TenantID is the
// madrasah the caller acts for; admins carry their own madrasah id too.
type AuthenticatedUser struct {
	TenantID string
	Role     string
}

func (u AuthenticatedUser) IsAdmin() bool { return u.Role == RoleAdmin }

// Claims is the token payload. The subject is the madrasah id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var errUnknownRole = errors.New("unknown role")

// IssueToken signs an HS256 token for tenantID.
func IssueToken(secret []byte, tenantID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies signature, expiry and role of an HS256 token.
func ParseToken(secret []byte, tokenString string) (AuthenticatedUser, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return AuthenticatedUser{}, err
	}
	if claims.Subject == "" {
		return AuthenticatedUser{}, fmt.Errorf("%w: empty subject", jwt.ErrTokenInvalidClaims)
	}
	switch claims.Role {
	case RoleTenant, RoleAdmin:
	default:
		return AuthenticatedUser{}, fmt.Errorf("%w: %q", errUnknownRole, claims.Role)
	}
	return AuthenticatedUser{TenantID: claims.Subject, Role: claims.Role}, nil
}

// AuthMiddleware rejects requests without a valid "Bearer <jwt>" header and
// stores the caller in the request context.
func AuthMiddleware(secret []byte, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Authorization header missing")
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || scheme != "Bearer" || token == "" {
				logger.WarnContext(r.Context(), "Invalid Authorization header format", "scheme", scheme)
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			user, err := ParseToken(secret, token)
			if err != nil {
				logger.WarnContext(r.Context(), "Token validation failed", "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), AuthenticatedUserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				logger.ErrorContext(r.Context(), "AuthenticatedUser not found in context. AuthMiddleware must run first.")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !user.IsAdmin() {
				logger.WarnContext(r.Context(), "Admin route denied", "tenant_id", user.TenantID, "role", user.Role)
				http.Error(w, "Forbidden: admin role required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func UserFromContext(ctx context.Context) (AuthenticatedUser, bool) {
	user, ok := ctx.Value(AuthenticatedUserContextKey).(AuthenticatedUser)
	return user, ok && user.TenantID != ""
}
