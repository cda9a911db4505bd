package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the authorisation tier carried in an API token.
type Role string

const (
	// RoleAdmin may change anything the API exposes.
	RoleAdmin Role = "admin"

	// RoleGateway is a CoAP gateway that mirrors device registrations
	// through the resource directory routes.
	RoleGateway Role = "gateway"

	// RoleViewer may watch the lifecycle event stream.
	RoleViewer Role = "viewer"
)

// ValidRoles lists the roles IssueToken accepts.
var ValidRoles = []Role{RoleAdmin, RoleGateway, RoleViewer}

// ErrTokenInvalid is returned for tokens that fail signature, expiry or
// claim checks.
var ErrTokenInvalid = errors.New("invalid token")

// Claims are the JWT claims of an API token.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

const ctxKeyClaims contextKey = "claims"

// IssueToken signs an HS256 token for subject with the given role.
func IssueToken(secret, subject string, role Role, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is required")
	}
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if !slices.Contains(ValidRoles, role) {
		return "", fmt.Errorf("unknown role %q", role)
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates tokenString against secret. Only HS256 is
// accepted, and the token must carry an expiry, a subject and a role.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !slices.Contains(ValidRoles, claims.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}
	return claims, nil
}

// bearerToken extracts the token from the Authorization header. The
// WebSocket route also accepts an access_token query parameter because
// browsers cannot set headers on the upgrade request.
func bearerToken(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if allowQuery {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// requireRole returns middleware that admits requests carrying a valid
// token whose role is one of roles.
func (s *Server) requireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r, isWebSocketUpgrade(r))
			if raw == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			claims, err := ParseToken(raw, s.jwtSecret)
			if err != nil {
				s.logger.Debug("rejected token",
					"request_id", r.Context().Value(ctxKeyRequestID),
					"path", r.URL.Path,
					"error", err,
				)
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			if !slices.Contains(roles, claims.Role) {
				writeForbidden(w, fmt.Sprintf("role %q may not %s %s", claims.Role, r.Method, r.URL.Path))
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// claimsFromContext returns the claims stored by requireRole, or nil.
func claimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ctxKeyClaims).(*Claims) //nolint:errcheck // type assertion, not an error
	return claims
}

// isWebSocketUpgrade reports whether r asks for a WebSocket upgrade.
func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
