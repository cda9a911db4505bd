package api

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueToken(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		subject string
		role    Role
		ttl     time.Duration
		wantErr bool
	}{
		{name: "valid", secret: testJWTSecret, subject: "ops", role: RoleAdmin, ttl: time.Hour},
		{name: "no secret", secret: "", subject: "ops", role: RoleAdmin, ttl: time.Hour, wantErr: true},
		{name: "no subject", secret: testJWTSecret, subject: "", role: RoleAdmin, ttl: time.Hour, wantErr: true},
		{name: "unknown role", secret: testJWTSecret, subject: "ops", role: "owner", ttl: time.Hour, wantErr: true},
		{name: "zero ttl", secret: testJWTSecret, subject: "ops", role: RoleViewer, ttl: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := IssueToken(tt.secret, tt.subject, tt.role, tt.ttl)
			if (err != nil) != tt.wantErr {
				t.Fatalf("IssueToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			claims, err := ParseToken(token, tt.secret)
			if err != nil {
				t.Fatalf("ParseToken() error = %v", err)
			}
			if claims.Subject != tt.subject || claims.Role != tt.role || claims.ID == "" {
				t.Errorf("claims = %+v", claims)
			}
		})
	}
}

func TestParseToken_Rejects(t *testing.T) {
	key := []byte(testJWTSecret)
	valid := func() Claims {
		return Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "ops",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Role: RoleAdmin,
		}
	}

	noExpiry := valid()
	noExpiry.ExpiresAt = nil
	noSubject := valid()
	noSubject.Subject = ""
	badRole := valid()
	badRole.Role = "owner"
	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Second))

	tests := []struct {
		name  string
		token string
	}{
		{name: "alg none", token: signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid())},
		{name: "hs512", token: signClaims(t, jwt.SigningMethodHS512, key, valid())},
		{name: "wrong secret", token: signClaims(t, jwt.SigningMethodHS256, []byte("wrong-secret-wrong-secret-wrong!"), valid())},
		{name: "no expiry", token: signClaims(t, jwt.SigningMethodHS256, key, noExpiry)},
		{name: "expired", token: signClaims(t, jwt.SigningMethodHS256, key, expired)},
		{name: "no subject", token: signClaims(t, jwt.SigningMethodHS256, key, noSubject)},
		{name: "unknown role", token: signClaims(t, jwt.SigningMethodHS256, key, badRole)},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, testJWTSecret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		target     string
		allowQuery bool
		want       string
	}{
		{name: "bearer", header: "Bearer abc", target: "/", want: "abc"},
		{name: "lowercase scheme", header: "bearer abc", target: "/", want: "abc"},
		{name: "basic", header: "Basic abc", target: "/", want: ""},
		{name: "no scheme", header: "abc", target: "/", want: ""},
		{name: "query allowed", target: "/?access_token=q", allowQuery: true, want: "q"},
		{name: "query ignored", target: "/?access_token=q", want: ""},
		{name: "header wins over query", header: "Bearer h", target: "/?access_token=q", allowQuery: true, want: "h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(req, tt.allowQuery); got != tt.want {
				t.Errorf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClaimsFromContext(t *testing.T) {
	if claimsFromContext(context.Background()) != nil {
		t.Error("claimsFromContext() on empty context should be nil")
	}
	claims := &Claims{Role: RoleViewer}
	ctx := context.WithValue(context.Background(), ctxKeyClaims, claims)
	if claimsFromContext(ctx) != claims {
		t.Error("claimsFromContext() did not return stored claims")
	}
}
