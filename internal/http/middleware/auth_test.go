package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestUserJWTMissingSecret(t *testing.T) {
	mw := UserJWT("")
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestUserJWTMissingHeader(t *testing.T) {
	mw := UserJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestUserJWTInvalidToken(t *testing.T) {
	mw := UserJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signedUserToken(t, "wrong", "patient"))
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestUserJWTValidToken(t *testing.T) {
	mw := UserJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signedUserToken(t, "secret", "doctor"))
	rec := httptest.NewRecorder()

	called := false
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := UserClaimsFromContext(r.Context())
		if !ok {
			t.Fatalf("expected user claims in context")
		}
		if claims.Role != "doctor" {
			t.Fatalf("expected doctor role, got %q", claims.Role)
		}
		if claims.Subject != "user-1" {
			t.Fatalf("expected subject user-1, got %q", claims.Subject)
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
}

func TestRequireRole(t *testing.T) {
	protected := UserJWT("secret")(RequireRole("doctor")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodPost, "/doctors/doc-1/status", nil)
	req.Header.Set("Authorization", "Bearer "+signedUserToken(t, "secret", "patient"))
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/doctors/doc-1/status", nil)
	req.Header.Set("Authorization", "Bearer "+signedUserToken(t, "secret", "doctor"))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func signedUserToken(t *testing.T, secret, role string) string {
	t.Helper()
	claims := UserClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
