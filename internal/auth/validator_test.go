package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskhub/internal/apperr"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestValidateValidToken(t *testing.T) {
	v := NewValidator(testSecret)
	tokenStr := signToken(t, testSecret, jwt.MapClaims{
		"sub":    "user-42",
		"scopes": []string{ScopeTasksRead, ScopeTasksWrite},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	p, err := v.Validate(tokenStr)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.Subject != "user-42" {
		t.Fatalf("subject = %q, want user-42", p.Subject)
	}
	if !p.HasScope(ScopeTasksRead) || !p.HasScope(ScopeTasksWrite) {
		t.Fatalf("scopes = %v, missing task scopes", p.Scopes)
	}
	if p.HasScope(ScopeWebhooksManage) {
		t.Fatal("should not have webhooks:manage")
	}
}

func TestValidateSpaceSeparatedScopeClaim(t *testing.T) {
	v := NewValidator(testSecret)
	tokenStr := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "svc",
		"scope": "projects:read projects:write",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	p, err := v.Validate(tokenStr)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !p.HasScope(ScopeProjectsRead) || !p.HasScope(ScopeProjectsWrite) {
		t.Fatalf("scopes = %v, want project scopes", p.Scopes)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	v := NewValidator(testSecret)
	tokenStr := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := v.Validate(tokenStr)
	assertUnauthenticated(t, err)
}

func TestValidateWrongSignature(t *testing.T) {
	v := NewValidator(testSecret)
	tokenStr := signToken(t, "other-secret", jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.Validate(tokenStr)
	assertUnauthenticated(t, err)
}

func TestValidateGarbageToken(t *testing.T) {
	v := NewValidator(testSecret)
	_, err := v.Validate("not.a.jwt")
	assertUnauthenticated(t, err)
}

func TestValidateMissingSubject(t *testing.T) {
	v := NewValidator(testSecret)
	tokenStr := signToken(t, testSecret, jwt.MapClaims{
		"scopes": []string{ScopeTasksRead},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.Validate(tokenStr)
	assertUnauthenticated(t, err)
}

func assertUnauthenticated(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	e, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected apperr.Error, got %T", err)
	}
	if e.Code != apperr.CodeUnauthenticated {
		t.Fatalf("code = %q, want %q", e.Code, apperr.CodeUnauthenticated)
	}
}

func TestExtractToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc", "abc"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic abc", ""},
		{"no token", "Bearer", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodGet, "/tasks", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			if got := ExtractToken(r); got != tc.want {
				t.Fatalf("ExtractToken = %q, want %q", got, tc.want)
			}
		})
	}
}
