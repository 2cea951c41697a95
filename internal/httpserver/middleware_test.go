package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"taskhub/internal/apperr"
	"taskhub/internal/auth"
	"taskhub/internal/ratelimit"
)

const testSecret = "test-secret"

func testEngine(limiter *ratelimit.Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	api := r.Group("/")
	api.Use(Authenticate(auth.NewValidator(testSecret)))
	api.Use(RateLimit(limiter))
	api.GET("/tasks", RequireScope(auth.ScopeTasksRead), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tasks": []string{}})
	})
	return r
}

func bearerToken(t *testing.T, scopes ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "user-1",
		"scopes": scopes,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func doRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) *apperr.Error {
	t.Helper()
	var env apperr.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, w.Body.String())
	}
	if env.Error == nil {
		t.Fatalf("missing error envelope in %s", w.Body.String())
	}
	return env.Error
}

func TestMissingTokenReturns401(t *testing.T) {
	r := testEngine(ratelimit.NewLimiter(10, time.Hour))

	w := doRequest(r, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	e := decodeEnvelope(t, w)
	if e.Code != apperr.CodeUnauthenticated {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestInvalidTokenReturns401(t *testing.T) {
	r := testEngine(ratelimit.NewLimiter(10, time.Hour))

	w := doRequest(r, "Bearer garbage")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestMissingScopeReturns403(t *testing.T) {
	r := testEngine(ratelimit.NewLimiter(10, time.Hour))

	w := doRequest(r, bearerToken(t, auth.ScopeProjectsRead))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	e := decodeEnvelope(t, w)
	if e.Code != apperr.CodeForbidden {
		t.Fatalf("code = %q", e.Code)
	}
	if e.Details["required_scope"] != auth.ScopeTasksRead {
		t.Fatalf("required_scope = %v", e.Details["required_scope"])
	}
}

func TestAuthorizedRequestCarriesRateLimitHeaders(t *testing.T) {
	r := testEngine(ratelimit.NewLimiter(10, time.Hour))

	w := doRequest(r, bearerToken(t, auth.ScopeTasksRead))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if w.Header().Get("X-RateLimit-Limit") != "10" {
		t.Fatalf("limit header = %q", w.Header().Get("X-RateLimit-Limit"))
	}
	if w.Header().Get("X-RateLimit-Remaining") != "9" {
		t.Fatalf("remaining header = %q", w.Header().Get("X-RateLimit-Remaining"))
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatal("reset header missing")
	}
}

func TestRateLimitExceededReturns429(t *testing.T) {
	r := testEngine(ratelimit.NewLimiter(2, time.Hour))
	token := bearerToken(t, auth.ScopeTasksRead)

	doRequest(r, token)
	doRequest(r, token)
	w := doRequest(r, token)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	e := decodeEnvelope(t, w)
	if e.Code != apperr.CodeRateLimitExceeded {
		t.Fatalf("code = %q", e.Code)
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("remaining header = %q", w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitIsPerToken(t *testing.T) {
	r := testEngine(ratelimit.NewLimiter(1, time.Hour))

	tokenA := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a", "scopes": []string{auth.ScopeTasksRead}, "exp": time.Now().Add(time.Hour).Unix(),
	})
	tokenB := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "b", "scopes": []string{auth.ScopeTasksRead}, "exp": time.Now().Add(time.Hour).Unix(),
	})
	signedA, _ := tokenA.SignedString([]byte(testSecret))
	signedB, _ := tokenB.SignedString([]byte(testSecret))

	if w := doRequest(r, "Bearer "+signedA); w.Code != http.StatusOK {
		t.Fatalf("first request for a = %d", w.Code)
	}
	if w := doRequest(r, "Bearer "+signedA); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request for a = %d, want 429", w.Code)
	}
	if w := doRequest(r, "Bearer "+signedB); w.Code != http.StatusOK {
		t.Fatalf("first request for b = %d, should not share a's window", w.Code)
	}
}
