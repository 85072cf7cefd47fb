package security

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PChat/tools/errs"
	"PChat/tools/security"

	"github.com/gin-gonic/gin"
)

func testRouter(t *testing.T, jwt security.Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	gate := Middleware(DefaultOptions(jwt))
	identity := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userId": UserID(c),
			"email":  UserEmail(c),
			"name":   UserName(c),
		})
	}
	r.GET("/api/users", gate, identity)
	r.GET("/conversations", gate, identity)
	return r
}

func issueToken(t *testing.T, opts security.Options) string {
	t.Helper()
	token, _, err := security.Issue(opts, "u1", "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func TestGateMissingTokenAPI(t *testing.T) {
	jwt := security.DefaultOptions([]byte("test-secret"))
	r := testRouter(t, jwt)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var body errs.CodeError
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body not a CodeError: %v", err)
	}
	if body.Code != errs.ErrTokenMissing.Code {
		t.Fatalf("code = %d, want %d", body.Code, errs.ErrTokenMissing.Code)
	}
}

func TestGateStaleCookiePageRedirects(t *testing.T) {
	jwt := security.DefaultOptions([]byte("test-secret"))
	r := testRouter(t, jwt)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "stale"})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Fatalf("redirect to %q, want /login", loc)
	}
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("stale cookie was not cleared")
	}
}

func TestGateMissingTokenPageRedirects(t *testing.T) {
	jwt := security.DefaultOptions([]byte("test-secret"))
	r := testRouter(t, jwt)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Fatalf("redirect to %q, want /login", loc)
	}
}

func TestGateInvalidToken(t *testing.T) {
	jwt := security.DefaultOptions([]byte("test-secret"))
	r := testRouter(t, jwt)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "not.a.jwt"})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestGateExpiredToken(t *testing.T) {
	jwt := security.DefaultOptions([]byte("test-secret"))
	expired := security.Options{Secret: jwt.Secret, TTL: -time.Minute}
	token := issueToken(t, expired)

	r := testRouter(t, jwt)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var body errs.CodeError
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body not a CodeError: %v", err)
	}
	if body.Code != errs.ErrTokenExpired.Code {
		t.Fatalf("code = %d, want %d", body.Code, errs.ErrTokenExpired.Code)
	}
}

func TestGateWrongSecret(t *testing.T) {
	token := issueToken(t, security.DefaultOptions([]byte("other-secret")))

	r := testRouter(t, security.DefaultOptions([]byte("test-secret")))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestGateValidCookie(t *testing.T) {
	jwt := security.DefaultOptions([]byte("test-secret"))
	token := issueToken(t, jwt)

	r := testRouter(t, jwt)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["userId"] != "u1" || body["email"] != "alice@example.com" || body["name"] != "Alice" {
		t.Fatalf("identity = %v", body)
	}
}

func TestGateBearerHeaderFallback(t *testing.T) {
	jwt := security.DefaultOptions([]byte("test-secret"))
	token := issueToken(t, jwt)

	r := testRouter(t, jwt)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestGateCookieWinsOverHeader(t *testing.T) {
	jwt := security.DefaultOptions([]byte("test-secret"))
	good := issueToken(t, jwt)

	r := testRouter(t, jwt)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: good})
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
