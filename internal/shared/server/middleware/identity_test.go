package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newIdentityRouter(adminKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity(adminKey))
	r.GET("/probe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userId":     UserIDFromContext(c),
			"privileged": IsPrivilegedViewer(c),
		})
	})
	return r
}

func TestIdentityRequiresUserHeader(t *testing.T) {
	r := newIdentityRouter("secret")

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestIdentitySetsUser(t *testing.T) {
	r := newIdentityRouter("secret")

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if want := `"userId":"u1"`; !strings.Contains(body, want) {
		t.Fatalf("expected %s in body %s", want, body)
	}
	if want := `"privileged":false`; !strings.Contains(body, want) {
		t.Fatalf("expected %s in body %s", want, body)
	}
}

func TestIdentityAdminKeyGrantsPrivilege(t *testing.T) {
	r := newIdentityRouter("secret")

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-User-Id", "admin-user")
	req.Header.Set("X-Admin-Key", "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if want := `"privileged":true`; !strings.Contains(w.Body.String(), want) {
		t.Fatalf("expected %s in body %s", want, w.Body.String())
	}
}

func TestIdentityWrongAdminKey(t *testing.T) {
	r := newIdentityRouter("secret")

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-Admin-Key", "wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if want := `"privileged":false`; !strings.Contains(w.Body.String(), want) {
		t.Fatalf("expected %s in body %s", want, w.Body.String())
	}
}

func TestIdentityNoConfiguredKeyNeverPrivileged(t *testing.T) {
	r := newIdentityRouter("")

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-Admin-Key", "anything")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if want := `"privileged":false`; !strings.Contains(w.Body.String(), want) {
		t.Fatalf("expected %s in body %s", want, w.Body.String())
	}
}
