package uploads

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/shared/storage/object/local"
)

func testRouter(t *testing.T, userID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	})

	svc := &Service{
		Repo:  NewMemoryRepo(),
		Store: local.New(t.TempDir()),
		Now:   time.Now,
	}
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestCreateUpload(t *testing.T) {
	r := testRouter(t, "user-1")

	body, _ := json.Marshal(map[string]string{
		"category": "approved",
		"fileName": "resume.txt",
		"fileType": "text/plain",
		"content":  base64.StdEncoding.EncodeToString([]byte("resume body")),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var resp Upload
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Key == "" || resp.Category != "approved" || resp.UserID != "user-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.ContentType != "text/plain" {
		t.Fatalf("contentType = %q", resp.ContentType)
	}
}

func TestCreateUploadAliasFieldNames(t *testing.T) {
	r := testRouter(t, "user-1")

	body, _ := json.Marshal(map[string]string{
		"category":      "approved",
		"fileName":      "resume.txt",
		"contentType":   "text/plain",
		"contentBase64": base64.StdEncoding.EncodeToString([]byte("resume body")),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestCreateUploadValidation(t *testing.T) {
	r := testRouter(t, "user-1")

	body, _ := json.Marshal(map[string]string{
		"category":      "bogus",
		"fileName":      "resume.txt",
		"contentBase64": base64.StdEncoding.EncodeToString([]byte("x")),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "validation_error" {
		t.Fatalf("code = %q", resp.Error.Code)
	}
}

func TestListUploads(t *testing.T) {
	r := testRouter(t, "user-1")

	upload := func(category string) {
		body, _ := json.Marshal(map[string]string{
			"category":      category,
			"fileName":      category + ".txt",
			"contentBase64": base64.StdEncoding.EncodeToString([]byte("x")),
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("upload %s: status = %d", category, w.Code)
		}
	}
	upload("approved")
	upload("template")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads?category=template", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Items []Upload `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Category != "template" {
		t.Fatalf("items = %+v", resp.Items)
	}
}

func TestListUploadsEmpty(t *testing.T) {
	r := testRouter(t, "user-2")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != `{"items":[]}` {
		t.Fatalf("body = %s", w.Body.String())
	}
}
