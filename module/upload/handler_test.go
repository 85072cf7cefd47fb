package upload

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"PChat/global"

	"github.com/gin-gonic/gin"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	global.Global.UploadDir = t.TempDir()
	r := gin.New()
	r.POST("/api/upload", HandlerUpload)
	r.GET("/uploads/:name", HandlerServe)
	return r
}

func multipartBody(t *testing.T, fieldName, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, w.FormDataContentType()
}

func TestUploadAndServeRoundTrip(t *testing.T) {
	r := testRouter(t)

	payload := []byte("fake png bytes")
	body, contentType := multipartBody(t, "file", "avatar.png", "image/png", payload)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		ImageURL string `json:"imageUrl"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.HasPrefix(resp.ImageURL, "/uploads/") || !strings.HasSuffix(resp.ImageURL, ".png") {
		t.Fatalf("imageUrl = %q", resp.ImageURL)
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, resp.ImageURL, nil)
	r.ServeHTTP(w2, req2)

	if w2.Code != http.StatusOK {
		t.Fatalf("serve status = %d", w2.Code)
	}
	if got := w2.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("content type = %q", got)
	}
	if cc := w2.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=31536000") {
		t.Fatalf("cache control = %q", cc)
	}
	if !bytes.Equal(w2.Body.Bytes(), payload) {
		t.Fatalf("served bytes differ from upload")
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	r := testRouter(t)

	body, contentType := multipartBody(t, "file", "notes.txt", "text/plain", []byte("hello"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUploadRejectsOversize(t *testing.T) {
	r := testRouter(t)

	big := make([]byte, maxUploadBytes+1)
	body, contentType := multipartBody(t, "file", "big.png", "image/png", big)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUploadMissingField(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("no file"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestServeRejectsTraversal(t *testing.T) {
	r := testRouter(t)

	secret := filepath.Join(global.Global.UploadDir, "..", "secret.png")
	if err := os.WriteFile(secret, []byte("secret"), 0o644); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/uploads/..%2Fsecret.png", nil)
	r.ServeHTTP(w, req)

	// base-name sanitization must not reach outside the upload dir
	if w.Code == http.StatusOK && w.Body.String() == "secret" {
		t.Fatalf("traversal escaped the upload dir")
	}
}

func TestServeUnknownExtension(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/uploads/evil.sh", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
