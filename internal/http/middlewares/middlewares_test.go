package middlewares_test

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/secondchance/internal/auth"
	"github.com/geocoder89/secondchance/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	claims *auth.Claims
	err    error
	got    string
}

func (f *fakeVerifier) Verify(token string) (*auth.Claims, error) {
	f.got = token
	return f.claims, f.err
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		verifier   *fakeVerifier
		wantStatus int
		wantUserID string
	}{
		{
			name:       "valid_token",
			header:     "Bearer good",
			verifier:   &fakeVerifier{claims: &auth.Claims{User: auth.Subject{ID: "u1"}}},
			wantStatus: http.StatusOK,
			wantUserID: "u1",
		},
		{name: "missing_header", header: "", verifier: &fakeVerifier{}, wantStatus: http.StatusUnauthorized},
		{name: "wrong_scheme", header: "Basic abc", verifier: &fakeVerifier{}, wantStatus: http.StatusUnauthorized},
		{name: "empty_token", header: "Bearer   ", verifier: &fakeVerifier{}, wantStatus: http.StatusUnauthorized},
		{
			name:       "rejected_token",
			header:     "Bearer bad",
			verifier:   &fakeVerifier{err: errors.New("expired")},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			var seen string
			r.GET("/me", middlewares.NewAuthMiddleware(tt.verifier).RequireAuth(), func(c *gin.Context) {
				seen, _ = middlewares.UserIDFromContext(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if seen != tt.wantUserID {
				t.Fatalf("user id = %q, want %q", seen, tt.wantUserID)
			}
		})
	}
}

func TestRequireContentType(t *testing.T) {
	r := gin.New()
	r.POST("/items", middlewares.RequireContentType("application/json", "multipart/form-data"), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	tests := []struct {
		ct   string
		want int
	}{
		{ct: "application/json", want: http.StatusCreated},
		{ct: "application/json; charset=utf-8", want: http.StatusCreated},
		{ct: "multipart/form-data; boundary=xyz", want: http.StatusCreated},
		{ct: "text/plain", want: http.StatusUnsupportedMediaType},
		{ct: "", want: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader("{}"))
		if tt.ct != "" {
			req.Header.Set("Content-Type", tt.ct)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != tt.want {
			t.Fatalf("Content-Type %q: got %d, want %d", tt.ct, w.Code, tt.want)
		}
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.RequestID())
	r.GET("/x", func(c *gin.Context) {
		id, _ := c.Get(middlewares.CtxRequestID)
		c.String(http.StatusOK, id.(string))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if got := w.Header().Get("X-Request-Id"); got == "" || got != w.Body.String() {
		t.Fatalf("generated id header=%q body=%q", got, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" {
		t.Fatalf("client request id not propagated: %q", w.Body.String())
	}
}

func TestRequestLogger_WritesRecord(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(middlewares.RequestLogger(log))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/9", nil))

	out := buf.String()
	for _, want := range []string{`"msg":"http_request"`, `"route":"/items/:id"`, `"status":404`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %s missing %s", out, want)
		}
	}
}

func TestMaxBodyBytes(t *testing.T) {
	r := gin.New()
	r.POST("/upload", middlewares.MaxBodyBytes(4), func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("abc")))
	if w.Code != http.StatusOK {
		t.Fatalf("small body got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("abcdefgh")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("large body got %d", w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.CORSMiddleware([]string{"http://shop.test"}))
	r.GET("/items", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("Origin", "http://shop.test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "http://shop.test" {
		t.Fatalf("allowed origin not echoed")
	}

	req = httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unknown origin must not be allowed")
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.SecurityHeaders())
	r.GET("/items", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/images/:key", middlewares.ImageSecurityHeaders(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items", nil))

	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q, want DENY", got)
	}
	if got := w.Header().Get("Cross-Origin-Resource-Policy"); got != "" {
		t.Fatalf("api route should not set CORP, got %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/images/a.png", nil))

	if got := w.Header().Get("Cross-Origin-Resource-Policy"); got != "cross-origin" {
		t.Fatalf("CORP = %q, want cross-origin", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "" {
		t.Fatalf("image route kept X-Frame-Options %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRequireAuth_ExpiredTokenCode(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.RequestID())
	verifier := &fakeVerifier{err: jwt.ErrTokenExpired}
	r.GET("/me", middlewares.NewAuthMiddleware(verifier).RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer old")
	req.Header.Set("X-Request-Id", "req-9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", w.Code)
	}
	if verifier.got != "old" {
		t.Fatalf("verifier saw %q, want old", verifier.got)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"code":"token_expired"`) || !strings.Contains(body, `"requestId":"req-9"`) {
		t.Fatalf("unexpected body: %s", body)
	}
}
