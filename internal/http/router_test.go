package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/secondchance/internal/auth"
	"github.com/geocoder89/secondchance/internal/cache"
	"github.com/geocoder89/secondchance/internal/config"
	httpx "github.com/geocoder89/secondchance/internal/http"
	"github.com/geocoder89/secondchance/internal/observability"
	"github.com/geocoder89/secondchance/internal/repo/memory"
	"github.com/geocoder89/secondchance/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	disk, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	cfg := config.Config{Env: "test", MaxUploadBytes: 1 << 20}

	router := httpx.NewRouter(observability.NewLogger("test"), cfg, httpx.Dependencies{
		Users:   memory.NewUsersRepo(),
		Items:   memory.NewItemsRepo(),
		Images:  disk,
		Cache:   cache.New(time.Minute),
		Tokens:  auth.NewManager("test-secret", time.Hour),
		Prom:    observability.NewProm(reg),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()

	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(http.MethodPost, "/register", `{"email":"ann@example.com","password":"pw1","firstName":"Ann","lastName":"Lee"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ann@example.com", body["email"])
	assert.NotEmpty(t, body["authtoken"])

	w, body = s.do(http.MethodPost, "/register", `{"email":"ann@example.com","password":"other"}`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	errBody, _ := body["error"].(map[string]any)
	assert.Equal(t, "email_taken", errBody["code"])
	assert.Equal(t, "Email id already exists", errBody["message"])

	w, _ = s.do(http.MethodPost, "/login", `{"email":"ann@example.com","password":"wrong"}`, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, body = s.do(http.MethodPost, "/login", `{"email":"ann@example.com","password":"pw1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Ann", body["userName"])
	assert.Equal(t, "ann@example.com", body["userEmail"])
	token, _ := body["authtoken"].(string)
	require.NotEmpty(t, token)

	w, _ = s.do(http.MethodPut, "/update", `{"name":"Annie"}`, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	bearer := map[string]string{"Authorization": "Bearer " + token}

	w, _ = s.do(http.MethodPut, "/update", `{"name":"Annie"}`, map[string]string{
		"Authorization": "Bearer " + token,
		"email":         "eve@example.com",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w, body = s.do(http.MethodPut, "/update", `{"name":"Annie","password":"pw2"}`, bearer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, body["authtoken"])

	w, _ = s.do(http.MethodPost, "/login", `{"email":"ann@example.com","password":"pw1"}`, nil)
	require.Equal(t, http.StatusNotFound, w.Code, "old password must stop working")

	w, body = s.do(http.MethodPost, "/login", `{"email":"ann@example.com","password":"pw2"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Annie", body["userName"])
}

func TestAuthFlow_RegistrationEdges(t *testing.T) {
	s := newTestServer(t)

	long := strings.Repeat("k", 80)
	w, _ := s.do(http.MethodPost, "/register", `{"email":"long@example.com","password":"`+long+`"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPost, "/login", `{"email":"long@example.com","password":"`+long+`"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPost, "/login", `{"email":"long@example.com","password":"`+long[:72]+`"}`, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	for _, body := range []string{
		`{"email":"long@example.com"}`,
		`{"email":"long@example.com","password":""}`,
	} {
		w, out := s.do(http.MethodPost, "/register", body, nil)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		errBody, _ := out["error"].(map[string]any)
		assert.Equal(t, "email_taken", errBody["code"], body)
	}

	w, out := s.do(http.MethodPost, "/register", `{"email":"new@example.com"}`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	errBody, _ := out["error"].(map[string]any)
	assert.Equal(t, "invalid_request", errBody["code"])
}

func TestItemsFlow(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(http.MethodPost, "/items", `{"id":"872","name":"Lamp"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "872", body["id"])

	w, _ = s.do(http.MethodGet, "/items", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w, body = s.do(http.MethodPut, "/items/872", `{"name":"Desk lamp"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Item has been updated successfully", body["message"])

	w, body = s.do(http.MethodGet, "/items/872", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Desk lamp", body["name"])

	w, body = s.do(http.MethodDelete, "/items/872", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "872", body["id"])

	w, _ = s.do(http.MethodGet, "/items/872", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodGet, "/items", "", nil)
	assert.Equal(t, "[]", w.Body.String())
}

func TestRouterSurface(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w, _ = s.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "secondchance_http_requests_total")

	w, _ = s.do(http.MethodPost, "/register", "", map[string]string{"Content-Type": "text/plain"})
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w, _ = s.do(http.MethodGet, "/images/not-a-key", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
