package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cv-rag-platform/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": GetSubject(c), "request_id": GetRequestID(c)})
	})
	r.POST("/upload", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthDisabledWithoutManager(t *testing.T) {
	a := NewAuthMiddleware(nil)
	r := newRouter(a.RequireAuth(), a.RequireScope("cvs:write"))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuth(t *testing.T) {
	tm, err := auth.NewTokenManager("secret", nil)
	require.NoError(t, err)
	a := NewAuthMiddleware(tm)
	r := newRouter(a.RequireAuth())

	t.Run("missing token", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"error_code":"unauthorized"`)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := serve(r, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_token")
	})

	t.Run("valid token", func(t *testing.T) {
		token, _, err := tm.Issue("uploader", "", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"subject":"uploader"`)
	})
}

func TestRequireScope(t *testing.T) {
	tm, err := auth.NewTokenManager("secret", nil)
	require.NoError(t, err)
	a := NewAuthMiddleware(tm)
	r := newRouter(a.RequireAuth(), a.RequireScope("cvs:write"))

	cases := []struct {
		scope string
		want  int
	}{
		{"", http.StatusOK},
		{"cvs:read cvs:write", http.StatusOK},
		{"cvs:read", http.StatusForbidden},
	}
	for _, tc := range cases {
		token, _, err := tm.Issue("svc", tc.scope, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		assert.Equal(t, tc.want, serve(r, req).Code, "scope %q", tc.scope)
	}
}

func TestRequestID(t *testing.T) {
	r := newRouter(RequestIDMiddleware())

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Contains(t, w.Body.String(), generated)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = serve(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRequestSizeLimit(t *testing.T) {
	r := newRouter(RequestSizeLimit(8))

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("0123456789"))
	w := serve(r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "request_too_large")

	req = httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("0123"))
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
}

func TestRateLimitWithoutRedisPasses(t *testing.T) {
	r := newRouter(RateLimitMiddleware(nil, 1, time.Minute))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
	}
}

func TestMetricsMiddlewareNilMetrics(t *testing.T) {
	r := newRouter(MetricsMiddleware(nil))
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
}
