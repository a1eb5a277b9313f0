package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.POST("/echo", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})
	return r
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newTestRouter(RequestIDMiddleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRequestSizeLimit(t *testing.T) {
	r := newTestRouter(RequestSizeLimit(8))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "request_too_large")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_NilClientPassesThrough(t *testing.T) {
	r := newTestRouter(RateLimitMiddleware(nil, "pdf", 1, time.Minute))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"http://localhost:3000", "https://*.example.com"}

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"https://app.example.com", true},
		{"https://example.com", false},
		{"http://app.example.com", false},
		{"https://evil.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, isOriginAllowed(tt.origin, allowed))
		})
	}

	assert.True(t, isOriginAllowed("https://anything.io", []string{"*"}))
}

func TestCORSMiddlewareWithOrigins(t *testing.T) {
	r := newTestRouter(CORSMiddlewareWithOrigins([]string{" http://localhost:3000 ", ""}))

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.Header.Set("Origin", "http://other.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
