package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedEngine(t *testing.T, attempts int) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	engine := gin.New()
	engine.POST("/", RateLimitMiddleware(client, DefaultRateLimitConfig(attempts)), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return engine, mr
}

func post(engine *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	engine, mr := newLimitedEngine(t, 3)

	for i := 0; i < 3; i++ {
		rec := post(engine, "10.0.0.1:5000")
		require.Equal(t, http.StatusNoContent, rec.Code, "attempt %d", i+1)
	}
	rec := post(engine, "10.0.0.1:5000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// other clients keep their own budget
	assert.Equal(t, http.StatusNoContent, post(engine, "10.0.0.2:5000").Code)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusNoContent, post(engine, "10.0.0.1:5000").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	engine, mr := newLimitedEngine(t, 0)
	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusNoContent, post(engine, "10.0.0.1:5000").Code)
	}
	assert.Empty(t, mr.Keys())
}

func TestRateLimitFailsOpen(t *testing.T) {
	engine, mr := newLimitedEngine(t, 1)
	mr.Close()
	assert.Equal(t, http.StatusNoContent, post(engine, "10.0.0.1:5000").Code)
	assert.Equal(t, http.StatusNoContent, post(engine, "10.0.0.1:5000").Code)
}

func TestAccessLogRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(AccessLog())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	id := rec.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.Body.String())

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, given)
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, given, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", rec.Header().Get(RequestIDHeader))
}

func TestDomainValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(DomainValidatorMiddleware("blog.example.com"))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for host, want := range map[string]int{
		"blog.example.com":      http.StatusOK,
		"blog.example.com:8080": http.StatusOK,
		"evil.example.com":      http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, host)
	}
}
