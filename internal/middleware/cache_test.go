package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamly/tours-api/internal/config"
)

func cacheSetup(t *testing.T) (*echo.Echo, *redis.Client, echo.MiddlewareFunc) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := config.CacheConfig{Enabled: true, TTL: 30 * time.Second, Prefix: "cache", MaxBodyBytes: 1 << 20}
	return echo.New(), rdb, ResponseCache(cfg, rdb)
}

func serveCached(e *echo.Echo, mw echo.MiddlewareFunc, method, target string, hits *int) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/tours")

	h := mw(func(c echo.Context) error {
		*hits++
		return c.JSON(http.StatusOK, echo.Map{"status": "success", "results": 2})
	})
	_ = h(c)
	return rec
}

func TestResponseCacheMissThenHit(t *testing.T) {
	e, _, mw := cacheSetup(t)

	var hits int
	first := serveCached(e, mw, http.MethodGet, "/api/v1/tours?limit=2", &hits)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, 1, hits)

	second := serveCached(e, mw, http.MethodGet, "/api/v1/tours?limit=2", &hits)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, 1, hits, "handler must not run on a hit")
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get(echo.HeaderContentType), second.Header().Get(echo.HeaderContentType))
}

func TestResponseCacheKeyIncludesQuery(t *testing.T) {
	e, _, mw := cacheSetup(t)

	var hits int
	serveCached(e, mw, http.MethodGet, "/api/v1/tours?difficulty=easy", &hits)
	rec := serveCached(e, mw, http.MethodGet, "/api/v1/tours?difficulty=medium", &hits)

	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, hits)
}

func TestResponseCacheSkipsNonGet(t *testing.T) {
	e, _, mw := cacheSetup(t)

	var hits int
	rec := serveCached(e, mw, http.MethodPost, "/api/v1/tours", &hits)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, hits)

	rec = serveCached(e, mw, http.MethodPost, "/api/v1/tours", &hits)
	assert.Equal(t, 2, hits, "POST must never be served from cache")
}

func TestResponseCacheSkipsOversizedBodies(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := config.CacheConfig{Enabled: true, TTL: 30 * time.Second, Prefix: "cache", MaxBodyBytes: 10}
	e, mw := echo.New(), ResponseCache(cfg, rdb)

	big := strings.Repeat("x", 100)
	var hits int
	serve := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/api/v1/tours")
		_ = mw(func(c echo.Context) error {
			hits++
			return c.String(http.StatusOK, big)
		})(c)
		return rec
	}

	first := serve()
	assert.Equal(t, big, first.Body.String())

	// The body exceeded the limit, so nothing was stored and the second
	// request must be a fresh miss with the full body.
	second := serve()
	assert.Equal(t, "MISS", second.Header().Get("X-Cache"))
	assert.Equal(t, big, second.Body.String())
	assert.Equal(t, 2, hits)
}

func TestResponseCacheDisabledPassThrough(t *testing.T) {
	mw := ResponseCache(config.CacheConfig{Enabled: false}, nil)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	require.NoError(t, err)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}
