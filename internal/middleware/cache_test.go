package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/config"
)

type memStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memStore) SetEx(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	m.data[key] = string(value.([]byte))
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 10,
	}
}

func TestResponseCache(t *testing.T) {
	store := newMemStore()
	calls := 0
	var caller authscope.Caller

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(CallerKey, caller)
			return next(c)
		}
	})
	e.Use(NewRedisCache(cacheConfig(), store))
	e.GET("/bookings/:id/providers", func(c echo.Context) error {
		calls++
		if c.Param("id") == "404" {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusOK, echo.Map{"data": []string{"counter-" + c.Param("id")}})
	})
	e.POST("/bookings/:id/providers", func(c echo.Context) error {
		calls++
		return c.NoContent(http.StatusOK)
	})

	caller = authscope.Caller{Ref: "alice", Groups: []authscope.Group{authscope.Agency()}}
	first := serve(e, http.MethodGet, "/bookings/1/providers", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := serve(e, http.MethodGet, "/bookings/1/providers", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)
	for _, ttl := range store.ttls {
		assert.Equal(t, time.Minute, ttl)
	}

	assert.Equal(t, "MISS", serve(e, http.MethodGet, "/bookings/2/providers", "").Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	// responses are never shared between callers
	caller = authscope.Caller{Ref: "bob", Groups: []authscope.Group{authscope.Agency()}}
	assert.Equal(t, "MISS", serve(e, http.MethodGet, "/bookings/1/providers", "").Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)

	serve(e, http.MethodGet, "/bookings/404/providers", "")
	serve(e, http.MethodGet, "/bookings/404/providers", "")
	assert.Equal(t, 5, calls)

	serve(e, http.MethodPost, "/bookings/1/providers", "")
	serve(e, http.MethodPost, "/bookings/1/providers", "")
	assert.Equal(t, 7, calls)
	assert.Len(t, store.data, 3)
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"data":[]}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"data":[]}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}
