package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/config"
)

// fakeScripter answers the limiter script with a per-key token count.
type fakeScripter struct {
	tokens map[string]int64
	keys   []string
	err    error
}

func (f *fakeScripter) run(keys []string, args ...interface{}) *redis.Cmd {
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	key := keys[0]
	f.keys = append(f.keys, key)
	if _, ok := f.tokens[key]; !ok {
		f.tokens[key] = int64(args[1].(int))
	}
	if f.tokens[key] == 0 {
		return redis.NewCmdResult([]interface{}{int64(0), int64(0), int64(1500)}, nil)
	}
	f.tokens[key]--
	return redis.NewCmdResult([]interface{}{int64(1), f.tokens[key], int64(0)}, nil)
}

func (f *fakeScripter) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(keys, args...)
}

func (f *fakeScripter) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(keys, args...)
}

func (f *fakeScripter) EvalRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(keys, args...)
}

func (f *fakeScripter) EvalShaRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(keys, args...)
}

func (f *fakeScripter) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeScripter) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func limitConfig(capacity int) config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       capacity,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            time.Minute,
		KeyStrategy:    "user",
		Prefix:         "rl",
	}
}

func limitedEcho(mw echo.MiddlewareFunc, caller *authscope.Caller) *echo.Echo {
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if caller != nil {
				c.Set(CallerKey, *caller)
			}
			return next(c)
		}
	})
	e.Use(mw)
	e.GET("/bookings", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	return e
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	fake := &fakeScripter{tokens: map[string]int64{}}
	alice := authscope.Caller{Ref: "alice", Groups: []authscope.Group{authscope.Agency()}}
	e := limitedEcho(NewTokenBucket(limitConfig(2), fake, zap.NewNop()), &alice)

	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodGet, "/bookings", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := serve(e, http.MethodGet, "/bookings", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too_many_requests")
	assert.Equal(t, []string{"rl:user:alice", "rl:user:alice", "rl:user:alice"}, fake.keys)
}

func TestTokenBucketFailsOpen(t *testing.T) {
	fake := &fakeScripter{tokens: map[string]int64{}, err: errors.New("connection refused")}
	e := limitedEcho(NewTokenBucket(limitConfig(1), fake, zap.NewNop()), nil)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/bookings", "").Code)
	}
}

func TestTokenBucketDisabled(t *testing.T) {
	cfg := limitConfig(1)
	cfg.Enabled = false
	fake := &fakeScripter{tokens: map[string]int64{}}
	e := limitedEcho(NewTokenBucket(cfg, fake, zap.NewNop()), nil)

	serve(e, http.MethodGet, "/bookings", "")
	assert.Empty(t, fake.keys)

	e = limitedEcho(NewTokenBucket(limitConfig(1), nil, zap.NewNop()), nil)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/bookings", "").Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")
	c.Set(CallerKey, authscope.Caller{Ref: "bob", Groups: []authscope.Group{authscope.Agency()}})

	cfg := limitConfig(1)
	cfg.KeyStrategy = "ip_user_route"
	assert.Equal(t, "rl:ip:10.0.0.7:user:bob:route:POST /v1/bookings", buildRateKey(cfg, c))

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.7", buildRateKey(cfg, c))
}
