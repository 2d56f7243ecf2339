package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner-api/internal/models"
	"github.com/noah-isme/course-planner-api/internal/service"
	"github.com/noah-isme/course-planner-api/pkg/config"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/middleware/requestid"
)

type stubValidator map[string]string

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	userID, ok := s[token]
	if !ok {
		return nil, appErrors.ErrAccessInvalid
	}
	claims := &models.JWTClaims{}
	claims.Subject = userID
	return claims, nil
}

func identityRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", mw, func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestIdentityFromBearer(t *testing.T) {
	r := identityRouter(Identity(stubValidator{"good": "u1"}, false))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "ACCESS_INVALID", errorCode(t, w))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	w = serve(r, req)
	assert.Equal(t, "ACCESS_INVALID", errorCode(t, w))
}

func TestIdentityMissing(t *testing.T) {
	r := identityRouter(Identity(stubValidator{}, false))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(UserIDHeader, "u9")
	w := serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
}

func TestIdentityHeaderWhenAllowed(t *testing.T) {
	r := identityRouter(Identity(stubValidator{}, true))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(UserIDHeader, " u9 ")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u9", w.Body.String())
}

func TestOptionalIdentityNeverBlocks(t *testing.T) {
	r := identityRouter(OptionalIdentity(stubValidator{"good": "u1"}, false))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

// bucketScripter answers the token bucket script from memory.
type bucketScripter struct {
	tokens int64
	err    error
}

func (b *bucketScripter) run() *redis.Cmd {
	if b.err != nil {
		return redis.NewCmdResult(nil, b.err)
	}
	if b.tokens <= 0 {
		return redis.NewCmdResult([]interface{}{int64(0), int64(0), int64(3500)}, nil)
	}
	b.tokens--
	return redis.NewCmdResult([]interface{}{int64(1), b.tokens, int64(0)}, nil)
}

func (b *bucketScripter) Eval(context.Context, string, []string, ...interface{}) *redis.Cmd {
	return b.run()
}

func (b *bucketScripter) EvalSha(context.Context, string, []string, ...interface{}) *redis.Cmd {
	return b.run()
}

func (b *bucketScripter) EvalRO(context.Context, string, []string, ...interface{}) *redis.Cmd {
	return b.run()
}

func (b *bucketScripter) EvalShaRO(context.Context, string, []string, ...interface{}) *redis.Cmd {
	return b.run()
}

func (b *bucketScripter) ScriptExists(context.Context, ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult([]bool{true}, nil)
}

func (b *bucketScripter) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func TestRateLimitThrottledRefreshKeepsCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rateLimit(config.RateLimitConfig{Enabled: true, Capacity: 1}, &bucketScripter{tokens: 1}, nil))
	r.POST("/api/auth/refresh", func(c *gin.Context) {
		c.SetCookie("refresh_token", "rotated", 60, "/api/auth", "", false, true)
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = serve(r, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "4", w.Header().Get("Retry-After"))
	assert.Equal(t, "TOO_MANY_REQUESTS", errorCode(t, w))
	assert.Empty(t, w.Header().Values("Set-Cookie"))
}

func TestRateLimitFailsOpenOnRedisError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rateLimit(config.RateLimitConfig{Enabled: true, Capacity: 1}, &bucketScripter{err: errors.New("connection refused")}, nil))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
	}
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware(), WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestid.HeaderKey, "req-1")
	serve(r, req)

	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "req-1", meta["request_id"])
	assert.Contains(t, meta, "processing_time_ms")
	assert.NotContains(t, meta, "started_at")
}

func TestMetricsRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/wp-admin/setup.php", nil))
	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `path="/ping"`)
	assert.Contains(t, w.Body.String(), `path="unmatched"`)
	assert.NotContains(t, w.Body.String(), "wp-admin")
}
