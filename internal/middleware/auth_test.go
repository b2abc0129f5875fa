package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pet_chat/internal/domain"
	"pet_chat/pkg/jwt"
	"pet_chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "middleware-secret"
	testIssuer = "pet-auth"
)

func newAuthRouter(m *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.String())
	})
	router.GET("/admin", m.RequireAuth(), m.RequireRole(domain.GlobalRoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func signed(t *testing.T, claims jwt.Claims, secret string, ttl time.Duration) string {
	t.Helper()
	tok, err := jwt.Generate(claims, secret, testIssuer, ttl)
	require.NoError(t, err)
	return tok
}

func TestRequireAuth(t *testing.T) {
	router := newAuthRouter(NewAuthMiddleware(testSecret, testIssuer, logger.NewNop()))
	userID := uuid.New()
	valid := signed(t, jwt.Claims{UserID: userID.String()}, testSecret, time.Hour)

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
	}{
		{
			name:     "bearer token",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) },
			wantCode: http.StatusOK,
		},
		{
			name:     "missing header",
			prepare:  func(r *http.Request) {},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "wrong scheme",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Basic "+valid) },
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signed(t, jwt.Claims{UserID: userID.String()}, testSecret, -time.Minute))
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "user id is not a uuid",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signed(t, jwt.Claims{UserID: "42"}, testSecret, time.Hour))
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "query token on websocket upgrade",
			prepare: func(r *http.Request) {
				r.Header.Set("Upgrade", "websocket")
				q := r.URL.Query()
				q.Set("token", valid)
				r.URL.RawQuery = q.Encode()
			},
			wantCode: http.StatusOK,
		},
		{
			name: "query token without upgrade",
			prepare: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("token", valid)
				r.URL.RawQuery = q.Encode()
			},
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, userID.String(), rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	router := newAuthRouter(NewAuthMiddleware(testSecret, testIssuer, logger.NewNop()))

	for name, tc := range map[string]struct {
		roles    []string
		wantCode int
	}{
		"admin":   {roles: []string{domain.GlobalRoleUser, domain.GlobalRoleAdmin}, wantCode: http.StatusNoContent},
		"user":    {roles: []string{domain.GlobalRoleUser}, wantCode: http.StatusForbidden},
		"no role": {wantCode: http.StatusForbidden},
	} {
		t.Run(name, func(t *testing.T) {
			tok := signed(t, jwt.Claims{UserID: uuid.NewString(), Roles: tc.roles}, testSecret, time.Hour)
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
}

// stubRateLimiter пропускает первые limit запросов по каждому ключу
type stubRateLimiter struct {
	counts map[string]int
	keys   []string
}

func (s *stubRateLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, int) {
	s.counts[key]++
	s.keys = append(s.keys, key)
	remaining := limit - s.counts[key]
	if remaining < 0 {
		remaining = 0
	}
	return s.counts[key] <= limit, remaining
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := &stubRateLimiter{counts: make(map[string]int)}
	auth := NewAuthMiddleware(testSecret, testIssuer, logger.NewNop())
	rl := NewRateLimitMiddleware(limiter, 2, time.Minute, logger.NewNop())

	router := gin.New()
	router.GET("/open", rl.Limit(), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/private", auth.RequireAuth(), rl.Limit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	userID := uuid.New()
	tok := signed(t, jwt.Claims{UserID: userID.String()}, testSecret, time.Hour)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if i == 0 {
			assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
			assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, domain.RateLimitKey(domain.RateLimitScopeUser, userID.String()), limiter.keys[0])

	// Анонимные запросы считаются отдельно, по IP
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(limiter.keys[len(limiter.keys)-1], domain.RateLimitKey(domain.RateLimitScopeIP, "")))
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(rec.Header().Get(HeaderRequestID))
	assert.NoError(t, err)

	upstream := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, upstream)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, upstream, rec.Header().Get(HeaderRequestID))

	// Невалидный идентификатор заменяется новым
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "not-a-uuid")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(HeaderRequestID))
}
