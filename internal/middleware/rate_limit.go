package middleware

import (
	"net/http"
	"strconv"
	"time"

	"pet_chat/internal/domain"
	"pet_chat/internal/metrics"
	"pet_chat/internal/service"
	"pet_chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	limit            int
	window           time.Duration
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, limit int, window time.Duration, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		limit:            limit,
		window:           window,
		log:              log,
	}
}

// Limit ограничивает запросы по пользователю, а без аутентификации - по IP
func (m *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := domain.RateLimitKey(domain.RateLimitScopeIP, c.ClientIP())
		scope := domain.RateLimitScopeIP
		if userID, ok := UserID(c); ok {
			key = domain.RateLimitKey(domain.RateLimitScopeUser, userID.String())
			scope = domain.RateLimitScopeUser
		}

		allowed, remaining := m.rateLimitService.Allow(c.Request.Context(), key, m.limit, m.window)

		c.Header("X-RateLimit-Limit", strconv.Itoa(m.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			metrics.RateLimitHits.WithLabelValues(scope).Inc()
			m.log.Warn("Rate limit exceeded", "key", key)
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}
