package middleware

import (
	"net/http"
	"strings"

	"pet_chat/pkg/jwt"
	"pet_chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextUserID          = "user_id"
	ContextUserEmail       = "user_email"
	ContextUserDisplayName = "user_display_name"
	ContextUserRoles       = "user_roles"
)

// AuthMiddleware валидирует JWT токены от внешнего Auth-сервиса
type AuthMiddleware struct {
	jwtSecret string
	issuer    string
	log       logger.Logger
}

func NewAuthMiddleware(jwtSecret, issuer string, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
		issuer:    issuer,
		log:       log,
	}
}

// RequireAuth требует валидный токен. Для websocket-рукопожатия токен можно передать в ?token=,
// так как браузер не умеет ставить заголовки на upgrade-запрос.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			m.log.Warn("Missing or malformed Authorization header", "path", c.FullPath())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := jwt.Parse(tokenString, m.jwtSecret, m.issuer)
		if err != nil {
			m.log.Warn("Token validation failed", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			m.log.Debug("Invalid user_id in token", "user_id", claims.UserID, "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID in token"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextUserDisplayName, claims.DisplayName)
		c.Set(ContextUserRoles, claims.Roles)

		c.Next()
	}
}

// RequireRole пропускает только пользователей хотя бы с одной из ролей. Ставится после RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		have, _ := c.Get(ContextUserRoles)
		userRoles, _ := have.([]string)

		for _, r := range userRoles {
			for _, want := range roles {
				if r == want {
					c.Next()
					return
				}
			}
		}

		m.log.Warn("Insufficient role", "path", c.FullPath(), "required", roles)
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		c.Abort()
	}
}

func extractToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}

	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		if token := c.Query("token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// UserID возвращает id пользователя, положенный RequireAuth
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
