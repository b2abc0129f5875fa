package middleware

import (
	"pet_chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем есть ли ошибки, которые handler не отдал сам
		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()

			statusCode := errors.HTTPStatusFromError(err.Err)

			c.JSON(statusCode, gin.H{
				"error": errors.PublicMessage(err.Err),
				"code":  errors.Code(err.Err),
			})
		}
	}
}
