package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// TimeoutMiddleware ограничивает время обработки запроса: контекст запроса
// отменяется через timeout, и операции хранилища, получившие его, прерываются.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
