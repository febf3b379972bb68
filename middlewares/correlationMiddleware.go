package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/agromatch_backend/utils"
)

const CorrelationHeader = "X-Correlation-Id"

// CorrelationMiddleware propagates the caller's correlation id or mints one.
// The id is echoed back and ends up on the execution row and its event.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Request.Header.Get(CorrelationHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(CorrelationHeader, id)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), id))
		c.Next()
	}
}
