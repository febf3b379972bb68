package middlewares

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/agromatch_backend/config"
	"github.com/mmdatafocus/agromatch_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	defaultRateLimit       = 600
	defaultRateLimitWindow = 60 * time.Second
)

// RateLimitMiddleware caps requests per caller in fixed windows using a redis
// counter. It fails open when redis is unavailable. A non-positive limit or a
// window under one second falls back to the defaults (600 per minute).
func RateLimitMiddleware(limit int64, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if window < time.Second {
		window = defaultRateLimitWindow
	}
	return func(c *gin.Context) {
		caller := c.ClientIP()
		if uid, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
			caller = "user:" + strconv.Itoa(uid)
		}
		bucket := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("RateLimit:%s:%s:%d", c.FullPath(), caller, bucket)

		n, err := config.IncrRedisWindow(c.Request.Context(), key, window)
		if err != nil {
			config.GetLogger().WithFields(logrus.Fields{
				"field": "RateLimitMiddleware",
				"key":   key,
			}).Warn("rate limit check skipped: " + err.Error())
			c.Next()
			return
		}
		if n > limit {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
