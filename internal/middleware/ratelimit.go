package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"expense_tracker/internal/apperr"
)

var errTooManyRequests = apperr.TooManyRequests("Too many requests, please try again later")

// RateLimit allows limit requests per client IP in each fixed window. The
// counter lives in Redis so every instance shares it. A nil client disables
// limiting; a Redis failure lets the request through.
func RateLimit(rdb *redis.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := "ratelimit:" + scope + ":" + c.ClientIP()

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Rate limit check failed")
			c.Next()
			return
		}
		if count == 1 {
			if err := rdb.Expire(ctx, key, window).Err(); err != nil {
				logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Rate limit expiry failed")
			}
		}
		if count > int64(limit) {
			ttl, _ := rdb.TTL(ctx, key).Result()
			if ttl > 0 {
				c.Header("Retry-After", strconv.Itoa(int(ttl.Round(time.Second)/time.Second)))
			}
			c.AbortWithStatusJSON(apperr.Response(errTooManyRequests))
			return
		}
		c.Next()
	}
}
