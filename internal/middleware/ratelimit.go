package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"campusmart/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit is an atomic sliding window.
// KEYS[1]=key, ARGV = now, windowStart, windowSec, member, limit.
// Returns the count inside the window, or -1 when the limit is reached.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit limits each authenticated user, falling back to the client
// IP. With a nil client it is a no-op; Redis errors let the request through.
func RedisRateLimit(rdb *rd.Client, limit int, window time.Duration, log *slog.Logger) gin.HandlerFunc {
	if rdb == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		var key string
		if u := CurrentUser(c); u != nil {
			key = redis.UserRateLimitKey(u.ID)
		} else {
			key = redis.IPRateLimitKey(c.ClientIP())
		}

		now := time.Now()
		windowSec := int64(window.Seconds())
		windowStart := now.Unix() - windowSec
		member := fmt.Sprintf("%d-%d", now.Unix(), now.UnixNano())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			now.Unix(), windowStart, windowSec, member, limit).Int()
		if err != nil {
			log.Warn("rate limit check failed", slog.String("key", key), slog.Any("err", err))
			c.Next()
			return
		}

		if res < 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "too many requests, slow down",
			})
			return
		}
		c.Next()
	}
}
