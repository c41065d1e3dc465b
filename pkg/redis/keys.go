package redis

import "fmt"

const keyPrefix = "campusmart"

// PresenceKey counts a user's open sockets across instances.
func PresenceKey(userID uint) string {
	return fmt.Sprintf("%s:presence:%d", keyPrefix, userID)
}

// UserRateLimitKey is the sliding-window key for an authenticated caller.
func UserRateLimitKey(userID uint) string {
	return fmt.Sprintf("rate_limit:%s:user:%d", keyPrefix, userID)
}

// IPRateLimitKey is the fallback window for anonymous callers.
func IPRateLimitKey(ip string) string {
	return fmt.Sprintf("rate_limit:%s:ip:%s", keyPrefix, ip)
}
