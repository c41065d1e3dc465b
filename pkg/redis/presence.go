package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// presenceTTL bounds how long a counter survives an instance that died
// without decrementing it.
const presenceTTL = 24 * time.Hour

const luaPresenceIncr = `
local n = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
return n
`

// luaPresenceDecr never goes below zero and drops the key when the last
// connection leaves.
const luaPresenceDecr = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current <= 1 then
  redis.call('DEL', KEYS[1])
  return 0
end
return redis.call('DECR', KEYS[1])
`

// Presence tracks open WebSocket connections per user.
type Presence struct {
	rdb *rd.Client
}

func NewPresence(rdb *rd.Client) *Presence {
	return &Presence{rdb: rdb}
}

// Connected returns the user's connection count including the new one.
func (p *Presence) Connected(ctx context.Context, userID uint) (int64, error) {
	ttl := int64(presenceTTL / time.Second)
	return p.rdb.Eval(ctx, luaPresenceIncr, []string{PresenceKey(userID)}, ttl).Int64()
}

// Disconnected returns the count left after removing one connection.
func (p *Presence) Disconnected(ctx context.Context, userID uint) (int64, error) {
	return p.rdb.Eval(ctx, luaPresenceDecr, []string{PresenceKey(userID)}).Int64()
}

// Online reports whether the user has at least one open connection.
func (p *Presence) Online(ctx context.Context, userID uint) (bool, error) {
	n, err := p.rdb.Exists(ctx, PresenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
