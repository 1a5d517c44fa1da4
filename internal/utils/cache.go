package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"        // redis.Nil detection
	"strconv"       // Generation formatting
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// ReportCache stores derived report payloads per user in one Redis hash, so a
// single DEL drops every cached report of that user after a write. A per-user
// generation counter, bumped on every invalidation, keeps a report computed
// before a write from being stored after it.
type ReportCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewReportCache wraps rdb; ttl bounds how long a user's hash lives
func NewReportCache(rdb *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{rdb: rdb, ttl: ttl}
}

func reportKey(userID string) string {
	return "reports:user:" + userID
}

func generationKey(userID string) string {
	return "reports:gen:" + userID
}

// setIfGeneration writes the field only while the generation is unchanged.
// KEYS: generation, hash. ARGV: expected generation, field, value, ttl ms.
var setIfGeneration = redis.NewScript(`
local gen = redis.call("GET", KEYS[1]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("HSET", KEYS[2], ARGV[2], ARGV[3])
redis.call("PEXPIRE", KEYS[2], ARGV[4])
return 1
`)

// Generation returns the user's current cache generation
func (c *ReportCache) Generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil // Never invalidated
	}
	return gen, err
}

// Get retrieves a field from the user's hash and unmarshals it into dest
func (c *ReportCache) Get(ctx context.Context, userID, field string, dest any) (bool, error) {
	val, err := c.rdb.HGet(ctx, reportKey(userID), field).Result() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// Set stores value under field if the user's generation is still gen, the
// value read by Generation before the report was computed. It reports
// whether the value was stored.
func (c *ReportCache) Set(ctx context.Context, userID, field string, gen int64, value any) (bool, error) {
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return false, err // Return error if marshaling fails
	}
	keys := []string{generationKey(userID), reportKey(userID)}
	stored, err := setIfGeneration.Run(ctx, c.rdb, keys,
		strconv.FormatInt(gen, 10), field, b, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate bumps the user's generation and deletes every cached report
func (c *ReportCache) Invalidate(ctx context.Context, userID string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, generationKey(userID))
	pipe.Del(ctx, reportKey(userID))
	_, err := pipe.Exec(ctx)
	return err
}
