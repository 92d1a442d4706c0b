package verify

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ProjectPlatform/Server/internal/backend"
)

// Redis key layout:
//
//	verify:code:{userID}     one-time code, expires with the TTL
//	verify:attempts:{userID} confirmation attempt counter, same lifetime
const (
	codeKeyPrefix     = "verify:code:"
	attemptsKeyPrefix = "verify:attempts:"
)

// Codes issues and checks one-time registration verification codes. A code
// expires after the TTL and tolerates a bounded number of wrong guesses
// before it is burned.
type Codes struct {
	rdb         *redis.Client
	ttl         time.Duration
	maxAttempts int
}

func NewCodes(rdb *redis.Client, ttl time.Duration, maxAttempts int) *Codes {
	return &Codes{rdb: rdb, ttl: ttl, maxAttempts: maxAttempts}
}

// Issue generates a fresh six-digit code for the user, replacing any
// outstanding one and resetting the attempt counter.
func (c *Codes) Issue(ctx context.Context, userID int64) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	key := codeKeyPrefix + strconv.FormatInt(userID, 10)
	if err := c.rdb.Set(ctx, key, code, c.ttl).Err(); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	if err := c.rdb.Del(ctx, attemptsKeyPrefix+strconv.FormatInt(userID, 10)).Err(); err != nil {
		return "", fmt.Errorf("reset attempts: %w", err)
	}

	return code, nil
}

// Confirm checks a submitted code. Expired, unknown, burned and plain wrong
// codes all fail the same way so the response does not reveal which.
func (c *Codes) Confirm(ctx context.Context, userID int64, code string) error {
	id := strconv.FormatInt(userID, 10)

	attempts, err := c.rdb.Incr(ctx, attemptsKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("count attempt: %w", err)
	}
	if attempts == 1 {
		c.rdb.Expire(ctx, attemptsKeyPrefix+id, c.ttl)
	}
	if attempts > int64(c.maxAttempts) {
		c.rdb.Del(ctx, codeKeyPrefix+id)
		return backend.ErrAuthentication
	}

	stored, err := c.rdb.Get(ctx, codeKeyPrefix+id).Result()
	if err == redis.Nil {
		return backend.ErrAuthentication
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if stored != code {
		return backend.ErrAuthentication
	}

	if err := c.rdb.Del(ctx, codeKeyPrefix+id, attemptsKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("burn code: %w", err)
	}
	return nil
}
