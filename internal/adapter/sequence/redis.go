// Package sequence provides the atomic per-day counter backing account
// number publication.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pecorino-jp/ledger/internal/domain"
)

const keyPrefix = "ledger:accountNumber:"

// RedisDayCounter issues monotonically increasing sequence numbers scoped to
// a calendar day. INCR makes concurrent publishes collision-free; the key
// expires one day past its date so stale counters clean themselves up.
type RedisDayCounter struct {
	client *redis.Client
}

// NewRedisDayCounter creates a counter backed by the given client
func NewRedisDayCounter(client *redis.Client) *RedisDayCounter {
	return &RedisDayCounter{client: client}
}

// NewClient connects to redis and verifies the connection
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// Next returns the next sequence number for the given date
func (c *RedisDayCounter) Next(ctx context.Context, date time.Time) (int64, error) {
	key := keyPrefix + date.Format("20060102")
	expiresAt := date.AddDate(0, 0, 1)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, expiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("account number counter: %w: %v", domain.ErrServiceUnavailable, err)
	}

	return incr.Val(), nil
}
