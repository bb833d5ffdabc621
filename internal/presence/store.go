// Package presence tracks which users currently hold a live connection.
// State lives in Redis as TTL-keyed entries:
//
//	Key:   online:<user id>
//	Value: unix timestamp of the last refresh
//	TTL:   OnlineTTL
//
// Keeping the live view outside the process lets it survive restarts and
// span server instances; the durable last_seen column stays in Postgres.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// OnlinePrefix is the Redis key prefix for online markers.
	OnlinePrefix = "online:"

	// OnlineTTL is how long a marker lives without a refresh. Connected
	// clients refresh on every websocket ping interval.
	OnlineTTL = 5 * time.Minute
)

// Store manages online markers in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a presence store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(userId int) string {
	return OnlinePrefix + strconv.Itoa(userId)
}

// SetOnline marks a user online and stamps the refresh time.
func (s *Store) SetOnline(ctx context.Context, userId int) error {
	return s.client.Set(ctx, key(userId), time.Now().Unix(), OnlineTTL).Err()
}

// Refresh extends a user's online marker without rewriting it.
func (s *Store) Refresh(ctx context.Context, userId int) error {
	return s.client.Expire(ctx, key(userId), OnlineTTL).Err()
}

// SetOffline drops the user's online marker immediately.
func (s *Store) SetOffline(ctx context.Context, userId int) error {
	return s.client.Del(ctx, key(userId)).Err()
}

// IsOnline reports whether the user currently holds an online marker.
func (s *Store) IsOnline(ctx context.Context, userId int) (bool, error) {
	err := s.client.Get(ctx, key(userId)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// OnlineCount counts users with a live marker.
func (s *Store) OnlineCount(ctx context.Context) (int, error) {
	var count int
	iter := s.client.Scan(ctx, 0, OnlinePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("presence: scan online keys: %w", err)
	}
	return count, nil
}

// Close closes the underlying Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
