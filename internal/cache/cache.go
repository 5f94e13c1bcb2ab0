// Package cache stores conditional-request validators per source endpoint
// in Redis so repeat fetch cycles can skip unchanged catalogs.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEntryNotFound is returned when no cache entry exists for an endpoint.
var ErrEntryNotFound = errors.New("cache entry not found")

// keyPrefix is the Redis key prefix for response cache entries.
const keyPrefix = "gocatalog:cache:"

// Entry holds the cached validators for one (source, endpoint) pair.
// Mutated only by the fetcher pool after a 200 response.
type Entry struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	ContentHash  string    `json:"content_hash,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// HasValidators reports whether the entry carries anything usable in a
// conditional request.
func (e *Entry) HasValidators() bool {
	return e.ETag != "" || e.LastModified != ""
}

// Store is the persistence interface for cache entries. The Redis
// implementation is the production one; tests inject fakes.
type Store interface {
	Get(ctx context.Context, sourceID, endpoint string) (*Entry, error)
	Put(ctx context.Context, sourceID, endpoint string, entry *Entry) error
}

// RedisStore persists cache entries in Redis. Entries survive across fetch
// cycles; they carry no TTL because a stale validator only costs one
// full response.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed cache store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Key returns the Redis key for a (source, endpoint) pair.
func Key(sourceID, endpoint string) string {
	return keyPrefix + sourceID + ":" + endpoint
}

// Get retrieves the cache entry for an endpoint.
// Returns ErrEntryNotFound when none exists.
func (s *RedisStore) Get(ctx context.Context, sourceID, endpoint string) (*Entry, error) {
	data, err := s.client.Get(ctx, Key(sourceID, endpoint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	var entry Entry
	if unmarshalErr := json.Unmarshal(data, &entry); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal cache entry: %w", unmarshalErr)
	}

	return &entry, nil
}

// Put stores the cache entry for an endpoint.
func (s *RedisStore) Put(ctx context.Context, sourceID, endpoint string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if setErr := s.client.Set(ctx, Key(sourceID, endpoint), data, 0).Err(); setErr != nil {
		return fmt.Errorf("set cache entry: %w", setErr)
	}

	return nil
}
