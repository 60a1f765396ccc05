// Package redis implements kv.Store on a Redis server.
package redis

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront-kart/internal/kv"
)

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Pinger = (*Store)(nil)
)

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, addr string, db int) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr, DB: db}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// Store keeps every document as a plain Redis string.
type Store struct {
	client *redis.Client
}

// New returns a Store using client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, classify(err, "redis get "+key)
	}
	return data, true, nil
}

// Put replaces the value stored under key without expiry.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return classify(err, "redis set "+key)
	}
	return nil
}

// Ping checks the server connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return classify(err, "redis ping")
	}
	return nil
}

// classify maps the maxmemory refusal to kv.ErrStorageFull and everything
// else to kv.ErrStorageUnavailable.
func classify(err error, op string) error {
	var rerr redis.Error
	if errors.As(err, &rerr) && strings.HasPrefix(rerr.Error(), "OOM") {
		return kv.Full(err, op)
	}
	return kv.Unavailable(err, op)
}
