package io

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a [RedisSink].
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, e.g. "crateindex:"
}

// RedisSink stores artifacts as Redis string keys named Prefix+artifact.
type RedisSink struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSink connects lazily to the server described by cfg.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisSinkFromClient(client, cfg.Prefix), nil
}

// NewRedisSinkFromClient wraps an existing client.
func NewRedisSinkFromClient(client redis.UniversalClient, prefix string) *RedisSink {
	return &RedisSink{client: client, prefix: prefix}
}

// Key returns the Redis key for an artifact name.
func (s *RedisSink) Key(name string) string { return s.prefix + name }

// Write sets every artifact key in one transaction. Readers observe either
// the previous set or the new one.
func (s *RedisSink) Write(ctx context.Context, a Artifacts) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, f := range a.files() {
			pipe.Set(ctx, s.Key(f.name), f.data, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Read loads the artifacts stored by Write.
func (s *RedisSink) Read(ctx context.Context) (Artifacts, error) {
	names := []string{DumpName, KeywordsName, CategoriesName, LastUpdatedName}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = s.Key(n)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return Artifacts{}, fmt.Errorf("redis read: %w", err)
	}
	get := func(i int) ([]byte, error) {
		v, ok := vals[i].(string)
		if !ok {
			return nil, fmt.Errorf("redis key %s not found", keys[i])
		}
		return []byte(v), nil
	}

	var a Artifacts
	if a.Dump, err = get(0); err != nil {
		return Artifacts{}, err
	}
	if a.Keywords, err = get(1); err != nil {
		return Artifacts{}, err
	}
	if a.Categories, err = get(2); err != nil {
		return Artifacts{}, err
	}
	if v, ok := vals[3].(string); ok {
		a.LastUpdated = v
	}
	return a, nil
}

// Close releases the client's connections.
func (s *RedisSink) Close() error { return s.client.Close() }
