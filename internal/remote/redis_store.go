// Package remote implements the cloud board record store that sync
// fetches from and pushes to, backed by Redis. One JSON record per board,
// plus a per-owner set of board ids for enumeration.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"podium/api/internal/syncer"
)

type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis at redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "podium:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "podium:"}
}

func (s *RedisStore) boardKey(ownerID, boardID string) string {
	return s.prefix + "board:" + ownerID + ":" + boardID
}

func (s *RedisStore) indexKey(ownerID string) string {
	return s.prefix + "boards:" + ownerID
}

// FetchBoards returns every cloud board record for the owner. A missing
// index yields an empty collection, not an error.
func (s *RedisStore) FetchBoards(ctx context.Context, ownerID string) ([]syncer.BoardRecord, error) {
	boardIDs, err := s.client.SMembers(ctx, s.indexKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list remote board ids: %w", err)
	}

	records := make([]syncer.BoardRecord, 0, len(boardIDs))
	for _, boardID := range boardIDs {
		payload, err := s.client.Get(ctx, s.boardKey(ownerID, boardID)).Result()
		if err == redis.Nil {
			// Index entry without a record: a push died between SADD and
			// SET on some other device. Skip; the next push repairs it.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch remote board %s: %w", boardID, err)
		}

		var record syncer.BoardRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("unmarshal remote board %s: %w", boardID, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// PushBoards writes the full merged record set for the owner.
func (s *RedisStore) PushBoards(ctx context.Context, ownerID string, records []syncer.BoardRecord) error {
	pipe := s.client.TxPipeline()
	for _, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal board %s: %w", record.ID, err)
		}
		pipe.Set(ctx, s.boardKey(ownerID, record.ID), payload, 0)
		pipe.SAdd(ctx, s.indexKey(ownerID), record.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push boards: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
