package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freechat/session-go/internal/models"
)

const (
	statePrefix   = "freechat:sessions:"
	displayPrefix = "freechat:display:"
)

// RedisStore Redis会话存储
// 每个用户两个键：会话列表+当前指针一个，展示消息缓存一个。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore 创建Redis会话存储
func NewRedisStore(client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

// LoadState 读取用户会话状态
func (s *RedisStore) LoadState(ctx context.Context, userID string) (*State, error) {
	raw, err := s.client.Get(ctx, buildStateKey(userID)).Result()
	if err == redis.Nil {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}
	return &st, nil
}

// SaveState 写入用户会话状态
func (s *RedisStore) SaveState(ctx context.Context, userID string, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	if err := s.client.Set(ctx, buildStateKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

// LoadDisplay 读取展示消息缓存
func (s *RedisStore) LoadDisplay(ctx context.Context, userID string) ([]models.Message, error) {
	raw, err := s.client.Get(ctx, buildDisplayKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load display cache: %w", err)
	}

	var messages []models.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("failed to decode display cache: %w", err)
	}
	return messages, nil
}

// SaveDisplay 写入展示消息缓存
func (s *RedisStore) SaveDisplay(ctx context.Context, userID string, messages []models.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode display cache: %w", err)
	}
	if err := s.client.Set(ctx, buildDisplayKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save display cache: %w", err)
	}
	return nil
}

// Close 关闭底层连接
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func buildStateKey(userID string) string {
	return statePrefix + userID
}

func buildDisplayKey(userID string) string {
	return displayPrefix + userID
}
