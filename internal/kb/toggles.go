package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freechat/session-go/internal/models"
)

const togglePrefix = "freechat:kb:"

// ToggleStore 启用知识库集合的持久化
// 与会话存储使用不同的键，互相独立。
type ToggleStore interface {
	Load(ctx context.Context, userID string) ([]string, error)
	Save(ctx context.Context, userID string, ids []string) error
}

// RedisToggleStore Redis后端
type RedisToggleStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisToggleStore 创建Redis后端
func NewRedisToggleStore(client *redis.Client, ttl time.Duration) *RedisToggleStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisToggleStore{client: client, ttl: ttl}
}

func (s *RedisToggleStore) Load(ctx context.Context, userID string) ([]string, error) {
	raw, err := s.client.Get(ctx, togglePrefix+userID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load kb toggles: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode kb toggles: %w", err)
	}
	return ids, nil
}

func (s *RedisToggleStore) Save(ctx context.Context, userID string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode kb toggles: %w", err)
	}
	if err := s.client.Set(ctx, togglePrefix+userID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save kb toggles: %w", err)
	}
	return nil
}

// MemoryToggleStore 内存后端，测试用
type MemoryToggleStore struct {
	mu   sync.RWMutex
	data map[string][]string
}

// NewMemoryToggleStore 创建内存后端
func NewMemoryToggleStore() *MemoryToggleStore {
	return &MemoryToggleStore{data: make(map[string][]string)}
}

func (s *MemoryToggleStore) Load(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.data[userID]))
	copy(out, s.data[userID])
	return out, nil
}

func (s *MemoryToggleStore) Save(ctx context.Context, userID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(ids))
	copy(out, ids)
	s.data[userID] = out
	return nil
}

// Toggles 启用知识库集合
// 发送消息时查询一次，得到当次请求要携带的kb_ids。
type Toggles struct {
	store ToggleStore
}

// NewToggles 创建知识库开关服务
func NewToggles(store ToggleStore) *Toggles {
	return &Toggles{store: store}
}

// Enabled 返回启用的知识库ID集合（有序）
func (t *Toggles) Enabled(ctx context.Context, userID string) ([]string, error) {
	ids, err := t.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Toggle 切换单个知识库的启用状态
func (t *Toggles) Toggle(ctx context.Context, userID, kbID string) ([]string, error) {
	ids, err := t.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := false
	next := ids[:0]
	for _, id := range ids {
		if id == kbID {
			found = true
			continue
		}
		next = append(next, id)
	}
	if !found {
		next = append(next, kbID)
	}

	if err := t.store.Save(ctx, userID, next); err != nil {
		return nil, err
	}
	sort.Strings(next)
	return next, nil
}

// SetAll 整体替换启用集合
func (t *Toggles) SetAll(ctx context.Context, userID string, ids []string) error {
	return t.store.Save(ctx, userID, dedupe(ids))
}

// Clear 清空启用集合
func (t *Toggles) Clear(ctx context.Context, userID string) error {
	return t.store.Save(ctx, userID, []string{})
}

// ToggleAll 全选/取消全选
// 可选全集排除纯标签分类；当前集合已覆盖全集时取消全选，否则全选。
func (t *Toggles) ToggleAll(ctx context.Context, userID string, available []models.KnowledgeBase) ([]string, error) {
	selectable := make([]string, 0, len(available))
	for i := range available {
		if available[i].IsTagCategory() {
			continue
		}
		selectable = append(selectable, available[i].ID)
	}

	current, err := t.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	enabled := make(map[string]bool, len(current))
	for _, id := range current {
		enabled[id] = true
	}

	allSelected := len(selectable) > 0
	for _, id := range selectable {
		if !enabled[id] {
			allSelected = false
			break
		}
	}
	// 按基数比较：已启用数不等于可选数也视为未全选
	if len(current) != len(selectable) {
		allSelected = false
	}

	var next []string
	if allSelected {
		next = []string{}
	} else {
		next = selectable
	}

	if err := t.store.Save(ctx, userID, next); err != nil {
		return nil, err
	}
	sort.Strings(next)
	return next, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
