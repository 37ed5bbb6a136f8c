package session

import (
	"context"
	"sync"

	"github.com/freechat/session-go/internal/models"
)

// MemoryStore 内存会话存储
// 测试和本地开发用，读写都返回深拷贝，避免调用方绕过管理器改到存储里的数据。
type MemoryStore struct {
	mu       sync.RWMutex
	states   map[string]*State
	displays map[string][]models.Message
}

// NewMemoryStore 创建内存会话存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:   make(map[string]*State),
		displays: make(map[string][]models.Message),
	}
}

// LoadState 读取用户会话状态
func (s *MemoryStore) LoadState(ctx context.Context, userID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[userID]
	if !ok {
		return &State{}, nil
	}
	return cloneState(st), nil
}

// SaveState 写入用户会话状态
func (s *MemoryStore) SaveState(ctx context.Context, userID string, st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[userID] = cloneState(st)
	return nil
}

// LoadDisplay 读取展示消息缓存
func (s *MemoryStore) LoadDisplay(ctx context.Context, userID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs, ok := s.displays[userID]
	if !ok {
		return nil, nil
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// SaveDisplay 写入展示消息缓存
func (s *MemoryStore) SaveDisplay(ctx context.Context, userID string, messages []models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(messages))
	copy(out, messages)
	s.displays[userID] = out
	return nil
}

// Close 实现Store接口
func (s *MemoryStore) Close() error {
	return nil
}

func cloneState(st *State) *State {
	out := &State{CurrentID: st.CurrentID}
	if st.Sessions != nil {
		out.Sessions = make([]models.Session, len(st.Sessions))
		copy(out.Sessions, st.Sessions)
		for i := range out.Sessions {
			out.Sessions[i].Messages = st.Sessions[i].CloneMessages()
		}
	}
	return out
}
