package session

import (
	"context"

	"github.com/freechat/session-go/internal/models"
)

// State 单个用户的会话存储状态
// 会话列表顺序即展示顺序，新会话插在头部。
type State struct {
	Sessions  []models.Session `json:"sessions"`
	CurrentID string           `json:"current_session_id"`
}

// Find 按ID查找会话，返回索引，未找到返回-1
func (st *State) Find(id string) int {
	for i := range st.Sessions {
		if st.Sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// FindDraftByCard 查找指定模型卡片的草稿会话
func (st *State) FindDraftByCard(modelCardID int) int {
	for i := range st.Sessions {
		s := &st.Sessions[i]
		if s.State == models.SessionStateDraft && s.ModelCardID != nil && *s.ModelCardID == modelCardID {
			return i
		}
	}
	return -1
}

// Store 会话存储接口
// 会话列表+当前指针与展示消息缓存使用两个互相独立的存储键，
// 实现有Redis、Postgres和内存三种后端。
type Store interface {
	// LoadState 读取用户的会话列表和当前指针，不存在时返回空状态
	LoadState(ctx context.Context, userID string) (*State, error)
	// SaveState 整体写入用户的会话列表和当前指针
	SaveState(ctx context.Context, userID string, st *State) error
	// LoadDisplay 读取用户的展示消息缓存
	LoadDisplay(ctx context.Context, userID string) ([]models.Message, error)
	// SaveDisplay 写入用户的展示消息缓存
	SaveDisplay(ctx context.Context, userID string, messages []models.Message) error
	// Close 释放底层连接
	Close() error
}
