package models

// SessionState 会话状态
type SessionState string

const (
	SessionStateDraft     SessionState = "draft"     // 本地草稿，后端还没有对应的对话
	SessionStatePromoting SessionState = "promoting" // 正在向后端创建对话
	SessionStateActive    SessionState = "active"    // 已绑定后端对话
	SessionStateError     SessionState = "error"     // 创建对话失败，等待重试
)

// SessionParams 会话级参数覆盖
type SessionParams struct {
	Temperature *float64               `json:"temperature,omitempty"`
	TopP        *float64               `json:"top_p,omitempty"`
	RolePrompt  string                 `json:"role_prompt,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// Session 会话实体
// 草稿阶段ID为本地生成的随机串，晋升成功后被后端签发的对话ID整体替换。
type Session struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	ModelCardID    *int           `json:"model_card_id,omitempty"`
	Name           string         `json:"name"`
	Messages       []Message      `json:"messages"`
	State          SessionState   `json:"state"`
	IsFavorited    bool           `json:"is_favorited"`
	Params         *SessionParams `json:"params,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	CreatedAt      int64          `json:"created_at"` // 毫秒时间戳
	UpdatedAt      int64          `json:"updated_at"` // 毫秒时间戳
}

// IsDraft 是否为草稿会话
func (s *Session) IsDraft() bool {
	return s.State == SessionStateDraft
}

// CloneMessages 返回消息列表的深拷贝
func (s *Session) CloneMessages() []Message {
	if s.Messages == nil {
		return nil
	}
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// SessionRecord 会话持久化表（Postgres后端使用）
type SessionRecord struct {
	ID             string `gorm:"primaryKey;column:id;size:64" json:"id"`
	UserID         string `gorm:"column:user_id;size:64;not null;index" json:"user_id"`
	ConversationID string `gorm:"column:conversation_id;size:64;index" json:"conversation_id"`
	ModelCardID    *int   `gorm:"column:model_card_id" json:"model_card_id"`
	Name           string `gorm:"column:name;size:255;not null" json:"name"`
	State          string `gorm:"column:state;size:20;not null" json:"state"`
	IsFavorited    bool   `gorm:"column:is_favorited;default:false" json:"is_favorited"`
	Messages       string `gorm:"type:jsonb;column:messages" json:"messages"`
	Params         string `gorm:"type:jsonb;column:params" json:"params"`
	LastError      string `gorm:"type:text;column:last_error" json:"last_error"`
	Position       int    `gorm:"column:position;not null" json:"position"`
	CreatedAt      int64  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt      int64  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (SessionRecord) TableName() string {
	return "chat_sessions"
}

// UserPointerRecord 当前会话指针表
type UserPointerRecord struct {
	UserID           string `gorm:"primaryKey;column:user_id;size:64" json:"user_id"`
	CurrentSessionID string `gorm:"column:current_session_id;size:64" json:"current_session_id"`
	UpdatedAt        int64  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (UserPointerRecord) TableName() string {
	return "chat_session_pointers"
}

// DisplayCacheRecord 展示消息缓存表
type DisplayCacheRecord struct {
	UserID    string `gorm:"primaryKey;column:user_id;size:64" json:"user_id"`
	Messages  string `gorm:"type:jsonb;column:messages" json:"messages"`
	UpdatedAt int64  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (DisplayCacheRecord) TableName() string {
	return "chat_display_cache"
}
