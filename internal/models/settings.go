package models

import "encoding/json"

// UserSettings 用户级设置
// 以整体JSON blob的形式与后端同步，sessions字段变更频繁，单独走短窗口防抖。
type UserSettings struct {
	DialogID    string          `json:"dialog_id,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	RolePrompt  string          `json:"role_prompt,omitempty"`
	KBIDs       []string        `json:"kb_ids,omitempty"`
	Sessions    json.RawMessage `json:"sessions,omitempty"`
}

// KnowledgeBase 知识库摘要
// ParserID为"tag"的条目是纯标签分类，不参与全选计数。
type KnowledgeBase struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParserID string `json:"parser_id,omitempty"`
}

// IsTagCategory 是否为纯标签伪知识库
func (kb *KnowledgeBase) IsTagCategory() bool {
	return kb.ParserID == "tag"
}
