package models

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Reference 检索引用
// 由后端在生成回答时附加，标明回答引用了哪些知识库片段。
type Reference struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name,omitempty"`
	Content      string  `json:"content,omitempty"`
	Similarity   float64 `json:"similarity,omitempty"`
}

// Message 消息实体
// 用户消息的ID在客户端创建时分配，助手消息的内容随流式输出原地追加。
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Reference []Reference `json:"reference,omitempty"`
}
