package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/freechat/session-go/internal/session"
)

// conversationData 创建对话的响应数据
type conversationData struct {
	ID string `json:"id"`
}

// CreateConversation 创建持久化对话，返回后端签发的对话ID
// 晋升草稿时调用，初始占位助手消息随请求一起带过去。
func (c *Client) CreateConversation(ctx context.Context, req *session.CreateConversationRequest) (string, error) {
	var data conversationData
	if err := c.post(ctx, "/api/v1/conversation/set", map[string]interface{}{
		"dialog_id":     req.DialogID,
		"name":          req.Name,
		"model_card_id": req.ModelCardID,
		"is_new":        true,
		"message":       []interface{}{req.InitialMessage},
	}, &data); err != nil {
		return "", err
	}
	if data.ID == "" {
		return "", fmt.Errorf("backend returned empty conversation id")
	}

	c.logger.Info("conversation created",
		zap.String("conversation_id", data.ID),
		zap.String("dialog_id", req.DialogID))

	return data.ID, nil
}

// RenameConversation 重命名对话
// 本地改名已经生效，这里失败只记录，由调用方决定是否提示。
func (c *Client) RenameConversation(ctx context.Context, conversationID, name string) error {
	return c.post(ctx, "/api/v1/conversation/set", map[string]interface{}{
		"conversation_id": conversationID,
		"name":            name,
		"is_new":          false,
	}, nil)
}

// DeleteConversations 批量删除对话
func (c *Client) DeleteConversations(ctx context.Context, conversationIDs []string) error {
	return c.post(ctx, "/api/v1/conversation/rm", map[string]interface{}{
		"conversation_ids": conversationIDs,
	}, nil)
}

// ListConversations 拉取对话摘要列表，加载时用于补全本地会话
func (c *Client) ListConversations(ctx context.Context, dialogID, userID string) ([]session.ConversationSummary, error) {
	var data []session.ConversationSummary
	path := fmt.Sprintf("/api/v1/conversation/list?dialog_id=%s&user_id=%s", dialogID, userID)
	if err := c.get(ctx, path, &data); err != nil {
		return nil, err
	}
	return data, nil
}
