package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/freechat/session-go/internal/di"
	"github.com/freechat/session-go/internal/errors"
	"github.com/freechat/session-go/internal/gateway"
	"github.com/freechat/session-go/internal/kb"
	"github.com/freechat/session-go/internal/models"
	"github.com/freechat/session-go/internal/session"
	"github.com/freechat/session-go/internal/settings"
)

// MessageController 展示消息与发送流程
type MessageController struct {
	BaseController
	manager  *session.Manager
	sync     *session.Synchronizer
	client   *gateway.Client
	toggles  *kb.Toggles
	settings *settings.Service
}

func (c *MessageController) Prepare() {
	if c.manager == nil {
		_ = di.Invoke(func(m *session.Manager, s *session.Synchronizer, g *gateway.Client, t *kb.Toggles, st *settings.Service) {
			c.manager = m
			c.sync = s
			c.client = g
			c.toggles = t
			c.settings = st
		})
	}
}

// GetDisplayed GET /api/v1/display
func (c *MessageController) GetDisplayed() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	messages, err := c.sync.Displayed(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.handleError("display.get", err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"messages": messages,
	})
}

type setDisplayedRequest struct {
	Messages []models.Message `json:"messages"`
}

// SetDisplayed PUT /api/v1/display
// 更新展示列表；与会话内容的差异经防抖后回写。
func (c *MessageController) SetDisplayed() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	var req setDisplayedRequest
	if !c.parseBody(&req) {
		return
	}
	if req.Messages == nil {
		req.Messages = []models.Message{}
	}

	if err := c.sync.SetDisplayed(c.Ctx.Request.Context(), userID, req.Messages); err != nil {
		c.handleError("display.set", err)
		return
	}
	c.JSONSuccess(nil)
}

type rollbackRequest struct {
	MessageID string `json:"message_id" validate:"required"`
}

// Rollback POST /api/v1/display/rollback
// 移除发送失败的消息并返回其文本，前端恢复到输入框。
func (c *MessageController) Rollback() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	var req rollbackRequest
	if !c.parseBody(&req) {
		return
	}

	content, err := c.sync.RollbackMessage(c.Ctx.Request.Context(), userID, req.MessageID)
	if err != nil {
		c.handleError("display.rollback", err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"restored_input": content,
	})
}

type sendMessageRequest struct {
	Content   string `json:"content" validate:"required"`
	DialogID  string `json:"dialog_id"`
	SessionID string `json:"session_id"`
}

// Send POST /api/v1/messages/send
// 发送一条用户消息并以SSE把助手回答流回去。
// 当前会话是草稿时先晋升；晋升失败移除触发消息并返回原文。
func (c *MessageController) Send() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	var req sendMessageRequest
	if !c.parseBody(&req) {
		return
	}
	ctx := c.Ctx.Request.Context()

	sess, err := c.resolveSession(userID, req.SessionID)
	if err != nil {
		c.handleError("messages.send", err)
		return
	}

	userMsg := models.Message{
		ID:      uuid.NewString(),
		Role:    models.RoleUser,
		Content: req.Content,
	}
	if _, err := c.sync.AppendDisplayed(ctx, userID, userMsg); err != nil {
		c.handleError("messages.send", err)
		return
	}

	sessionID := sess.ID
	if sess.IsDraft() {
		conversationID, err := c.manager.PromoteToActive(ctx, userID, sess.ID, userMsg, req.DialogID)
		if err != nil {
			// 管理器已回滚展示消息，把原文还给前端恢复输入框
			appErr := errors.GetAppError(err)
			c.JSON(appErr.HTTPCode, map[string]interface{}{
				"success":        false,
				"code":           appErr.Code,
				"error":          appErr.Message,
				"restored_input": req.Content,
			})
			return
		}
		if conversationID == "" {
			c.JSONError(http.StatusConflict, "promotion already in progress")
			return
		}
		if err := c.sync.SyncAfterPromotion(ctx, userID, conversationID); err != nil {
			c.handleError("messages.send", err)
			return
		}
		sessionID = conversationID
		sess, err = c.manager.GetSession(ctx, userID, sessionID)
		if err != nil {
			c.handleError("messages.send", err)
			return
		}
	}

	assistantMsg := models.Message{
		ID:   uuid.NewString(),
		Role: models.RoleAssistant,
	}
	if _, err := c.sync.AppendDisplayed(ctx, userID, assistantMsg); err != nil {
		c.handleError("messages.send", err)
		return
	}

	c.streamCompletion(userID, sessionID, sess, assistantMsg.ID)
}

// resolveSession 确定发送目标会话：显式传入的优先，否则当前会话
func (c *MessageController) resolveSession(userID, sessionID string) (*models.Session, error) {
	ctx := c.Ctx.Request.Context()
	if sessionID != "" {
		return c.manager.GetSession(ctx, userID, sessionID)
	}
	sess, err := c.manager.CurrentSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errors.NewNotFoundError("current session")
	}
	return sess, nil
}

// streamCompletion 调用补全接口并把增量以SSE转发给前端
func (c *MessageController) streamCompletion(userID, sessionID string, sess *models.Session, assistantMsgID string) {
	ctx := c.Ctx.Request.Context()

	kbIDs, err := c.toggles.Enabled(ctx, userID)
	if err != nil {
		c.handleError("messages.send", err)
		return
	}

	// 上下文取展示列表：包含刚追加、尚未回写进会话的消息
	display, err := c.sync.Displayed(ctx, userID)
	if err != nil {
		c.handleError("messages.send", err)
		return
	}
	history := make([]models.Message, 0, len(display))
	for _, msg := range display {
		if msg.ID == assistantMsgID {
			continue
		}
		history = append(history, msg)
	}

	completionReq := &gateway.CompletionRequest{
		ConversationID: sess.ConversationID,
		Messages:       history,
		KBIDs:          kbIDs,
	}
	if sess.ModelCardID != nil {
		completionReq.ModelCardID = *sess.ModelCardID
	}
	if sess.Params != nil {
		completionReq.Temperature = sess.Params.Temperature
		completionReq.TopP = sess.Params.TopP
		completionReq.RolePrompt = sess.Params.RolePrompt
	} else if userSettings, ok := c.settings.Get(userID); ok {
		completionReq.Temperature = userSettings.Temperature
		completionReq.TopP = userSettings.TopP
		completionReq.RolePrompt = userSettings.RolePrompt
	}

	w := c.Ctx.ResponseWriter
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	streamErr := c.client.StreamCompletion(ctx, completionReq, func(chunk gateway.CompletionChunk) error {
		if err := c.sync.ApplyChunk(ctx, userID, assistantMsgID, chunk.Answer, chunk.Reference); err != nil {
			return err
		}
		return c.writeSSE(map[string]interface{}{
			"answer":     chunk.Answer,
			"reference":  chunk.Reference,
			"message_id": assistantMsgID,
		})
	})

	if streamErr != nil {
		// 已套用的部分内容保留，只告知前端流没有正常结束
		_ = c.writeSSE(map[string]interface{}{
			"error": streamErr.Error(),
		})
		return
	}
	_ = c.writeSSE(map[string]interface{}{
		"done":       true,
		"session_id": sessionID,
	})
}

func (c *MessageController) writeSSE(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Ctx.ResponseWriter, "data: %s\n\n", data); err != nil {
		return err
	}
	c.Ctx.ResponseWriter.Flush()
	return nil
}
