package controllers

import (
	"net/http"

	"github.com/freechat/session-go/internal/di"
	"github.com/freechat/session-go/internal/models"
	"github.com/freechat/session-go/internal/session"
)

// SessionController 会话列表与生命周期
type SessionController struct {
	BaseController
	manager *session.Manager
	sync    *session.Synchronizer
}

func (c *SessionController) Prepare() {
	if c.manager == nil {
		_ = di.Invoke(func(m *session.Manager, s *session.Synchronizer) {
			c.manager = m
			c.sync = s
		})
	}
}

// List GET /api/v1/sessions
func (c *SessionController) List() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	st, err := c.manager.GetState(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.handleError("sessions.list", err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"sessions":   st.Sessions,
		"current_id": st.CurrentID,
	})
}

type createSessionRequest struct {
	Name           string                `json:"name"`
	ModelCardID    *int                  `json:"model_card_id"`
	Draft          bool                  `json:"draft"`
	ConversationID string                `json:"conversation_id"`
	Params         *models.SessionParams `json:"params"`
}

// Create POST /api/v1/sessions
func (c *SessionController) Create() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	var req createSessionRequest
	if !c.parseBody(&req) {
		return
	}

	sess, err := c.manager.CreateSession(c.Ctx.Request.Context(), userID, session.CreateOptions{
		Name:           req.Name,
		ModelCardID:    req.ModelCardID,
		Draft:          req.Draft,
		ConversationID: req.ConversationID,
		Params:         req.Params,
	})
	if err != nil {
		c.handleError("sessions.create", err)
		return
	}
	c.JSONSuccess(sess)
}

// Current GET /api/v1/sessions/current
func (c *SessionController) Current() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	sess, err := c.manager.CurrentSession(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.handleError("sessions.current", err)
		return
	}
	c.JSONSuccess(sess)
}

type updateSessionRequest struct {
	Name        *string               `json:"name"`
	Messages    []models.Message      `json:"messages"`
	Params      *models.SessionParams `json:"params"`
	IsFavorited *bool                 `json:"is_favorited"`
}

// Update PUT /api/v1/sessions/:id
func (c *SessionController) Update() {
	userID, ok := c.userID()
	if !ok {
		return
	}
	sessionID := c.Ctx.Input.Param(":id")

	var req updateSessionRequest
	if !c.parseBody(&req) {
		return
	}

	err := c.manager.UpdateSession(c.Ctx.Request.Context(), userID, sessionID, session.SessionPatch{
		Name:        req.Name,
		Messages:    req.Messages,
		Params:      req.Params,
		IsFavorited: req.IsFavorited,
	})
	if err != nil {
		c.handleError("sessions.update", err)
		return
	}
	c.JSONSuccess(nil)
}

type renameSessionRequest struct {
	Name string `json:"name" validate:"required"`
}

// Rename POST /api/v1/sessions/:id/rename
func (c *SessionController) Rename() {
	userID, ok := c.userID()
	if !ok {
		return
	}
	sessionID := c.Ctx.Input.Param(":id")

	var req renameSessionRequest
	if !c.parseBody(&req) {
		return
	}

	if err := c.manager.RenameSession(c.Ctx.Request.Context(), userID, sessionID, req.Name); err != nil {
		c.handleError("sessions.rename", err)
		return
	}
	c.JSONSuccess(nil)
}

// Delete DELETE /api/v1/sessions/:id
func (c *SessionController) Delete() {
	userID, ok := c.userID()
	if !ok {
		return
	}
	sessionID := c.Ctx.Input.Param(":id")

	if err := c.manager.DeleteSession(c.Ctx.Request.Context(), userID, sessionID); err != nil {
		c.handleError("sessions.delete", err)
		return
	}
	c.JSONSuccess(nil)
}

// Switch POST /api/v1/sessions/:id/switch
// 切换当前会话并把该会话的消息加载进展示列表。
func (c *SessionController) Switch() {
	userID, ok := c.userID()
	if !ok {
		return
	}
	sessionID := c.Ctx.Input.Param(":id")
	ctx := c.Ctx.Request.Context()

	if err := c.manager.SwitchSession(ctx, userID, sessionID); err != nil {
		c.handleError("sessions.switch", err)
		return
	}

	messages, err := c.sync.LoadSession(ctx, userID, sessionID)
	if err != nil {
		// 会话不存在时切换本身已是空操作，展示列表保持原样
		messages = nil
	}
	c.JSONSuccess(map[string]interface{}{
		"messages": messages,
	})
}

// DeleteUnfavorited DELETE /api/v1/sessions/unfavorited
func (c *SessionController) DeleteUnfavorited() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	removed, err := c.manager.DeleteUnfavorited(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.handleError("sessions.delete_unfavorited", err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"removed": removed,
	})
}

type hydrateRequest struct {
	DialogID string `json:"dialog_id" validate:"required"`
}

// Hydrate POST /api/v1/sessions/hydrate
func (c *SessionController) Hydrate() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	var req hydrateRequest
	if !c.parseBody(&req) {
		return
	}

	if err := c.manager.Hydrate(c.Ctx.Request.Context(), userID, req.DialogID); err != nil {
		c.handleError("sessions.hydrate", err)
		return
	}
	c.JSONSuccess(nil)
}

// ClearMessages POST /api/v1/sessions/:id/clear-messages
func (c *SessionController) ClearMessages() {
	userID, ok := c.userID()
	if !ok {
		return
	}
	sessionID := c.Ctx.Input.Param(":id")

	if err := c.manager.ClearMessages(c.Ctx.Request.Context(), userID, sessionID); err != nil {
		c.handleError("sessions.clear_messages", err)
		return
	}
	c.JSONSuccess(nil)
}

// RemoveMessage DELETE /api/v1/sessions/:id/messages/:message_id
func (c *SessionController) RemoveMessage() {
	userID, ok := c.userID()
	if !ok {
		return
	}
	sessionID := c.Ctx.Input.Param(":id")
	messageID := c.Ctx.Input.Param(":message_id")
	if messageID == "" {
		c.JSONError(http.StatusBadRequest, "message id is required")
		return
	}

	if err := c.manager.RemoveMessage(c.Ctx.Request.Context(), userID, sessionID, messageID); err != nil {
		c.handleError("sessions.remove_message", err)
		return
	}
	c.JSONSuccess(nil)
}
