package controllers

import (
	"github.com/freechat/session-go/internal/di"
	"github.com/freechat/session-go/internal/kb"
	"github.com/freechat/session-go/internal/models"
)

// KBController 知识库启用开关
type KBController struct {
	BaseController
	toggles *kb.Toggles
}

func (c *KBController) Prepare() {
	if c.toggles == nil {
		_ = di.Invoke(func(t *kb.Toggles) {
			c.toggles = t
		})
	}
}

// GetEnabled GET /api/v1/kb/enabled
func (c *KBController) GetEnabled() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	ids, err := c.toggles.Enabled(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.handleError("kb.enabled", err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"kb_ids": ids,
	})
}

type toggleRequest struct {
	KBID string `json:"kb_id" validate:"required"`
}

// Toggle POST /api/v1/kb/toggle
func (c *KBController) Toggle() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	var req toggleRequest
	if !c.parseBody(&req) {
		return
	}

	ids, err := c.toggles.Toggle(c.Ctx.Request.Context(), userID, req.KBID)
	if err != nil {
		c.handleError("kb.toggle", err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"kb_ids": ids,
	})
}

type setAllRequest struct {
	KBIDs []string `json:"kb_ids"`
}

// SetAll PUT /api/v1/kb/enabled
func (c *KBController) SetAll() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	var req setAllRequest
	if !c.parseBody(&req) {
		return
	}

	if err := c.toggles.SetAll(c.Ctx.Request.Context(), userID, req.KBIDs); err != nil {
		c.handleError("kb.set_all", err)
		return
	}
	c.JSONSuccess(nil)
}

// Clear DELETE /api/v1/kb/enabled
func (c *KBController) Clear() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	if err := c.toggles.Clear(c.Ctx.Request.Context(), userID); err != nil {
		c.handleError("kb.clear", err)
		return
	}
	c.JSONSuccess(nil)
}

type toggleAllRequest struct {
	Available []models.KnowledgeBase `json:"available" validate:"required"`
}

// ToggleAll POST /api/v1/kb/toggle-all
// 前端把当前可见的知识库列表带上来，纯标签分类不参与全选。
func (c *KBController) ToggleAll() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	var req toggleAllRequest
	if !c.parseBody(&req) {
		return
	}

	ids, err := c.toggles.ToggleAll(c.Ctx.Request.Context(), userID, req.Available)
	if err != nil {
		c.handleError("kb.toggle_all", err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"kb_ids": ids,
	})
}
