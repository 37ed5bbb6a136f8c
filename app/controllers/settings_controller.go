package controllers

import (
	"encoding/json"

	"github.com/freechat/session-go/internal/di"
	"github.com/freechat/session-go/internal/settings"
)

// SettingsController 用户设置
type SettingsController struct {
	BaseController
	settings *settings.Service
}

func (c *SettingsController) Prepare() {
	if c.settings == nil {
		_ = di.Invoke(func(s *settings.Service) {
			c.settings = s
		})
	}
}

// Get GET /api/v1/settings
// 本地没有时从后端拉取；授权失败透传401，前端据此跳转。
func (c *SettingsController) Get() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	if cached, ok := c.settings.Get(userID); ok {
		c.JSONSuccess(cached)
		return
	}

	loaded, err := c.settings.Load(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.handleError("settings.get", err)
		return
	}
	c.JSONSuccess(loaded)
}

type updateFieldsRequest struct {
	DialogID    *string  `json:"dialog_id"`
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"top_p"`
	RolePrompt  *string  `json:"role_prompt"`
	KBIDs       []string `json:"kb_ids"`
}

// UpdateFields PUT /api/v1/settings
// 低频字段，长防抖窗口后自动落盘。
func (c *SettingsController) UpdateFields() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	var req updateFieldsRequest
	if !c.parseBody(&req) {
		return
	}

	c.settings.SetFields(userID, settings.FieldPatch{
		DialogID:    req.DialogID,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		RolePrompt:  req.RolePrompt,
		KBIDs:       req.KBIDs,
	})
	c.JSONSuccess(nil)
}

type updateSessionsRequest struct {
	Sessions json.RawMessage `json:"sessions" validate:"required"`
}

// UpdateSessions PUT /api/v1/settings/sessions
// 会话字段变更频繁，走短防抖窗口。
func (c *SettingsController) UpdateSessions() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	var req updateSessionsRequest
	if !c.parseBody(&req) {
		return
	}

	c.settings.SetSessions(userID, req.Sessions)
	c.JSONSuccess(nil)
}

// Save POST /api/v1/settings/save
// 手动立即保存，取消挂起的自动保存。
func (c *SettingsController) Save() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	if err := c.settings.Save(c.Ctx.Request.Context(), userID); err != nil {
		c.handleError("settings.save", err)
		return
	}
	c.JSONSuccess(nil)
}

// Status GET /api/v1/settings/status
func (c *SettingsController) Status() {
	userID, ok := c.userID()
	if !ok {
		return
	}

	saving, dirty := c.settings.Status(userID)
	c.JSONSuccess(map[string]interface{}{
		"saving":              saving,
		"has_unsaved_changes": dirty,
	})
}
