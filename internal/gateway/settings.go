package gateway

import (
	"context"
	"fmt"

	"github.com/freechat/session-go/internal/models"
)

// LoadSettings 拉取用户设置blob
// 未授权错误码直接映射为AuthorizationError，调用方据此跳转而不是弹错。
func (c *Client) LoadSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	var settings models.UserSettings
	path := fmt.Sprintf("/api/v1/user/setting?user_id=%s", userID)
	if err := c.get(ctx, path, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSettings 整体保存用户设置blob
func (c *Client) SaveSettings(ctx context.Context, userID string, settings *models.UserSettings) error {
	return c.post(ctx, "/api/v1/user/setting", map[string]interface{}{
		"user_id": userID,
		"setting": settings,
	}, nil)
}
