package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/freechat/session-go/internal/database"
)

// RootController 根路径
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]interface{}{
		"service": "freechat-session",
	})
}

// HealthController 健康检查
type HealthController struct {
	BaseController
}

func (c *HealthController) Health() {
	components := map[string]string{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if database.RedisClient != nil {
		if err := database.RedisClient.Ping(ctx).Err(); err != nil {
			components["redis"] = "unhealthy"
		} else {
			components["redis"] = "healthy"
		}
	}
	if database.DB != nil {
		if sqlDB, err := database.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			components["database"] = "unhealthy"
		} else {
			components["database"] = "healthy"
		}
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"components": components,
	})
}
