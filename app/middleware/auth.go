package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/beego/beego/v2/server/web/context"

	"github.com/freechat/session-go/internal/auth"
	"github.com/freechat/session-go/internal/config"
)

var (
	jwtOnce    sync.Once
	jwtService *auth.JWTService
)

// 不需要认证的路径
var publicPaths = []string{
	"/health",
	"/metrics",
}

func getJWTService() *auth.JWTService {
	jwtOnce.Do(func() {
		cfg := config.GetAppConfig()
		jwtService = auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, 24*time.Hour)
	})
	return jwtService
}

// AuthMiddleware JWT认证过滤器
// 验证通过后把user_id写入请求上下文，控制器据此取用户。
func AuthMiddleware(ctx *context.Context) {
	path := ctx.Input.URL()
	for _, p := range publicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return
		}
	}
	if ctx.Input.Method() == "OPTIONS" {
		return
	}

	token, err := auth.ExtractTokenFromHeader(ctx.Input.Header("Authorization"))
	if err != nil {
		unauthorized(ctx, "missing bearer token")
		return
	}

	claims, err := getJWTService().ValidateToken(token)
	if err != nil {
		unauthorized(ctx, "invalid token")
		return
	}

	ctx.Input.SetData("user_id", claims.UserID)
	ctx.Input.SetData("team_ids", claims.TeamIDs)
}

func unauthorized(ctx *context.Context, message string) {
	ctx.Output.SetStatus(http.StatusUnauthorized)
	_ = ctx.Output.JSON(map[string]interface{}{
		"success": false,
		"error":   message,
	}, false, false)
}
