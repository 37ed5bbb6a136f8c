package router

import (
	"github.com/beego/beego/v2/server/web"

	"github.com/freechat/session-go/app/controllers"
	"github.com/freechat/session-go/app/middleware"
	"github.com/freechat/session-go/internal/metrics"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Handler("/metrics", metrics.Handler())

	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)
	web.InsertFilter("/api/*", web.BeforeRouter, middleware.AuthMiddleware)

	sessionController := &controllers.SessionController{}
	web.Router("/api/v1/sessions", sessionController, "get:List;post:Create")
	// 具体路由必须在参数路由之前，否则/current会被:id匹配
	web.Router("/api/v1/sessions/current", sessionController, "get:Current")
	web.Router("/api/v1/sessions/hydrate", sessionController, "post:Hydrate")
	web.Router("/api/v1/sessions/unfavorited", sessionController, "delete:DeleteUnfavorited")
	web.Router("/api/v1/sessions/:id", sessionController, "put:Update;delete:Delete")
	web.Router("/api/v1/sessions/:id/rename", sessionController, "post:Rename")
	web.Router("/api/v1/sessions/:id/switch", sessionController, "post:Switch")
	web.Router("/api/v1/sessions/:id/clear-messages", sessionController, "post:ClearMessages")
	web.Router("/api/v1/sessions/:id/messages/:message_id", sessionController, "delete:RemoveMessage")

	messageController := &controllers.MessageController{}
	web.Router("/api/v1/display", messageController, "get:GetDisplayed;put:SetDisplayed")
	web.Router("/api/v1/display/rollback", messageController, "post:Rollback")
	web.Router("/api/v1/messages/send", messageController, "post:Send")

	settingsController := &controllers.SettingsController{}
	web.Router("/api/v1/settings", settingsController, "get:Get;put:UpdateFields")
	web.Router("/api/v1/settings/sessions", settingsController, "put:UpdateSessions")
	web.Router("/api/v1/settings/save", settingsController, "post:Save")
	web.Router("/api/v1/settings/status", settingsController, "get:Status")

	kbController := &controllers.KBController{}
	web.Router("/api/v1/kb/enabled", kbController, "get:GetEnabled;put:SetAll;delete:Clear")
	web.Router("/api/v1/kb/toggle", kbController, "post:Toggle")
	web.Router("/api/v1/kb/toggle-all", kbController, "post:ToggleAll")
}
