package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/freechat/session-go/app/bootstrap"
	"github.com/freechat/session-go/app/router"
	"github.com/freechat/session-go/internal/config"
	"github.com/freechat/session-go/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	router.Init()

	web.BConfig.AppName = "FreeChat Session Service"
	web.BConfig.CopyRequestBody = true
	if p, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = p
	}

	logger.Info("starting session service", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
