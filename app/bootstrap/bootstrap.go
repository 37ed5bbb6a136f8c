package bootstrap

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/freechat/session-go/internal/config"
	"github.com/freechat/session-go/internal/consul"
	"github.com/freechat/session-go/internal/database"
	"github.com/freechat/session-go/internal/di"
	"github.com/freechat/session-go/internal/logger"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks    []func() error
	consulClient    *consul.Client
	serviceRegistry *consul.ServiceRegistry
}

// Init bootstraps configuration, logger, storage connections and the DI
// container required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	app := &App{}
	cfg := config.AppConfig

	// 按配置的存储后端初始化连接
	switch cfg.Store.Backend {
	case "redis":
		if _, err := database.InitRedis(); err != nil {
			return nil, err
		}
		app.cleanupTasks = append(app.cleanupTasks, database.CloseRedis)
	case "postgres":
		if _, err := database.InitDB(); err != nil {
			return nil, err
		}
		app.cleanupTasks = append(app.cleanupTasks, database.CloseDB)
	}

	// Consul注册（可选）
	if cfg.Consul.Enabled {
		consulClient, err := consul.NewClient(cfg.Consul.Address, cfg.Consul.Enabled, logger.GetLogger())
		if err != nil {
			logger.Warn("failed to initialize consul client", zap.Error(err))
		} else {
			app.consulClient = consulClient
			registry := consul.NewServiceRegistry(
				consulClient,
				cfg.Consul.ServiceID,
				cfg.Consul.ServiceName,
				logger.GetLogger(),
			)
			if err := registry.Register(cfg); err != nil {
				logger.Warn("failed to register service with consul", zap.Error(err))
			} else {
				app.serviceRegistry = registry
				app.cleanupTasks = append(app.cleanupTasks, registry.Deregister)
			}
		}
	}

	// 依赖注入容器
	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, err
	}

	return app, nil
}

// Shutdown flushes logs and closes resources gracefully.
func (a *App) Shutdown() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}
	logger.Sync()
}
