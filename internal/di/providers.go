package di

import (
	"fmt"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/freechat/session-go/internal/config"
	"github.com/freechat/session-go/internal/database"
	"github.com/freechat/session-go/internal/debounce"
	"github.com/freechat/session-go/internal/errors"
	"github.com/freechat/session-go/internal/events"
	"github.com/freechat/session-go/internal/gateway"
	"github.com/freechat/session-go/internal/kb"
	"github.com/freechat/session-go/internal/logger"
	"github.com/freechat/session-go/internal/session"
	"github.com/freechat/session-go/internal/settings"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	providers := []interface{}{
		provideConfig,
		provideLogger,
		provideStore,
		provideGatewayClient,
		provideEventSink,
		provideManager,
		provideSynchronizer,
		provideToggles,
		provideSettings,
		errors.NewErrorHandler,
	}

	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return fmt.Errorf("failed to register provider: %w", err)
		}
	}
	return nil
}

func provideConfig() (*config.Config, error) {
	cfg := config.GetAppConfig()
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return cfg, nil
}

func provideLogger() *zap.Logger {
	return logger.GetLogger()
}

// provideStore 按配置选择存储后端
func provideStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		client := database.RedisClient
		if client == nil {
			return nil, fmt.Errorf("redis not initialized")
		}
		store, err := session.NewRedisStore(client, time.Duration(cfg.Redis.TTL)*time.Second)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		db := database.DB
		if db == nil {
			return nil, fmt.Errorf("database not initialized")
		}
		store, err := session.NewDBStore(db)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func provideGatewayClient(cfg *config.Config, log *zap.Logger) *gateway.Client {
	return gateway.NewClient(
		cfg.Gateway.BaseURL,
		cfg.Gateway.APIKey,
		cfg.Gateway.Timeout,
		cfg.Gateway.StreamTimeout,
		log,
	)
}

// provideEventSink Kafka未启用时返回nil，管理器对nil出口不发事件
func provideEventSink(cfg *config.Config, log *zap.Logger) (session.EventSink, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init kafka producer: %w", err)
	}
	return producer, nil
}

func provideManager(store session.Store, client *gateway.Client, sink session.EventSink, log *zap.Logger) *session.Manager {
	return session.NewManager(store, client, sink, log)
}

func provideSynchronizer(store session.Store, manager *session.Manager, cfg *config.Config, log *zap.Logger) *session.Synchronizer {
	return session.NewSynchronizer(
		store,
		manager,
		debounce.NewRealClock(),
		cfg.Session.SyncDebounce,
		cfg.Session.SyncCooldown,
		log,
	)
}

func provideToggles(cfg *config.Config) (*kb.Toggles, error) {
	var store kb.ToggleStore
	switch cfg.Store.Backend {
	case "redis":
		client := database.RedisClient
		if client == nil {
			return nil, fmt.Errorf("redis not initialized")
		}
		store = kb.NewRedisToggleStore(client, time.Duration(cfg.Redis.TTL)*time.Second)
	default:
		store = kb.NewMemoryToggleStore()
	}
	return kb.NewToggles(store), nil
}

func provideSettings(client *gateway.Client, cfg *config.Config, log *zap.Logger) *settings.Service {
	return settings.NewService(
		client,
		debounce.NewRealClock(),
		cfg.Settings.SessionsDebounce,
		cfg.Settings.FieldsDebounce,
		log,
	)
}
