package settings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/freechat/session-go/internal/debounce"
	"github.com/freechat/session-go/internal/errors"
	"github.com/freechat/session-go/internal/metrics"
	"github.com/freechat/session-go/internal/models"
)

// Gateway 设置后端
type Gateway interface {
	LoadSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	SaveSettings(ctx context.Context, userID string, settings *models.UserSettings) error
}

// Service 设置持久化服务
// sessions字段变更频繁走短防抖窗口，其余字段走长窗口；
// 窗口内的再次变更重置计时器，后写覆盖先写，不做并发编辑合并。
type Service struct {
	gateway        Gateway
	logger         *zap.Logger
	clock          debounce.Clock
	sessionsWindow time.Duration
	fieldsWindow   time.Duration

	mu    sync.Mutex
	users map[string]*userSettings
}

type userSettings struct {
	current           models.UserSettings
	loaded            bool
	saving            bool
	hasUnsavedChanges bool
	sessionsDebouncer *debounce.Debouncer
	fieldsDebouncer   *debounce.Debouncer
}

// NewService 创建设置持久化服务
func NewService(gateway Gateway, clock debounce.Clock, sessionsWindow, fieldsWindow time.Duration, logger *zap.Logger) *Service {
	if clock == nil {
		clock = debounce.NewRealClock()
	}
	if sessionsWindow <= 0 {
		sessionsWindow = 5 * time.Second
	}
	if fieldsWindow <= 0 {
		fieldsWindow = 30 * time.Second
	}
	return &Service{
		gateway:        gateway,
		logger:         logger,
		clock:          clock,
		sessionsWindow: sessionsWindow,
		fieldsWindow:   fieldsWindow,
		users:          make(map[string]*userSettings),
	}
}

func (s *Service) entry(userID string) *userSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	us, ok := s.users[userID]
	if !ok {
		us = &userSettings{
			sessionsDebouncer: debounce.NewDebouncer(s.clock, s.sessionsWindow),
			fieldsDebouncer:   debounce.NewDebouncer(s.clock, s.fieldsWindow),
		}
		s.users[userID] = us
	}
	return us
}

// Load 从后端加载设置
// 授权失败原样向上传递，对当前视图是致命的。
func (s *Service) Load(ctx context.Context, userID string) (*models.UserSettings, error) {
	loaded, err := s.gateway.LoadSettings(ctx, userID)
	if err != nil {
		if errors.IsAuthorization(err) {
			s.logger.Warn("user not authorized for settings", zap.String("user_id", userID))
		}
		return nil, err
	}

	us := s.entry(userID)
	s.mu.Lock()
	us.current = *loaded
	us.loaded = true
	us.hasUnsavedChanges = false
	s.mu.Unlock()

	out := *loaded
	return &out, nil
}

// Get 返回本地设置快照
func (s *Service) Get(userID string) (*models.UserSettings, bool) {
	us := s.entry(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !us.loaded {
		return nil, false
	}
	out := us.current
	return &out, true
}

// FieldPatch 设置字段更新
type FieldPatch struct {
	DialogID    *string
	Temperature *float64
	TopP        *float64
	RolePrompt  *string
	KBIDs       []string
}

// SetFields 更新低频字段并调度长窗口自动保存
func (s *Service) SetFields(userID string, patch FieldPatch) {
	us := s.entry(userID)

	s.mu.Lock()
	if patch.DialogID != nil {
		us.current.DialogID = *patch.DialogID
	}
	if patch.Temperature != nil {
		us.current.Temperature = patch.Temperature
	}
	if patch.TopP != nil {
		us.current.TopP = patch.TopP
	}
	if patch.RolePrompt != nil {
		us.current.RolePrompt = *patch.RolePrompt
	}
	if patch.KBIDs != nil {
		us.current.KBIDs = patch.KBIDs
	}
	us.hasUnsavedChanges = true
	s.mu.Unlock()

	us.fieldsDebouncer.Schedule(func() {
		s.flush(userID, "auto_fields")
	})
}

// SetSessions 更新sessions字段并调度短窗口自动保存
func (s *Service) SetSessions(userID string, sessions json.RawMessage) {
	us := s.entry(userID)

	s.mu.Lock()
	us.current.Sessions = sessions
	us.hasUnsavedChanges = true
	s.mu.Unlock()

	us.sessionsDebouncer.Schedule(func() {
		s.flush(userID, "auto_sessions")
	})
}

// Save 立即手动保存，取消所有挂起的自动保存
func (s *Service) Save(ctx context.Context, userID string) error {
	us := s.entry(userID)
	us.sessionsDebouncer.Cancel()
	us.fieldsDebouncer.Cancel()
	return s.save(ctx, userID, "manual")
}

// flush 自动保存触发
func (s *Service) flush(userID, trigger string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.save(ctx, userID, trigger); err != nil {
		s.logger.Error("settings auto-save failed",
			zap.String("user_id", userID),
			zap.String("trigger", trigger),
			zap.Error(err))
	}
}

func (s *Service) save(ctx context.Context, userID, trigger string) error {
	us := s.entry(userID)

	s.mu.Lock()
	snapshot := us.current
	us.saving = true
	s.mu.Unlock()

	err := s.gateway.SaveSettings(ctx, userID, &snapshot)

	s.mu.Lock()
	us.saving = false
	if err == nil {
		// 保存期间的新变更会重新调度，这里只清掉已落地的部分
		if !us.sessionsDebouncer.Pending() && !us.fieldsDebouncer.Pending() {
			us.hasUnsavedChanges = false
		}
	}
	s.mu.Unlock()

	if err != nil {
		if errors.IsAuthorization(err) {
			return err
		}
		return errors.NewGatewayError("failed to save settings", err)
	}

	metrics.SettingsSaves.WithLabelValues(trigger).Inc()
	return nil
}

// Status 返回保存状态标志
func (s *Service) Status(userID string) (saving, hasUnsavedChanges bool) {
	us := s.entry(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return us.saving, us.hasUnsavedChanges
}
