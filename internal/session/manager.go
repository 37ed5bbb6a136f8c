package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freechat/session-go/internal/errors"
	"github.com/freechat/session-go/internal/metrics"
	"github.com/freechat/session-go/internal/models"
)

// DefaultSessionName 新会话默认名称
const DefaultSessionName = "New chat"

// ConversationGateway 远端对话网关
// 晋升、改名、删除、加载时调用，实现在internal/gateway。
type ConversationGateway interface {
	CreateConversation(ctx context.Context, req *CreateConversationRequest) (string, error)
	RenameConversation(ctx context.Context, conversationID, name string) error
	DeleteConversations(ctx context.Context, conversationIDs []string) error
	ListConversations(ctx context.Context, dialogID, userID string) ([]ConversationSummary, error)
}

// CreateConversationRequest 创建对话请求
type CreateConversationRequest struct {
	DialogID       string         `json:"dialog_id"`
	Name           string         `json:"name"`
	ModelCardID    int            `json:"model_card_id"`
	InitialMessage models.Message `json:"initial_message"`
}

// ConversationSummary 对话摘要，列表接口返回
type ConversationSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ModelCardID *int   `json:"model_card_id,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// EventSink 会话生命周期事件出口（Kafka分析流，可为nil）
type EventSink interface {
	SessionCreated(userID string, sess *models.Session)
	SessionPromoted(userID, sessionID, conversationID string)
	SessionPromotionFailed(userID, sessionID string)
	SessionDeleted(userID string, sessionIDs []string)
}

// Manager 会话生命周期管理器
// 所有会话变更都经过这里，存储里的数据不允许被其他写入方直接修改。
type Manager struct {
	store   Store
	gateway ConversationGateway
	events  EventSink
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager 创建会话生命周期管理器
func NewManager(store Store, gateway ConversationGateway, events EventSink, logger *zap.Logger) *Manager {
	return &Manager{
		store:   store,
		gateway: gateway,
		events:  events,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// userLock 同一用户的变更串行执行，跨用户互不阻塞
func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

// CreateOptions 创建会话选项
type CreateOptions struct {
	Name           string
	ModelCardID    *int
	Draft          bool
	ConversationID string
	Params         *models.SessionParams
}

// CreateSession 创建会话
// 草稿会话使用本地生成的ID；同一模型卡片已有草稿时直接复用，
// 不会产生第二个草稿。非草稿+conversationID用于晋升后由后端签发ID的场景。
func (m *Manager) CreateSession(ctx context.Context, userID string, opts CreateOptions) (*models.Session, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	st, err := m.store.LoadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 一卡一草稿：已有同卡草稿时复用
	if opts.Draft && opts.ModelCardID != nil {
		if idx := st.FindDraftByCard(*opts.ModelCardID); idx >= 0 {
			st.CurrentID = st.Sessions[idx].ID
			if err := m.store.SaveState(ctx, userID, st); err != nil {
				return nil, err
			}
			reused := st.Sessions[idx]
			m.logger.Debug("reusing existing draft for model card",
				zap.String("user_id", userID),
				zap.String("session_id", reused.ID),
				zap.Int("model_card_id", *opts.ModelCardID))
			return &reused, nil
		}
	}

	name := opts.Name
	if name == "" {
		name = DefaultSessionName
	}

	now := nowMillis()
	sess := models.Session{
		Name:        name,
		ModelCardID: opts.ModelCardID,
		Messages:    []models.Message{},
		Params:      opts.Params,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if opts.Draft {
		sess.ID = uuid.NewString()
		sess.State = models.SessionStateDraft
	} else {
		sess.ID = opts.ConversationID
		sess.ConversationID = opts.ConversationID
		sess.State = models.SessionStateActive
		if sess.ID == "" {
			sess.ID = uuid.NewString()
		}
	}

	// 新会话插到头部并成为当前会话
	st.Sessions = append([]models.Session{sess}, st.Sessions...)
	st.CurrentID = sess.ID

	if err := m.store.SaveState(ctx, userID, st); err != nil {
		return nil, err
	}

	metrics.SessionsCreated.WithLabelValues(string(sess.State)).Inc()
	if m.events != nil {
		m.events.SessionCreated(userID, &sess)
	}

	m.logger.Info("session created",
		zap.String("user_id", userID),
		zap.String("session_id", sess.ID),
		zap.String("state", string(sess.State)))

	return &sess, nil
}

// PromoteToActive 将草稿晋升为活跃会话
// 转入promoting后调用网关创建对话；成功时把后端ID原地替换进会话
// （消息、参数、名称原样保留），失败时转入error并回滚触发消息。
// 同一会话同时只允许一次晋升，promoting状态下的再次请求是空操作。
func (m *Manager) PromoteToActive(ctx context.Context, userID, sessionID string, firstMessage models.Message, dialogID string) (string, error) {
	lock := m.userLock(userID)
	lock.Lock()

	st, err := m.store.LoadState(ctx, userID)
	if err != nil {
		lock.Unlock()
		return "", err
	}

	idx := st.Find(sessionID)
	if idx < 0 {
		lock.Unlock()
		return "", errors.NewNotFoundError("session")
	}
	sess := &st.Sessions[idx]

	if sess.State == models.SessionStatePromoting {
		lock.Unlock()
		m.logger.Debug("promotion already in flight, ignoring",
			zap.String("session_id", sessionID))
		return "", nil
	}

	if sess.ModelCardID == nil {
		lock.Unlock()
		return "", errors.NewValidationError(errors.ErrCodeMissingModelCard,
			"a model card must be selected before sending")
	}

	if err := transition(sess, models.SessionStatePromoting); err != nil {
		lock.Unlock()
		return "", err
	}
	sess.LastError = ""
	sess.UpdatedAt = nowMillis()
	if err := m.store.SaveState(ctx, userID, st); err != nil {
		lock.Unlock()
		return "", err
	}

	modelCardID := *sess.ModelCardID
	name := sess.Name
	// 网关调用不持有用户锁，避免慢请求阻塞该用户的其他操作
	lock.Unlock()

	conversationID, gwErr := m.gateway.CreateConversation(ctx, &CreateConversationRequest{
		DialogID:       dialogID,
		Name:           name,
		ModelCardID:    modelCardID,
		InitialMessage: firstMessage,
	})

	lock.Lock()
	defer lock.Unlock()

	st, err = m.store.LoadState(ctx, userID)
	if err != nil {
		return "", err
	}
	idx = st.Find(sessionID)
	if idx < 0 {
		// 晋升期间会话被删除，忽略结果
		return "", errors.NewNotFoundError("session")
	}
	sess = &st.Sessions[idx]

	if gwErr != nil {
		transition(sess, models.SessionStateError)
		sess.LastError = gwErr.Error()
		sess.UpdatedAt = nowMillis()
		if saveErr := m.store.SaveState(ctx, userID, st); saveErr != nil {
			return "", saveErr
		}

		// 回滚触发消息：展示列表里不能留下一条从未发出去的消息
		m.rollbackDisplayMessage(ctx, userID, firstMessage.ID)

		metrics.Promotions.WithLabelValues("error").Inc()
		if m.events != nil {
			m.events.SessionPromotionFailed(userID, sessionID)
		}
		return "", errors.NewGatewayError("failed to create conversation", gwErr)
	}

	// 纯改名：ID换成后端签发的对话ID，消息、参数、名称不动
	sess.ID = conversationID
	sess.ConversationID = conversationID
	transition(sess, models.SessionStateActive)
	sess.LastError = ""
	sess.UpdatedAt = nowMillis()
	if st.CurrentID == sessionID {
		st.CurrentID = conversationID
	}

	if err := m.store.SaveState(ctx, userID, st); err != nil {
		return "", err
	}

	metrics.Promotions.WithLabelValues("active").Inc()
	if m.events != nil {
		m.events.SessionPromoted(userID, sessionID, conversationID)
	}

	m.logger.Info("session promoted",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
		zap.String("conversation_id", conversationID))

	return conversationID, nil
}

// rollbackDisplayMessage 从展示缓存里移除指定消息
func (m *Manager) rollbackDisplayMessage(ctx context.Context, userID, messageID string) {
	display, err := m.store.LoadDisplay(ctx, userID)
	if err != nil {
		m.logger.Warn("failed to load display cache for rollback", zap.Error(err))
		return
	}

	filtered := display[:0]
	for _, msg := range display {
		if msg.ID != messageID {
			filtered = append(filtered, msg)
		}
	}
	if len(filtered) == len(display) {
		return
	}
	if err := m.store.SaveDisplay(ctx, userID, filtered); err != nil {
		m.logger.Warn("failed to roll back display message", zap.Error(err))
	}
}

// SessionPatch 会话更新字段
type SessionPatch struct {
	Name        *string
	Messages    []models.Message
	Params      *models.SessionParams
	IsFavorited *bool
}

// UpdateSession 合并更新会话字段，总是刷新updated_at
// 更新不存在的ID是静默空操作，调用方在调用前已保证存在性。
func (m *Manager) UpdateSession(ctx context.Context, userID, sessionID string, patch SessionPatch) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	st, err := m.store.LoadState(ctx, userID)
	if err != nil {
		return err
	}

	idx := st.Find(sessionID)
	if idx < 0 {
		return nil
	}
	sess := &st.Sessions[idx]

	if patch.Name != nil {
		sess.Name = *patch.Name
	}
	if patch.Messages != nil {
		sess.Messages = patch.Messages
	}
	if patch.Params != nil {
		sess.Params = patch.Params
	}
	if patch.IsFavorited != nil {
		sess.IsFavorited = *patch.IsFavorited
	}
	sess.UpdatedAt = nowMillis()

	return m.store.SaveState(ctx, userID, st)
}

// RenameSession 重命名会话
// 本地改名立即生效，活跃会话的后端改名请求是fire-and-forget。
func (m *Manager) RenameSession(ctx context.Context, userID, sessionID, name string) error {
	lock := m.userLock(userID)
	lock.Lock()

	st, err := m.store.LoadState(ctx, userID)
	if err != nil {
		lock.Unlock()
		return err
	}

	idx := st.Find(sessionID)
	if idx < 0 {
		lock.Unlock()
		return errors.NewNotFoundError("session")
	}
	sess := &st.Sessions[idx]
	sess.Name = name
	sess.UpdatedAt = nowMillis()
	conversationID := sess.ConversationID
	isActive := sess.State == models.SessionStateActive

	if err := m.store.SaveState(ctx, userID, st); err != nil {
		lock.Unlock()
		return err
	}
	lock.Unlock()

	if isActive && conversationID != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.gateway.RenameConversation(ctx, conversationID, name); err != nil {
				m.logger.Warn("backend rename failed",
					zap.String("conversation_id", conversationID),
					zap.Error(err))
			}
		}()
	}

	return nil
}

// DeleteSession 删除会话
// 草稿只做本地删除；活跃会话本地乐观删除，后端删除失败不回滚，
// 只记录日志和指标。被删会话是当前会话时，指针移到剩余的第一个。
func (m *Manager) DeleteSession(ctx context.Context, userID, sessionID string) error {
	lock := m.userLock(userID)
	lock.Lock()

	st, err := m.store.LoadState(ctx, userID)
	if err != nil {
		lock.Unlock()
		return err
	}

	idx := st.Find(sessionID)
	if idx < 0 {
		lock.Unlock()
		return errors.NewNotFoundError("session")
	}

	deleted := st.Sessions[idx]
	st.Sessions = append(st.Sessions[:idx], st.Sessions[idx+1:]...)

	if st.CurrentID == sessionID {
		if len(st.Sessions) > 0 {
			st.CurrentID = st.Sessions[0].ID
		} else {
			st.CurrentID = ""
		}
	}

	if err := m.store.SaveState(ctx, userID, st); err != nil {
		lock.Unlock()
		return err
	}
	lock.Unlock()

	metrics.SessionsDeleted.Inc()
	if m.events != nil {
		m.events.SessionDeleted(userID, []string{sessionID})
	}

	if deleted.State == models.SessionStateActive && deleted.ConversationID != "" {
		m.deleteBackendConversations(userID, []string{deleted.ConversationID})
	}

	return nil
}

// deleteBackendConversations 后端删除，乐观不回滚
func (m *Manager) deleteBackendConversations(userID string, conversationIDs []string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.gateway.DeleteConversations(ctx, conversationIDs); err != nil {
			metrics.GatewayErrors.WithLabelValues("delete_conversation").Inc()
			m.logger.Error("backend conversation delete failed, local delete stands",
				zap.String("user_id", userID),
				zap.Strings("conversation_ids", conversationIDs),
				zap.Error(err))
		}
	}()
}

// SwitchSession 切换当前会话
// ID不存在时静默忽略。
func (m *Manager) SwitchSession(ctx context.Context, userID, sessionID string) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	st, err := m.store.LoadState(ctx, userID)
	if err != nil {
		return err
	}

	if st.Find(sessionID) < 0 {
		return nil
	}
	if st.CurrentID == sessionID {
		return nil
	}

	st.CurrentID = sessionID
	return m.store.SaveState(ctx, userID, st)
}

// DeleteUnfavorited 批量删除所有未收藏的活跃会话
// 草稿和收藏的会话无条件保留。当前会话被删时，指针优先移到剩余草稿，
// 其次剩余第一个，否则置空。
func (m *Manager) DeleteUnfavorited(ctx context.Context, userID string) (int, error) {
	lock := m.userLock(userID)
	lock.Lock()

	st, err := m.store.LoadState(ctx, userID)
	if err != nil {
		lock.Unlock()
		return 0, err
	}

	kept := make([]models.Session, 0, len(st.Sessions))
	var removedIDs []string
	var removedConvIDs []string
	currentRemoved := false

	for _, sess := range st.Sessions {
		if sess.State == models.SessionStateActive && !sess.IsFavorited {
			removedIDs = append(removedIDs, sess.ID)
			if sess.ConversationID != "" {
				removedConvIDs = append(removedConvIDs, sess.ConversationID)
			}
			if st.CurrentID == sess.ID {
				currentRemoved = true
			}
			continue
		}
		kept = append(kept, sess)
	}

	st.Sessions = kept
	if currentRemoved {
		st.CurrentID = ""
		for i := range kept {
			if kept[i].State == models.SessionStateDraft {
				st.CurrentID = kept[i].ID
				break
			}
		}
		if st.CurrentID == "" && len(kept) > 0 {
			st.CurrentID = kept[0].ID
		}
	}

	if err := m.store.SaveState(ctx, userID, st); err != nil {
		lock.Unlock()
		return 0, err
	}
	lock.Unlock()

	if len(removedIDs) > 0 {
		metrics.SessionsDeleted.Add(float64(len(removedIDs)))
		if m.events != nil {
			m.events.SessionDeleted(userID, removedIDs)
		}
	}
	if len(removedConvIDs) > 0 {
		m.deleteBackendConversations(userID, removedConvIDs)
	}

	return len(removedIDs), nil
}

// ClearMessages 清空会话消息
func (m *Manager) ClearMessages(ctx context.Context, userID, sessionID string) error {
	return m.UpdateSession(ctx, userID, sessionID, SessionPatch{Messages: []models.Message{}})
}

// RemoveMessage 从会话中移除单条消息
func (m *Manager) RemoveMessage(ctx context.Context, userID, sessionID, messageID string) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	st, err := m.store.LoadState(ctx, userID)
	if err != nil {
		return err
	}

	idx := st.Find(sessionID)
	if idx < 0 {
		return nil
	}
	sess := &st.Sessions[idx]

	filtered := sess.Messages[:0]
	for _, msg := range sess.Messages {
		if msg.ID != messageID {
			filtered = append(filtered, msg)
		}
	}
	sess.Messages = filtered
	sess.UpdatedAt = nowMillis()

	return m.store.SaveState(ctx, userID, st)
}

// Hydrate 用后端对话列表补全本地会话
// 后端只是初始数据源：本地已有的会话保持不动，本地缺失的对话
// 以active状态追加到列表尾部。
func (m *Manager) Hydrate(ctx context.Context, userID, dialogID string) error {
	summaries, err := m.gateway.ListConversations(ctx, dialogID, userID)
	if err != nil {
		return errors.NewGatewayError("failed to list conversations", err)
	}

	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	st, err := m.store.LoadState(ctx, userID)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(st.Sessions))
	for i := range st.Sessions {
		if st.Sessions[i].ConversationID != "" {
			known[st.Sessions[i].ConversationID] = true
		}
	}

	added := 0
	for _, summary := range summaries {
		if known[summary.ID] {
			continue
		}
		now := nowMillis()
		st.Sessions = append(st.Sessions, models.Session{
			ID:             summary.ID,
			ConversationID: summary.ID,
			ModelCardID:    summary.ModelCardID,
			Name:           summary.Name,
			Messages:       []models.Message{},
			State:          models.SessionStateActive,
			CreatedAt:      summary.CreatedAt,
			UpdatedAt:      now,
		})
		added++
	}

	if added == 0 {
		return nil
	}

	m.logger.Info("hydrated sessions from backend",
		zap.String("user_id", userID),
		zap.Int("added", added))

	return m.store.SaveState(ctx, userID, st)
}

// GetState 返回用户会话状态快照（只读）
func (m *Manager) GetState(ctx context.Context, userID string) (*State, error) {
	return m.store.LoadState(ctx, userID)
}

// GetSession 按ID返回会话快照
func (m *Manager) GetSession(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	st, err := m.store.LoadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := st.Find(sessionID)
	if idx < 0 {
		return nil, errors.NewNotFoundError("session")
	}
	sess := st.Sessions[idx]
	return &sess, nil
}

// CurrentSession 返回当前会话快照，没有当前会话时返回nil
func (m *Manager) CurrentSession(ctx context.Context, userID string) (*models.Session, error) {
	st, err := m.store.LoadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st.CurrentID == "" {
		return nil, nil
	}
	idx := st.Find(st.CurrentID)
	if idx < 0 {
		return nil, nil
	}
	sess := st.Sessions[idx]
	return &sess, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
