package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/freechat/session-go/internal/debounce"
	"github.com/freechat/session-go/internal/metrics"
	"github.com/freechat/session-go/internal/models"
)

// Synchronizer 消息同步器
// 展示消息列表与会话持久化列表解耦，流式输出只刷新展示列表，
// 回写经过防抖，避免每个token都落一次存储。
type Synchronizer struct {
	store    Store
	manager  *Manager
	logger   *zap.Logger
	clock    debounce.Clock
	window   time.Duration
	cooldown time.Duration

	mu    sync.Mutex
	users map[string]*userSync
}

type userSync struct {
	lastLoadedID  string
	debouncer     *debounce.Debouncer
	cooldownUntil time.Time
}

// NewSynchronizer 创建消息同步器
// cooldown应略长于window，抑制回写窗口期内的重入同步。
func NewSynchronizer(store Store, manager *Manager, clock debounce.Clock, window, cooldown time.Duration, logger *zap.Logger) *Synchronizer {
	if clock == nil {
		clock = debounce.NewRealClock()
	}
	if window <= 0 {
		window = 300 * time.Millisecond
	}
	if cooldown <= window {
		cooldown = window + 700*time.Millisecond
	}
	return &Synchronizer{
		store:    store,
		manager:  manager,
		logger:   logger,
		clock:    clock,
		window:   window,
		cooldown: cooldown,
		users:    make(map[string]*userSync),
	}
}

func (s *Synchronizer) userSync(userID string) *userSync {
	s.mu.Lock()
	defer s.mu.Unlock()

	us, ok := s.users[userID]
	if !ok {
		us = &userSync{
			debouncer: debounce.NewDebouncer(s.clock, s.window),
		}
		s.users[userID] = us
	}
	return us
}

// LoadSession 会话→展示：把会话的持久化消息加载进展示列表
// 按会话ID判重：重复加载同一会话直接返回现有展示列表，
// 会话列表的其他变更不会触发重载，只有切换会话才会。
func (s *Synchronizer) LoadSession(ctx context.Context, userID, sessionID string) ([]models.Message, error) {
	us := s.userSync(userID)

	s.mu.Lock()
	alreadyLoaded := us.lastLoadedID == sessionID
	s.mu.Unlock()

	if alreadyLoaded {
		return s.store.LoadDisplay(ctx, userID)
	}

	sess, err := s.manager.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	messages := sess.CloneMessages()
	if messages == nil {
		messages = []models.Message{}
	}
	if err := s.store.SaveDisplay(ctx, userID, messages); err != nil {
		return nil, err
	}

	s.mu.Lock()
	us.lastLoadedID = sessionID
	// 切换会话时取消上一个会话挂起的回写
	us.debouncer.Cancel()
	us.cooldownUntil = time.Time{}
	s.mu.Unlock()

	return messages, nil
}

// SetDisplayed 展示→会话：更新展示列表并按需调度回写
// 与会话持久化消息逐条比对（长度+每项的ID/内容），无差异时不调度回写。
// 草稿会话完全跳过回写，草稿消息只有晋升成功后才进入持久化存储。
func (s *Synchronizer) SetDisplayed(ctx context.Context, userID string, messages []models.Message) error {
	if err := s.store.SaveDisplay(ctx, userID, messages); err != nil {
		return err
	}

	us := s.userSync(userID)
	s.mu.Lock()
	sessionID := us.lastLoadedID
	inCooldown := s.clock.Now().Before(us.cooldownUntil)
	s.mu.Unlock()

	if sessionID == "" || inCooldown {
		return nil
	}

	sess, err := s.manager.GetSession(ctx, userID, sessionID)
	if err != nil {
		// 会话已删除，展示列表成为孤儿，不再回写
		return nil
	}

	if sess.IsDraft() {
		return nil
	}
	if messagesEqual(sess.Messages, messages) {
		return nil
	}

	snapshot := make([]models.Message, len(messages))
	copy(snapshot, messages)

	us.debouncer.Schedule(func() {
		s.flush(userID, sessionID, snapshot)
	})
	return nil
}

// flush 把展示列表回写进会话并进入冷却期
func (s *Synchronizer) flush(userID, sessionID string, messages []models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.manager.UpdateSession(ctx, userID, sessionID, SessionPatch{Messages: messages}); err != nil {
		s.logger.Error("failed to flush display messages into session",
			zap.String("user_id", userID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return
	}

	us := s.userSync(userID)
	s.mu.Lock()
	us.cooldownUntil = s.clock.Now().Add(s.cooldown)
	s.mu.Unlock()

	metrics.SyncFlushes.Inc()
}

// SyncAfterPromotion 晋升成功后的一次性同步
// 把晋升期间积累的展示消息立即带入新的活跃会话，不走防抖。
func (s *Synchronizer) SyncAfterPromotion(ctx context.Context, userID, conversationID string) error {
	display, err := s.store.LoadDisplay(ctx, userID)
	if err != nil {
		return err
	}

	us := s.userSync(userID)
	s.mu.Lock()
	us.lastLoadedID = conversationID
	us.debouncer.Cancel()
	s.mu.Unlock()

	if len(display) == 0 {
		return nil
	}
	return s.manager.UpdateSession(ctx, userID, conversationID, SessionPatch{Messages: display})
}

// AppendDisplayed 向展示列表追加一条消息
func (s *Synchronizer) AppendDisplayed(ctx context.Context, userID string, msg models.Message) ([]models.Message, error) {
	display, err := s.store.LoadDisplay(ctx, userID)
	if err != nil {
		return nil, err
	}
	display = append(display, msg)
	if err := s.SetDisplayed(ctx, userID, display); err != nil {
		return nil, err
	}
	return display, nil
}

// ApplyChunk 把流式增量内容套用到展示列表中的消息上
// 按到达顺序整条覆盖，后到的覆盖先到的；中止后不再调用即可，
// 已套用的内容不回退。
func (s *Synchronizer) ApplyChunk(ctx context.Context, userID, messageID, content string, reference []models.Reference) error {
	display, err := s.store.LoadDisplay(ctx, userID)
	if err != nil {
		return err
	}

	for i := range display {
		if display[i].ID == messageID {
			display[i].Content = content
			if reference != nil {
				display[i].Reference = reference
			}
			return s.SetDisplayed(ctx, userID, display)
		}
	}
	return nil
}

// RollbackMessage 发送失败回滚
// 从展示列表移除该消息并返回其文本，调用方把文本恢复到输入框。
func (s *Synchronizer) RollbackMessage(ctx context.Context, userID, messageID string) (string, error) {
	display, err := s.store.LoadDisplay(ctx, userID)
	if err != nil {
		return "", err
	}

	content := ""
	filtered := display[:0]
	for _, msg := range display {
		if msg.ID == messageID {
			content = msg.Content
			continue
		}
		filtered = append(filtered, msg)
	}
	if err := s.store.SaveDisplay(ctx, userID, filtered); err != nil {
		return "", err
	}
	return content, nil
}

// Displayed 返回当前展示列表
func (s *Synchronizer) Displayed(ctx context.Context, userID string) ([]models.Message, error) {
	return s.store.LoadDisplay(ctx, userID)
}

// messagesEqual 长度和每项的ID/内容都一致才算相等
func messagesEqual(a, b []models.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Content != b[i].Content {
			return false
		}
	}
	return true
}
