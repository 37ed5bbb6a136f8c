package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/freechat/session-go/internal/debounce"
	"github.com/freechat/session-go/internal/models"
)

const (
	testWindow   = 300 * time.Millisecond
	testCooldown = time.Second
)

func newTestSynchronizer(t *testing.T) (*Synchronizer, *Manager, *MemoryStore, *debounce.VirtualClock) {
	t.Helper()
	store := NewMemoryStore()
	manager := NewManager(store, &fakeGateway{}, nil, zap.NewNop())
	clock := debounce.NewVirtualClock(time.Unix(0, 0))
	sync := NewSynchronizer(store, manager, clock, testWindow, testCooldown, zap.NewNop())
	return sync, manager, store, clock
}

func activeSessionWithMessages(t *testing.T, m *Manager, userID string, msgs []models.Message) *models.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := m.CreateSession(ctx, userID, CreateOptions{ConversationID: "conv-" + userID})
	require.NoError(t, err)
	require.NoError(t, m.UpdateSession(ctx, userID, sess.ID, SessionPatch{Messages: msgs}))
	out, err := m.GetSession(ctx, userID, sess.ID)
	require.NoError(t, err)
	return out
}

func TestLoadSession_GuardedByLastLoadedID(t *testing.T) {
	sync, m, _, _ := newTestSynchronizer(t)
	ctx := context.Background()

	msgs := []models.Message{{ID: "m1", Role: models.RoleUser, Content: "hi"}}
	sess := activeSessionWithMessages(t, m, "u1", msgs)

	loaded, err := sync.LoadSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, msgs, loaded)

	// 展示列表继续演进
	extra := append(loaded, models.Message{ID: "m2", Role: models.RoleAssistant, Content: "yo"})
	require.NoError(t, sync.SetDisplayed(ctx, "u1", extra))

	// 同一会话的重复加载不得覆盖展示列表
	again, err := sync.LoadSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestLoadSession_SwitchReplacesDisplay(t *testing.T) {
	sync, m, _, _ := newTestSynchronizer(t)
	ctx := context.Background()

	a := activeSessionWithMessages(t, m, "u1", []models.Message{{ID: "a1", Content: "from a"}})
	b, err := m.CreateSession(ctx, "u1", CreateOptions{ConversationID: "conv-b"})
	require.NoError(t, err)
	require.NoError(t, m.UpdateSession(ctx, "u1", b.ID, SessionPatch{
		Messages: []models.Message{{ID: "b1", Content: "from b"}},
	}))

	_, err = sync.LoadSession(ctx, "u1", a.ID)
	require.NoError(t, err)

	loaded, err := sync.LoadSession(ctx, "u1", b.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "b1", loaded[0].ID)
}

func TestSetDisplayed_DebouncedFlushIntoSession(t *testing.T) {
	sync, m, _, clock := newTestSynchronizer(t)
	ctx := context.Background()

	msgs := []models.Message{{ID: "m1", Role: models.RoleUser, Content: "hi"}}
	sess := activeSessionWithMessages(t, m, "u1", msgs)
	_, err := sync.LoadSession(ctx, "u1", sess.ID)
	require.NoError(t, err)

	changed := []models.Message{
		{ID: "m1", Role: models.RoleUser, Content: "hi"},
		{ID: "m2", Role: models.RoleAssistant, Content: "answer"},
	}
	require.NoError(t, sync.SetDisplayed(ctx, "u1", changed))

	// 窗口未到，会话未更新
	got, err := m.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)

	clock.Advance(testWindow)

	got, err = m.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, changed, got.Messages)
}

func TestSetDisplayed_RescheduleKeepsLatestSnapshot(t *testing.T) {
	sync, m, _, clock := newTestSynchronizer(t)
	ctx := context.Background()

	sess := activeSessionWithMessages(t, m, "u1", []models.Message{{ID: "m1", Content: "v1"}})
	_, err := sync.LoadSession(ctx, "u1", sess.ID)
	require.NoError(t, err)

	require.NoError(t, sync.SetDisplayed(ctx, "u1", []models.Message{{ID: "m1", Content: "v2"}}))
	clock.Advance(testWindow / 2)
	require.NoError(t, sync.SetDisplayed(ctx, "u1", []models.Message{{ID: "m1", Content: "v3"}}))
	clock.Advance(testWindow)

	got, err := m.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "v3", got.Messages[0].Content)
}

func TestSetDisplayed_NoDiffNoFlush(t *testing.T) {
	sync, m, _, clock := newTestSynchronizer(t)
	ctx := context.Background()

	msgs := []models.Message{{ID: "m1", Role: models.RoleUser, Content: "hi"}}
	sess := activeSessionWithMessages(t, m, "u1", msgs)
	_, err := sync.LoadSession(ctx, "u1", sess.ID)
	require.NoError(t, err)

	require.NoError(t, sync.SetDisplayed(ctx, "u1", msgs))
	assert.Zero(t, clock.PendingCount(), "identical content must not schedule a write-back")
}

func TestSetDisplayed_CooldownSuppressesResync(t *testing.T) {
	sync, m, _, clock := newTestSynchronizer(t)
	ctx := context.Background()

	sess := activeSessionWithMessages(t, m, "u1", []models.Message{{ID: "m1", Content: "v1"}})
	_, err := sync.LoadSession(ctx, "u1", sess.ID)
	require.NoError(t, err)

	require.NoError(t, sync.SetDisplayed(ctx, "u1", []models.Message{{ID: "m1", Content: "v2"}}))
	clock.Advance(testWindow)

	// 冷却期内的变更不调度回写
	require.NoError(t, sync.SetDisplayed(ctx, "u1", []models.Message{{ID: "m1", Content: "v3"}}))
	assert.Zero(t, clock.PendingCount())

	// 冷却结束后恢复正常
	clock.Advance(testCooldown)
	require.NoError(t, sync.SetDisplayed(ctx, "u1", []models.Message{{ID: "m1", Content: "v4"}}))
	clock.Advance(testWindow)

	got, err := m.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "v4", got.Messages[0].Content)
}

func TestSetDisplayed_DraftIsolation(t *testing.T) {
	sync, m, _, clock := newTestSynchronizer(t)
	ctx := context.Background()

	card := 1
	draft, err := m.CreateSession(ctx, "u1", CreateOptions{Draft: true, ModelCardID: &card})
	require.NoError(t, err)
	_, err = sync.LoadSession(ctx, "u1", draft.ID)
	require.NoError(t, err)

	require.NoError(t, sync.SetDisplayed(ctx, "u1", []models.Message{{ID: "m1", Content: "draft talk"}}))
	clock.Advance(testWindow * 2)

	got, err := m.GetSession(ctx, "u1", draft.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages, "draft messages must never reach the session store before promotion")
}

func TestSyncAfterPromotion_ImmediateCarryOver(t *testing.T) {
	sync, m, store, _ := newTestSynchronizer(t)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, "u1", CreateOptions{ConversationID: "conv-new"})
	require.NoError(t, err)

	display := []models.Message{
		{ID: "m1", Role: models.RoleUser, Content: "first"},
		{ID: "m2", Role: models.RoleAssistant, Content: "reply"},
	}
	require.NoError(t, store.SaveDisplay(ctx, "u1", display))

	require.NoError(t, sync.SyncAfterPromotion(ctx, "u1", sess.ID))

	got, err := m.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, display, got.Messages)

	// 晋升同步后该会话视为已加载，重复加载不会覆盖展示列表
	loaded, err := sync.LoadSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, display, loaded)
}

func TestApplyChunk_LastWins(t *testing.T) {
	sync, m, _, _ := newTestSynchronizer(t)
	ctx := context.Background()

	sess := activeSessionWithMessages(t, m, "u1", nil)
	_, err := sync.LoadSession(ctx, "u1", sess.ID)
	require.NoError(t, err)

	_, err = sync.AppendDisplayed(ctx, "u1", models.Message{ID: "a1", Role: models.RoleAssistant})
	require.NoError(t, err)

	require.NoError(t, sync.ApplyChunk(ctx, "u1", "a1", "partial", nil))
	refs := []models.Reference{{DocumentID: "d1", DocumentName: "doc"}}
	require.NoError(t, sync.ApplyChunk(ctx, "u1", "a1", "partial answer, complete", refs))

	display, err := sync.Displayed(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, display, 1)
	assert.Equal(t, "partial answer, complete", display[0].Content)
	assert.Equal(t, refs, display[0].Reference)
}

func TestRollbackMessage_RestoresInput(t *testing.T) {
	sync, _, store, _ := newTestSynchronizer(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDisplay(ctx, "u1", []models.Message{
		{ID: "m1", Role: models.RoleUser, Content: "failed send"},
		{ID: "m2", Role: models.RoleAssistant, Content: "kept"},
	}))

	content, err := sync.RollbackMessage(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "failed send", content)

	display, err := sync.Displayed(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, display, 1)
	assert.Equal(t, "m2", display[0].ID)
}
