package session

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/freechat/session-go/internal/models"
)

func newMockDBStore(t *testing.T) (*DBStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	store, err := NewDBStore(gdb)
	require.NoError(t, err)
	return store, mock
}

func TestDBStore_LoadState_Empty(t *testing.T) {
	store, mock := newMockDBStore(t)

	mock.ExpectQuery(`SELECT \* FROM "chat_sessions"`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}))
	mock.ExpectQuery(`SELECT \* FROM "chat_session_pointers"`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "current_session_id"}))

	st, err := store.LoadState(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, st.Sessions)
	assert.Empty(t, st.CurrentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStore_LoadState_DecodesRows(t *testing.T) {
	store, mock := newMockDBStore(t)

	sessionRows := sqlmock.NewRows([]string{
		"id", "user_id", "conversation_id", "model_card_id", "name", "state",
		"is_favorited", "messages", "params", "last_error", "position", "created_at", "updated_at",
	}).AddRow(
		"conv-1", "u1", "conv-1", 3, "my chat", "active",
		true, `[{"id":"m1","role":"user","content":"hi"}]`, `{"role_prompt":"be brief"}`, "", 0, 100, 200,
	).AddRow(
		"draft-1", "u1", "", nil, "New chat", "draft",
		false, "", "", "", 1, 300, 300,
	)

	mock.ExpectQuery(`SELECT \* FROM "chat_sessions"`).
		WithArgs("u1").
		WillReturnRows(sessionRows)
	mock.ExpectQuery(`SELECT \* FROM "chat_session_pointers"`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "current_session_id"}).
			AddRow("u1", "draft-1"))

	st, err := store.LoadState(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, st.Sessions, 2)

	active := st.Sessions[0]
	assert.Equal(t, "conv-1", active.ID)
	assert.Equal(t, models.SessionStateActive, active.State)
	assert.True(t, active.IsFavorited)
	require.Len(t, active.Messages, 1)
	assert.Equal(t, "hi", active.Messages[0].Content)
	require.NotNil(t, active.Params)
	assert.Equal(t, "be brief", active.Params.RolePrompt)

	draft := st.Sessions[1]
	assert.Equal(t, models.SessionStateDraft, draft.State)
	assert.Nil(t, draft.ModelCardID)
	assert.Empty(t, draft.Messages)

	assert.Equal(t, "draft-1", st.CurrentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStore_LoadDisplay_NotFound(t *testing.T) {
	store, mock := newMockDBStore(t)

	mock.ExpectQuery(`SELECT \* FROM "chat_display_cache"`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "messages"}))

	messages, err := store.LoadDisplay(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, messages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStore_LoadDisplay_DecodesMessages(t *testing.T) {
	store, mock := newMockDBStore(t)

	mock.ExpectQuery(`SELECT \* FROM "chat_display_cache"`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "messages", "updated_at"}).
			AddRow("u1", `[{"id":"m1","role":"assistant","content":"answer"}]`, 100))

	messages, err := store.LoadDisplay(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.RoleAssistant, messages[0].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStore_SaveDisplay_Upserts(t *testing.T) {
	store, mock := newMockDBStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "chat_display_cache"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.SaveDisplay(context.Background(), "u1", []models.Message{
		{ID: "m1", Role: models.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
