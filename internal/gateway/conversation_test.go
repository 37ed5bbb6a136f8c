package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/freechat/session-go/internal/errors"
	"github.com/freechat/session-go/internal/models"
	"github.com/freechat/session-go/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-key", 5*time.Second, 30*time.Second, zap.NewNop())
}

func TestCreateConversation(t *testing.T) {
	var received map[string]interface{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/conversation/set", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"data": map[string]string{"id": "conv-77"},
		})
	}))

	id, err := client.CreateConversation(context.Background(), &session.CreateConversationRequest{
		DialogID:       "dlg-1",
		Name:           "New chat",
		ModelCardID:    3,
		InitialMessage: models.Message{ID: "m1", Role: models.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "conv-77", id)

	assert.Equal(t, "dlg-1", received["dialog_id"])
	assert.Equal(t, true, received["is_new"])
	msgs, ok := received["message"].([]interface{})
	require.True(t, ok)
	assert.Len(t, msgs, 1)
}

func TestCreateConversation_EmptyID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"data": map[string]string{"id": ""},
		})
	}))

	_, err := client.CreateConversation(context.Background(), &session.CreateConversationRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty conversation id")
}

func TestUnauthorizedRetcodeMapsToAuthorizationError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    401,
			"message": "team not authorized",
		})
	}))

	_, err := client.CreateConversation(context.Background(), &session.CreateConversationRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsAuthorization(err))
	assert.Equal(t, errors.ErrCodeTeamUnauthorized, errors.GetAppError(err).Code)
}

func TestRenameConversation(t *testing.T) {
	var received map[string]interface{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 0})
	}))

	require.NoError(t, client.RenameConversation(context.Background(), "conv-1", "renamed"))
	assert.Equal(t, "conv-1", received["conversation_id"])
	assert.Equal(t, "renamed", received["name"])
	assert.Equal(t, false, received["is_new"])
}

func TestDeleteConversations(t *testing.T) {
	var received map[string]interface{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/conversation/rm", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 0})
	}))

	require.NoError(t, client.DeleteConversations(context.Background(), []string{"a", "b"}))
	ids, ok := received["conversation_ids"].([]interface{})
	require.True(t, ok)
	assert.Len(t, ids, 2)
}

func TestListConversations(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/conversation/list", r.URL.Path)
		assert.Equal(t, "dlg-1", r.URL.Query().Get("dialog_id"))
		assert.Equal(t, "u1", r.URL.Query().Get("user_id"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"data": []map[string]interface{}{
				{"id": "conv-1", "name": "first"},
				{"id": "conv-2", "name": "second", "model_card_id": 4},
			},
		})
	}))

	summaries, err := client.ListConversations(context.Background(), "dlg-1", "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "conv-1", summaries[0].ID)
	require.NotNil(t, summaries[1].ModelCardID)
	assert.Equal(t, 4, *summaries[1].ModelCardID)
}

func TestNon200StatusIsError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := client.DeleteConversations(context.Background(), []string{"a"})
	require.Error(t, err)
}
