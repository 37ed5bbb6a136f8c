package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/freechat/session-go/internal/errors"
)

func sseHandler(t *testing.T, lines []string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/conversation/completion", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, line := range lines {
			fmt.Fprintf(w, "data:%s\n\n", line)
			flusher.Flush()
		}
	})
}

func TestStreamCompletion_ChunksAndDone(t *testing.T) {
	client := newTestClient(t, sseHandler(t, []string{
		`{"code":0,"data":{"answer":"Hel"}}`,
		`{"code":0,"data":{"answer":"Hello","reference":[{"document_id":"d1","document_name":"doc","content":"src"}]}}`,
		`{"code":0,"data":true}`,
	}))

	var chunks []CompletionChunk
	err := client.StreamCompletion(context.Background(), &CompletionRequest{ConversationID: "conv-1"}, func(chunk CompletionChunk) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	// 每个增量都是到目前为止的完整回答
	assert.Equal(t, "Hel", chunks[0].Answer)
	assert.Equal(t, "Hello", chunks[1].Answer)
	require.Len(t, chunks[1].Reference, 1)
	assert.Equal(t, "d1", chunks[1].Reference[0].DocumentID)
}

func TestStreamCompletion_SkipsMalformedEvents(t *testing.T) {
	client := newTestClient(t, sseHandler(t, []string{
		`not json`,
		`{"code":0,"data":{"answer":"ok"}}`,
		`{"code":0,"data":true}`,
	}))

	var chunks []CompletionChunk
	err := client.StreamCompletion(context.Background(), &CompletionRequest{}, func(chunk CompletionChunk) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "ok", chunks[0].Answer)
}

func TestStreamCompletion_ErrorEvent(t *testing.T) {
	client := newTestClient(t, sseHandler(t, []string{
		`{"code":500,"message":"model unavailable"}`,
	}))

	err := client.StreamCompletion(context.Background(), &CompletionRequest{}, func(CompletionChunk) error {
		t.Fatal("no chunk expected")
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.IsGateway(err))
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestStreamCompletion_OnChunkErrorStops(t *testing.T) {
	client := newTestClient(t, sseHandler(t, []string{
		`{"code":0,"data":{"answer":"a"}}`,
		`{"code":0,"data":{"answer":"ab"}}`,
		`{"code":0,"data":true}`,
	}))

	wantErr := fmt.Errorf("sink full")
	err := client.StreamCompletion(context.Background(), &CompletionRequest{}, func(CompletionChunk) error {
		return wantErr
	})
	assert.Equal(t, wantErr, err)
}

func TestStreamCompletion_AbortMapsToStreamAborted(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data:{\"code\":0,\"data\":{\"answer\":\"partial\"}}\n\n")
		flusher.Flush()
		close(started)
		// 挂住连接直到客户端断开
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second, 30*time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err := client.StreamCompletion(ctx, &CompletionRequest{}, func(CompletionChunk) error {
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStreamAborted, errors.GetAppError(err).Code)
}

func TestStreamCompletion_Non200(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	err := client.StreamCompletion(context.Background(), &CompletionRequest{}, func(CompletionChunk) error {
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.IsGateway(err))
}
