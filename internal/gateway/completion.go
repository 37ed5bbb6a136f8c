package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/freechat/session-go/internal/errors"
	"github.com/freechat/session-go/internal/metrics"
	"github.com/freechat/session-go/internal/models"
)

// CompletionRequest 流式补全请求
// 启用的知识库在发送时刻确定，随请求一起带给后端。
type CompletionRequest struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []models.Message `json:"messages"`
	ModelCardID    int              `json:"model_card_id"`
	KBIDs          []string         `json:"kb_ids,omitempty"`
	Temperature    *float64         `json:"temperature,omitempty"`
	TopP           *float64         `json:"top_p,omitempty"`
	RolePrompt     string           `json:"role_prompt,omitempty"`
}

// CompletionChunk 流式补全增量
// Answer是到目前为止的完整回答，后到的覆盖先到的。
type CompletionChunk struct {
	Answer    string             `json:"answer"`
	Reference []models.Reference `json:"reference,omitempty"`
}

// streamEvent 单个SSE事件的响应包，data为true时表示流结束
type streamEvent struct {
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// StreamCompletion 调用流式补全接口
// 每收到一个增量调用一次onChunk，收到done信号或流关闭后返回。
// ctx取消即中止：不再套用后续增量，已套用的内容不回退。
func (c *Client) StreamCompletion(ctx context.Context, req *CompletionRequest, onChunk func(CompletionChunk) error) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode completion request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.streamTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/conversation/completion", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	// 流式请求不能用带整体超时的客户端
	streamClient := &http.Client{}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		metrics.StreamRequests.WithLabelValues("error").Inc()
		return errors.NewGatewayError("completion request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.StreamRequests.WithLabelValues("error").Inc()
		return errors.NewGatewayError(fmt.Sprintf("completion returned status %d", resp.StatusCode), nil)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			c.logger.Warn("skipping malformed stream event")
			continue
		}
		if event.Code != retcodeSuccess {
			metrics.StreamRequests.WithLabelValues("error").Inc()
			return errors.NewGatewayError(fmt.Sprintf("stream error %d: %s", event.Code, event.Message), nil)
		}

		// done信号：data为布尔true
		var done bool
		if err := json.Unmarshal(event.Data, &done); err == nil && done {
			metrics.StreamRequests.WithLabelValues("done").Inc()
			return nil
		}

		var chunk CompletionChunk
		if err := json.Unmarshal(event.Data, &chunk); err != nil {
			c.logger.Warn("skipping undecodable stream chunk")
			continue
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			// 主动中止，不算网关错误
			metrics.StreamRequests.WithLabelValues("aborted").Inc()
			return &errors.AppError{
				Code:     errors.ErrCodeStreamAborted,
				Message:  "completion stream aborted",
				Type:     errors.ErrorTypeGateway,
				HTTPCode: 499,
				Cause:    ctx.Err(),
			}
		}
		metrics.StreamRequests.WithLabelValues("error").Inc()
		return errors.NewGatewayError("completion stream interrupted", err)
	}

	metrics.StreamRequests.WithLabelValues("done").Inc()
	return nil
}
