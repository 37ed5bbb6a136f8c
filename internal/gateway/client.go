package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/freechat/session-go/internal/errors"
)

// 后端响应码
const (
	retcodeSuccess      = 0
	retcodeUnauthorized = 401 // 用户不属于当前团队，前端收到后跳转未授权页
)

// Client 对话后端客户端
// 对话的创建/改名/删除/列表和设置的读写都走这里，
// 流式补全见completion.go。
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	streamTimeout time.Duration
	logger        *zap.Logger
}

// NewClient 创建对话后端客户端
func NewClient(baseURL, apiKey string, timeout, streamTimeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if streamTimeout <= 0 {
		streamTimeout = 5 * time.Minute
	}
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: timeout},
		streamTimeout: streamTimeout,
		logger:        logger,
	}
}

// envelope 后端统一响应包
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// post 发送JSON请求并解包响应
func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	switch env.Code {
	case retcodeSuccess:
	case retcodeUnauthorized:
		return errors.NewAuthorizationError(env.Message)
	default:
		return fmt.Errorf("backend error %d: %s", env.Code, env.Message)
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
