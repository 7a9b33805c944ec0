// Package api 封装了与机器人服务端的全部 JSON-over-HTTP 通信。
package api

import (
	"bot-console-go/internal/models"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client 是机器人服务端REST API的HTTP客户端。
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient 创建一个新的 Client 实例。authToken 为空时以匿名身份访问。
func NewClient(baseURL, authToken string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// SetAuthToken 更新后续请求携带的会话令牌。
func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

// doRequest 是一个通用的请求处理函数，用于向服务端API发送请求。
// GET 请求忽略 body；其余方法将 body 序列化为 JSON。
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}, headers map[string]string) ([]byte, error) {
	fullURL := fmt.Sprintf("%s%s", c.baseURL, endpoint)

	var reader io.Reader
	if body != nil && method != http.MethodGet {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("序列化请求体失败: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("发送请求", zap.String("method", method), zap.String("url", fullURL))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("执行请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		// 服务端的结构化错误信封是 {code, msg}；解析失败时退化为裸状态码错误
		var apiErr models.APIError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Msg != "" {
			apiErr.StatusCode = resp.StatusCode
			return respBody, &apiErr
		}
		return respBody, fmt.Errorf("API请求失败, 状态码: %d, 响应: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
