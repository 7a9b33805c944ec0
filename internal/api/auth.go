package api

import (
	"bot-console-go/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AuthResponse 对应 GET /api/auth/user 的响应。
type AuthResponse struct {
	IsAuthenticated bool         `json:"is_authenticated"`
	User            *models.User `json:"user"`
}

// CheckAuth 向服务端校验当前会话是否有效。
func (c *Client) CheckAuth(ctx context.Context) (*AuthResponse, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/auth/user", nil, nil)
	if err != nil {
		return nil, err
	}
	var resp AuthResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("解析会话校验响应失败: %w", err)
	}
	return &resp, nil
}

// Logout 通知服务端注销会话。调用方将其视为尽力而为，失败不阻塞本地注销。
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/api/auth/logout", nil, nil)
	return err
}

// Health 探测服务端存活状态，供价格流断线时的兜底逻辑使用。
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/api/health", nil, nil)
	return err
}
