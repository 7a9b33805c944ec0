package api

import (
	"bot-console-go/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// BotParameters 是创建机器人请求中的策略参数部分。
type BotParameters struct {
	Symbol     string             `json:"symbol"`
	Investment float64            `json:"investment"`
	Grid       *models.GridParams `json:"grid,omitempty"`
	DCA        *models.DCAParams  `json:"dca,omitempty"`
	MACD       *models.MACDParams `json:"macd,omitempty"`
}

// CreateBotRequest 对应 POST /api/bots/create 的请求体。
type CreateBotRequest struct {
	Name        string              `json:"name"`
	Strategy    models.StrategyType `json:"strategy"`
	Description string              `json:"description,omitempty"`
	Parameters  BotParameters       `json:"parameters"`
}

// StatusResponse 是启动/停止接口返回的最新状态。
type StatusResponse struct {
	ID     string           `json:"id"`
	Status models.BotStatus `json:"status"`
}

// idempotencyHeader 携带客户端生成的幂等ID，服务端据此去重。
const idempotencyHeader = "X-Idempotency-Key"

// CreateBot 在服务端创建一个机器人。只有调用成功后机器人才算存在。
func (c *Client) CreateBot(ctx context.Context, req CreateBotRequest, idempotencyKey string) (*models.BotInstance, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/api/bots/create", req, idemHeaders(idempotencyKey))
	if err != nil {
		return nil, err
	}
	var bot models.BotInstance
	if err := json.Unmarshal(data, &bot); err != nil {
		return nil, fmt.Errorf("解析机器人创建响应失败: %w", err)
	}
	return &bot, nil
}

// StartBot 启动指定机器人。重复启动同一机器人由服务端保证幂等。
func (c *Client) StartBot(ctx context.Context, botID, idempotencyKey string) (*StatusResponse, error) {
	return c.toggleBot(ctx, botID, "start", idempotencyKey)
}

// StopBot 停止指定机器人。
func (c *Client) StopBot(ctx context.Context, botID, idempotencyKey string) (*StatusResponse, error) {
	return c.toggleBot(ctx, botID, "stop", idempotencyKey)
}

func (c *Client) toggleBot(ctx context.Context, botID, action, idempotencyKey string) (*StatusResponse, error) {
	endpoint := fmt.Sprintf("/api/bots/%s/%s", botID, action)
	data, err := c.doRequest(ctx, http.MethodPost, endpoint, nil, idemHeaders(idempotencyKey))
	if err != nil {
		return nil, err
	}
	var status StatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("解析状态响应失败: %w", err)
	}
	return &status, nil
}

// ResetAccount 重置模拟账户，返回重置后的账户快照。
func (c *Client) ResetAccount(ctx context.Context, idempotencyKey string) (*models.AccountSnapshot, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/api/account/reset", nil, idemHeaders(idempotencyKey))
	if err != nil {
		return nil, err
	}
	var snapshot models.AccountSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("解析账户快照失败: %w", err)
	}
	return &snapshot, nil
}

// SaveCredentials 保存用户的交易所API凭据。
func (c *Client) SaveCredentials(ctx context.Context, creds models.ExchangeCredentials, idempotencyKey string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/api/account/credentials", creds, idemHeaders(idempotencyKey))
	return err
}

func idemHeaders(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{idempotencyHeader: key}
}
