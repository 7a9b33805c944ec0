package api

import (
	"bot-console-go/internal/cache"
	"context"
	"encoding/json"
	"net/http"
)

// 控制台关注的各类服务端资源的键。所有组件通过这些构造函数寻址缓存条目，
// 保证同一资源在任何地方都落在同一个缓存键上。

// BotsListKey 机器人列表资源。
func BotsListKey() cache.Key {
	return cache.NewKey("/bots", nil)
}

// BotStatusKey 单个机器人的状态资源。
func BotStatusKey(botID string) cache.Key {
	return cache.NewKey("/bots/status", map[string]string{"id": botID})
}

// AccountKey 账户余额资源。
func AccountKey() cache.Key {
	return cache.NewKey("/account", nil)
}

// TradesKey 成交历史资源。
func TradesKey() cache.Key {
	return cache.NewKey("/trades", nil)
}

// PriceKey 某交易对的最新价格资源。
func PriceKey(symbol string) cache.Key {
	return cache.NewKey("/market/price", map[string]string{"symbol": symbol})
}

// FetchResource 按缓存键的规范形式读取通用资源，返回原始JSON负载。
func (c *Client) FetchResource(ctx context.Context, key cache.Key) (json.RawMessage, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/resource"+key.String(), nil, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// ResourceFetcher 将某个资源键绑定成缓存可用的 Fetcher。
func (c *Client) ResourceFetcher(key cache.Key) cache.Fetcher {
	return func(ctx context.Context) (json.RawMessage, error) {
		return c.FetchResource(ctx, key)
	}
}
