package market

import (
	"bot-console-go/internal/api"
	"bot-console-go/internal/cache"
	"bot-console-go/internal/models"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PriceFeed 通过WebSocket订阅服务端的实时成交价流，并将价格作为权威值
// 写入资源缓存；流断开期间由缓存的常规轮询兜底。
type PriceFeed struct {
	wsBaseURL string
	symbol    string
	cache     *cache.Cache
	logger    *zap.SugaredLogger

	conn        *websocket.Conn
	stopChannel chan struct{}
}

// NewPriceFeed 创建一个价格流实例。
func NewPriceFeed(wsBaseURL, symbol string, c *cache.Cache, logger *zap.SugaredLogger) *PriceFeed {
	return &PriceFeed{
		wsBaseURL:   wsBaseURL,
		symbol:      symbol,
		cache:       c,
		logger:      logger,
		stopChannel: make(chan struct{}),
	}
}

// Start 启动守护循环，负责维持连接和断线重连。
func (f *PriceFeed) Start() {
	go f.loop()
}

// Stop 停止价格流。
func (f *PriceFeed) Stop() {
	close(f.stopChannel)
}

func (f *PriceFeed) connect() error {
	wsURL := fmt.Sprintf("%s/ws/price/%s", f.wsBaseURL, strings.ToLower(f.symbol))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("WebSocket连接失败: %w", err)
	}
	f.conn = conn
	return nil
}

// loop 是一个守护进程，负责维持WebSocket的连接和重连
func (f *PriceFeed) loop() {
	for {
		select {
		case <-f.stopChannel:
			f.logger.Info("价格流循环已停止。")
			return
		default:
			if err := f.connect(); err != nil {
				f.logger.Warnf("价格流连接失败: %v。5秒后重试...", err)
				select {
				case <-time.After(5 * time.Second):
				case <-f.stopChannel:
					return
				}
				continue
			}

			f.logger.Info("价格流连接成功。")
			// handleMessages会阻塞直到连接断开
			if err := f.handleMessages(); err != nil {
				f.logger.Warnf("价格流处理时发生错误: %v", err)
			}
			if f.conn != nil {
				f.conn.Close()
			}
			f.logger.Info("价格流连接已断开，准备重连...")
			select {
			case <-time.After(5 * time.Second):
			case <-f.stopChannel:
				return
			}
		}
	}
}

// handleMessages 为一个已建立的连接处理消息，并实现心跳机制
func (f *PriceFeed) handleMessages() error {
	const (
		pongWait   = 60 * time.Second
		pingPeriod = (pongWait * 9) / 10 // Must be less than pongWait
	)

	// 设置Pong处理器来延长读取超时
	f.conn.SetReadDeadline(time.Now().Add(pongWait))
	f.conn.SetPongHandler(func(string) error {
		f.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	pingStop := make(chan struct{})
	defer close(pingStop)

	go func() {
		for {
			select {
			case <-pingTicker.C:
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.logger.Warnf("发送Ping失败: %v", err)
					return
				}
			case <-pingStop:
				return
			case <-f.stopChannel:
				return
			}
		}
	}()

	for {
		select {
		case <-f.stopChannel:
			err := f.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				return fmt.Errorf("发送WebSocket关闭帧失败: %w", err)
			}
			return nil
		default:
			_, message, err := f.conn.ReadMessage()
			if err != nil {
				// 任何读取错误都意味着连接已损坏，返回错误让 loop 处理重连
				return fmt.Errorf("读取消息失败: %w", err)
			}

			var tick struct {
				Symbol string      `json:"symbol"`
				Price  json.Number `json:"price"`
				Time   int64       `json:"time"`
			}
			if err := json.Unmarshal(message, &tick); err != nil {
				f.logger.Warnf("解析价格信息失败: %v", err)
				continue
			}

			price, err := tick.Price.Float64()
			if err != nil {
				f.logger.Warnf("转换价格失败: %v", err)
				continue
			}

			f.publish(price, tick.Time)
		}
	}
}

// publish 将最新价格作为权威值写入缓存，推送给所有订阅方。
func (f *PriceFeed) publish(price float64, tsMillis int64) {
	updatedAt := time.Now()
	if tsMillis > 0 {
		updatedAt = time.UnixMilli(tsMillis)
	}
	ticker := models.PriceTicker{
		Symbol:    f.symbol,
		Price:     price,
		UpdatedAt: updatedAt,
	}
	payload, err := json.Marshal(&ticker)
	if err != nil {
		f.logger.Warnf("序列化价格失败: %v", err)
		return
	}
	f.cache.Publish(api.PriceKey(f.symbol), payload)
}
