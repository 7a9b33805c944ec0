package models

import (
	"fmt"
	"time"
)

// Config 结构体定义了控制台的所有配置参数
type Config struct {
	ServerURL   string `json:"server_url"`    // 机器人服务端REST API基础地址
	ServerWSURL string `json:"server_ws_url"` // 机器人服务端WebSocket基础地址
	DBPath      string `json:"db_path"`       // 本地快照数据库路径

	// 各类资源的轮询间隔（秒），刷新节奏由客户端统一掌控
	BotsPollIntervalSec     int `json:"bots_poll_interval_sec"`     // 机器人列表/状态
	AccountPollIntervalSec  int `json:"account_poll_interval_sec"`  // 账户余额
	TradesPollIntervalSec   int `json:"trades_poll_interval_sec"`   // 成交历史
	PricePollIntervalSec    int `json:"price_poll_interval_sec"`    // 行情价格（WS流正常时作为兜底）
	SessionCheckIntervalSec int `json:"session_check_interval_sec"` // 会话校验间隔
	ReportIntervalSec       int `json:"report_interval_sec"`        // 状态报表打印间隔

	// 请求节流：每秒允许发往服务端的读取请求数上限
	FetchRatePerSec int `json:"fetch_rate_per_sec"`

	// 网格边界建议所用的K线回看窗口（小时）
	KlineLookbackHours int `json:"kline_lookback_hours"`

	// 需要跟踪行情的交易对列表，如 ["BTCUSDT", "ETHUSDT"]
	WatchSymbols []string `json:"watch_symbols"`

	LogConfig LogConfig `json:"log"` // 日志配置
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// StrategyType 定义了机器人支持的策略类型
type StrategyType string

const (
	StrategyGrid   StrategyType = "GRID"
	StrategyDCA    StrategyType = "DCA"
	StrategyMACD   StrategyType = "MACD"
	StrategyAIGrid StrategyType = "AI_GRID"
)

// BotStatus 定义了机器人在服务端的运行状态
type BotStatus string

const (
	BotStopped BotStatus = "STOPPED"
	BotRunning BotStatus = "RUNNING"
)

// GridParams 网格策略参数
type GridParams struct {
	UpperPrice float64 `json:"upper_price"` // 网格价格上界
	LowerPrice float64 `json:"lower_price"` // 网格价格下界
	GridCount  int     `json:"grid_count"`  // 网格线数量
}

// DCAParams 定投策略参数
type DCAParams struct {
	IntervalHours  int     `json:"interval_hours"`  // 买入间隔（小时）
	PurchaseAmount float64 `json:"purchase_amount"` // 每次买入金额 (USDT)
}

// MACDParams MACD策略参数
type MACDParams struct {
	FastPeriod     int     `json:"fast_period"`
	SlowPeriod     int     `json:"slow_period"`
	SignalPeriod   int     `json:"signal_period"`
	TakeProfitRate float64 `json:"take_profit_rate"` // 止盈百分比
	StopLossRate   float64 `json:"stop_loss_rate"`   // 止损百分比
}

// BotConfig 是创建机器人前由用户填写的完整配置
type BotConfig struct {
	Name        string       `json:"name"`
	Strategy    StrategyType `json:"strategy"`
	Symbol      string       `json:"symbol"`     // 交易对，如 "BTCUSDT"
	Investment  float64      `json:"investment"` // 总投资额 (USDT)
	Description string       `json:"description,omitempty"`

	// 策略特定参数，仅与 Strategy 对应的字段有效
	Grid *GridParams `json:"grid,omitempty"`
	DCA  *DCAParams  `json:"dca,omitempty"`
	MACD *MACDParams `json:"macd,omitempty"`
}

// BotInstance 是服务端返回的机器人实例
type BotInstance struct {
	ID                string    `json:"id"` // 服务端分配的唯一标识
	Config            BotConfig `json:"config"`
	Status            BotStatus `json:"status"`
	ProfitLoss        float64   `json:"profit_loss"`
	ProfitLossPercent float64   `json:"profit_loss_percent"`
	CreatedAt         time.Time `json:"created_at"`
}

// GridLevel 代表网格中的一个价格档位，由 planner 派生，不做持久化
type GridLevel struct {
	Index int     `json:"index"` // 1..N，按价格升序编号
	Price float64 `json:"price"`
}

// User 是服务端返回的用户身份信息
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SessionSnapshot 是进程级唯一的会话快照，仅由 SessionGuard 写入
type SessionSnapshot struct {
	User            *User     `json:"user"`
	IsAuthenticated bool      `json:"is_authenticated"`
	LastCheckedAt   time.Time `json:"last_checked_at"`
	Verified        bool      `json:"verified"` // false 表示快照来自本地兜底，尚未经服务端确认
}

// AssetBalance 账户中单一资产的余额
type AssetBalance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// AccountSnapshot 服务端返回的账户快照
type AccountSnapshot struct {
	TotalBalance     float64        `json:"total_balance"`
	AvailableBalance float64        `json:"available_balance"`
	Assets           []AssetBalance `json:"assets"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// TradeRecord 一笔已完成的成交记录
type TradeRecord struct {
	ID       string    `json:"id"`
	BotID    string    `json:"bot_id"`
	Symbol   string    `json:"symbol"`
	Side     string    `json:"side"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Profit   float64   `json:"profit"`
	Time     time.Time `json:"time"`
}

// PriceTicker 一个交易对的最新价格
type PriceTicker struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExchangeCredentials 用户交易所API凭据，由服务端加密存储
type ExchangeCredentials struct {
	Exchange  string `json:"exchange"` // "BINANCE" 或 "OKX"
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
}

// APIError 定义了服务端API返回的错误信息结构
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
}

// Error 方法使得 APIError 实现了 error 接口
func (e *APIError) Error() string {
	return fmt.Sprintf("API Error: status=%d, code=%d, msg=%s", e.StatusCode, e.Code, e.Msg)
}
