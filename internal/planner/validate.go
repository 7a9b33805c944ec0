package planner

import (
	"bot-console-go/internal/models"
)

// ValidateBotConfig checks a bot configuration before creation is attempted.
// A non-nil error is always a *ConfigError naming the offending field; the
// caller must not send the config to the server when validation fails.
func ValidateBotConfig(cfg *models.BotConfig) error {
	if cfg.Name == "" {
		return &ConfigError{Field: "name", Reason: "名称不能为空"}
	}
	if cfg.Symbol == "" {
		return &ConfigError{Field: "symbol", Reason: "交易对不能为空"}
	}
	if cfg.Investment <= 0 {
		return &ConfigError{Field: "investment", Reason: "投资额必须大于0"}
	}

	switch cfg.Strategy {
	case models.StrategyGrid, models.StrategyAIGrid:
		if cfg.Grid == nil {
			return &ConfigError{Field: "grid", Reason: "缺少网格参数"}
		}
		// AI-Grid 的边界由服务端动态调整，但初始边界同样要合法
		_, err := ComputePlan(cfg.Grid.LowerPrice, cfg.Grid.UpperPrice, cfg.Grid.GridCount)
		return err
	case models.StrategyDCA:
		if cfg.DCA == nil {
			return &ConfigError{Field: "dca", Reason: "缺少定投参数"}
		}
		if cfg.DCA.IntervalHours <= 0 {
			return &ConfigError{Field: "dca.interval_hours", Reason: "买入间隔必须大于0"}
		}
		if cfg.DCA.PurchaseAmount <= 0 {
			return &ConfigError{Field: "dca.purchase_amount", Reason: "每次买入金额必须大于0"}
		}
		return nil
	case models.StrategyMACD:
		if cfg.MACD == nil {
			return &ConfigError{Field: "macd", Reason: "缺少MACD参数"}
		}
		if cfg.MACD.FastPeriod <= 0 || cfg.MACD.SlowPeriod <= 0 || cfg.MACD.SignalPeriod <= 0 {
			return &ConfigError{Field: "macd", Reason: "周期参数必须大于0"}
		}
		if cfg.MACD.FastPeriod >= cfg.MACD.SlowPeriod {
			return &ConfigError{Field: "macd.fast_period", Reason: "快线周期必须小于慢线周期"}
		}
		if cfg.MACD.TakeProfitRate <= 0 || cfg.MACD.StopLossRate <= 0 {
			return &ConfigError{Field: "macd", Reason: "止盈止损比例必须大于0"}
		}
		return nil
	default:
		return &ConfigError{Field: "strategy", Reason: "未知的策略类型"}
	}
}
