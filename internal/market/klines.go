package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
)

// BoundsSuggestion 是根据近期行情给出的网格边界建议
type BoundsSuggestion struct {
	Symbol     string
	LowerPrice float64 // 回看窗口内的最低价
	UpperPrice float64 // 回看窗口内的最高价
	LastClose  float64
}

// BoundsAdvisor 用币安公开K线接口为网格策略建议上下边界。
// 公共接口不需要API Key。
type BoundsAdvisor struct {
	client *binance.Client
}

// NewBoundsAdvisor 创建一个边界建议器实例
func NewBoundsAdvisor() *BoundsAdvisor {
	return &BoundsAdvisor{
		client: binance.NewClient("", ""),
	}
}

// SuggestBounds 拉取指定交易对最近 lookback 窗口的1小时K线，
// 返回窗口内的最高/最低价作为网格边界建议。
// 这只是一个起点建议，用户提交前仍会经过 planner 校验。
func (a *BoundsAdvisor) SuggestBounds(ctx context.Context, symbol string, lookback time.Duration) (*BoundsSuggestion, error) {
	startTime := time.Now().Add(-lookback)

	klines, err := a.client.NewKlinesService().
		Symbol(symbol).
		Interval("1h").
		StartTime(startTime.UnixMilli()).
		Limit(1000). // 币安单次请求最多1000条
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("下载K线数据失败: %w", err)
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("交易对 %s 在回看窗口内没有K线数据", symbol)
	}

	suggestion := &BoundsSuggestion{Symbol: symbol}
	for _, k := range klines {
		high, err1 := strconv.ParseFloat(k.High, 64)
		low, err2 := strconv.ParseFloat(k.Low, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if suggestion.UpperPrice == 0 || high > suggestion.UpperPrice {
			suggestion.UpperPrice = high
		}
		if suggestion.LowerPrice == 0 || low < suggestion.LowerPrice {
			suggestion.LowerPrice = low
		}
	}

	last := klines[len(klines)-1]
	if close, err := strconv.ParseFloat(last.Close, 64); err == nil {
		suggestion.LastClose = close
	}

	if suggestion.UpperPrice <= suggestion.LowerPrice {
		return nil, fmt.Errorf("K线数据异常，无法给出边界建议")
	}
	return suggestion, nil
}
