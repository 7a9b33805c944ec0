// Package reporter 周期性地把缓存中的机器人、账户与行情视图渲染成终端报表。
// 它只读取缓存快照，从不触发网络请求。
package reporter

import (
	"bot-console-go/internal/api"
	"bot-console-go/internal/cache"
	"bot-console-go/internal/models"
	"bot-console-go/internal/session"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"
)

// Reporter 定期打印控制台状态报表
type Reporter struct {
	cache    *cache.Cache
	guard    *session.Guard
	symbols  []string
	interval time.Duration
	logger   *zap.SugaredLogger

	stopChannel chan struct{}
}

// New 创建一个 Reporter。symbols 是需要展示行情的交易对列表。
func New(c *cache.Cache, guard *session.Guard, symbols []string, interval time.Duration, logger *zap.SugaredLogger) *Reporter {
	return &Reporter{
		cache:       c,
		guard:       guard,
		symbols:     symbols,
		interval:    interval,
		logger:      logger,
		stopChannel: make(chan struct{}),
	}
}

// Start 启动定期打印
func (r *Reporter) Start() {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopChannel:
				return
			case <-ticker.C:
				r.PrintStatus()
			}
		}
	}()
}

// Stop 停止定期打印
func (r *Reporter) Stop() {
	close(r.stopChannel)
}

// PrintStatus 渲染并输出一次完整的状态报表
func (r *Reporter) PrintStatus() {
	fmt.Fprintf(os.Stdout, "\n========== 控制台状态 %s ==========\n", time.Now().Format("2006-01-02 15:04:05"))

	r.printSession()
	r.printAccount()
	r.printBots()
	r.printPrices()
}

func (r *Reporter) printSession() {
	snap := r.guard.Snapshot()
	status := "未登录"
	if snap.IsAuthenticated {
		if snap.User != nil {
			status = fmt.Sprintf("已登录 (%s)", snap.User.Name)
		} else {
			status = "已登录"
		}
	}
	verified := "已校验"
	if !snap.Verified {
		verified = "未校验(本地快照)"
	}
	fmt.Fprintf(os.Stdout, "会话: %s [%s]\n", status, verified)
}

func (r *Reporter) printAccount() {
	entry, ok := r.cache.Get(api.AccountKey())
	if !ok || !entry.HasValue {
		fmt.Fprintln(os.Stdout, "账户: 暂无数据")
		return
	}
	var account models.AccountSnapshot
	if err := json.Unmarshal(entry.Value, &account); err != nil {
		r.logger.Warnf("解析账户快照失败: %v", err)
		return
	}
	fmt.Fprintf(os.Stdout, "账户: 总余额 %.2f USDT, 可用 %.2f USDT%s\n",
		account.TotalBalance, account.AvailableBalance, staleSuffix(entry))
}

func (r *Reporter) printBots() {
	entry, ok := r.cache.Get(api.BotsListKey())
	if !ok || !entry.HasValue {
		fmt.Fprintln(os.Stdout, "机器人: 暂无数据")
		return
	}
	var bots []models.BotInstance
	if err := json.Unmarshal(entry.Value, &bots); err != nil {
		r.logger.Warnf("解析机器人列表失败: %v", err)
		return
	}
	if len(bots) == 0 {
		fmt.Fprintln(os.Stdout, "机器人: 无")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "名称", "策略", "交易对", "状态", "盈亏", "盈亏%"})
	for _, bot := range bots {
		t.AppendRow(table.Row{
			bot.ID,
			bot.Config.Name,
			bot.Config.Strategy,
			bot.Config.Symbol,
			bot.Status,
			fmt.Sprintf("%.2f", bot.ProfitLoss),
			fmt.Sprintf("%.2f%%", bot.ProfitLossPercent),
		})
	}
	t.Render()
	if suffix := staleSuffix(entry); suffix != "" {
		fmt.Fprintln(os.Stdout, suffix)
	}
}

func (r *Reporter) printPrices() {
	for _, symbol := range r.symbols {
		entry, ok := r.cache.Get(api.PriceKey(symbol))
		if !ok || !entry.HasValue {
			continue
		}
		var ticker models.PriceTicker
		if err := json.Unmarshal(entry.Value, &ticker); err != nil {
			continue
		}
		fmt.Fprintf(os.Stdout, "行情: %s %.4f (更新于 %s)%s\n",
			ticker.Symbol, ticker.Price, ticker.UpdatedAt.Format("15:04:05"), staleSuffix(entry))
	}
}

// staleSuffix 在条目最近一次刷新失败时给出提示，数据本身仍是上次成功值
func staleSuffix(entry cache.Entry) string {
	if entry.Status == cache.StatusError {
		return " [数据可能过期: 最近一次刷新失败]"
	}
	return ""
}
