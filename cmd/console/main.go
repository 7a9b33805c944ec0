package main

import (
	"bot-console-go/internal/api"
	"bot-console-go/internal/cache"
	"bot-console-go/internal/config"
	"bot-console-go/internal/controller"
	"bot-console-go/internal/logger"
	"bot-console-go/internal/market"
	"bot-console-go/internal/models"
	"bot-console-go/internal/mutation"
	"bot-console-go/internal/persistence"
	"bot-console-go/internal/reporter"
	"bot-console-go/internal/session"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	// --- 命令行参数定义 ---
	configPath := flag.String("config", "config.json", "path to the config file")
	mode := flag.String("mode", "watch", "running mode: watch, suggest or reset-account")
	symbol := flag.String("symbol", "", "symbol for suggest mode (e.g., BTCUSDT)")
	flag.Parse()

	// --- 初始化日志 (提前) ---
	// 为了在加载.env或配置时就能记录日志，先用默认配置初始化一次
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	// --- 加载 JSON 配置 ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}

	// --- 使用文件中的配置重新初始化日志 ---
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	switch *mode {
	case "watch":
		runWatchMode(cfg)
	case "suggest":
		runSuggestMode(cfg, *symbol)
	case "reset-account":
		runResetAccountMode(cfg)
	default:
		logger.S().Fatalf("未知的运行模式: %s。请选择 'watch'、'suggest' 或 'reset-account'。", *mode)
	}
}

// newClient 构造带会话令牌的服务端客户端。令牌从环境变量读取。
func newClient(cfg *models.Config) *api.Client {
	token := os.Getenv("BOT_CONSOLE_TOKEN")
	if token == "" {
		logger.S().Warn("BOT_CONSOLE_TOKEN 未设置，将以匿名身份访问服务端。")
	}
	return api.NewClient(cfg.ServerURL, token, logger.L())
}

// runWatchMode 以守护模式运行：维持缓存订阅、会话校验、价格流和状态报表。
func runWatchMode(cfg *models.Config) {
	logger.S().Info("--- 启动控制台监控模式 ---")

	client := newClient(cfg)

	// 本地快照库：打开失败时降级为无持久化运行
	var repo persistence.SnapshotRepository
	if r, err := persistence.NewBadgerRepository(cfg.DBPath); err != nil {
		logger.S().Warnf("无法打开本地快照库: %v，将以无持久化模式运行。", err)
	} else {
		repo = r
		defer repo.Close()
	}

	c := cache.New(repo, cfg.FetchRatePerSec, logger.S())
	defer c.Close()

	// 预热：先展示上次运行留下的数据，再等首次拉取
	warmKeys := []cache.Key{api.BotsListKey(), api.AccountKey(), api.TradesKey()}
	for _, sym := range cfg.WatchSymbols {
		warmKeys = append(warmKeys, api.PriceKey(sym))
	}
	c.WarmStart(warmKeys)

	// 常驻订阅：机器人列表、账户、成交历史与行情
	subs := []*cache.Subscription{
		c.Subscribe(api.BotsListKey(), client.ResourceFetcher(api.BotsListKey()), cache.Options{
			PollInterval: time.Duration(cfg.BotsPollIntervalSec) * time.Second,
			Enabled:      true,
		}),
		c.Subscribe(api.AccountKey(), client.ResourceFetcher(api.AccountKey()), cache.Options{
			PollInterval: time.Duration(cfg.AccountPollIntervalSec) * time.Second,
			Enabled:      true,
		}),
		c.Subscribe(api.TradesKey(), client.ResourceFetcher(api.TradesKey()), cache.Options{
			PollInterval: time.Duration(cfg.TradesPollIntervalSec) * time.Second,
			Enabled:      true,
		}),
	}
	for _, sym := range cfg.WatchSymbols {
		key := api.PriceKey(sym)
		subs = append(subs, c.Subscribe(key, client.ResourceFetcher(key), cache.Options{
			PollInterval: time.Duration(cfg.PricePollIntervalSec) * time.Second,
			Enabled:      true,
		}))
	}
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 会话守卫
	guard := session.NewGuard(client, repo, time.Duration(cfg.SessionCheckIntervalSec)*time.Second, logger.S())
	guard.Start(ctx)
	defer guard.Stop()

	// 实时价格流（可选），断线期间由轮询兜底
	var feeds []*market.PriceFeed
	if cfg.ServerWSURL != "" {
		for _, sym := range cfg.WatchSymbols {
			feed := market.NewPriceFeed(cfg.ServerWSURL, sym, c, logger.S())
			feed.Start()
			feeds = append(feeds, feed)
		}
	}
	defer func() {
		for _, feed := range feeds {
			feed.Stop()
		}
	}()

	// 状态报表
	rep := reporter.New(c, guard, cfg.WatchSymbols, time.Duration(cfg.ReportIntervalSec)*time.Second, logger.S())
	rep.Start()
	defer rep.Stop()

	logger.S().Info("控制台已启动。按 Ctrl+C 退出。")

	// 等待中断信号以实现优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.S().Info("控制台正在退出...")
}

// runSuggestMode 根据近期行情为网格策略打印边界建议后退出。
func runSuggestMode(cfg *models.Config, symbol string) {
	if symbol == "" {
		logger.S().Fatal("suggest 模式需要通过 --symbol 指定交易对。")
	}

	advisor := market.NewBoundsAdvisor()
	lookback := time.Duration(cfg.KlineLookbackHours) * time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	suggestion, err := advisor.SuggestBounds(ctx, symbol, lookback)
	if err != nil {
		logger.S().Fatalf("获取边界建议失败: %v", err)
	}

	fmt.Printf("网格边界建议 (%s, 回看 %d 小时):\n", symbol, cfg.KlineLookbackHours)
	fmt.Printf("  下界: %.4f\n", suggestion.LowerPrice)
	fmt.Printf("  上界: %.4f\n", suggestion.UpperPrice)
	fmt.Printf("  最新收盘: %.4f\n", suggestion.LastClose)
}

// runResetAccountMode 重置模拟账户后退出。
func runResetAccountMode(cfg *models.Config) {
	client := newClient(cfg)
	c := cache.New(nil, cfg.FetchRatePerSec, logger.S())
	defer c.Close()

	mutator := mutation.New(c, logger.S())
	accountCtrl := controller.NewAccountController(client, mutator, logger.S())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snapshot, err := accountCtrl.Reset(ctx)
	if err != nil {
		logger.S().Fatalf("重置账户失败: %v", err)
	}
	logger.S().Infof("账户已重置。总余额: %.2f USDT", snapshot.TotalBalance)
}
