package config

import (
	"bot-console-go/internal/models"
	"encoding/json"
	"fmt"
	"os"
)

// LoadConfig 从指定路径加载JSON配置文件并解析到Config结构体中
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	config := &models.Config{}
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}

	if config.ServerURL == "" {
		return nil, fmt.Errorf("配置缺少 server_url")
	}

	applyDefaults(config)
	return config, nil
}

// applyDefaults 为未填写的配置项补上默认值
func applyDefaults(c *models.Config) {
	if c.DBPath == "" {
		c.DBPath = "console_state"
	}
	if c.BotsPollIntervalSec <= 0 {
		c.BotsPollIntervalSec = 10
	}
	if c.AccountPollIntervalSec <= 0 {
		c.AccountPollIntervalSec = 30
	}
	if c.TradesPollIntervalSec <= 0 {
		c.TradesPollIntervalSec = 60
	}
	if c.PricePollIntervalSec <= 0 {
		c.PricePollIntervalSec = 30
	}
	if c.SessionCheckIntervalSec <= 0 {
		c.SessionCheckIntervalSec = 30
	}
	if c.ReportIntervalSec <= 0 {
		c.ReportIntervalSec = 30
	}
	if c.FetchRatePerSec <= 0 {
		c.FetchRatePerSec = 10
	}
	if c.KlineLookbackHours <= 0 {
		c.KlineLookbackHours = 24
	}
}
