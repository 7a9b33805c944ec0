// Package controller drives a single bot from configuration through creation
// to its running/stopped states, composing the planner, the resource cache
// and the mutation coordinator into the control surface used by views.
package controller

import (
	"bot-console-go/internal/api"
	"bot-console-go/internal/cache"
	"bot-console-go/internal/models"
	"bot-console-go/internal/mutation"
	"bot-console-go/internal/planner"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle position of the bot owned by a Controller.
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateConfigured   State = "configured"
	StateCreated      State = "created"
	StateRunning      State = "running"
	StateStopped      State = "stopped"
)

// ErrNotCreated is returned when a start/stop is attempted before creation.
var ErrNotCreated = fmt.Errorf("bot has not been created yet")

// BotClient is the slice of the server API the controller needs.
type BotClient interface {
	CreateBot(ctx context.Context, req api.CreateBotRequest, idempotencyKey string) (*models.BotInstance, error)
	StartBot(ctx context.Context, botID, idempotencyKey string) (*api.StatusResponse, error)
	StopBot(ctx context.Context, botID, idempotencyKey string) (*api.StatusResponse, error)
	ResourceFetcher(key cache.Key) cache.Fetcher
}

// Controller owns one bot's lifecycle. It never mutates cache entries
// directly; every write goes through the mutation coordinator or a refresh
// request.
type Controller struct {
	client       BotClient
	cache        *cache.Cache
	mutator      *mutation.Coordinator
	pollInterval time.Duration
	log          *zap.SugaredLogger

	mu        sync.Mutex
	state     State
	config    *models.BotConfig
	plan      *planner.Plan
	bot       *models.BotInstance
	statusSub *cache.Subscription
	watchDone chan struct{}
}

// New creates a Controller in the Unconfigured state.
func New(client BotClient, c *cache.Cache, mutator *mutation.Coordinator, pollInterval time.Duration, log *zap.SugaredLogger) *Controller {
	return &Controller{
		client:       client,
		cache:        c,
		mutator:      mutator,
		pollInterval: pollInterval,
		log:          log,
		state:        StateUnconfigured,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Bot returns a copy of the bot instance, if created.
func (c *Controller) Bot() *models.BotInstance {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bot == nil {
		return nil
	}
	bot := *c.bot
	return &bot
}

// Plan returns the grid plan derived from the current configuration, if any.
func (c *Controller) Plan() *planner.Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan
}

// Configure validates cfg and moves Unconfigured→Configured. Invalid input
// keeps the controller Unconfigured and returns a *planner.ConfigError naming
// the field; nothing is sent to the server. Reconfiguring before creation is
// allowed; the grid plan is recomputed on every call.
func (c *Controller) Configure(cfg models.BotConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateUnconfigured && c.state != StateConfigured {
		return fmt.Errorf("bot already created, configuration is immutable")
	}

	if err := planner.ValidateBotConfig(&cfg); err != nil {
		return err
	}

	var plan *planner.Plan
	if cfg.Strategy == models.StrategyGrid || cfg.Strategy == models.StrategyAIGrid {
		var err error
		plan, err = planner.ComputePlan(cfg.Grid.LowerPrice, cfg.Grid.UpperPrice, cfg.Grid.GridCount)
		if err != nil {
			return err
		}
	}

	c.config = &cfg
	c.plan = plan
	c.state = StateConfigured
	c.log.Infow("bot configured", "name", cfg.Name, "strategy", cfg.Strategy, "symbol", cfg.Symbol)
	return nil
}

// Create submits the configured bot to the server. On success the controller
// moves to Created and begins watching the bot's status resource; on failure
// it stays Configured and returns the server's rejection (commonly missing
// exchange credentials — check models.IsMissingCredentials to route the user
// to the credentials flow).
func (c *Controller) Create(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateConfigured {
		c.mu.Unlock()
		return fmt.Errorf("bot must be configured before creation")
	}
	cfg := *c.config
	c.mu.Unlock()

	spec := mutation.Spec{
		Name:        "bot.create",
		Invalidates: []cache.Key{api.BotsListKey()},
	}
	req := api.CreateBotRequest{
		Name:        cfg.Name,
		Strategy:    cfg.Strategy,
		Description: cfg.Description,
		Parameters: api.BotParameters{
			Symbol:     cfg.Symbol,
			Investment: cfg.Investment,
			Grid:       cfg.Grid,
			DCA:        cfg.DCA,
			MACD:       cfg.MACD,
		},
	}

	resp, err := c.mutator.Execute(ctx, spec, func(ctx context.Context, idemKey string) (json.RawMessage, error) {
		bot, err := c.client.CreateBot(ctx, req, idemKey)
		if err != nil {
			return nil, err
		}
		return json.Marshal(bot)
	})
	if err != nil {
		if models.IsMissingCredentials(err) {
			c.log.Warn("bot creation rejected: exchange credentials not configured")
		}
		return err
	}

	var bot models.BotInstance
	if err := json.Unmarshal(resp, &bot); err != nil {
		return fmt.Errorf("decoding created bot: %w", err)
	}

	c.mu.Lock()
	c.bot = &bot
	// A freshly created bot sits in Created until a start/stop resolves or
	// an authoritative status update arrives.
	if bot.Status == models.BotRunning {
		c.state = StateRunning
	} else {
		c.state = StateCreated
	}
	c.mu.Unlock()

	c.watchStatus(bot.ID)
	c.log.Infow("bot created", "id", bot.ID, "status", bot.Status)
	return nil
}

// Start flips the bot to RUNNING optimistically and asks the server to start
// it. On failure the optimistic value is rolled back by invalidation and the
// visible status returns to its pre-mutation value.
func (c *Controller) Start(ctx context.Context) error {
	return c.toggle(ctx, models.BotRunning)
}

// Stop is the counterpart of Start.
func (c *Controller) Stop(ctx context.Context) error {
	return c.toggle(ctx, models.BotStopped)
}

func (c *Controller) toggle(ctx context.Context, target models.BotStatus) error {
	c.mu.Lock()
	if c.bot == nil {
		c.mu.Unlock()
		return ErrNotCreated
	}
	botID := c.bot.ID
	optimistic := *c.bot
	optimistic.Status = target
	c.mu.Unlock()

	statusKey := api.BotStatusKey(botID)
	optimisticPayload, err := json.Marshal(&optimistic)
	if err != nil {
		return fmt.Errorf("encoding optimistic bot state: %w", err)
	}

	name := "bot.stop"
	call := c.client.StopBot
	if target == models.BotRunning {
		name = "bot.start"
		call = c.client.StartBot
	}

	spec := mutation.Spec{
		Name: name,
		Optimistic: []mutation.OptimisticUpdate{
			{Key: statusKey, Value: optimisticPayload},
		},
		Invalidates: []cache.Key{statusKey, api.BotsListKey()},
	}

	resp, err := c.mutator.Execute(ctx, spec, func(ctx context.Context, idemKey string) (json.RawMessage, error) {
		status, err := call(ctx, botID, idemKey)
		if err != nil {
			return nil, err
		}
		return json.Marshal(status)
	})
	if err != nil {
		return err
	}

	// The server's answer overrides the optimistic guess, so repeating a
	// start on an already-running bot converges instead of corrupting state.
	var status api.StatusResponse
	if err := json.Unmarshal(resp, &status); err != nil {
		return fmt.Errorf("decoding status response: %w", err)
	}

	c.mu.Lock()
	if c.bot != nil && c.bot.ID == status.ID {
		c.bot.Status = status.Status
		c.state = stateForStatus(status.Status)
	}
	c.mu.Unlock()
	return nil
}

// Close releases the controller's view of the bot. Server-side state is left
// untouched; this layer has no delete operation.
func (c *Controller) Close() {
	c.mu.Lock()
	sub := c.statusSub
	done := c.watchDone
	c.statusSub = nil
	c.watchDone = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if done != nil {
		<-done
	}
}

// watchStatus subscribes to the bot's status resource and mirrors
// authoritative updates into the controller's local view.
func (c *Controller) watchStatus(botID string) {
	key := api.BotStatusKey(botID)
	sub := c.cache.Subscribe(key, c.client.ResourceFetcher(key), cache.Options{
		PollInterval: c.pollInterval,
		Enabled:      true,
	})
	done := make(chan struct{})

	c.mu.Lock()
	c.statusSub = sub
	c.watchDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for entry := range sub.Updates() {
			if entry.Status != cache.StatusSuccess || !entry.HasValue {
				continue
			}
			var bot models.BotInstance
			if err := json.Unmarshal(entry.Value, &bot); err != nil {
				c.log.Warnf("decoding bot status payload: %v", err)
				continue
			}
			c.mu.Lock()
			if c.bot != nil && c.bot.ID == bot.ID {
				c.bot = &bot
				c.state = stateForStatus(bot.Status)
			}
			c.mu.Unlock()
		}
	}()
}

func stateForStatus(status models.BotStatus) State {
	if status == models.BotRunning {
		return StateRunning
	}
	return StateStopped
}
