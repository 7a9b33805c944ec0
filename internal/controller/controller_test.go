package controller

import (
	"bot-console-go/internal/api"
	"bot-console-go/internal/cache"
	"bot-console-go/internal/models"
	"bot-console-go/internal/mutation"
	"bot-console-go/internal/planner"
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBotClient scripts the server side of the lifecycle. Its ResourceFetcher
// blocks until cancelled so status polling never races the assertions.
type fakeBotClient struct {
	createErr  error
	startErr   error
	stopErr    error
	startCalls int32
	created    models.BotInstance
}

func (f *fakeBotClient) CreateBot(ctx context.Context, req api.CreateBotRequest, idempotencyKey string) (*models.BotInstance, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	bot := f.created
	return &bot, nil
}

func (f *fakeBotClient) StartBot(ctx context.Context, botID, idempotencyKey string) (*api.StatusResponse, error) {
	atomic.AddInt32(&f.startCalls, 1)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &api.StatusResponse{ID: botID, Status: models.BotRunning}, nil
}

func (f *fakeBotClient) StopBot(ctx context.Context, botID, idempotencyKey string) (*api.StatusResponse, error) {
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	return &api.StatusResponse{ID: botID, Status: models.BotStopped}, nil
}

func (f *fakeBotClient) ResourceFetcher(key cache.Key) cache.Fetcher {
	return func(ctx context.Context) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func validGridConfig() models.BotConfig {
	return models.BotConfig{
		Name:       "btc-grid",
		Strategy:   models.StrategyGrid,
		Symbol:     "BTCUSDT",
		Investment: 1000,
		Grid: &models.GridParams{
			LowerPrice: 60000,
			UpperPrice: 66000,
			GridCount:  5,
		},
	}
}

func newTestController(client BotClient) (*Controller, *cache.Cache) {
	c := cache.New(nil, 100, zap.NewNop().Sugar())
	c.SetRetryDelays(nil)
	mutator := mutation.New(c, zap.NewNop().Sugar())
	ctrl := New(client, c, mutator, time.Hour, zap.NewNop().Sugar())
	return ctrl, c
}

func TestConfigureMovesToConfigured(t *testing.T) {
	ctrl, c := newTestController(&fakeBotClient{})
	defer c.Close()

	require.Equal(t, StateUnconfigured, ctrl.State())
	require.NoError(t, ctrl.Configure(validGridConfig()))
	assert.Equal(t, StateConfigured, ctrl.State())

	plan := ctrl.Plan()
	require.NotNil(t, plan)
	assert.Len(t, plan.Levels, 5)
	assert.InDelta(t, 1500.0, plan.Step, 1e-9)
}

func TestConfigureRejectsInvalidGridAndStaysUnconfigured(t *testing.T) {
	ctrl, c := newTestController(&fakeBotClient{})
	defer c.Close()

	cfg := validGridConfig()
	cfg.Grid.UpperPrice = cfg.Grid.LowerPrice

	err := ctrl.Configure(cfg)
	require.Error(t, err)
	var cfgErr *planner.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, StateUnconfigured, ctrl.State())
	assert.Nil(t, ctrl.Plan())
}

func TestReconfigureBeforeCreationRecomputesPlan(t *testing.T) {
	ctrl, c := newTestController(&fakeBotClient{})
	defer c.Close()

	require.NoError(t, ctrl.Configure(validGridConfig()))

	cfg := validGridConfig()
	cfg.Grid.GridCount = 3
	require.NoError(t, ctrl.Configure(cfg))
	assert.Len(t, ctrl.Plan().Levels, 3)
}

func TestCreateMovesToCreatedAndLocksConfig(t *testing.T) {
	client := &fakeBotClient{created: models.BotInstance{ID: "b1", Status: models.BotStopped}}
	ctrl, c := newTestController(client)
	defer c.Close()
	defer ctrl.Close()

	require.NoError(t, ctrl.Configure(validGridConfig()))
	require.NoError(t, ctrl.Create(context.Background()))

	assert.Equal(t, StateCreated, ctrl.State())
	require.NotNil(t, ctrl.Bot())
	assert.Equal(t, "b1", ctrl.Bot().ID)

	err := ctrl.Configure(validGridConfig())
	require.Error(t, err, "configuration is immutable after creation")
}

func TestCreateFailureStaysConfigured(t *testing.T) {
	client := &fakeBotClient{
		createErr: &models.APIError{StatusCode: 400, Code: models.CodeMissingCredentials, Msg: "exchange credentials not configured"},
	}
	ctrl, c := newTestController(client)
	defer c.Close()

	require.NoError(t, ctrl.Configure(validGridConfig()))
	err := ctrl.Create(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsMissingCredentials(err))
	assert.Equal(t, StateConfigured, ctrl.State())
	assert.Nil(t, ctrl.Bot())
}

func TestStartBeforeCreateFails(t *testing.T) {
	ctrl, c := newTestController(&fakeBotClient{})
	defer c.Close()

	require.NoError(t, ctrl.Configure(validGridConfig()))
	err := ctrl.Start(context.Background())
	assert.ErrorIs(t, err, ErrNotCreated)
}

func TestStartStopLifecycle(t *testing.T) {
	client := &fakeBotClient{created: models.BotInstance{ID: "b1", Status: models.BotStopped}}
	ctrl, c := newTestController(client)
	defer c.Close()
	defer ctrl.Close()

	require.NoError(t, ctrl.Configure(validGridConfig()))
	require.NoError(t, ctrl.Create(context.Background()))

	require.NoError(t, ctrl.Start(context.Background()))
	assert.Equal(t, StateRunning, ctrl.State())
	assert.Equal(t, models.BotRunning, ctrl.Bot().Status)

	require.NoError(t, ctrl.Stop(context.Background()))
	assert.Equal(t, StateStopped, ctrl.State())
	assert.Equal(t, models.BotStopped, ctrl.Bot().Status)
}

// TestDoubleStartConverges: the server's answer is authoritative, so starting
// an already-running bot lands in Running both times.
func TestDoubleStartConverges(t *testing.T) {
	client := &fakeBotClient{created: models.BotInstance{ID: "b1", Status: models.BotStopped}}
	ctrl, c := newTestController(client)
	defer c.Close()
	defer ctrl.Close()

	require.NoError(t, ctrl.Configure(validGridConfig()))
	require.NoError(t, ctrl.Create(context.Background()))

	require.NoError(t, ctrl.Start(context.Background()))
	require.NoError(t, ctrl.Start(context.Background()))
	assert.Equal(t, StateRunning, ctrl.State())
	assert.Equal(t, int32(2), atomic.LoadInt32(&client.startCalls))
}

// TestStartFailureRollsBack: a rejected start leaves the controller's view of
// the bot at its pre-mutation status.
func TestStartFailureRollsBack(t *testing.T) {
	client := &fakeBotClient{
		created:  models.BotInstance{ID: "b1", Status: models.BotStopped},
		startErr: &models.APIError{StatusCode: 400, Code: 2001, Msg: "insufficient balance"},
	}
	ctrl, c := newTestController(client)
	defer c.Close()
	defer ctrl.Close()

	require.NoError(t, ctrl.Configure(validGridConfig()))
	require.NoError(t, ctrl.Create(context.Background()))

	err := ctrl.Start(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsServerRejection(err))
	assert.Equal(t, StateCreated, ctrl.State())
	assert.Equal(t, models.BotStopped, ctrl.Bot().Status)
}
