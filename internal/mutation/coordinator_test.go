package mutation

import (
	"bot-console-go/internal/cache"
	"bot-console-go/internal/models"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSetup() (*Coordinator, *cache.Cache) {
	c := cache.New(nil, 100, zap.NewNop().Sugar())
	c.SetRetryDelays(nil)
	return New(c, zap.NewNop().Sugar()), c
}

// TestExecuteAppliesOptimisticUpdateBeforeResolving: the guessed value must be
// visible while the request is still in flight.
func TestExecuteAppliesOptimisticUpdateBeforeResolving(t *testing.T) {
	co, c := newTestSetup()
	defer c.Close()

	key := cache.NewKey("/bots/status", map[string]string{"id": "7"})
	var during json.RawMessage
	req := func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
		if e, ok := c.Get(key); ok {
			during = e.Value
		}
		return json.RawMessage(`{"id":"7","status":"RUNNING"}`), nil
	}

	_, err := co.Execute(context.Background(), Spec{
		Name:       "start_bot",
		Optimistic: []OptimisticUpdate{{Key: key, Value: json.RawMessage(`{"id":"7","status":"RUNNING"}`)}},
	}, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"7","status":"RUNNING"}`, string(during))
}

// TestExecuteRollsBackByInvalidation: after a failed mutation the optimistic
// key must be stale again so the next subscriber refetches server truth.
func TestExecuteRollsBackByInvalidation(t *testing.T) {
	co, c := newTestSetup()
	defer c.Close()

	key := cache.NewKey("/bots/status", map[string]string{"id": "7"})
	c.Publish(key, json.RawMessage(`{"id":"7","status":"STOPPED"}`))

	reqErr := &models.APIError{StatusCode: 400, Code: 2001, Msg: "insufficient balance"}
	req := func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
		return nil, reqErr
	}

	_, err := co.Execute(context.Background(), Spec{
		Name:       "start_bot",
		Optimistic: []OptimisticUpdate{{Key: key, Value: json.RawMessage(`{"id":"7","status":"RUNNING"}`)}},
	}, req)
	require.Error(t, err)
	assert.True(t, models.IsServerRejection(err), "server error must surface to the caller untouched")

	// The rollback is lazy: a subscriber arriving now refetches and sees the
	// authoritative value, not the stale guess.
	fetched := make(chan struct{})
	sub := c.Subscribe(key, func(ctx context.Context) (json.RawMessage, error) {
		defer close(fetched)
		return json.RawMessage(`{"id":"7","status":"STOPPED"}`), nil
	}, cache.Options{Enabled: true})
	defer sub.Close()

	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("invalidated key was not refetched by the new subscriber")
	}
}

// TestExecuteInvalidatesDependentsOnSuccess: confirmed mutations force the
// listed keys to reconcile even without an optimistic guess.
func TestExecuteInvalidatesDependentsOnSuccess(t *testing.T) {
	co, c := newTestSetup()
	defer c.Close()

	listKey := cache.NewKey("/bots", nil)
	fetches := make(chan struct{}, 4)
	sub := c.Subscribe(listKey, func(ctx context.Context) (json.RawMessage, error) {
		fetches <- struct{}{}
		return json.RawMessage(`[]`), nil
	}, cache.Options{Enabled: true})
	defer sub.Close()

	select {
	case <-fetches:
	case <-time.After(2 * time.Second):
		t.Fatal("initial fetch never happened")
	}

	resp, err := co.Execute(context.Background(), Spec{
		Name:        "create_bot",
		Invalidates: []cache.Key{listKey},
	}, func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
		return json.RawMessage(`{"id":"9"}`), nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"9"}`, string(resp))

	select {
	case <-fetches:
	case <-time.After(2 * time.Second):
		t.Fatal("dependent key was not refetched after the mutation succeeded")
	}
}

// TestExecuteGeneratesFreshIdempotencyKeys: retrying a mutation at the caller
// level is a new attempt with its own key.
func TestExecuteGeneratesFreshIdempotencyKeys(t *testing.T) {
	co, c := newTestSetup()
	defer c.Close()

	var keys []string
	req := func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
		keys = append(keys, idempotencyKey)
		return nil, errors.New("connection refused")
	}

	_, _ = co.Execute(context.Background(), Spec{Name: "reset_account"}, req)
	_, _ = co.Execute(context.Background(), Spec{Name: "reset_account"}, req)

	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.NotEqual(t, keys[0], keys[1])
}
