package controller

import (
	"bot-console-go/internal/api"
	"bot-console-go/internal/cache"
	"bot-console-go/internal/models"
	"bot-console-go/internal/mutation"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// AccountClient is the slice of the server API the account controller needs.
type AccountClient interface {
	ResetAccount(ctx context.Context, idempotencyKey string) (*models.AccountSnapshot, error)
	SaveCredentials(ctx context.Context, creds models.ExchangeCredentials, idempotencyKey string) error
}

// AccountController routes account-level mutations through the coordinator so
// the dependent cache entries reconcile with server truth.
type AccountController struct {
	client  AccountClient
	mutator *mutation.Coordinator
	log     *zap.SugaredLogger
}

// NewAccountController creates an AccountController.
func NewAccountController(client AccountClient, mutator *mutation.Coordinator, log *zap.SugaredLogger) *AccountController {
	return &AccountController{client: client, mutator: mutator, log: log}
}

// Reset asks the server for a fresh account snapshot. The account and trade
// history resources are invalidated because both change server-side.
func (a *AccountController) Reset(ctx context.Context) (*models.AccountSnapshot, error) {
	spec := mutation.Spec{
		Name:        "account.reset",
		Invalidates: []cache.Key{api.AccountKey(), api.TradesKey(), api.BotsListKey()},
	}

	resp, err := a.mutator.Execute(ctx, spec, func(ctx context.Context, idemKey string) (json.RawMessage, error) {
		snapshot, err := a.client.ResetAccount(ctx, idemKey)
		if err != nil {
			return nil, err
		}
		return json.Marshal(snapshot)
	})
	if err != nil {
		return nil, err
	}

	var snapshot models.AccountSnapshot
	if err := json.Unmarshal(resp, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding account snapshot: %w", err)
	}
	a.log.Info("account reset completed")
	return &snapshot, nil
}

// SaveCredentials stores the user's exchange API credentials server-side.
// The account resource is invalidated so credential-dependent fields (e.g.
// live balances) refresh.
func (a *AccountController) SaveCredentials(ctx context.Context, creds models.ExchangeCredentials) error {
	if creds.APIKey == "" || creds.SecretKey == "" {
		return fmt.Errorf("api key and secret key are required")
	}

	spec := mutation.Spec{
		Name:        "account.credentials",
		Invalidates: []cache.Key{api.AccountKey()},
	}
	_, err := a.mutator.Execute(ctx, spec, func(ctx context.Context, idemKey string) (json.RawMessage, error) {
		return nil, a.client.SaveCredentials(ctx, creds, idemKey)
	})
	return err
}
