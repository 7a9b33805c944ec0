// Package mutation executes state-changing requests against the server and
// keeps the resource cache consistent with their outcome. Optimistic values
// are applied before the network call resolves and rolled back by
// invalidation when the call fails; the server's response is always treated
// as authoritative.
package mutation

import (
	"bot-console-go/internal/cache"
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request performs the network call of a mutation. The idempotency key is
// generated per Execute call and lets the server deduplicate retries.
type Request func(ctx context.Context, idempotencyKey string) (json.RawMessage, error)

// OptimisticUpdate is a locally guessed value applied to the cache before the
// server confirms the mutation.
type OptimisticUpdate struct {
	Key   cache.Key
	Value json.RawMessage
}

// Spec describes one mutation: what to guess up front and which cache entries
// depend on its outcome.
type Spec struct {
	// Name identifies the mutation in logs.
	Name string
	// Optimistic updates applied via cache.SetValue before the call.
	Optimistic []OptimisticUpdate
	// Invalidates lists the keys forced to reconcile with server truth
	// after the call resolves, on success and on failure alike.
	Invalidates []cache.Key
}

// Coordinator runs mutations. It is the only component allowed to write
// cache values directly.
type Coordinator struct {
	cache *cache.Cache
	log   *zap.SugaredLogger
}

// New creates a Coordinator bound to the shared resource cache.
func New(c *cache.Cache, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{cache: c, log: log}
}

// Execute runs one mutation according to spec.
//
// On success every key in spec.Invalidates is invalidated so the next read
// reconciles with server truth, superseding any optimistic guess. On failure
// the optimistic updates are rolled back the same way — by invalidating the
// touched keys, which forces a refetch of authoritative state — and the error
// is returned to the caller for user-facing reporting. A failed mutation is
// never swallowed.
func (co *Coordinator) Execute(ctx context.Context, spec Spec, req Request) (json.RawMessage, error) {
	idempotencyKey := uuid.NewString()

	for _, opt := range spec.Optimistic {
		co.cache.SetValue(opt.Key, opt.Value)
	}

	resp, err := req(ctx, idempotencyKey)
	if err != nil {
		co.log.Warnw("mutation failed, rolling back optimistic state",
			"mutation", spec.Name, "idempotency_key", idempotencyKey, "err", err)
		co.invalidate(spec.Invalidates, spec.Optimistic)
		return nil, err
	}

	co.log.Infow("mutation applied", "mutation", spec.Name, "idempotency_key", idempotencyKey)
	co.invalidate(spec.Invalidates, spec.Optimistic)
	return resp, nil
}

// invalidate marks the union of the dependent keys and the optimistically
// written keys as stale exactly once each.
func (co *Coordinator) invalidate(keys []cache.Key, optimistic []OptimisticUpdate) {
	seen := make(map[string]bool, len(keys)+len(optimistic))
	for _, k := range keys {
		if !seen[k.String()] {
			seen[k.String()] = true
			co.cache.Invalidate(k)
		}
	}
	for _, opt := range optimistic {
		if !seen[opt.Key.String()] {
			seen[opt.Key.String()] = true
			co.cache.Invalidate(opt.Key)
		}
	}
}
