// Package cache is the single source of truth for all server-derived read
// data. Entries are addressed by Key, refreshed by per-subscription polling,
// and follow a stale-while-revalidate discipline: a failed refresh never
// discards the previously fetched value.
package cache

import (
	"bot-console-go/internal/models"
	"bot-console-go/internal/persistence"
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Status is the fetch state of a cache entry.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Fetcher loads the payload for one key from the server.
type Fetcher func(ctx context.Context) (json.RawMessage, error)

// Entry is an immutable snapshot of a cache entry handed to subscribers.
type Entry struct {
	Key          Key
	Value        json.RawMessage
	HasValue     bool
	FetchedAt    time.Time
	Status       Status
	Err          error
	PollInterval time.Duration
}

// Options controls a subscription.
type Options struct {
	// PollInterval enables background refresh when > 0.
	PollInterval time.Duration
	// Enabled false registers the subscription without fetching; any
	// existing entry data is preserved and still delivered.
	Enabled bool
}

// entry is the mutable cache record. All fields are guarded by Cache.mu.
type entry struct {
	key          Key
	value        json.RawMessage
	hasValue     bool
	fetchedAt    time.Time
	status       Status
	err          error
	stale        bool
	gen          uint64 // bumped on every invalidation
	pollInterval time.Duration
	fetcher      Fetcher
	inflight     chan struct{} // non-nil while a fetch is running
	subs         map[int]*Subscription
}

func (e *entry) snapshot() Entry {
	return Entry{
		Key:          e.key,
		Value:        e.value,
		HasValue:     e.hasValue,
		FetchedAt:    e.fetchedAt,
		Status:       e.status,
		Err:          e.err,
		PollInterval: e.pollInterval,
	}
}

// needsRefresh reports whether the entry should be fetched now: never fetched,
// explicitly invalidated, or older than its own poll interval.
func (e *entry) needsRefresh(now time.Time) bool {
	if !e.hasValue || e.stale {
		return true
	}
	return e.pollInterval > 0 && now.Sub(e.fetchedAt) >= e.pollInterval
}

// Cache owns all entries. For a given key at most one fetch is in flight;
// concurrent refresh requests coalesce onto it.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]*entry
	nextSubID   int
	limiter     *rate.Limiter
	repo        persistence.SnapshotRepository // may be nil
	retryDelays []time.Duration
	log         *zap.SugaredLogger
	stop        chan struct{}
	stopOnce    sync.Once
}

// New creates a cache. repo may be nil to disable local snapshot persistence.
// ratePerSec throttles outbound fetches across all keys.
func New(repo persistence.SnapshotRepository, ratePerSec int, log *zap.SugaredLogger) *Cache {
	if ratePerSec <= 0 {
		ratePerSec = 10
	}
	return &Cache{
		entries:     make(map[string]*entry),
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		repo:        repo,
		retryDelays: []time.Duration{time.Second, 2 * time.Second},
		log:         log,
		stop:        make(chan struct{}),
	}
}

// SetRetryDelays overrides the backoff schedule between fetch retries.
// The schedule length is the retry count.
func (c *Cache) SetRetryDelays(delays []time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retryDelays = delays
}

// WarmStart seeds entries for the given keys from the local snapshot store so
// consumers see last-known data before the first fetch completes. Seeded
// entries are marked stale and refetched by their first subscriber.
func (c *Cache) WarmStart(keys []Key) {
	if c.repo == nil {
		return
	}
	stored, err := c.repo.LoadResources()
	if err != nil {
		c.log.Warnf("loading persisted resources failed: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		res, ok := stored[key.StorageID()]
		if !ok {
			continue
		}
		e := c.entryLocked(key)
		if e.hasValue {
			continue
		}
		e.value = res.Payload
		e.hasValue = true
		e.fetchedAt = res.FetchedAt
		e.status = StatusSuccess
		e.stale = true
		c.log.Debugw("seeded entry from local snapshot", "key", key.String(), "id", key.StorageID())
	}
}

// Subscribe registers interest in a key. The returned subscription delivers an
// immediate snapshot of the current entry followed by every subsequent change.
// The fetcher becomes the entry's loader; the last subscriber to set a poll
// interval wins.
func (c *Cache) Subscribe(key Key, fetcher Fetcher, opts Options) *Subscription {
	c.mu.Lock()

	e := c.entryLocked(key)
	if fetcher != nil {
		e.fetcher = fetcher
	}
	if opts.PollInterval > 0 {
		e.pollInterval = opts.PollInterval
	}
	interval := e.pollInterval

	c.nextSubID++
	sub := &Subscription{
		id:      c.nextSubID,
		key:     key,
		cache:   c,
		ch:      make(chan Entry, 8),
		cmd:     make(chan bool, 1),
		done:    make(chan struct{}),
		enabled: opts.Enabled,
	}
	e.subs[sub.id] = sub

	// Immediate snapshot so the consumer renders without waiting.
	sub.push(e.snapshot())

	if opts.Enabled && e.fetcher != nil && e.needsRefresh(time.Now()) {
		c.startFetchLocked(e)
	}
	c.mu.Unlock()

	go sub.loop(interval)
	return sub
}

// Invalidate marks the entry as logically stale. Entries with an enabled
// subscriber refetch immediately; orphaned entries refetch lazily on the next
// subscribe.
func (c *Cache) Invalidate(key Key) {
	c.InvalidateWhere(func(k Key) bool { return k == key })
}

// InvalidateWhere invalidates every entry whose key matches the predicate.
func (c *Cache) InvalidateWhere(match func(Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if !match(e.key) {
			continue
		}
		e.stale = true
		e.gen++
		if e.fetcher != nil && c.hasEnabledSubLocked(e) {
			c.startFetchLocked(e)
		}
	}
}

// SetValue applies a locally produced value without a network round-trip.
// Reserved for the mutation coordinator's optimistic updates; the next
// authoritative fetch for the key supersedes it. Optimistic values are never
// persisted to the local snapshot store.
func (c *Cache) SetValue(key Key, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	e.value = value
	e.hasValue = true
	e.fetchedAt = time.Now()
	e.status = StatusSuccess
	e.err = nil
	c.notifyLocked(e)
}

// Publish stores an authoritative value delivered out-of-band, e.g. by a
// streaming feed. Unlike SetValue it is server truth rather than a local
// guess: it clears staleness and is persisted to the local snapshot store.
func (c *Cache) Publish(key Key, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	e.value = value
	e.hasValue = true
	e.fetchedAt = time.Now()
	e.status = StatusSuccess
	e.err = nil
	e.stale = false
	c.persistLocked(e)
	c.notifyLocked(e)
}

// Get returns a snapshot of the entry for key, if one exists.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// Refresh triggers a fetch for key unless one is already in flight.
func (c *Cache) Refresh(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || e.fetcher == nil {
		return
	}
	c.startFetchLocked(e)
}

// Close stops all background activity. In-flight fetches finish but their
// results are no longer delivered to anyone who has gone away.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key.String()]
	if !ok {
		e = &entry{
			key:    key,
			status: StatusIdle,
			subs:   make(map[int]*Subscription),
		}
		c.entries[key.String()] = e
	}
	return e
}

func (c *Cache) hasEnabledSubLocked(e *entry) bool {
	for _, s := range e.subs {
		if s.enabled {
			return true
		}
	}
	return false
}

// startFetchLocked begins a fetch for e unless one is already running.
// Callers must hold c.mu.
func (c *Cache) startFetchLocked(e *entry) {
	if e.inflight != nil {
		return // coalesce onto the running fetch
	}
	done := make(chan struct{})
	e.inflight = done
	e.status = StatusLoading
	c.notifyLocked(e)

	fetcher := e.fetcher
	key := e.key
	startGen := e.gen

	go func() {
		value, err := c.fetchWithRetry(key, fetcher)

		c.mu.Lock()
		defer c.mu.Unlock()
		e.inflight = nil
		close(done)

		if err != nil {
			// Keep the previous value visible (stale-while-revalidate);
			// polling resumes on its normal interval afterwards.
			e.status = StatusError
			e.err = err
			c.log.Warnw("fetch failed", "key", key.String(), "err", err)
		} else {
			e.value = value
			e.hasValue = true
			e.fetchedAt = time.Now()
			e.status = StatusSuccess
			e.err = nil
			if e.gen == startGen {
				e.stale = false
			} else if e.fetcher != nil && c.hasEnabledSubLocked(e) {
				// Invalidated mid-flight: this result predates the
				// invalidation, so fetch again for the current truth.
				c.startFetchLocked(e)
			}
			c.persistLocked(e)
		}
		c.notifyLocked(e)
	}()
}

// fetchWithRetry runs the fetcher with up to len(retryDelays) retries using
// the configured backoff. Structured server rejections are not retried.
func (c *Cache) fetchWithRetry(key Key, fetcher Fetcher) (json.RawMessage, error) {
	c.mu.Lock()
	delays := c.retryDelays
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		value, err := fetcher(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
		// Only transport-level failures are worth retrying; a structured
		// rejection will fail the same way every time.
		if !models.IsNetworkError(err) || attempt >= len(delays) {
			return nil, lastErr
		}
		c.log.Debugw("fetch retry scheduled", "key", key.String(), "attempt", attempt+1, "delay", delays[attempt])
		select {
		case <-time.After(delays[attempt]):
		case <-c.stop:
			return nil, lastErr
		}
	}
}

func (c *Cache) persistLocked(e *entry) {
	if c.repo == nil {
		return
	}
	res := persistence.StoredResource{Payload: e.value, FetchedAt: e.fetchedAt}
	id := e.key.StorageID()
	// Persist outside the lock; the copy above is all that is needed.
	go func() {
		if err := c.repo.SaveResource(id, res); err != nil {
			c.log.Warnf("persisting resource %s failed: %v", id, err)
		}
	}()
}

func (c *Cache) notifyLocked(e *entry) {
	snap := e.snapshot()
	for _, s := range e.subs {
		s.push(snap)
	}
}

func (c *Cache) removeSub(key Key, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return
	}
	if s, ok := e.subs[id]; ok {
		delete(e.subs, id)
		close(s.ch)
	}
}

func (c *Cache) setSubEnabled(sub *Subscription, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub.enabled = enabled
	e, ok := c.entries[sub.key.String()]
	if !ok {
		return
	}
	// Re-enabling refetches when the entry is absent or stale.
	if enabled && e.fetcher != nil && e.needsRefresh(time.Now()) {
		c.startFetchLocked(e)
	}
}
