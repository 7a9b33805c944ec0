// Package session maintains the process-wide authentication snapshot. The
// guard re-validates the session against the server on a fixed interval and
// on demand, falling back to the durable local snapshot when the network is
// unavailable so the console keeps working across transient connectivity
// loss.
package session

import (
	"bot-console-go/internal/api"
	"bot-console-go/internal/models"
	"bot-console-go/internal/persistence"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the guard's position in its validation cycle.
type State string

const (
	StateUnknown       State = "unknown"
	StateChecking      State = "checking"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

// AuthClient is the slice of the server API the guard needs.
type AuthClient interface {
	CheckAuth(ctx context.Context) (*api.AuthResponse, error)
	Logout(ctx context.Context) error
}

// Guard owns the SessionSnapshot. It is the only writer; every other
// component reads through Snapshot().
type Guard struct {
	client   AuthClient
	repo     persistence.SnapshotRepository
	interval time.Duration
	log      *zap.SugaredLogger

	mu       sync.RWMutex
	state    State
	snapshot models.SessionSnapshot

	stop     chan struct{}
	stopOnce sync.Once
}

// NewGuard creates a Guard checking every interval. repo may be nil to
// disable the durable fallback.
func NewGuard(client AuthClient, repo persistence.SnapshotRepository, interval time.Duration, log *zap.SugaredLogger) *Guard {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Guard{
		client:   client,
		repo:     repo,
		interval: interval,
		log:      log,
		state:    StateUnknown,
		stop:     make(chan struct{}),
	}
}

// Start restores the persisted snapshot as an unverified baseline, performs
// an immediate check, and begins the periodic re-validation loop.
func (g *Guard) Start(ctx context.Context) {
	if g.repo != nil {
		if snap, err := g.repo.LoadSession(); err != nil {
			g.log.Warnf("loading persisted session failed: %v", err)
		} else if snap != nil {
			snap.Verified = false
			g.mu.Lock()
			g.snapshot = *snap
			g.mu.Unlock()
			g.log.Infow("restored session snapshot from local store",
				"authenticated", snap.IsAuthenticated, "verified", false)
		}
	}

	go g.loop(ctx)
}

// Stop halts the re-validation loop.
func (g *Guard) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// Snapshot returns the current session snapshot.
func (g *Guard) Snapshot() models.SessionSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot
}

// State returns the guard's current state.
func (g *Guard) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// CheckNow re-validates the session immediately.
func (g *Guard) CheckNow(ctx context.Context) {
	g.check(ctx)
}

// Login transitions directly to authenticated and persists the snapshot.
func (g *Guard) Login(user *models.User) {
	snap := models.SessionSnapshot{
		User:            user,
		IsAuthenticated: true,
		LastCheckedAt:   time.Now(),
		Verified:        true,
	}
	g.mu.Lock()
	g.state = StateAuthenticated
	g.snapshot = snap
	g.mu.Unlock()

	g.persist(&snap)
	g.log.Infow("session established", "user", user.ID)
}

// Logout best-effort notifies the server, then unconditionally transitions to
// anonymous and clears the persisted snapshot, even when the server call
// fails.
func (g *Guard) Logout(ctx context.Context) {
	if err := g.client.Logout(ctx); err != nil {
		g.log.Warnf("server logout failed, clearing local session anyway: %v", err)
	}

	g.mu.Lock()
	g.state = StateAnonymous
	g.snapshot = models.SessionSnapshot{
		IsAuthenticated: false,
		LastCheckedAt:   time.Now(),
		Verified:        true,
	}
	g.mu.Unlock()

	if g.repo != nil {
		if err := g.repo.ClearSession(); err != nil {
			g.log.Warnf("clearing persisted session failed: %v", err)
		}
	}
	g.log.Info("session cleared")
}

func (g *Guard) loop(ctx context.Context) {
	g.check(ctx)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.check(ctx)
		case <-g.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// check performs one validation round. A network failure does not demote the
// session to anonymous; the last known snapshot stays visible, flagged as
// unverified. A confirmed rejection from the server does demote it.
func (g *Guard) check(ctx context.Context) {
	g.mu.Lock()
	prev := g.state
	g.state = StateChecking
	g.mu.Unlock()

	resp, err := g.client.CheckAuth(ctx)
	if err != nil {
		if models.IsAuthExpired(err) {
			g.log.Info("session expired, demoting to anonymous")
			g.mu.Lock()
			g.state = StateAnonymous
			g.snapshot = models.SessionSnapshot{
				IsAuthenticated: false,
				LastCheckedAt:   time.Now(),
				Verified:        true,
			}
			g.mu.Unlock()
			if g.repo != nil {
				if clearErr := g.repo.ClearSession(); clearErr != nil {
					g.log.Warnf("clearing persisted session failed: %v", clearErr)
				}
			}
			return
		}

		// Transient failure: keep continuity from the durable snapshot.
		g.mu.Lock()
		if prev == StateUnknown || prev == StateChecking {
			if g.snapshot.IsAuthenticated {
				g.state = StateAuthenticated
			} else {
				g.state = StateAnonymous
			}
		} else {
			g.state = prev
		}
		g.snapshot.Verified = false
		g.mu.Unlock()
		g.log.Warnf("session check failed, keeping unverified snapshot: %v", err)
		return
	}

	snap := models.SessionSnapshot{
		User:            resp.User,
		IsAuthenticated: resp.IsAuthenticated,
		LastCheckedAt:   time.Now(),
		Verified:        true,
	}
	newState := StateAnonymous
	if resp.IsAuthenticated {
		newState = StateAuthenticated
	}

	g.mu.Lock()
	g.state = newState
	g.snapshot = snap
	g.mu.Unlock()

	g.persist(&snap)
}

func (g *Guard) persist(snap *models.SessionSnapshot) {
	if g.repo == nil {
		return
	}
	if err := g.repo.SaveSession(snap); err != nil {
		g.log.Warnf("persisting session snapshot failed: %v", err)
	}
}
