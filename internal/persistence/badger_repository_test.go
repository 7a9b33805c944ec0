package persistence

import (
	"bot-console-go/internal/models"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) SnapshotRepository {
	t.Helper()
	repo, err := NewBadgerRepository(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSessionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	loaded, err := repo.LoadSession()
	require.NoError(t, err)
	assert.Nil(t, loaded, "empty store must yield no snapshot, not an error")

	snap := &models.SessionSnapshot{
		User:            &models.User{ID: "u1", Name: "trader"},
		IsAuthenticated: true,
		LastCheckedAt:   time.Now().Truncate(time.Second),
		Verified:        true,
	}
	require.NoError(t, repo.SaveSession(snap))

	loaded, err = repo.LoadSession()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.IsAuthenticated)
	assert.Equal(t, "u1", loaded.User.ID)
}

func TestClearSession(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.SaveSession(&models.SessionSnapshot{IsAuthenticated: true}))
	require.NoError(t, repo.ClearSession())

	loaded, err := repo.LoadSession()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Clearing an already-empty store is not an error.
	assert.NoError(t, repo.ClearSession())
}

func TestResourceRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	fetchedAt := time.Now().Truncate(time.Second)
	require.NoError(t, repo.SaveResource("bots", StoredResource{
		Payload:   json.RawMessage(`[{"id":"b1"}]`),
		FetchedAt: fetchedAt,
	}))
	require.NoError(t, repo.SaveResource("account", StoredResource{
		Payload:   json.RawMessage(`{"total_balance":100}`),
		FetchedAt: fetchedAt,
	}))

	out, err := repo.LoadResources()
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.JSONEq(t, `[{"id":"b1"}]`, string(out["bots"].Payload))
	assert.JSONEq(t, `{"total_balance":100}`, string(out["account"].Payload))
	assert.True(t, out["bots"].FetchedAt.Equal(fetchedAt))
}

func TestSaveResourceOverwrites(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.SaveResource("trades", StoredResource{Payload: json.RawMessage(`[]`)}))
	require.NoError(t, repo.SaveResource("trades", StoredResource{Payload: json.RawMessage(`[{"id":"t1"}]`)}))

	out, err := repo.LoadResources()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.JSONEq(t, `[{"id":"t1"}]`, string(out["trades"].Payload))
}
