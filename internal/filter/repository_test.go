package filter

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// repositories returns each Repository implementation under test.
func repositories(t *testing.T) map[string]Repository {
	t.Helper()

	sqliteRepo, err := OpenSQLite(filepath.Join(t.TempDir(), "filters.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteRepo.Close() })

	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": sqliteRepo,
	}
}

func TestRepository_SaveLoad(t *testing.T) {
	ctx := context.Background()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := repo.Load(ctx, "autorizacion")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, repo.Save(ctx, "autorizacion", State{Search: " abc ", Category: "pending"}))

			got, ok, err := repo.Load(ctx, "autorizacion")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, State{Search: "abc", Category: "pending"}, got)
		})
	}
}

func TestRepository_KeepsOnlyLastValuePerView(t *testing.T) {
	ctx := context.Background()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Save(ctx, "blacklist", State{Search: "one"}))
			require.NoError(t, repo.Save(ctx, "blacklist", State{Search: "two"}))
			require.NoError(t, repo.Save(ctx, "incidents", State{Category: "open"}))

			got, _, err := repo.Load(ctx, "blacklist")
			require.NoError(t, err)
			assert.Equal(t, "two", got.Search)

			got, _, err = repo.Load(ctx, "incidents")
			require.NoError(t, err)
			assert.Equal(t, "open", got.Category)
		})
	}
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Save(ctx, "dash", State{Search: "x"}))
			require.NoError(t, repo.Delete(ctx, "dash"))
			require.NoError(t, repo.Delete(ctx, "unknown"))

			_, ok, err := repo.Load(ctx, "dash")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRepository_RestoreReproducesVisibility(t *testing.T) {
	ctx := context.Background()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			applied := State{Search: "norte"}
			before := applied.Apply(yardItems)
			require.NoError(t, repo.Save(ctx, "dash", applied))

			restored, ok, err := repo.Load(ctx, "dash")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, before, restored.Apply(yardItems))
		})
	}
}

func TestSQLiteRepository_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "filters.db")

	repo, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, "penalties", State{Category: "active"}))
	require.NoError(t, repo.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Load(ctx, "penalties")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "active", got.Category)
}

func TestSQLiteRepository_InMemory(t *testing.T) {
	repo, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "v", State{Search: "s"}))
	got, ok, err := repo.Load(ctx, "v")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "s", got.Search)
}

func TestRepository_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, repo.Save(ctx, "shared", State{Search: "x"}))
				}()
			}
			wg.Wait()

			got, ok, err := repo.Load(ctx, "shared")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "x", got.Search)
		})
	}
}
