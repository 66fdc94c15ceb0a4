package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
)

func TestMemoryDB(t *testing.T) {
	runRepositoryTests(t, func(t *testing.T) models.Repository {
		return NewMemoryDB(3)
	})
}

func TestMemoryDBReturnsCopies(t *testing.T) {
	repo := NewMemoryDB(0)
	_, err := repo.SaveTokenDeployment(token("base", addr(1), addr(100), models.LPStatusNo, 0))
	require.NoError(t, err)

	got, err := repo.GetTokenDeployment("base", addr(1))
	require.NoError(t, err)
	got.LPInfo.Status = models.LPStatusYes

	again, err := repo.GetTokenDeployment("base", addr(1))
	require.NoError(t, err)
	assert.Equal(t, models.LPStatusNo, again.LPInfo.Status)
}

func TestMemoryDBConcurrentUpserts(t *testing.T) {
	repo := NewMemoryDB(0)
	var wg sync.WaitGroup
	created := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.SaveTokenDeployment(token("base", addr(1), addr(100), models.LPStatusNo, 0))
			assert.NoError(t, err)
			created <- ok
		}()
	}
	wg.Wait()
	close(created)

	n := 0
	for ok := range created {
		if ok {
			n++
		}
	}
	assert.Equal(t, 1, n)

	stats, err := repo.GetDeployerStats(models.DeployerFilter{})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].TokenCount)
}

func TestMemoryDBLockExpires(t *testing.T) {
	repo := NewMemoryDB(0)
	now := baseTime
	repo.now = func() time.Time { return now }

	ok, err := repo.AcquireLock("auto-scan", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = repo.AcquireLock("auto-scan", "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
