package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func token(chain, address, deployer string, status models.LPStatus, minutes int) *models.TokenDeployment {
	return &models.TokenDeployment{
		ContractAddress: address,
		Chain:           chain,
		ChainID:         8453,
		IsOpStack:       chain != "ethereum",
		Deployer:        deployer,
		TxHash:          "0x" + fmt.Sprintf("%064x", minutes+1),
		BlockNumber:     uint64(100 + minutes),
		Timestamp:       baseTime.Add(time.Duration(minutes) * time.Minute),
		Metadata: models.TokenMetadata{
			Name:        "Token " + address[len(address)-4:],
			Symbol:      "T" + address[len(address)-4:],
			Decimals:    18,
			TotalSupply: decimal.NewFromInt(1000),
		},
		LPInfo: models.LPInfo{V3: status == models.LPStatusYes, Status: status},
	}
}

func addr(n int) string {
	return fmt.Sprintf("0x%040X", n)
}

// runRepositoryTests exercises the behaviour every models.Repository must share.
func runRepositoryTests(t *testing.T, newRepo func(t *testing.T) models.Repository) {
	t.Run("idempotent upsert", func(t *testing.T) {
		repo := newRepo(t)
		tok := token("base", addr(1), addr(100), models.LPStatusNo, 0)

		created, err := repo.SaveTokenDeployment(tok)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = repo.SaveTokenDeployment(tok)
		require.NoError(t, err)
		assert.False(t, created)

		tokens, err := repo.GetTokenDeployments(models.TokenFilter{})
		require.NoError(t, err)
		assert.Len(t, tokens, 1)

		stats, err := repo.GetDeployerStats(models.DeployerFilter{})
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, int64(1), stats[0].TokenCount)
		assert.Equal(t, int64(0), stats[0].SuccessfulTokens)
	})

	t.Run("same address on two chains", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.SaveTokenDeployment(token("base", addr(1), addr(100), models.LPStatusNo, 0))
		require.NoError(t, err)
		created, err := repo.SaveTokenDeployment(token("optimism", addr(1), addr(100), models.LPStatusNo, 0))
		require.NoError(t, err)
		assert.True(t, created)

		stats, err := repo.GetDeployerStats(models.DeployerFilter{})
		require.NoError(t, err)
		assert.Len(t, stats, 2)
	})

	t.Run("provenance is kept and liquidity promoted once", func(t *testing.T) {
		repo := newRepo(t)
		first := token("base", addr(1), addr(100), models.LPStatusError, 0)
		_, err := repo.SaveTokenDeployment(first)
		require.NoError(t, err)

		again := token("base", addr(1), addr(200), models.LPStatusYes, 30)
		again.DexData = models.MarketData{PriceUSD: decimal.RequireFromString("1.5"), Liquidity: decimal.NewFromInt(5000), Dex: "uniswap"}
		for i := 0; i < 2; i++ {
			created, err := repo.SaveTokenDeployment(again)
			require.NoError(t, err)
			assert.False(t, created)
		}

		got, err := repo.GetTokenDeployment("base", addr(1))
		require.NoError(t, err)
		assert.Equal(t, addr(100), got.Deployer)
		assert.Equal(t, uint64(100), got.BlockNumber)
		assert.True(t, got.Timestamp.Equal(baseTime))
		assert.Equal(t, models.LPStatusYes, got.LPInfo.Status)
		assert.True(t, got.LPInfo.V3)
		assert.Equal(t, "uniswap", got.DexData.Dex)
		assert.True(t, got.DexData.Liquidity.Equal(decimal.NewFromInt(5000)))

		stats, err := repo.GetDeployerStats(models.DeployerFilter{})
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, addr(100), stats[0].Deployer)
		assert.Equal(t, int64(1), stats[0].TokenCount)
		assert.Equal(t, int64(1), stats[0].SuccessfulTokens)
		assert.InDelta(t, 100.0, stats[0].SuccessRate, 0.001)
	})

	t.Run("YES is never demoted", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.SaveTokenDeployment(token("base", addr(1), addr(100), models.LPStatusYes, 0))
		require.NoError(t, err)
		_, err = repo.SaveTokenDeployment(token("base", addr(1), addr(100), models.LPStatusError, 0))
		require.NoError(t, err)

		got, err := repo.GetTokenDeployment("base", addr(1))
		require.NoError(t, err)
		assert.Equal(t, models.LPStatusYes, got.LPInfo.Status)
		assert.True(t, got.LPInfo.V3)
	})

	t.Run("deployer aggregates", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.SaveTokenDeployment(token("base", addr(1), addr(100), models.LPStatusYes, 10))
		require.NoError(t, err)
		_, err = repo.SaveTokenDeployment(token("base", addr(2), addr(100), models.LPStatusNo, 0))
		require.NoError(t, err)
		_, err = repo.SaveTokenDeployment(token("base", addr(3), addr(100), models.LPStatusNo, 20))
		require.NoError(t, err)
		_, err = repo.SaveTokenDeployment(token("base", addr(4), addr(200), models.LPStatusYes, 5))
		require.NoError(t, err)

		stats, err := repo.GetDeployerStats(models.DeployerFilter{Chain: "base"})
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, addr(100), stats[0].Deployer)
		assert.Equal(t, int64(3), stats[0].TokenCount)
		assert.Equal(t, int64(1), stats[0].SuccessfulTokens)
		assert.InDelta(t, 33.333, stats[0].SuccessRate, 0.01)
		assert.True(t, stats[0].FirstSeen.Equal(baseTime))
		assert.True(t, stats[0].LastSeen.Equal(baseTime.Add(20*time.Minute)))

		bySuccess, err := repo.GetDeployerStats(models.DeployerFilter{SortBy: models.SortBySuccessRate})
		require.NoError(t, err)
		assert.Equal(t, addr(200), bySuccess[0].Deployer)

		prolific, err := repo.GetDeployerStats(models.DeployerFilter{MinDeployments: 2})
		require.NoError(t, err)
		require.Len(t, prolific, 1)
		assert.Equal(t, addr(100), prolific[0].Deployer)

		limited, err := repo.GetDeployerStats(models.DeployerFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("token filters and order", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.SaveTokenDeployment(token("base", addr(1), addr(100), models.LPStatusYes, 0))
		require.NoError(t, err)
		_, err = repo.SaveTokenDeployment(token("base", addr(2), addr(100), models.LPStatusNo, 10))
		require.NoError(t, err)
		_, err = repo.SaveTokenDeployment(token("ethereum", addr(3), addr(100), models.LPStatusNo, 5))
		require.NoError(t, err)

		all, err := repo.GetTokenDeployments(models.TokenFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{addr(2), addr(3), addr(1)}, []string{all[0].ContractAddress, all[1].ContractAddress, all[2].ContractAddress})

		yes := true
		withLP, err := repo.GetTokenDeployments(models.TokenFilter{HasLiquidity: &yes})
		require.NoError(t, err)
		require.Len(t, withLP, 1)
		assert.Equal(t, addr(1), withLP[0].ContractAddress)

		no := false
		l1, err := repo.GetTokenDeployments(models.TokenFilter{IsOpStack: &no})
		require.NoError(t, err)
		require.Len(t, l1, 1)
		assert.Equal(t, "ethereum", l1[0].Chain)

		paged, err := repo.GetTokenDeployments(models.TokenFilter{Chain: "base", Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, paged, 1)
		assert.Equal(t, addr(1), paged[0].ContractAddress)

		recent, err := repo.GetRecentActivity(baseTime.Add(5*time.Minute), 10)
		require.NoError(t, err)
		assert.Len(t, recent, 2)

		_, err = repo.GetTokenDeployment("base", addr(9))
		assert.ErrorIs(t, err, ErrNotFound)

		stats, err := repo.GetChainStats()
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.TotalTokens)
		assert.Equal(t, int64(1), stats.TokensWithLiquidity)
		assert.Equal(t, int64(2), stats.TotalDeployers)
		require.Len(t, stats.Chains, 2)
		assert.Equal(t, "base", stats.Chains[0].Chain)
		assert.Equal(t, int64(2), stats.Chains[0].Tokens)
		assert.Equal(t, int64(1), stats.Chains[0].WithLiquidity)
	})

	t.Run("scan history", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 5; i++ {
			require.NoError(t, repo.SaveScanRun(&models.ScanRun{
				Chain:     "base",
				FromBlock: uint64(i * 10),
				ToBlock:   uint64(i*10 + 9),
				ScanTime:  baseTime.Add(time.Duration(i) * time.Minute),
			}))
		}
		require.NoError(t, repo.SaveScanRun(&models.ScanRun{Chain: "optimism", ScanTime: baseTime}))

		history, err := repo.GetScanHistory("base", 0)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, uint64(40), history[0].FromBlock)
		assert.Equal(t, uint64(20), history[2].FromBlock)
		assert.NotEmpty(t, history[0].ID)

		all, err := repo.GetScanHistory("", 10)
		require.NoError(t, err)
		assert.Len(t, all, 4)

		require.NoError(t, repo.ClearScanHistory())
		all, err = repo.GetScanHistory("", 10)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("subscriptions", func(t *testing.T) {
		repo := newRepo(t)
		sub := &models.Subscription{
			Chains:           models.StringList{"base", "optimism"},
			HasLiquidity:     true,
			MinLiquidity:     decimal.Zero,
			TelegramUsername: "alice",
			CreatedAt:        baseTime,
		}
		require.NoError(t, repo.AddSubscription(sub))
		require.NotEmpty(t, sub.ID)

		n, err := repo.BindTelegramChat("alice", "42")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		require.NoError(t, repo.MarkSubscriptionNotified(sub.ID, baseTime))

		subs, err := repo.GetSubscriptions()
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, models.StringList{"base", "optimism"}, subs[0].Chains)
		assert.Equal(t, "42", subs[0].TelegramChatID)
		require.NotNil(t, subs[0].LastNotified)

		require.NoError(t, repo.RemoveSubscription(sub.ID))
		assert.ErrorIs(t, repo.RemoveSubscription(sub.ID), ErrNotFound)
	})

	t.Run("lock lease", func(t *testing.T) {
		repo := newRepo(t)
		ok, err := repo.AcquireLock("auto-scan", "a", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.AcquireLock("auto-scan", "b", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.AcquireLock("auto-scan", "a", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.AcquireLock("other", "b", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("export and import", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.SaveTokenDeployment(token("base", addr(1), addr(100), models.LPStatusYes, 0))
		require.NoError(t, err)
		require.NoError(t, repo.SaveScanRun(&models.ScanRun{Chain: "base", ScanTime: baseTime}))

		data, err := repo.ExportData()
		require.NoError(t, err)
		assert.Len(t, data.TokenDeployments, 1)
		assert.Len(t, data.DeployerStats, 1)
		assert.Len(t, data.ScanHistory, 1)

		require.NoError(t, repo.ClearTokenDeployments())
		require.NoError(t, repo.ClearDeployerStats())
		tokens, err := repo.GetTokenDeployments(models.TokenFilter{})
		require.NoError(t, err)
		assert.Empty(t, tokens)

		require.NoError(t, repo.ImportData(data))
		got, err := repo.GetTokenDeployment("base", addr(1))
		require.NoError(t, err)
		assert.Equal(t, models.LPStatusYes, got.LPInfo.Status)
		stats, err := repo.GetDeployerStats(models.DeployerFilter{})
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, int64(1), stats[0].SuccessfulTokens)
		history, err := repo.GetScanHistory("base", 10)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})
}
