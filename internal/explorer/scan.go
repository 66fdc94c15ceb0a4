package explorer

import (
	"context"
	"fmt"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/blockchain"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/cache"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/chains"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/metrics"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/scanner"
)

// Scan discovers token deployments in the requested range, or in the latest
// DefaultRange blocks when no bounds are given. Every invocation that reaches the
// RPC layer is recorded in the scan history, failed ones included.
func (e *Explorer) Scan(ctx context.Context, req models.ScanRequest) (*models.ScanResponse, error) {
	chain, err := e.registry.Get(req.Chain)
	if err != nil {
		return nil, err
	}
	if err := chain.Validate(); err != nil {
		return nil, err
	}
	if req.FromBlock != nil && req.ToBlock != nil && *req.FromBlock > *req.ToBlock {
		return nil, fmt.Errorf("%w: from %d is after to %d", ErrInvalidRange, *req.FromBlock, *req.ToBlock)
	}

	key := cache.Key{Chain: chain.Name, Purpose: scanPurpose(req)}
	if req.UseCache {
		if cached, ok := e.scanCache.Get(key); ok {
			resp := *cached
			resp.FromCache = true
			return &resp, nil
		}
	}

	started := e.now()
	run := &models.ScanRun{Chain: chain.Name, ScanTime: started.UTC()}

	client, err := e.pool.GetClient(ctx, chain.Name)
	if err != nil {
		e.recordFailedRun(run, err)
		return nil, err
	}
	from, to, err := e.resolveRange(ctx, client, req)
	if err != nil {
		e.recordFailedRun(run, err)
		return nil, err
	}
	run.FromBlock, run.ToBlock = from, to

	limiter, err := e.pool.Limiter(chain.Name)
	if err != nil {
		return nil, err
	}
	result, err := e.scanner.Scan(ctx, scanner.Job{
		Chain:   chain,
		Client:  client,
		Limiter: limiter,
		From:    from,
		To:      to,
	})
	if result != nil {
		fillRun(run, result)
	}
	if err == nil {
		err = scanFailure(ctx, result)
	}
	if err != nil {
		err = fmt.Errorf("%w on %s blocks %d-%d: %w", ErrScanFailed, chain.Name, from, to, err)
		e.recordFailedRun(run, err)
		e.logger.Warn("Scan failed", "chain", chain.Name, "from", from, "to", to,
			"blocks_failed", run.BlocksFailed, "error", err)
		return nil, err
	}
	e.saveRun(run)

	resp := &models.ScanResponse{
		Tokens: result.Tokens,
		ScannedBlocks: models.BlockRange{
			From:  from,
			To:    to,
			Total: to - from + 1,
		},
		Chain: chain.Name,
		Summary: models.ScanSummary{
			BlocksFailed:        run.BlocksFailed,
			ContractsFound:      run.ContractsFound,
			TokensFound:         run.TokensFound,
			TokensWithLiquidity: run.TokensWithLiquidity,
			DurationMs:          run.DurationMs,
		},
	}
	if resp.Tokens == nil {
		resp.Tokens = []*models.TokenDeployment{}
	}
	e.scanCache.Set(key, resp)

	e.logger.Info("Scan finished", "chain", chain.Name, "from", from, "to", to,
		"tokens", run.TokensFound, "with_liquidity", run.TokensWithLiquidity, "failed_blocks", run.BlocksFailed)
	return resp, nil
}

// scanFailure reports a scan that returned normally but must not be taken for an
// empty range.
func scanFailure(ctx context.Context, result *scanner.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result.BlocksAttempted > 0 && result.BlocksFailed == result.BlocksAttempted {
		return fmt.Errorf("all %d blocks failed to fetch", result.BlocksAttempted)
	}
	return nil
}

func scanPurpose(req models.ScanRequest) string {
	if req.FromBlock == nil && req.ToBlock == nil {
		return "scan:latest"
	}
	from, to := "latest", "latest"
	if req.FromBlock != nil {
		from = fmt.Sprint(*req.FromBlock)
	}
	if req.ToBlock != nil {
		to = fmt.Sprint(*req.ToBlock)
	}
	return "scan:" + from + "-" + to
}

// resolveRange fills missing bounds relative to the chain tip.
func (e *Explorer) resolveRange(ctx context.Context, client blockchain.Client, req models.ScanRequest) (uint64, uint64, error) {
	if req.FromBlock != nil && req.ToBlock != nil {
		return e.checkRange(*req.FromBlock, *req.ToBlock)
	}

	var to uint64
	if req.ToBlock != nil {
		to = *req.ToBlock
	} else {
		callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
		head, err := client.BlockNumber(callCtx)
		cancel()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to get latest block: %w", err)
		}
		to = head
	}

	if req.FromBlock != nil {
		if *req.FromBlock > to {
			return 0, 0, fmt.Errorf("%w: from %d is after the chain tip %d", ErrInvalidRange, *req.FromBlock, to)
		}
		return e.checkRange(*req.FromBlock, to)
	}
	from := uint64(0)
	if to+1 > e.config.DefaultRange {
		from = to + 1 - e.config.DefaultRange
	}
	return from, to, nil
}

func (e *Explorer) checkRange(from, to uint64) (uint64, uint64, error) {
	if to-from+1 > e.config.MaxRange {
		return 0, 0, fmt.Errorf("%w: %d blocks requested, at most %d allowed", ErrInvalidRange, to-from+1, e.config.MaxRange)
	}
	return from, to, nil
}

func fillRun(run *models.ScanRun, result *scanner.Result) {
	run.BlocksScanned = result.BlocksAttempted
	run.BlocksFailed = result.BlocksFailed
	run.ContractsFound = result.ContractsFound
	run.TokensFound = len(result.Tokens)
	for _, t := range result.Tokens {
		if t.LPInfo.HasLiquidity() {
			run.TokensWithLiquidity++
		}
	}
	if run.TokensFound > 0 {
		run.SuccessRate = float64(run.TokensWithLiquidity) / float64(run.TokensFound) * 100
	}
	run.DurationMs = result.Duration.Milliseconds()
}

func (e *Explorer) recordFailedRun(run *models.ScanRun, cause error) {
	run.ErrorMessage = cause.Error()
	run.DurationMs = e.now().Sub(run.ScanTime).Milliseconds()
	e.saveRun(run)
}

func (e *Explorer) saveRun(run *models.ScanRun) {
	if err := e.repo.SaveScanRun(run); err != nil {
		metrics.PersistErrors.WithLabelValues("save_scan_run").Inc()
		e.logger.Error("Failed to save scan run", "chain", run.Chain, "error", err)
	}
}

// Chains lists the configured chains. Chains without both factories cannot be scanned.
func (e *Explorer) Chains() []models.ChainInfo {
	all := e.registry.All()
	infos := make([]models.ChainInfo, 0, len(all))
	for _, c := range all {
		infos = append(infos, chainInfo(c))
	}
	return infos
}

func chainInfo(c chains.ChainConfig) models.ChainInfo {
	return models.ChainInfo{
		Name:        c.Name,
		ChainID:     c.ChainID,
		ExplorerURL: c.ExplorerURL,
		IsOpStack:   c.IsOpStack,
		Scannable:   c.Validate() == nil,
	}
}
