package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/blockchain"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/chains"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/liquidity"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/metadata"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/metrics"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

const (
	DefaultBatchSize   = 100
	defaultCallTimeout = 10 * time.Second
)

// Sink receives every token as soon as it is assembled. Implementations must not
// fail the scan: errors are theirs to log.
type Sink interface {
	RecordToken(ctx context.Context, token *models.TokenDeployment)
}

// Waiter throttles RPC bursts. Wait is called once before every batch.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Job describes one inclusive block range scan.
type Job struct {
	Chain   chains.ChainConfig
	Client  blockchain.Client
	Limiter Waiter
	From    uint64
	To      uint64
}

// Result is the outcome of a scan. Tokens are ordered by block, then by
// transaction index.
type Result struct {
	Tokens          []*models.TokenDeployment
	BlocksAttempted int
	BlocksFailed    int
	ContractsFound  int
	Duration        time.Duration
}

type Config struct {
	BatchSize   int
	CallTimeout time.Duration
}

type Scanner struct {
	logger      *logger.Logger
	metadata    *metadata.Fetcher
	prober      *liquidity.Prober
	sink        Sink
	batchSize   int
	callTimeout time.Duration
	now         func() time.Time
}

func New(logger *logger.Logger, fetcher *metadata.Fetcher, prober *liquidity.Prober, sink Sink, cfg Config) *Scanner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &Scanner{
		logger:      logger,
		metadata:    fetcher,
		prober:      prober,
		sink:        sink,
		batchSize:   cfg.BatchSize,
		callTimeout: cfg.CallTimeout,
		now:         time.Now,
	}
}

// blockOutcome collects what one block produced.
type blockOutcome struct {
	tokens    []*models.TokenDeployment
	creations int
	failed    bool
}

// Scan walks [From, To] in batches. Block and transaction failures are logged and
// skipped. An error is only returned for an invalid range or a cancelled context;
// in the latter case the partial result is returned too.
func (s *Scanner) Scan(ctx context.Context, job Job) (*Result, error) {
	if job.From > job.To {
		return nil, fmt.Errorf("invalid block range %d-%d", job.From, job.To)
	}
	started := s.now()
	result := &Result{}
	log := s.logger.With("chain", job.Chain.Name)

	for batchStart := job.From; batchStart <= job.To; batchStart += uint64(s.batchSize) {
		batchEnd := batchStart + uint64(s.batchSize) - 1
		if batchEnd > job.To || batchEnd < batchStart {
			batchEnd = job.To
		}

		if err := ctx.Err(); err != nil {
			result.Duration = s.now().Sub(started)
			return result, fmt.Errorf("scan interrupted at block %d: %w", batchStart, err)
		}
		if job.Limiter != nil {
			if err := job.Limiter.Wait(ctx); err != nil {
				result.Duration = s.now().Sub(started)
				return result, fmt.Errorf("scan interrupted at block %d: %w", batchStart, err)
			}
		}

		outcomes := make([]blockOutcome, batchEnd-batchStart+1)
		var g errgroup.Group
		for number := batchStart; number <= batchEnd; number++ {
			i, number := number-batchStart, number
			g.Go(func() error {
				outcomes[i] = s.scanBlock(ctx, job, number)
				return nil
			})
		}
		_ = g.Wait()

		for _, o := range outcomes {
			result.BlocksAttempted++
			result.ContractsFound += o.creations
			if o.failed {
				result.BlocksFailed++
				continue
			}
			result.Tokens = append(result.Tokens, o.tokens...)
		}
		log.Debug("batch scanned", "from", batchStart, "to", batchEnd, "tokens", len(result.Tokens))

		// Blocks of a batch cut short by cancellation are not real failures.
		if err := ctx.Err(); err != nil {
			result.Duration = s.now().Sub(started)
			return result, fmt.Errorf("scan interrupted in blocks %d-%d: %w", batchStart, batchEnd, err)
		}
		if batchEnd == job.To {
			break
		}
	}

	result.Duration = s.now().Sub(started)
	metrics.ScanDuration.WithLabelValues(job.Chain.Name).Observe(result.Duration.Seconds())
	return result, nil
}

func (s *Scanner) scanBlock(ctx context.Context, job Job, number uint64) blockOutcome {
	blockCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	block, err := job.Client.BlockByNumber(blockCtx, number)
	cancel()
	if err != nil {
		s.logger.Warn("failed to fetch block", "chain", job.Chain.Name, "block", number, "error", err)
		metrics.BlockErrors.WithLabelValues(job.Chain.Name).Inc()
		return blockOutcome{failed: true}
	}
	metrics.BlocksScanned.WithLabelValues(job.Chain.Name).Inc()

	var creations []*blockchain.Transaction
	for _, tx := range block.Transactions {
		if tx != nil && tx.IsContractCreation() {
			creations = append(creations, tx)
		}
	}
	if len(creations) == 0 {
		return blockOutcome{}
	}

	found := make([]*models.TokenDeployment, len(creations))
	var wg sync.WaitGroup
	for i, tx := range creations {
		wg.Add(1)
		go func(i int, tx *blockchain.Transaction) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("panic while processing creation tx", "chain", job.Chain.Name, "block", number, "tx", tx.Hash.Hex(), "panic", r)
				}
			}()
			found[i] = s.processCreation(ctx, job, block, tx)
		}(i, tx)
	}
	wg.Wait()

	outcome := blockOutcome{creations: len(creations)}
	for _, token := range found {
		if token != nil {
			outcome.tokens = append(outcome.tokens, token)
		}
	}
	return outcome
}

func (s *Scanner) processCreation(ctx context.Context, job Job, block *blockchain.Block, tx *blockchain.Transaction) *models.TokenDeployment {
	receiptCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	receipt, err := job.Client.TransactionReceipt(receiptCtx, tx.Hash)
	cancel()
	if err != nil {
		s.logger.Warn("failed to fetch receipt", "chain", job.Chain.Name, "block", uint64(block.Number), "tx", tx.Hash.Hex(), "error", err)
		return nil
	}
	if receipt == nil || !receipt.Succeeded() {
		return nil
	}
	contract, ok := receipt.DeployedContract()
	if !ok {
		return nil
	}

	var (
		meta models.TokenMetadata
		lp   models.LPInfo
		wg   sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		meta = s.metadata.Fetch(ctx, job.Client, contract)
	}()
	go func() {
		defer wg.Done()
		lp = s.prober.Probe(ctx, job.Client, job.Chain, contract)
	}()
	wg.Wait()

	if !meta.LooksLikeToken() {
		s.logger.Debug("skipping non-token contract", "chain", job.Chain.Name, "contract", contract.Hex())
		return nil
	}

	token := newTokenDeployment(job.Chain, block, tx, contract, meta, lp)
	metrics.TokensDiscovered.WithLabelValues(job.Chain.Name, string(lp.Status)).Inc()
	if s.sink != nil {
		s.sink.RecordToken(ctx, token)
	}
	return token
}

func newTokenDeployment(chain chains.ChainConfig, block *blockchain.Block, tx *blockchain.Transaction, contract common.Address, meta models.TokenMetadata, lp models.LPInfo) *models.TokenDeployment {
	return &models.TokenDeployment{
		ContractAddress: contract.Hex(),
		Chain:           chain.Name,
		ChainID:         chain.ChainID,
		IsOpStack:       chain.IsOpStack,
		Deployer:        tx.From.Hex(),
		TxHash:          tx.Hash.Hex(),
		BlockNumber:     uint64(block.Number),
		TxIndex:         uint64(tx.TransactionIndex),
		Timestamp:       time.Unix(int64(block.Timestamp), 0).UTC(),
		Metadata:        meta,
		LPInfo:          lp,
		ExplorerURL:     chain.AddressURL(contract.Hex()),
	}
}
