package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/chains"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/config"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/explorer"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/http_api"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/notificator"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/pricefeed"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/repository"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/rpcpool"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	pool     *rpcpool.Pool
	repo     models.Repository
	explorer *explorer.Explorer
}

func newApp(c *cli.Context) (*app, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	registry := chains.Default()
	if cfg.ChainsFile != "" {
		if registry, err = chains.LoadFile(cfg.ChainsFile, chains.DefaultChains()); err != nil {
			return nil, fmt.Errorf("failed to load chains file: %w", err)
		}
	}

	repo, err := openRepository(cfg, log.Named("repository"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pool := rpcpool.New(log.Named("rpcpool"), registry,
		rpcpool.WithRateLimit(cfg.RPCRateLimit),
		rpcpool.WithProbeTimeout(cfg.RPCTimeout),
	)

	var opts []explorer.Option
	if cfg.PriceEnrichment {
		opts = append(opts, explorer.WithPriceEnricher(
			pricefeed.NewDexScreener(log.Named("dexscreener"), cfg.DexScreenerURL, cfg.RPCTimeout),
		))
	}
	exp := explorer.NewExplorer(repo, registry, pool, log.Named("explorer"), explorer.Config{
		BatchSize:        cfg.ScanBatchSize,
		CallTimeout:      cfg.RPCTimeout,
		DefaultRange:     cfg.ScanDefaultRange,
		MaxRange:         cfg.ScanMaxRange,
		ScanCacheTTL:     cfg.ScanCacheTTL,
		GasCacheTTL:      cfg.GasCacheTTL,
		AutoScanChains:   cfg.AutoScanChains,
		AutoScanInterval: cfg.AutoScanInterval,
	}, opts...)

	return &app{cfg: cfg, log: log, pool: pool, repo: repo, explorer: exp}, nil
}

func openRepository(cfg *config.Config, log *logger.Logger) (models.Repository, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMySQL:
		return repository.NewMySQLDB(cfg.MySQLUser, cfg.MySQLPassword, cfg.MySQLDB, cfg.MySQLHost, cfg.MySQLPort, cfg.ScanHistoryLimit, log)
	case config.StorageDriverMemory:
		log.Warn("Using in-memory storage, data is lost on exit")
		return repository.NewMemoryDB(cfg.ScanHistoryLimit), nil
	default:
		return repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, cfg.ScanHistoryLimit, log)
	}
}

func (a *app) close() {
	a.pool.Close()
	if err := a.repo.Close(); err != nil {
		a.log.Error("Failed to close database", "error", err)
	}
	_ = a.log.Sync()
}

// serve runs the API, notifications and the auto scan until SIGINT or SIGTERM.
func serve(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var email, telegram notificator.Sender
	if a.cfg.SMTPHost != "" {
		email = notificator.NewEmailNotificator(a.log.Named("email"), a.cfg.SMTPHost, a.cfg.SMTPPort,
			a.cfg.SMTPAlternativePort, a.cfg.SMTPUser, a.cfg.SMTPPassword, a.cfg.SMTPSender)
	}
	if a.cfg.TelegramBotToken != "" {
		bot, err := notificator.NewTelegramNotificator(a.log.Named("telegram"), a.cfg.TelegramBotToken, a.repo)
		if err != nil {
			return err
		}
		go bot.Start(ctx)
		telegram = bot
	}
	webhook := notificator.NewWebhookNotificator(a.log.Named("webhook"), a.cfg.WebhookTimeout)
	a.explorer.AddListener(notificator.NewNotificator(a.log.Named("notificator"), a.repo, webhook, email, telegram))

	feed := http_api.NewFeed(a.log.Named("feed"))
	a.explorer.AddListener(feed)

	server := http_api.NewHTTPServer(a.explorer, feed, http_api.ServerConfig{
		Port:       a.cfg.APIPort,
		RateLimit:  a.cfg.APIRateLimit,
		AdminToken: a.cfg.APIAdminToken,
	}, a.log.Named("http"))

	go a.explorer.Start(ctx)
	go server.Start()

	<-ctx.Done()
	a.log.Info("Shutting down")
	return server.Shutdown()
}

func scanOnce(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer a.close()

	req := models.ScanRequest{Chain: c.String("chain")}
	if c.IsSet("from") {
		from := c.Uint64("from")
		req.FromBlock = &from
	}
	if c.IsSet("to") {
		to := c.Uint64("to")
		req.ToBlock = &to
	}

	resp, err := a.explorer.Scan(c.Context, req)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return writeJSON(os.Stdout, resp)
}

func exportData(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer a.close()

	data, err := a.explorer.Export()
	if err != nil {
		return fmt.Errorf("failed to export data: %w", err)
	}

	out := os.Stdout
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	if err := writeJSON(out, data); err != nil {
		return err
	}
	a.log.Info("Exported data",
		"token_deployments", len(data.TokenDeployments),
		"scan_history", len(data.ScanHistory),
		"deployer_stats", len(data.DeployerStats),
		"subscriptions", len(data.Subscriptions),
	)
	return nil
}

func importData(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer a.close()

	raw, err := os.ReadFile(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	var data models.DataExport
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to decode export: %w", err)
	}
	if err := a.explorer.Import(&data); err != nil {
		return fmt.Errorf("failed to import data: %w", err)
	}
	a.log.Info("Imported data", "token_deployments", len(data.TokenDeployments), "subscriptions", len(data.Subscriptions))
	return nil
}

func writeJSON(out *os.File, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}
