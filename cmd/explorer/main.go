package main

import (
	"log"
	"os"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/config"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	app := &cli.App{
		Name:  "explorer",
		Usage: "Superchain token explorer: scans OP-Stack and EVM chains for new token deployments",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
			&cli.StringFlag{Name: "storage", Aliases: []string{"s"}, Usage: "Storage driver (postgres, mysql, memory)"},
			&cli.StringFlag{Name: "postgres-user", Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Usage: "Postgres database name"},
			&cli.StringFlag{Name: "chains-file", Aliases: []string{"c"}, Usage: "YAML file adding or overriding chains"},
			&cli.IntFlag{Name: "rpc-rate-limit", Usage: "RPC requests per minute per chain"},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, notifications and the optional auto scan",
				Flags:  []cli.Flag{&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "API port"}},
				Action: serve,
			},
			{
				Name:  "scan",
				Usage: "Scan a block range once and print the result as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "chain", Required: true, Usage: "Chain name, e.g. base"},
					&cli.Uint64Flag{Name: "from", Usage: "First block (default: tip minus the default range)"},
					&cli.Uint64Flag{Name: "to", Usage: "Last block (default: chain tip)"},
				},
				Action: scanOnce,
			},
			{
				Name:   "export",
				Usage:  "Write all stored data as JSON",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default: stdout)"}},
				Action: exportData,
			},
			{
				Name:   "import",
				Usage:  "Replace stored data with a previous export",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "Export file"}},
				Action: importData,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the environment and overrides it with flags that were set.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if c.IsSet("storage") {
		cfg.StorageDriver = c.String("storage")
	}
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("chains-file") {
		cfg.ChainsFile = c.String("chains-file")
	}
	if c.IsSet("rpc-rate-limit") {
		cfg.RPCRateLimit = c.Int("rpc-rate-limit")
	}
	if c.IsSet("port") {
		cfg.APIPort = c.Int("port")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
