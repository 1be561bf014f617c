package main

import (
	"flag"
	"io"
	"log"
	"os"

	_ "github.com/joho/godotenv/autoload" // Automatically load .env file if present
	"go.uber.org/zap"

	"github.com/rxtech-lab/crowdfund-mcp/internal/ledger"
	"github.com/rxtech-lab/crowdfund-mcp/internal/mcp"
	"github.com/rxtech-lab/crowdfund-mcp/internal/server"
	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

// Build information (set via ldflags)
var (
	Version    = "dev"
	CommitHash = "unknown"
)

func main() {
	var showVersion = flag.Bool("version", false, "Show version information")
	var enableLog = flag.Bool("log", false, "Enable logging output on stderr")
	flag.Parse()

	// stdout carries the MCP protocol, so logging defaults to off and is
	// routed to stderr when enabled.
	log.SetOutput(io.Discard)
	logger := zap.NewNop()
	if *enableLog {
		log.SetOutput(os.Stderr)
		devLogger, err := zap.NewDevelopment()
		if err == nil {
			logger = devLogger
		}
	}
	defer logger.Sync()

	if *showVersion {
		log.SetOutput(os.Stderr)
		log.Printf("Crowdfund Reconciliation MCP Server %s (%s)\n", Version, CommitHash)
		return
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		homePath, err := os.UserHomeDir()
		if err != nil {
			log.Fatal("Failed to get home directory:", err)
		}
		sqlitePath = homePath + "/crowdfund.db"
	}
	dbService, err := services.NewSqliteDBService(sqlitePath)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer dbService.Close()

	ledgerCfg, err := ledger.ConfigFromEnv(
		os.Getenv("LEDGER_RPC_URL"),
		os.Getenv("REGISTRY_ADDRESS"),
		os.Getenv("LEDGER_CHAIN_ID"),
		os.Getenv("ADMIN_PRIVATE_KEY"),
	)
	if err != nil {
		log.Fatal("Invalid ledger configuration:", err)
	}
	client, err := ledger.NewEthClient(ledgerCfg)
	if err != nil {
		log.Fatal("Failed to connect to ledger:", err)
	}
	defer client.Close()

	submissionService, _, reconciliationService, lifecycleService, diagnosticsService :=
		server.InitializeServices(dbService.GetDB(), client, []string{ledgerCfg.ContractAddress}, 0, logger)

	mcpServer := mcp.NewMCPServer(submissionService, reconciliationService, lifecycleService, diagnosticsService)

	// Blocks until stdin closes.
	if err := mcpServer.ServeStdio(); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal("MCP server error:", err)
	}
}
