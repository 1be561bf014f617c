package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload" // Automatically load .env file if present
	"go.uber.org/zap"

	"github.com/rxtech-lab/crowdfund-mcp/internal/api"
	"github.com/rxtech-lab/crowdfund-mcp/internal/ledger"
	"github.com/rxtech-lab/crowdfund-mcp/internal/mcp"
	"github.com/rxtech-lab/crowdfund-mcp/internal/server"
	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
	"github.com/rxtech-lab/crowdfund-mcp/internal/utils"
)

func main() {
	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	parsedPort, err := strconv.Atoi(port)
	if err != nil {
		log.Fatal("Invalid port number:", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Initialize database: Postgres when configured, SQLite otherwise
	var dbService services.DBService
	if postgresUrl := os.Getenv("POSTGRES_URL"); postgresUrl != "" {
		dbService, err = services.NewPostgresDBService(postgresUrl)
	} else {
		dbPath := os.Getenv("SQLITE_PATH")
		if dbPath == "" {
			dbPath = "data/crowdfund.db"
		}
		dbService, err = services.NewSqliteDBService(dbPath)
	}
	if err != nil {
		log.Fatal("Failed to initialize database service:", err)
	}
	defer dbService.Close()

	// Ledger client: constructed once, passed explicitly into every service
	ledgerCfg, err := ledger.ConfigFromEnv(
		os.Getenv("LEDGER_RPC_URL"),
		os.Getenv("REGISTRY_ADDRESS"),
		os.Getenv("LEDGER_CHAIN_ID"),
		os.Getenv("ADMIN_PRIVATE_KEY"),
	)
	if err != nil {
		log.Fatal("Invalid ledger configuration:", err)
	}
	ledgerClient, err := ledger.NewEthClient(ledgerCfg)
	if err != nil {
		log.Fatal("Failed to connect to ledger:", err)
	}
	defer ledgerClient.Close()

	scanConcurrency := 0
	if raw := os.Getenv("SCAN_CONCURRENCY"); raw != "" {
		scanConcurrency, err = strconv.Atoi(raw)
		if err != nil {
			log.Fatal("Invalid SCAN_CONCURRENCY:", err)
		}
	}

	enabledContracts := parseEnabledContracts(os.Getenv("ENABLED_CONTRACTS"), ledgerCfg.ContractAddress)

	submissionService, auditService, reconciliationService, lifecycleService, diagnosticsService :=
		server.InitializeServices(dbService.GetDB(), ledgerClient, enabledContracts, scanConcurrency, logger)

	// Bearer auth is enabled when a JWKS endpoint is configured
	var authenticator *utils.JwtAuthenticator
	if jwksUri := os.Getenv("JWKS_URI"); jwksUri != "" {
		authenticator = utils.NewJwtAuthenticator(jwksUri)
	}

	apiServer := api.NewAPIServer(submissionService, reconciliationService, lifecycleService, diagnosticsService, auditService, authenticator)
	startedPort, err := apiServer.Start(parsedPort)
	if err != nil {
		log.Fatal("Failed to start API server:", err)
	}
	log.Printf("Admin API server started on port %d\n", startedPort)

	// Optional MCP surface over streamable HTTP
	if mcpPort := os.Getenv("MCP_PORT"); mcpPort != "" {
		mcpServer := mcp.NewMCPServer(submissionService, reconciliationService, lifecycleService, diagnosticsService)
		go func() {
			if err := mcpServer.StartStreamableHTTP(":" + mcpPort); err != nil {
				log.Printf("MCP server stopped: %v", err)
			}
		}()
		log.Printf("MCP server started on port %s\n", mcpPort)
	}

	// Set up graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("\nShutting down server...")

	if err := apiServer.Shutdown(); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}

	log.Println("Server shut down successfully")
}

// parseEnabledContracts builds the marketplace listing allowlist as
// checksummed addresses. The registry address itself is always enabled.
func parseEnabledContracts(raw, registryAddress string) []string {
	registry := utils.NormalizeEthereumAddress(registryAddress)
	enabled := []string{registry}
	for _, addr := range strings.Split(raw, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if !utils.IsValidEthereumAddress(addr) {
			log.Printf("Ignoring invalid enabled contract address: %s", addr)
			continue
		}
		if normalized := utils.NormalizeEthereumAddress(addr); normalized != registry {
			enabled = append(enabled, normalized)
		}
	}
	return enabled
}
