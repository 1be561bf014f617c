package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload" // Automatically load .env file if present
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rxtech-lab/crowdfund-mcp/internal/ledger"
	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
	"github.com/rxtech-lab/crowdfund-mcp/internal/server"
	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

// reconcileActor identifies scheduled/CLI runs in the audit trail.
const reconcileActor = "system:reconciler"

var (
	flagSqlitePath  string
	flagPostgresURL string
	flagRPCURL      string
	flagRegistry    string
	flagChainID     string
	flagConcurrency int
	flagJSON        bool
)

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Campaign consistency reconciliation",
	Long: `Reconcile off-chain submission records against the on-chain campaign
registry. Detects orphans and mismatched campaign ids, repairs mismatches
idempotently, and reports drift without mutating anything in scan mode.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full batch reconciliation (idempotent, schedulable)",
	RunE:  runReconciliation,
}

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Read-only drift scan, no repairs",
	RunE:  runDriftScan,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagSqlitePath, "sqlite", "", "SQLite database path (default from SQLITE_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagPostgresURL, "postgres", "", "Postgres DSN (default from POSTGRES_URL)")
	rootCmd.PersistentFlags().StringVar(&flagRPCURL, "rpc-url", "", "Ledger RPC endpoint (default from LEDGER_RPC_URL)")
	rootCmd.PersistentFlags().StringVar(&flagRegistry, "registry", "", "Campaign registry contract address (default from REGISTRY_ADDRESS)")
	rootCmd.PersistentFlags().StringVar(&flagChainID, "chain-id", "", "Ledger chain id (default from LEDGER_CHAIN_ID)")
	rootCmd.PersistentFlags().IntVar(&flagConcurrency, "concurrency", 0, "Projection-read fan-out during index construction")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print full per-record results as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(driftCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type engine struct {
	db             services.DBService
	client         *ledger.EthClient
	reconciliation services.ReconciliationService
	diagnostics    services.DiagnosticsService
	logger         *zap.Logger
}

func (e *engine) close() {
	e.client.Close()
	e.db.Close()
	e.logger.Sync()
}

// setup wires the read path of the engine from flags and environment. The
// reconcile CLI never signs transactions, so no admin key is required.
func setup() (*engine, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var dbService services.DBService
	postgresURL := override(flagPostgresURL, "POSTGRES_URL")
	if postgresURL != "" {
		dbService, err = services.NewPostgresDBService(postgresURL)
	} else {
		sqlitePath := override(flagSqlitePath, "SQLITE_PATH")
		if sqlitePath == "" {
			sqlitePath = "data/crowdfund.db"
		}
		dbService, err = services.NewSqliteDBService(sqlitePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ledgerCfg, err := ledger.ConfigFromEnv(
		override(flagRPCURL, "LEDGER_RPC_URL"),
		override(flagRegistry, "REGISTRY_ADDRESS"),
		override(flagChainID, "LEDGER_CHAIN_ID"),
		"",
	)
	if err != nil {
		dbService.Close()
		return nil, fmt.Errorf("invalid ledger configuration: %w", err)
	}

	client, err := ledger.NewEthClient(ledgerCfg)
	if err != nil {
		dbService.Close()
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	_, _, reconciliationService, _, diagnosticsService :=
		server.InitializeServices(dbService.GetDB(), client, []string{ledgerCfg.ContractAddress}, flagConcurrency, logger)

	return &engine{
		db:             dbService,
		client:         client,
		reconciliation: reconciliationService,
		diagnostics:    diagnosticsService,
		logger:         logger,
	}, nil
}

func runReconciliation(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	result, err := e.reconciliation.Run(context.Background(), reconcileActor)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	if flagJSON {
		return printJSON(result)
	}

	fmt.Printf("run %s: %d valid, %d fixed, %d orphaned, %d errored (%d collisions, %d ledger read failures)\n",
		result.RunID, result.Valid, result.Fixed, result.Orphaned, result.Errored,
		len(result.Collisions), len(result.Failures))
	for _, record := range result.Results {
		if record.Classification == models.ClassificationValid {
			continue
		}
		fmt.Printf("  %s %s %s\n", record.SubmissionID, record.Classification, record.Detail)
	}
	return nil
}

func runDriftScan(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	entries, err := e.diagnostics.ScanForDrift(context.Background())
	if err != nil {
		return fmt.Errorf("drift scan failed: %w", err)
	}

	if flagJSON {
		return printJSON(entries)
	}

	needsFix := 0
	for _, entry := range entries {
		if entry.NeedsFix {
			needsFix++
		}
		if entry.NeedsFix || entry.Detail != "" {
			fmt.Printf("  %s needs_fix=%t %s\n", entry.SubmissionID, entry.NeedsFix, entry.Detail)
		}
	}
	fmt.Printf("%d minted submissions scanned, %d need fixing\n", len(entries), needsFix)
	return nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// override prefers the flag value, falling back to the environment.
func override(flagValue, envKey string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envKey)
}
