package server

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rxtech-lab/crowdfund-mcp/internal/ledger"
	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

// InitializeServices wires the engine's services around one shared database
// handle and one explicitly passed ledger client.
func InitializeServices(db *gorm.DB, client ledger.Client, enabledContracts []string, scanConcurrency int, logger *zap.Logger) (
	services.SubmissionService,
	services.AuditService,
	services.ReconciliationService,
	services.LifecycleService,
	services.DiagnosticsService,
) {
	submissionService := services.NewSubmissionService(db)
	auditService := services.NewAuditService(db)
	indexerService := services.NewIndexerService(client, client.ContractAddress(), scanConcurrency, logger)
	reconciliationService := services.NewReconciliationService(db, submissionService, indexerService, client, auditService, logger)
	lifecycleService := services.NewLifecycleService(submissionService, client, auditService, logger)
	diagnosticsService := services.NewDiagnosticsService(submissionService, client, enabledContracts)

	return submissionService, auditService, reconciliationService, lifecycleService, diagnosticsService
}
