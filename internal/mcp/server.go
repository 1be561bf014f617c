package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
	"github.com/rxtech-lab/crowdfund-mcp/internal/tools"
)

// MCPServer exposes the administrative operations as MCP tools so an agent
// can inspect and repair campaign drift interactively.
type MCPServer struct {
	server *server.MCPServer
}

func NewMCPServer(
	submissions services.SubmissionService,
	reconciliation services.ReconciliationService,
	lifecycle services.LifecycleService,
	diagnostics services.DiagnosticsService,
) *MCPServer {
	srv := server.NewMCPServer(
		"Crowdfund Reconciliation MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	// Read-only tools
	listSubmissionsTool, listSubmissionsHandler := tools.NewListSubmissionsTool(submissions)
	srv.AddTool(listSubmissionsTool, listSubmissionsHandler)

	scanDriftTool, scanDriftHandler := tools.NewScanDriftTool(diagnostics)
	srv.AddTool(scanDriftTool, scanDriftHandler)

	// Repair tools
	runReconciliationTool, runReconciliationHandler := tools.NewRunReconciliationTool(reconciliation)
	srv.AddTool(runReconciliationTool, runReconciliationHandler)

	repairSubmissionTool, repairSubmissionHandler := tools.NewRepairSubmissionTool(reconciliation)
	srv.AddTool(repairSubmissionTool, repairSubmissionHandler)

	// Lifecycle tools
	lifecycleTool, lifecycleHandler := tools.NewSubmissionLifecycleTool(lifecycle)
	srv.AddTool(lifecycleTool, lifecycleHandler)

	return &MCPServer{server: srv}
}

// ServeStdio serves the MCP protocol over stdin/stdout
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.server)
}

// StartStreamableHTTP serves the MCP protocol over streamable HTTP
func (s *MCPServer) StartStreamableHTTP(addr string) error {
	return server.NewStreamableHTTPServer(s.server).Start(addr)
}
