package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

func NewRunReconciliationTool(reconciliation services.ReconciliationService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("run_reconciliation",
		mcp.WithDescription("Reconcile every minted submission against the on-chain campaign registry. Classifies each record as VALID, FIXED, ORPHAN or ERROR and repairs mismatched campaign ids. Idempotent: a second run with no ledger changes performs zero writes."),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := reconciliation.Run(ctx, "mcp:admin")
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: "),
					mcp.NewTextContent(fmt.Sprintf("Error running reconciliation: %v", err)),
				},
			}, nil
		}

		resultJSON, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal reconciliation result: %w", err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(fmt.Sprintf("Reconciliation run %s complete: %d valid, %d fixed, %d orphaned, %d errored",
					result.RunID, result.Valid, result.Fixed, result.Orphaned, result.Errored)),
				mcp.NewTextContent(string(resultJSON)),
			},
		}, nil
	}

	return tool, handler
}
