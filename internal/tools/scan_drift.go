package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

func NewScanDriftTool(diagnostics services.DiagnosticsService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("scan_drift",
		mcp.WithDescription("Read-only consistency scan of every minted submission against its stored on-chain campaign slot. Reports URI mismatches and unreadable slots without mutating anything."),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries, err := diagnostics.ScanForDrift(ctx)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: "),
					mcp.NewTextContent(fmt.Sprintf("Error scanning for drift: %v", err)),
				},
			}, nil
		}

		needsFix := 0
		for _, entry := range entries {
			if entry.NeedsFix {
				needsFix++
			}
		}

		entriesJSON, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal drift entries: %w", err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(fmt.Sprintf("Scanned %d minted submissions, %d need fixing", len(entries), needsFix)),
				mcp.NewTextContent(string(entriesJSON)),
			},
		}, nil
	}

	return tool, handler
}
