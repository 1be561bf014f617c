package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

func NewRepairSubmissionTool(reconciliation services.ReconciliationService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("repair_submission",
		mcp.WithDescription("Repair one submission's on-chain linkage by matching its metadata URI against the campaign registry. Refuses to link onto an inactive campaign."),
		mcp.WithString("submission_id",
			mcp.Required(),
			mcp.Description("ID of the submission to repair"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		submissionID := request.GetString("submission_id", "")
		if submissionID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: submission_id is required"),
				},
			}, nil
		}

		result, err := reconciliation.RepairSubmission(ctx, submissionID, "mcp:admin")
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: "),
					mcp.NewTextContent(fmt.Sprintf("Error repairing submission: %v", err)),
				},
			}, nil
		}

		resultJSON, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal repair result: %w", err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(fmt.Sprintf("Submission %s linked to campaign %d", result.SubmissionID, result.NewCampaignID)),
				mcp.NewTextContent(string(resultJSON)),
			},
		}, nil
	}

	return tool, handler
}
