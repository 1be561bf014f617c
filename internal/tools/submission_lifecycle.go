package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

func NewSubmissionLifecycleTool(lifecycle services.LifecycleService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("submission_lifecycle",
		mcp.WithDescription("Execute a lifecycle transition on a submission. close issues a confirmed on-chain closeCampaign transaction before updating the off-chain status; deactivate and reactivate are off-chain only. Reactivating a closed campaign returns a warning because the on-chain close cannot be reversed."),
		mcp.WithString("submission_id",
			mcp.Required(),
			mcp.Description("ID of the submission to transition"),
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Lifecycle action to perform (close, deactivate, reactivate)"),
		),
		mcp.WithString("reason",
			mcp.Description("Optional operator reason recorded on the audit event"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		submissionID := request.GetString("submission_id", "")
		action := request.GetString("action", "")
		reason := request.GetString("reason", "")

		result, err := lifecycle.Apply(ctx, services.LifecycleArgs{
			SubmissionID: submissionID,
			Action:       services.LifecycleAction(action),
			Actor:        "mcp:admin",
			Reason:       reason,
		})
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: "),
					mcp.NewTextContent(fmt.Sprintf("Error applying lifecycle action: %v", err)),
				},
			}, nil
		}

		resultJSON, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal lifecycle result: %w", err)
		}

		summary := fmt.Sprintf("Submission %s: %s -> %s", result.SubmissionID, result.PreviousStatus, result.NewStatus)
		if result.Warning != "" {
			summary += " (warning: " + result.Warning + ")"
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(summary),
				mcp.NewTextContent(string(resultJSON)),
			},
		}, nil
	}

	return tool, handler
}
