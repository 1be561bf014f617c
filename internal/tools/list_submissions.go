package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

func NewListSubmissionsTool(submissions services.SubmissionService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_submissions",
		mcp.WithDescription("List submission records with optional status filtering."),
		mcp.WithString("status",
			mcp.Description("Filter by submission status (pending, approved, minted, closed, deactivated, rejected). Leave empty to get all submissions"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := request.GetString("status", "")

		var (
			records []models.Submission
			err     error
		)
		if status != "" {
			records, err = submissions.ListSubmissionsByStatus(models.SubmissionStatus(status))
		} else {
			records, err = submissions.ListSubmissions()
		}
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: "),
					mcp.NewTextContent(fmt.Sprintf("Error retrieving submissions: %v", err)),
				},
			}, nil
		}

		recordsJSON, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal submissions: %w", err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(fmt.Sprintf("Found %d submissions", len(records))),
				mcp.NewTextContent(string(recordsJSON)),
			},
		}, nil
	}

	return tool, handler
}
