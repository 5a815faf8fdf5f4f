package jobserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_jobpreview/internal/chat"
	"github.com/anatolykoptev/go_jobpreview/internal/engine"
	"github.com/anatolykoptev/go_jobpreview/internal/engine/jobs"
)

const maxListingPages = 5

func registerJobListings(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "job_listings",
		Description: "Search job listings for a free-text query without deploying a preview. Derives job type, location, employment type and experience level from the text, then returns formatted listings (title, company, location, type, apply link, website, description).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.JobListingsInput) (*mcp.CallToolResult, engine.JobListingsOutput, error) {
		query := strings.TrimSpace(input.Query)
		if query == "" {
			return nil, engine.JobListingsOutput{}, fmt.Errorf("query is required")
		}
		pages := min(max(input.Pages, 1), maxListingPages)

		formatted := jobs.FormatListings(jobs.SearchListings(ctx, query, pages), 0)
		summary := jobs.Digest(formatted, chat.TopResults)
		if len(formatted) == 0 {
			summary = chat.NoJobsFound
		}
		return nil, engine.JobListingsOutput{
			Query:      query,
			Parameters: jobs.ParseQuery(query),
			Jobs:       formatted,
			Summary:    summary,
		}, nil
	})
}
