package jobserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_jobpreview/internal/chat"
	"github.com/anatolykoptev/go_jobpreview/internal/engine"
)

func registerJobPreview(server *mcp.Server, front *chat.Handler) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "job_preview",
		Description: "Search job listings for a free-text query and deploy a live web page previewing them in a fresh remote sandbox. Returns the preview URL, the sandbox id (delete it with sandbox_delete when done), and a plain-text digest of the top 5 results. Takes up to a few minutes.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.JobPreviewInput) (*mcp.CallToolResult, engine.JobPreviewOutput, error) {
		query := strings.TrimSpace(input.Query)
		if query == "" {
			return nil, engine.JobPreviewOutput{}, fmt.Errorf("query is required")
		}

		ans := front.Answer(ctx, query)
		out := engine.JobPreviewOutput{Query: query, Reply: ans.Reply}
		if ans.Preview.HasURL() {
			out.PreviewURL = ans.Preview.URL
			out.SandboxID = ans.Preview.SandboxID
		}
		return nil, out, nil
	})
}
