package jobserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_jobpreview/internal/sandbox"
)

// SandboxListInput is the input for sandbox_list.
type SandboxListInput struct {
	All bool `json:"all,omitempty" jsonschema:"Include deleted sandboxes (default: false)"`
}

// SandboxListOutput is the output for sandbox_list.
type SandboxListOutput struct {
	Sandboxes []sandbox.Record `json:"sandboxes"`
	Total     int              `json:"total"`
}

// SandboxDeleteInput is the input for sandbox_delete.
type SandboxDeleteInput struct {
	ID string `json:"id" jsonschema:"Sandbox id as returned by job_preview or sandbox_list"`
}

// SandboxDeleteOutput is the output for sandbox_delete.
type SandboxDeleteOutput struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func registerSandboxList(server *mcp.Server, prov *sandbox.Provisioner) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "sandbox_list",
		Description: "List preview sandboxes created by job_preview, newest first, with their query, preview URL and status (created, ready, unhealthy, failed, deleted).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input SandboxListInput) (*mcp.CallToolResult, SandboxListOutput, error) {
		recs, err := prov.Registry().List(ctx, input.All)
		if err != nil {
			return nil, SandboxListOutput{}, err
		}
		if recs == nil {
			recs = []sandbox.Record{}
		}
		return nil, SandboxListOutput{Sandboxes: recs, Total: len(recs)}, nil
	})
}

func registerSandboxDelete(server *mcp.Server, prov *sandbox.Provisioner) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "sandbox_delete",
		Description: "Delete a preview sandbox by id. The preview URL stops working immediately.",
		Annotations: &mcp.ToolAnnotations{DestructiveHint: boolPtr(true), IdempotentHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input SandboxDeleteInput) (*mcp.CallToolResult, SandboxDeleteOutput, error) {
		id := strings.TrimSpace(input.ID)
		if id == "" {
			return nil, SandboxDeleteOutput{}, fmt.Errorf("id is required")
		}
		if err := prov.Teardown(ctx, id); err != nil {
			return nil, SandboxDeleteOutput{}, err
		}
		return nil, SandboxDeleteOutput{ID: id, Message: fmt.Sprintf("Sandbox %s deleted", id)}, nil
	})
}

func boolPtr(b bool) *bool { return &b }
