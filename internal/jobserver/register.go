package jobserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_jobpreview/internal/chat"
	"github.com/anatolykoptev/go_jobpreview/internal/sandbox"
)

// Deps are the services the tools call into.
type Deps struct {
	FrontDoor   *chat.Handler
	Provisioner *sandbox.Provisioner
}

// RegisterTools registers the job preview tools on the given MCP server:
// job_preview, job_listings, sandbox_list, sandbox_delete.
func RegisterTools(server *mcp.Server, deps Deps) {
	registerJobPreview(server, deps.FrontDoor)
	registerJobListings(server)
	registerSandboxList(server, deps.Provisioner)
	registerSandboxDelete(server, deps.Provisioner)
}
