package jobserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_jobpreview/internal/chat"
	"github.com/anatolykoptev/go_jobpreview/internal/engine"
	"github.com/anatolykoptev/go_jobpreview/internal/sandbox"
)

type nopSender struct{}

func (nopSender) Send(context.Context, string, any) error { return nil }

// connect registers the tools against a Daytona API served by platform and
// returns a connected client session.
func connect(t *testing.T, platform http.Handler) (*mcp.ClientSession, *sandbox.Registry) {
	t.Helper()
	engine.Init(engine.Config{JSearchBaseURL: "http://127.0.0.1:1"})

	api := httptest.NewServer(platform)
	t.Cleanup(api.Close)

	reg, err := sandbox.OpenRegistry(filepath.Join(t.TempDir(), "sb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	prov := sandbox.NewProvisioner(
		sandbox.NewDaytona(api.URL, "key", "", api.Client()),
		func(context.Context, string, int) []engine.Listing { return nil },
		nil, reg, sandbox.Options{APIKey: "key"},
	)
	server := mcp.NewServer(&mcp.Implementation{Name: "go_jobpreview", Version: "test"}, nil)
	RegisterTools(server, Deps{FrontDoor: chat.NewHandler(nopSender{}, prov, nil), Provisioner: prov})

	ctx := context.Background()
	st, ct := mcp.NewInMemoryTransports()
	_, err = server.Connect(ctx, st, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs, reg
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestRegisterToolsNames(t *testing.T) {
	cs, _ := connect(t, http.NotFoundHandler())
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"job_listings", "job_preview", "sandbox_delete", "sandbox_list"}, names)
}

func TestJobListingsWithoutKey(t *testing.T) {
	cs, _ := connect(t, http.NotFoundHandler())
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "job_listings",
		Arguments: map[string]any{"query": "remote golang internship in Seattle"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	out := decode[engine.JobListingsOutput](t, res)
	assert.Equal(t, "SEATTLE", out.Parameters.Location)
	assert.Empty(t, out.Jobs)
	assert.Equal(t, chat.NoJobsFound, out.Summary)
}

func TestJobPreviewNoListingsTearsDown(t *testing.T) {
	var deleted atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sandbox", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"sb-9","state":"started"}`))
	})
	mux.HandleFunc("DELETE /sandbox/sb-9", func(w http.ResponseWriter, r *http.Request) {
		deleted.Store(true)
	})
	cs, reg := connect(t, mux)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "job_preview",
		Arguments: map[string]any{"query": "asdkjhasdkjh1239487"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	out := decode[engine.JobPreviewOutput](t, res)
	assert.Empty(t, out.PreviewURL)
	assert.Equal(t, "Preview URL: unavailable\n\nTop results:\nNo jobs found.", out.Reply)
	assert.True(t, deleted.Load())

	rec, err := reg.Get(context.Background(), "sb-9")
	require.NoError(t, err)
	assert.Equal(t, sandbox.StatusDeleted, rec.Status)
}

func TestSandboxListAndDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /sandbox/sb-1", func(w http.ResponseWriter, r *http.Request) {})
	cs, reg := connect(t, mux)
	ctx := context.Background()
	require.NoError(t, reg.Add(ctx, "sb-1", "go jobs"))

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "sandbox_list", Arguments: map[string]any{}})
	require.NoError(t, err)
	list := decode[SandboxListOutput](t, res)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "sb-1", list.Sandboxes[0].ID)

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "sandbox_delete", Arguments: map[string]any{"id": "sb-1"}})
	require.NoError(t, err)
	require.False(t, res.IsError)

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "sandbox_list", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, 0, decode[SandboxListOutput](t, res).Total)
}

func TestSandboxDeleteRequiresID(t *testing.T) {
	cs, _ := connect(t, http.NotFoundHandler())
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "sandbox_delete",
		Arguments: map[string]any{"id": "  "},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
