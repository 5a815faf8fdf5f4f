package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go_jobpreview/internal/chat"
	"github.com/anatolykoptev/go_jobpreview/internal/engine"
	"github.com/anatolykoptev/go_jobpreview/internal/jobserver"
	"github.com/anatolykoptev/go_jobpreview/internal/sandbox"
)

func newServeCommand() *cobra.Command {
	var withMCP bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat endpoint and the MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, reg, err := newProvisioner()
			if err != nil {
				return err
			}
			defer reg.Close()

			chatPort := env.Str("CHAT_PORT", "8000")
			address := env.Str("CHAT_ADDRESS", "http://localhost:"+chatPort+chat.SubmitPath)
			front := chat.NewHandler(chat.NewHTTPSender(address, nil), prov, nil)

			chatServer := chat.NewServer(front, env.Int("CHAT_MAILBOX", 64))
			chatServer.Timeout = env.Duration("CHAT_DISPATCH_TIMEOUT", 15*time.Minute)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return chatServer.Run(ctx, ":"+chatPort)
			})
			if withMCP {
				g.Go(func() error {
					return runMCP(prov, front)
				})
			}
			slog.Info("starting go_jobpreview",
				slog.String("chat_port", chatPort),
				slog.String("address", address),
				slog.Bool("mcp", withMCP),
			)
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&withMCP, "mcp", true, "Also serve MCP tools on $MCP_PORT")
	return cmd
}

func runMCP(prov *sandbox.Provisioner, front *chat.Handler) error {
	mcpPort := env.Str("MCP_PORT", "8892")
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_jobpreview",
		Version: version,
	}, nil)
	jobserver.RegisterTools(server, jobserver.Deps{FrontDoor: front, Provisioner: prov})
	slog.Info("tools registered", slog.Int("count", 4), slog.String("port", mcpPort))

	return mcpserver.Run(server, mcpserver.Config{
		Name:         "go_jobpreview",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	})
}

func newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search",
		Short: "Prompt for a query, deploy its preview and keep it up until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, reg, err := newProvisioner()
			if err != nil {
				return err
			}
			defer reg.Close()
			return runInteractiveSearch(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), prov)
		},
	}
}

// previewer is the part of the provisioner the interactive flow needs.
type previewer interface {
	Provision(ctx context.Context, query string) (*sandbox.PreviewResult, error)
	Teardown(ctx context.Context, id string) error
}

// runInteractiveSearch reads one query, provisions its preview, and blocks until ctx
// is done before deleting the sandbox.
func runInteractiveSearch(ctx context.Context, in io.Reader, out io.Writer, prov previewer) error {
	fmt.Fprint(out, "Enter your job search query (e.g., 'Remote Python developer in San Francisco'): ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read query: %w", err)
	}
	query := strings.TrimSpace(line)
	if query == "" {
		fmt.Fprintln(out, "Please enter a valid job search query.")
		return nil
	}

	fmt.Fprintln(out, "Creating sandbox and searching jobs...")
	res, err := prov.Provision(ctx, query)
	if err != nil {
		return err
	}
	if !res.HasURL() {
		fmt.Fprintln(out, "No jobs found for your search.")
		return nil
	}

	fmt.Fprintln(out, "\nJob search app is running!")
	fmt.Fprintf(out, "Preview URL: %s\n", res.URL)
	if res.TerminalURL != "" {
		fmt.Fprintf(out, "Terminal URL: %s\n", res.TerminalURL)
	}
	fmt.Fprintf(out, "Sandbox ID: %s\n", res.SandboxID)
	if !res.Ready {
		fmt.Fprintln(out, "Note: App is starting up; if you see 502, wait a few seconds and refresh.")
	}

	fmt.Fprintln(out, "\nSandbox is running. Press Ctrl+C to stop and clean up.")
	<-ctx.Done()

	fmt.Fprintln(out, "\nCleaning up sandbox...")
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if err := prov.Teardown(delCtx, res.SandboxID); err != nil {
		return err
	}
	fmt.Fprintln(out, "Done!")
	return nil
}

func newSandboxesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandboxes",
		Short: "Inspect and delete preview sandboxes",
	}
	cmd.AddCommand(newSandboxesListCommand(), newSandboxesDeleteCommand())
	return cmd
}

func newSandboxesListCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sandboxes",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := sandbox.OpenRegistry(engine.Cfg.RegistryPath)
			if err != nil {
				return err
			}
			defer reg.Close()

			recs, err := reg.List(cmd.Context(), all)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include deleted sandboxes")
	return cmd
}

func printRecords(w io.Writer, recs []sandbox.Record) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "No sandboxes.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tPREVIEW\tQUERY")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Status, r.CreatedAt, r.PreviewURL,
			engine.TruncateRunes(r.Query, 40, "..."))
	}
	return tw.Flush()
}

func newSandboxesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete sandboxes by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, reg, err := newProvisioner()
			if err != nil {
				return err
			}
			defer reg.Close()

			var errs []error
			for _, id := range args {
				if err := prov.Teardown(cmd.Context(), id); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return errors.Join(errs...)
		},
	}
}

