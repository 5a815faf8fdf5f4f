// go_jobpreview: conversational job search with live sandbox previews.
//
// A chat message with a free-text query is answered with the top matching
// listings and a URL to a generated page hosted in a fresh remote sandbox.
// Also runs as an MCP server and as an interactive one-shot CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_jobpreview/internal/engine"
	"github.com/anatolykoptev/go_jobpreview/internal/engine/jobs"
	"github.com/anatolykoptev/go_jobpreview/internal/sandbox"
)

var version = "dev"

func main() {
	var levelVar slog.LevelVar
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &levelVar})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(&levelVar).ExecuteContext(ctx); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func newRootCommand(levelVar *slog.LevelVar) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "go_jobpreview",
		Short:         "Job search with live sandbox previews",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log verbosity: debug, info, warn, error (default $LOG_LEVEL or info)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal in production.
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("dotenv: load failed", slog.Any("error", err))
		}
		if logLevel == "" {
			logLevel = env.Str("LOG_LEVEL", "info")
		}
		level, err := parseLogLevel(logLevel)
		if err != nil {
			return err
		}
		levelVar.Set(level)
		initEngine()
		return nil
	}

	root.AddCommand(
		newServeCommand(),
		newSearchCommand(),
		newSandboxesCommand(),
	)
	return root
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func initEngine() {
	c := engine.Config{
		JSearchAPIKey:         env.Str("JSEARCH_API_KEY", ""),
		JSearchAPIHost:        env.Str("JSEARCH_API_HOST", engine.DefaultJSearchHost),
		JSearchBaseURL:        env.Str("JSEARCH_BASE_URL", ""),
		JSearchRatePerSec:     env.Float("JSEARCH_RATE_PER_SEC", 5),
		SandboxAPIKey:         env.Str("DAYTONA_API_KEY", ""),
		SandboxAPIURL:         env.Str("DAYTONA_API_URL", engine.DefaultSandboxAPIURL),
		SandboxTarget:         env.Str("DAYTONA_TARGET", ""),
		SandboxCreateTimeout:  env.Duration("SANDBOX_CREATE_TIMEOUT", 3*time.Minute),
		SandboxInstallTimeout: env.Duration("SANDBOX_INSTALL_TIMEOUT", 5*time.Minute),
		RecipePath:            env.Str("PREVIEW_RECIPE", ""),
		RegistryPath:          env.Str("REGISTRY_PATH", defaultRegistryPath()),
		FetchTimeout:          env.Duration("FETCH_TIMEOUT", 30*time.Second),
		CacheMaxEntries:       env.Int("CACHE_MAX_ENTRIES", 500),
		CacheCleanupInterval:  env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
	engine.Init(c)

	if c.JSearchAPIKey == "" {
		slog.Warn("JSEARCH_API_KEY not set, searches will return no listings")
	}
	if c.SandboxAPIKey == "" {
		slog.Warn("DAYTONA_API_KEY not set, previews are disabled")
	}

	cacheTTL := env.Duration("CACHE_TTL", 15*time.Minute)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
}

func defaultRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".go_jobpreview", "sandboxes.db")
	}
	return filepath.Join(home, ".go_jobpreview", "sandboxes.db")
}

// newProvisioner builds the sandbox provisioner from engine.Cfg.
// The caller closes the returned registry, which is nil when it could not be opened.
func newProvisioner() (*sandbox.Provisioner, *sandbox.Registry, error) {
	recipe := sandbox.DefaultRecipe()
	if engine.Cfg.RecipePath != "" {
		r, err := sandbox.LoadRecipe(engine.Cfg.RecipePath)
		if err != nil {
			return nil, nil, err
		}
		recipe = r
		slog.Info("recipe loaded", slog.String("path", engine.Cfg.RecipePath))
	}

	reg, err := sandbox.OpenRegistry(engine.Cfg.RegistryPath)
	if err != nil {
		slog.Warn("sandbox registry unavailable", slog.Any("error", err))
		reg = nil
	}

	platform := sandbox.NewDaytona(engine.Cfg.SandboxAPIURL, engine.Cfg.SandboxAPIKey, engine.Cfg.SandboxTarget, nil)
	prov := sandbox.NewProvisioner(platform, jobs.SearchListings, sandbox.NewHealthPoller(nil), reg, sandbox.Options{
		APIKey:         engine.Cfg.SandboxAPIKey,
		CreateTimeout:  engine.Cfg.SandboxCreateTimeout,
		InstallTimeout: engine.Cfg.SandboxInstallTimeout,
		Recipe:         recipe,
	})
	return prov, reg, nil
}
