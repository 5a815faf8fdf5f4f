package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	JSearchAPIKey         string
	JSearchAPIHost        string
	JSearchBaseURL        string  // defaults to https://<JSearchAPIHost>
	JSearchRatePerSec     float64 // 0 = unlimited
	SandboxAPIKey         string
	SandboxAPIURL         string
	SandboxTarget         string
	SandboxCreateTimeout  time.Duration
	SandboxInstallTimeout time.Duration
	RecipePath            string // optional YAML override for the preview recipe
	RegistryPath          string
	FetchTimeout          time.Duration
	CacheMaxEntries       int
	CacheCleanupInterval  time.Duration
	HTTPClient            *http.Client
}

// Defaults for the hosted services.
const (
	DefaultJSearchHost   = "jsearch.p.rapidapi.com"
	DefaultSandboxAPIURL = "https://app.daytona.io/api"
)

var cfg Config

// Cfg exposes the engine configuration for sub-packages (jobs, sandbox).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
// Empty fields fall back to the hosted service defaults.
func Init(c Config) {
	if c.JSearchAPIHost == "" {
		c.JSearchAPIHost = DefaultJSearchHost
	}
	if c.JSearchBaseURL == "" {
		c.JSearchBaseURL = "https://" + c.JSearchAPIHost
	}
	if c.SandboxAPIURL == "" {
		c.SandboxAPIURL = DefaultSandboxAPIURL
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.FetchTimeout}
	}
	cfg = c
	Cfg = &cfg
}
