package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_jobpreview/internal/engine"
	"github.com/anatolykoptev/go_jobpreview/internal/preview"
)

const (
	// DefaultSessionID names the command session that keeps the preview app alive.
	DefaultSessionID = "job-search-session"
	// TerminalPort is the sandbox's web terminal.
	TerminalPort = 22222

	cleanupTimeout = 30 * time.Second
)

// ErrMissingCredential is returned before any remote call when no sandbox API key is configured.
var ErrMissingCredential = errors.New("sandbox API key is not configured")

// State is a provisioning stage. A result records the last stage reached.
type State string

const (
	StateInit                State = "init"
	StateSandboxCreated      State = "sandbox_created"
	StateJobsFetched         State = "jobs_fetched"
	StateNoJobs              State = "no_jobs"
	StateSiteUploaded        State = "site_uploaded"
	StateDependencyInstalled State = "dependency_installed"
	StateProcessLaunched     State = "process_launched"
	StatePreviewResolved     State = "preview_resolved"
	StateHealthy             State = "healthy"
	StateUnhealthy           State = "unhealthy"
)

// Searcher fetches raw listings for a free-text query.
type Searcher func(ctx context.Context, text string, pages int) []engine.Listing

// StepResult is the outcome of one remote command.
type StepResult struct {
	Step     string
	Command  string
	OK       bool
	ExitCode int
	Output   string
	Err      error
}

// PreviewResult is what a provisioning run produced.
// URL is empty only on the no-listings path, where the sandbox is already deleted.
type PreviewResult struct {
	Sandbox     Sandbox
	SandboxID   string
	URL         string
	TerminalURL string
	Token       string
	Ready       bool
	Attempts    int
	State       State
	Steps       []StepResult
}

// HasURL reports whether a preview URL was resolved.
func (r *PreviewResult) HasURL() bool { return r != nil && r.URL != "" }

// Options tune a Provisioner. Zero values take the defaults.
type Options struct {
	APIKey         string
	SessionID      string
	AppPort        int
	TerminalPort   int
	CreateTimeout  time.Duration
	InstallTimeout time.Duration
	Recipe         Recipe
	// NewSessionID overrides SessionID per run when set.
	NewSessionID func() string
}

// Provisioner deploys a listings preview into a fresh sandbox.
type Provisioner struct {
	platform Platform
	search   Searcher
	poller   *HealthPoller
	registry *Registry
	opts     Options
}

// NewProvisioner wires a provisioner. registry may be nil.
func NewProvisioner(platform Platform, search Searcher, poller *HealthPoller, registry *Registry, opts Options) *Provisioner {
	if opts.SessionID == "" {
		opts.SessionID = DefaultSessionID
	}
	if opts.AppPort == 0 {
		opts.AppPort = preview.DefaultPort
	}
	if opts.TerminalPort == 0 {
		opts.TerminalPort = TerminalPort
	}
	if len(opts.Recipe.Install) == 0 {
		opts.Recipe = DefaultRecipe()
	}
	if poller == nil {
		poller = NewHealthPoller(nil)
	}
	return &Provisioner{platform: platform, search: search, poller: poller, registry: registry, opts: opts}
}

// Provision creates a sandbox, deploys the preview of query's listings into it and
// waits for it to serve. A server that never turns healthy still yields its URL
// with Ready false. Errors from gating steps delete the sandbox before returning.
func (p *Provisioner) Provision(ctx context.Context, query string) (res *PreviewResult, err error) {
	if p.opts.APIKey == "" {
		return nil, ErrMissingCredential
	}
	log := slog.With(slog.String("query", query))

	createCtx := ctx
	if p.opts.CreateTimeout > 0 {
		var cancel context.CancelFunc
		createCtx, cancel = context.WithTimeout(ctx, p.opts.CreateTimeout)
		defer cancel()
	}
	sb, err := p.platform.Create(createCtx)
	if err != nil {
		engine.IncrProvisionErrors()
		return nil, fmt.Errorf("provision: create sandbox: %w", err)
	}
	engine.IncrSandboxesCreated()
	id := sb.ID()
	log = log.With(slog.String("sandbox", id))
	log.Info("provision: sandbox created")
	if regErr := p.registry.Add(ctx, id, query); regErr != nil {
		log.Warn("provision: registry add failed", slog.Any("error", regErr))
	}

	res = &PreviewResult{Sandbox: sb, SandboxID: id, State: StateSandboxCreated}
	defer func() {
		if err != nil {
			engine.IncrProvisionErrors()
			log.Error("provision: failed", slog.String("state", string(res.State)), slog.Any("error", err))
			p.discard(ctx, sb)
			res = nil
		}
	}()

	listings := p.search(ctx, query, 1)
	res.State = StateJobsFetched
	if len(listings) == 0 {
		log.Info("provision: no listings, deleting sandbox")
		p.discard(ctx, sb)
		return &PreviewResult{State: StateNoJobs}, nil
	}

	app, err := preview.Generate(listings)
	if err != nil {
		return res, fmt.Errorf("provision: generate site: %w", err)
	}
	if err = sb.Upload(ctx, []byte(app), preview.AppFile); err != nil {
		return res, fmt.Errorf("provision: upload %s: %w", preview.AppFile, err)
	}
	res.State = StateSiteUploaded

	session := p.opts.SessionID
	if p.opts.NewSessionID != nil {
		session = p.opts.NewSessionID()
	}
	if err = sb.CreateSession(ctx, session); err != nil {
		return res, fmt.Errorf("provision: create session: %w", err)
	}

	installed, steps := p.install(ctx, sb, session)
	res.Steps = append(res.Steps, steps...)
	if !installed {
		log.Warn("provision: no install step succeeded, launching anyway")
	}
	res.State = StateDependencyInstalled
	res.Steps = append(res.Steps, p.runAll(ctx, sb, session, p.opts.Recipe.Diagnostics)...)

	launch := p.opts.Recipe.Launch
	if _, err = sb.Execute(ctx, session, ExecRequest{Command: launch.Command, Async: true}); err != nil {
		return res, fmt.Errorf("provision: launch: %w", err)
	}
	res.State = StateProcessLaunched
	log.Info("provision: app launched", slog.String("session", session))

	pv, err := sb.PreviewLink(ctx, p.opts.AppPort)
	if err != nil {
		return res, fmt.Errorf("provision: preview link: %w", err)
	}
	res.URL, res.Token = pv.URL, pv.Token
	if term, termErr := sb.PreviewLink(ctx, p.opts.TerminalPort); termErr != nil {
		log.Warn("provision: terminal link unavailable", slog.Any("error", termErr))
	} else {
		res.TerminalURL = term.URL
	}
	res.State = StatePreviewResolved

	res.Ready, res.Attempts = p.poller.Wait(ctx, HealthURL(res.URL, preview.CallbackPath), res.Token)
	status := StatusReady
	if res.Ready {
		res.State = StateHealthy
		engine.IncrPreviewsReady()
		log.Info("provision: preview healthy", slog.String("url", res.URL), slog.Int("attempts", res.Attempts))
	} else {
		res.State = StateUnhealthy
		status = StatusUnhealthy
		log.Warn("provision: preview not healthy", slog.String("url", res.URL), slog.Int("attempts", res.Attempts))
		res.Steps = append(res.Steps, p.runAll(ctx, sb, session, p.opts.Recipe.FailureDiagnostics)...)
	}
	if regErr := p.registry.SetPreview(ctx, id, res.URL, res.TerminalURL, status); regErr != nil {
		log.Warn("provision: registry update failed", slog.Any("error", regErr))
	}
	return res, nil
}

// install tries each install step in order and stops at the first success.
func (p *Provisioner) install(ctx context.Context, sb Sandbox, session string) (bool, []StepResult) {
	var out []StepResult
	for _, step := range p.opts.Recipe.Install {
		r := p.run(ctx, sb, session, step, p.opts.InstallTimeout)
		out = append(out, r)
		if r.OK {
			return true, out
		}
	}
	return false, out
}

// runAll runs advisory steps; their outcomes are recorded, never returned as errors.
func (p *Provisioner) runAll(ctx context.Context, sb Sandbox, session string, steps []Step) []StepResult {
	out := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		out = append(out, p.run(ctx, sb, session, step, 0))
	}
	return out
}

func (p *Provisioner) run(ctx context.Context, sb Sandbox, session string, step Step, timeout time.Duration) StepResult {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	r := StepResult{Step: step.Name, Command: step.Command}
	res, err := sb.Execute(runCtx, session, ExecRequest{Command: step.Command})
	r.ExitCode, r.Output, r.Err = res.ExitCode, res.Output, err
	r.OK = err == nil && step.Success.Met(res)

	attrs := []any{
		slog.String("sandbox", sb.ID()),
		slog.String("step", r.Step),
		slog.Bool("ok", r.OK),
		slog.Int("exit_code", r.ExitCode),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	if r.Output != "" {
		attrs = append(attrs, slog.String("output", engine.TruncateRunes(r.Output, 500, "...")))
	}
	slog.Info("provision: step", attrs...)
	return r
}

// discard deletes sb on a detached context and records the outcome.
func (p *Provisioner) discard(ctx context.Context, sb Sandbox) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := sb.Delete(delCtx); err != nil {
		slog.Error("provision: delete sandbox", slog.String("sandbox", sb.ID()), slog.Any("error", err))
		_ = p.registry.SetStatus(delCtx, sb.ID(), StatusFailed)
		return
	}
	engine.IncrSandboxesDeleted()
	_ = p.registry.SetStatus(delCtx, sb.ID(), StatusDeleted)
}

// Teardown deletes a sandbox by id, typically one left running by an earlier request.
func (p *Provisioner) Teardown(ctx context.Context, id string) error {
	if p.opts.APIKey == "" {
		return ErrMissingCredential
	}
	if err := p.platform.Open(id).Delete(ctx); err != nil {
		return fmt.Errorf("teardown %s: %w", id, err)
	}
	engine.IncrSandboxesDeleted()
	if err := p.registry.SetStatus(ctx, id, StatusDeleted); err != nil {
		slog.Warn("teardown: registry update failed", slog.String("sandbox", id), slog.Any("error", err))
	}
	return nil
}

// Registry returns the provisioner's registry, which may be nil.
func (p *Provisioner) Registry() *Registry { return p.registry }
