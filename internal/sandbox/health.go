package sandbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go_jobpreview/internal/engine"
)

const (
	DefaultPollAttempts = 45
	DefaultPollInterval = time.Second
	DefaultPollTimeout  = 2 * time.Second
)

// HealthPoller waits for a preview server to answer HTTP 200.
type HealthPoller struct {
	Client   *http.Client
	Attempts int
	Interval time.Duration
	// Timeout bounds each individual request.
	Timeout time.Duration
	// Sleep waits between attempts; tests replace it to run on simulated time.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewHealthPoller returns a poller with the default schedule.
func NewHealthPoller(client *http.Client) *HealthPoller {
	if client == nil {
		client = http.DefaultClient
	}
	return &HealthPoller{
		Client:   client,
		Attempts: DefaultPollAttempts,
		Interval: DefaultPollInterval,
		Timeout:  DefaultPollTimeout,
		Sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// HealthURL joins the preview base URL with the callback path.
func HealthURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// Wait polls url until it returns 200, attempts run out, or ctx is done.
// It returns whether the server became ready and how many requests were made.
func (p *HealthPoller) Wait(ctx context.Context, url, token string) (bool, int) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}

	for i := 1; i <= attempts; i++ {
		engine.IncrHealthPolls()
		if p.probe(ctx, url, token) {
			slog.Debug("health: ready", slog.String("url", url), slog.Int("attempt", i))
			return true, i
		}
		if i == attempts {
			break
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return false, i
		}
	}
	return false, attempts
}

// probe makes one bounded request. Any transport error counts as not ready.
func (p *HealthPoller) probe(ctx context.Context, url, token string) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", engine.UserAgentBot)
	if token != "" {
		req.Header.Set(PreviewTokenHeader, token)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode == http.StatusOK
}
