// Package sandbox provisions remote sandboxes that serve a generated preview of
// job search results.
package sandbox

import "context"

// Platform allocates remote sandboxes.
type Platform interface {
	// Create allocates a new sandbox and returns once it can accept commands.
	Create(ctx context.Context) (Sandbox, error)
	// Open returns a handle for an existing sandbox without contacting the platform.
	Open(id string) Sandbox
}

// Sandbox is one remote execution environment: a filesystem, persistent command
// sessions and preview links that route public traffic to ports inside it.
type Sandbox interface {
	ID() string
	Upload(ctx context.Context, content []byte, path string) error
	CreateSession(ctx context.Context, sessionID string) error
	Execute(ctx context.Context, sessionID string, req ExecRequest) (ExecResult, error)
	PreviewLink(ctx context.Context, port int) (Preview, error)
	Delete(ctx context.Context) error
}

// ExecRequest is a command run inside a session. Async commands return as soon
// as they are started; the session keeps them alive.
type ExecRequest struct {
	Command string
	Async   bool
}

// ExecResult is the platform's report for a session command.
// Async commands report no output and a zero exit code.
type ExecResult struct {
	CommandID string
	ExitCode  int
	Output    string
}

// Preview is an externally routable URL for a sandbox port.
// Token is set for private sandboxes and must be sent with requests to URL.
type Preview struct {
	URL   string
	Token string
}
