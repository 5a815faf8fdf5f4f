package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// PreviewTokenHeader authenticates requests to a private sandbox's preview URL.
const PreviewTokenHeader = "X-Daytona-Preview-Token"

// Daytona is a Platform backed by the Daytona REST API.
type Daytona struct {
	apiURL string
	apiKey string
	target string
	client *http.Client

	// StartPoll is the initial interval between sandbox state checks after creation.
	StartPoll time.Duration
}

// NewDaytona returns a client for the Daytona API at apiURL.
func NewDaytona(apiURL, apiKey, target string, client *http.Client) *Daytona {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Daytona{
		apiURL:    strings.TrimRight(apiURL, "/"),
		apiKey:    apiKey,
		target:    target,
		client:    client,
		StartPoll: time.Second,
	}
}

// APIError is a non-2xx response from the Daytona API.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daytona %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("daytona %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// errSandboxFailed marks terminal sandbox states reported while waiting for start.
var errSandboxFailed = errors.New("sandbox failed to start")

type sandboxDTO struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	ErrorReason string `json:"errorReason,omitempty"`
}

type createSandboxRequest struct {
	Target string            `json:"target,omitempty"`
	Public bool              `json:"public"`
	Labels map[string]string `json:"labels,omitempty"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type execRequest struct {
	Command  string `json:"command"`
	RunAsync bool   `json:"runAsync"`
}

type execResponse struct {
	CmdID    string `json:"cmdId"`
	Output   string `json:"output"`
	ExitCode *int   `json:"exitCode"`
}

type previewResponse struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// Create allocates a public sandbox and waits until it reports the started state.
func (d *Daytona) Create(ctx context.Context) (Sandbox, error) {
	body := createSandboxRequest{
		Target: d.target,
		Public: true,
		Labels: map[string]string{"app": "go_jobpreview"},
	}
	var sb sandboxDTO
	if err := d.do(ctx, "create sandbox", http.MethodPost, "/sandbox", jsonBody(body), "application/json", &sb); err != nil {
		return nil, err
	}
	if sb.ID == "" {
		return nil, fmt.Errorf("daytona create sandbox: response has no id")
	}
	slog.Debug("daytona: sandbox created", slog.String("id", sb.ID), slog.String("state", sb.State))

	if err := d.waitStarted(ctx, sb); err != nil {
		h := d.Open(sb.ID)
		delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if delErr := h.Delete(delCtx); delErr != nil {
			slog.Warn("daytona: cleanup after failed start", slog.String("id", sb.ID), slog.Any("error", delErr))
		}
		return nil, err
	}
	return d.Open(sb.ID), nil
}

// waitStarted polls the sandbox until it is started, fails, or ctx expires.
func (d *Daytona) waitStarted(ctx context.Context, sb sandboxDTO) error {
	if sb.State == "started" || sb.State == "" {
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.StartPoll
	bo.MaxInterval = 5 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		var cur sandboxDTO
		if err := d.do(ctx, "get sandbox", http.MethodGet, "/sandbox/"+url.PathEscape(sb.ID), nil, "", &cur); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		switch cur.State {
		case "started":
			return struct{}{}, nil
		case "error", "build_failed", "destroyed", "destroying":
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: state %s %s", errSandboxFailed, cur.State, cur.ErrorReason))
		}
		return struct{}{}, fmt.Errorf("sandbox %s is %s", sb.ID, cur.State)
	}, backoff.WithBackOff(bo))
	if err != nil {
		return fmt.Errorf("daytona wait for start: %w", err)
	}
	return nil
}

// Open returns a handle for sandbox id.
func (d *Daytona) Open(id string) Sandbox {
	return &daytonaSandbox{d: d, id: id}
}

type daytonaSandbox struct {
	d  *Daytona
	id string
}

func (s *daytonaSandbox) ID() string { return s.id }

func (s *daytonaSandbox) toolbox(path string) string {
	return "/toolbox/" + url.PathEscape(s.id) + "/toolbox" + path
}

// Upload writes content to path inside the sandbox.
func (s *daytonaSandbox) Upload(ctx context.Context, content []byte, path string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", path)
	if err != nil {
		return fmt.Errorf("daytona upload: %w", err)
	}
	if _, err := fw.Write(content); err != nil {
		return fmt.Errorf("daytona upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("daytona upload: %w", err)
	}
	p := s.toolbox("/files/upload") + "?path=" + url.QueryEscape(path)
	return s.d.do(ctx, "upload file", http.MethodPost, p, buf.Bytes(), mw.FormDataContentType(), nil)
}

// CreateSession opens a persistent command session.
func (s *daytonaSandbox) CreateSession(ctx context.Context, sessionID string) error {
	return s.d.do(ctx, "create session", http.MethodPost, s.toolbox("/process/session"),
		jsonBody(sessionRequest{SessionID: sessionID}), "application/json", nil)
}

// Execute runs a command inside a session.
func (s *daytonaSandbox) Execute(ctx context.Context, sessionID string, req ExecRequest) (ExecResult, error) {
	var resp execResponse
	p := s.toolbox("/process/session/" + url.PathEscape(sessionID) + "/exec")
	if err := s.d.do(ctx, "execute", http.MethodPost, p,
		jsonBody(execRequest{Command: req.Command, RunAsync: req.Async}), "application/json", &resp); err != nil {
		return ExecResult{}, err
	}
	res := ExecResult{CommandID: resp.CmdID, Output: resp.Output}
	if resp.ExitCode != nil {
		res.ExitCode = *resp.ExitCode
	}
	return res, nil
}

// PreviewLink resolves the public URL for port. The lookup is idempotent and retried.
func (s *daytonaSandbox) PreviewLink(ctx context.Context, port int) (Preview, error) {
	p := fmt.Sprintf("/sandbox/%s/ports/%d/preview-url", url.PathEscape(s.id), port)
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond

	resp, err := backoff.Retry(ctx, func() (previewResponse, error) {
		var r previewResponse
		err := s.d.do(ctx, "preview link", http.MethodGet, p, nil, "", &r)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return r, backoff.Permanent(err)
		}
		return r, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
	if err != nil {
		return Preview{}, err
	}
	if resp.URL == "" {
		return Preview{}, fmt.Errorf("daytona preview link: empty url for port %d", port)
	}
	return Preview{URL: resp.URL, Token: resp.Token}, nil
}

// Delete destroys the sandbox. Deleting an already deleted sandbox is not an error.
func (s *daytonaSandbox) Delete(ctx context.Context) error {
	err := s.d.do(ctx, "delete sandbox", http.MethodDelete, "/sandbox/"+url.PathEscape(s.id), nil, "", nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// do sends one API request and decodes a JSON response into out when out is non-nil.
func (d *Daytona) do(ctx context.Context, op, method, path string, body []byte, contentType string, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.apiURL+path, rd)
	if err != nil {
		return fmt.Errorf("daytona %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("daytona %s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return fmt.Errorf("daytona %s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: apiMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("daytona %s: decode: %w", op, err)
	}
	return nil
}

// apiMessage extracts the message field of an error body, falling back to the raw text.
func apiMessage(data []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &e) == nil && e.Message != "" {
		return e.Message
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func jsonBody(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}
