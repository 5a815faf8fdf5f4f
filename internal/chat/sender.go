package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/anatolykoptev/go_jobpreview/internal/engine"
)

// Sender delivers a payload to a peer address.
type Sender interface {
	Send(ctx context.Context, to string, payload any) error
}

// HTTPSender posts envelopes to peers whose address is an HTTP endpoint.
type HTTPSender struct {
	Client *http.Client
	// From is this agent's own address, stamped on every envelope.
	From string
	// MaxTries bounds delivery attempts per payload.
	MaxTries uint
}

// NewHTTPSender returns a sender with a bounded client.
func NewHTTPSender(from string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSender{Client: client, From: from, MaxTries: 3}
}

// Send wraps payload in an envelope and posts it to to.
// Transport errors and 5xx responses are retried with exponential backoff.
func (s *HTTPSender) Send(ctx context.Context, to string, payload any) error {
	schema, err := schemaOf(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("chat send: encode payload: %w", err)
	}
	body, err := json.Marshal(Envelope{Version: 1, Sender: s.From, Target: to, Schema: schema, Payload: raw})
	if err != nil {
		return fmt.Errorf("chat send: encode envelope: %w", err)
	}

	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, to, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", engine.UserAgentBot)

		resp, err := s.Client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return struct{}{}, nil
		case engine.IsRetryableStatus(resp.StatusCode):
			return struct{}{}, &engine.HTTPStatusError{StatusCode: resp.StatusCode}
		}
		return struct{}{}, backoff.Permanent(&engine.HTTPStatusError{StatusCode: resp.StatusCode})
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	tries := s.MaxTries
	if tries == 0 {
		tries = 3
	}
	if _, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(tries)); err != nil {
		return fmt.Errorf("chat send %s to %s: %w", schema, to, err)
	}
	return nil
}
