package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go_jobpreview/internal/engine"
	"github.com/anatolykoptev/go_jobpreview/internal/engine/jobs"
	"github.com/anatolykoptev/go_jobpreview/internal/sandbox"
)

const (
	// MinQueryLen is the shortest query, in characters, that is dispatched.
	MinQueryLen = 3
	// TopResults caps the listings quoted in a reply.
	TopResults = 5

	slowProvision = 2 * time.Minute

	teardownTimeout = time.Minute

	UsageHint           = "Please send a job search query, e.g., 'Remote data science internship in New York'."
	PreviewNone         = "unavailable"
	PreviewNoCredential = "unavailable (sandbox API key not configured)"
	NoJobsFound         = "No jobs found."
	TopResultsTitle     = "Top results:"
)

// Provisioner deploys a preview for a query and deletes it again.
type Provisioner interface {
	Provision(ctx context.Context, query string) (*sandbox.PreviewResult, error)
	Teardown(ctx context.Context, id string) error
}

// ListingSearch fetches raw listings for a free-text query.
type ListingSearch func(ctx context.Context, text string, pages int) []engine.Listing

// Handler answers chat messages.
type Handler struct {
	sender      Sender
	provisioner Provisioner
	search      ListingSearch
}

// NewHandler wires the front door. search defaults to jobs.SearchListings.
func NewHandler(sender Sender, provisioner Provisioner, search ListingSearch) *Handler {
	if search == nil {
		search = jobs.SearchListings
	}
	return &Handler{sender: sender, provisioner: provisioner, search: search}
}

// HandleMessage acknowledges msg, then replies to from with the dispatch outcome.
// Exactly one acknowledgement and one reply are sent per message.
func (h *Handler) HandleMessage(ctx context.Context, from string, msg ChatMessage) error {
	engine.IncrChatMessages()
	if err := h.sender.Send(ctx, from, NewAcknowledgement(msg.MsgID)); err != nil {
		slog.Warn("chat: acknowledgement failed", slog.String("to", from), slog.Any("error", err))
	}

	reply := h.Respond(ctx, msg.Text())
	if err := h.sender.Send(ctx, from, NewTextMessage(reply)); err != nil {
		engine.IncrChatErrors()
		return fmt.Errorf("chat: reply to %s: %w", from, err)
	}
	return nil
}

// HandleAcknowledgement records a peer's receipt of one of our messages.
func (h *Handler) HandleAcknowledgement(_ context.Context, from string, ack ChatAcknowledgement) {
	slog.Info("chat: acknowledged", slog.String("msg_id", ack.AcknowledgedMsgID), slog.String("from", from))
}

// Answer is the reply body plus the preview behind it, when one was provisioned.
type Answer struct {
	Reply   string
	Preview *sandbox.PreviewResult
}

// Respond turns query text into the reply body. It never fails: errors become
// an "Error: <message>" reply.
func (h *Handler) Respond(ctx context.Context, text string) string {
	return h.Answer(ctx, text).Reply
}

// Answer is Respond with the preview result kept for callers that report it.
func (h *Handler) Answer(ctx context.Context, text string) Answer {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinQueryLen {
		return Answer{Reply: UsageHint}
	}
	out, err := h.dispatch(ctx, text)
	if err != nil {
		engine.IncrChatErrors()
		slog.Error("chat: dispatch failed", slog.String("query", text), slog.Any("error", err))
		return Answer{Reply: "Error: " + err.Error()}
	}
	preview := previewLine(out.preview)
	if out.noCredential {
		preview = PreviewNoCredential
	}
	return Answer{Reply: composeReply(preview, out.listings), Preview: out.preview}
}

type outcome struct {
	preview      *sandbox.PreviewResult
	listings     []engine.FormattedListing
	noCredential bool
}

// dispatch runs provisioning and the listing digest concurrently and waits for both.
// Neither workflow cancels the other; the first error wins. A sandbox provisioned
// for a failed dispatch is deleted, or named in the error when deletion fails.
func (h *Handler) dispatch(ctx context.Context, text string) (outcome, error) {
	var (
		g   errgroup.Group
		out outcome
	)
	g.Go(recovered(func() error {
		return engine.TrackOperation(ctx, "provision", slowProvision, func(ctx context.Context) error {
			res, err := h.provisioner.Provision(ctx, text)
			if errors.Is(err, sandbox.ErrMissingCredential) {
				slog.Warn("chat: preview disabled", slog.Any("error", err))
				out.noCredential = true
				return nil
			}
			if err != nil {
				return err
			}
			out.preview = res
			return nil
		})
	}))
	g.Go(recovered(func() error {
		out.listings = jobs.FormatListings(h.search(ctx, text, 1), TopResults)
		return nil
	}))
	if err := g.Wait(); err != nil {
		return outcome{}, h.discard(ctx, out.preview, err)
	}
	return out, nil
}

// discard deletes the sandbox behind res after a failed dispatch and returns
// the error to report.
func (h *Handler) discard(ctx context.Context, res *sandbox.PreviewResult, cause error) error {
	if !res.HasURL() || res.SandboxID == "" {
		return cause
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()
	if err := h.provisioner.Teardown(ctx, res.SandboxID); err != nil {
		slog.Error("chat: teardown after failed dispatch",
			slog.String("sandbox", res.SandboxID), slog.Any("error", err))
		return fmt.Errorf("%w (sandbox %s still running at %s)", cause, res.SandboxID, res.URL)
	}
	slog.Info("chat: sandbox deleted after failed dispatch", slog.String("sandbox", res.SandboxID))
	return cause
}

// recovered converts a panic in fn into an error so one message cannot crash the process.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}
}

// ComposeReply formats the preview line and the top listings.
func ComposeReply(res *sandbox.PreviewResult, listings []engine.FormattedListing) string {
	return composeReply(previewLine(res), listings)
}

func previewLine(res *sandbox.PreviewResult) string {
	if res.HasURL() {
		return res.URL
	}
	return PreviewNone
}

func composeReply(preview string, listings []engine.FormattedListing) string {
	var b strings.Builder
	b.WriteString("Preview URL: " + preview)
	b.WriteString("\n\n" + TopResultsTitle + "\n")
	if len(listings) == 0 {
		b.WriteString(NoJobsFound)
	} else {
		b.WriteString(jobs.Digest(listings, TopResults))
	}
	return b.String()
}
