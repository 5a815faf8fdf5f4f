package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SubmitPath is where peers post envelopes.
const SubmitPath = "/submit"

var validate = validator.New()

// inbound is a decoded envelope waiting in the mailbox.
type inbound struct {
	from    string
	message *ChatMessage
	ack     *ChatAcknowledgement
}

// Server receives envelopes over HTTP and hands each to the Handler on its own goroutine.
type Server struct {
	e       *echo.Echo
	handler *Handler
	mailbox chan inbound
	wg      sync.WaitGroup

	// Timeout bounds one message dispatch. Zero means no bound.
	Timeout time.Duration
}

// NewServer builds the HTTP surface for h. mailboxSize bounds queued messages.
func NewServer(h *Handler, mailboxSize int) *Server {
	if mailboxSize <= 0 {
		mailboxSize = 64
	}
	s := &Server{
		e:       echo.New(),
		handler: h,
		mailbox: make(chan inbound, mailboxSize),
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Use(middleware.Recover())
	s.e.POST(SubmitPath, s.submit)
	s.e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return s
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) submit(c echo.Context) error {
	var env Envelope
	if err := c.Bind(&env); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "Invalid envelope format"})
	}
	if err := validate.Struct(&env); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_failed", Message: err.Error()})
	}

	in, err := decodePayload(env)
	if errors.Is(err, ErrUnknownSchema) {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "unknown_schema", Message: err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_payload", Message: err.Error()})
	}

	select {
	case s.mailbox <- in:
		return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
	default:
		slog.Warn("chat: mailbox full", slog.String("from", env.Sender))
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "busy", Message: "mailbox full, retry later"})
	}
}

// decodePayload unpacks and validates the payload named by env.Schema.
func decodePayload(env Envelope) (inbound, error) {
	in := inbound{from: env.Sender}
	switch env.Schema {
	case SchemaChatMessage:
		var m ChatMessage
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return in, fmt.Errorf("decode chat message: %w", err)
		}
		if err := validate.Struct(&m); err != nil {
			return in, err
		}
		in.message = &m
	case SchemaChatAcknowledgement:
		var a ChatAcknowledgement
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			return in, fmt.Errorf("decode acknowledgement: %w", err)
		}
		if err := validate.Struct(&a); err != nil {
			return in, err
		}
		in.ack = &a
	default:
		return in, fmt.Errorf("%w: %q", ErrUnknownSchema, env.Schema)
	}
	return in, nil
}

// loop dispatches mailbox entries until ctx is done.
func (s *Server) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-s.mailbox:
			s.spawn(ctx, in)
		}
	}
}

// drain dispatches whatever is still queued. Callers stop submits first.
func (s *Server) drain(ctx context.Context) {
	for {
		select {
		case in := <-s.mailbox:
			s.spawn(ctx, in)
		default:
			return
		}
	}
}

func (s *Server) spawn(ctx context.Context, in inbound) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch(ctx, in)
	}()
}

func (s *Server) dispatch(ctx context.Context, in inbound) {
	// In-flight messages finish even after shutdown starts.
	ctx = context.WithoutCancel(ctx)
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	switch {
	case in.ack != nil:
		s.handler.HandleAcknowledgement(ctx, in.from, *in.ack)
	case in.message != nil:
		if err := s.handler.HandleMessage(ctx, in.from, *in.message); err != nil {
			slog.Error("chat: handle message", slog.String("from", in.from), slog.Any("error", err))
		}
	}
}

// Run serves on addr until ctx is cancelled, then dispatches every queued
// message and waits for in-flight ones.
func (s *Server) Run(ctx context.Context, addr string) error {
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		s.loop(loopCtx)
		close(loopDone)
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("chat: listening", slog.String("addr", addr))
		errCh <- s.e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("chat server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		slog.Error("chat: shutdown", slog.Any("error", err))
	}
	stopLoop()
	<-loopDone
	// Accepted messages still get their acknowledgement and reply.
	s.drain(ctx)
	s.wg.Wait()
	return nil
}
