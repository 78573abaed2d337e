// Package gateway is the webhook HTTP server: chat-provider messages,
// voice-platform and telephony call events, order-confirmation requests,
// and a WebSocket event feed for dashboards.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/glintcart/glintbot/internal/agent"
	"github.com/glintcart/glintbot/internal/backend"
	"github.com/glintcart/glintbot/internal/config"
	"github.com/glintcart/glintbot/internal/dedup"
	"github.com/glintcart/glintbot/internal/domain"
	"github.com/glintcart/glintbot/internal/logging"
	"github.com/glintcart/glintbot/internal/voice"
)

// MessageHandler produces an assistant reply for one customer message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, key domain.ConversationKey, text string) (*agent.Reply, error)
}

// EventApplier merges a provider call event into the canonical record.
type EventApplier interface {
	ApplyEvent(ctx context.Context, ev voice.CallEvent) (*domain.CallRecord, error)
}

// OutcomeResolver turns a finished call into a confirmation outcome.
type OutcomeResolver interface {
	Resolve(ctx context.Context, call *domain.CallRecord, transcript string) (*domain.ConfirmationOutcome, error)
}

// ToolRunner executes a tool call on behalf of the live voice agent.
type ToolRunner interface {
	Execute(ctx context.Context, caller agent.CallerIdentity, name, rawArgs string) string
}

// Server is the glintbot webhook HTTP + WebSocket server.
type Server struct {
	cfg  config.Config
	log  *logging.Logger
	feed *EventFeed

	orchestrator  MessageHandler
	correlator    EventApplier
	resolver      OutcomeResolver
	tools         ToolRunner
	confirmations voice.ConfirmationStore
	caller        backend.OutboundCaller
	chat          backend.ChatSender
	claims        dedup.Claimer

	httpServer *http.Server
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithOrchestrator sets the chat message handler.
func WithOrchestrator(h MessageHandler) ServerOption {
	return func(s *Server) { s.orchestrator = h }
}

// WithCorrelator sets the call event applier.
func WithCorrelator(c EventApplier) ServerOption {
	return func(s *Server) { s.correlator = c }
}

// WithResolver sets the confirmation resolver.
func WithResolver(r OutcomeResolver) ServerOption {
	return func(s *Server) { s.resolver = r }
}

// WithTools sets the executor backing the voice tool endpoint.
func WithTools(t ToolRunner) ServerOption {
	return func(s *Server) { s.tools = t }
}

// WithConfirmations sets the pending-confirmation ledger.
func WithConfirmations(cs voice.ConfirmationStore) ServerOption {
	return func(s *Server) { s.confirmations = cs }
}

// WithOutboundCaller sets the voice platform client for confirmation calls.
func WithOutboundCaller(c backend.OutboundCaller) ServerOption {
	return func(s *Server) { s.caller = c }
}

// WithChatSender sets the chat channel used to deliver replies.
func WithChatSender(c backend.ChatSender) ServerOption {
	return func(s *Server) { s.chat = c }
}

// WithClaimer sets the webhook dedup claimer.
func WithClaimer(c dedup.Claimer) ServerOption {
	return func(s *Server) { s.claims = c }
}

// New creates a new gateway server.
func New(cfg config.Config, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:  cfg,
		log:  log.Sub("gateway"),
		feed: NewEventFeed(log, cfg.Gateway.AllowedOrigins),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.claims == nil {
		s.claims = dedup.NewMemoryClaimer(0)
	}
	return s
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening. It blocks until the context is cancelled or an
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := withMiddleware(mux, s.log, s.cfg.Gateway.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.feed.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}
