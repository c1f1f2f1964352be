package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/golem/internal/logging"
	"github.com/aretw0/golem/internal/runtime"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/flow"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// FlowsURI is the resource listing the loaded flows.
const FlowsURI = "golem://flows"

// Engine defines what the MCP server needs from the bot.
type Engine interface {
	Process(ctx context.Context, ev domain.Event) (*runtime.Outcome, error)
	Inspect(ctx context.Context, sessionID string) (*runtime.Snapshot, error)
	Clear(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]string, error)
	Flows() *flow.Registry
}

// TurnResponse is the structured result of send_message.
type TurnResponse struct {
	SessionID    string           `json:"session_id" jsonschema_description:"The session the turn ran for"`
	State        string           `json:"state" jsonschema_description:"The active state after the turn"`
	Transitioned bool             `json:"transitioned" jsonschema_description:"Whether the turn moved to another state"`
	Messages     []domain.Message `json:"messages" jsonschema_description:"Messages the bot sent during the turn"`
	Errors       []string         `json:"errors,omitempty" jsonschema_description:"Contained action failures"`
}

// FlowSummary describes a flow for introspection.
type FlowSummary struct {
	Name    string         `json:"name"`
	Intents []string       `json:"intents,omitempty"`
	States  []StateSummary `json:"states"`
}

// StateSummary describes a state for introspection.
type StateSummary struct {
	Name         string   `json:"name"`
	Accepts      []string `json:"accepts,omitempty"`
	Intents      []string `json:"intents,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
}

// Server wraps the bot and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	channel   string
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithChannelName sets the channel bound to sessions addressed by chat id. Defaults to "mcp".
func WithChannelName(name string) Option {
	return func(s *Server) {
		s.channel = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		channel: "mcp",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("golem-mcp", strings.TrimSpace(version))
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: send_message
	sendTool := mcp.NewTool("send_message",
		mcp.WithDescription("Send a user message to a chat session and return the bot's replies."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id (<channel>_<chat-id>) or a bare chat id")),
		mcp.WithString("text", mcp.Description("Free text, run through entity extraction")),
		mcp.WithString("entities", mcp.Description("JSON object of entities; bypasses extraction")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(sendTool, mcp.NewStructuredToolHandler(s.handleSendMessage))

	// TOOL: get_session
	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get the stored state and context of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
	), s.handleGetSession)

	// TOOL: clear_session
	s.mcpServer.AddTool(mcp.NewTool("clear_session",
		mcp.WithDescription("Forget the state and context of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
	), s.handleClearSession)

	// TOOL: list_sessions
	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List the ids of stored sessions."),
	), s.handleListSessions)
}

func (s *Server) sessionFor(id string) domain.Session {
	if prefix, chatID, err := domain.ParseSessionID(id); err == nil {
		if prefix == s.channel {
			return domain.NewSession(prefix, s.channel, chatID)
		}
		return domain.Session{ID: id}
	}
	return domain.NewSession(s.channel, s.channel, id)
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (TurnResponse, error) {
	id, _ := args["session_id"].(string)
	if id == "" {
		return TurnResponse{}, errors.New("session_id is required")
	}

	ev := domain.Event{Type: domain.EventMessage, Session: s.sessionFor(id)}
	if raw, ok := args["entities"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &ev.Entities); err != nil {
			return TurnResponse{}, fmt.Errorf("entities must be a JSON object: %w", err)
		}
	} else {
		text, _ := args["text"].(string)
		ev.Raw = text
	}

	out, err := s.engine.Process(ctx, ev)
	if err != nil {
		s.logger.Error("MCP send_message failed", "session_id", id, "error", err)
		return TurnResponse{}, fmt.Errorf("turn failed: %w", err)
	}

	resp := TurnResponse{
		SessionID:    out.SessionID,
		State:        out.To,
		Transitioned: out.Transitioned,
		Messages:     out.Messages,
	}
	if resp.Messages == nil {
		resp.Messages = []domain.Message{}
	}
	for _, e := range out.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	return resp, nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("session_id", "")
	snap, err := s.engine.Inspect(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("session %q not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("inspect failed: %v", err)), nil
	}
	jsonBytes, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleClearSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("session_id", "")
	if err := s.engine.Clear(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("clear failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("session %s cleared", id)), nil
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.engine.Sessions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if ids == nil {
		ids = []string{}
	}
	jsonBytes, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(FlowsURI, "Loaded dialog flows",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(summarize(s.engine.Flows()))
		if err != nil {
			return nil, fmt.Errorf("failed to describe flows: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      FlowsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func summarize(reg *flow.Registry) []FlowSummary {
	if reg == nil {
		return []FlowSummary{}
	}
	var out []FlowSummary
	for _, f := range reg.Flows() {
		fs := FlowSummary{Name: f.Name, Intents: f.Intents}
		for _, st := range f.States() {
			ss := StateSummary{Name: st.Name, Accepts: st.Accepts, Intents: st.Intents}
			for _, req := range st.Requirements {
				ss.Requirements = append(ss.Requirements, req.Name)
			}
			fs.States = append(fs.States, ss)
		}
		out = append(out, fs)
	}
	return out
}
