// Package mcpserver exposes the calendar manager as MCP tools and resources
// over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tazhate/icalbridge/internal/domain"
	applog "github.com/tazhate/icalbridge/internal/log"
	"github.com/tazhate/icalbridge/internal/service"
)

const accessRemediation = "Calendar access is not granted. Please follow these steps:\n\n" +
	"1. Open System Preferences/Settings\n" +
	"2. Go to Privacy & Security > Calendar\n" +
	"3. Check the box next to your terminal application or Claude Desktop\n" +
	"4. Restart Claude Desktop\n\n" +
	"Once you've granted access, try your calendar operation again."

// ManagerFunc returns the calendar manager, building it on first use
type ManagerFunc func(ctx context.Context) (*service.CalendarManager, error)

type Config struct {
	Name    string
	Version string
	Logger  *slog.Logger
	// CallsPerMinute and WritesPerMinute bound tool calls. Zero picks the
	// defaults of 120 and 30.
	CallsPerMinute  int
	WritesPerMinute int
	Now             func() time.Time
}

type Server struct {
	mcpServer   *server.MCPServer
	manager     ManagerFunc
	name        string
	version     string
	rateLimiter *rateLimiter
	logger      *slog.Logger
	handlers    map[string]server.ToolHandlerFunc

	// the manager expects one mutation at a time
	writeMu sync.Mutex
}

func New(cfg Config, manager ManagerFunc) (*Server, error) {
	if manager == nil {
		return nil, errors.New("mcpserver: manager is required")
	}
	if cfg.Name == "" {
		cfg.Name = "Calendar"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}
	if cfg.CallsPerMinute <= 0 {
		cfg.CallsPerMinute = 120
	}
	if cfg.WritesPerMinute <= 0 {
		cfg.WritesPerMinute = 30
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{
		mcpServer: server.NewMCPServer(cfg.Name, cfg.Version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
		manager:     manager,
		name:        cfg.Name,
		version:     cfg.Version,
		rateLimiter: newRateLimiter(cfg.CallsPerMinute, cfg.WritesPerMinute, cfg.Now),
		logger:      applog.WithComponent(cfg.Logger, "mcp"),
		handlers:    make(map[string]server.ToolHandlerFunc),
	}
	s.registerEventTools()
	s.registerReminderTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying server, for transports other than stdio
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Run serves over stdin and stdout until the input closes or ctx is done
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve runs the stdio transport over in and out
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting MCP server", "name", s.name, "version", s.version)
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("calendars://list", "Calendars",
		mcp.WithResourceDescription("Names of all event calendars"),
		mcp.WithMIMEType("text/plain"),
	), s.readCalendars)

	s.mcpServer.AddResource(mcp.NewResource("reminders://lists", "Reminder lists",
		mcp.WithResourceDescription("Names of all reminder lists"),
		mcp.WithMIMEType("text/plain"),
	), s.readReminderLists)
}

func (s *Server) readCalendars(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	m, err := s.manager(ctx)
	if err != nil {
		return nil, errors.New(failureText(err))
	}
	names, err := m.ListCalendarNames(ctx)
	if err != nil {
		return nil, errors.New(failureText(err))
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      "calendars://list",
		MIMEType: "text/plain",
		Text:     renderNames("Available calendars:", "No calendars found", names),
	}}, nil
}

func (s *Server) readReminderLists(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	m, err := s.manager(ctx)
	if err != nil {
		return nil, errors.New(failureText(err))
	}
	names, err := m.ListReminderLists(ctx)
	if err != nil {
		return nil, errors.New(failureText(err))
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      "reminders://lists",
		MIMEType: "text/plain",
		Text:     renderNames("Available reminder lists:", "No reminder lists found", names),
	}}, nil
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.handlers[tool.Name] = handler
	s.mcpServer.AddTool(tool, handler)
}

// CallTool invokes a registered tool directly, bypassing the transport
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	handler, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return handler(ctx, req)
}

// ToolNames lists the registered tools
func (s *Server) ToolNames() []string {
	return slices.Sorted(maps.Keys(s.handlers))
}

type toolFunc func(ctx context.Context, m *service.CalendarManager, req mcp.CallToolRequest) (string, error)

// tool wraps a handler with rate limiting, manager lookup and the
// "Error <doing>: <reason>" failure text
func (s *Server) tool(doing string, write bool, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !s.rateLimiter.allowCall() || (write && !s.rateLimiter.allowWrite()) {
			return errorResponse("Rate limit exceeded. Please wait before making more requests."), nil
		}
		if write {
			s.writeMu.Lock()
			defer s.writeMu.Unlock()
		}

		m, err := s.manager(ctx)
		if err == nil {
			var text string
			text, err = fn(ctx, m, req)
			if err == nil {
				return textResponse(text), nil
			}
		}
		s.logger.Warn("tool failed", "tool", req.Params.Name, "error", err)
		return errorResponse(fmt.Sprintf("Error %s: %s", doing, failureText(err))), nil
	}
}

// failureText is what a client sees for err. Denied access gets the steps
// to grant it.
func failureText(err error) string {
	var denied *domain.AccessDeniedError
	if errors.As(err, &denied) {
		return accessRemediation
	}
	return err.Error()
}

func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

func textResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
