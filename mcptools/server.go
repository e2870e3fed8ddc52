package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/odvcencio/cursorfold/commands"
	cflog "github.com/odvcencio/cursorfold/internal/log"
)

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// Name is the server name (default: "cursorfold").
	Name string
	// Version is reported during initialization (default: "dev").
	Version string
	// Provider serves tool calls that name a document. Optional.
	Provider commands.RangeProvider
	// Options are the fold_plan defaults.
	Options commands.Options
	// Logger must not write to stdout, which carries the protocol.
	Logger *slog.Logger
}

// Server serves the registry's tools over MCP.
type Server struct {
	mcpServer *server.MCPServer
	registry  *Registry
	version   string
	logger    *slog.Logger
}

// NewServer creates an MCP server with every folding tool registered.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Name == "" {
		cfg.Name = "cursorfold"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: server.NewMCPServer(cfg.Name, cfg.Version),
		registry:  NewRegistry(cfg.Provider, cfg.Options),
		version:   cfg.Version,
		logger:    cflog.WithComponent(logger, "mcp"),
	}
	for _, def := range s.registry.Tools() {
		s.mcpServer.AddTool(mcp.NewToolWithRawSchema(def.Name, def.Description, def.InputSchema), s.handler(def.Name))
	}
	return s
}

// handler adapts a registry tool to an mcp-go handler. Tool failures are
// reported as error results, not protocol errors.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.logger.Debug("tool called", "tool", name)

		params, err := json.Marshal(request.Params.Arguments)
		if err != nil {
			return errorResponse(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		result, err := s.registry.HandleTool(ctx, name, params)
		if err != nil {
			s.logger.Debug("tool failed", "tool", name, "error", err)
			return errorResponse(err.Error()), nil
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errorResponse(fmt.Sprintf("encode result: %v", err)), nil
		}
		return textResponse(string(data)), nil
	}
}

// Run serves the tools over stdio until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "version", s.version, "tools", len(s.registry.Tools()))
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
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
