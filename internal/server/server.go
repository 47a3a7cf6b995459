// Package server is the composition root: it wires the config, session
// log and review pipeline together and exposes the operations as MCP
// tools over stdio. No business logic lives here, only argument
// decoding and wiring.
package server

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/iamrichardD/claude-gemini-mcp-server/internal/config"
	"github.com/iamrichardD/claude-gemini-mcp-server/internal/review"
	"github.com/iamrichardD/claude-gemini-mcp-server/internal/session"
)

var focusValues = []string{"general", "security", "performance", "style", "architecture"}

// Server owns the MCP server instance and the pipeline behind it.
type Server struct {
	mcp      *server.MCPServer
	pipeline *review.Pipeline
	sessions *session.Log
	logger   *zap.Logger
}

// New resolves all dependencies and registers every tool. The session
// log lives for the lifetime of the process and is shared by all tools.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sessions := session.NewLog()
	pipeline, err := review.New(cfg, logger, sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to build review pipeline: %w", err)
	}

	s := &Server{
		mcp: server.NewMCPServer(
			cfg.Name,
			cfg.Version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
			server.WithInstructions(serverInstructions(pipeline.RootDir())),
		),
		pipeline: pipeline,
		sessions: sessions,
		logger:   logger,
	}

	s.mcp.AddTool(reviewToolDef("review",
		"Review a source file for bugs, risky patterns and unclear naming."),
		s.analysisHandler(review.OpReview))
	s.mcp.AddTool(reviewToolDef("analyze",
		"Describe a source file's structure, responsibilities and complexity hot spots."),
		s.analysisHandler(review.OpAnalyze))
	s.mcp.AddTool(reviewToolDef("suggest",
		"Propose one concrete improvement to a source file, with before/after code."),
		s.analysisHandler(review.OpSuggest))
	s.mcp.AddTool(reviewToolDef("validate_architecture",
		"Evaluate a source file against common architectural principles."),
		s.analysisHandler(review.OpValidateArchitecture))

	s.mcp.AddTool(mcp.NewTool("history",
		mcp.WithDescription("List recent review operations from this session, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of entries to return (default 10)."),
		),
	), s.handleHistory)

	return s, nil
}

// reviewToolDef builds the shared schema for the four file-based tools.
// They take identical arguments and differ only in name and prompt.
func reviewToolDef(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to the file, relative to the sandbox root or absolute within it."),
		),
		mcp.WithString("context",
			mcp.Description("Optional free-text context to steer the analysis."),
		),
		mcp.WithString("focus",
			mcp.Description("Optional focus area for the analysis."),
			mcp.Enum(focusValues...),
		),
		mcp.WithString("language",
			mcp.Description("Optional language name overriding suffix-based detection."),
		),
	)
}

// analysisHandler adapts one operation of the pipeline to the MCP tool
// handler signature. Pipeline errors become tool-level error results so
// the caller sees the category and message instead of a protocol fault.
func (s *Server) analysisHandler(op review.Operation) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := req.RequireString("file_path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res, err := s.pipeline.Handle(ctx, review.Request{
			Operation: op,
			FilePath:  filePath,
			Context:   req.GetString("context", ""),
			Focus:     req.GetString("focus", ""),
			Language:  req.GetString("language", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(res.Text), nil
	}
}

func (s *Server) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.pipeline.Handle(ctx, review.Request{
		Operation: review.OpHistory,
		Limit:     req.GetInt("limit", 10),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(res.Text), nil
}

// Serve runs the stdio transport until ctx is cancelled or stdin closes.
// Stdout carries JSON-RPC frames only; all logging goes to stderr.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio",
		zap.String("root", s.pipeline.RootDir()))
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCP exposes the underlying server, mainly for tests.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

func serverInstructions(root string) string {
	return fmt.Sprintf(`This server runs the gemini CLI against source files inside %s.

Tools:
  - review: second-opinion code review of one file
  - analyze: structural walkthrough of one file
  - suggest: one concrete improvement with before/after code
  - validate_architecture: architectural assessment of one file
  - history: recent operations from this session

File paths must stay inside the sandbox root and carry a recognized
source-code suffix. Binary and oversized files are rejected.`, root)
}
