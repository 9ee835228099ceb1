// Package mcp provides the MCP (Model Context Protocol) server for Scribe.
// It lets external AI clients drive capture sessions, inspect recorded
// actions and generate replay scripts.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"Scribe/pkg/types"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Type aliases from shared types package
// This avoids code duplication and ensures type consistency
type (
	CaptureSession    = types.CaptureSession
	RecordingStatus   = types.RecordingStatus
	ActionQuery       = types.ActionQuery
	ActionQueryResult = types.ActionQueryResult
	ExportResult      = types.ExportResult
	TestScriptResult  = types.TestScriptResult
)

// ScribeApp defines the methods the MCP server needs from the main App.
// This allows loose coupling between MCP and the main application.
type ScribeApp interface {
	// Capture control
	StartCapture(url, name string, headless bool) (string, error)
	StopCapture(status string) error
	GetRecordingStatus() RecordingStatus

	// Sessions
	ListSessions(status string, limit int) ([]CaptureSession, error)
	GetSession(sessionID string) (*CaptureSession, error)
	DeleteSession(sessionID string) error
	RenameSession(sessionID, newName string) error

	// Actions
	QueryActions(q ActionQuery) (*ActionQueryResult, error)
	GetRecentActions(sessionID string, count int) ([]json.RawMessage, error)

	// Export / import
	ExportSessionToPath(sessionID, outputPath string) (*ExportResult, error)
	ImportSessionFromPath(inputPath string) (string, error)

	// Script generation
	GenerateTestScript(sessionID string) (*TestScriptResult, error)

	// Plugins
	ListPlugins() []string
	ReloadPlugins() error

	// Utility
	GetAppVersion() string
}

// MCPServer wraps the mcp-go server with Scribe's tools
type MCPServer struct {
	app    ScribeApp
	server *server.MCPServer
	stdio  *server.StdioServer

	mu        sync.Mutex
	isRunning bool
}

// NewMCPServer creates a new MCP server for Scribe
func NewMCPServer(app ScribeApp) *MCPServer {
	mcpServer := server.NewMCPServer(
		"scribe-action-capture",
		app.GetAppVersion(),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
	)

	s := &MCPServer{
		app:    app,
		server: mcpServer,
	}

	s.registerTools()
	s.registerResources()

	return s
}

// registerTools registers all MCP tools
func (s *MCPServer) registerTools() {
	// Capture control tools
	s.registerCaptureTools()

	// Session management tools
	s.registerSessionTools()

	// Script generation tools
	s.registerScriptTools()

	// Plugin tools
	s.registerPluginTools()
}

// Start starts the MCP server (blocking - for CLI mode)
func (s *MCPServer) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("MCP server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	return s.run()
}

// StartAsync starts the MCP server in a goroutine (non-blocking)
func (s *MCPServer) StartAsync() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("MCP server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	go s.run()
	return nil
}

// run runs the MCP server (blocking)
func (s *MCPServer) run() error {
	s.stdio = server.NewStdioServer(s.server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	go func() {
		<-sigChan
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "[MCP] Scribe MCP Server started")
	err := s.stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[MCP] Server error: %v\n", err)
	}

	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()

	return err
}

// Stop stops the MCP server
func (s *MCPServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The server stops when stdin closes or the context is cancelled.
	s.isRunning = false
}

// IsRunning returns whether the MCP server is running
func (s *MCPServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// textResult wraps a plain text tool response
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// jsonResult marshals v and wraps it as a tool response
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
