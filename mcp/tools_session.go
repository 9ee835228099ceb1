package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// splitAndTrim splits a comma-separated string and trims whitespace
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// registerSessionTools registers session management tools
func (s *MCPServer) registerSessionTools() {
	// session_list - List capture sessions
	s.server.AddTool(
		mcp.NewTool("session_list",
			mcp.WithDescription("List capture sessions, newest first"),
			mcp.WithString("status",
				mcp.Description("Filter by status: recording, completed, aborted (default: all)"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum sessions to return (default: 20)"),
			),
		),
		s.handleSessionList,
	)

	// session_get - Session details
	s.server.AddTool(
		mcp.NewTool("session_get",
			mcp.WithDescription("Get one capture session's metadata"),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session ID"),
			),
		),
		s.handleSessionGet,
	)

	// session_actions - Query a session's recorded actions
	s.server.AddTool(
		mcp.NewTool("session_actions",
			mcp.WithDescription(`Query a session's recorded actions with optional filters.

Examples:
  All actions:          {"session_id": "abc"}
  Only clicks/inputs:   {"session_id": "abc", "types": "click,input"}
  A time window:        {"session_id": "abc", "from_ms": 1000, "to_ms": 5000}
  Paged:                {"session_id": "abc", "limit": 50, "offset": 100}`),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session ID"),
			),
			mcp.WithString("types",
				mcp.Description("Comma-separated action types: click, input, select, multi_select, navigation, scroll, hover, submit, keypress, checkpoint"),
			),
			mcp.WithNumber("from_ms",
				mcp.Description("Lower timestamp bound (ms relative to recording start)"),
			),
			mcp.WithNumber("to_ms",
				mcp.Description("Upper timestamp bound (ms relative to recording start)"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum actions to return"),
			),
			mcp.WithNumber("offset",
				mcp.Description("Paging offset"),
			),
		),
		s.handleSessionActions,
	)

	// session_recent_actions - Tail of the live session
	s.server.AddTool(
		mcp.NewTool("session_recent_actions",
			mcp.WithDescription("Get the most recent actions of a session (served from memory for the live session)"),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session ID"),
			),
			mcp.WithNumber("count",
				mcp.Description("Number of actions (default: 20)"),
			),
		),
		s.handleSessionRecentActions,
	)

	// session_export - Export to a .scribe archive
	s.server.AddTool(
		mcp.NewTool("session_export",
			mcp.WithDescription("Export a session and its actions to a .scribe archive file"),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session ID to export"),
			),
			mcp.WithString("output_path",
				mcp.Description("Output file path (default: home directory)"),
			),
		),
		s.handleSessionExport,
	)

	// session_import - Import a .scribe archive
	s.server.AddTool(
		mcp.NewTool("session_import",
			mcp.WithDescription("Import a .scribe archive as a new session"),
			mcp.WithString("input_path",
				mcp.Required(),
				mcp.Description("Path to the .scribe file"),
			),
		),
		s.handleSessionImport,
	)

	// session_delete - Delete a session
	s.server.AddTool(
		mcp.NewTool("session_delete",
			mcp.WithDescription("Delete a capture session and all its actions"),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session ID to delete"),
			),
		),
		s.handleSessionDelete,
	)

	// session_rename - Rename a session
	s.server.AddTool(
		mcp.NewTool("session_rename",
			mcp.WithDescription("Rename a capture session"),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session ID"),
			),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("New session name"),
			),
		),
		s.handleSessionRename,
	)
}

func (s *MCPServer) handleSessionList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	status := ""
	if st, ok := args["status"].(string); ok {
		status = st
	}
	limit := 20
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	sessions, err := s.app.ListSessions(status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return jsonResult(sessions)
}

func (s *MCPServer) handleSessionGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	session, err := s.app.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	return jsonResult(session)
}

func (s *MCPServer) handleSessionActions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	query := ActionQuery{SessionID: sessionID}
	if t, ok := args["types"].(string); ok && t != "" {
		query.Types = splitAndTrim(t)
	}
	if v, ok := args["from_ms"].(float64); ok {
		query.FromMs = int64(v)
	}
	if v, ok := args["to_ms"].(float64); ok {
		query.ToMs = int64(v)
	}
	if v, ok := args["limit"].(float64); ok {
		query.Limit = int(v)
	}
	if v, ok := args["offset"].(float64); ok {
		query.Offset = int(v)
	}

	result, err := s.app.QueryActions(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	return jsonResult(result)
}

func (s *MCPServer) handleSessionRecentActions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	count := 20
	if c, ok := args["count"].(float64); ok && c > 0 {
		count = int(c)
	}

	actions, err := s.app.GetRecentActions(sessionID, count)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent actions: %w", err)
	}
	return jsonResult(actions)
}

func (s *MCPServer) handleSessionExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	outputPath := ""
	if p, ok := args["output_path"].(string); ok {
		outputPath = p
	}

	result, err := s.app.ExportSessionToPath(sessionID, outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to export session: %w", err)
	}
	return textResult(fmt.Sprintf("Exported session %s to %s (%d bytes, %s)",
		result.SessionID, result.Path, result.SizeBytes, result.Format)), nil
}

func (s *MCPServer) handleSessionImport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	inputPath, ok := args["input_path"].(string)
	if !ok || inputPath == "" {
		return nil, fmt.Errorf("input_path is required")
	}

	sessionID, err := s.app.ImportSessionFromPath(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to import session: %w", err)
	}
	return textResult(fmt.Sprintf("Imported session: %s", sessionID)), nil
}

func (s *MCPServer) handleSessionDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	if err := s.app.DeleteSession(sessionID); err != nil {
		return nil, fmt.Errorf("failed to delete session: %w", err)
	}
	return textResult(fmt.Sprintf("Deleted session: %s", sessionID)), nil
}

func (s *MCPServer) handleSessionRename(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("name is required")
	}

	if err := s.app.RenameSession(sessionID, name); err != nil {
		return nil, fmt.Errorf("failed to rename session: %w", err)
	}
	return textResult(fmt.Sprintf("Renamed session %s to %q", sessionID, name)), nil
}
