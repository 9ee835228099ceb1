package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerScriptTools registers test script generation tools
func (s *MCPServer) registerScriptTools() {
	s.server.AddTool(
		mcp.NewTool("script_generate",
			mcp.WithDescription("Generate a Playwright test script from a session's recorded actions. The result includes the script text and whether it parses as valid JavaScript."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session ID to generate a script for"),
			),
		),
		s.handleScriptGenerate,
	)
}

func (s *MCPServer) handleScriptGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	result, err := s.app.GenerateTestScript(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate test script: %w", err)
	}
	return jsonResult(result)
}
