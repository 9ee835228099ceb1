package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerCaptureTools registers capture control tools
func (s *MCPServer) registerCaptureTools() {
	// capture_start - Start recording a page
	s.server.AddTool(
		mcp.NewTool("capture_start",
			mcp.WithDescription(`Start a capture session: opens a browser at the given URL and records user interactions as semantic actions (clicks, typing, selects, hovers, navigation).

Example:
  {"url": "https://shop.example.com/checkout", "name": "checkout flow"}`),
			mcp.WithString("url",
				mcp.Required(),
				mcp.Description("Page URL to open and record"),
			),
			mcp.WithString("name",
				mcp.Description("Session name (optional)"),
			),
			mcp.WithBoolean("headless",
				mcp.Description("Run the browser headless (default: false)"),
			),
		),
		s.handleCaptureStart,
	)

	// capture_stop - Stop the active capture
	s.server.AddTool(
		mcp.NewTool("capture_stop",
			mcp.WithDescription("Stop the active capture session and close the browser"),
			mcp.WithString("status",
				mcp.Description("Final session status: completed, aborted (default: completed)"),
			),
		),
		s.handleCaptureStop,
	)

	// capture_status - Live recording status
	s.server.AddTool(
		mcp.NewTool("capture_status",
			mcp.WithDescription("Get the live capture status: whether recording is active, the session id, URL and action count"),
		),
		s.handleCaptureStatus,
	)
}

func (s *MCPServer) handleCaptureStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	url, ok := args["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("url is required")
	}

	name := ""
	if n, ok := args["name"].(string); ok {
		name = n
	}
	headless := false
	if h, ok := args["headless"].(bool); ok {
		headless = h
	}

	sessionID, err := s.app.StartCapture(url, name, headless)
	if err != nil {
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}

	response := fmt.Sprintf("Capture started\nSession: %s\nURL: %s", sessionID, url)
	if name != "" {
		response += fmt.Sprintf("\nName: %s", name)
	}
	return textResult(response), nil
}

func (s *MCPServer) handleCaptureStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	status := "completed"
	if st, ok := args["status"].(string); ok && st != "" {
		status = st
	}

	if err := s.app.StopCapture(status); err != nil {
		return nil, fmt.Errorf("failed to stop capture: %w", err)
	}

	return textResult(fmt.Sprintf("Capture stopped with status: %s", status)), nil
}

func (s *MCPServer) handleCaptureStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.app.GetRecordingStatus())
}
