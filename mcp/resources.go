package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources
func (s *MCPServer) registerResources() {
	// Session list resource
	s.server.AddResource(
		mcp.NewResource(
			"scribe://sessions",
			"Capture sessions",
			mcp.WithMIMEType("application/json"),
		),
		s.handleSessionsResource,
	)

	// Individual session resource template
	s.server.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"scribe://sessions/{sessionId}",
			"Session details",
		),
		s.handleSessionResource,
	)

	// Recording status resource
	s.server.AddResource(
		mcp.NewResource(
			"scribe://status",
			"Current recording status",
			mcp.WithMIMEType("application/json"),
		),
		s.handleStatusResource,
	)
}

// handleSessionsResource handles the scribe://sessions resource
func (s *MCPServer) handleSessionsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sessions, err := s.app.ListSessions("", 50)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	jsonData, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize sessions: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// handleSessionResource handles the scribe://sessions/{sessionId} resource template
func (s *MCPServer) handleSessionResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	// Extract session ID from URI: scribe://sessions/{sessionId}
	uri := request.Params.URI
	sessionID := strings.TrimPrefix(uri, "scribe://sessions/")
	if sessionID == "" || sessionID == uri {
		return nil, fmt.Errorf("invalid session URI format: %s", uri)
	}

	session, err := s.app.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	jsonData, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize session: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// handleStatusResource handles the scribe://status resource
func (s *MCPServer) handleStatusResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	status := s.app.GetRecordingStatus()

	jsonData, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
