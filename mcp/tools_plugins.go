package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerPluginTools registers plugin management tools
func (s *MCPServer) registerPluginTools() {
	s.server.AddTool(
		mcp.NewTool("plugin_list",
			mcp.WithDescription("List loaded action plugins"),
		),
		s.handlePluginList,
	)

	s.server.AddTool(
		mcp.NewTool("plugin_reload",
			mcp.WithDescription("Reload all action plugins from the plugin directory"),
		),
		s.handlePluginReload,
	)
}

func (s *MCPServer) handlePluginList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := s.app.ListPlugins()
	if len(names) == 0 {
		return textResult("No plugins loaded"), nil
	}
	return textResult(fmt.Sprintf("Loaded plugins (%d):\n%s", len(names), strings.Join(names, "\n"))), nil
}

func (s *MCPServer) handlePluginReload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.app.ReloadPlugins(); err != nil {
		return nil, fmt.Errorf("failed to reload plugins: %w", err)
	}
	names := s.app.ListPlugins()
	return textResult(fmt.Sprintf("Reloaded plugins: %d loaded", len(names))), nil
}
