package main

import (
	"encoding/json"

	"Scribe/mcp"
)

// MCPBridge bridges the main App to the MCP server
type MCPBridge struct {
	app *App
}

// NewMCPBridge creates a new MCP bridge
func NewMCPBridge(app *App) *MCPBridge {
	return &MCPBridge{app: app}
}

// Implement mcp.ScribeApp interface.
// The mcp package aliases the shared types, so these are pass-throughs.

func (b *MCPBridge) StartCapture(url, name string, headless bool) (string, error) {
	return b.app.StartCapture(url, name, headless)
}

func (b *MCPBridge) StopCapture(status string) error {
	return b.app.StopCapture(status)
}

func (b *MCPBridge) GetRecordingStatus() mcp.RecordingStatus {
	return b.app.GetRecordingStatus()
}

func (b *MCPBridge) ListSessions(status string, limit int) ([]mcp.CaptureSession, error) {
	return b.app.ListSessions(status, limit)
}

func (b *MCPBridge) GetSession(sessionID string) (*mcp.CaptureSession, error) {
	return b.app.GetSession(sessionID)
}

func (b *MCPBridge) DeleteSession(sessionID string) error {
	return b.app.DeleteSession(sessionID)
}

func (b *MCPBridge) RenameSession(sessionID, newName string) error {
	return b.app.RenameSession(sessionID, newName)
}

func (b *MCPBridge) QueryActions(q mcp.ActionQuery) (*mcp.ActionQueryResult, error) {
	return b.app.QueryActions(q)
}

func (b *MCPBridge) GetRecentActions(sessionID string, count int) ([]json.RawMessage, error) {
	return b.app.GetRecentActions(sessionID, count)
}

func (b *MCPBridge) ExportSessionToPath(sessionID, outputPath string) (*mcp.ExportResult, error) {
	return b.app.ExportSessionToPath(sessionID, outputPath)
}

func (b *MCPBridge) ImportSessionFromPath(inputPath string) (string, error) {
	return b.app.ImportSessionFromPath(inputPath)
}

func (b *MCPBridge) GenerateTestScript(sessionID string) (*mcp.TestScriptResult, error) {
	return b.app.GenerateTestScript(sessionID)
}

func (b *MCPBridge) ListPlugins() []string {
	return b.app.ListPlugins()
}

func (b *MCPBridge) ReloadPlugins() error {
	return b.app.ReloadPlugins()
}

func (b *MCPBridge) GetAppVersion() string {
	return b.app.GetAppVersion()
}
