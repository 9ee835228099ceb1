package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// ==================== session_list ====================

func TestHandleSessionList_Success(t *testing.T) {
	mock := NewMockScribeApp()
	mock.ListSessionsResult = []CaptureSession{
		{ID: "s1", Name: "checkout", Status: "completed", ActionCount: 9},
		{ID: "s2", Name: "login", Status: "recording", ActionCount: 2},
	}
	server := NewMCPServer(mock)

	result, err := server.handleSessionList(context.Background(), makeToolRequest(nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(text, "checkout") || !strings.Contains(text, "login") {
		t.Error("Result should contain both session names")
	}

	// Defaults: no status filter, limit 20
	call := mock.GetLastCallByMethod("ListSessions")
	if call.Args[0] != "" {
		t.Errorf("Expected empty status filter, got %v", call.Args[0])
	}
	if call.Args[1] != 20 {
		t.Errorf("Expected default limit 20, got %v", call.Args[1])
	}
}

func TestHandleSessionList_StatusFilter(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	_, err := server.handleSessionList(context.Background(), makeToolRequest(map[string]interface{}{
		"status": "completed",
		"limit":  float64(5),
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	call := mock.GetLastCallByMethod("ListSessions")
	if call.Args[0] != "completed" {
		t.Errorf("Expected status filter 'completed', got %v", call.Args[0])
	}
	if call.Args[1] != 5 {
		t.Errorf("Expected limit 5, got %v", call.Args[1])
	}
}

// ==================== session_get ====================

func TestHandleSessionGet_Success(t *testing.T) {
	mock := NewMockScribeApp()
	mock.GetSessionResult = &CaptureSession{ID: "s1", Name: "checkout", Status: "completed"}
	server := NewMCPServer(mock)

	result, err := server.handleSessionGet(context.Background(), makeToolRequest(map[string]interface{}{
		"session_id": "s1",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !strings.Contains(getTextContent(result), "checkout") {
		t.Error("Result should contain the session name")
	}
}

func TestHandleSessionGet_NotFound(t *testing.T) {
	mock := NewMockScribeApp()
	mock.GetSessionResult = nil
	server := NewMCPServer(mock)

	_, err := server.handleSessionGet(context.Background(), makeToolRequest(map[string]interface{}{
		"session_id": "nope",
	}))
	if err == nil {
		t.Error("Expected error for unknown session")
	}
}

func TestHandleSessionGet_MissingID(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	_, err := server.handleSessionGet(context.Background(), makeToolRequest(nil))
	if err == nil {
		t.Error("Expected error for missing session_id")
	}
}

// ==================== session_actions ====================

func TestHandleSessionActions_BuildsQuery(t *testing.T) {
	mock := NewMockScribeApp()
	mock.QueryActionsResult = &ActionQueryResult{
		SessionID: "s1",
		Total:     2,
		Actions:   []json.RawMessage{json.RawMessage(`{"type":"click"}`)},
	}
	server := NewMCPServer(mock)

	result, err := server.handleSessionActions(context.Background(), makeToolRequest(map[string]interface{}{
		"session_id": "s1",
		"types":      "click, input",
		"from_ms":    float64(1000),
		"to_ms":      float64(5000),
		"limit":      float64(50),
		"offset":     float64(10),
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !strings.Contains(getTextContent(result), `"total": 2`) {
		t.Error("Result should contain query total")
	}

	call := mock.GetLastCallByMethod("QueryActions")
	if call == nil {
		t.Fatal("QueryActions should be called")
	}
	q, ok := call.Args[0].(ActionQuery)
	if !ok {
		t.Fatalf("Expected ActionQuery argument, got %T", call.Args[0])
	}
	if q.SessionID != "s1" {
		t.Errorf("Expected session s1, got %s", q.SessionID)
	}
	if len(q.Types) != 2 || q.Types[0] != "click" || q.Types[1] != "input" {
		t.Errorf("Expected types [click input], got %v", q.Types)
	}
	if q.FromMs != 1000 || q.ToMs != 5000 {
		t.Errorf("Expected time range 1000..5000, got %d..%d", q.FromMs, q.ToMs)
	}
	if q.Limit != 50 || q.Offset != 10 {
		t.Errorf("Expected limit 50 offset 10, got %d %d", q.Limit, q.Offset)
	}
}

func TestHandleSessionActions_MissingID(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	_, err := server.handleSessionActions(context.Background(), makeToolRequest(nil))
	if err == nil {
		t.Error("Expected error for missing session_id")
	}
}

// ==================== session_recent_actions ====================

func TestHandleSessionRecentActions_Defaults(t *testing.T) {
	mock := NewMockScribeApp()
	mock.GetRecentActionsResult = []json.RawMessage{json.RawMessage(`{"type":"click"}`)}
	server := NewMCPServer(mock)

	result, err := server.handleSessionRecentActions(context.Background(), makeToolRequest(map[string]interface{}{
		"session_id": "s1",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !strings.Contains(getTextContent(result), "click") {
		t.Error("Result should contain actions")
	}

	call := mock.GetLastCallByMethod("GetRecentActions")
	if call.Args[1] != 20 {
		t.Errorf("Expected default count 20, got %v", call.Args[1])
	}
}

// ==================== session_export ====================

func TestHandleSessionExport_Success(t *testing.T) {
	mock := NewMockScribeApp()
	mock.ExportSessionResult = &ExportResult{
		SessionID: "s1",
		Path:      "/tmp/checkout.scribe",
		Format:    "deflate",
		SizeBytes: 4096,
	}
	server := NewMCPServer(mock)

	result, err := server.handleSessionExport(context.Background(), makeToolRequest(map[string]interface{}{
		"session_id":  "s1",
		"output_path": "/tmp/checkout.scribe",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(text, "/tmp/checkout.scribe") {
		t.Error("Result should contain the archive path")
	}
	if !strings.Contains(text, "4096") {
		t.Error("Result should contain the archive size")
	}
}

func TestHandleSessionExport_AppError(t *testing.T) {
	mock := NewMockScribeApp()
	mock.ExportSessionError = errors.New("session not found")
	server := NewMCPServer(mock)

	_, err := server.handleSessionExport(context.Background(), makeToolRequest(map[string]interface{}{
		"session_id": "missing",
	}))
	if err == nil {
		t.Error("Expected error when export fails")
	}
}

// ==================== session_import ====================

func TestHandleSessionImport_Success(t *testing.T) {
	mock := NewMockScribeApp()
	mock.ImportSessionResult = "imported_session"
	server := NewMCPServer(mock)

	result, err := server.handleSessionImport(context.Background(), makeToolRequest(map[string]interface{}{
		"input_path": "/tmp/checkout.scribe",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !strings.Contains(getTextContent(result), "imported_session") {
		t.Error("Result should contain the new session ID")
	}
}

func TestHandleSessionImport_MissingPath(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	_, err := server.handleSessionImport(context.Background(), makeToolRequest(nil))
	if err == nil {
		t.Error("Expected error for missing input_path")
	}
}

// ==================== session_delete / session_rename ====================

func TestHandleSessionDelete_Success(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	_, err := server.handleSessionDelete(context.Background(), makeToolRequest(map[string]interface{}{
		"session_id": "s1",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !mock.WasMethodCalled("DeleteSession") {
		t.Error("DeleteSession should be called")
	}
}

func TestHandleSessionRename_Success(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	_, err := server.handleSessionRename(context.Background(), makeToolRequest(map[string]interface{}{
		"session_id": "s1",
		"name":       "renamed flow",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	call := mock.GetLastCallByMethod("RenameSession")
	if call == nil {
		t.Fatal("RenameSession should be called")
	}
	if call.Args[1] != "renamed flow" {
		t.Errorf("Expected new name argument, got %v", call.Args[1])
	}
}

func TestHandleSessionRename_MissingName(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	_, err := server.handleSessionRename(context.Background(), makeToolRequest(map[string]interface{}{
		"session_id": "s1",
	}))
	if err == nil {
		t.Error("Expected error for missing name")
	}
}
