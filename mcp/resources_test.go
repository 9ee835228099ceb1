package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

// Helper to create a ReadResourceRequest
func makeResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// Helper to get text from resource contents
func getResourceText(contents []mcp.ResourceContents) string {
	if len(contents) == 0 {
		return ""
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); ok {
		return tc.Text
	}
	return ""
}

// ==================== scribe://sessions ====================

func TestHandleSessionsResource_Success(t *testing.T) {
	mock := NewMockScribeApp()
	mock.ListSessionsResult = []CaptureSession{
		{ID: "s1", Name: "checkout", Status: "completed"},
		{ID: "s2", Name: "login", Status: "recording"},
	}
	server := NewMCPServer(mock)

	contents, err := server.handleSessionsResource(context.Background(), makeResourceRequest("scribe://sessions"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(contents) == 0 {
		t.Fatal("Expected at least one content item")
	}

	var sessions []CaptureSession
	if err := json.Unmarshal([]byte(getResourceText(contents)), &sessions); err != nil {
		t.Fatalf("Result should be valid JSON: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("Expected 2 sessions, got %d", len(sessions))
	}
}

func TestHandleSessionsResource_Empty(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	contents, err := server.handleSessionsResource(context.Background(), makeResourceRequest("scribe://sessions"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var sessions []CaptureSession
	if err := json.Unmarshal([]byte(getResourceText(contents)), &sessions); err != nil {
		t.Fatalf("Result should be valid JSON: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("Expected 0 sessions, got %d", len(sessions))
	}
}

// ==================== scribe://sessions/{sessionId} ====================

func TestHandleSessionResource_Success(t *testing.T) {
	mock := NewMockScribeApp()
	mock.GetSessionResult = &CaptureSession{ID: "s1", Name: "checkout", Status: "completed"}
	server := NewMCPServer(mock)

	contents, err := server.handleSessionResource(context.Background(), makeResourceRequest("scribe://sessions/s1"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var session CaptureSession
	if err := json.Unmarshal([]byte(getResourceText(contents)), &session); err != nil {
		t.Fatalf("Result should be valid JSON: %v", err)
	}
	if session.ID != "s1" {
		t.Errorf("Expected session s1, got %s", session.ID)
	}

	call := mock.GetLastCallByMethod("GetSession")
	if call == nil || call.Args[0] != "s1" {
		t.Error("GetSession should be called with the URI session id")
	}
}

func TestHandleSessionResource_InvalidURI(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	_, err := server.handleSessionResource(context.Background(), makeResourceRequest("scribe://sessions/"))
	if err == nil {
		t.Error("Expected error for URI without a session id")
	}
}

func TestHandleSessionResource_NotFound(t *testing.T) {
	mock := NewMockScribeApp()
	mock.GetSessionResult = nil
	server := NewMCPServer(mock)

	_, err := server.handleSessionResource(context.Background(), makeResourceRequest("scribe://sessions/missing"))
	if err == nil {
		t.Error("Expected error for unknown session")
	}
}

// ==================== scribe://status ====================

func TestHandleStatusResource(t *testing.T) {
	mock := NewMockScribeApp()
	mock.GetRecordingStatusResult = RecordingStatus{Running: true, SessionID: "s1", ActionCount: 4}
	server := NewMCPServer(mock)

	contents, err := server.handleStatusResource(context.Background(), makeResourceRequest("scribe://status"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var status RecordingStatus
	if err := json.Unmarshal([]byte(getResourceText(contents)), &status); err != nil {
		t.Fatalf("Result should be valid JSON: %v", err)
	}
	if !status.Running || status.SessionID != "s1" {
		t.Errorf("Unexpected status: %+v", status)
	}
}
