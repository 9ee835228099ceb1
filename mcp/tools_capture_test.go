package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// ==================== capture_start ====================

func TestHandleCaptureStart_Success(t *testing.T) {
	mock := NewMockScribeApp()
	mock.StartCaptureResult = "session_abc"
	server := NewMCPServer(mock)

	result, err := server.handleCaptureStart(context.Background(), makeToolRequest(map[string]interface{}{
		"url":      "https://example.com/login",
		"name":     "Login flow",
		"headless": true,
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(text, "session_abc") {
		t.Error("Result should contain session ID")
	}

	call := mock.GetLastCallByMethod("StartCapture")
	if call == nil {
		t.Fatal("StartCapture should be called")
	}
	if call.Args[0] != "https://example.com/login" {
		t.Errorf("Expected url argument, got %v", call.Args[0])
	}
	if call.Args[1] != "Login flow" {
		t.Errorf("Expected name argument, got %v", call.Args[1])
	}
	if call.Args[2] != true {
		t.Errorf("Expected headless true, got %v", call.Args[2])
	}
}

func TestHandleCaptureStart_MissingURL(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	_, err := server.handleCaptureStart(context.Background(), makeToolRequest(nil))
	if err == nil {
		t.Error("Expected error for missing url")
	}
}

func TestHandleCaptureStart_AppError(t *testing.T) {
	mock := NewMockScribeApp()
	mock.StartCaptureError = errors.New("browser launch failed")
	server := NewMCPServer(mock)

	_, err := server.handleCaptureStart(context.Background(), makeToolRequest(map[string]interface{}{
		"url": "https://example.com",
	}))
	if err == nil {
		t.Error("Expected error when StartCapture fails")
	}
}

// ==================== capture_stop ====================

func TestHandleCaptureStop_DefaultStatus(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	_, err := server.handleCaptureStop(context.Background(), makeToolRequest(nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	call := mock.GetLastCallByMethod("StopCapture")
	if call == nil {
		t.Fatal("StopCapture should be called")
	}
	if call.Args[0] != "completed" {
		t.Errorf("Expected default status 'completed', got %v", call.Args[0])
	}
}

func TestHandleCaptureStop_AbortedStatus(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	_, err := server.handleCaptureStop(context.Background(), makeToolRequest(map[string]interface{}{
		"status": "aborted",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	call := mock.GetLastCallByMethod("StopCapture")
	if call.Args[0] != "aborted" {
		t.Errorf("Expected status 'aborted', got %v", call.Args[0])
	}
}

// ==================== capture_status ====================

func TestHandleCaptureStatus(t *testing.T) {
	mock := NewMockScribeApp()
	mock.GetRecordingStatusResult = RecordingStatus{
		Running:     true,
		SessionID:   "session_live",
		URL:         "https://example.com",
		ActionCount: 12,
	}
	server := NewMCPServer(mock)

	result, err := server.handleCaptureStatus(context.Background(), makeToolRequest(nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(text, "session_live") {
		t.Error("Result should contain the live session ID")
	}
	if !strings.Contains(text, `"running": true`) {
		t.Error("Result should report running state")
	}
}
