package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestHandleScriptGenerate_Success(t *testing.T) {
	mock := NewMockScribeApp()
	mock.GenerateTestScriptResult = &TestScriptResult{
		SessionID: "s1",
		Script:    "const { test, expect } = require('@playwright/test');",
		Valid:     true,
	}
	server := NewMCPServer(mock)

	result, err := server.handleScriptGenerate(context.Background(), makeToolRequest(map[string]interface{}{
		"session_id": "s1",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(text, "@playwright/test") {
		t.Error("Result should contain the generated script")
	}
	if !strings.Contains(text, `"valid": true`) {
		t.Error("Result should report validity")
	}
}

func TestHandleScriptGenerate_MissingID(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	_, err := server.handleScriptGenerate(context.Background(), makeToolRequest(nil))
	if err == nil {
		t.Error("Expected error for missing session_id")
	}
}

func TestHandleScriptGenerate_AppError(t *testing.T) {
	mock := NewMockScribeApp()
	mock.GenerateTestScriptError = errors.New("session not found")
	server := NewMCPServer(mock)

	_, err := server.handleScriptGenerate(context.Background(), makeToolRequest(map[string]interface{}{
		"session_id": "missing",
	}))
	if err == nil {
		t.Error("Expected error when generation fails")
	}
}
