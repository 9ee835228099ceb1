package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestHandlePluginList_Empty(t *testing.T) {
	mock := NewMockScribeApp()
	server := NewMCPServer(mock)

	result, err := server.handlePluginList(context.Background(), makeToolRequest(nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !strings.Contains(getTextContent(result), "No plugins loaded") {
		t.Error("Result should report no plugins")
	}
}

func TestHandlePluginList_WithPlugins(t *testing.T) {
	mock := NewMockScribeApp()
	mock.ListPluginsResult = []string{"checkpoint-on-submit", "cart-tracker"}
	server := NewMCPServer(mock)

	result, err := server.handlePluginList(context.Background(), makeToolRequest(nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(text, "checkpoint-on-submit") || !strings.Contains(text, "cart-tracker") {
		t.Error("Result should contain plugin names")
	}
}

func TestHandlePluginReload_Success(t *testing.T) {
	mock := NewMockScribeApp()
	mock.ListPluginsResult = []string{"checkpoint-on-submit"}
	server := NewMCPServer(mock)

	result, err := server.handlePluginReload(context.Background(), makeToolRequest(nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !mock.WasMethodCalled("ReloadPlugins") {
		t.Error("ReloadPlugins should be called")
	}
	if !strings.Contains(getTextContent(result), "1 loaded") {
		t.Error("Result should report loaded count")
	}
}

func TestHandlePluginReload_Error(t *testing.T) {
	mock := NewMockScribeApp()
	mock.ReloadPluginsError = errors.New("plugin dir unreadable")
	server := NewMCPServer(mock)

	_, err := server.handlePluginReload(context.Background(), makeToolRequest(nil))
	if err == nil {
		t.Error("Expected error when reload fails")
	}
}
