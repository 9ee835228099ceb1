package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"Scribe/mcp"
)

// Integration tests for the MCP bridge. These run against a real SQLite
// store and pipeline to verify end-to-end data flow.

func setupBridgeApp(t *testing.T) *App {
	t.Helper()

	dataDir := t.TempDir()
	store, err := NewActionStore(dataDir)
	if err != nil {
		t.Fatalf("NewActionStore: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pipeline := NewActionPipeline(ctx, store)
	pipeline.Start()

	config := DefaultAppConfig(dataDir)
	recorder := NewRecorder(config, NewRealClock(), pipeline.Ingest)

	app := &App{
		ctx:      ctx,
		cancel:   cancel,
		config:   config,
		version:  "test",
		dataDir:  dataDir,
		store:    store,
		pipeline: pipeline,
		recorder: recorder,
		bridge:   NewCaptureBridge(recorder),
		plugins:  NewActionPluginManager("", pipeline),
	}
	app.exporter = NewExportManager(store, app.version)
	app.testgen = NewTestScriptGenerator(store)

	t.Cleanup(func() {
		pipeline.Stop()
		store.Close()
		cancel()
	})
	return app
}

// waitForActionCount polls until the session shows the expected count.
func waitForActionCount(t *testing.T, bridge *MCPBridge, sessionID string, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		session, err := bridge.GetSession(sessionID)
		if err == nil && session != nil && session.ActionCount >= want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("session %s never reached %d actions", sessionID, want)
}

func TestMCPBridge_ImplementsScribeApp(t *testing.T) {
	var _ mcp.ScribeApp = (*MCPBridge)(nil)
}

func TestMCPBridge_QueryActions_IncludesData(t *testing.T) {
	app := setupBridgeApp(t)
	bridge := NewMCPBridge(app)

	sessionID := app.pipeline.StartSession("bridge flow", "https://example.com")

	app.pipeline.Ingest(Action{
		ID:        "act-1",
		Type:      ActionClick,
		Timestamp: 100,
		Label:     "Submit order",
	})
	app.pipeline.Ingest(Action{
		ID:        "act-2",
		Type:      ActionInput,
		Timestamp: 300,
		Value:     "alice@example.com",
	})
	waitForActionCount(t, bridge, sessionID, 2)

	result, err := bridge.QueryActions(mcp.ActionQuery{SessionID: sessionID})
	if err != nil {
		t.Fatalf("QueryActions: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("Total = %d, want 2", result.Total)
	}

	// Payloads must round-trip through the store intact
	var first Action
	if err := json.Unmarshal(result.Actions[0], &first); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if first.ID != "act-1" || first.Label != "Submit order" {
		t.Errorf("first action payload corrupted: %+v", first)
	}

	// Type filter
	clicks, err := bridge.QueryActions(mcp.ActionQuery{
		SessionID: sessionID,
		Types:     []string{"click"},
	})
	if err != nil {
		t.Fatalf("QueryActions with filter: %v", err)
	}
	if clicks.Total != 1 {
		t.Errorf("click filter Total = %d, want 1", clicks.Total)
	}
}

func TestMCPBridge_GetRecentActions_LiveSession(t *testing.T) {
	app := setupBridgeApp(t)
	bridge := NewMCPBridge(app)

	sessionID := app.pipeline.StartSession("", "https://example.com")

	for i := 0; i < 5; i++ {
		app.pipeline.Ingest(Action{
			ID:        uuidLike(i),
			Type:      ActionClick,
			Timestamp: int64(i * 100),
		})
	}
	waitForActionCount(t, bridge, sessionID, 5)

	recent, err := bridge.GetRecentActions(sessionID, 3)
	if err != nil {
		t.Fatalf("GetRecentActions: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3", len(recent))
	}

	var last Action
	if err := json.Unmarshal(recent[len(recent)-1], &last); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if last.Timestamp != 400 {
		t.Errorf("newest action timestamp = %d, want 400", last.Timestamp)
	}
}

func uuidLike(i int) string {
	return string(rune('a'+i)) + "-action"
}

func TestMCPBridge_SessionLifecycle(t *testing.T) {
	app := setupBridgeApp(t)
	bridge := NewMCPBridge(app)

	sessionID := app.pipeline.StartSession("lifecycle", "https://example.com")
	app.pipeline.EndSession(sessionID, "completed")

	sessions, err := bridge.ListSessions("completed", 10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	found := false
	for _, s := range sessions {
		if s.ID == sessionID {
			found = true
		}
	}
	if !found {
		t.Fatal("completed session missing from list")
	}

	if err := bridge.RenameSession(sessionID, "renamed"); err != nil {
		t.Fatalf("RenameSession: %v", err)
	}
	session, err := bridge.GetSession(sessionID)
	if err != nil || session == nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.Name != "renamed" {
		t.Errorf("Name = %q, want renamed", session.Name)
	}

	if err := bridge.DeleteSession(sessionID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	session, err = bridge.GetSession(sessionID)
	if err != nil {
		t.Fatalf("GetSession after delete: %v", err)
	}
	if session != nil {
		t.Error("session should be gone after delete")
	}
}

func TestMCPBridge_RecordingStatus_Idle(t *testing.T) {
	app := setupBridgeApp(t)
	bridge := NewMCPBridge(app)

	status := bridge.GetRecordingStatus()
	if status.Running {
		t.Error("engine should be idle")
	}
	if status.PluginsLoaded != 0 {
		t.Errorf("PluginsLoaded = %d, want 0", status.PluginsLoaded)
	}
}
