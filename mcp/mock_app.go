package mcp

import (
	"encoding/json"
	"sync"
)

// MockCall records a method call for verification
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockScribeApp is a mock implementation of ScribeApp for testing
type MockScribeApp struct {
	mu    sync.Mutex
	Calls []MockCall

	// Capture
	StartCaptureResult       string
	StartCaptureError        error
	StopCaptureError         error
	GetRecordingStatusResult RecordingStatus

	// Sessions
	ListSessionsResult  []CaptureSession
	ListSessionsError   error
	GetSessionResult    *CaptureSession
	GetSessionError     error
	DeleteSessionError  error
	RenameSessionError  error
	QueryActionsResult  *ActionQueryResult
	QueryActionsError   error
	GetRecentActionsResult []json.RawMessage
	GetRecentActionsError  error

	// Export / Import
	ExportSessionResult *ExportResult
	ExportSessionError  error
	ImportSessionResult string
	ImportSessionError  error

	// Script generation
	GenerateTestScriptResult *TestScriptResult
	GenerateTestScriptError  error

	// Plugins
	ListPluginsResult  []string
	ReloadPluginsError error

	// Utility
	AppVersion string
}

// NewMockScribeApp creates a new MockScribeApp with sensible defaults
func NewMockScribeApp() *MockScribeApp {
	return &MockScribeApp{
		Calls:                  make([]MockCall, 0),
		AppVersion:             "1.0.0-test",
		StartCaptureResult:     "mock-session-id",
		ListSessionsResult:     []CaptureSession{},
		ListPluginsResult:      []string{},
		GetRecentActionsResult: []json.RawMessage{},
	}
}

// recordCall records a method call
func (m *MockScribeApp) recordCall(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

// GetCalls returns all recorded calls
func (m *MockScribeApp) GetCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall{}, m.Calls...)
}

// ResetCalls clears all recorded calls
func (m *MockScribeApp) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = make([]MockCall, 0)
}

// WasMethodCalled checks if a method was called
func (m *MockScribeApp) WasMethodCalled(method string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.Calls {
		if call.Method == method {
			return true
		}
	}
	return false
}

// GetLastCallByMethod returns the last call to a specific method
func (m *MockScribeApp) GetLastCallByMethod(method string) *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Calls) - 1; i >= 0; i-- {
		if m.Calls[i].Method == method {
			return &m.Calls[i]
		}
	}
	return nil
}

// === Capture ===

func (m *MockScribeApp) StartCapture(url, name string, headless bool) (string, error) {
	m.recordCall("StartCapture", url, name, headless)
	return m.StartCaptureResult, m.StartCaptureError
}

func (m *MockScribeApp) StopCapture(status string) error {
	m.recordCall("StopCapture", status)
	return m.StopCaptureError
}

func (m *MockScribeApp) GetRecordingStatus() RecordingStatus {
	m.recordCall("GetRecordingStatus")
	return m.GetRecordingStatusResult
}

// === Sessions ===

func (m *MockScribeApp) ListSessions(status string, limit int) ([]CaptureSession, error) {
	m.recordCall("ListSessions", status, limit)
	return m.ListSessionsResult, m.ListSessionsError
}

func (m *MockScribeApp) GetSession(sessionID string) (*CaptureSession, error) {
	m.recordCall("GetSession", sessionID)
	return m.GetSessionResult, m.GetSessionError
}

func (m *MockScribeApp) DeleteSession(sessionID string) error {
	m.recordCall("DeleteSession", sessionID)
	return m.DeleteSessionError
}

func (m *MockScribeApp) RenameSession(sessionID, newName string) error {
	m.recordCall("RenameSession", sessionID, newName)
	return m.RenameSessionError
}

func (m *MockScribeApp) QueryActions(q ActionQuery) (*ActionQueryResult, error) {
	m.recordCall("QueryActions", q)
	return m.QueryActionsResult, m.QueryActionsError
}

func (m *MockScribeApp) GetRecentActions(sessionID string, count int) ([]json.RawMessage, error) {
	m.recordCall("GetRecentActions", sessionID, count)
	return m.GetRecentActionsResult, m.GetRecentActionsError
}

// === Export / Import ===

func (m *MockScribeApp) ExportSessionToPath(sessionID, outputPath string) (*ExportResult, error) {
	m.recordCall("ExportSessionToPath", sessionID, outputPath)
	return m.ExportSessionResult, m.ExportSessionError
}

func (m *MockScribeApp) ImportSessionFromPath(inputPath string) (string, error) {
	m.recordCall("ImportSessionFromPath", inputPath)
	return m.ImportSessionResult, m.ImportSessionError
}

// === Script generation ===

func (m *MockScribeApp) GenerateTestScript(sessionID string) (*TestScriptResult, error) {
	m.recordCall("GenerateTestScript", sessionID)
	return m.GenerateTestScriptResult, m.GenerateTestScriptError
}

// === Plugins ===

func (m *MockScribeApp) ListPlugins() []string {
	m.recordCall("ListPlugins")
	return m.ListPluginsResult
}

func (m *MockScribeApp) ReloadPlugins() error {
	m.recordCall("ReloadPlugins")
	return m.ReloadPluginsError
}

// === Utility ===

func (m *MockScribeApp) GetAppVersion() string {
	m.recordCall("GetAppVersion")
	return m.AppVersion
}
