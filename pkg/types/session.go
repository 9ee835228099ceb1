// Package types holds the data structures shared between the application
// core and the MCP server, so neither needs to import the other.
package types

import "encoding/json"

// CaptureSession is one recording of a user's interaction with a page.
type CaptureSession struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	StartTime   int64  `json:"startTime"` // absolute ms
	EndTime     int64  `json:"endTime,omitempty"`
	Status      string `json:"status"` // "recording", "completed", "aborted"
	ActionCount int64  `json:"actionCount"`
}

// RecordingStatus is the live state of the capture engine.
type RecordingStatus struct {
	Running       bool   `json:"running"`
	SessionID     string `json:"sessionId,omitempty"`
	URL           string `json:"url,omitempty"`
	ActionCount   int64  `json:"actionCount"`
	StartedAtMs   int64  `json:"startedAtMs,omitempty"`
	LastActionMs  int64  `json:"lastActionMs,omitempty"`
	PluginsLoaded int    `json:"pluginsLoaded"`
}

// ActionQuery filters a session's recorded actions.
type ActionQuery struct {
	SessionID string   `json:"sessionId"`
	Types     []string `json:"types,omitempty"` // action type filter
	FromMs    int64    `json:"fromMs,omitempty"`
	ToMs      int64    `json:"toMs,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Offset    int      `json:"offset,omitempty"`
}

// ActionQueryResult carries matched actions as raw JSON, exactly as they
// were persisted, plus paging metadata.
type ActionQueryResult struct {
	SessionID string            `json:"sessionId"`
	Total     int               `json:"total"`
	Actions   []json.RawMessage `json:"actions"`
}

// ExportResult describes a produced session archive.
type ExportResult struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"sizeBytes"`
}

// TestScriptResult is a generated replay script with its validation state.
type TestScriptResult struct {
	SessionID string `json:"sessionId"`
	Script    string `json:"script"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
}
