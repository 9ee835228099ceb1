package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"Scribe/pkg/cache"
	"Scribe/pkg/types"
)

// App wires the capture engine together: the browser bridge feeds the
// recorder, the recorder emits actions into the pipeline, the pipeline
// persists them and fans them out to plugins.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	config  AppConfig
	version string
	dataDir string

	cache    *cache.Service
	store    *ActionStore
	pipeline *ActionPipeline
	recorder *Recorder
	bridge   *CaptureBridge
	plugins  *ActionPluginManager
	watcher  *PluginWatcher
	exporter *ExportManager
	testgen  *TestScriptGenerator

	mu sync.Mutex
}

// NewApp creates and wires a new App instance.
func NewApp(version, dataDir string) (*App, error) {
	config, err := LoadAppConfig(dataDir)
	if err != nil {
		LogWarn("app").Err(err).Msg("Config load failed, using defaults")
	}

	store, err := NewActionStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open action store: %w", err)
	}

	cacheService, err := cache.New(cache.Config{
		LogFunc: func(format string, args ...interface{}) {
			LogDebug("cache").Msgf(format, args...)
		},
	})
	if err != nil {
		LogWarn("app").Err(err).Msg("Cache service unavailable")
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		ctx:     ctx,
		cancel:  cancel,
		config:  config,
		version: version,
		dataDir: dataDir,
		cache:   cacheService,
		store:   store,
	}

	a.pipeline = NewActionPipeline(ctx, store)
	a.pipeline.Start()

	a.recorder = NewRecorder(config, NewRealClock(), a.pipeline.Ingest)
	a.bridge = NewCaptureBridge(a.recorder)

	a.plugins = NewActionPluginManager(config.PluginDir, a.pipeline)
	if err := a.plugins.LoadAll(); err != nil {
		LogWarn("app").Err(err).Msg("Plugin load failed")
	}
	a.pipeline.Subscribe(a.runPlugins)

	a.watcher = NewPluginWatcher(a.plugins)
	if err := a.watcher.Start(); err != nil {
		LogWarn("app").Err(err).Msg("Plugin watcher unavailable")
	}

	a.exporter = NewExportManager(store, version)
	a.testgen = NewTestScriptGenerator(store)

	LogInfo("app").Str("version", version).Str("dataDir", dataDir).Msg("App initialized")
	return a, nil
}

// runPlugins feeds a persisted action through the plugin chain and ingests
// any derived checkpoints. Checkpoint inputs are skipped so plugin output
// never feeds back into the chain.
func (a *App) runPlugins(action Action) {
	if action.Type == ActionCheckpoint {
		return
	}
	for _, derived := range a.plugins.ProcessAction(action) {
		a.pipeline.Ingest(derived)
	}
}

// Shutdown stops capture and releases all resources.
func (a *App) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bridge.IsRunning() {
		if sessionID := a.pipeline.ActiveSessionID(); sessionID != "" {
			a.pipeline.EndSession(sessionID, "aborted")
		}
		_ = a.bridge.Stop()
	}

	a.watcher.Stop()
	a.recorder.Destroy()
	a.pipeline.Stop()

	if err := a.store.Close(); err != nil {
		LogError("app").Err(err).Msg("Store close failed")
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			LogWarn("app").Err(err).Msg("Cache close failed")
		}
	}
	a.cancel()

	LogInfo("app").Msg("App shut down")
}

// GetAppVersion returns the application version
func (a *App) GetAppVersion() string {
	return a.version
}

// ========================================
// Capture control
// ========================================

// StartCapture opens a browser at the URL and begins recording a new
// session. Only one capture may run at a time.
func (a *App) StartCapture(url, name string, headless bool) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bridge.IsRunning() {
		return "", fmt.Errorf("a capture session is already running")
	}
	if url == "" {
		return "", fmt.Errorf("url is required")
	}

	sessionID := a.pipeline.StartSession(name, url)

	if err := a.bridge.Start(url, headless); err != nil {
		a.pipeline.EndSession(sessionID, "aborted")
		return "", fmt.Errorf("failed to start browser: %w", err)
	}

	if a.cache != nil {
		a.cache.RememberURL(url)
		a.cache.SetLastSessionID(sessionID)
		a.cache.SetHeadless(headless)
	}

	LogInfo("app").Str("sessionId", sessionID).Str("url", url).Bool("headless", headless).Msg("Capture started")
	return sessionID, nil
}

// StopCapture ends the active capture session with the given status.
func (a *App) StopCapture(status string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.bridge.IsRunning() {
		return fmt.Errorf("no capture session is running")
	}
	if status == "" {
		status = "completed"
	}

	sessionID := a.pipeline.ActiveSessionID()
	if err := a.bridge.Stop(); err != nil {
		LogWarn("app").Err(err).Msg("Browser teardown reported an error")
	}
	if sessionID != "" {
		a.pipeline.EndSession(sessionID, status)
		if a.cache != nil {
			a.cache.InvalidateScript(sessionID)
		}
	}

	LogInfo("app").Str("sessionId", sessionID).Str("status", status).Msg("Capture stopped")
	return nil
}

// GetRecordingStatus reports the live state of the capture engine.
func (a *App) GetRecordingStatus() types.RecordingStatus {
	status := types.RecordingStatus{
		Running:       a.bridge.IsRunning(),
		PluginsLoaded: a.plugins.Count(),
	}

	sessionID := a.pipeline.ActiveSessionID()
	if sessionID == "" {
		return status
	}
	status.SessionID = sessionID

	if session := a.pipeline.GetSession(sessionID); session != nil {
		status.URL = session.URL
		status.ActionCount = session.ActionCount
		status.StartedAtMs = session.StartTime
	}
	status.LastActionMs = a.pipeline.LastActionAt(sessionID)
	return status
}

// ========================================
// Session management
// ========================================

func (a *App) ListSessions(status string, limit int) ([]types.CaptureSession, error) {
	return a.store.ListSessions(status, limit)
}

func (a *App) GetSession(sessionID string) (*types.CaptureSession, error) {
	if session := a.pipeline.GetSession(sessionID); session != nil {
		return session, nil
	}
	return a.store.GetSession(sessionID)
}

// DeleteSession removes a session and all its actions. The active session
// cannot be deleted while recording.
func (a *App) DeleteSession(sessionID string) error {
	if a.bridge.IsRunning() && a.pipeline.ActiveSessionID() == sessionID {
		return fmt.Errorf("cannot delete the active capture session")
	}
	if err := a.store.DeleteSession(sessionID); err != nil {
		return err
	}
	if a.cache != nil {
		a.cache.InvalidateScript(sessionID)
	}
	return nil
}

func (a *App) RenameSession(sessionID, newName string) error {
	return a.store.RenameSession(sessionID, newName)
}

// QueryActions filters a session's persisted actions.
func (a *App) QueryActions(q types.ActionQuery) (*types.ActionQueryResult, error) {
	return a.store.QueryActions(q)
}

// GetRecentActions returns the newest actions of a session as raw JSON,
// served from memory for the live session.
func (a *App) GetRecentActions(sessionID string, count int) ([]json.RawMessage, error) {
	if count <= 0 {
		count = 20
	}
	actions := a.pipeline.GetRecentActions(sessionID, count)
	result := make([]json.RawMessage, 0, len(actions))
	for _, action := range actions {
		data, err := json.Marshal(action)
		if err != nil {
			return nil, fmt.Errorf("failed to encode action %s: %w", action.ID, err)
		}
		result = append(result, data)
	}
	return result, nil
}

// ========================================
// Export / import
// ========================================

func (a *App) ExportSessionToPath(sessionID, outputPath string) (*types.ExportResult, error) {
	return a.exporter.ExportSessionToPath(sessionID, outputPath)
}

func (a *App) ImportSessionFromPath(inputPath string) (string, error) {
	return a.exporter.ImportSessionFromPath(inputPath)
}

// ========================================
// Script generation
// ========================================

// GenerateTestScript builds a Playwright script for the session. Results
// are cached per session until its actions change.
func (a *App) GenerateTestScript(sessionID string) (*types.TestScriptResult, error) {
	if a.cache != nil {
		if script, ok := a.cache.GetCachedScript(sessionID); ok {
			return &types.TestScriptResult{
				SessionID: sessionID,
				Script:    script,
				Valid:     true,
			}, nil
		}
	}

	result, err := a.testgen.GenerateTestScript(sessionID)
	if err != nil {
		return nil, err
	}
	if a.cache != nil && result.Valid {
		a.cache.SetCachedScript(sessionID, result.Script)
	}
	return result, nil
}

// ========================================
// Plugins
// ========================================

func (a *App) ListPlugins() []string {
	return a.plugins.Names()
}

// ReloadPlugins re-reads every plugin file from the plugin directory.
func (a *App) ReloadPlugins() error {
	for _, name := range a.plugins.Names() {
		a.plugins.Unload(name)
	}
	return a.plugins.LoadAll()
}

// SetPluginDir points the plugin system at a different directory, restarts
// the file watcher and reloads.
func (a *App) SetPluginDir(dir string) error {
	a.config.PluginDir = dir
	a.plugins.SetDir(dir)

	a.watcher.Stop()
	a.watcher = NewPluginWatcher(a.plugins)
	if err := a.watcher.Start(); err != nil {
		LogWarn("app").Err(err).Msg("Plugin watcher unavailable")
	}
	return a.ReloadPlugins()
}
