// Package cache persists small pieces of application state between
// runs: user settings and generated test scripts keyed by session.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const maxRecentURLs = 10

// Settings represents persistent application settings
type Settings struct {
	RecentURLs    []string `json:"recentUrls"`
	LastSessionID string   `json:"lastSessionId"`
	Headless      bool     `json:"headless"`
}

// Service manages settings and the generated-script cache
type Service struct {
	configDir    string
	settingsPath string
	scriptsPath  string

	// script cache: session ID -> generated script
	scripts   map[string]string
	scriptsMu sync.RWMutex

	recentURLs    []string
	lastSessionID string
	headless      bool
	settingsMu    sync.RWMutex

	logFunc func(format string, args ...interface{})
}

// Config for creating a new cache Service
type Config struct {
	ConfigDir string
	LogFunc   func(format string, args ...interface{})
}

// New creates a new cache Service instance
func New(cfg Config) (*Service, error) {
	configDir := cfg.ConfigDir
	if configDir == "" {
		var err error
		configDir, err = os.UserConfigDir()
		if err != nil {
			configDir = os.TempDir()
		}
		configDir = filepath.Join(configDir, "Scribe")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	s := &Service{
		configDir:    configDir,
		settingsPath: filepath.Join(configDir, "settings.json"),
		scriptsPath:  filepath.Join(configDir, "scripts_cache.json"),
		scripts:      make(map[string]string),
		logFunc:      cfg.LogFunc,
	}

	s.loadScripts()
	s.loadSettings()

	return s, nil
}

func (s *Service) log(format string, args ...interface{}) {
	if s.logFunc != nil {
		s.logFunc(format, args...)
	}
}

// ========================================
// Script Cache Methods
// ========================================

// GetCachedScript returns a cached generated script if it exists
func (s *Service) GetCachedScript(sessionID string) (string, bool) {
	s.scriptsMu.RLock()
	defer s.scriptsMu.RUnlock()
	script, exists := s.scripts[sessionID]
	return script, exists
}

// SetCachedScript caches a generated script for a session
func (s *Service) SetCachedScript(sessionID, script string) {
	s.scriptsMu.Lock()
	s.scripts[sessionID] = script
	s.scriptsMu.Unlock()
}

// InvalidateScript drops the cached script for a session
func (s *Service) InvalidateScript(sessionID string) {
	s.scriptsMu.Lock()
	delete(s.scripts, sessionID)
	s.scriptsMu.Unlock()
}

// ClearScriptCache clears the entire script cache
func (s *Service) ClearScriptCache() {
	s.scriptsMu.Lock()
	s.scripts = make(map[string]string)
	s.scriptsMu.Unlock()
}

// SaveScripts persists the script cache to disk
func (s *Service) SaveScripts() error {
	s.scriptsMu.RLock()
	data, err := json.Marshal(s.scripts)
	s.scriptsMu.RUnlock()

	if err != nil {
		s.log("Error marshaling script cache: %v", err)
		return err
	}

	if err := os.WriteFile(s.scriptsPath, data, 0644); err != nil {
		s.log("Error saving script cache to %s: %v", s.scriptsPath, err)
		return err
	}
	return nil
}

func (s *Service) loadScripts() {
	s.scriptsMu.Lock()
	defer s.scriptsMu.Unlock()

	data, err := os.ReadFile(s.scriptsPath)
	if err != nil {
		return
	}

	_ = json.Unmarshal(data, &s.scripts)
}

// ========================================
// Settings Methods
// ========================================

// RememberURL records a capture URL, most recent first.
func (s *Service) RememberURL(url string) {
	if url == "" {
		return
	}
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	urls := []string{url}
	for _, u := range s.recentURLs {
		if u != url {
			urls = append(urls, u)
		}
	}
	if len(urls) > maxRecentURLs {
		urls = urls[:maxRecentURLs]
	}
	s.recentURLs = urls
}

// RecentURLs returns a copy of the recent capture URLs
func (s *Service) RecentURLs() []string {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return append([]string(nil), s.recentURLs...)
}

// GetLastSessionID returns the most recent session id
func (s *Service) GetLastSessionID() string {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.lastSessionID
}

// SetLastSessionID records the most recent session id
func (s *Service) SetLastSessionID(id string) {
	s.settingsMu.Lock()
	s.lastSessionID = id
	s.settingsMu.Unlock()
}

// GetHeadless returns the preferred browser mode
func (s *Service) GetHeadless() bool {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.headless
}

// SetHeadless sets the preferred browser mode
func (s *Service) SetHeadless(headless bool) {
	s.settingsMu.Lock()
	s.headless = headless
	s.settingsMu.Unlock()
}

// SaveSettings persists settings to disk
func (s *Service) SaveSettings() error {
	s.settingsMu.RLock()
	settings := Settings{
		RecentURLs:    append([]string(nil), s.recentURLs...),
		LastSessionID: s.lastSessionID,
		Headless:      s.headless,
	}
	s.settingsMu.RUnlock()

	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(s.settingsPath, data, 0644)
}

func (s *Service) loadSettings() {
	data, err := os.ReadFile(s.settingsPath)
	if err != nil {
		return
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return
	}

	s.settingsMu.Lock()
	s.recentURLs = settings.RecentURLs
	s.lastSessionID = settings.LastSessionID
	s.headless = settings.Headless
	s.settingsMu.Unlock()
}

// ========================================
// Path Accessors
// ========================================

// ConfigDir returns the configuration directory path
func (s *Service) ConfigDir() string {
	return s.configDir
}

// SettingsPath returns the settings file path
func (s *Service) SettingsPath() string {
	return s.settingsPath
}

// ========================================
// Shutdown
// ========================================

// Close saves the script cache and settings before shutdown
func (s *Service) Close() error {
	if err := s.SaveScripts(); err != nil {
		s.log("Error saving script cache on close: %v", err)
	}
	if err := s.SaveSettings(); err != nil {
		s.log("Error saving settings on close: %v", err)
	}
	return nil
}
