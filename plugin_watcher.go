package main

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// PluginWatcher monitors the plugin directory and hot-reloads scripts
// edited while the app is running.
type PluginWatcher struct {
	manager *ActionPluginManager
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	mu      sync.Mutex
}

func NewPluginWatcher(manager *ActionPluginManager) *PluginWatcher {
	return &PluginWatcher{
		manager: manager,
		stopCh:  make(chan struct{}),
	}
}

// Start begins watching the plugin directory.
func (w *PluginWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.manager.pluginDir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	if err := watcher.Add(w.manager.pluginDir); err != nil {
		watcher.Close()
		return err
	}

	PluginLog().Str("path", w.manager.pluginDir).Msg("Started watching plugin directory")

	go w.watch()
	return nil
}

// Stop stops watching.
func (w *PluginWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		close(w.stopCh)
		w.watcher.Close()
		w.watcher = nil
		PluginLog().Msg("Stopped watching plugin directory")
	}
}

func (w *PluginWatcher) watch() {
	// Editors fire bursts of events per save; wait for them to settle.
	debounceDelay := 300 * time.Millisecond
	timers := make(map[string]*time.Timer)

	apply := func(op fsnotify.Op, path string) {
		name := strings.TrimSuffix(filepath.Base(path), ".js")
		switch {
		case op&(fsnotify.Create|fsnotify.Write) != 0:
			if err := w.manager.LoadFile(path); err != nil {
				PluginLog().Err(err).Str("path", path).Msg("Hot reload failed")
			} else {
				PluginLog().Str("plugin", name).Msg("Plugin hot reloaded")
			}
		case op&(fsnotify.Remove|fsnotify.Rename) != 0:
			w.manager.Unload(name)
		}
	}

	for {
		select {
		case <-w.stopCh:
			for _, t := range timers {
				t.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".js") {
				continue
			}

			if t, exists := timers[event.Name]; exists {
				t.Stop()
			}
			op := event.Op
			path := event.Name
			timers[path] = time.AfterFunc(debounceDelay, func() {
				apply(op, path)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			LogError("plugins").Err(err).Msg("Watcher error")
		}
	}
}
