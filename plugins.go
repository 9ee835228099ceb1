package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ========================================
// Action Plugins
// ========================================

// ActionPlugin is one loaded JS plugin. A plugin script defines a global
// `plugin` object with an onAction(action, context) function; it can
// return derived actions or emit them through the context. Each plugin
// runs in its own VM, serialized by its own mutex.
type ActionPlugin struct {
	Name     string
	Path     string
	LoadedAt int64

	// optional filters from the plugin object
	actionTypes map[string]bool
	urlPattern  string

	vm           *goja.Runtime
	onActionFunc goja.Callable
	state        map[string]interface{}
	mu           sync.Mutex
}

// PluginResult is what onAction may return.
type PluginResult struct {
	DerivedActions []Action `json:"derivedActions,omitempty"`
}

// ActionPluginManager loads plugin scripts from a directory and runs
// them against every recorded action.
type ActionPluginManager struct {
	plugins map[string]*ActionPlugin // name -> plugin
	mu      sync.RWMutex

	pluginDir string
	pipeline  *ActionPipeline
}

func NewActionPluginManager(pluginDir string, pipeline *ActionPipeline) *ActionPluginManager {
	return &ActionPluginManager{
		plugins:   make(map[string]*ActionPlugin),
		pluginDir: pluginDir,
		pipeline:  pipeline,
	}
}

// SetDir points the manager at a different plugin directory for
// subsequent loads.
func (pm *ActionPluginManager) SetDir(dir string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.pluginDir = dir
}

// LoadAll loads every .js file in the plugin directory. A broken plugin
// is skipped, not fatal.
func (pm *ActionPluginManager) LoadAll() error {
	if pm.pluginDir == "" {
		return nil
	}
	entries, err := os.ReadDir(pm.pluginDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read plugin directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".js") {
			continue
		}
		path := filepath.Join(pm.pluginDir, entry.Name())
		if err := pm.LoadFile(path); err != nil {
			PluginLog().Err(err).Str("path", path).Msg("Failed to load plugin, skipping")
			continue
		}
	}
	return nil
}

// LoadFile loads (or reloads) one plugin script.
func (pm *ActionPluginManager) LoadFile(path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read plugin: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), ".js")

	vm := goja.New()
	plugin := &ActionPlugin{
		Name:     name,
		Path:     path,
		LoadedAt: time.Now().UnixMilli(),
		state:    make(map[string]interface{}),
	}

	if err := pm.injectHelpers(vm); err != nil {
		return fmt.Errorf("failed to inject helpers: %w", err)
	}

	if _, err := vm.RunString(string(code)); err != nil {
		return fmt.Errorf("plugin script failed: %w", err)
	}

	pluginObj := vm.Get("plugin")
	if pluginObj == nil || goja.IsUndefined(pluginObj) {
		return fmt.Errorf("plugin object not defined")
	}
	obj := pluginObj.ToObject(vm)

	onActionVal := obj.Get("onAction")
	if onActionVal == nil || goja.IsUndefined(onActionVal) {
		return fmt.Errorf("onAction function not defined")
	}
	onActionFunc, ok := goja.AssertFunction(onActionVal)
	if !ok {
		return fmt.Errorf("onAction is not a function")
	}

	// optional filters
	if typesVal := obj.Get("actionTypes"); typesVal != nil && !goja.IsUndefined(typesVal) {
		var names []string
		if err := vm.ExportTo(typesVal, &names); err == nil && len(names) > 0 {
			plugin.actionTypes = make(map[string]bool, len(names))
			for _, n := range names {
				plugin.actionTypes[n] = true
			}
		}
	}
	if urlVal := obj.Get("urlMatch"); urlVal != nil && !goja.IsUndefined(urlVal) {
		plugin.urlPattern = urlVal.String()
	}

	plugin.vm = vm
	plugin.onActionFunc = onActionFunc

	pm.mu.Lock()
	pm.plugins[name] = plugin
	pm.mu.Unlock()

	PluginLog().Str("plugin", name).Str("path", path).Msg("Plugin loaded")
	return nil
}

// Unload removes a plugin and releases its VM.
func (pm *ActionPluginManager) Unload(name string) {
	pm.mu.Lock()
	plugin, exists := pm.plugins[name]
	if exists {
		delete(pm.plugins, name)
	}
	pm.mu.Unlock()

	if !exists {
		return
	}

	plugin.mu.Lock()
	plugin.vm = nil
	plugin.onActionFunc = nil
	plugin.state = nil
	plugin.mu.Unlock()

	PluginLog().Str("plugin", name).Msg("Plugin unloaded")
}

// Count returns how many plugins are loaded.
func (pm *ActionPluginManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.plugins)
}

// Names returns the loaded plugin names.
func (pm *ActionPluginManager) Names() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	names := make([]string, 0, len(pm.plugins))
	for name := range pm.plugins {
		names = append(names, name)
	}
	return names
}

// matches reports whether the plugin's filters accept the action.
func (p *ActionPlugin) matches(a Action) bool {
	if p.actionTypes != nil && !p.actionTypes[string(a.Type)] {
		return false
	}
	if p.urlPattern != "" && !matchURLPattern(p.urlPattern, a.URL) {
		return false
	}
	return true
}

// ProcessAction runs every matching plugin against the action and
// returns the derived checkpoint actions. Plugins never mutate the
// original action.
func (pm *ActionPluginManager) ProcessAction(a Action) []Action {
	pm.mu.RLock()
	var eligible []*ActionPlugin
	for _, plugin := range pm.plugins {
		if plugin.matches(a) {
			eligible = append(eligible, plugin)
		}
	}
	pm.mu.RUnlock()

	var derived []Action
	for _, plugin := range eligible {
		result, err := pm.executePlugin(plugin, a)
		if err != nil {
			PluginLog().Err(err).Str("plugin", plugin.Name).Str("action_id", a.ID).Msg("Plugin execution failed")
			continue
		}
		if result == nil {
			continue
		}
		for i := range result.DerivedActions {
			d := result.DerivedActions[i]
			// Derived actions are always checkpoints, freshly identified,
			// anchored to the action that produced them.
			d.ID = uuid.New().String()
			d.Type = ActionCheckpoint
			d.SessionID = a.SessionID
			if d.Timestamp == 0 {
				d.Timestamp = a.Timestamp
			}
			if d.CompletedAt < d.Timestamp {
				d.CompletedAt = d.Timestamp
			}
			derived = append(derived, d)
		}
	}
	return derived
}

// executePlugin runs onAction with a timeout. goja.Runtime is not
// thread safe, so the plugin's VM is accessed under its own lock.
func (pm *ActionPluginManager) executePlugin(plugin *ActionPlugin, a Action) (*PluginResult, error) {
	timeout := 5 * time.Second
	resultChan := make(chan *PluginResult, 1)
	errorChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errorChan <- fmt.Errorf("plugin VM panic: %v", r)
			}
		}()

		plugin.mu.Lock()
		defer plugin.mu.Unlock()

		if plugin.vm == nil || plugin.onActionFunc == nil {
			errorChan <- fmt.Errorf("plugin %s has been unloaded", plugin.Name)
			return
		}

		// A previous timeout may have left an interrupt pending.
		plugin.vm.ClearInterrupt()

		context, collector := pm.createActionContext(plugin, a)

		// Hand the action to JS as a plain map so fields are directly
		// addressable, matching its persisted JSON shape.
		var actionForPlugin map[string]interface{}
		actionBytes, _ := json.Marshal(a)
		json.Unmarshal(actionBytes, &actionForPlugin)
		actionObj := plugin.vm.ToValue(actionForPlugin)

		resultVal, err := plugin.onActionFunc(goja.Undefined(), actionObj, context)
		if err != nil {
			errorChan <- err
			return
		}

		result := &PluginResult{}
		if resultVal != nil && !goja.IsUndefined(resultVal) && !goja.IsNull(resultVal) {
			jsObj := resultVal.Export()
			jsonBytes, err := json.Marshal(jsObj)
			if err != nil {
				errorChan <- fmt.Errorf("failed to serialize plugin result: %w", err)
				return
			}
			if err := json.Unmarshal(jsonBytes, result); err != nil {
				errorChan <- fmt.Errorf("failed to parse plugin result: %w", err)
				return
			}
		}

		result.DerivedActions = append(result.DerivedActions, collector.actions...)
		resultChan <- result
	}()

	select {
	case result := <-resultChan:
		return result, nil
	case err := <-errorChan:
		return nil, err
	case <-time.After(timeout):
		// Interrupt is safe to call without holding the plugin lock.
		if plugin.vm != nil {
			plugin.vm.Interrupt("timeout")
		}
		return nil, fmt.Errorf("plugin execution timed out (>%v)", timeout)
	}
}

// derivedActionCollector gathers context.emit() output.
type derivedActionCollector struct {
	actions []Action
}

func (pm *ActionPluginManager) createActionContext(plugin *ActionPlugin, a Action) (goja.Value, *derivedActionCollector) {
	vm := plugin.vm
	collector := &derivedActionCollector{}

	context := vm.NewObject()
	context.Set("pluginName", plugin.Name)
	context.Set("sessionId", a.SessionID)
	context.Set("state", plugin.state)

	context.Set("log", func(message string) {
		PluginLog().Str("plugin", plugin.Name).Msg(message)
	})

	context.Set("setState", func(key string, value interface{}) {
		plugin.state[key] = value
	})
	context.Set("getState", func(key string) interface{} {
		return plugin.state[key]
	})

	// emit(label) or emit({label, selector})
	context.Set("emit", func(arg goja.Value) {
		var checkpoint Action
		if arg == nil || goja.IsUndefined(arg) {
			return
		}
		if str, ok := arg.Export().(string); ok {
			checkpoint.Label = str
		} else {
			jsonBytes, err := json.Marshal(arg.Export())
			if err != nil {
				return
			}
			if err := json.Unmarshal(jsonBytes, &checkpoint); err != nil {
				return
			}
		}
		collector.actions = append(collector.actions, checkpoint)
	})

	return context, collector
}

func (pm *ActionPluginManager) injectHelpers(vm *goja.Runtime) error {
	vm.Set("matchURL", func(pattern, target string) bool {
		return matchURLPattern(pattern, target)
	})

	vm.Set("matchRegex", func(regexStr, text string) interface{} {
		re, err := regexp.Compile(regexStr)
		if err != nil {
			return nil
		}
		matches := re.FindStringSubmatch(text)
		if matches == nil {
			return nil
		}
		return matches
	})

	// field(obj, "selector.css") via gjson path syntax
	vm.Set("field", func(obj interface{}, path string) interface{} {
		jsonBytes, err := json.Marshal(obj)
		if err != nil {
			return nil
		}
		result := gjson.GetBytes(jsonBytes, path)
		if !result.Exists() {
			return nil
		}
		return result.Value()
	})

	vm.Set("parseURL", func(urlStr string) interface{} {
		parsed, err := url.Parse(urlStr)
		if err != nil {
			return nil
		}
		return map[string]interface{}{
			"scheme":   parsed.Scheme,
			"host":     parsed.Host,
			"hostname": parsed.Hostname(),
			"path":     parsed.Path,
			"query":    parsed.RawQuery,
			"fragment": parsed.Fragment,
			"href":     parsed.String(),
		}
	})

	vm.Set("formatTime", func(timestamp int64, format string) string {
		if format == "" {
			format = "2006-01-02 15:04:05"
		}
		return time.UnixMilli(timestamp).Format(format)
	})

	return nil
}

// matchURLPattern matches URLs against simple * wildcard patterns.
func matchURLPattern(pattern, target string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == target
	}

	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(target[pos:], part)
		if idx < 0 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		pos += idx + len(part)
	}
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(target, last) {
		return false
	}
	return true
}
