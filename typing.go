package main

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/google/uuid"
)

// ========================================
// Typing Sessions
// ========================================

// typingSession tracks one focused field from first keystroke to flush.
// Keystroke timestamps feed the inter-key delay average the timing model
// uses to estimate replay duration.
type typingSession struct {
	field    *html.Node
	firstAt  int64 // absolute ms of the first keystroke
	lastAt   int64
	keyCount int
	value    string
	cancel   CancelFunc
}

func (r *Recorder) handleInput(ev RawEvent) {
	field := ev.Target
	if field == nil {
		return
	}

	s, ok := r.typingSessions[field]
	if !ok {
		s = &typingSession{field: field, firstAt: ev.Timestamp}
		r.typingSessions[field] = s
	}
	s.lastAt = ev.Timestamp
	s.keyCount++
	s.value = ev.Value

	// Each keystroke restarts the debounce window.
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = r.schedule(r.debounceFor(field), func() {
		r.flushField(field)
	})
}

// debounceFor adapts the flush window to the field: sensitive fields flush
// fastest, format-constrained fields quickly, free text slowest.
func (r *Recorder) debounceFor(field *html.Node) int64 {
	if isSensitiveField(field) {
		return r.config.DebounceSensitiveMs
	}
	switch strings.ToLower(attr(field, "type")) {
	case "email", "tel", "number", "url", "date", "time":
		return r.config.DebounceConstrainedMs
	}
	return r.config.DebounceDefaultMs
}

// flushField finalizes one typing session into an input action. An empty
// value is skipped with a diagnostic, never an error.
func (r *Recorder) flushField(field *html.Node) {
	s, ok := r.typingSessions[field]
	if !ok {
		return
	}
	delete(r.typingSessions, field)
	if s.cancel != nil {
		s.cancel()
	}

	if s.value == "" {
		RecorderLog().Msg("Empty input value at flush, skipping")
		return
	}

	selector := r.engine.GenerateSelectors(r.doc, field)
	sensitive := isSensitiveField(field)

	var avgDelay int64
	if s.keyCount > 1 {
		avgDelay = (s.lastAt - s.firstAt) / int64(s.keyCount-1)
	}

	action := &Action{
		ID:          uuid.New().String(),
		Type:        ActionInput,
		Timestamp:   r.relative(s.firstAt),
		URL:         r.currentURL,
		Selector:    &selector,
		Value:       s.value,
		IsSensitive: sensitive,
		KeyCount:    s.keyCount,
		AvgKeyDelay: avgDelay,
	}
	if sensitive {
		action.VariableName = deriveVariableName(field)
	}
	r.emit(action)
}

// forceFlushTyping flushes every live session immediately, bypassing
// debounce. Called before any event that could navigate away or change
// focus, so no typed value is ever lost to a subsequent action.
func (r *Recorder) forceFlushTyping(reason string) {
	if len(r.typingSessions) == 0 {
		return
	}
	RecorderLog().Str("reason", reason).Int("sessions", len(r.typingSessions)).Msg("Forcing typing flush")
	for field := range r.typingSessions {
		r.flushField(field)
	}
}

// ========================================
// Focus tracking
// ========================================

func (r *Recorder) handleFocus(ev RawEvent) {
	if ev.Target == nil {
		return
	}
	// Moving focus to a different field flushes the previous one.
	if r.focusedField != nil && r.focusedField != ev.Target {
		if _, ok := r.typingSessions[r.focusedField]; ok {
			r.flushField(r.focusedField)
		}
	}
	r.focusedField = ev.Target
}

func (r *Recorder) handleBlur(ev RawEvent) {
	if ev.Target == nil {
		return
	}
	if _, ok := r.typingSessions[ev.Target]; ok {
		r.flushField(ev.Target)
	}
	if r.focusedField == ev.Target {
		r.focusedField = nil
	}
}

// ========================================
// Keypress
// ========================================

// handleKeydown records standalone control keys. Printable keys reach the
// recorder through input events instead.
func (r *Recorder) handleKeydown(ev RawEvent) {
	switch ev.Key {
	case "Enter", "Escape", "Tab":
	default:
		return
	}

	// Enter inside a live typing session flushes it first so the typed
	// value precedes whatever the key triggers.
	if ev.Target != nil {
		if _, ok := r.typingSessions[ev.Target]; ok {
			r.flushField(ev.Target)
		}
	}

	action := &Action{
		ID:        uuid.New().String(),
		Type:      ActionKeypress,
		Timestamp: r.relative(ev.Timestamp),
		URL:       r.currentURL,
		Key:       ev.Key,
	}
	if ev.Target != nil {
		selector := r.engine.GenerateSelectors(r.doc, ev.Target)
		action.Selector = &selector
	}
	r.emit(action)
}

// ========================================
// Select / change
// ========================================

// handleChange emits select and multi-select actions. The edge-case gate
// runs in a fixed order before anything is emitted: disabled control, zero
// options, no selection, disabled selected option, hidden control.
func (r *Recorder) handleChange(ev RawEvent) {
	el := ev.Target
	if el == nil {
		return
	}
	if tagName(el) != "select" {
		// change on text-like inputs is covered by the typing session; a
		// checkbox or radio change follows its click.
		return
	}

	if isDisabled(el) {
		RecorderLog().Msg("Change on disabled select ignored")
		return
	}

	options := findOptions(el)
	if len(options) == 0 {
		RecorderLog().Msg("Change on select with no options ignored")
		return
	}

	var selected []*html.Node
	for _, opt := range options {
		if hasAttr(opt, "selected") {
			selected = append(selected, opt)
		}
	}
	if len(selected) == 0 && ev.Value != "" {
		for _, opt := range options {
			if optionValue(opt) == ev.Value {
				selected = append(selected, opt)
				break
			}
		}
	}
	if len(selected) == 0 {
		RecorderLog().Msg("Change with no selection ignored")
		return
	}
	for _, opt := range selected {
		if isDisabled(opt) {
			RecorderLog().Msg("Change selecting a disabled option ignored")
			return
		}
	}
	if isHidden(el) {
		RecorderLog().Msg("Change on hidden select ignored")
		return
	}

	selector := r.engine.GenerateSelectors(r.doc, el)
	action := &Action{
		ID:        uuid.New().String(),
		Timestamp: r.relative(ev.Timestamp),
		URL:       r.currentURL,
		Selector:  &selector,
	}

	if hasAttr(el, "multiple") {
		action.Type = ActionMultiSelect
		for _, opt := range selected {
			action.Values = append(action.Values, optionValue(opt))
		}
	} else {
		action.Type = ActionSelect
		action.Value = optionValue(selected[0])
	}
	r.emit(action)
}

func findOptions(el *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c) {
				if tagName(c) == "option" {
					out = append(out, c)
				} else {
					walk(c)
				}
			}
		}
	}
	walk(el)
	return out
}

func optionValue(opt *html.Node) string {
	if v := attr(opt, "value"); v != "" {
		return v
	}
	return innerText(opt)
}

// ========================================
// Sensitive field detection
// ========================================

var sensitiveNamePattern = regexp.MustCompile(`(?i)(pass|pwd|secret|token|cvv|cvc|ssn|pin|card.?number)`)

func isSensitiveField(field *html.Node) bool {
	if field == nil {
		return false
	}
	if strings.ToLower(attr(field, "type")) == "password" {
		return true
	}
	for _, v := range []string{attr(field, "name"), elementID(field), attr(field, "autocomplete")} {
		if v != "" && sensitiveNamePattern.MatchString(v) {
			return true
		}
	}
	return false
}

var variableSanitizer = regexp.MustCompile(`[^A-Za-z0-9]+`)

// deriveVariableName turns a sensitive field's identifier into an
// environment-style placeholder, so exports never embed the raw value.
// input#password becomes "PASSWORD".
func deriveVariableName(field *html.Node) string {
	for _, v := range []string{elementID(field), attr(field, "name"), attr(field, "aria-label"), attr(field, "placeholder")} {
		if v == "" {
			continue
		}
		name := strings.Trim(variableSanitizer.ReplaceAllString(v, "_"), "_")
		if name != "" {
			return strings.ToUpper(name)
		}
	}
	if strings.ToLower(attr(field, "type")) == "password" {
		return "PASSWORD"
	}
	return "SENSITIVE_VALUE"
}
