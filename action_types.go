package main

import (
	"golang.org/x/net/html"
)

// ========================================
// Action Type - semantic action kinds
// ========================================

type ActionType string

const (
	ActionClick       ActionType = "click"
	ActionInput       ActionType = "input"
	ActionSelect      ActionType = "select"
	ActionMultiSelect ActionType = "multi_select"
	ActionNavigation  ActionType = "navigation"
	ActionScroll      ActionType = "scroll"
	ActionHover       ActionType = "hover"
	ActionSubmit      ActionType = "submit"
	ActionKeypress    ActionType = "keypress"
	ActionCheckpoint  ActionType = "checkpoint"
)

// AllActionTypes enumerates every action kind. The timing model and the
// dedup gate switch over this set; keep it in sync with the constants above.
var AllActionTypes = []ActionType{
	ActionClick, ActionInput, ActionSelect, ActionMultiSelect,
	ActionNavigation, ActionScroll, ActionHover, ActionSubmit,
	ActionKeypress, ActionCheckpoint,
}

// ========================================
// Action Category - coarse grouping
// ========================================

type ActionCategory string

const (
	CategoryPointer    ActionCategory = "pointer"
	CategoryKeyboard   ActionCategory = "keyboard"
	CategoryForm       ActionCategory = "form"
	CategoryNavigation ActionCategory = "navigation"
	CategoryDerived    ActionCategory = "derived"
)

// ========================================
// Selector types
// ========================================

type SelectorType string

const (
	SelID            SelectorType = "id"
	SelDataTestID    SelectorType = "dataTestId"
	SelAriaLabel     SelectorType = "ariaLabel"
	SelName          SelectorType = "name"
	SelCSS           SelectorType = "css"
	SelXPath         SelectorType = "xpath"
	SelXPathAbsolute SelectorType = "xpathAbsolute"
	SelText          SelectorType = "text"
	SelTextContains  SelectorType = "textContains"
	SelPosition      SelectorType = "position"
)

// SelectorValidation carries the result of validating the primary candidate
// against the live document, plus fallback metadata a replay engine can use
// when every named candidate fails.
type SelectorValidation struct {
	MatchCount   int  `json:"matchCount"`
	Unique       bool `json:"unique"`
	SiblingIndex int  `json:"siblingIndex"`          // index among same-tag siblings
	DocumentNth  int  `json:"documentNth,omitempty"` // document-order index among same-tag elements
}

// SelectorStrategy is a ranked bundle of alternative identifiers for one
// element. Priority only ever references candidate fields that are populated;
// a replay engine attempts candidates in priority order until exactly one
// live element resolves.
type SelectorStrategy struct {
	ID            string `json:"id,omitempty"`
	DataTestID    string `json:"dataTestId,omitempty"`
	AriaLabel     string `json:"ariaLabel,omitempty"`
	Name          string `json:"name,omitempty"`
	CSS           string `json:"css,omitempty"`
	XPath         string `json:"xpath,omitempty"`
	XPathAbsolute string `json:"xpathAbsolute,omitempty"`
	Text          string `json:"text,omitempty"`
	TextContains  string `json:"textContains,omitempty"`
	Position      string `json:"position,omitempty"`

	Priority   []SelectorType     `json:"priority"`
	Validation SelectorValidation `json:"validation"`
}

// Candidate returns the candidate string for the given selector type,
// or "" when that family was not generated.
func (s *SelectorStrategy) Candidate(t SelectorType) string {
	switch t {
	case SelID:
		return s.ID
	case SelDataTestID:
		return s.DataTestID
	case SelAriaLabel:
		return s.AriaLabel
	case SelName:
		return s.Name
	case SelCSS:
		return s.CSS
	case SelXPath:
		return s.XPath
	case SelXPathAbsolute:
		return s.XPathAbsolute
	case SelText:
		return s.Text
	case SelTextContains:
		return s.TextContains
	case SelPosition:
		return s.Position
	}
	return ""
}

// Primary returns the highest-priority populated candidate.
func (s *SelectorStrategy) Primary() (SelectorType, string) {
	for _, t := range s.Priority {
		if v := s.Candidate(t); v != "" {
			return t, v
		}
	}
	return "", ""
}

// Key returns a stable identity string used by the dedup gate.
func (s *SelectorStrategy) Key() string {
	if s == nil {
		return ""
	}
	t, v := s.Primary()
	return string(t) + "=" + v
}

// ========================================
// ClickIntent - classifier output
// ========================================

type IntentType string

const (
	IntentCarousel   IntentType = "carousel-navigation"
	IntentFormSubmit IntentType = "form-submit"
	IntentPagination IntentType = "pagination"
	IntentStepper    IntentType = "increment"
	IntentToggle     IntentType = "toggle"
	IntentNavigation IntentType = "navigation"
	IntentGeneric    IntentType = "generic"
)

// ClickIntent describes what a click most plausibly means. Produced once per
// click and never mutated afterwards.
type ClickIntent struct {
	Type          IntentType `json:"type"`
	AllowMultiple bool       `json:"allowMultiple"`
	RequiresDelay bool       `json:"requiresDelay"`
	Confidence    int        `json:"confidence"`
}

// ========================================
// CarouselContext - carousel control detection
// ========================================

type CarouselDirection string

const (
	DirectionNext CarouselDirection = "next"
	DirectionPrev CarouselDirection = "prev"
	DirectionNone CarouselDirection = ""
)

type CarouselContext struct {
	IsCarouselControl bool              `json:"isCarouselControl"`
	Direction         CarouselDirection `json:"direction,omitempty"`
	Library           string            `json:"library,omitempty"`
	Confidence        int               `json:"confidence"`
	ContainerSelector string            `json:"containerSelector,omitempty"`
}

// ========================================
// Action - one recorded user gesture
// ========================================

// Action is the unit the recorder emits. A single struct tagged by Type
// carries every variant's fields (omitempty), mirroring how the wire format
// flattens the union. Built synchronously inside the handler that detected
// the gesture, emitted immediately, and patched at most once afterwards by
// stable ID (AJAX-navigation result, OS double-click count, dropdown link).
type Action struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"sessionId,omitempty"`
	Type        ActionType `json:"type"`
	Timestamp   int64      `json:"timestamp"`   // ms relative to recording start
	CompletedAt int64      `json:"completedAt"` // derived, monotone non-decreasing
	URL         string     `json:"url,omitempty"`

	Selector *SelectorStrategy `json:"selector,omitempty"`

	// click
	Button            string           `json:"button,omitempty"`
	ClickCount        int              `json:"clickCount,omitempty"`
	ClickType         string           `json:"clickType,omitempty"` // "submit" for form-submitting clicks
	Intent            *ClickIntent     `json:"intent,omitempty"`
	Carousel          *CarouselContext `json:"carousel,omitempty"`
	ExpectsNavigation *bool            `json:"expectsNavigation,omitempty"` // unset until AJAX observation resolves
	IsAjaxForm        bool             `json:"isAjaxForm,omitempty"`

	// input
	Value        string `json:"value,omitempty"`
	IsSensitive  bool   `json:"isSensitive,omitempty"`
	VariableName string `json:"variableName,omitempty"`
	KeyCount     int    `json:"keyCount,omitempty"`
	AvgKeyDelay  int64  `json:"avgKeyDelay,omitempty"` // mean inter-keystroke delay, ms

	// select / multi_select
	Values []string `json:"values,omitempty"`

	// navigation
	FromURL string `json:"fromUrl,omitempty"`
	ToURL   string `json:"toUrl,omitempty"`

	// scroll
	ScrollX      int    `json:"scrollX,omitempty"`
	ScrollY      int    `json:"scrollY,omitempty"`
	ScrollTarget string `json:"scrollTarget,omitempty"` // "window" or "element"

	// hover
	Duration         int64  `json:"duration,omitempty"` // measured hover duration, ms
	OpensDropdown    bool   `json:"opensDropdown,omitempty"`
	DropdownSelector string `json:"dropdownSelector,omitempty"`

	// keypress
	Key string `json:"key,omitempty"`

	// checkpoint (plugin-derived)
	Label string `json:"label,omitempty"`
}

// ========================================
// RawEvent - the native DOM event feed
// ========================================

// RawEvent is one native DOM event as delivered by a capture front end
// (the CDP bridge, or tests driving the recorder directly). Target points
// into the recorder's current Document.
type RawEvent struct {
	Type      string     // "click", "input", "keydown", "change", "scroll", "submit", "mouseover", "mouseout", "focus", "blur", "navigation", "visibility"
	Target    *html.Node // nil for window-level events
	Timestamp int64      // absolute ms

	Detail  int    // native click count (event.detail)
	Button  string // "left", "middle", "right"
	Key     string
	Value   string
	URL     string
	ScrollX int
	ScrollY int
	Visible bool // for "visibility" mutation events
}

// ========================================
// Action Type Registry
// ========================================

type ActionTypeInfo struct {
	Type        ActionType
	Category    ActionCategory
	Description string
}

var ActionRegistry = map[ActionType]ActionTypeInfo{
	ActionClick: {
		Type: ActionClick, Category: CategoryPointer,
		Description: "Pointer click on an interactive element",
	},
	ActionInput: {
		Type: ActionInput, Category: CategoryKeyboard,
		Description: "Completed typing session in a text field",
	},
	ActionSelect: {
		Type: ActionSelect, Category: CategoryForm,
		Description: "Single-select option change",
	},
	ActionMultiSelect: {
		Type: ActionMultiSelect, Category: CategoryForm,
		Description: "Multi-select option change",
	},
	ActionNavigation: {
		Type: ActionNavigation, Category: CategoryNavigation,
		Description: "Document URL change",
	},
	ActionScroll: {
		Type: ActionScroll, Category: CategoryPointer,
		Description: "Window or element scroll",
	},
	ActionHover: {
		Type: ActionHover, Category: CategoryPointer,
		Description: "Sustained hover, usually over a dropdown trigger",
	},
	ActionSubmit: {
		Type: ActionSubmit, Category: CategoryForm,
		Description: "Form submission",
	},
	ActionKeypress: {
		Type: ActionKeypress, Category: CategoryKeyboard,
		Description: "Standalone control key press",
	},
	ActionCheckpoint: {
		Type: ActionCheckpoint, Category: CategoryDerived,
		Description: "Plugin-derived checkpoint marker",
	},
}

// GetCategoryForAction returns the coarse category for an action type.
func GetCategoryForAction(t ActionType) ActionCategory {
	if info, ok := ActionRegistry[t]; ok {
		return info.Category
	}
	return CategoryDerived
}
