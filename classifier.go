package main

import (
	"strings"

	"golang.org/x/net/html"
)

// ========================================
// Interaction Classifier
// ========================================

// ClassifyFlags are the context bits the capture state machine already
// knows when it asks for a classification.
type ClassifyFlags struct {
	IsCarousel   bool
	IsFormSubmit bool
	IsPagination bool
}

// Confidence per tier. Relative ordering matters to consumers, the exact
// numbers do not.
const (
	confFormSubmit = 100
	confCarousel   = 95
	confPagination = 90
	confToggle     = 90
	confStepper    = 85
	confNavigation = 80
	confGeneric    = 70
)

// ClassifyClick maps an element plus context flags to a click intent. Pure
// and stateless: a priority cascade where the first matching tier wins.
// Carousel outranks everything because repeated carousel clicks are the one
// case where duplicates are legitimate and delay is harmful.
func ClassifyClick(el *html.Node, flags ClassifyFlags) ClickIntent {
	switch {
	case flags.IsCarousel:
		return ClickIntent{Type: IntentCarousel, AllowMultiple: true, RequiresDelay: false, Confidence: confCarousel}
	case flags.IsFormSubmit || isFormSubmitControl(el):
		return ClickIntent{Type: IntentFormSubmit, AllowMultiple: false, RequiresDelay: true, Confidence: confFormSubmit}
	case flags.IsPagination || isPaginationControl(el):
		return ClickIntent{Type: IntentPagination, AllowMultiple: true, RequiresDelay: true, Confidence: confPagination}
	case isStepperControl(el):
		return ClickIntent{Type: IntentStepper, AllowMultiple: true, RequiresDelay: false, Confidence: confStepper}
	case isToggleControl(el):
		return ClickIntent{Type: IntentToggle, AllowMultiple: false, RequiresDelay: false, Confidence: confToggle}
	case isNavigationControl(el):
		return ClickIntent{Type: IntentNavigation, AllowMultiple: false, RequiresDelay: true, Confidence: confNavigation}
	default:
		return ClickIntent{Type: IntentGeneric, AllowMultiple: false, RequiresDelay: false, Confidence: confGeneric}
	}
}

// ========================================
// Tier detection heuristics
// ========================================

func isFormSubmitControl(el *html.Node) bool {
	if el == nil {
		return false
	}
	tag := tagName(el)
	typ := strings.ToLower(attr(el, "type"))

	if tag == "button" && (typ == "submit" || typ == "") {
		return insideForm(el)
	}
	if tag == "input" && (typ == "submit" || typ == "image") {
		return true
	}
	return false
}

func insideForm(el *html.Node) bool {
	for cur := parentElement(el); cur != nil; cur = parentElement(cur) {
		if tagName(cur) == "form" {
			return true
		}
	}
	return false
}

var paginationClassHints = []string{"pagination", "pager", "page-link", "page-item", "page-number"}

func isPaginationControl(el *html.Node) bool {
	if el == nil {
		return false
	}

	depth := 0
	for cur := el; cur != nil && depth < 4; cur = parentElement(cur) {
		for _, hint := range paginationClassHints {
			if classContains(cur, hint) {
				return true
			}
		}
		if attr(cur, "role") == "navigation" && strings.Contains(strings.ToLower(attr(cur, "aria-label")), "pag") {
			return true
		}
		depth++
	}

	rel := strings.ToLower(attr(el, "rel"))
	return rel == "next" || rel == "prev"
}

var stepperClassHints = []string{"stepper", "spinner", "increment", "decrement", "quantity-up", "quantity-down", "qty-btn"}

func isStepperControl(el *html.Node) bool {
	if el == nil {
		return false
	}
	if attr(el, "role") == "spinbutton" || attr(parentElement(el), "role") == "spinbutton" {
		return true
	}
	for _, hint := range stepperClassHints {
		if classContains(el, hint) {
			return true
		}
	}
	switch innerText(el) {
	case "+", "-", "−", "±":
		return true
	}
	return false
}

var toggleClassHints = []string{"toggle", "switch"}

func isToggleControl(el *html.Node) bool {
	if el == nil {
		return false
	}
	if attr(el, "role") == "switch" {
		return true
	}
	if tagName(el) == "input" && strings.ToLower(attr(el, "type")) == "checkbox" {
		for _, hint := range toggleClassHints {
			if classContains(el, hint) || classContains(parentElement(el), hint) {
				return true
			}
		}
		return false
	}
	for _, hint := range toggleClassHints {
		if classContains(el, hint) {
			return true
		}
	}
	return false
}

// isNavigationControl matches real links (non-fragment, non-javascript
// href) and clickables scoped under a nav landmark.
func isNavigationControl(el *html.Node) bool {
	if el == nil {
		return false
	}
	if tagName(el) == "a" {
		href := strings.TrimSpace(attr(el, "href"))
		if href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return true
		}
		return false
	}

	depth := 0
	for cur := parentElement(el); cur != nil && depth < 5; cur = parentElement(cur) {
		if tagName(cur) == "nav" || attr(cur, "role") == "navigation" {
			return true
		}
		depth++
	}
	return false
}
