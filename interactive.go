package main

import (
	"strings"

	"golang.org/x/net/html"
)

// ========================================
// Interactive Ancestor Resolution
// ========================================

// maxAncestorDepth bounds the walk from a raw event target toward the
// element the user actually meant to interact with.
const maxAncestorDepth = 6

// interactiveRule is one (predicate, priority) entry in the resolution
// table. Rules are additive: a new heuristic is a new row, not a new
// branch. Higher priority wins when several ancestors match.
type interactiveRule struct {
	name     string
	priority int
	match    func(*html.Node) bool
}

var interactiveRules = []interactiveRule{
	{"button", 100, func(n *html.Node) bool {
		return tagName(n) == "button"
	}},
	{"link", 95, func(n *html.Node) bool {
		return tagName(n) == "a" && hasAttr(n, "href")
	}},
	{"form-control", 90, func(n *html.Node) bool {
		switch tagName(n) {
		case "input", "select", "textarea":
			return true
		}
		return false
	}},
	{"aria-role", 85, func(n *html.Node) bool {
		switch attr(n, "role") {
		case "button", "link", "menuitem", "tab", "option", "checkbox", "radio", "switch":
			return true
		}
		return false
	}},
	{"carousel-control", 80, func(n *html.Node) bool {
		classes := strings.ToLower(attr(n, "class"))
		if directionFromHints(classes) != DirectionNone {
			return true
		}
		for _, lib := range carouselLibraries {
			if matchesAnyClassSet(classes, lib.next) || matchesAnyClassSet(classes, lib.prev) {
				return true
			}
		}
		return false
	}},
	{"click-handler-attr", 75, func(n *html.Node) bool {
		return hasAttr(n, "onclick") || hasAttr(n, "ng-click") || hasAttr(n, "data-action")
	}},
	{"cursor-pointer", 70, func(n *html.Node) bool {
		return inlineStyle(n, "cursor") == "pointer"
	}},
	{"clickable-class", 65, func(n *html.Node) bool {
		for _, hint := range []string{"btn", "button", "clickable", "link"} {
			if classContains(n, hint) {
				return true
			}
		}
		return false
	}},
}

// ResolveInteractiveAncestor maps a raw click target to the interactive
// element the gesture was aimed at. SVG and decorative descendants are
// never themselves the answer; the walk is bounded so a click deep inside
// a widget cannot escape to some distant page-level wrapper. The target
// itself is returned when nothing better matches and it is not decorative.
func ResolveInteractiveAncestor(target *html.Node) *html.Node {
	if target == nil {
		return nil
	}

	var best *html.Node
	bestPriority := -1

	depth := 0
	for cur := target; cur != nil && depth <= maxAncestorDepth; cur = parentElement(cur) {
		if !isElement(cur) {
			depth++
			continue
		}
		if tagName(cur) == "body" || tagName(cur) == "html" {
			break
		}
		if !isDecorative(cur) {
			for _, rule := range interactiveRules {
				if rule.priority > bestPriority && rule.match(cur) {
					best = cur
					bestPriority = rule.priority
					break
				}
			}
		}
		depth++
	}

	if best != nil {
		return best
	}
	if isDecorative(target) {
		if p := parentElement(target); p != nil && !isDecorative(p) {
			return p
		}
	}
	return target
}

// isDecorative reports whether an element is presentation-only and should
// never be recorded as a click target: SVG internals, icons, images used
// as button art.
func isDecorative(n *html.Node) bool {
	switch tagName(n) {
	case "svg", "path", "use", "circle", "rect", "line", "polygon", "polyline", "g", "defs":
		return true
	case "i":
		return classContains(n, "icon") || classContains(n, "fa-") || attr(n, "aria-hidden") == "true"
	case "img":
		return attr(n, "alt") == "" && !hasAttr(n, "onclick")
	}
	if attr(n, "role") == "presentation" || attr(n, "role") == "none" {
		return true
	}
	// Descendants of an svg root are decorative regardless of tag.
	for cur := parentElement(n); cur != nil; cur = parentElement(cur) {
		if tagName(cur) == "svg" {
			return true
		}
	}
	return false
}

// IsHiddenFormProxy reports whether a click target is a visually hidden
// radio or checkbox driven by a styled label. Such targets are filtered;
// the change event on the control carries the real semantics.
func IsHiddenFormProxy(n *html.Node) bool {
	if tagName(n) != "input" {
		return false
	}
	typ := strings.ToLower(attr(n, "type"))
	if typ != "radio" && typ != "checkbox" {
		return false
	}
	if isHidden(n) {
		return true
	}
	// The common label-driven pattern hides the input off-screen rather
	// than with display:none so it stays focusable.
	if v := inlineStyle(n, "position"); v == "absolute" {
		if inlineStyle(n, "left") == "-9999px" || inlineStyle(n, "opacity") == "0" {
			return true
		}
	}
	return false
}
