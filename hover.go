package main

import (
	"golang.org/x/net/html"

	"github.com/google/uuid"
)

// ========================================
// Hover and Dropdown Sessions
// ========================================

// minHoverMs is the dwell below which a mouseover/mouseout pair is treated
// as transit, not intent.
const minHoverMs = 300

// maxHoverRecords bounds the retained history of completed hovers.
const maxHoverRecords = 10

// maxLinkables bounds the recent actions eligible for dropdown linkage.
const maxLinkables = 20

type hoverSession struct {
	el      *html.Node
	startAt int64 // absolute ms
}

// hoverRecord is a completed hover over a dropdown parent, held back until
// a click inside the hovered subtree proves it mattered.
type hoverRecord struct {
	el       *html.Node
	startAt  int64
	duration int64
}

// linkableAction is an emitted action still eligible to be linked to a
// dropdown that opens later.
type linkableAction struct {
	id string
	at int64 // absolute ms
}

// ========================================
// Mouse handlers
// ========================================

func (r *Recorder) handleMouseOver(ev RawEvent) {
	el := ev.Target
	if el == nil {
		return
	}
	if !isDropdownParent(el) {
		return
	}
	if _, ok := r.hoverSessions[el]; !ok {
		r.hoverSessions[el] = &hoverSession{el: el, startAt: ev.Timestamp}
	}
}

func (r *Recorder) handleMouseOut(ev RawEvent) {
	el := ev.Target
	if el == nil {
		return
	}
	s, ok := r.hoverSessions[el]
	if !ok {
		return
	}
	delete(r.hoverSessions, el)

	duration := ev.Timestamp - s.startAt
	if duration < minHoverMs {
		return
	}

	r.recentHovers = append(r.recentHovers, hoverRecord{el: el, startAt: s.startAt, duration: duration})
	if len(r.recentHovers) > maxHoverRecords {
		r.recentHovers = r.recentHovers[len(r.recentHovers)-maxHoverRecords:]
	}
}

// emitRetroactiveHover runs just after a click is emitted: when the click
// landed inside a previously-hovered dropdown parent, the hover that opened
// the menu is emitted so replay reproduces the open-then-click sequence.
// The hover's own timestamp predates the click; only completedAt ordering
// is enforced, which the monotonic clamp already handles.
func (r *Recorder) emitRetroactiveHover(clickTarget *html.Node, clickTs int64) {
	for i := len(r.recentHovers) - 1; i >= 0; i-- {
		rec := r.recentHovers[i]
		if rec.el == clickTarget || !containsNode(rec.el, clickTarget) {
			continue
		}
		if clickTs-rec.startAt > r.config.DropdownLinkageMs {
			continue
		}

		r.recentHovers = append(r.recentHovers[:i], r.recentHovers[i+1:]...)

		selector := r.engine.GenerateSelectors(r.doc, rec.el)
		hover := &Action{
			ID:            uuid.New().String(),
			Type:          ActionHover,
			Timestamp:     r.relative(rec.startAt),
			URL:           r.currentURL,
			Selector:      &selector,
			Duration:      rec.duration,
			OpensDropdown: true,
		}
		if panel := findDropdownPanel(rec.el); panel != nil {
			ps := r.engine.GenerateSelectors(r.doc, panel)
			if _, v := ps.Primary(); v != "" {
				hover.DropdownSelector = v
			}
		}
		r.emit(hover)
		return
	}
}

// ========================================
// Dropdown linkage
// ========================================

// rememberLinkable keeps an emitted action eligible for dropdown linkage
// for the linkage window, then expires it.
func (r *Recorder) rememberLinkable(actionID string, ts int64) {
	r.linkables = append(r.linkables, linkableAction{id: actionID, at: ts})
	if len(r.linkables) > maxLinkables {
		r.linkables = r.linkables[len(r.linkables)-maxLinkables:]
	}

	r.schedule(r.config.DropdownLinkageMs, func() {
		for i, l := range r.linkables {
			if l.id == actionID {
				r.linkables = append(r.linkables[:i], r.linkables[i+1:]...)
				break
			}
		}
	})
}

// handleVisibilityMutation links a newly visible dropdown panel to the most
// recent action that plausibly opened it.
func (r *Recorder) handleVisibilityMutation(ev RawEvent) {
	panel := ev.Target
	if panel == nil || !ev.Visible {
		return
	}
	if !looksLikeDropdownPanel(panel) {
		return
	}

	for i := len(r.linkables) - 1; i >= 0; i-- {
		l := r.linkables[i]
		if ev.Timestamp-l.at > r.config.DropdownLinkageMs {
			continue
		}
		r.linkables = append(r.linkables[:i], r.linkables[i+1:]...)

		ps := r.engine.GenerateSelectors(r.doc, panel)
		_, panelSel := ps.Primary()
		r.patch(l.id, func(a *Action) {
			a.OpensDropdown = true
			a.DropdownSelector = panelSel
		})
		return
	}
}

// ========================================
// Dropdown heuristics
// ========================================

// isDropdownParent reports whether hovering this element plausibly opens a
// transient panel.
func isDropdownParent(el *html.Node) bool {
	if el == nil {
		return false
	}
	if hasAttr(el, "aria-haspopup") && attr(el, "aria-haspopup") != "false" {
		return true
	}
	for _, hint := range []string{"dropdown", "has-children", "menu-item-has-children", "submenu-parent", "nav-item"} {
		if classContains(el, hint) {
			return true
		}
	}
	return findDropdownPanel(el) != nil
}

// findDropdownPanel returns a hidden descendant that looks like the panel
// this parent would reveal.
func findDropdownPanel(el *html.Node) *html.Node {
	var found *html.Node
	var walk func(*html.Node, int)
	walk = func(n *html.Node, depth int) {
		if found != nil || depth > 3 {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !isElement(c) {
				continue
			}
			if looksLikeDropdownPanel(c) {
				found = c
				return
			}
			walk(c, depth+1)
		}
	}
	walk(el, 0)
	return found
}

func looksLikeDropdownPanel(n *html.Node) bool {
	if !isElement(n) {
		return false
	}
	if role := attr(n, "role"); role == "menu" || role == "listbox" {
		return true
	}
	for _, hint := range []string{"dropdown-menu", "submenu", "sub-menu", "menu-panel", "popover", "flyout"} {
		if classContains(n, hint) {
			return true
		}
	}
	return false
}
