package main

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ========================================
// Carousel Control Detection
// ========================================

// carouselLibraryPattern identifies a specific carousel library's control
// classes, which is the strongest detection signal available.
type carouselLibraryPattern struct {
	library string
	next    []string
	prev    []string
}

var carouselLibraries = []carouselLibraryPattern{
	{"swiper", []string{"swiper-button-next"}, []string{"swiper-button-prev"}},
	{"slick", []string{"slick-next"}, []string{"slick-prev"}},
	{"owl", []string{"owl-next"}, []string{"owl-prev"}},
	{"bootstrap", []string{"carousel-control-next"}, []string{"carousel-control-prev"}},
	{"splide", []string{"splide__arrow--next"}, []string{"splide__arrow--prev"}},
	{"glide", []string{"glide__arrow--right"}, []string{"glide__arrow--left"}},
	{"flickity", []string{"flickity-prev-next-button next"}, []string{"flickity-prev-next-button previous"}},
}

// Generic control class fragments, weaker than a library match.
var (
	carouselNextHints = []string{"carousel-next", "slider-next", "gallery-next", "next-arrow", "arrow-next", "btn-next"}
	carouselPrevHints = []string{"carousel-prev", "slider-prev", "gallery-prev", "prev-arrow", "arrow-prev", "btn-prev", "previous-arrow"}

	carouselContainerHints = []string{"carousel", "slider", "swiper", "slideshow", "gallery", "slides"}
)

// Confidence tiers. Only the relative ordering is load-bearing:
// library match > class pattern > contextual heuristic.
const (
	carouselConfLibrary   = 95
	carouselConfPattern   = 85
	carouselConfHeuristic = 70
)

const carouselScanDepth = 6

// DetectCarousel classifies an element as a carousel navigation control.
// Deterministic for an unmodified document.
func DetectCarousel(doc *Document, el *html.Node) CarouselContext {
	ctx := CarouselContext{}
	if !isElement(el) {
		return ctx
	}

	classes := strings.ToLower(attr(el, "class"))

	for _, lib := range carouselLibraries {
		if matchesAnyClassSet(classes, lib.next) {
			ctx = CarouselContext{IsCarouselControl: true, Direction: DirectionNext, Library: lib.library, Confidence: carouselConfLibrary}
		} else if matchesAnyClassSet(classes, lib.prev) {
			ctx = CarouselContext{IsCarouselControl: true, Direction: DirectionPrev, Library: lib.library, Confidence: carouselConfLibrary}
		}
		if ctx.IsCarouselControl {
			ctx.ContainerSelector = carouselContainerSelector(doc, el)
			return ctx
		}
	}

	if dir := directionFromHints(classes); dir != DirectionNone {
		ctx = CarouselContext{IsCarouselControl: true, Direction: dir, Confidence: carouselConfPattern}
		ctx.ContainerSelector = carouselContainerSelector(doc, el)
		return ctx
	}

	// Heuristic tier: a directional label or arrow glyph on an element that
	// lives inside something that looks like a rotating container.
	if dir := directionFromContent(el); dir != DirectionNone && hasCarouselAncestor(el) {
		ctx = CarouselContext{IsCarouselControl: true, Direction: dir, Confidence: carouselConfHeuristic}
		ctx.ContainerSelector = carouselContainerSelector(doc, el)
		return ctx
	}

	return ctx
}

func matchesAnyClassSet(classes string, want []string) bool {
	for _, w := range want {
		all := true
		for _, tok := range strings.Fields(w) {
			if !strings.Contains(classes, tok) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func directionFromHints(classes string) CarouselDirection {
	for _, h := range carouselNextHints {
		if strings.Contains(classes, h) {
			return DirectionNext
		}
	}
	for _, h := range carouselPrevHints {
		if strings.Contains(classes, h) {
			return DirectionPrev
		}
	}
	return DirectionNone
}

// directionFromContent inspects aria-label, data attributes, and visible
// text for a direction signal.
func directionFromContent(el *html.Node) CarouselDirection {
	if v := attr(el, "data-glide-dir"); v == ">" {
		return DirectionNext
	} else if v == "<" {
		return DirectionPrev
	}

	for _, s := range []string{strings.ToLower(attr(el, "aria-label")), strings.ToLower(innerText(el))} {
		if s == "" {
			continue
		}
		switch {
		case strings.Contains(s, "next") || strings.Contains(s, "forward"),
			strings.ContainsAny(s, "›»→"):
			return DirectionNext
		case strings.Contains(s, "prev") || strings.Contains(s, "back"),
			strings.ContainsAny(s, "‹«←"):
			return DirectionPrev
		}
	}
	return DirectionNone
}

func hasCarouselAncestor(el *html.Node) bool {
	depth := 0
	for cur := parentElement(el); cur != nil && depth < carouselScanDepth; cur = parentElement(cur) {
		for _, hint := range carouselContainerHints {
			if classContains(cur, hint) {
				return true
			}
		}
		depth++
	}
	return false
}

// ========================================
// Container-scoped selector synthesis
// ========================================

// carouselContainerSelector locates the nearest uniquely identifying
// ancestor of a carousel control and returns a CSS prefix scoped to it.
// Preference order: explicit static id, a data-id-like attribute, then the
// enclosing list item addressed by sibling index under an identified list.
// Controls repeated across sibling carousels stay distinguishable because
// each copy resolves a different list-item index.
func carouselContainerSelector(doc *Document, el *html.Node) string {
	var liChain []string // nth-child segments from the identified ancestor down

	depth := 0
	for cur := parentElement(el); cur != nil && depth < carouselScanDepth; cur = parentElement(cur) {
		if id := elementID(cur); id != "" && !isDynamicToken(id) && !strings.ContainsAny(id, "'\" >") {
			if ok, _ := doc.MatchesUniquely(fmt.Sprintf("//*[@id='%s']", id), cur); ok {
				return joinContainerPath("#"+id, liChain)
			}
		}

		for _, key := range []string{"data-id", "data-key", "data-carousel-id", "data-slide-id"} {
			v := attr(cur, key)
			if v == "" || strings.ContainsAny(v, "'\"") {
				continue
			}
			sel := fmt.Sprintf("%s[%s=\"%s\"]", tagName(cur), key, v)
			if ok, _ := doc.CSSMatchesUniquely(sel, cur); ok {
				return joinContainerPath(sel, liChain)
			}
		}

		// Remember the positional step so the eventual anchor can address
		// this exact branch.
		if idx := nthChildIndex(cur); idx > 0 {
			liChain = append([]string{fmt.Sprintf("%s:nth-child(%d)", tagName(cur), idx)}, liChain...)
		}
		depth++
	}
	return ""
}

func joinContainerPath(anchor string, chain []string) string {
	if len(chain) == 0 {
		return anchor
	}
	return anchor + " > " + strings.Join(chain, " > ")
}

// BuildCarouselSelectors produces the container-scoped, direction-aware
// CSS/XPath pair for a detected carousel control. Falls back to empty
// strings when no scoped form validates, in which case the generic families
// stand alone.
func BuildCarouselSelectors(doc *Document, el *html.Node, ctx CarouselContext) (css, xpath string) {
	if !ctx.IsCarouselControl {
		return "", ""
	}

	dirSel := directionSegment(el, ctx.Direction)
	if dirSel == "" {
		return "", ""
	}

	candidates := []string{}
	if ctx.ContainerSelector != "" {
		candidates = append(candidates, ctx.ContainerSelector+" "+dirSel)
	}
	candidates = append(candidates, dirSel)

	for _, sel := range candidates {
		if ok, _ := doc.CSSMatchesUniquely(sel, el); ok {
			return sel, cssToXPath(sel)
		}
	}
	return "", ""
}

// directionSegment picks the class token that encodes the control's
// direction, so "next" and "prev" controls in one container never collide.
func directionSegment(el *html.Node, dir CarouselDirection) string {
	var want, avoid string
	switch dir {
	case DirectionNext:
		want, avoid = "next", "prev"
	case DirectionPrev:
		want, avoid = "prev", "next"
	default:
		return ""
	}

	for _, c := range classList(el) {
		lc := strings.ToLower(c)
		if strings.Contains(lc, want) && !strings.Contains(lc, avoid) &&
			!strings.ContainsAny(c, "'\" >:[]") && !isDynamicToken(c) {
			return "." + c
		}
	}
	// No directional class; fall back to an attribute-qualified tag.
	if v := attr(el, "aria-label"); v != "" && !strings.ContainsAny(v, "'\"") {
		return fmt.Sprintf("%s[aria-label=\"%s\"]", tagName(el), v)
	}
	return ""
}
