package main

import (
	"strings"
	"testing"
)

const carouselTestPage = `<!DOCTYPE html>
<html>
<body>
  <div id="hero" class="swiper">
    <div class="swiper-button-next"></div>
    <div class="swiper-button-prev"></div>
  </div>
  <ul id="listings">
    <li><div class="card-carousel"><button class="carousel-next">›</button></div></li>
    <li><div class="card-carousel"><button class="carousel-next">›</button></div></li>
    <li><div class="card-carousel"><button class="carousel-next">›</button></div></li>
    <li><div class="card-carousel"><button class="carousel-next">›</button></div></li>
    <li><div class="card-carousel"><button class="carousel-next">›</button></div></li>
  </ul>
  <div class="slideshow">
    <button aria-label="Next slide">→</button>
  </div>
  <button class="checkout">Buy now</button>
</body>
</html>`

func TestDetectCarouselLibrary(t *testing.T) {
	doc := mustParse(t, carouselTestPage)

	next := doc.QueryCSS(".swiper-button-next")[0]
	prev := doc.QueryCSS(".swiper-button-prev")[0]

	ctxNext := DetectCarousel(doc, next)
	ctxPrev := DetectCarousel(doc, prev)

	if !ctxNext.IsCarouselControl || ctxNext.Library != "swiper" || ctxNext.Direction != DirectionNext {
		t.Errorf("next control: %+v", ctxNext)
	}
	if !ctxPrev.IsCarouselControl || ctxPrev.Direction != DirectionPrev {
		t.Errorf("prev control: %+v", ctxPrev)
	}
	if ctxNext.ContainerSelector != "#hero" {
		t.Errorf("container = %q, want #hero", ctxNext.ContainerSelector)
	}
}

func TestDetectCarouselHeuristicTier(t *testing.T) {
	doc := mustParse(t, carouselTestPage)

	arrow := doc.QueryCSS(".slideshow button")[0]
	ctx := DetectCarousel(doc, arrow)
	if !ctx.IsCarouselControl || ctx.Direction != DirectionNext {
		t.Fatalf("heuristic detection failed: %+v", ctx)
	}

	lib := DetectCarousel(doc, doc.QueryCSS(".swiper-button-next")[0])
	pattern := DetectCarousel(doc, doc.QueryCSS(".carousel-next")[0])
	if !(lib.Confidence > pattern.Confidence && pattern.Confidence > ctx.Confidence) {
		t.Errorf("confidence ordering violated: library=%d pattern=%d heuristic=%d",
			lib.Confidence, pattern.Confidence, ctx.Confidence)
	}
}

func TestNonCarouselNotDetected(t *testing.T) {
	doc := mustParse(t, carouselTestPage)
	btn := doc.QueryCSS("button.checkout")[0]
	if ctx := DetectCarousel(doc, btn); ctx.IsCarouselControl {
		t.Errorf("plain button misdetected: %+v", ctx)
	}
}

func TestDirectionVariantsDoNotCollide(t *testing.T) {
	doc := mustParse(t, carouselTestPage)

	next := doc.QueryCSS(".swiper-button-next")[0]
	prev := doc.QueryCSS(".swiper-button-prev")[0]

	cssN, xpN := BuildCarouselSelectors(doc, next, DetectCarousel(doc, next))
	cssP, xpP := BuildCarouselSelectors(doc, prev, DetectCarousel(doc, prev))

	if cssN == "" || cssP == "" {
		t.Fatalf("scoped selectors missing: next=%q prev=%q", cssN, cssP)
	}
	if cssN == cssP || xpN == xpP {
		t.Errorf("direction variants collide: %q vs %q", cssN, cssP)
	}
	if ok, _ := doc.MatchesUniquely(xpN, next); !ok {
		t.Errorf("next xpath %q not unique for its control", xpN)
	}
	if ok, _ := doc.MatchesUniquely(xpP, prev); !ok {
		t.Errorf("prev xpath %q not unique for its control", xpP)
	}
}

func TestSiblingCarouselsScopedByListIndex(t *testing.T) {
	doc := mustParse(t, carouselTestPage)
	se := newTestEngine()

	controls := doc.QueryCSS("#listings .carousel-next")
	if len(controls) != 5 {
		t.Fatalf("expected 5 controls, got %d", len(controls))
	}

	seen := map[string]bool{}
	for i, ctl := range controls {
		s := se.GenerateSelectors(doc, ctl)
		want := "nth-child"
		if !strings.Contains(s.CSS, want) {
			t.Errorf("control %d: css %q lacks %s scoping", i, s.CSS, want)
		}
		if !strings.Contains(s.CSS, "carousel-next") {
			t.Errorf("control %d: css %q lacks the direction class", i, s.CSS)
		}
		if seen[s.CSS] {
			t.Errorf("control %d: css %q collides with a sibling carousel", i, s.CSS)
		}
		seen[s.CSS] = true

		if ok, count := doc.CSSMatchesUniquely(s.CSS, ctl); !ok {
			t.Errorf("control %d: css %q matched %d nodes", i, s.CSS, count)
		}
	}
}
