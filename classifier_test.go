package main

import (
	"testing"
)

const classifierTestPage = `<!DOCTYPE html>
<html>
<body>
  <form id="checkout">
    <button type="submit" id="pay">Pay</button>
  </form>
  <nav class="pagination">
    <a class="page-link" href="?page=2">2</a>
  </nav>
  <div role="spinbutton">
    <button id="qty-up">+</button>
  </div>
  <label class="switch"><input id="dark-mode" type="checkbox" class="toggle"></label>
  <nav><a id="about" href="/about">About</a></nav>
  <a id="anchor" href="#top">Top</a>
  <div id="plain">Expand</div>
</body>
</html>`

func TestClassifyCascade(t *testing.T) {
	doc := mustParse(t, classifierTestPage)

	tests := []struct {
		name     string
		id       string
		flags    ClassifyFlags
		want     IntentType
		multiple bool
		delay    bool
	}{
		{"form submit", "pay", ClassifyFlags{}, IntentFormSubmit, false, true},
		{"explicit submit flag", "plain", ClassifyFlags{IsFormSubmit: true}, IntentFormSubmit, false, true},
		{"pagination link", "", ClassifyFlags{}, IntentPagination, true, true},
		{"stepper", "qty-up", ClassifyFlags{}, IntentStepper, true, false},
		{"toggle", "dark-mode", ClassifyFlags{}, IntentToggle, false, false},
		{"navigation", "about", ClassifyFlags{}, IntentNavigation, false, true},
		{"fragment anchor is generic", "anchor", ClassifyFlags{}, IntentGeneric, false, false},
		{"generic", "plain", ClassifyFlags{}, IntentGeneric, false, false},
	}

	for _, tt := range tests {
		var el = doc.FindByID(tt.id)
		if tt.id == "" {
			el = doc.QueryCSS(".page-link")[0]
		}
		if el == nil {
			t.Fatalf("%s: element not found", tt.name)
		}

		intent := ClassifyClick(el, tt.flags)
		if intent.Type != tt.want {
			t.Errorf("%s: intent = %s, want %s", tt.name, intent.Type, tt.want)
		}
		if intent.AllowMultiple != tt.multiple {
			t.Errorf("%s: allowMultiple = %v, want %v", tt.name, intent.AllowMultiple, tt.multiple)
		}
		if intent.RequiresDelay != tt.delay {
			t.Errorf("%s: requiresDelay = %v, want %v", tt.name, intent.RequiresDelay, tt.delay)
		}
	}
}

func TestCarouselOutranksSubmit(t *testing.T) {
	doc := mustParse(t, classifierTestPage)
	el := doc.FindByID("pay")

	intent := ClassifyClick(el, ClassifyFlags{IsCarousel: true})
	if intent.Type != IntentCarousel {
		t.Errorf("carousel flag must win the cascade, got %s", intent.Type)
	}
	if !intent.AllowMultiple || intent.RequiresDelay {
		t.Errorf("carousel policy wrong: %+v", intent)
	}
}

func TestConfidenceOrdering(t *testing.T) {
	doc := mustParse(t, classifierTestPage)

	submit := ClassifyClick(doc.FindByID("pay"), ClassifyFlags{})
	carousel := ClassifyClick(doc.FindByID("plain"), ClassifyFlags{IsCarousel: true})
	generic := ClassifyClick(doc.FindByID("plain"), ClassifyFlags{})

	if !(submit.Confidence > carousel.Confidence && carousel.Confidence > generic.Confidence) {
		t.Errorf("confidence ordering violated: submit=%d carousel=%d generic=%d",
			submit.Confidence, carousel.Confidence, generic.Confidence)
	}
}

func TestClassifyIsPure(t *testing.T) {
	doc := mustParse(t, classifierTestPage)
	el := doc.FindByID("about")

	first := ClassifyClick(el, ClassifyFlags{})
	for i := 0; i < 3; i++ {
		if got := ClassifyClick(el, ClassifyFlags{}); got != first {
			t.Fatalf("classification not stable: %+v vs %+v", got, first)
		}
	}
}
