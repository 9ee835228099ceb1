package main

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

const selectorTestPage = `<!DOCTYPE html>
<html>
<body>
  <nav>
    <a id="home-link" href="/">Home</a>
    <a id="ember123" href="/about">About</a>
  </nav>
  <main>
    <div class="row">
      <div class="cell">one</div>
      <div class="cell">two</div>
      <div class="cell">three</div>
    </div>
    <button data-testid="checkout">Checkout</button>
    <input type="email" name="email" class="css-1x2y3z4 field">
    <div class="dropdown-menu">
      <a href="/settings">Account settings</a>
      <a href="/billing">Billing</a>
    </div>
    <span aria-label="Close dialog" class="x"></span>
  </main>
</body>
</html>`

func newTestEngine() *SelectorEngine {
	return NewSelectorEngine(DefaultSelectorConfig())
}

func TestStaticIDWinsPriority(t *testing.T) {
	doc := mustParse(t, selectorTestPage)
	se := newTestEngine()

	el := doc.FindByID("home-link")
	s := se.GenerateSelectors(doc, el)

	if s.ID != "home-link" {
		t.Errorf("ID = %q, want %q", s.ID, "home-link")
	}
	if len(s.Priority) == 0 || s.Priority[0] != SelID {
		t.Errorf("priority[0] = %v, want id", s.Priority)
	}
	if !s.Validation.Unique || s.Validation.MatchCount != 1 {
		t.Errorf("validation = %+v, want unique single match", s.Validation)
	}
}

func TestDynamicIDExcluded(t *testing.T) {
	doc := mustParse(t, selectorTestPage)
	se := newTestEngine()

	el := doc.FindByID("ember123")
	s := se.GenerateSelectors(doc, el)

	if s.ID != "" {
		t.Errorf("framework-generated id should be excluded, got %q", s.ID)
	}
	for _, p := range s.Priority {
		if p == SelID {
			t.Error("priority must not reference the excluded id family")
		}
	}
	// The bundle is never empty; another family covers the element.
	if len(s.Priority) == 0 {
		t.Fatal("bundle must not be empty")
	}
}

func TestDynamicTokenHeuristics(t *testing.T) {
	tests := []struct {
		token   string
		dynamic bool
	}{
		{"ember123", true},
		{"react-select-2-input", true},
		{"ng-pristine", true},
		{"css-1x2y3z4", true},
		{"sc-bdVaJa", true},
		{"item-20240115", true},
		{"x9f3k2b8q1", true},
		{"submit-button", false},
		{"nav", false},
		{"carousel-next", false},
		{"", true},
	}
	for _, tt := range tests {
		if got := isDynamicToken(tt.token); got != tt.dynamic {
			t.Errorf("isDynamicToken(%q) = %v, want %v", tt.token, got, tt.dynamic)
		}
	}
}

func TestSiblingNthChildDisambiguation(t *testing.T) {
	doc := mustParse(t, selectorTestPage)
	se := newTestEngine()

	cells := doc.QueryCSS(".cell")
	if len(cells) != 3 {
		t.Fatalf("expected 3 cells, got %d", len(cells))
	}

	seen := map[string]bool{}
	for i, cell := range cells {
		s := se.GenerateSelectors(doc, cell)
		if s.CSS == "" {
			t.Fatalf("cell %d: css candidate missing", i)
		}
		if seen[s.CSS] {
			t.Errorf("cell %d: css %q collides with a sibling", i, s.CSS)
		}
		seen[s.CSS] = true

		ok, count := doc.CSSMatchesUniquely(s.CSS, cell)
		if !ok {
			t.Errorf("cell %d: css %q matched %d nodes, want its own single match", i, s.CSS, count)
		}
	}
}

func TestDataTestIDCandidate(t *testing.T) {
	doc := mustParse(t, selectorTestPage)
	se := newTestEngine()

	btns := doc.QueryCSS("button")
	if len(btns) != 1 {
		t.Fatalf("expected 1 button, got %d", len(btns))
	}
	s := se.GenerateSelectors(doc, btns[0])
	if s.DataTestID != `[data-testid="checkout"]` {
		t.Errorf("DataTestID = %q", s.DataTestID)
	}
	if s.Priority[0] != SelDataTestID {
		t.Errorf("priority[0] = %v, want dataTestId", s.Priority[0])
	}
}

func TestNameCandidateSkipsDynamicClasses(t *testing.T) {
	doc := mustParse(t, selectorTestPage)
	se := newTestEngine()

	inputs := doc.QueryCSS("input")
	if len(inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(inputs))
	}
	s := se.GenerateSelectors(doc, inputs[0])
	if s.Name != "email" {
		t.Errorf("Name = %q, want %q", s.Name, "email")
	}
	// The hashed CSS-in-JS class must not leak into the structural path.
	if strings.Contains(s.CSS, "css-1x2y3z4") {
		t.Errorf("css path %q contains a dynamic class", s.CSS)
	}
}

func TestDropdownContextRanksTextFirst(t *testing.T) {
	doc := mustParse(t, selectorTestPage)
	se := newTestEngine()

	links := doc.QueryCSS(".dropdown-menu a")
	if len(links) != 2 {
		t.Fatalf("expected 2 dropdown links, got %d", len(links))
	}
	s := se.GenerateSelectors(doc, links[0])
	if s.Text != "Account settings" {
		t.Errorf("Text = %q", s.Text)
	}
	if len(s.Priority) == 0 || (s.Priority[0] != SelText && s.Priority[0] != SelTextContains) {
		t.Errorf("dropdown element priority[0] = %v, want a text family", s.Priority)
	}
}

func TestAriaLabelCandidate(t *testing.T) {
	doc := mustParse(t, selectorTestPage)
	se := newTestEngine()

	spans := doc.QueryCSS("span.x")
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := se.GenerateSelectors(doc, spans[0])
	if s.AriaLabel != "Close dialog" {
		t.Errorf("AriaLabel = %q", s.AriaLabel)
	}
}

func TestGenerateSelectorsDeterministic(t *testing.T) {
	doc := mustParse(t, selectorTestPage)
	se := newTestEngine()

	el := doc.FindByID("home-link")
	first := se.GenerateSelectors(doc, el)
	for i := 0; i < 3; i++ {
		again := se.GenerateSelectors(doc, el)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\nfirst: %+v\nagain: %+v", i, first, again)
		}
	}
}

func TestBundleNeverEmpty(t *testing.T) {
	doc := mustParse(t, `<html><body><div><p><em>x</em></p></div></body></html>`)
	se := newTestEngine()

	ems := doc.QueryCSS("em")
	if len(ems) != 1 {
		t.Fatal("em not found")
	}
	s := se.GenerateSelectors(doc, ems[0])
	if len(s.Priority) == 0 {
		t.Fatal("priority must never be empty")
	}
	if _, val := s.Primary(); val == "" {
		t.Fatal("primary candidate must never be empty")
	}
}

func TestDropdownStableIDStillLeads(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<body>
  <ul role="menu">
    <li><a id="logout-link" href="/logout">Log out</a></li>
    <li><a href="/profile">Profile</a></li>
  </ul>
</body>
</html>`
	doc := mustParse(t, page)
	se := newTestEngine()

	el := doc.FindByID("logout-link")
	s := se.GenerateSelectors(doc, el)
	if s.ID != "logout-link" {
		t.Fatalf("ID = %q, want %q", s.ID, "logout-link")
	}
	if len(s.Priority) == 0 || s.Priority[0] != SelID {
		t.Errorf("priority[0] = %v, want id even inside a menu", s.Priority)
	}

	// Text still outranks the structural families in a menu context.
	idxOf := func(st SelectorType) int {
		for i, p := range s.Priority {
			if p == st {
				return i
			}
		}
		return -1
	}
	ti, ci := idxOf(SelText), idxOf(SelCSS)
	if ti == -1 || ci == -1 || ti > ci {
		t.Errorf("priority = %v, want text ranked before css", s.Priority)
	}
}

func TestLongUnicodeTextFragmentCutAtRuneBoundary(t *testing.T) {
	label := strings.Repeat("日", 30) // 90 bytes of three-byte runes
	doc := mustParse(t, `<html><body><button id="b1">`+label+`</button></body></html>`)
	se := newTestEngine()

	s := se.GenerateSelectors(doc, doc.FindByID("b1"))
	if s.TextContains == "" {
		t.Fatal("long label must yield a contains fragment")
	}
	if !utf8.ValidString(s.TextContains) {
		t.Errorf("fragment %q is not valid UTF-8", s.TextContains)
	}
	if !strings.HasPrefix(label, s.TextContains) {
		t.Errorf("fragment %q is not a prefix of the label", s.TextContains)
	}
	if len(s.TextContains) > maxExactTextLen {
		t.Errorf("fragment is %d bytes, cap is %d", len(s.TextContains), maxExactTextLen)
	}
}

func TestConfigDisablesFamilies(t *testing.T) {
	doc := mustParse(t, selectorTestPage)
	cfg := DefaultSelectorConfig()
	cfg.IncludeXPath = false
	cfg.IncludeText = false
	cfg.IncludePosition = false
	se := NewSelectorEngine(cfg)

	el := doc.FindByID("home-link")
	s := se.GenerateSelectors(doc, el)
	if s.XPath != "" || s.XPathAbsolute != "" || s.Text != "" || s.Position != "" {
		t.Errorf("disabled families still populated: %+v", s)
	}
}
