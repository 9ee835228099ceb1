package main

import (
	"testing"
)

const domTestPage = `<!DOCTYPE html>
<html>
<body>
  <div id="app">
    <ul id="listings">
      <li class="card"><button class="carousel-next">Next</button></li>
      <li class="card"><button class="carousel-next">Next</button></li>
      <li class="card featured"><button class="carousel-next">Next</button></li>
    </ul>
    <form id="login">
      <input type="password" id="password" name="pwd">
      <button type="submit" data-testid="login-btn">Sign in</button>
    </form>
    <span style="display: none" class="badge">hidden badge</span>
    <span aria-hidden="true" class="icon"></span>
    <p class="sr-only">screen reader only</p>
  </div>
</body>
</html>`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := ParseDocument(src, "https://example.test/")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return doc
}

func TestCSSToXPath(t *testing.T) {
	tests := []struct {
		css  string
		want string
	}{
		{"button", "//button"},
		{"#login", "//*[@id='login']"},
		{".card", "//*[contains(concat(' ', normalize-space(@class), ' '), ' card ')]"},
		{"button[data-testid=\"login-btn\"]", "//button[@data-testid='login-btn']"},
		{"#listings > li:nth-child(3)", "//*[@id='listings']/*[3][self::li]"},
		{"ul li", "//ul//li"},
		{"", ""},
		{"li::before", ""},
	}
	for _, tt := range tests {
		if got := cssToXPath(tt.css); got != tt.want {
			t.Errorf("cssToXPath(%q) = %q, want %q", tt.css, got, tt.want)
		}
	}
}

func TestQueryCSSMatchesDocument(t *testing.T) {
	doc := mustParse(t, domTestPage)

	if n := len(doc.QueryCSS(".card")); n != 3 {
		t.Errorf("expected 3 .card matches, got %d", n)
	}
	if n := len(doc.QueryCSS("#listings > li:nth-child(3) .carousel-next")); n != 1 {
		t.Errorf("expected 1 scoped carousel-next match, got %d", n)
	}
	if n := len(doc.QueryCSS("button[data-testid=\"login-btn\"]")); n != 1 {
		t.Errorf("expected 1 testid match, got %d", n)
	}
}

func TestMatchesUniquely(t *testing.T) {
	doc := mustParse(t, domTestPage)
	target := doc.FindByID("password")
	if target == nil {
		t.Fatal("password input not found")
	}

	ok, count := doc.MatchesUniquely("//*[@id='password']", target)
	if !ok || count != 1 {
		t.Errorf("id lookup should be unique, ok=%v count=%d", ok, count)
	}

	// Matches three nodes, so it is not unique for any of them.
	buttons := doc.QueryCSS(".carousel-next")
	if len(buttons) != 3 {
		t.Fatalf("expected 3 buttons, got %d", len(buttons))
	}
	ok, count = doc.CSSMatchesUniquely(".carousel-next", buttons[0])
	if ok || count != 3 {
		t.Errorf("ambiguous selector should not validate, ok=%v count=%d", ok, count)
	}

	// Unique count but wrong node still fails.
	ok, _ = doc.MatchesUniquely("//*[@id='login']", target)
	if ok {
		t.Error("unique match on a different node must not validate")
	}
}

func TestAbsoluteXPath(t *testing.T) {
	doc := mustParse(t, domTestPage)
	buttons := doc.QueryCSS(".carousel-next")
	if len(buttons) != 3 {
		t.Fatalf("expected 3 buttons, got %d", len(buttons))
	}

	want := "/html/body/div[1]/ul[1]/li[3]/button[1]"
	if got := absoluteXPath(buttons[2]); got != want {
		t.Errorf("absoluteXPath = %q, want %q", got, want)
	}

	// The absolute path must round-trip to the same node.
	ok, _ := doc.MatchesUniquely(absoluteXPath(buttons[1]), buttons[1])
	if !ok {
		t.Error("absolute xpath did not resolve back to its node")
	}
}

func TestSiblingIndices(t *testing.T) {
	doc := mustParse(t, domTestPage)
	cards := doc.QueryCSS("li")
	if len(cards) != 3 {
		t.Fatalf("expected 3 li, got %d", len(cards))
	}
	for i, li := range cards {
		if got := nthChildIndex(li); got != i+1 {
			t.Errorf("li %d: nthChildIndex = %d, want %d", i, got, i+1)
		}
		if got := nthOfTypeIndex(li); got != i+1 {
			t.Errorf("li %d: nthOfTypeIndex = %d, want %d", i, got, i+1)
		}
	}
}

func TestDocumentNth(t *testing.T) {
	doc := mustParse(t, domTestPage)
	buttons := doc.QueryXPath("//button")
	if len(buttons) != 4 {
		t.Fatalf("expected 4 buttons, got %d", len(buttons))
	}
	if got := doc.documentNth(buttons[3]); got != 4 {
		t.Errorf("documentNth(submit) = %d, want 4", got)
	}
}

func TestVisibilityHeuristics(t *testing.T) {
	doc := mustParse(t, domTestPage)

	tests := []struct {
		css    string
		hidden bool
	}{
		{".badge", true},
		{".icon", true},
		{".sr-only", true},
		{"#password", false},
		{".featured", false},
	}
	for _, tt := range tests {
		nodes := doc.QueryCSS(tt.css)
		if len(nodes) == 0 {
			t.Fatalf("%s not found", tt.css)
		}
		if got := isHidden(nodes[0]); got != tt.hidden {
			t.Errorf("isHidden(%s) = %v, want %v", tt.css, got, tt.hidden)
		}
	}
}

func TestInnerTextNormalization(t *testing.T) {
	doc := mustParse(t, `<html><body><button>  Sign
		in  </button></body></html>`)
	btn := doc.QueryCSS("button")
	if len(btn) != 1 {
		t.Fatal("button not found")
	}
	if got := innerText(btn[0]); got != "Sign in" {
		t.Errorf("innerText = %q, want %q", got, "Sign in")
	}
}

func TestMalformedQueriesReturnEmpty(t *testing.T) {
	doc := mustParse(t, domTestPage)
	if nodes := doc.QueryXPath("//*[unbalanced"); len(nodes) != 0 {
		t.Errorf("malformed xpath should yield nothing, got %d nodes", len(nodes))
	}
	if nodes := doc.QueryCSS("div:hover"); len(nodes) != 0 {
		t.Errorf("unsupported pseudo-class should yield nothing, got %d nodes", len(nodes))
	}
}
