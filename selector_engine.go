package main

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ========================================
// Selector Resolution Engine
// ========================================

// SelectorEngine synthesizes ranked selector bundles for elements. Every
// candidate family is generated independently, validated for document-wide
// uniqueness, and failures in one family never block the others.
type SelectorEngine struct {
	config SelectorConfig
}

func NewSelectorEngine(config SelectorConfig) *SelectorEngine {
	if config.MaxCSSDepth <= 0 {
		config.MaxCSSDepth = DefaultSelectorConfig().MaxCSSDepth
	}
	return &SelectorEngine{config: config}
}

// ========================================
// Dynamic identifier heuristics
// ========================================

var (
	// Auto-generated id/class prefixes emitted by frameworks.
	dynamicPrefixPattern = regexp.MustCompile(`^(ember-?\d|react-|vue-|ng-|ngb-|svelte-|radix-|headlessui-|mui-?\d|mat-)`)

	// CSS-in-JS hashed class shapes.
	cssInJSPattern = regexp.MustCompile(`^(css-|sc-|jss\d|emotion-|chakra-.*-\d|makeStyles-)`)

	// Long digit runs (timestamps, numeric ids baked into attributes).
	digitRunPattern = regexp.MustCompile(`\d{4,}`)

	// Hash-like tokens: long, mixed letters and digits, no readable words.
	hashLikePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,}$`)
	hasLetter       = regexp.MustCompile(`[A-Za-z]`)
	hasDigit        = regexp.MustCompile(`\d`)
	vowelPattern    = regexp.MustCompile(`[aeiouAEIOU]`)
)

// isDynamicToken reports whether an id or class token looks auto-generated
// and would not survive a page reload.
func isDynamicToken(token string) bool {
	if token == "" {
		return true
	}
	if dynamicPrefixPattern.MatchString(token) || cssInJSPattern.MatchString(token) {
		return true
	}
	if digitRunPattern.MatchString(token) {
		return true
	}
	// Hash-like: long alphanumeric mix with almost no vowels reads as a
	// build artifact, not a human-chosen name.
	if hashLikePattern.MatchString(token) && hasLetter.MatchString(token) && hasDigit.MatchString(token) {
		vowels := len(vowelPattern.FindAllString(token, -1))
		if vowels*4 < len(token) {
			return true
		}
	}
	return false
}

// stableClasses returns the element's class tokens that pass the dynamic
// heuristics, preserving order.
func stableClasses(n *html.Node) []string {
	var out []string
	for _, c := range classList(n) {
		if !isDynamicToken(c) {
			out = append(out, c)
		}
	}
	return out
}

// ========================================
// Bundle generation
// ========================================

// GenerateSelectors builds the full ranked selector bundle for an element.
// The result is always non-empty: the bare tag name is the unconditional
// CSS fallback. The function is deterministic for an unmodified document.
func (se *SelectorEngine) GenerateSelectors(doc *Document, el *html.Node) SelectorStrategy {
	strategy := SelectorStrategy{}
	if !isElement(el) {
		strategy.CSS = "*"
		strategy.Priority = []SelectorType{SelCSS}
		return strategy
	}

	strategy.ID = se.idCandidate(doc, el)
	strategy.DataTestID = se.testIDCandidate(doc, el)
	strategy.AriaLabel = se.ariaLabelCandidate(doc, el)
	strategy.Name = se.nameCandidate(doc, el)
	strategy.CSS = se.cssCandidate(doc, el)

	if se.config.IncludeText {
		strategy.Text, strategy.TextContains = se.textCandidates(doc, el)
	}
	if se.config.IncludeXPath {
		strategy.XPath = se.relativeXPathCandidate(doc, el)
		strategy.XPathAbsolute = absoluteXPath(el)
	}

	// Carousel controls swap in container-scoped, direction-aware forms so
	// the same arrow repeated across sibling carousels never collides.
	if ctx := DetectCarousel(doc, el); ctx.IsCarouselControl {
		if css, xpath := BuildCarouselSelectors(doc, el, ctx); css != "" {
			strategy.CSS = css
			if se.config.IncludeXPath && xpath != "" {
				strategy.XPath = xpath
			}
		}
	}
	if se.config.IncludePosition {
		if n := doc.documentNth(el); n > 0 {
			strategy.Position = fmt.Sprintf("(//%s)[%d]", tagName(el), n)
		}
	}

	strategy.Priority = se.buildPriority(&strategy, isInDropdownContext(el))
	strategy.Validation = se.validatePrimary(doc, el, &strategy)
	return strategy
}

// idCandidate returns the element id when it is static and document-unique.
func (se *SelectorEngine) idCandidate(doc *Document, el *html.Node) string {
	id := elementID(el)
	if id == "" || strings.Contains(id, "'") {
		return ""
	}
	if se.config.PreferStableSelectors && isDynamicToken(id) {
		return ""
	}
	if ok, _ := doc.MatchesUniquely(fmt.Sprintf("//*[@id='%s']", id), el); !ok {
		return ""
	}
	return id
}

var testIDAttrs = []string{"data-testid", "data-test-id", "data-test", "data-cy", "data-qa"}

func (se *SelectorEngine) testIDCandidate(doc *Document, el *html.Node) string {
	for _, key := range testIDAttrs {
		v := attr(el, key)
		if v == "" || strings.Contains(v, "'") {
			continue
		}
		expr := fmt.Sprintf("//*[@%s='%s']", key, v)
		if ok, _ := doc.MatchesUniquely(expr, el); ok {
			return fmt.Sprintf("[%s=\"%s\"]", key, v)
		}
	}
	return ""
}

func (se *SelectorEngine) ariaLabelCandidate(doc *Document, el *html.Node) string {
	v := attr(el, "aria-label")
	if v == "" || strings.Contains(v, "'") {
		return ""
	}
	expr := fmt.Sprintf("//*[@aria-label='%s']", v)
	if ok, _ := doc.MatchesUniquely(expr, el); !ok {
		return ""
	}
	return v
}

func (se *SelectorEngine) nameCandidate(doc *Document, el *html.Node) string {
	v := attr(el, "name")
	if v == "" || strings.Contains(v, "'") {
		return ""
	}
	expr := fmt.Sprintf("//%s[@name='%s']", tagName(el), v)
	if ok, _ := doc.MatchesUniquely(expr, el); !ok {
		return ""
	}
	return v
}

// ========================================
// CSS path construction
// ========================================

// cssCandidate climbs from the element toward the root, one segment per
// ancestor up to maxCssDepth, stopping early when the path becomes unique
// or an ancestor carries a static id. A still-ambiguous path gets an
// nth-child suffix on the leaf segment and one re-validation.
func (se *SelectorEngine) cssCandidate(doc *Document, el *html.Node) string {
	var segs []string
	cur := el
	anchored := false

	for depth := 0; cur != nil && isElement(cur) && depth <= se.config.MaxCSSDepth; depth++ {
		seg := cssSegment(cur, se.config.PreferStableSelectors)
		segs = append([]string{seg}, segs...)

		if strings.HasPrefix(seg, "#") {
			anchored = true
		}

		path := strings.Join(segs, " > ")
		if ok, _ := doc.CSSMatchesUniquely(path, el); ok {
			return path
		}
		if anchored {
			break
		}
		if tagName(cur) == "body" {
			break
		}
		cur = parentElement(cur)
	}

	path := strings.Join(segs, " > ")
	withNth := appendNthChild(segs, el)
	if ok, _ := doc.CSSMatchesUniquely(withNth, el); ok {
		return withNth
	}
	// Neither form validated; keep the nth-child variant, it is the more
	// specific of the two and the validation metadata records the miss.
	if withNth != path {
		return withNth
	}
	return path
}

// cssSegment builds one compound selector for a node: #id when static,
// otherwise tag plus up to two stable classes.
func cssSegment(n *html.Node, preferStable bool) string {
	if id := elementID(n); id != "" && !strings.ContainsAny(id, "'\" >") {
		if !preferStable || !isDynamicToken(id) {
			return "#" + id
		}
	}
	seg := tagName(n)
	count := 0
	for _, c := range stableClasses(n) {
		if strings.ContainsAny(c, "'\" >:[]") {
			continue
		}
		seg += "." + c
		count++
		if count == 2 {
			break
		}
	}
	return seg
}

// appendNthChild disambiguates the leaf segment with its sibling position.
func appendNthChild(segs []string, el *html.Node) string {
	if len(segs) == 0 {
		return ""
	}
	idx := nthChildIndex(el)
	if idx == 0 {
		return strings.Join(segs, " > ")
	}
	out := make([]string, len(segs))
	copy(out, segs)
	leaf := out[len(out)-1]
	if !strings.Contains(leaf, ":nth-child(") {
		out[len(out)-1] = fmt.Sprintf("%s:nth-child(%d)", leaf, idx)
	}
	return strings.Join(out, " > ")
}

// ========================================
// Text and XPath candidates
// ========================================

const maxExactTextLen = 50

// truncateAtRune cuts s to at most max bytes without splitting a
// multi-byte rune.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (se *SelectorEngine) textCandidates(doc *Document, el *html.Node) (exact, contains string) {
	text := innerText(el)
	if text == "" || strings.Contains(text, "'") {
		return "", ""
	}

	if len(text) <= maxExactTextLen {
		expr := fmt.Sprintf("//%s[normalize-space(.)='%s']", tagName(el), text)
		if ok, _ := doc.MatchesUniquely(expr, el); ok {
			exact = text
		}
	}

	// A leading fragment for partial matching on long or repeated labels.
	frag := text
	if len(frag) > maxExactTextLen {
		frag = strings.TrimSpace(truncateAtRune(frag, maxExactTextLen))
	}
	if frag != "" {
		expr := fmt.Sprintf("//%s[contains(normalize-space(.), '%s')]", tagName(el), frag)
		if ok, _ := doc.MatchesUniquely(expr, el); ok {
			contains = frag
		}
	}
	return exact, contains
}

// relativeXPathCandidate prefers a short attribute- or text-anchored
// expression over the absolute positional path.
func (se *SelectorEngine) relativeXPathCandidate(doc *Document, el *html.Node) string {
	tag := tagName(el)

	type anchor struct{ key, val string }
	var anchors []anchor
	for _, key := range append([]string{"name", "aria-label", "placeholder", "title", "href"}, testIDAttrs...) {
		if v := attr(el, key); v != "" && !strings.Contains(v, "'") {
			anchors = append(anchors, anchor{key, v})
		}
	}
	for _, a := range anchors {
		expr := fmt.Sprintf("//%s[@%s='%s']", tag, a.key, a.val)
		if ok, _ := doc.MatchesUniquely(expr, el); ok {
			return expr
		}
	}

	if text := innerText(el); text != "" && len(text) <= maxExactTextLen && !strings.Contains(text, "'") {
		expr := fmt.Sprintf("//%s[normalize-space(.)='%s']", tag, text)
		if ok, _ := doc.MatchesUniquely(expr, el); ok {
			return expr
		}
	}
	return ""
}

// ========================================
// Priority and validation
// ========================================

// buildPriority ranks only the populated candidate fields. Stable
// attribute selectors always lead. Elements inside dropdown/menu/listbox
// contexts rank text content above the structural families, which churn
// as transient lists re-render; everywhere else structure beats text.
func (se *SelectorEngine) buildPriority(s *SelectorStrategy, dropdown bool) []SelectorType {
	var order []SelectorType
	if dropdown {
		order = []SelectorType{
			SelID, SelDataTestID, SelAriaLabel, SelName,
			SelText, SelTextContains,
			SelCSS, SelXPath, SelXPathAbsolute, SelPosition,
		}
	} else {
		order = []SelectorType{
			SelID, SelDataTestID, SelAriaLabel, SelName,
			SelCSS, SelText, SelTextContains,
			SelXPath, SelXPathAbsolute, SelPosition,
		}
	}

	var priority []SelectorType
	for _, t := range order {
		if s.Candidate(t) != "" {
			priority = append(priority, t)
		}
	}
	if len(priority) == 0 {
		priority = []SelectorType{SelCSS}
	}
	return priority
}

// validatePrimary records uniqueness metadata for the top-ranked candidate.
func (se *SelectorEngine) validatePrimary(doc *Document, el *html.Node, s *SelectorStrategy) SelectorValidation {
	v := SelectorValidation{
		SiblingIndex: nthChildIndex(el),
		DocumentNth:  doc.documentNth(el),
	}
	if len(s.Priority) == 0 {
		return v
	}

	primary := s.Priority[0]
	value := s.Candidate(primary)
	var count int
	var ok bool

	switch primary {
	case SelID:
		ok, count = doc.MatchesUniquely(fmt.Sprintf("//*[@id='%s']", value), el)
	case SelDataTestID:
		ok, count = doc.CSSMatchesUniquely("*"+value, el)
	case SelAriaLabel:
		ok, count = doc.MatchesUniquely(fmt.Sprintf("//*[@aria-label='%s']", value), el)
	case SelName:
		ok, count = doc.MatchesUniquely(fmt.Sprintf("//%s[@name='%s']", tagName(el), value), el)
	case SelCSS:
		ok, count = doc.CSSMatchesUniquely(value, el)
	case SelText:
		ok, count = doc.MatchesUniquely(fmt.Sprintf("//%s[normalize-space(.)='%s']", tagName(el), value), el)
	case SelTextContains:
		ok, count = doc.MatchesUniquely(fmt.Sprintf("//%s[contains(normalize-space(.), '%s')]", tagName(el), value), el)
	case SelXPath, SelXPathAbsolute, SelPosition:
		ok, count = doc.MatchesUniquely(value, el)
	}

	v.MatchCount = count
	v.Unique = ok
	return v
}

// ========================================
// Dropdown context detection
// ========================================

const dropdownScanDepth = 8

var dropdownRoles = map[string]bool{
	"menu": true, "listbox": true, "combobox": true, "tree": true,
}

var dropdownClassHints = []string{
	"dropdown", "menu", "listbox", "autocomplete", "typeahead",
	"suggestions", "combobox", "select-options", "popover",
}

// isInDropdownContext reports whether the element sits inside a transient
// list container, where text content is a more durable identifier than
// structural position.
func isInDropdownContext(el *html.Node) bool {
	depth := 0
	for cur := el; cur != nil && depth < dropdownScanDepth; cur = parentElement(cur) {
		if dropdownRoles[attr(cur, "role")] {
			return true
		}
		for _, hint := range dropdownClassHints {
			if classContains(cur, hint) {
				return true
			}
		}
		depth++
	}
	return false
}
