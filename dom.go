package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ========================================
// Document - live DOM substrate
// ========================================

// Document wraps the parsed DOM the recorder observes. Element identity is
// node pointer identity within one Document generation; swapping the root
// (after a mutation snapshot) invalidates previously-held nodes.
type Document struct {
	Root *html.Node
	URL  string
}

// ParseDocument parses an HTML string into a Document.
func ParseDocument(src, url string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{Root: root, URL: url}, nil
}

// QueryXPath returns all nodes matching the XPath expression. A malformed
// expression or a query failure yields an empty result, never an error to
// the caller; selector generation treats it as "candidate not unique".
func (d *Document) QueryXPath(expr string) []*html.Node {
	if d == nil || d.Root == nil || expr == "" {
		return nil
	}
	defer func() { recover() }() // htmlquery panics on some malformed axes
	nodes, err := htmlquery.QueryAll(d.Root, expr)
	if err != nil {
		return nil
	}
	return nodes
}

// QueryCSS returns all nodes matching a CSS selector of the restricted
// grammar produced by the selector engine (tag, #id, .class, [attr="v"],
// :nth-child(n), descendant and child combinators).
func (d *Document) QueryCSS(sel string) []*html.Node {
	expr := cssToXPath(sel)
	if expr == "" {
		return nil
	}
	return d.QueryXPath(expr)
}

// MatchesUniquely reports whether the XPath expression resolves to exactly
// one node and that node is the target.
func (d *Document) MatchesUniquely(expr string, target *html.Node) (bool, int) {
	nodes := d.QueryXPath(expr)
	return len(nodes) == 1 && nodes[0] == target, len(nodes)
}

// CSSMatchesUniquely is MatchesUniquely for the CSS grammar.
func (d *Document) CSSMatchesUniquely(sel string, target *html.Node) (bool, int) {
	nodes := d.QueryCSS(sel)
	return len(nodes) == 1 && nodes[0] == target, len(nodes)
}

// FindByID returns the first element carrying the given id.
func (d *Document) FindByID(id string) *html.Node {
	if strings.Contains(id, "'") {
		return nil
	}
	nodes := d.QueryXPath(fmt.Sprintf("//*[@id='%s']", id))
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Body returns the document body element.
func (d *Document) Body() *html.Node {
	nodes := d.QueryXPath("//body")
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// ========================================
// Element helpers
// ========================================

func isElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

func tagName(n *html.Node) string {
	if !isElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func elementID(n *html.Node) string {
	return attr(n, "id")
}

func classList(n *html.Node) []string {
	raw := attr(n, "class")
	if raw == "" {
		return nil
	}
	return strings.Fields(raw)
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range classList(n) {
		if c == class {
			return true
		}
	}
	return false
}

// classContains reports whether any class token contains the substring
// (case-insensitive).
func classContains(n *html.Node, sub string) bool {
	sub = strings.ToLower(sub)
	for _, c := range classList(n) {
		if strings.Contains(strings.ToLower(c), sub) {
			return true
		}
	}
	return false
}

// innerText returns the normalized (whitespace-collapsed, trimmed) text
// content of the subtree.
func innerText(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(htmlquery.InnerText(n)), " ")
}

// parentElement returns the nearest element ancestor, skipping non-element
// parents.
func parentElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if isElement(p) {
			return p
		}
	}
	return nil
}

// childElements returns the element children in document order.
func childElements(n *html.Node) []*html.Node {
	var out []*html.Node
	if n == nil {
		return out
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c) {
			out = append(out, c)
		}
	}
	return out
}

// nthChildIndex returns the 1-based position of n among its parent's element
// children, or 0 when detached.
func nthChildIndex(n *html.Node) int {
	p := parentElement(n)
	if p == nil {
		return 0
	}
	idx := 0
	for _, c := range childElements(p) {
		idx++
		if c == n {
			return idx
		}
	}
	return 0
}

// nthOfTypeIndex returns the 1-based position of n among same-tag siblings.
func nthOfTypeIndex(n *html.Node) int {
	p := parentElement(n)
	if p == nil {
		return 0
	}
	idx := 0
	for _, c := range childElements(p) {
		if tagName(c) == tagName(n) {
			idx++
			if c == n {
				return idx
			}
		}
	}
	return 0
}

// documentNth returns the 1-based document-order index of n among all
// elements with the same tag, used by the position fallback selector.
func (d *Document) documentNth(n *html.Node) int {
	if d == nil || d.Root == nil || !isElement(n) {
		return 0
	}
	idx := 0
	found := 0
	var walk func(*html.Node) bool
	walk = func(cur *html.Node) bool {
		if isElement(cur) && tagName(cur) == tagName(n) {
			idx++
			if cur == n {
				found = idx
				return true
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(d.Root)
	return found
}

// containsNode reports whether ancestor contains (or is) n.
func containsNode(ancestor, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// ========================================
// Visibility / state introspection
// ========================================

// inlineStyle extracts one property from the style attribute. Computed
// styles are unavailable here; callers degrade to conservative defaults.
func inlineStyle(n *html.Node, prop string) string {
	style := attr(n, "style")
	if style == "" {
		return ""
	}
	for _, decl := range strings.Split(style, ";") {
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), prop) {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// isHidden reports whether the element is hidden as far as static
// introspection can tell. When in doubt it answers false ("assume visible").
func isHidden(n *html.Node) bool {
	if n == nil {
		return false
	}
	if hasAttr(n, "hidden") || attr(n, "aria-hidden") == "true" {
		return true
	}
	switch inlineStyle(n, "display") {
	case "none":
		return true
	}
	switch inlineStyle(n, "visibility") {
	case "hidden", "collapse":
		return true
	}
	if v := inlineStyle(n, "opacity"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f == 0 {
			return true
		}
	}
	for _, c := range classList(n) {
		switch strings.ToLower(c) {
		case "sr-only", "visually-hidden", "hidden", "d-none":
			return true
		}
	}
	return false
}

// isDisabled reports whether a form control is disabled. Unknown means
// enabled ("assume not disabled").
func isDisabled(n *html.Node) bool {
	if n == nil {
		return false
	}
	return hasAttr(n, "disabled") || attr(n, "aria-disabled") == "true"
}

// ========================================
// Absolute XPath
// ========================================

// absoluteXPath builds the positional root-to-element path, e.g.
// /html/body/div[2]/ul[1]/li[3]/button[1]. html and body are singletons
// and carry no index, matching the form the page script reports.
func absoluteXPath(n *html.Node) string {
	if !isElement(n) {
		return ""
	}
	var segs []string
	for cur := n; isElement(cur); cur = parentElement(cur) {
		tag := tagName(cur)
		if tag == "html" || tag == "body" {
			segs = append(segs, tag)
			if tag == "html" {
				break
			}
			continue
		}
		segs = append(segs, fmt.Sprintf("%s[%d]", tag, nthOfTypeIndex(cur)))
	}
	// reverse
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return "/" + strings.Join(segs, "/")
}

// ========================================
// CSS → XPath translation
// ========================================

// cssToXPath translates the restricted CSS grammar the selector engine
// emits into XPath for validation against the document. It handles tag,
// #id, .class, [attr="value"], :nth-child(n), and the descendant/child
// combinators. Anything it cannot parse yields "".
func cssToXPath(css string) string {
	css = strings.TrimSpace(css)
	if css == "" {
		return ""
	}
	if css == "*" {
		return "//*"
	}

	// Normalize child combinators so that Fields tokenizes cleanly.
	css = strings.ReplaceAll(css, ">", " > ")
	tokens := strings.Fields(css)

	var b strings.Builder
	axis := "//" // first segment searches the whole document
	for _, tok := range tokens {
		if tok == ">" {
			axis = "/"
			continue
		}
		seg, ok := cssSegmentToXPath(tok, axis == "/")
		if !ok {
			return ""
		}
		b.WriteString(axis)
		b.WriteString(seg)
		axis = "//"
	}
	return b.String()
}

// cssSegmentToXPath translates one compound selector (no combinators).
func cssSegmentToXPath(tok string, childAxis bool) (string, bool) {
	tag := "*"
	var predicates []string
	nth := 0

	rest := tok
	// Leading tag name.
	if rest != "" && rest[0] != '#' && rest[0] != '.' && rest[0] != '[' && rest[0] != ':' {
		end := strings.IndexAny(rest, "#.[:")
		if end == -1 {
			end = len(rest)
		}
		tag = strings.ToLower(rest[:end])
		rest = rest[end:]
	}

	for rest != "" {
		switch rest[0] {
		case '#':
			end := strings.IndexAny(rest[1:], "#.[:")
			if end == -1 {
				end = len(rest)
			} else {
				end++
			}
			id := rest[1:end]
			if id == "" || strings.Contains(id, "'") {
				return "", false
			}
			predicates = append(predicates, fmt.Sprintf("@id='%s'", id))
			rest = rest[end:]
		case '.':
			end := strings.IndexAny(rest[1:], "#.[:")
			if end == -1 {
				end = len(rest)
			} else {
				end++
			}
			class := rest[1:end]
			if class == "" || strings.Contains(class, "'") {
				return "", false
			}
			predicates = append(predicates,
				fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), ' %s ')", class))
			rest = rest[end:]
		case '[':
			end := strings.Index(rest, "]")
			if end == -1 {
				return "", false
			}
			body := rest[1:end]
			eq := strings.Index(body, "=")
			if eq == -1 {
				predicates = append(predicates, "@"+body)
			} else {
				key := body[:eq]
				val := strings.Trim(body[eq+1:], `"'`)
				if strings.Contains(val, "'") {
					return "", false
				}
				predicates = append(predicates, fmt.Sprintf("@%s='%s'", key, val))
			}
			rest = rest[end+1:]
		case ':':
			if !strings.HasPrefix(rest, ":nth-child(") {
				return "", false
			}
			end := strings.Index(rest, ")")
			if end == -1 {
				return "", false
			}
			v, err := strconv.Atoi(rest[len(":nth-child("):end])
			if err != nil || v < 1 {
				return "", false
			}
			nth = v
			rest = rest[end+1:]
		default:
			return "", false
		}
	}

	// :nth-child counts element children regardless of tag, so the position
	// predicate goes on the wildcard and the tag becomes a self:: check.
	if nth > 0 {
		preds := fmt.Sprintf("[%d]", nth)
		if tag != "*" {
			preds += fmt.Sprintf("[self::%s]", tag)
		}
		for _, p := range predicates {
			preds += "[" + p + "]"
		}
		return "*" + preds, true
	}

	out := tag
	for _, p := range predicates {
		out += "[" + p + "]"
	}
	return out, true
}
