package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
)

// ========================================
// Capture Bridge (CDP)
// ========================================

// CaptureBridge drives a live Chrome instance. It injects a small page
// script that forwards DOM events over a CDP binding, keeps a parsed
// snapshot of the page in sync, and feeds the recorder.
type CaptureBridge struct {
	recorder *Recorder

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	ctxCancel   context.CancelFunc

	currentURL string
	running    bool
	mu         sync.Mutex
}

const bindingName = "__scribeEmit"

func NewCaptureBridge(recorder *Recorder) *CaptureBridge {
	return &CaptureBridge{recorder: recorder}
}

// Start launches Chrome, navigates to targetURL and begins capture.
func (b *CaptureBridge) Start(targetURL string, headless bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("capture is already in progress")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("no-pings", true),
	)

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.ctxCancel = chromedp.NewContext(b.allocCtx)

	chromedp.ListenTarget(b.browserCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *cdpruntime.EventBindingCalled:
			if e.Name == bindingName {
				b.handleBindingPayload(e.Payload)
			}
		case *page.EventFrameNavigated:
			if e.Frame != nil && e.Frame.ParentID == "" {
				go b.handleNavigated(e.Frame.URL)
			}
		}
	})

	err := chromedp.Run(b.browserCtx,
		cdpruntime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(captureScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(captureScript, nil),
	)
	if err != nil {
		b.teardownLocked()
		return fmt.Errorf("failed to start capture: %w", err)
	}

	doc, err := b.snapshot(b.browserCtx)
	if err != nil {
		b.teardownLocked()
		return fmt.Errorf("failed to take initial snapshot: %w", err)
	}

	b.currentURL = targetURL
	b.recorder.Start(doc, targetURL)
	b.running = true

	BridgeLog().Str("url", targetURL).Bool("headless", headless).Msg("Capture bridge started")
	return nil
}

// Stop ends capture and closes the browser.
func (b *CaptureBridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return fmt.Errorf("no capture in progress")
	}

	b.recorder.Stop()
	b.teardownLocked()
	b.running = false

	BridgeLog().Msg("Capture bridge stopped")
	return nil
}

func (b *CaptureBridge) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *CaptureBridge) teardownLocked() {
	if b.ctxCancel != nil {
		b.ctxCancel()
		b.ctxCancel = nil
	}
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCancel = nil
	}
}

// snapshot pulls the current DOM and parses it.
func (b *CaptureBridge) snapshot(ctx context.Context) (*Document, error) {
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var outerHTML string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &outerHTML, chromedp.ByQuery)); err != nil {
		return nil, err
	}

	var pageURL string
	if err := chromedp.Run(runCtx, chromedp.Location(&pageURL)); err != nil {
		pageURL = b.currentURL
	}

	return ParseDocument(outerHTML, pageURL)
}

// handleNavigated refreshes the snapshot and reports the URL change.
func (b *CaptureBridge) handleNavigated(newURL string) {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	ctx := b.browserCtx
	fromURL := b.currentURL
	b.currentURL = newURL
	b.mu.Unlock()

	if fromURL == newURL {
		return
	}

	// Give the document a moment to settle before snapshotting.
	time.Sleep(200 * time.Millisecond)

	doc, err := b.snapshot(ctx)
	if err != nil {
		BridgeLog().Err(err).Str("url", newURL).Msg("Snapshot after navigation failed")
		return
	}
	b.recorder.SetDocument(doc)
	b.recorder.Dispatch(RawEvent{
		Type:      "navigation",
		Timestamp: time.Now().UnixMilli(),
		URL:       newURL,
	})
}

// handleBindingPayload converts one page-side event into a RawEvent.
func (b *CaptureBridge) handleBindingPayload(payload string) {
	b.mu.Lock()
	running := b.running
	ctx := b.browserCtx
	b.mu.Unlock()
	if !running {
		return
	}

	evType := gjson.Get(payload, "type").String()
	if evType == "" {
		return
	}

	ev := RawEvent{
		Type:      evType,
		Timestamp: time.Now().UnixMilli(),
		Detail:    int(gjson.Get(payload, "detail").Int()),
		Button:    buttonName(int(gjson.Get(payload, "button").Int())),
		Key:       gjson.Get(payload, "key").String(),
		Value:     gjson.Get(payload, "value").String(),
		URL:       gjson.Get(payload, "url").String(),
		ScrollX:   int(gjson.Get(payload, "scrollX").Int()),
		ScrollY:   int(gjson.Get(payload, "scrollY").Int()),
		Visible:   gjson.Get(payload, "visible").Bool(),
	}

	if xpath := gjson.Get(payload, "xpath").String(); xpath != "" {
		ev.Target = b.resolveTarget(ctx, xpath)
		if ev.Target == nil {
			BridgeLog().Str("xpath", xpath).Str("type", evType).Msg("Event target not found in snapshot, dropping event")
			return
		}
	}

	b.recorder.Dispatch(ev)
}

// resolveTarget maps a page-side absolute XPath onto the Go-side
// snapshot, refreshing the snapshot once if the first lookup misses
// (the page may have mutated since the last sync).
func (b *CaptureBridge) resolveTarget(ctx context.Context, xpath string) *html.Node {
	if node := b.lookup(xpath); node != nil {
		return node
	}
	doc, err := b.snapshot(ctx)
	if err != nil {
		return nil
	}
	b.recorder.SetDocument(doc)
	return b.lookup(xpath)
}

func (b *CaptureBridge) lookup(xpath string) *html.Node {
	doc := b.recorder.Document()
	if doc == nil {
		return nil
	}
	nodes := doc.QueryXPath(xpath)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func buttonName(button int) string {
	switch button {
	case 1:
		return "middle"
	case 2:
		return "right"
	default:
		return "left"
	}
}

// captureScript runs inside every document. It forwards the events the
// recorder understands through the CDP binding, each tagged with the
// target's absolute XPath so the Go side can find the same node in its
// snapshot.
const captureScript = `
(function() {
	if (window.__scribeInstalled) return;
	window.__scribeInstalled = true;

	function xpathOf(el) {
		if (!el || el.nodeType !== Node.ELEMENT_NODE) return '';
		if (el === document.documentElement) return '/html';
		if (el === document.body) return '/html/body';
		var ix = 0;
		var siblings = el.parentNode ? el.parentNode.children : [];
		for (var i = 0; i < siblings.length; i++) {
			var sib = siblings[i];
			if (sib.tagName === el.tagName) {
				ix++;
				if (sib === el) break;
			}
		}
		return xpathOf(el.parentNode) + '/' + el.tagName.toLowerCase() + '[' + ix + ']';
	}

	function emit(data) {
		try { window.__scribeEmit(JSON.stringify(data)); } catch (e) {}
	}

	document.addEventListener('click', function(e) {
		emit({ type: 'click', xpath: xpathOf(e.target), detail: e.detail, button: e.button });
	}, true);

	document.addEventListener('input', function(e) {
		var t = e.target;
		emit({ type: 'input', xpath: xpathOf(t), value: t && t.value !== undefined ? String(t.value) : '' });
	}, true);

	document.addEventListener('keydown', function(e) {
		emit({ type: 'keydown', xpath: xpathOf(e.target), key: e.key });
	}, true);

	document.addEventListener('change', function(e) {
		var t = e.target;
		emit({ type: 'change', xpath: xpathOf(t), value: t && t.value !== undefined ? String(t.value) : '' });
	}, true);

	document.addEventListener('submit', function(e) {
		emit({ type: 'submit', xpath: xpathOf(e.target) });
	}, true);

	document.addEventListener('mouseover', function(e) {
		emit({ type: 'mouseover', xpath: xpathOf(e.target) });
	}, true);

	document.addEventListener('mouseout', function(e) {
		emit({ type: 'mouseout', xpath: xpathOf(e.target) });
	}, true);

	document.addEventListener('focus', function(e) {
		emit({ type: 'focus', xpath: xpathOf(e.target) });
	}, true);

	document.addEventListener('blur', function(e) {
		emit({ type: 'blur', xpath: xpathOf(e.target) });
	}, true);

	var scrollTimer = null;
	window.addEventListener('scroll', function(e) {
		if (scrollTimer) clearTimeout(scrollTimer);
		var target = e.target === document ? null : e.target;
		scrollTimer = setTimeout(function() {
			emit({
				type: 'scroll',
				xpath: target ? xpathOf(target) : '',
				scrollX: target ? target.scrollLeft : window.scrollX,
				scrollY: target ? target.scrollTop : window.scrollY
			});
		}, 150);
	}, true);

	// Report elements that transition to visible, so hover/click actions
	// can be linked to the dropdown panels they opened.
	var visObserver = new MutationObserver(function(mutations) {
		for (var i = 0; i < mutations.length; i++) {
			var m = mutations[i];
			if (m.type !== 'attributes') continue;
			var el = m.target;
			if (!(el instanceof Element)) continue;
			var visible = el.offsetParent !== null;
			emit({ type: 'visibility', xpath: xpathOf(el), visible: visible });
		}
	});
	visObserver.observe(document.documentElement, {
		attributes: true,
		attributeFilter: ['style', 'class', 'hidden', 'aria-hidden'],
		subtree: true
	});
})();
`
