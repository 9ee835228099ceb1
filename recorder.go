package main

import (
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/google/uuid"
)

// ========================================
// Event Capture State Machine
// ========================================

// ActionSink consumes finalized actions. It is called once per accepted
// gesture, and again with the same ID when an asynchronous patch (AJAX
// result, double-click count, dropdown linkage) lands.
type ActionSink func(Action)

// Recorder is the event capture state machine: it turns raw DOM events
// into semantic actions. A single mutex serializes Dispatch, lifecycle
// calls, and deferred tasks, which fire on timer goroutines under the
// real clock. State keyed by element identity is invalidated on
// Stop/Destroy via a generation counter that outstanding deferred tasks
// check before acting.
type Recorder struct {
	mu     sync.Mutex
	config RecorderConfig
	clock  Clock
	engine *SelectorEngine
	timing *TimingModel
	dedup  *DedupGate
	sink   ActionSink

	doc        *Document
	running    bool
	generation int
	startMs    int64
	currentURL string
	lastNavMs  int64

	// click state
	lastClickAt      map[*html.Node]int64
	lastSubmitAt     map[*html.Node]int64
	pendingClicks    map[*html.Node]*pendingClick
	carouselLimiters map[*html.Node]*rate.Limiter

	// typing state
	typingSessions map[*html.Node]*typingSession
	focusedField   *html.Node

	// hover state
	hoverSessions map[*html.Node]*hoverSession
	recentHovers  []hoverRecord
	linkables     []linkableAction

	// emitted actions retained for identity-addressed patches until the
	// longest patch window has passed
	emitted map[string]*Action

	cancels   map[int64]CancelFunc
	cancelSeq int64
}

// pendingClick is the short-lived marker that lets a native OS double-click
// merge into the click already emitted instead of producing a second action.
type pendingClick struct {
	actionID string
	at       int64
}

func NewRecorder(cfg AppConfig, clock Clock, sink ActionSink) *Recorder {
	if clock == nil {
		clock = NewRealClock()
	}
	r := &Recorder{
		config: cfg.Recorder,
		clock:  clock,
		engine: NewSelectorEngine(cfg.Selector),
		timing: NewTimingModel(cfg.Timing),
		dedup:  NewDedupGate(cfg.Recorder.DedupTTLMs),
		sink:   sink,
	}
	r.resetState()
	return r
}

func (r *Recorder) resetState() {
	r.lastClickAt = make(map[*html.Node]int64)
	r.lastSubmitAt = make(map[*html.Node]int64)
	r.pendingClicks = make(map[*html.Node]*pendingClick)
	r.carouselLimiters = make(map[*html.Node]*rate.Limiter)
	r.typingSessions = make(map[*html.Node]*typingSession)
	r.hoverSessions = make(map[*html.Node]*hoverSession)
	r.recentHovers = nil
	r.linkables = nil
	r.emitted = make(map[string]*Action)
	r.focusedField = nil
	r.cancels = make(map[int64]CancelFunc)
}

// schedule registers a deferred task. The task takes the recorder lock,
// removes its own cancel registration, and drops silently when the
// generation moved on. Caller holds r.mu; the returned CancelFunc must
// also be called under r.mu.
func (r *Recorder) schedule(delayMs int64, fn func()) CancelFunc {
	gen := r.generation
	r.cancelSeq++
	id := r.cancelSeq
	inner := r.clock.AfterMs(delayMs, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.cancels, id)
		if r.generation != gen {
			return
		}
		fn()
	})
	r.cancels[id] = inner
	return func() {
		inner()
		delete(r.cancels, id)
	}
}

// ========================================
// Lifecycle
// ========================================

// Start begins capturing against the given document. Idempotent: starting
// an already-running recorder only swaps the document reference.
func (r *Recorder) Start(doc *Document, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		r.doc = doc
		r.currentURL = url
		return
	}
	r.doc = doc
	r.currentURL = url
	r.running = true
	r.startMs = r.clock.NowMs()
	r.timing.Reset()
	r.dedup.Reset()

	RecorderLog().Str("url", url).Msg("Recording started")
}

// Stop flushes every pending typing session, then detaches and releases
// all per-element state. Outstanding deferred tasks see the generation
// bump and drop their patches.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Recorder) stopLocked() {
	if !r.running {
		return
	}
	r.forceFlushTyping("stop")
	r.running = false
	r.generation++

	for _, cancel := range r.cancels {
		cancel()
	}
	r.resetState()

	RecorderLog().Msg("Recording stopped")
}

// Destroy stops capture and drops the document reference.
func (r *Recorder) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.resetState()
	r.doc = nil
}

func (r *Recorder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Document returns the current DOM snapshot.
func (r *Recorder) Document() *Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc
}

// SetDocument swaps in a fresh DOM snapshot after a mutation or navigation.
// Element-keyed state from the old tree is unreachable afterwards and is
// dropped wholesale.
func (r *Recorder) SetDocument(doc *Document) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.forceFlushTyping("document swap")
	r.doc = doc
	r.lastClickAt = make(map[*html.Node]int64)
	r.lastSubmitAt = make(map[*html.Node]int64)
	r.pendingClicks = make(map[*html.Node]*pendingClick)
	r.carouselLimiters = make(map[*html.Node]*rate.Limiter)
	r.typingSessions = make(map[*html.Node]*typingSession)
	r.hoverSessions = make(map[*html.Node]*hoverSession)
	r.focusedField = nil
}

// ========================================
// Dispatch
// ========================================

// Dispatch feeds one raw DOM event through the state machine. Safe to
// call from any goroutine.
func (r *Recorder) Dispatch(ev RawEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running || r.doc == nil {
		return
	}

	switch ev.Type {
	case "click":
		r.handleClick(ev)
	case "input":
		r.handleInput(ev)
	case "keydown":
		r.handleKeydown(ev)
	case "change":
		r.handleChange(ev)
	case "scroll":
		r.handleScroll(ev)
	case "submit":
		r.handleFormSubmit(ev)
	case "mouseover":
		r.handleMouseOver(ev)
	case "mouseout":
		r.handleMouseOut(ev)
	case "focus":
		r.handleFocus(ev)
	case "blur":
		r.handleBlur(ev)
	case "navigation":
		r.handleNavigation(ev)
	case "unload":
		r.forceFlushTyping("unload")
	case "visibility":
		r.handleVisibilityMutation(ev)
	default:
		RecorderLog().Str("event", ev.Type).Msg("Unhandled event type")
	}
}

// ========================================
// Click handling
// ========================================

func (r *Recorder) handleClick(ev RawEvent) {
	r.forceFlushTyping("click")

	target := ResolveInteractiveAncestor(ev.Target)
	if target == nil {
		return
	}
	if IsHiddenFormProxy(target) {
		RecorderLog().Msg("Hidden form proxy click filtered")
		return
	}

	carousel := DetectCarousel(r.doc, target)

	// Native double-click: merge into the pending click on the same target
	// instead of emitting a second action.
	if ev.Detail > 1 {
		if pc, ok := r.pendingClicks[target]; ok && ev.Timestamp-pc.at <= r.config.DoubleClickSpacingMs+r.config.DoubleClickMergeMs {
			detail := ev.Detail
			r.patch(pc.actionID, func(a *Action) {
				a.ClickCount = detail
			})
			return
		}
	}

	if !r.admitClick(target, carousel, ev.Timestamp) {
		return
	}

	// A click inside a hovered dropdown proves the hover mattered; the
	// hover is emitted first so replay reproduces open-then-click.
	r.emitRetroactiveHover(target, ev.Timestamp)

	isSubmit := isFormSubmitControl(target)
	intent := ClassifyClick(target, ClassifyFlags{
		IsCarousel:   carousel.IsCarouselControl,
		IsFormSubmit: isSubmit,
	})

	selector := r.engine.GenerateSelectors(r.doc, target)
	action := &Action{
		ID:         uuid.New().String(),
		Type:       ActionClick,
		Timestamp:  r.relative(ev.Timestamp),
		URL:        r.currentURL,
		Selector:   &selector,
		Button:     ev.Button,
		ClickCount: 1,
		Intent:     &intent,
	}
	if carousel.IsCarouselControl {
		c := carousel
		action.Carousel = &c
	}

	if !r.emit(action) {
		return
	}

	r.lastClickAt[target] = ev.Timestamp
	r.rememberLinkable(action.ID, ev.Timestamp)
	r.trackPendingClick(target, action.ID, ev.Timestamp)

	if intent.Type == IntentFormSubmit {
		r.lastSubmitAt[target] = ev.Timestamp
		r.observeSubmitOutcome(action.ID, ev.Timestamp)
	}
}

// admitClick applies intent-aware suppression: a plain repeat inside the
// suppress window is dropped, carousel controls are exempt but throttled,
// submit controls get the long window.
func (r *Recorder) admitClick(target *html.Node, carousel CarouselContext, ts int64) bool {
	if carousel.IsCarouselControl {
		lim, ok := r.carouselLimiters[target]
		if !ok {
			window := time.Duration(r.config.CarouselBurstWindow) * time.Millisecond
			lim = rate.NewLimiter(rate.Limit(float64(r.config.CarouselBurstLimit)/window.Seconds()), r.config.CarouselBurstLimit)
			r.carouselLimiters[target] = lim
		}
		if !lim.AllowN(time.UnixMilli(ts), 1) {
			RecorderLog().Msg("Carousel click storm throttled")
			return false
		}
		return true
	}

	if last, ok := r.lastSubmitAt[target]; ok && ts-last < r.config.SubmitWindowMs {
		RecorderLog().Int64("gap_ms", ts-last).Msg("Duplicate submit click suppressed")
		return false
	}
	if last, ok := r.lastClickAt[target]; ok && ts-last < r.config.ClickSuppressMs {
		return false
	}
	return true
}

// trackPendingClick opens the double-click merge window.
func (r *Recorder) trackPendingClick(target *html.Node, actionID string, ts int64) {
	r.pendingClicks[target] = &pendingClick{actionID: actionID, at: ts}

	r.schedule(r.config.DoubleClickMergeMs, func() {
		if pc, ok := r.pendingClicks[target]; ok && pc.actionID == actionID {
			delete(r.pendingClicks, target)
		}
	})
}

// observeSubmitOutcome watches for a URL change within the observation
// window, then patches the submit click with the verdict. A recorder that
// stopped in the meantime drops the patch silently.
func (r *Recorder) observeSubmitOutcome(actionID string, clickTs int64) {
	r.schedule(r.config.AjaxObserveMs, func() {
		navigated := r.lastNavMs > clickTs
		r.patch(actionID, func(a *Action) {
			v := navigated
			a.ExpectsNavigation = &v
			a.IsAjaxForm = !navigated
			a.ClickType = "submit"
		})
	})
}

// ========================================
// Form submit / navigation / scroll
// ========================================

// handleFormSubmit records a native form submission that did not come
// through a tracked submit click (keyboard submit, script-driven).
func (r *Recorder) handleFormSubmit(ev RawEvent) {
	r.forceFlushTyping("submit")

	target := ev.Target
	if target == nil {
		return
	}
	selector := r.engine.GenerateSelectors(r.doc, target)
	r.emit(&Action{
		ID:        uuid.New().String(),
		Type:      ActionSubmit,
		Timestamp: r.relative(ev.Timestamp),
		URL:       r.currentURL,
		Selector:  &selector,
	})
}

func (r *Recorder) handleNavigation(ev RawEvent) {
	r.forceFlushTyping("navigation")

	from := r.currentURL
	to := ev.URL
	if to == "" || to == from {
		return
	}
	r.lastNavMs = ev.Timestamp
	r.currentURL = to

	r.emit(&Action{
		ID:        uuid.New().String(),
		Type:      ActionNavigation,
		Timestamp: r.relative(ev.Timestamp),
		URL:       to,
		FromURL:   from,
		ToURL:     to,
	})
}

func (r *Recorder) handleScroll(ev RawEvent) {
	r.forceFlushTyping("scroll")

	action := &Action{
		ID:        uuid.New().String(),
		Type:      ActionScroll,
		Timestamp: r.relative(ev.Timestamp),
		URL:       r.currentURL,
		ScrollX:   ev.ScrollX,
		ScrollY:   ev.ScrollY,
	}
	if ev.Target != nil {
		selector := r.engine.GenerateSelectors(r.doc, ev.Target)
		action.Selector = &selector
		action.ScrollTarget = "element"
	} else {
		action.ScrollTarget = "window"
	}
	r.emit(action)
}

// ========================================
// Emission
// ========================================

// relative converts an absolute event timestamp to the recording epoch.
func (r *Recorder) relative(absMs int64) int64 {
	rel := absMs - r.startMs
	if rel < 0 {
		rel = 0
	}
	return rel
}

// emit stamps, gates, and delivers an action. Returns false when the dedup
// gate suppressed it.
func (r *Recorder) emit(a *Action) bool {
	r.timing.Stamp(a)
	if !r.dedup.Admit(a) {
		RecorderLog().Str("type", string(a.Type)).Msg("Duplicate action suppressed")
		return false
	}
	r.emitted[a.ID] = a
	id := a.ID
	r.schedule(r.patchRetentionMs(), func() {
		delete(r.emitted, id)
	})
	if r.sink != nil {
		r.sink(*a)
	}
	return true
}

// patchRetentionMs is how long an emitted action stays addressable for
// identity patches: the longest deferred window that can still mutate it.
func (r *Recorder) patchRetentionMs() int64 {
	retain := r.config.DropdownLinkageMs
	if r.config.AjaxObserveMs > retain {
		retain = r.config.AjaxObserveMs
	}
	if w := r.config.DoubleClickSpacingMs + r.config.DoubleClickMergeMs; w > retain {
		retain = w
	}
	return retain
}

// patch applies one identity-addressed mutation to an already-emitted
// action and re-delivers it. Unknown IDs (cleared by Stop or aged out of
// the retention window) are ignored.
func (r *Recorder) patch(id string, mutate func(*Action)) {
	a, ok := r.emitted[id]
	if !ok {
		return
	}
	mutate(a)
	if r.sink != nil {
		r.sink(*a)
	}
}
