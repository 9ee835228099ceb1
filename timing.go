package main

// ========================================
// Action Timing Model
// ========================================

// TimingModel stamps each action's completedAt and enforces global
// monotonicity: no action's completion window may end before the previous
// emitted action's did. Timestamps themselves are never touched.
type TimingModel struct {
	config          TimingConfig
	lastCompletedAt int64
}

func NewTimingModel(config TimingConfig) *TimingModel {
	if config.DefaultKeyDelayMs <= 0 {
		config = DefaultTimingConfig()
	}
	return &TimingModel{config: config}
}

// Stamp computes completedAt = timestamp + estimate, clamped so it never
// precedes the previous emitted action's completedAt.
func (tm *TimingModel) Stamp(a *Action) {
	if a == nil {
		return
	}
	completed := a.Timestamp + tm.estimate(a)
	if completed < a.Timestamp {
		completed = a.Timestamp
	}
	if completed < tm.lastCompletedAt {
		completed = tm.lastCompletedAt
	}
	a.CompletedAt = completed
	tm.lastCompletedAt = completed
}

// Reset clears the monotonic floor, for a new recording session.
func (tm *TimingModel) Reset() {
	tm.lastCompletedAt = 0
}

// estimate is the type-specific completion duration. The switch is
// exhaustive over ActionType; unknown kinds fall through to zero so a new
// type cannot inflate the timeline silently.
func (tm *TimingModel) estimate(a *Action) int64 {
	switch a.Type {
	case ActionHover:
		if a.Duration > 0 {
			return a.Duration
		}
		return 0

	case ActionInput:
		delay := a.AvgKeyDelay
		if delay <= 0 {
			delay = tm.config.DefaultKeyDelayMs
		}
		return int64(len([]rune(a.Value))) * delay

	case ActionScroll:
		if a.ScrollTarget == "element" {
			return tm.config.ElementScrollMs
		}
		return tm.windowScrollestimate(a)

	case ActionClick:
		return tm.config.ClickCompleteMs

	case ActionSelect, ActionMultiSelect, ActionSubmit:
		return tm.config.FormCompleteMs

	case ActionNavigation:
		return tm.config.NavCompleteMs

	case ActionKeypress, ActionCheckpoint:
		return 0
	}
	return 0
}

// windowScrollestimate scales with scroll distance between the configured
// bounds.
func (tm *TimingModel) windowScrollestimate(a *Action) int64 {
	dist := int64(a.ScrollX)
	if dist < 0 {
		dist = -dist
	}
	dy := int64(a.ScrollY)
	if dy < 0 {
		dy = -dy
	}
	if dy > dist {
		dist = dy
	}

	// One millisecond per four pixels, clamped.
	est := dist / 4
	if est < tm.config.ScrollMinMs {
		est = tm.config.ScrollMinMs
	}
	if est > tm.config.ScrollMaxMs {
		est = tm.config.ScrollMaxMs
	}
	return est
}

// ========================================
// Dedup Gate
// ========================================

// DedupGate suppresses near-duplicate emissions. It compares each candidate
// against the previously emitted action: same type, inside the window, and
// matching type-specific identity fields means the candidate is dropped.
type DedupGate struct {
	windowMs int64
	lastType ActionType
	lastKey  string
	lastAt   int64
	primed   bool
}

func NewDedupGate(windowMs int64) *DedupGate {
	if windowMs <= 0 {
		windowMs = DefaultRecorderConfig().DedupTTLMs
	}
	return &DedupGate{windowMs: windowMs}
}

// Admit reports whether the action may be emitted, and records it when so.
// An intent that allows multiples (carousel, pagination, stepper) bypasses
// suppression entirely; those duplicates are legitimate.
func (g *DedupGate) Admit(a *Action) bool {
	if a == nil {
		return false
	}
	key := dedupKey(a)
	allowMultiple := a.Intent != nil && a.Intent.AllowMultiple
	if !allowMultiple && g.primed && a.Type == g.lastType && key == g.lastKey &&
		a.Timestamp-g.lastAt < g.windowMs {
		return false
	}
	g.lastType = a.Type
	g.lastKey = key
	g.lastAt = a.Timestamp
	g.primed = true
	return true
}

// Reset clears gate state on session boundaries.
func (g *DedupGate) Reset() {
	g.primed = false
	g.lastKey = ""
	g.lastType = ""
	g.lastAt = 0
}

// dedupKey builds the type-specific identity an action is deduplicated by.
// Exhaustive over ActionType: every kind names the fields that make two
// emissions "the same gesture".
func dedupKey(a *Action) string {
	switch a.Type {
	case ActionClick:
		return a.Selector.Key() + "|" + a.Button

	case ActionInput:
		return a.Selector.Key() + "|" + a.Value

	case ActionSelect, ActionMultiSelect:
		key := a.Selector.Key()
		for _, v := range a.Values {
			key += "|" + v
		}
		return key + "|" + a.Value

	case ActionNavigation:
		return a.FromURL + "|" + a.ToURL

	case ActionSubmit, ActionHover:
		return a.Selector.Key()

	case ActionScroll:
		return a.ScrollTarget + "|" + a.Selector.Key()

	case ActionKeypress:
		return a.Selector.Key() + "|" + a.Key

	case ActionCheckpoint:
		return a.Label
	}
	return string(a.Type)
}
