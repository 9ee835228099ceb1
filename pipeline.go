package main

import (
	"context"
	"sync"
	"time"

	"Scribe/pkg/types"

	"github.com/google/uuid"
)

// ========================================
// ActionPipeline - emission fan-out
// ========================================

// ActionPipeline sits behind the recorder's sink: it associates actions
// with the active capture session, buffers recent history, writes through
// to the store, and fans out to subscribers. Patches (same action ID) flow
// through the same path; the store upserts them.
type ActionPipeline struct {
	ctx   context.Context
	store *ActionStore

	actionChan chan Action

	sessions      map[string]*SessionState
	activeSession string
	sessionMu     sync.RWMutex

	subscribers   []ActionSink
	subscribersMu sync.RWMutex

	// LRU of closed sessions' recent actions, so repeated queries do not
	// hit SQLite every time.
	historyCache *SessionHistoryLRU

	backpressure *BackpressureController

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// SessionState is the in-memory runtime state of one capture session.
type SessionState struct {
	Session       *types.CaptureSession
	StartTime     int64
	ActionCount   int64
	LastActionAt  int64
	RecentActions *RingBuffer
}

// ========================================
// RingBuffer - bounded recent-action history
// ========================================

type RingBuffer struct {
	data  []Action
	size  int
	head  int
	count int
	mu    sync.RWMutex
}

func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		data: make([]Action, size),
		size: size,
	}
}

func (r *RingBuffer) Push(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.head] = a
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

func (r *RingBuffer) GetRecent(n int) []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.count {
		n = r.count
	}
	if n == 0 {
		return nil
	}

	result := make([]Action, n)
	start := (r.head - n + r.size) % r.size
	for i := 0; i < n; i++ {
		result[i] = r.data[(start+i)%r.size]
	}
	return result
}

func (r *RingBuffer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.count = 0
}

func (r *RingBuffer) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// ========================================
// SessionHistoryLRU - closed-session query cache
// ========================================

const DefaultHistoryCacheCapacity = 20

type SessionHistoryLRU struct {
	capacity int
	cache    map[string][]Action
	order    []string
	mu       sync.Mutex
}

func NewSessionHistoryLRU(capacity int) *SessionHistoryLRU {
	return &SessionHistoryLRU{
		capacity: capacity,
		cache:    make(map[string][]Action),
	}
}

func (c *SessionHistoryLRU) Get(sessionID string) ([]Action, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	actions, ok := c.cache[sessionID]
	if ok {
		c.moveToEnd(sessionID)
	}
	return actions, ok
}

func (c *SessionHistoryLRU) Set(sessionID string, actions []Action) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[sessionID]; !exists {
		c.order = append(c.order, sessionID)
	} else {
		c.moveToEnd(sessionID)
	}
	c.cache[sessionID] = actions
	c.evictIfNeeded()
}

func (c *SessionHistoryLRU) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.cache, sessionID)
	c.removeFromOrder(sessionID)
}

func (c *SessionHistoryLRU) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func (c *SessionHistoryLRU) moveToEnd(sessionID string) {
	c.removeFromOrder(sessionID)
	c.order = append(c.order, sessionID)
}

func (c *SessionHistoryLRU) removeFromOrder(sessionID string) {
	for i, id := range c.order {
		if id == sessionID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *SessionHistoryLRU) evictIfNeeded() {
	for len(c.cache) > c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.cache, oldest)
	}
}

// ========================================
// BackpressureController - high-frequency action sampling
// ========================================

// BackpressureController protects the pipeline from pathological event
// rates. Scroll is the only action kind a user can physically produce
// fast enough to matter; everything else is always critical.
type BackpressureController struct {
	maxPerSecond int
	windowStart  int64
	windowCount  int
	sampler      *ActionSampler
	dropped      int64
	mu           sync.Mutex
}

type ActionSampler struct {
	counter int
	rate    int
}

func (s *ActionSampler) ShouldKeep() bool {
	s.counter++
	return s.counter%s.rate == 0
}

func NewBackpressureController(maxPerSecond int) *BackpressureController {
	return &BackpressureController{
		maxPerSecond: maxPerSecond,
		sampler:      &ActionSampler{rate: 2},
	}
}

func (b *BackpressureController) ShouldProcess(a Action) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UnixMilli()
	if now-b.windowStart >= 1000 {
		b.windowStart = now
		b.windowCount = 0
	}
	b.windowCount++

	if b.windowCount <= b.maxPerSecond {
		return true
	}
	if a.Type != ActionScroll {
		return true
	}
	if b.sampler.ShouldKeep() {
		return true
	}
	b.dropped++
	return false
}

func (b *BackpressureController) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// ========================================
// ActionPipeline implementation
// ========================================

func NewActionPipeline(ctx context.Context, store *ActionStore) *ActionPipeline {
	return &ActionPipeline{
		ctx:          ctx,
		store:        store,
		actionChan:   make(chan Action, 10000),
		sessions:     make(map[string]*SessionState),
		historyCache: NewSessionHistoryLRU(DefaultHistoryCacheCapacity),
		backpressure: NewBackpressureController(200),
		stopChan:     make(chan struct{}),
	}
}

func (p *ActionPipeline) Start() {
	p.wg.Add(1)
	go p.processLoop()

	p.loadOpenSessions()
}

func (p *ActionPipeline) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

// Subscribe registers a downstream consumer. Subscribers see every
// delivery, patches included.
func (p *ActionPipeline) Subscribe(sink ActionSink) {
	p.subscribersMu.Lock()
	defer p.subscribersMu.Unlock()
	p.subscribers = append(p.subscribers, sink)
}

// Ingest is the recorder's sink.
func (p *ActionPipeline) Ingest(a Action) {
	if !p.backpressure.ShouldProcess(a) {
		return
	}

	select {
	case p.actionChan <- a:
	default:
		// Channel full: scroll actions drop, everything else waits briefly.
		if a.Type == ActionScroll {
			return
		}
		select {
		case p.actionChan <- a:
		case <-time.After(500 * time.Millisecond):
			LogWarn("pipeline").
				Str("action_type", string(a.Type)).
				Msg("Action channel send timeout, action dropped")
		}
	}
}

func (p *ActionPipeline) processLoop() {
	defer p.wg.Done()

	for {
		select {
		case a := <-p.actionChan:
			p.processAction(a)
		case <-p.stopChan:
			// Drain whatever is queued before exiting.
			for {
				select {
				case a := <-p.actionChan:
					p.processAction(a)
				default:
					return
				}
			}
		}
	}
}

func (p *ActionPipeline) processAction(a Action) {
	p.sessionMu.Lock()
	sessionID := p.activeSession
	if a.SessionID != "" {
		sessionID = a.SessionID
	}
	a.SessionID = sessionID
	if state, ok := p.sessions[sessionID]; ok {
		state.ActionCount++
		state.LastActionAt = time.Now().UnixMilli()
		state.RecentActions.Push(a)
	}
	p.sessionMu.Unlock()

	if p.store != nil {
		if err := p.store.WriteAction(a); err != nil {
			LogError("pipeline").Err(err).Str("action_id", a.ID).Msg("Failed to persist action")
		}
	}

	p.subscribersMu.RLock()
	subs := p.subscribers
	p.subscribersMu.RUnlock()
	for _, sink := range subs {
		sink(a)
	}
}

// ========================================
// Session management
// ========================================

func (p *ActionPipeline) loadOpenSessions() {
	if p.store == nil {
		return
	}
	sessions, err := p.store.ListSessions("recording", 10)
	if err != nil {
		LogError("pipeline").Err(err).Msg("Failed to load open sessions")
		return
	}
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()
	for i := range sessions {
		s := sessions[i]
		p.sessions[s.ID] = &SessionState{
			Session:       &s,
			StartTime:     s.StartTime,
			RecentActions: NewRingBuffer(200),
		}
		p.activeSession = s.ID
	}
	if len(sessions) > 0 {
		SessionLog().Int("count", len(sessions)).Msg("Resumed open capture sessions")
	}
}

// StartSession opens a new capture session and makes it active.
func (p *ActionPipeline) StartSession(name, url string) string {
	session := &types.CaptureSession{
		ID:        uuid.New().String(),
		Name:      name,
		URL:       url,
		StartTime: time.Now().UnixMilli(),
		Status:    "recording",
	}

	p.sessionMu.Lock()
	p.sessions[session.ID] = &SessionState{
		Session:       session,
		StartTime:     session.StartTime,
		RecentActions: NewRingBuffer(200),
	}
	p.activeSession = session.ID
	p.sessionMu.Unlock()

	if p.store != nil {
		if err := p.store.CreateSession(session); err != nil {
			LogError("pipeline").Err(err).Msg("Failed to persist session")
		}
	}

	SessionLog().Str("session_id", session.ID).Str("url", url).Msg("Capture session started")
	return session.ID
}

// EndSession closes a session; its recent history moves to the LRU cache.
func (p *ActionPipeline) EndSession(sessionID, status string) {
	p.sessionMu.Lock()
	state, ok := p.sessions[sessionID]
	if ok {
		delete(p.sessions, sessionID)
		if p.activeSession == sessionID {
			p.activeSession = ""
		}
	}
	p.sessionMu.Unlock()

	if !ok {
		return
	}

	state.Session.Status = status
	state.Session.EndTime = time.Now().UnixMilli()
	state.Session.ActionCount = state.ActionCount
	p.historyCache.Set(sessionID, state.RecentActions.GetRecent(state.RecentActions.Size()))

	if p.store != nil {
		if err := p.store.UpdateSession(state.Session); err != nil {
			LogError("pipeline").Err(err).Msg("Failed to finalize session")
		}
	}

	SessionLog().Str("session_id", sessionID).Str("status", status).
		Int64("actions", state.ActionCount).Msg("Capture session ended")
}

func (p *ActionPipeline) ActiveSessionID() string {
	p.sessionMu.RLock()
	defer p.sessionMu.RUnlock()
	return p.activeSession
}

// LastActionAt returns the absolute ms timestamp of the newest action seen
// for an open session, zero when the session is not in memory.
func (p *ActionPipeline) LastActionAt(sessionID string) int64 {
	p.sessionMu.RLock()
	defer p.sessionMu.RUnlock()
	if state, ok := p.sessions[sessionID]; ok {
		return state.LastActionAt
	}
	return 0
}

func (p *ActionPipeline) GetSession(sessionID string) *types.CaptureSession {
	p.sessionMu.RLock()
	if state, ok := p.sessions[sessionID]; ok {
		s := *state.Session
		s.ActionCount = state.ActionCount
		p.sessionMu.RUnlock()
		return &s
	}
	p.sessionMu.RUnlock()

	if p.store == nil {
		return nil
	}
	s, err := p.store.GetSession(sessionID)
	if err != nil {
		return nil
	}
	return s
}

// GetRecentActions serves the live ring for an open session, the LRU cache
// for a recently closed one, and falls back to the store.
func (p *ActionPipeline) GetRecentActions(sessionID string, count int) []Action {
	p.sessionMu.RLock()
	if state, ok := p.sessions[sessionID]; ok {
		p.sessionMu.RUnlock()
		return state.RecentActions.GetRecent(count)
	}
	p.sessionMu.RUnlock()

	if cached, ok := p.historyCache.Get(sessionID); ok {
		if count < len(cached) {
			return cached[len(cached)-count:]
		}
		return cached
	}

	if p.store == nil {
		return nil
	}
	actions, err := p.store.ListActions(sessionID, 0)
	if err != nil {
		LogError("pipeline").Err(err).Str("session_id", sessionID).Msg("Failed to load actions")
		return nil
	}
	p.historyCache.Set(sessionID, actions)
	if count > 0 && count < len(actions) {
		return actions[len(actions)-count:]
	}
	return actions
}
