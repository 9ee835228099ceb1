package main

import (
	"sort"
	"sync"
	"time"
)

// ========================================
// Clock - deferred task scheduling
// ========================================

// CancelFunc cancels a scheduled task. Safe to call more than once and
// after the task has fired.
type CancelFunc func()

// Clock abstracts time for the capture state machine. All of the
// recorder's short deferred windows (double-click merge, AJAX observation,
// dedup cleanup, dropdown linkage) run through it, so tests can drive them
// deterministically with ManualClock.
type Clock interface {
	NowMs() int64
	AfterMs(delayMs int64, fn func()) CancelFunc
}

// ========================================
// realClock - wall time
// ========================================

type realClock struct{}

func NewRealClock() Clock { return realClock{} }

func (realClock) NowMs() int64 {
	return time.Now().UnixMilli()
}

func (realClock) AfterMs(delayMs int64, fn func()) CancelFunc {
	t := time.AfterFunc(time.Duration(delayMs)*time.Millisecond, fn)
	return func() { t.Stop() }
}

// ========================================
// ManualClock - deterministic test time
// ========================================

// ManualClock only moves when Advance is called; due tasks fire inline on
// the advancing goroutine, preserving the single-writer model the recorder
// relies on.
type ManualClock struct {
	mu     sync.Mutex
	now    int64
	nextID int
	tasks  map[int]*manualTask
}

type manualTask struct {
	id  int
	due int64
	fn  func()
}

func NewManualClock(startMs int64) *ManualClock {
	return &ManualClock{now: startMs, tasks: make(map[int]*manualTask)}
}

func (c *ManualClock) NowMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterMs(delayMs int64, fn func()) CancelFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.tasks[id] = &manualTask{id: id, due: c.now + delayMs, fn: fn}
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.tasks, id)
	}
}

// Advance moves time forward and fires every task that becomes due, in due
// order. A task scheduling another task within the advanced span fires in
// the same call.
func (c *ManualClock) Advance(deltaMs int64) {
	c.mu.Lock()
	target := c.now + deltaMs
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*manualTask
		for _, t := range c.tasks {
			if t.due <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].due != due[j].due {
				return due[i].due < due[j].due
			}
			return due[i].id < due[j].id
		})
		next := due[0]
		delete(c.tasks, next.id)
		if next.due > c.now {
			c.now = next.due
		}
		c.mu.Unlock()

		next.fn()
	}
}

// Pending returns the number of scheduled tasks, for teardown assertions.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}
