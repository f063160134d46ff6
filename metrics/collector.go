package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRecentCapacity is the default capacity of each recent-event ring buffer.
const DefaultRecentCapacity = 128

// Outcome classifies how an execution finished.
type Outcome string

// Execution outcomes.
const (
	OutcomeOK      Outcome = "ok"
	OutcomeError   Outcome = "error"
	OutcomeTimeout Outcome = "timeout"
)

// DiscoveryEvent records a single discovery index search.
type DiscoveryEvent struct {
	Keyword     string        `json:"keyword"`
	DetailLevel string        `json:"detailLevel"`
	Results     int           `json:"results"`
	Elapsed     time.Duration `json:"elapsed"`
	At          time.Time     `json:"at"`
}

// GenerationEvent records a single SDK generation (or cache hit).
type GenerationEvent struct {
	Language string        `json:"language"`
	Tools    int           `json:"tools"`
	CacheHit bool          `json:"cacheHit"`
	Elapsed  time.Duration `json:"elapsed"`
	At       time.Time     `json:"at"`
}

// ExecutionEvent records one sandboxed code execution.
type ExecutionEvent struct {
	Language string        `json:"language"`
	Outcome  Outcome       `json:"outcome"`
	Elapsed  time.Duration `json:"elapsed"`
	At       time.Time     `json:"at"`
}

// DetectionEvent records one PII detection by pattern kind.
type DetectionEvent struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
}

// ToolCallEvent records one bridged tool call.
type ToolCallEvent struct {
	Tool    string        `json:"tool"`
	Failed  bool          `json:"failed"`
	Elapsed time.Duration `json:"elapsed"`
	At      time.Time     `json:"at"`
}

// SkillEvent records one skill store operation.
type SkillEvent struct {
	Op   string    `json:"op"`
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// Collector aggregates events from all codemode components.
//
// Contract:
// - Concurrency: safe for concurrent use by multiple goroutines.
// - Errors: recording never fails and never panics.
// - Ownership: snapshots are caller-owned copies.
type Collector struct {
	discoveryQueries atomic.Uint64
	discoveryResults atomic.Uint64
	discoveryTimeNs  atomic.Int64

	generations         atomic.Uint64
	generationCacheHits atomic.Uint64
	generationTimeNs    atomic.Int64
	toolsGenerated      atomic.Uint64
	maxToolsGenerated   atomic.Uint64

	executions        atomic.Uint64
	executionTimeouts atomic.Uint64
	executionErrors   atomic.Uint64
	executionTimeNs   atomic.Int64

	toolCalls       atomic.Uint64
	toolCallErrors  atomic.Uint64
	toolCallTimeNs  atomic.Int64

	skillSaves     atomic.Uint64
	skillLoads     atomic.Uint64
	skillSearches  atomic.Uint64
	skillDeletes   atomic.Uint64

	mu               sync.Mutex
	detectionsByKind map[string]uint64
	recentDiscovery  *ring[DiscoveryEvent]
	recentExecution  *ring[ExecutionEvent]
	recentToolCalls  *ring[ToolCallEvent]
	recentSkills     *ring[SkillEvent]

	prom *promMirror
	now  func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithRecentCapacity sets the capacity of the recent-event ring buffers.
// Values below 1 fall back to DefaultRecentCapacity.
func WithRecentCapacity(n int) Option {
	return func(c *Collector) {
		if n < 1 {
			n = DefaultRecentCapacity
		}
		c.recentDiscovery = newRing[DiscoveryEvent](n)
		c.recentExecution = newRing[ExecutionEvent](n)
		c.recentToolCalls = newRing[ToolCallEvent](n)
		c.recentSkills = newRing[SkillEvent](n)
	}
}

// New creates a Collector.
func New(opts ...Option) *Collector {
	c := &Collector{
		detectionsByKind: make(map[string]uint64),
		recentDiscovery:  newRing[DiscoveryEvent](DefaultRecentCapacity),
		recentExecution:  newRing[ExecutionEvent](DefaultRecentCapacity),
		recentToolCalls:  newRing[ToolCallEvent](DefaultRecentCapacity),
		recentSkills:     newRing[SkillEvent](DefaultRecentCapacity),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewNop returns a collector that aggregates but is never exported.
// It exists so components can unconditionally emit events.
func NewNop() *Collector { return New() }

// RecordDiscovery records one discovery index search.
func (c *Collector) RecordDiscovery(keyword, detailLevel string, results int, elapsed time.Duration) {
	c.discoveryQueries.Add(1)
	c.discoveryResults.Add(uint64(results))
	c.discoveryTimeNs.Add(int64(elapsed))

	ev := DiscoveryEvent{Keyword: keyword, DetailLevel: detailLevel, Results: results, Elapsed: elapsed, At: c.now()}
	c.mu.Lock()
	c.recentDiscovery.push(ev)
	c.mu.Unlock()

	c.prom.recordDiscovery(elapsed)
}

// RecordGeneration records one SDK generation or cache hit.
func (c *Collector) RecordGeneration(language string, tools int, cacheHit bool, elapsed time.Duration) {
	c.generations.Add(1)
	if cacheHit {
		c.generationCacheHits.Add(1)
	}
	c.generationTimeNs.Add(int64(elapsed))
	c.toolsGenerated.Add(uint64(tools))
	for {
		cur := c.maxToolsGenerated.Load()
		if uint64(tools) <= cur || c.maxToolsGenerated.CompareAndSwap(cur, uint64(tools)) {
			break
		}
	}

	c.prom.recordGeneration(language, cacheHit, elapsed)
}

// RecordExecution records one sandboxed execution.
func (c *Collector) RecordExecution(language string, outcome Outcome, elapsed time.Duration) {
	c.executions.Add(1)
	switch outcome {
	case OutcomeTimeout:
		c.executionTimeouts.Add(1)
	case OutcomeError:
		c.executionErrors.Add(1)
	}
	c.executionTimeNs.Add(int64(elapsed))

	ev := ExecutionEvent{Language: language, Outcome: outcome, Elapsed: elapsed, At: c.now()}
	c.mu.Lock()
	c.recentExecution.push(ev)
	c.mu.Unlock()

	c.prom.recordExecution(language, outcome, elapsed)
}

// RecordDetection records one PII detection by pattern kind.
func (c *Collector) RecordDetection(kind string) {
	c.mu.Lock()
	c.detectionsByKind[kind]++
	c.mu.Unlock()

	c.prom.recordDetection(kind)
}

// RecordToolCall records one bridged tool call.
func (c *Collector) RecordToolCall(tool string, failed bool, elapsed time.Duration) {
	c.toolCalls.Add(1)
	if failed {
		c.toolCallErrors.Add(1)
	}
	c.toolCallTimeNs.Add(int64(elapsed))

	ev := ToolCallEvent{Tool: tool, Failed: failed, Elapsed: elapsed, At: c.now()}
	c.mu.Lock()
	c.recentToolCalls.push(ev)
	c.mu.Unlock()

	c.prom.recordToolCall(tool, failed, elapsed)
}

// RecordSkill records one skill store operation ("save", "load", "search", "delete").
func (c *Collector) RecordSkill(op, name string) {
	switch op {
	case "save":
		c.skillSaves.Add(1)
	case "load":
		c.skillLoads.Add(1)
	case "search":
		c.skillSearches.Add(1)
	case "delete":
		c.skillDeletes.Add(1)
	}

	ev := SkillEvent{Op: op, Name: name, At: c.now()}
	c.mu.Lock()
	c.recentSkills.push(ev)
	c.mu.Unlock()

	c.prom.recordSkill(op)
}

// ring is a fixed-capacity ring buffer of recent events.
type ring[T any] struct {
	buf  []T
	next int
	full bool
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	r.buf[r.next] = v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// items returns events oldest-first.
func (r *ring[T]) items() []T {
	if !r.full {
		return append([]T(nil), r.buf[:r.next]...)
	}
	out := make([]T, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
