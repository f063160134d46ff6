package metrics

import (
	"fmt"
	"time"
)

// DiscoveryStats aggregates discovery index activity.
type DiscoveryStats struct {
	Queries      uint64        `json:"queries"`
	TotalResults uint64        `json:"totalResults"`
	TotalTime    time.Duration `json:"totalTime"`
}

// GenerationStats aggregates SDK generator activity.
type GenerationStats struct {
	Total          uint64        `json:"total"`
	CacheHits      uint64        `json:"cacheHits"`
	TotalTime      time.Duration `json:"totalTime"`
	ToolsGenerated uint64        `json:"toolsGenerated"`
	MaxToolsPerGen uint64        `json:"maxToolsPerGen"`
}

// AvgTime returns the mean generation time, zero when nothing was generated.
func (g GenerationStats) AvgTime() time.Duration {
	if g.Total == 0 {
		return 0
	}
	return g.TotalTime / time.Duration(g.Total)
}

// AvgTools returns the mean tool count per generation.
func (g GenerationStats) AvgTools() uint64 {
	if g.Total == 0 {
		return 0
	}
	return g.ToolsGenerated / g.Total
}

// CacheHitRate returns the fraction of generations served from cache.
func (g GenerationStats) CacheHitRate() float64 {
	if g.Total == 0 {
		return 0
	}
	return float64(g.CacheHits) / float64(g.Total)
}

// ExecutionStats aggregates sandbox runtime activity.
type ExecutionStats struct {
	Total     uint64        `json:"total"`
	Timeouts  uint64        `json:"timeouts"`
	Errors    uint64        `json:"errors"`
	TotalTime time.Duration `json:"totalTime"`
}

// ToolCallStats aggregates IPC bridge activity.
type ToolCallStats struct {
	Total     uint64        `json:"total"`
	Errors    uint64        `json:"errors"`
	TotalTime time.Duration `json:"totalTime"`
}

// SkillStats aggregates skill store activity.
type SkillStats struct {
	Saves    uint64 `json:"saves"`
	Loads    uint64 `json:"loads"`
	Searches uint64 `json:"searches"`
	Deletes  uint64 `json:"deletes"`
}

// Snapshot is a point-in-time structured view of all collected metrics.
type Snapshot struct {
	Discovery  DiscoveryStats    `json:"discovery"`
	Generation GenerationStats   `json:"generation"`
	Execution  ExecutionStats    `json:"execution"`
	ToolCalls  ToolCallStats     `json:"toolCalls"`
	Skills     SkillStats        `json:"skills"`
	Detections map[string]uint64 `json:"detections"`

	RecentDiscovery  []DiscoveryEvent `json:"recentDiscovery,omitempty"`
	RecentExecutions []ExecutionEvent `json:"recentExecutions,omitempty"`
	RecentToolCalls  []ToolCallEvent  `json:"recentToolCalls,omitempty"`
	RecentSkills     []SkillEvent     `json:"recentSkills,omitempty"`
}

// Snapshot returns a consistent copy of all aggregated metrics.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		Discovery: DiscoveryStats{
			Queries:      c.discoveryQueries.Load(),
			TotalResults: c.discoveryResults.Load(),
			TotalTime:    time.Duration(c.discoveryTimeNs.Load()),
		},
		Generation: GenerationStats{
			Total:          c.generations.Load(),
			CacheHits:      c.generationCacheHits.Load(),
			TotalTime:      time.Duration(c.generationTimeNs.Load()),
			ToolsGenerated: c.toolsGenerated.Load(),
			MaxToolsPerGen: c.maxToolsGenerated.Load(),
		},
		Execution: ExecutionStats{
			Total:     c.executions.Load(),
			Timeouts:  c.executionTimeouts.Load(),
			Errors:    c.executionErrors.Load(),
			TotalTime: time.Duration(c.executionTimeNs.Load()),
		},
		ToolCalls: ToolCallStats{
			Total:     c.toolCalls.Load(),
			Errors:    c.toolCallErrors.Load(),
			TotalTime: time.Duration(c.toolCallTimeNs.Load()),
		},
		Skills: SkillStats{
			Saves:    c.skillSaves.Load(),
			Loads:    c.skillLoads.Load(),
			Searches: c.skillSearches.Load(),
			Deletes:  c.skillDeletes.Load(),
		},
		Detections: make(map[string]uint64),
	}

	c.mu.Lock()
	for k, v := range c.detectionsByKind {
		s.Detections[k] = v
	}
	s.RecentDiscovery = c.recentDiscovery.items()
	s.RecentExecutions = c.recentExecution.items()
	s.RecentToolCalls = c.recentToolCalls.items()
	s.RecentSkills = c.recentSkills.items()
	c.mu.Unlock()

	return s
}

// Flatten returns the snapshot as a flat key/value map.
// Keys are dotted stage-qualified names, e.g. "execution.timeouts".
func (c *Collector) Flatten() map[string]any {
	s := c.Snapshot()
	out := map[string]any{
		"discovery.queries":         s.Discovery.Queries,
		"discovery.total_results":   s.Discovery.TotalResults,
		"discovery.total_time_ms":   s.Discovery.TotalTime.Milliseconds(),
		"generation.total":          s.Generation.Total,
		"generation.cache_hits":     s.Generation.CacheHits,
		"generation.cache_hit_rate": s.Generation.CacheHitRate(),
		"generation.total_time_ms":  s.Generation.TotalTime.Milliseconds(),
		"generation.avg_time_ms":    s.Generation.AvgTime().Milliseconds(),
		"generation.tools_total":    s.Generation.ToolsGenerated,
		"generation.tools_avg":      s.Generation.AvgTools(),
		"generation.tools_max":      s.Generation.MaxToolsPerGen,
		"execution.total":           s.Execution.Total,
		"execution.timeouts":        s.Execution.Timeouts,
		"execution.errors":          s.Execution.Errors,
		"execution.total_time_ms":   s.Execution.TotalTime.Milliseconds(),
		"tool_calls.total":          s.ToolCalls.Total,
		"tool_calls.errors":         s.ToolCalls.Errors,
		"tool_calls.total_time_ms":  s.ToolCalls.TotalTime.Milliseconds(),
		"skills.saves":              s.Skills.Saves,
		"skills.loads":              s.Skills.Loads,
		"skills.searches":           s.Skills.Searches,
		"skills.deletes":            s.Skills.Deletes,
	}
	for kind, n := range s.Detections {
		out[fmt.Sprintf("detections.%s", kind)] = n
	}
	return out
}
