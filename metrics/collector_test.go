package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollector_RecordDiscovery(t *testing.T) {
	c := New()
	c.RecordDiscovery("read", "name-only", 3, 2*time.Millisecond)
	c.RecordDiscovery("write", "full", 0, time.Millisecond)

	s := c.Snapshot()
	if s.Discovery.Queries != 2 {
		t.Errorf("Queries = %d, want 2", s.Discovery.Queries)
	}
	if s.Discovery.TotalResults != 3 {
		t.Errorf("TotalResults = %d, want 3", s.Discovery.TotalResults)
	}
	if len(s.RecentDiscovery) != 2 {
		t.Fatalf("RecentDiscovery len = %d, want 2", len(s.RecentDiscovery))
	}
	if s.RecentDiscovery[0].Keyword != "read" {
		t.Errorf("first recent keyword = %q, want %q", s.RecentDiscovery[0].Keyword, "read")
	}
}

func TestCollector_GenerationAggregates(t *testing.T) {
	c := New()
	c.RecordGeneration("python3", 10, false, 50*time.Millisecond)
	c.RecordGeneration("python3", 25, false, 60*time.Millisecond)
	c.RecordGeneration("javascript", 8, true, 40*time.Millisecond)

	g := c.Snapshot().Generation
	if g.Total != 3 {
		t.Errorf("Total = %d, want 3", g.Total)
	}
	if g.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", g.CacheHits)
	}
	if g.MaxToolsPerGen != 25 {
		t.Errorf("MaxToolsPerGen = %d, want 25", g.MaxToolsPerGen)
	}
	if g.AvgTime() != 50*time.Millisecond {
		t.Errorf("AvgTime = %v, want 50ms", g.AvgTime())
	}
	if rate := g.CacheHitRate(); rate <= 0 || rate >= 1 {
		t.Errorf("CacheHitRate = %v, want in (0,1)", rate)
	}
}

func TestCollector_ExecutionOutcomes(t *testing.T) {
	c := New()
	c.RecordExecution("python3", OutcomeOK, time.Second)
	c.RecordExecution("python3", OutcomeTimeout, 30*time.Second)
	c.RecordExecution("javascript", OutcomeError, time.Second)

	e := c.Snapshot().Execution
	if e.Total != 3 || e.Timeouts != 1 || e.Errors != 1 {
		t.Errorf("Execution = %+v, want total 3, 1 timeout, 1 error", e)
	}
}

func TestCollector_DetectionsByKind(t *testing.T) {
	c := New()
	c.RecordDetection("email")
	c.RecordDetection("email")
	c.RecordDetection("ssn")

	d := c.Snapshot().Detections
	if d["email"] != 2 || d["ssn"] != 1 {
		t.Errorf("Detections = %v, want email:2 ssn:1", d)
	}
}

func TestCollector_Flatten(t *testing.T) {
	c := New()
	c.RecordExecution("python3", OutcomeTimeout, time.Second)
	c.RecordSkill("save", "find_py")
	c.RecordDetection("credit_card")

	flat := c.Flatten()
	if flat["execution.timeouts"] != uint64(1) {
		t.Errorf("execution.timeouts = %v, want 1", flat["execution.timeouts"])
	}
	if flat["skills.saves"] != uint64(1) {
		t.Errorf("skills.saves = %v, want 1", flat["skills.saves"])
	}
	if flat["detections.credit_card"] != uint64(1) {
		t.Errorf("detections.credit_card = %v, want 1", flat["detections.credit_card"])
	}
}

func TestCollector_RingBufferBounded(t *testing.T) {
	c := New(WithRecentCapacity(4))
	for i := 0; i < 10; i++ {
		c.RecordToolCall("t", false, time.Millisecond)
	}
	recent := c.Snapshot().RecentToolCalls
	if len(recent) != 4 {
		t.Errorf("RecentToolCalls len = %d, want 4", len(recent))
	}
}

func TestCollector_PrometheusMirror(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(WithRegistry(reg))
	c.RecordExecution("python3", OutcomeOK, time.Second)
	c.RecordDiscovery("read", "full", 1, time.Millisecond)
	c.RecordDetection("email")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		"codemode_executions_total",
		"codemode_discovery_queries_total",
		"codemode_pii_detections_total",
	} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := New()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				c.RecordToolCall("t", j%2 == 0, time.Microsecond)
				c.RecordDetection("email")
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	s := c.Snapshot()
	if s.ToolCalls.Total != 800 {
		t.Errorf("ToolCalls.Total = %d, want 800", s.ToolCalls.Total)
	}
	if s.Detections["email"] != 800 {
		t.Errorf("Detections[email] = %d, want 800", s.Detections["email"])
	}
}
