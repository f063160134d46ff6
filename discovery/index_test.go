package discovery

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/codemode/metrics"
)

func testRegistry() StaticRegistry {
	return StaticRegistry{
		{Tool: mcp.Tool{Name: "read_file", Description: "Read a file from disk"}, Origin: "builtin"},
		{Tool: mcp.Tool{Name: "write_file", Description: "Write a file to disk"}, Origin: "builtin"},
		{Tool: mcp.Tool{Name: "delete_file", Description: "Delete a file"}, Origin: "builtin"},
		{Tool: mcp.Tool{
			Name:        "http_get",
			Description: "Fetch a URL and read the response body",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{"url": {Type: "string"}},
				Required:   []string{"url"},
			},
		}, Origin: "mcp:web"},
	}
}

func newTestIndex(t *testing.T, opts ...func(*Config)) *Index {
	t.Helper()
	cfg := Config{Registry: testRegistry()}
	for _, opt := range opts {
		opt(&cfg)
	}
	ix, err := NewIndex(cfg)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	if err := ix.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return ix
}

func TestDescriptorSchema(t *testing.T) {
	typed := Descriptor{Tool: mcp.Tool{
		Name:        "http_get",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}}
	if typed.Schema() == nil {
		t.Error("Schema() = nil for a typed input schema")
	}

	// InputSchema may carry other representations; those render as no
	// schema rather than failing.
	foreign := Descriptor{Tool: mcp.Tool{
		Name:        "raw",
		InputSchema: map[string]any{"type": "object"},
	}}
	if got := foreign.Schema(); got != nil {
		t.Errorf("Schema() = %v for a map-shaped input schema, want nil", got)
	}
	if h := render(foreign, DetailFull, 1.0); h.Schema != nil {
		t.Errorf("render schema = %v, want nil", h.Schema)
	}

	none := Descriptor{Tool: mcp.Tool{Name: "bare"}}
	if got := none.Schema(); got != nil {
		t.Errorf("Schema() = %v for no input schema, want nil", got)
	}
}

func TestNewIndex_RequiresRegistry(t *testing.T) {
	if _, err := NewIndex(Config{}); err == nil {
		t.Fatal("expected error for missing registry")
	}
}

func TestSearch_ExactBeforeSubstring(t *testing.T) {
	ix := newTestIndex(t)
	hits, err := ix.Search("read_file", DetailNameOnly)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 || hits[0].Name != "read_file" {
		t.Fatalf("hits = %+v, want read_file first", hits)
	}
	if hits[0].Score != 1.0 {
		t.Errorf("exact match score = %v, want 1.0", hits[0].Score)
	}
}

func TestSearch_SubstringRanksAboveUnrelated(t *testing.T) {
	ix := newTestIndex(t)
	hits, err := ix.Search("read", DetailNameOnly)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hits for 'read'")
	}
	if hits[0].Name != "read_file" {
		t.Errorf("top hit = %q, want read_file", hits[0].Name)
	}
	for _, h := range hits {
		if h.Name == "delete_file" && h.Score >= hits[0].Score {
			t.Errorf("delete_file ranked at %v, not below read_file at %v", h.Score, hits[0].Score)
		}
	}
}

func TestSearch_FuzzyMatch(t *testing.T) {
	ix := newTestIndex(t)
	// One transposition away from "read_file".
	hits, err := ix.Search("raed_file", DetailNameOnly)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	found := false
	for _, h := range hits {
		if h.Name == "read_file" {
			found = true
		}
	}
	if !found {
		t.Errorf("fuzzy search missed read_file: %+v", hits)
	}
}

func TestSearch_TiesAlphabetical(t *testing.T) {
	ix := newTestIndex(t)
	hits, err := ix.Search("file", DetailNameOnly)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	var names []string
	for _, h := range hits {
		if h.Score == 0.75 {
			names = append(names, h.Name)
		}
	}
	want := []string{"delete_file", "read_file", "write_file"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("substring tier order = %v, want %v", names, want)
	}
}

func TestSearch_ZeroResultsIsNotAnError(t *testing.T) {
	ix := newTestIndex(t)
	hits, err := ix.Search("zzzzzzzz", DetailNameOnly)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %+v, want none", hits)
	}
}

func TestSearch_DetailLevelsBoundPayload(t *testing.T) {
	ix := newTestIndex(t)

	nameOnly, _ := ix.Search("http_get", DetailNameOnly)
	if len(nameOnly) == 0 {
		t.Fatal("expected hit")
	}
	if nameOnly[0].Description != "" || nameOnly[0].Schema != nil {
		t.Errorf("name-only hit leaks payload: %+v", nameOnly[0])
	}

	withDesc, _ := ix.Search("http_get", DetailNameAndDesc)
	if withDesc[0].Description == "" || withDesc[0].Schema != nil {
		t.Errorf("name-and-description hit wrong: %+v", withDesc[0])
	}

	full, _ := ix.Search("http_get", DetailFull)
	if full[0].Schema == nil || full[0].Origin != "mcp:web" {
		t.Errorf("full hit missing schema or origin: %+v", full[0])
	}
}

func TestSearch_InvalidDetailLevel(t *testing.T) {
	ix := newTestIndex(t)
	if _, err := ix.Search("read", DetailLevel("huge")); !errors.Is(err, ErrInvalidDetailLevel) {
		t.Errorf("err = %v, want ErrInvalidDetailLevel", err)
	}
}

func TestSearch_Idempotent(t *testing.T) {
	ix := newTestIndex(t)
	first, err := ix.Search("file", DetailFull)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	second, err := ix.Search("file", DetailFull)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeat search differs:\n%+v\n%+v", first, second)
	}
}

func TestSearch_EmitsMetrics(t *testing.T) {
	c := metrics.New()
	ix := newTestIndex(t, func(cfg *Config) { cfg.Collector = c })

	if _, err := ix.Search("read", DetailNameOnly); err != nil {
		t.Fatalf("Search: %v", err)
	}
	s := c.Snapshot()
	if s.Discovery.Queries != 1 {
		t.Errorf("Queries = %d, want 1", s.Discovery.Queries)
	}
	if len(s.RecentDiscovery) != 1 || s.RecentDiscovery[0].Keyword != "read" {
		t.Errorf("RecentDiscovery = %+v", s.RecentDiscovery)
	}
}

func TestGetAndDescriptors(t *testing.T) {
	ix := newTestIndex(t)

	d, err := ix.Get("read_file")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Origin != "builtin" {
		t.Errorf("Origin = %q, want builtin", d.Origin)
	}

	if _, err := ix.Get("nope"); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("Get unknown err = %v, want ErrUnknownTool", err)
	}

	ds, err := ix.Descriptors([]string{"read_file", "http_get"})
	if err != nil {
		t.Fatalf("Descriptors: %v", err)
	}
	if len(ds) != 2 {
		t.Errorf("Descriptors len = %d, want 2", len(ds))
	}
	if _, err := ix.Descriptors([]string{"read_file", "nope"}); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("Descriptors unknown err = %v, want ErrUnknownTool", err)
	}
}

func TestRefresh_ReplacesSnapshot(t *testing.T) {
	reg := &mutableRegistry{tools: testRegistry()}
	ix, err := NewIndex(Config{Registry: reg})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	if err := ix.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(ix.Names()) != 4 {
		t.Fatalf("Names len = %d, want 4", len(ix.Names()))
	}

	reg.tools = StaticRegistry{
		{Tool: mcp.Tool{Name: "only_tool"}, Origin: "builtin"},
	}
	if err := ix.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := ix.Names(); len(got) != 1 || got[0] != "only_tool" {
		t.Errorf("Names = %v, want [only_tool]", got)
	}
}

type mutableRegistry struct {
	tools StaticRegistry
}

func (r *mutableRegistry) ListTools(ctx context.Context) ([]Descriptor, error) {
	return r.tools.ListTools(ctx)
}
