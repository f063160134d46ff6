package codemode

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/codemode/bridge"
	"github.com/jonwraymond/codemode/discovery"
	"github.com/jonwraymond/codemode/skill"
)

func testRegistry() discovery.StaticRegistry {
	return discovery.StaticRegistry{
		{Tool: mcp.Tool{Name: "read_file", Description: "read a file", InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"path": {Type: "string"}},
			Required:   []string{"path"},
		}}},
		{Tool: mcp.Tool{Name: "delete_file", Description: "delete a file"}},
		{Tool: mcp.Tool{Name: "send_email", Description: "send an email message"}},
	}
}

func noopExecutor() bridge.Executor {
	return bridge.ExecutorFunc(func(context.Context, string, map[string]any) (any, error) {
		return "ok", nil
	})
}

func newTestEngine(t *testing.T, mutate func(*Options)) *Engine {
	t.Helper()
	opts := Options{Registry: testRegistry(), Executor: noopExecutor()}
	if mutate != nil {
		mutate(&opts)
	}
	engine, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{Executor: noopExecutor()}); !errors.Is(err, ErrRegistryRequired) {
		t.Errorf("missing registry err = %v", err)
	}
	if _, err := New(Options{Registry: testRegistry()}); !errors.Is(err, ErrExecutorRequired) {
		t.Errorf("missing executor err = %v", err)
	}
}

func TestSearchTools_RanksSubstringAboveUnrelated(t *testing.T) {
	engine := newTestEngine(t, nil)

	hits, err := engine.SearchTools(context.Background(), "read", discovery.DetailNameOnly)
	if err != nil {
		t.Fatalf("SearchTools: %v", err)
	}
	if len(hits) == 0 || hits[0].Name != "read_file" {
		t.Fatalf("hits = %+v, want read_file first", hits)
	}
	for _, h := range hits {
		if h.Name == "delete_file" {
			t.Error("delete_file matched keyword \"read\"")
		}
	}
}

func TestSearchTools_Idempotent(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	first, err := engine.SearchTools(ctx, "file", discovery.DetailFull)
	if err != nil {
		t.Fatalf("SearchTools: %v", err)
	}
	second, err := engine.SearchTools(ctx, "file", discovery.DetailFull)
	if err != nil {
		t.Fatalf("SearchTools: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("result sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Name != second[i].Name || first[i].Score != second[i].Score {
			t.Errorf("result %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestExecuteCode_UnknownToolName(t *testing.T) {
	engine := newTestEngine(t, nil)

	_, err := engine.ExecuteCode(context.Background(), ExecuteParams{
		Code:     "result = 1",
		Language: "python3",
		Tools:    []string{"no_such_tool"},
	})
	if !errors.Is(err, discovery.ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}
}

func TestExecuteCode_Python(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	engine := newTestEngine(t, nil)

	res, err := engine.ExecuteCode(context.Background(), ExecuteParams{
		Code:     "result = sum(range(1000000))",
		Language: "python3",
	})
	if err != nil {
		t.Fatalf("ExecuteCode: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, stderr: %s", res.ExitCode, res.Stderr)
	}
	if res.Value != float64(499999500000) {
		t.Errorf("Value = %v, want 499999500000", res.Value)
	}
}

func TestSkillLifecycle(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	s := skill.Skill{
		Name:        "find_py",
		Language:    "python3",
		Code:        "result = [p for p in paths if p.endswith(\".py\")]",
		Description: "filter python files",
	}
	if err := engine.SaveSkill(ctx, s, skill.SaveOptions{}); err != nil {
		t.Fatalf("SaveSkill: %v", err)
	}

	// Same name again conflicts unless overwrite is requested.
	if err := engine.SaveSkill(ctx, s, skill.SaveOptions{}); !errors.Is(err, skill.ErrConflict) {
		t.Fatalf("duplicate err = %v, want ErrConflict", err)
	}
	if err := engine.SaveSkill(ctx, s, skill.SaveOptions{Overwrite: true}); err != nil {
		t.Fatalf("overwrite err = %v", err)
	}

	got, err := engine.LoadSkill(ctx, "find_py")
	if err != nil {
		t.Fatalf("LoadSkill: %v", err)
	}
	if got.Code != s.Code || got.Language != s.Language {
		t.Errorf("loaded %+v, want saved fields", got)
	}

	summaries, err := engine.ListSkills(ctx)
	if err != nil {
		t.Fatalf("ListSkills: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Name != "find_py" {
		t.Errorf("summaries = %+v", summaries)
	}

	hits, err := engine.SearchSkills(ctx, "python")
	if err != nil {
		t.Fatalf("SearchSkills: %v", err)
	}
	if len(hits) != 1 || hits[0].Name != "find_py" {
		t.Errorf("hits = %+v", hits)
	}

	if err := engine.DeleteSkill(ctx, "find_py"); err != nil {
		t.Fatalf("DeleteSkill: %v", err)
	}
	if _, err := engine.LoadSkill(ctx, "find_py"); !errors.Is(err, skill.ErrNotFound) {
		t.Errorf("load after delete err = %v, want ErrNotFound", err)
	}
}

func TestSaveSkill_RejectsUnknownLanguage(t *testing.T) {
	engine := newTestEngine(t, nil)

	err := engine.SaveSkill(context.Background(), skill.Skill{
		Name:     "bad",
		Language: "fortran",
		Code:     "x",
	}, skill.SaveOptions{})
	if err == nil {
		t.Fatal("expected error for unsupported language")
	}
}

func TestRunSkill(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	err := engine.SaveSkill(ctx, skill.Skill{
		Name:     "answer",
		Language: "python3",
		Code:     "result = 42",
	}, skill.SaveOptions{})
	if err != nil {
		t.Fatalf("SaveSkill: %v", err)
	}

	res, err := engine.RunSkill(ctx, "answer")
	if err != nil {
		t.Fatalf("RunSkill: %v", err)
	}
	if res.Value != float64(42) {
		t.Errorf("Value = %v, want 42", res.Value)
	}

	got, err := engine.LoadSkill(ctx, "answer")
	if err != nil {
		t.Fatalf("LoadSkill: %v", err)
	}
	if got.ExecutionCount != 1 || got.SuccessCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", got.ExecutionCount, got.SuccessCount)
	}
}

func TestRefreshTools(t *testing.T) {
	reg := &mutableRegistry{tools: testRegistry()}
	engine := newTestEngine(t, func(o *Options) { o.Registry = reg })
	ctx := context.Background()

	if hits, err := engine.SearchTools(ctx, "compress", discovery.DetailNameOnly); err != nil || len(hits) != 0 {
		t.Fatalf("before refresh hits = %v, err = %v", hits, err)
	}

	reg.tools = append(reg.tools, discovery.Descriptor{
		Tool: mcp.Tool{Name: "compress_file", Description: "compress a file"},
	})
	if err := engine.RefreshTools(ctx); err != nil {
		t.Fatalf("RefreshTools: %v", err)
	}

	hits, err := engine.SearchTools(ctx, "compress", discovery.DetailNameOnly)
	if err != nil || len(hits) != 1 || hits[0].Name != "compress_file" {
		t.Fatalf("after refresh hits = %v, err = %v", hits, err)
	}
}

// mutableRegistry lets tests swap the tool list between refreshes.
type mutableRegistry struct {
	tools discovery.StaticRegistry
}

func (r *mutableRegistry) ListTools(ctx context.Context) ([]discovery.Descriptor, error) {
	return r.tools.ListTools(ctx)
}

func TestOptions_PIIDefaults(t *testing.T) {
	opts := Options{Registry: testRegistry(), Executor: noopExecutor()}
	opts.applyDefaults()
	if opts.Tokenizer == nil {
		t.Error("Tokenizer = nil by default, want built-in detectors")
	}

	off := Options{Registry: testRegistry(), Executor: noopExecutor(), DisablePII: true}
	off.applyDefaults()
	if off.Tokenizer != nil {
		t.Error("Tokenizer set despite DisablePII")
	}
}

func TestExecuteCode_RedactsToolResults(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	engine := newTestEngine(t, func(o *Options) {
		o.Executor = bridge.ExecutorFunc(func(context.Context, string, map[string]any) (any, error) {
			return "contact alice@example.com for access", nil
		})
	})

	res, err := engine.ExecuteCode(context.Background(), ExecuteParams{
		Code:     "result = read_file(path=\"creds.txt\")",
		Language: "python3",
		Tools:    []string{"read_file"},
	})
	if err != nil {
		t.Fatalf("ExecuteCode: %v", err)
	}
	got, _ := res.Value.(string)
	if strings.Contains(got, "alice@example.com") {
		t.Errorf("Value = %q, raw address leaked into the sandbox", got)
	}
	if !strings.Contains(got, "[[PII:email:") {
		t.Errorf("Value = %q, want redaction token", got)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.SearchTools(ctx, "read", discovery.DetailNameOnly); err != nil {
		t.Fatalf("SearchTools: %v", err)
	}
	snap := engine.Metrics()
	if snap.Discovery.Queries != 1 {
		t.Errorf("Discovery.Queries = %d, want 1", snap.Discovery.Queries)
	}

	// Every skill operation shows up under its own counter.
	err := engine.SaveSkill(ctx, skill.Skill{Name: "s", Language: "python3", Code: "result = 1"}, skill.SaveOptions{})
	if err != nil {
		t.Fatalf("SaveSkill: %v", err)
	}
	if _, err := engine.LoadSkill(ctx, "s"); err != nil {
		t.Fatalf("LoadSkill: %v", err)
	}
	if _, err := engine.SearchSkills(ctx, "s"); err != nil {
		t.Fatalf("SearchSkills: %v", err)
	}
	if err := engine.DeleteSkill(ctx, "s"); err != nil {
		t.Fatalf("DeleteSkill: %v", err)
	}

	skills := engine.Metrics().Skills
	if skills.Saves != 1 || skills.Loads != 1 || skills.Searches != 1 || skills.Deletes != 1 {
		t.Errorf("Skills = %+v, want one of each operation", skills)
	}

	// A failed load records nothing.
	if _, err := engine.LoadSkill(ctx, "ghost"); err == nil {
		t.Fatal("expected ErrNotFound")
	}
	if got := engine.Metrics().Skills.Loads; got != 1 {
		t.Errorf("Loads after failed load = %d, want 1", got)
	}
}
