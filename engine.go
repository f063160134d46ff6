package codemode

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonwraymond/codemode/discovery"
	"github.com/jonwraymond/codemode/metrics"
	"github.com/jonwraymond/codemode/sandbox"
	"github.com/jonwraymond/codemode/sdk"
	"github.com/jonwraymond/codemode/skill"
)

// Engine is the unified facade for code-mode tool use.
// It combines tool discovery, sandboxed execution with a generated SDK,
// and skill persistence into a single API.
//
// Contract:
// - Concurrency: safe for concurrent use; executions are isolated.
// - Context: all methods honor cancellation and deadlines.
// - Errors: operational failures use the package sentinel errors of the
//   subsystem that produced them; callers use errors.Is.
type Engine struct {
	index   *discovery.Index
	runtime *sandbox.Runtime
	skills  skill.Store
	metrics *metrics.Collector
	logger  *zap.Logger
	opts    Options
}

// New creates an Engine and performs an initial registry refresh.
func New(opts Options) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	index, err := discovery.NewIndex(discovery.Config{
		Registry:  opts.Registry,
		Logger:    opts.Logger,
		Collector: opts.Collector,
	})
	if err != nil {
		return nil, err
	}
	if err := index.Refresh(context.Background()); err != nil {
		return nil, err
	}

	runtime, err := sandbox.New(sandbox.Config{
		Executor:       opts.Executor,
		Tokenizer:      opts.Tokenizer,
		DefaultTimeout: opts.DefaultTimeout,
		MaxTimeout:     opts.MaxTimeout,
		MaxOutputBytes: opts.MaxOutputBytes,
		MaxToolCalls:   opts.MaxToolCalls,
		PythonPath:     opts.PythonPath,
		NodePath:       opts.NodePath,
		Logger:         opts.Logger,
		Collector:      opts.Collector,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		index:   index,
		runtime: runtime,
		skills:  opts.Skills,
		metrics: opts.Collector,
		logger:  opts.Logger,
		opts:    opts,
	}, nil
}

// ExecuteParams configures one code execution.
type ExecuteParams struct {
	// Code is the snippet to run.
	Code string

	// Language selects the interpreter, e.g. "python3" or "javascript".
	Language string

	// Timeout is the requested wall-clock limit. Zero uses the engine
	// default; values above the ceiling are clamped.
	Timeout time.Duration

	// Tools restricts which tools the snippet may call. Nil means every
	// currently indexed tool; an explicit empty slice means none.
	Tools []string
}

// Result is the structured outcome of one execution.
type Result = sandbox.Result

// ExecuteCode runs a code snippet in a sandboxed interpreter. The
// generated SDK binds exactly the resolved tool set; calls to anything
// else are rejected at the bridge without reaching the executor.
func (e *Engine) ExecuteCode(ctx context.Context, params ExecuteParams) (Result, error) {
	tools, err := e.resolveTools(params.Tools)
	if err != nil {
		return Result{}, err
	}
	return e.runtime.Execute(ctx, sandbox.Request{
		Code:     params.Code,
		Language: params.Language,
		Timeout:  params.Timeout,
		Tools:    tools,
	})
}

// resolveTools maps requested tool names to descriptors. A nil request
// selects the whole index.
func (e *Engine) resolveTools(names []string) ([]discovery.Descriptor, error) {
	if names == nil {
		return e.index.All(), nil
	}
	return e.index.Descriptors(names)
}

// RefreshTools re-reads the registry into the index. Call it when the
// registry's tool set changes.
func (e *Engine) RefreshTools(ctx context.Context) error {
	return e.index.Refresh(ctx)
}

// SearchTools ranks indexed tools against a keyword at the requested
// detail level.
func (e *Engine) SearchTools(_ context.Context, keyword string, level discovery.DetailLevel) ([]discovery.Hit, error) {
	return e.index.Search(keyword, level)
}

// SaveSkill persists a snippet under a name. Saving an existing name
// fails with skill.ErrConflict unless opts.Overwrite is set.
func (e *Engine) SaveSkill(ctx context.Context, s skill.Skill, opts skill.SaveOptions) error {
	if _, err := sdk.ParseLanguage(s.Language); err != nil {
		return err
	}
	if err := e.skills.Save(ctx, s, opts); err != nil {
		return err
	}
	e.metrics.RecordSkill("save", s.Name)
	e.logger.Debug("skill saved", zap.String("name", s.Name), zap.Bool("overwrite", opts.Overwrite))
	return nil
}

// LoadSkill returns a saved skill, code included.
func (e *Engine) LoadSkill(ctx context.Context, name string) (skill.Skill, error) {
	s, err := e.skills.Load(ctx, name)
	if err != nil {
		return skill.Skill{}, err
	}
	e.metrics.RecordSkill("load", name)
	return s, nil
}

// ListSkills returns summaries of all saved skills. Code bodies are
// omitted.
func (e *Engine) ListSkills(ctx context.Context) ([]skill.Summary, error) {
	return e.skills.List(ctx)
}

// SearchSkills ranks saved skills against a keyword over name and
// description.
func (e *Engine) SearchSkills(ctx context.Context, keyword string) ([]skill.Hit, error) {
	hits, err := e.skills.Search(ctx, keyword)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordSkill("search", keyword)
	return hits, nil
}

// DeleteSkill removes a saved skill.
func (e *Engine) DeleteSkill(ctx context.Context, name string) error {
	if err := e.skills.Delete(ctx, name); err != nil {
		return err
	}
	e.metrics.RecordSkill("delete", name)
	return nil
}

// RunSkill loads a saved skill, executes it, and updates its usage
// statistics. A run counts as successful when the interpreter exits
// zero without timing out.
func (e *Engine) RunSkill(ctx context.Context, name string) (Result, error) {
	s, err := e.LoadSkill(ctx, name)
	if err != nil {
		return Result{}, err
	}
	res, err := e.ExecuteCode(ctx, ExecuteParams{
		Code:     s.Code,
		Language: s.Language,
	})
	if err != nil {
		return res, err
	}
	success := res.ExitCode == 0 && !res.TimedOut
	if uerr := e.skills.RecordUse(ctx, name, success); uerr != nil {
		e.logger.Warn("skill usage update failed", zap.String("name", name), zap.Error(uerr))
	}
	return res, nil
}

// Metrics returns a point-in-time snapshot of engine counters.
func (e *Engine) Metrics() metrics.Snapshot {
	return e.metrics.Snapshot()
}

// Close releases the skill store.
func (e *Engine) Close() error {
	if err := e.skills.Close(); err != nil {
		return fmt.Errorf("codemode: close: %w", err)
	}
	return nil
}
