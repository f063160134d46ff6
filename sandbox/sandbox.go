package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jonwraymond/codemode/bridge"
	"github.com/jonwraymond/codemode/discovery"
	"github.com/jonwraymond/codemode/metrics"
	"github.com/jonwraymond/codemode/pii"
	"github.com/jonwraymond/codemode/sdk"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxTimeout  = 2 * time.Minute
	DefaultMaxOutput   = 1 << 20 // per stream
	DefaultPythonPath  = "python3"
	DefaultNodePath    = "node"
)

// ErrSpawn indicates the interpreter process could not be started.
var ErrSpawn = errors.New("sandbox: process spawn failure")

// Request describes one code execution.
type Request struct {
	// Code is the source to run.
	Code string

	// Language selects the interpreter; see sdk.ParseLanguage for
	// accepted values.
	Language string

	// Timeout is the requested wall-clock limit. Zero means the
	// runtime default; values above the configured ceiling are clamped.
	Timeout time.Duration

	// Tools is the tool set this execution may call. Empty means no
	// tools are callable.
	Tools []discovery.Descriptor
}

// Result is the structured outcome of one execution. Timeouts and
// non-zero exits are results, not errors, so callers can distinguish
// "ran and failed" from "did not run".
type Result struct {
	// ExitCode is the interpreter's exit status; -1 when killed.
	ExitCode int `json:"exitCode"`

	// Duration is total wall-clock execution time.
	Duration time.Duration `json:"duration"`

	// Stdout and Stderr are the captured streams, truncated at the
	// configured cap, with the sentinel result line removed.
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// Value is the JSON value the code bound to "result", nil if absent.
	Value any `json:"value,omitempty"`

	// TimedOut is true when the wall-clock limit expired.
	TimedOut bool `json:"timedOut"`

	// ParseErr is the advisory error from an undecodable result line.
	ParseErr error `json:"-"`

	// ToolCalls records every bridged tool invocation.
	ToolCalls []bridge.CallRecord `json:"toolCalls,omitempty"`
}

// Config configures a Runtime.
type Config struct {
	// Executor performs bridged tool calls. Required.
	Executor bridge.Executor

	// Generator produces SDK bundles. Optional; a private one is
	// created when nil.
	Generator *sdk.Generator

	// Tokenizer enables PII handling on the bridge. Optional.
	Tokenizer *pii.Tokenizer

	// DefaultTimeout applies when a request carries none. Default 30s.
	DefaultTimeout time.Duration

	// MaxTimeout is the server-side ceiling requested timeouts are
	// clamped to. Default 2m.
	MaxTimeout time.Duration

	// MaxOutputBytes caps each captured stream. Default 1 MiB.
	MaxOutputBytes int

	// MaxToolCalls caps bridged calls per execution. Zero uses the
	// bridge default.
	MaxToolCalls int

	// PythonPath and NodePath name the interpreter binaries.
	PythonPath string
	NodePath   string

	// Logger is optional.
	Logger *zap.Logger

	// Collector receives an execution event per call. Optional.
	Collector *metrics.Collector
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Executor == nil {
		return errors.New("sandbox: Executor is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Generator == nil {
		c.Generator = sdk.NewGenerator(sdk.Config{Logger: c.Logger, Collector: c.Collector})
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.MaxTimeout == 0 {
		c.MaxTimeout = DefaultMaxTimeout
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = DefaultMaxOutput
	}
	if c.PythonPath == "" {
		c.PythonPath = DefaultPythonPath
	}
	if c.NodePath == "" {
		c.NodePath = DefaultNodePath
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Collector == nil {
		c.Collector = metrics.NewNop()
	}
}

// Runtime executes code requests in isolated interpreter processes.
//
// Contract:
// - Concurrency: safe for concurrent use; executions share no state.
// - Context: Execute honors cancellation; cancellation is treated like
//   a timeout.
// - Errors: validation and spawn failures return errors; timeouts and
//   interpreter failures return a Result.
type Runtime struct {
	cfg Config
}

// New creates a Runtime.
func New(cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &Runtime{cfg: cfg}, nil
}

// Execute runs one request to completion.
func (r *Runtime) Execute(ctx context.Context, req Request) (Result, error) {
	lang, err := sdk.ParseLanguage(req.Language)
	if err != nil {
		return Result{}, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	if timeout > r.cfg.MaxTimeout {
		timeout = r.cfg.MaxTimeout
	}

	bundle, err := r.cfg.Generator.Generate(req.Tools, lang)
	if err != nil {
		return Result{}, err
	}

	// The token map lives exactly as long as this execution.
	tokenMap := pii.NewTokenMap()
	defer tokenMap.Clear()

	br, err := bridge.New(bridge.Config{
		Executor:    r.cfg.Executor,
		Tools:       req.Tools,
		Tokenizer:   r.cfg.Tokenizer,
		TokenMap:    tokenMap,
		MaxCalls:    r.cfg.MaxToolCalls,
		CallTimeout: timeout,
		Logger:      r.cfg.Logger,
		Collector:   r.cfg.Collector,
	})
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	result, err := r.run(ctx, req.Code, lang, timeout, bundle, br)
	result.Duration = time.Since(start)
	result.ToolCalls = br.Records()

	outcome := metrics.OutcomeOK
	switch {
	case err != nil, result.ExitCode != 0 && !result.TimedOut:
		outcome = metrics.OutcomeError
	case result.TimedOut:
		outcome = metrics.OutcomeTimeout
	}
	r.cfg.Collector.RecordExecution(string(lang), outcome, result.Duration)

	return result, err
}

// run spawns the interpreter and supervises it to exit or timeout.
func (r *Runtime) run(ctx context.Context, code string, lang sdk.Language, timeout time.Duration, bundle sdk.Bundle, br *bridge.Bridge) (Result, error) {
	scratch, err := os.MkdirTemp("", "codemode-*")
	if err != nil {
		return Result{}, fmt.Errorf("%w: scratch dir: %v", ErrSpawn, err)
	}
	defer os.RemoveAll(scratch)

	entry, err := writeSources(scratch, code, lang, bundle)
	if err != nil {
		return Result{}, err
	}

	interpreter := r.cfg.PythonPath
	if lang == sdk.JavaScript {
		interpreter = r.cfg.NodePath
	}
	binary, err := exec.LookPath(interpreter)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s not found: %v", ErrSpawn, interpreter, err)
	}

	// Request pipe: child writes on fd 3, bridge reads.
	// Response pipe: bridge writes, child reads on fd 4.
	reqR, reqW, err := os.Pipe()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	respR, respW, err := os.Pipe()
	if err != nil {
		reqR.Close()
		reqW.Close()
		return Result{}, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout := newCapWriter(r.cfg.MaxOutputBytes)
	stderr := newCapWriter(r.cfg.MaxOutputBytes)

	cmd := exec.Command(binary, entry)
	cmd.Dir = scratch
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.ExtraFiles = []*os.File{reqW, respR}
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + scratch,
		"TMPDIR=" + scratch,
	}
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		reqR.Close()
		reqW.Close()
		respR.Close()
		respW.Close()
		return Result{}, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	// Parent copies of the child's pipe ends must close so reads see EOF.
	reqW.Close()
	respR.Close()

	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		if err := br.Serve(ctx, reqR, respW); err != nil && ctx.Err() == nil {
			r.cfg.Logger.Warn("bridge serve ended", zap.Error(err))
		}
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	var result Result
	select {
	case err := <-waitErr:
		result.ExitCode = exitCode(cmd, err)
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-waitErr // reap; no zombies
		result.ExitCode = -1
		result.TimedOut = true
	}

	// Closing the IPC channel unblocks the serve loop.
	reqR.Close()
	respW.Close()
	<-serveDone

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.Value, result.Stdout, result.ParseErr = extractResult(result.Stdout)
	if result.ParseErr != nil {
		r.cfg.Logger.Warn("sandbox result not decodable", zap.Error(result.ParseErr))
	}
	return result, nil
}

// writeSources lays out the scratch directory: the SDK prelude plus an
// entry file importing it ahead of the user code.
func writeSources(scratch, code string, lang sdk.Language, bundle sdk.Bundle) (string, error) {
	if err := os.WriteFile(filepath.Join(scratch, lang.FileName()), []byte(bundle.Source), 0o600); err != nil {
		return "", fmt.Errorf("%w: write sdk: %v", ErrSpawn, err)
	}

	var entry, body string
	switch lang {
	case sdk.Python3:
		entry = "main.py"
		body = "from sdk import *\n\n" + code + "\n"
	case sdk.JavaScript:
		entry = "main.js"
		body = "Object.assign(globalThis, require(\"./sdk.js\"));\n\n" + code + "\n"
	}
	path := filepath.Join(scratch, entry)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return "", fmt.Errorf("%w: write entry: %v", ErrSpawn, err)
	}
	return path, nil
}

// exitCode extracts the interpreter's exit status from Wait's error.
func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}
