package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/jonwraymond/codemode/discovery"
	"github.com/jonwraymond/codemode/metrics"
	"github.com/jonwraymond/codemode/pii"
)

// DefaultMaxCalls caps tool calls per execution.
const DefaultMaxCalls = 100

// maxLineBytes bounds a single wire message.
const maxLineBytes = 4 << 20

// Executor is the external Tool Executor. It owns per-tool authorization
// and effects; the bridge propagates its errors verbatim.
type Executor interface {
	// Invoke performs the tool's effect and returns its JSON-shaped result.
	Invoke(ctx context.Context, tool string, args map[string]any) (any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, tool string, args map[string]any) (any, error)

// Invoke calls f.
func (f ExecutorFunc) Invoke(ctx context.Context, tool string, args map[string]any) (any, error) {
	return f(ctx, tool, args)
}

// CallRecord captures one bridged tool invocation for observability.
type CallRecord struct {
	// Tool is the invoked tool name.
	Tool string `json:"tool"`

	// Args are the arguments as received from the sandbox (tokenized form).
	Args map[string]any `json:"args,omitempty"`

	// Result is the tokenized result on success.
	Result any `json:"result,omitempty"`

	// Error is the failure message, local rejections included.
	Error string `json:"error,omitempty"`

	// DurationMs is the call's wall-clock time in milliseconds.
	DurationMs int64 `json:"durationMs"`
}

// Config configures a Bridge for one execution.
type Config struct {
	// Executor performs the actual tool effects. Required.
	Executor Executor

	// Tools is the tool set the SDK was generated for. Calls to any
	// other name are rejected locally. An empty set rejects every call.
	Tools []discovery.Descriptor

	// Tokenizer and TokenMap enable PII handling: arguments are
	// detokenized before reaching the executor, results are tokenized
	// into TokenMap on the way back. Both optional; set together.
	Tokenizer *pii.Tokenizer
	TokenMap  *pii.TokenMap

	// MaxCalls caps tool calls per execution. Default: DefaultMaxCalls.
	MaxCalls int

	// CallTimeout bounds each executor invocation. Zero means bounded
	// only by the serve context (the execution timeout).
	CallTimeout time.Duration

	// Logger is optional.
	Logger *zap.Logger

	// Collector receives a tool call event per call. Optional.
	Collector *metrics.Collector
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Executor == nil {
		return errors.New("bridge: Executor is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.MaxCalls == 0 {
		c.MaxCalls = DefaultMaxCalls
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Collector == nil {
		c.Collector = metrics.NewNop()
	}
}

// Bridge serves the tool-call protocol for a single execution.
//
// Contract:
// - Concurrency: Serve runs on one goroutine; Records may be read
//   concurrently with Serve.
// - Context: Serve returns when the reader closes or ctx is done; an
//   unanswered call at context expiry is part of the execution timeout.
// - Errors: local rejections and executor failures are answered over the
//   wire, never returned from Serve.
type Bridge struct {
	cfg     Config
	allowed map[string]discovery.Descriptor
	schemas map[string]*sjsonschema.Schema

	mu      sync.Mutex
	records []CallRecord
	calls   int
}

// New creates a Bridge, compiling each tool's parameter schema for
// argument validation.
func New(cfg Config) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	allowed := make(map[string]discovery.Descriptor, len(cfg.Tools))
	schemas := make(map[string]*sjsonschema.Schema, len(cfg.Tools))
	for _, d := range cfg.Tools {
		allowed[d.Name] = d
		if d.InputSchema == nil {
			continue
		}
		sch, err := compileSchema(d)
		if err != nil {
			return nil, fmt.Errorf("bridge: compile schema for %q: %w", d.Name, err)
		}
		schemas[d.Name] = sch
	}

	return &Bridge{cfg: cfg, allowed: allowed, schemas: schemas}, nil
}

// compileSchema round-trips the descriptor's schema through JSON into the
// validator's document model.
func compileSchema(d discovery.Descriptor) (*sjsonschema.Schema, error) {
	raw, err := json.Marshal(d.InputSchema)
	if err != nil {
		return nil, err
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	compiler := sjsonschema.NewCompiler()
	url := "codemode:///" + d.Name + ".json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// Serve reads tool_call messages from r and writes correlated responses
// to w until r is exhausted or ctx is done.
func (b *Bridge) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			b.cfg.Logger.Warn("bridge: undecodable message", zap.Error(err))
			continue
		}
		if msg.Type != MsgToolCall {
			b.respond(w, errorMessage(msg.ID, fmt.Errorf("%w: unexpected message type %q", ErrProtocol, msg.Type)))
			continue
		}

		tool, _ := msg.Payload["tool"].(string)
		args, _ := msg.Payload["args"].(map[string]any)

		result, err := b.Call(ctx, tool, args)
		if err != nil {
			b.respond(w, errorMessage(msg.ID, err))
			continue
		}
		b.respond(w, resultMessage(msg.ID, result))
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("bridge: read: %w", err)
	}
	return nil
}

// Call performs one gated tool invocation. Exposed for hosts that bridge
// in-process rather than over pipes.
func (b *Bridge) Call(ctx context.Context, tool string, args map[string]any) (any, error) {
	start := time.Now()

	result, err := b.call(ctx, tool, args)
	elapsed := time.Since(start)

	record := CallRecord{Tool: tool, Args: args, DurationMs: elapsed.Milliseconds()}
	if err != nil {
		record.Error = err.Error()
	} else {
		record.Result = result
	}
	b.mu.Lock()
	b.records = append(b.records, record)
	b.mu.Unlock()

	b.cfg.Collector.RecordToolCall(tool, err != nil, elapsed)
	return result, err
}

func (b *Bridge) call(ctx context.Context, tool string, args map[string]any) (any, error) {
	if tool == "" {
		return nil, fmt.Errorf("%w: missing tool name", ErrProtocol)
	}

	// Security gate: reject unknown names before anything else so they
	// can never reach the executor.
	if _, ok := b.allowed[tool]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotAllowed, tool)
	}

	b.mu.Lock()
	if b.calls >= b.cfg.MaxCalls {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: max %d", ErrCallLimit, b.cfg.MaxCalls)
	}
	b.calls++
	b.mu.Unlock()

	if args == nil {
		args = map[string]any{}
	}
	if sch := b.schemas[tool]; sch != nil {
		if err := sch.Validate(normalize(args)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
	}

	// Restore real values only for the executor, which legitimately
	// needs them.
	sent := args
	if b.cfg.Tokenizer != nil && b.cfg.TokenMap != nil {
		sent, _ = mapStrings(args, func(s string) string {
			return b.cfg.Tokenizer.Detokenize(s, b.cfg.TokenMap)
		}).(map[string]any)
	}

	callCtx := ctx
	if b.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.cfg.CallTimeout)
		defer cancel()
	}

	result, err := b.cfg.Executor.Invoke(callCtx, tool, sent)
	if err != nil {
		return nil, &ToolError{Tool: tool, Err: err}
	}

	// Redact results before they flow back toward the model-visible side.
	if b.cfg.Tokenizer != nil && b.cfg.TokenMap != nil {
		result = mapStrings(result, func(s string) string {
			return b.cfg.Tokenizer.TokenizeInto(s, b.cfg.TokenMap)
		})
	}
	return result, nil
}

func (b *Bridge) respond(w io.Writer, msg Message) {
	data, err := msg.encode()
	if err != nil {
		b.cfg.Logger.Warn("bridge: encode response", zap.Error(err))
		data, _ = errorMessage(msg.ID, fmt.Errorf("%w: unencodable response", ErrProtocol)).encode()
	}
	if _, err := w.Write(data); err != nil {
		b.cfg.Logger.Debug("bridge: response write failed", zap.Error(err))
	}
}

// Records returns a copy of all recorded calls.
func (b *Bridge) Records() []CallRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]CallRecord(nil), b.records...)
}

// mapStrings rewrites every string in a JSON-shaped value.
func mapStrings(v any, f func(string) string) any {
	switch val := v.(type) {
	case string:
		return f(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = mapStrings(item, f)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = mapStrings(item, f)
		}
		return out
	default:
		return v
	}
}

// normalize round-trips args through JSON so the validator sees canonical
// number types regardless of how the host constructed them.
func normalize(args map[string]any) any {
	data, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return args
	}
	return out
}
