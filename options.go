package codemode

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jonwraymond/codemode/bridge"
	"github.com/jonwraymond/codemode/discovery"
	"github.com/jonwraymond/codemode/metrics"
	"github.com/jonwraymond/codemode/pii"
	"github.com/jonwraymond/codemode/skill"
)

// Default configuration values.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxTimeout   = 2 * time.Minute
	DefaultMaxToolCalls = 100
)

// Errors returned by Options validation.
var (
	ErrRegistryRequired = errors.New("codemode: Registry is required")
	ErrExecutorRequired = errors.New("codemode: Executor is required")
)

// Options configures an Engine.
type Options struct {
	// Registry supplies the live tool list.
	// Required.
	Registry discovery.Registry

	// Executor performs bridged tool invocations.
	// Required.
	Executor bridge.Executor

	// Skills persists saved snippets.
	// Optional; if nil, an in-memory store is used and skills do not
	// survive the process.
	Skills skill.Store

	// Tokenizer redacts sensitive values from tool results before they
	// enter the sandbox. Optional; if nil, one with the built-in
	// detectors is created. Set DisablePII to pass values through as-is.
	Tokenizer *pii.Tokenizer

	// DisablePII turns off redaction entirely.
	DisablePII bool

	// Collector receives operational metrics.
	// Optional; if nil, a private collector is created.
	Collector *metrics.Collector

	// DefaultTimeout applies to executions that request none.
	// Default: 30s
	DefaultTimeout time.Duration

	// MaxTimeout is the ceiling requested timeouts are clamped to.
	// Default: 2m
	MaxTimeout time.Duration

	// MaxToolCalls limits bridged calls per execution.
	// Default: 100
	MaxToolCalls int

	// MaxOutputBytes caps each captured stream per execution.
	// Default: 1 MiB
	MaxOutputBytes int

	// PythonPath and NodePath override the interpreter binaries.
	PythonPath string
	NodePath   string

	// Logger is used for operational logging.
	// Optional; if nil, logging is disabled.
	Logger *zap.Logger
}

// validate checks that required fields are set.
func (o *Options) validate() error {
	if o.Registry == nil {
		return ErrRegistryRequired
	}
	if o.Executor == nil {
		return ErrExecutorRequired
	}
	return nil
}

// applyDefaults sets default values for unset optional fields.
func (o *Options) applyDefaults() {
	if o.Skills == nil {
		o.Skills = skill.NewMemoryStore()
	}
	if o.Collector == nil {
		o.Collector = metrics.New()
	}
	if o.Tokenizer == nil && !o.DisablePII {
		o.Tokenizer = pii.New(pii.Config{Logger: o.Logger, Collector: o.Collector})
	}
	if o.DefaultTimeout == 0 {
		o.DefaultTimeout = DefaultTimeout
	}
	if o.MaxTimeout == 0 {
		o.MaxTimeout = DefaultMaxTimeout
	}
	if o.MaxToolCalls == 0 {
		o.MaxToolCalls = DefaultMaxToolCalls
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}
