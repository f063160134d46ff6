package pii

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonwraymond/codemode/metrics"
)

// TokenPrefix is the fixed prefix of every PII token.
const TokenPrefix = "[[PII:"

// Errors returned by pattern registration.
var (
	ErrEmptyKind  = errors.New("pii: pattern kind must not be empty")
	ErrNilPattern = errors.New("pii: pattern must not be nil")
)

// Built-in pattern kinds.
const (
	KindEmail      = "email"
	KindSSN        = "ssn"
	KindCreditCard = "credit_card"
	KindAPIKey     = "api_key"
	KindPhone      = "phone"
)

// pattern pairs a kind with its compiled detector.
type pattern struct {
	kind string
	re   *regexp.Regexp
}

// builtinPatterns are the default detectors, ordered so that more specific
// shapes match before broader ones (credit cards and SSNs before phone
// numbers, which would otherwise swallow their digit runs).
var builtinPatterns = []pattern{
	{KindEmail, regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)},

	// SSN: 123-45-6789 or 123 45 6789
	{KindSSN, regexp.MustCompile(`\b\d{3}[-\s]\d{2}[-\s]\d{4}\b`)},

	// Visa, Mastercard, Amex, Discover with optional spaces/dashes.
	{KindCreditCard, regexp.MustCompile(`\b4\d{3}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
	{KindCreditCard, regexp.MustCompile(`\b5[1-5]\d{2}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
	{KindCreditCard, regexp.MustCompile(`\b3[47]\d{2}[-\s]?\d{6}[-\s]?\d{5}\b`)},
	{KindCreditCard, regexp.MustCompile(`\b6011[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},

	// API-key-shaped strings: vendor-prefixed secrets and AWS access key IDs.
	{KindAPIKey, regexp.MustCompile(`\b(?:sk|pk|rk)-[A-Za-z0-9_\-]{16,}\b`)},
	{KindAPIKey, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{KindAPIKey, regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36}\b`)},
	{KindAPIKey, regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9\-]{10,}\b`)},

	// US formats, then international with country code.
	{KindPhone, regexp.MustCompile(`(\+1[-\s]?)?\(\d{3}\)[-\s.]?\d{3}[-\s.]?\d{4}\b|\b(\+1[-\s]?)?\d{3}[-.]\d{3}[-.]\d{4}\b`)},
	{KindPhone, regexp.MustCompile(`\+\d{1,3}[-\s]?\d{1,4}[-\s]?\d{3,4}[-\s]?\d{3,4}\b`)},
}

// Config configures a Tokenizer.
type Config struct {
	// Logger receives warnings when a detector fails. Optional.
	Logger *zap.Logger

	// Collector receives a detection event per match. Optional.
	Collector *metrics.Collector

	// DisableBuiltins skips the built-in detectors, leaving only
	// patterns added via RegisterPattern.
	DisableBuiltins bool
}

// Tokenizer detects and reversibly redacts sensitive substrings.
//
// Contract:
// - Concurrency: safe for concurrent use; registration and tokenization
//   may interleave.
// - Errors: Tokenize never fails; a failing detector is skipped.
// - Ownership: the returned TokenMap is caller-owned and scoped to one
//   execution.
type Tokenizer struct {
	mu       sync.RWMutex
	patterns []pattern

	logger    *zap.Logger
	collector *metrics.Collector
}

// New creates a Tokenizer with the built-in detectors unless disabled.
func New(cfg Config) *Tokenizer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := cfg.Collector
	if collector == nil {
		collector = metrics.NewNop()
	}

	t := &Tokenizer{logger: logger, collector: collector}
	if !cfg.DisableBuiltins {
		t.patterns = append(t.patterns, builtinPatterns...)
	}
	return t
}

// RegisterPattern adds a custom detector under the given kind.
// Custom patterns run after the built-ins in registration order.
func (t *Tokenizer) RegisterPattern(kind string, re *regexp.Regexp) error {
	if kind == "" {
		return ErrEmptyKind
	}
	if re == nil {
		return ErrNilPattern
	}
	t.mu.Lock()
	t.patterns = append(t.patterns, pattern{kind: kind, re: re})
	t.mu.Unlock()
	return nil
}

// Tokenize replaces every detected sensitive substring with an opaque token
// and records the original value in the returned TokenMap. Identical values
// map to the same token within one call.
func (t *Tokenizer) Tokenize(text string) (string, *TokenMap) {
	m := NewTokenMap()
	return t.TokenizeInto(text, m), m
}

// TokenizeInto is Tokenize accumulating into an existing map, so repeated
// calls within one execution reuse tokens for repeated values.
func (t *Tokenizer) TokenizeInto(text string, m *TokenMap) string {
	if text == "" || m == nil {
		return text
	}

	t.mu.RLock()
	patterns := t.patterns
	t.mu.RUnlock()

	for _, p := range patterns {
		text = t.applyPattern(text, p, m)
	}
	return text
}

// applyPattern runs one detector, degrading to pass-through on panic.
func (t *Tokenizer) applyPattern(text string, p pattern, m *TokenMap) (out string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("pii detector failed, passing text through",
				zap.String("kind", p.kind),
				zap.Any("panic", r))
			out = text
		}
	}()

	return p.re.ReplaceAllStringFunc(text, func(match string) string {
		// Never re-tokenize an existing token.
		if strings.Contains(match, TokenPrefix) {
			return match
		}
		token := m.tokenFor(p.kind, match)
		t.collector.RecordDetection(p.kind)
		return token
	})
}

// Detokenize restores original values for every token of m present in text.
// Tokens from other maps are left untouched.
func (t *Tokenizer) Detokenize(text string, m *TokenMap) string {
	if m == nil || text == "" {
		return text
	}
	if !strings.Contains(text, TokenPrefix) {
		return text
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for token, original := range m.originals {
		text = strings.ReplaceAll(text, token, original)
	}
	return text
}

// Token describes a single issued PII token without its original value.
type Token struct {
	// ID is the token identifier embedded in the replacement text.
	ID string

	// Kind is the detector kind that produced the token.
	Kind string
}

// TokenMap holds the reversible token -> original mapping for one execution.
// It must never be shared or merged across concurrent executions.
type TokenMap struct {
	mu        sync.RWMutex
	originals map[string]string // token -> original
	byValue   map[string]string // original -> token, for dedup
	tokens    []Token
}

// NewTokenMap creates an empty TokenMap.
func NewTokenMap() *TokenMap {
	return &TokenMap{
		originals: make(map[string]string),
		byValue:   make(map[string]string),
	}
}

// tokenFor returns the token for a value, issuing a new one on first sight.
func (m *TokenMap) tokenFor(kind, value string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token, ok := m.byValue[value]; ok {
		return token
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	token := fmt.Sprintf("%s%s:%s]]", TokenPrefix, kind, id)
	m.originals[token] = value
	m.byValue[value] = token
	m.tokens = append(m.tokens, Token{ID: id, Kind: kind})
	return token
}

// Len returns the number of issued tokens.
func (m *TokenMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.originals)
}

// Tokens returns the issued tokens (ids and kinds only, no originals).
func (m *TokenMap) Tokens() []Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Token(nil), m.tokens...)
}

// Clear drops all mappings. Called at execution end so originals do not
// outlive the execution that produced them.
func (m *TokenMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.originals = make(map[string]string)
	m.byValue = make(map[string]string)
	m.tokens = nil
}
