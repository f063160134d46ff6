package sdk

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/jonwraymond/codemode/discovery"
	"github.com/jonwraymond/codemode/metrics"
)

// ErrNameCollision indicates two tools map to the same target-language
// identifier after sanitizing.
var ErrNameCollision = errors.New("sdk: identifier collision")

// Bundle is the generated SDK for one execution.
type Bundle struct {
	// Language the bundle targets.
	Language Language

	// Source is the complete prelude source text.
	Source string

	// ToolNames are the tool names the bundle binds, sorted. The IPC
	// bridge uses this as its per-execution allowlist.
	ToolNames []string

	// Hash is the content hash the bundle was cached under.
	Hash string
}

// Config configures a Generator.
type Config struct {
	// Logger is optional.
	Logger *zap.Logger

	// Collector receives a generation event per call. Optional.
	Collector *metrics.Collector
}

// Generator produces SDK bundles, caching by content hash.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: ErrNameCollision, ErrUnsupportedLanguage.
// - Ownership: bundles are immutable; callers may share them.
type Generator struct {
	mu    sync.Mutex
	cache map[string]Bundle

	logger    *zap.Logger
	collector *metrics.Collector
}

// NewGenerator creates a Generator.
func NewGenerator(cfg Config) *Generator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Collector == nil {
		cfg.Collector = metrics.NewNop()
	}
	return &Generator{
		cache:     make(map[string]Bundle),
		logger:    cfg.Logger,
		collector: cfg.Collector,
	}
}

// Generate returns the SDK bundle for the tool set and language, serving
// repeated identical requests from cache.
func (g *Generator) Generate(tools []discovery.Descriptor, lang Language) (Bundle, error) {
	start := time.Now()

	hash, err := bundleHash(tools, lang)
	if err != nil {
		return Bundle{}, err
	}

	g.mu.Lock()
	cached, hit := g.cache[hash]
	g.mu.Unlock()
	if hit {
		g.collector.RecordGeneration(string(lang), len(tools), true, time.Since(start))
		return cached, nil
	}

	bundle, err := Generate(tools, lang)
	if err != nil {
		return Bundle{}, err
	}
	bundle.Hash = hash

	g.mu.Lock()
	g.cache[hash] = bundle
	g.mu.Unlock()

	g.collector.RecordGeneration(string(lang), len(tools), false, time.Since(start))
	g.logger.Debug("sdk generated",
		zap.String("language", string(lang)),
		zap.Int("tools", len(tools)),
		zap.Duration("elapsed", time.Since(start)))
	return bundle, nil
}

// Generate is the pure, uncached generation function. Identical tool sets
// (order-insensitive) and language yield byte-identical source. An empty
// tool set is legal and yields the bare prelude, which still provides
// result capture for executions that call no tools.
func Generate(tools []discovery.Descriptor, lang Language) (Bundle, error) {
	sorted := append([]discovery.Descriptor(nil), tools...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	bindings, err := bind(sorted, lang)
	if err != nil {
		return Bundle{}, err
	}

	var source string
	switch lang {
	case Python3:
		source = renderPython(bindings)
	case JavaScript:
		source = renderJavaScript(bindings)
	default:
		return Bundle{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	names := make([]string, len(sorted))
	for i, d := range sorted {
		names[i] = d.Name
	}
	return Bundle{Language: lang, Source: source, ToolNames: names}, nil
}

// binding is one tool rendered as a callable.
type binding struct {
	tool   string
	ident  string
	doc    string
	params []param
	// freeform is true when the tool has no schema and the binding
	// accepts arbitrary keyword arguments.
	freeform bool
}

// param is one parameter derived from the tool's input schema.
type param struct {
	name     string
	ident    string
	required bool
}

// bind derives bindings for all tools, rejecting identifier collisions.
func bind(sorted []discovery.Descriptor, lang Language) ([]binding, error) {
	reserved := reservedWords(lang)
	byIdent := make(map[string]string, len(sorted))
	bindings := make([]binding, 0, len(sorted))

	for _, d := range sorted {
		ident := sanitizeIdent(d.Name, reserved)
		if prev, clash := byIdent[ident]; clash {
			return nil, fmt.Errorf("%w: tools %q and %q both map to %q",
				ErrNameCollision, prev, d.Name, ident)
		}
		byIdent[ident] = d.Name

		b := binding{tool: d.Name, ident: ident, doc: d.Description}
		if schema := d.Schema(); schema == nil || len(schema.Properties) == 0 {
			b.freeform = true
		} else {
			b.params = paramsFor(schema, reserved)
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

// paramsFor orders required parameters as the schema lists them, then
// optional parameters alphabetically.
func paramsFor(schema *jsonschema.Schema, reserved map[string]bool) []param {
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	var params []param
	for _, name := range schema.Required {
		if _, ok := schema.Properties[name]; !ok {
			continue
		}
		params = append(params, param{name: name, ident: sanitizeIdent(name, reserved), required: true})
	}

	var optional []string
	for name := range schema.Properties {
		if !required[name] {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	for _, name := range optional {
		params = append(params, param{name: name, ident: sanitizeIdent(name, reserved)})
	}
	return params
}

// sanitizeIdent maps a tool or parameter name onto a valid identifier in
// the target language. Invalid runes become underscores; a leading digit
// gains an underscore prefix; reserved words gain an underscore suffix.
func sanitizeIdent(name string, reserved map[string]bool) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	ident := b.String()
	if ident == "" {
		ident = "_"
	}
	if r := rune(ident[0]); unicode.IsDigit(r) {
		ident = "_" + ident
	}
	if reserved[ident] {
		ident += "_"
	}
	return ident
}

// bundleHash fingerprints a generation request: language plus each tool's
// name, description, and marshaled schema.
func bundleHash(tools []discovery.Descriptor, lang Language) (string, error) {
	sorted := append([]discovery.Descriptor(nil), tools...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	h.Write([]byte(lang))
	for _, d := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(d.Name))
		h.Write([]byte{0})
		h.Write([]byte(d.Description))
		if d.InputSchema != nil {
			data, err := json.Marshal(d.InputSchema)
			if err != nil {
				return "", fmt.Errorf("sdk: hash schema for %q: %w", d.Name, err)
			}
			h.Write(data)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func reservedWords(lang Language) map[string]bool {
	var words []string
	switch lang {
	case Python3:
		words = pythonReserved
	case JavaScript:
		words = javascriptReserved
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var pythonReserved = []string{
	"False", "None", "True", "and", "as", "assert", "async", "await",
	"break", "class", "continue", "def", "del", "elif", "else", "except",
	"finally", "for", "from", "global", "if", "import", "in", "is",
	"lambda", "nonlocal", "not", "or", "pass", "raise", "return", "try",
	"while", "with", "yield", "result",
}

var javascriptReserved = []string{
	"break", "case", "catch", "class", "const", "continue", "debugger",
	"default", "delete", "do", "else", "export", "extends", "finally",
	"for", "function", "if", "import", "in", "instanceof", "let", "new",
	"return", "super", "switch", "this", "throw", "try", "typeof", "var",
	"void", "while", "with", "yield", "result",
}
