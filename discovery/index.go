package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonwraymond/codemode/metrics"
)

// Errors returned by the index.
var (
	ErrInvalidDetailLevel = errors.New("discovery: invalid detail level")
	ErrUnknownTool        = errors.New("discovery: unknown tool")
)

// Registry supplies the live list of tool descriptors. It is the external
// collaborator that owns tool implementations; the index only snapshots it.
type Registry interface {
	// ListTools returns descriptors for all currently available tools.
	ListTools(ctx context.Context) ([]Descriptor, error)
}

// StaticRegistry is a fixed-descriptor Registry, useful for tests and for
// hosts whose tool set does not change at runtime.
type StaticRegistry []Descriptor

// ListTools returns the registry's descriptors.
func (r StaticRegistry) ListTools(context.Context) ([]Descriptor, error) {
	return append([]Descriptor(nil), r...), nil
}

// Config configures an Index.
type Config struct {
	// Registry is the descriptor source. Required.
	Registry Registry

	// FuzzyThreshold is the minimum similarity for fuzzy matches.
	// Default: DefaultFuzzyThreshold.
	FuzzyThreshold float64

	// Logger is optional.
	Logger *zap.Logger

	// Collector receives a discovery event per search. Optional.
	Collector *metrics.Collector
}

// Index ranks and filters tool descriptors. It is read-mostly: Refresh
// replaces the snapshot, everything else reads it.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: Search fails only on an invalid detail level; zero hits is
//   a valid non-error outcome.
// - Ownership: returned hits are caller-owned snapshots.
type Index struct {
	mu    sync.RWMutex
	tools map[string]Descriptor

	registry  Registry
	threshold float64
	logger    *zap.Logger
	collector *metrics.Collector
}

// NewIndex creates an Index and performs no initial refresh; call Refresh
// before the first search, or whenever the registry changes.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Registry == nil {
		return nil, errors.New("discovery: Registry is required")
	}
	if cfg.FuzzyThreshold == 0 {
		cfg.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Collector == nil {
		cfg.Collector = metrics.NewNop()
	}
	return &Index{
		tools:     make(map[string]Descriptor),
		registry:  cfg.Registry,
		threshold: cfg.FuzzyThreshold,
		logger:    cfg.Logger,
		collector: cfg.Collector,
	}, nil
}

// Refresh replaces the descriptor snapshot from the registry.
func (ix *Index) Refresh(ctx context.Context) error {
	descriptors, err := ix.registry.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("discovery: refresh: %w", err)
	}

	tools := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		tools[d.Name] = d
	}

	ix.mu.Lock()
	ix.tools = tools
	ix.mu.Unlock()

	ix.logger.Debug("discovery index refreshed", zap.Int("tools", len(tools)))
	return nil
}

// Search returns tools ranked by relevance to keyword, rendered at the
// requested detail level.
func (ix *Index) Search(keyword string, level DetailLevel) ([]Hit, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDetailLevel, level)
	}
	start := time.Now()

	ix.mu.RLock()
	candidates := make([]Candidate, 0, len(ix.tools))
	byName := make(map[string]Descriptor, len(ix.tools))
	for name, d := range ix.tools {
		candidates = append(candidates, Candidate{Name: name, Description: d.Description})
		byName[name] = d
	}
	ix.mu.RUnlock()

	ranked := Rank(keyword, candidates, ix.threshold)
	hits := make([]Hit, len(ranked))
	for i, r := range ranked {
		hits[i] = render(byName[r.Name], level, r.Score)
	}

	ix.collector.RecordDiscovery(keyword, string(level), len(hits), time.Since(start))
	return hits, nil
}

// Get returns the descriptor for an exact tool name.
func (ix *Index) Get(name string) (Descriptor, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	d, ok := ix.tools[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return d, nil
}

// All returns every indexed descriptor, sorted by name.
func (ix *Index) All() []Descriptor {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Descriptor, 0, len(ix.tools))
	for _, d := range ix.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all indexed tool names, sorted.
func (ix *Index) Names() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	names := make([]string, 0, len(ix.tools))
	for name := range ix.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns the descriptors for the given names, failing on the
// first unknown name.
func (ix *Index) Descriptors(names []string) ([]Descriptor, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		d, ok := ix.tools[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
		}
		out = append(out, d)
	}
	return out, nil
}
