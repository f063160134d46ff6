package skill

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/codemode/discovery"
)

// MemoryStore is an in-process Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	skills map[string]Skill
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{skills: make(map[string]Skill)}
}

func (m *MemoryStore) Save(_ context.Context, s Skill, opts SaveOptions) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.skills[s.Name]; ok {
		if !opts.Overwrite {
			return conflictErr(s.Name)
		}
		s.CreatedAt = prev.CreatedAt
		s.LastUsedAt = prev.LastUsedAt
		s.ExecutionCount = prev.ExecutionCount
		s.SuccessCount = prev.SuccessCount
	} else {
		s.CreatedAt = time.Now()
	}
	m.skills[s.Name] = s
	return nil
}

func (m *MemoryStore) Load(_ context.Context, name string) (Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.skills[name]
	if !ok {
		return Skill{}, notFoundErr(name)
	}
	return s, nil
}

func (m *MemoryStore) List(_ context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Summary, 0, len(m.skills))
	for _, s := range m.skills {
		out = append(out, summaryOf(s))
	}
	sortSummaries(out)
	return out, nil
}

func (m *MemoryStore) Search(_ context.Context, keyword string) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cands := make([]discovery.Candidate, 0, len(m.skills))
	for _, s := range m.skills {
		cands = append(cands, discovery.Candidate{Name: s.Name, Description: s.Description})
	}
	ranked := discovery.Rank(keyword, cands, 0)
	out := make([]Hit, 0, len(ranked))
	for _, rk := range ranked {
		out = append(out, Hit{Summary: summaryOf(m.skills[rk.Name]), Score: rk.Score})
	}
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.skills[name]; !ok {
		return notFoundErr(name)
	}
	delete(m.skills, name)
	return nil
}

func (m *MemoryStore) RecordUse(_ context.Context, name string, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.skills[name]
	if !ok {
		return notFoundErr(name)
	}
	s.LastUsedAt = time.Now()
	s.ExecutionCount++
	if success {
		s.SuccessCount++
	}
	m.skills[name] = s
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func summaryOf(s Skill) Summary {
	return Summary{
		Name:           s.Name,
		Language:       s.Language,
		Description:    s.Description,
		CreatedAt:      s.CreatedAt,
		LastUsedAt:     s.LastUsedAt,
		ExecutionCount: s.ExecutionCount,
		SuccessCount:   s.SuccessCount,
	}
}
