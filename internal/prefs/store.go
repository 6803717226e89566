// Package prefs stores the per-user card field selection.
package prefs

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/funnel/internal/domain"
)

// DefaultUser keys preferences when no identity is configured.
const DefaultUser = "local"

// Backend persists card field selections per user.
type Backend interface {
	LoadCardFields(ctx context.Context, user string) ([]domain.FieldID, bool, error)
	SaveCardFields(ctx context.Context, user string, fields []domain.FieldID) error
}

// Store holds one user's visible card fields over a pluggable backend.
type Store struct {
	backend  Backend
	user     string
	defaults []domain.FieldID
	logger   *log.Logger

	mu     sync.Mutex
	cached []domain.FieldID
	loaded bool
}

// Option customizes a store.
type Option func(*Store)

// WithDefaults overrides the baseline field list.
func WithDefaults(fields []domain.FieldID) Option {
	return func(s *Store) {
		if len(fields) > 0 {
			s.defaults = slices.Clone(fields)
		}
	}
}

// WithLogger routes backend failures to logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore constructs a store for user.
func NewStore(backend Backend, user string, opts ...Option) *Store {
	user = strings.TrimSpace(user)
	if user == "" {
		user = DefaultUser
	}
	if backend == nil {
		backend = NewMemoryBackend()
	}
	s := &Store{
		backend:  backend,
		user:     user,
		defaults: domain.DefaultCardFields(),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// User returns the preference owner.
func (s *Store) User() string {
	return s.user
}

// Defaults returns the baseline field list.
func (s *Store) Defaults() []domain.FieldID {
	return slices.Clone(s.defaults)
}

// Get returns the stored fields, or the baseline when nothing was ever saved
// or the backend fails.
func (s *Store) Get(ctx context.Context) []domain.FieldID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return slices.Clone(s.cached)
	}
	fields, ok, err := s.backend.LoadCardFields(ctx, s.user)
	if err != nil {
		s.logger.Warn("load card fields failed; using defaults", "user", s.user, "err", err)
		return slices.Clone(s.defaults)
	}
	if !ok {
		fields = s.defaults
	}
	s.cached = slices.Clone(fields)
	s.loaded = true
	return slices.Clone(s.cached)
}

// Set replaces the stored fields wholesale. The list is not length-checked.
func (s *Store) Set(ctx context.Context, fields []domain.FieldID) error {
	fields = slices.Clone(fields)
	if fields == nil {
		fields = []domain.FieldID{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.SaveCardFields(ctx, s.user, fields); err != nil {
		return err
	}
	s.cached = fields
	s.loaded = true
	return nil
}

// Reset restores the baseline list.
func (s *Store) Reset(ctx context.Context) error {
	return s.Set(ctx, s.defaults)
}

// Invalidate drops the cached selection so the next Get reads the backend.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.loaded = false
}

// MemoryBackend keeps selections in process memory.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]domain.FieldID
}

// NewMemoryBackend constructs an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: map[string][]domain.FieldID{}}
}

// LoadCardFields returns the stored selection for user.
func (m *MemoryBackend) LoadCardFields(_ context.Context, user string) ([]domain.FieldID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.data[user]
	return slices.Clone(fields), ok, nil
}

// SaveCardFields stores a copy of fields for user.
func (m *MemoryBackend) SaveCardFields(_ context.Context, user string, fields []domain.FieldID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[user] = slices.Clone(fields)
	return nil
}
