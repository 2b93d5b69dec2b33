// Package store provides storage for roll history and named presets.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lemonberrylabs/dicenotation/pkg/rolllog"
)

// ErrNotFound is returned when a roll or preset does not exist.
var ErrNotFound = errors.New("not found")

// Roll is a stored roll: the notation, its canonical form and the outcome.
type Roll struct {
	ID         string          `json:"id"`
	Notation   string          `json:"notation"`
	Canonical  string          `json:"canonical"`
	Total      int             `json:"total"`
	Dice       []rolllog.Entry `json:"dice"`
	Seed       int64           `json:"seed"`
	Preset     string          `json:"preset,omitempty"`
	CreateTime time.Time       `json:"createTime"`
}

// Preset is a named notation, e.g. "fireball" for "8d6".
type Preset struct {
	Name        string    `json:"name"`
	Notation    string    `json:"notation"`
	Description string    `json:"description,omitempty"`
	CreateTime  time.Time `json:"createTime"`
	UpdateTime  time.Time `json:"updateTime"`
}

// Repository persists rolls and presets. Only notation text is stored;
// compiled expressions never are.
type Repository interface {
	SaveRoll(ctx context.Context, roll *Roll) error
	GetRoll(ctx context.Context, id string) (*Roll, error)
	// ListRolls returns at most limit rolls, newest first. A limit of 0
	// or less returns every roll.
	ListRolls(ctx context.Context, limit int) ([]*Roll, error)

	// PutPreset creates the preset or replaces the one with the same name.
	PutPreset(ctx context.Context, preset *Preset) (*Preset, error)
	GetPreset(ctx context.Context, name string) (*Preset, error)
	// ListPresets returns every preset ordered by name.
	ListPresets(ctx context.Context) ([]*Preset, error)
	DeletePreset(ctx context.Context, name string) error

	Close() error
}

// RollNotFound wraps ErrNotFound for a roll id.
func RollNotFound(id string) error {
	return fmt.Errorf("roll '%s' %w", id, ErrNotFound)
}

// PresetNotFound wraps ErrNotFound for a preset name.
func PresetNotFound(name string) error {
	return fmt.Errorf("preset '%s' %w", name, ErrNotFound)
}

// Store is a thread-safe in-memory Repository.
type Store struct {
	mu      sync.RWMutex
	rolls   map[string]*Roll
	order   []string // roll ids, oldest first
	presets map[string]*Preset
}

var _ Repository = (*Store)(nil)

// New creates a new empty store.
func New() *Store {
	return &Store{
		rolls:   make(map[string]*Roll),
		presets: make(map[string]*Preset),
	}
}

// SaveRoll stores a roll. Saving an id twice is an error.
func (s *Store) SaveRoll(_ context.Context, roll *Roll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rolls[roll.ID]; exists {
		return fmt.Errorf("roll '%s' already exists", roll.ID)
	}
	if roll.CreateTime.IsZero() {
		roll.CreateTime = time.Now()
	}
	s.rolls[roll.ID] = roll
	s.order = append(s.order, roll.ID)
	return nil
}

// GetRoll retrieves a roll by id.
func (s *Store) GetRoll(_ context.Context, id string) (*Roll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roll, ok := s.rolls[id]
	if !ok {
		return nil, RollNotFound(id)
	}
	return roll, nil
}

// ListRolls returns up to limit rolls, newest first.
func (s *Store) ListRolls(_ context.Context, limit int) ([]*Roll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]*Roll, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, s.rolls[s.order[i]])
	}
	return result, nil
}

// PutPreset creates or replaces a preset, keeping the original create time.
func (s *Store) PutPreset(_ context.Context, preset *Preset) (*Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	stored := *preset
	stored.CreateTime = now
	stored.UpdateTime = now
	if existing, ok := s.presets[preset.Name]; ok {
		stored.CreateTime = existing.CreateTime
	}
	s.presets[preset.Name] = &stored
	return &stored, nil
}

// GetPreset retrieves a preset by name.
func (s *Store) GetPreset(_ context.Context, name string) (*Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.presets[name]
	if !ok {
		return nil, PresetNotFound(name)
	}
	return p, nil
}

// ListPresets returns all presets ordered by name.
func (s *Store) ListPresets(_ context.Context) ([]*Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Preset, 0, len(s.presets))
	for _, p := range s.presets {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// DeletePreset removes a preset.
func (s *Store) DeletePreset(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presets[name]; !ok {
		return PresetNotFound(name)
	}
	delete(s.presets, name)
	return nil
}

// Close implements Repository. The in-memory store holds no resources.
func (s *Store) Close() error {
	return nil
}
