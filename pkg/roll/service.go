// Package roll compiles, rolls and records dice notation on behalf of the
// REST, gRPC, MCP and web surfaces.
package roll

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lemonberrylabs/dicenotation/pkg/dice"
	"github.com/lemonberrylabs/dicenotation/pkg/preset"
	"github.com/lemonberrylabs/dicenotation/pkg/rng"
	"github.com/lemonberrylabs/dicenotation/pkg/store"
)

const tracerName = "github.com/lemonberrylabs/dicenotation/pkg/roll"

// Request asks for one roll of a notation. A nil Seed picks a random one.
type Request struct {
	Notation string
	Seed     *int64
}

// Service rolls notation and keeps the history.
type Service struct {
	compiler  *dice.Compiler
	repo      store.Repository
	rollLimit int
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCompiler sets the compiler used for every notation.
func WithCompiler(c *dice.Compiler) Option {
	return func(s *Service) {
		s.compiler = c
	}
}

// WithRollLimit bounds the atomic rolls of a single request.
func WithRollLimit(n int) Option {
	return func(s *Service) {
		s.rollLimit = n
	}
}

// NewService creates a service recording into repo.
func NewService(repo store.Repository, opts ...Option) *Service {
	s := &Service{
		compiler:  dice.NewCompiler(dice.Options{}),
		repo:      repo,
		rollLimit: dice.DefaultRollLimit,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compiler returns the compiler the service uses.
func (s *Service) Compiler() *dice.Compiler {
	return s.compiler
}

// Repository returns the underlying store.
func (s *Service) Repository() store.Repository {
	return s.repo
}

// Roll compiles and rolls req.Notation and stores the result. Rolling the
// same notation with the same seed reproduces the same dice.
func (s *Service) Roll(ctx context.Context, req Request) (*store.Roll, error) {
	ctx, span := s.tracer.Start(ctx, "roll.Roll", trace.WithAttributes(
		attribute.String("dice.notation", req.Notation),
	))
	defer span.End()

	r, err := s.roll(ctx, req, "")
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("roll.id", r.ID),
		attribute.Int("roll.total", r.Total),
		attribute.Int("roll.dice", len(r.Dice)),
	)
	return r, nil
}

func (s *Service) roll(ctx context.Context, req Request, presetName string) (*store.Roll, error) {
	node, err := s.compiler.Compile(req.Notation)
	if err != nil {
		return nil, err
	}

	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	} else if seed, err = rng.NewSeed(); err != nil {
		return nil, err
	}

	out, err := dice.Roll(node, rng.New(seed), dice.WithRollLimit(s.rollLimit))
	if err != nil {
		return nil, err
	}

	r := &store.Roll{
		ID:         uuid.NewString(),
		Notation:   req.Notation,
		Canonical:  dice.Format(node),
		Total:      out.Total,
		Dice:       out.Dice,
		Seed:       seed,
		Preset:     presetName,
		CreateTime: s.now().UTC(),
	}
	if err := s.repo.SaveRoll(ctx, r); err != nil {
		return nil, fmt.Errorf("save roll: %w", err)
	}
	return r, nil
}

// Format returns the canonical form of notation.
func (s *Service) Format(ctx context.Context, notation string) (string, error) {
	_, span := s.tracer.Start(ctx, "roll.Format", trace.WithAttributes(
		attribute.String("dice.notation", notation),
	))
	defer span.End()

	node, err := s.compiler.Compile(notation)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	return dice.Format(node), nil
}

// RollPreset rolls the notation stored under name.
func (s *Service) RollPreset(ctx context.Context, name string, seed *int64) (*store.Roll, error) {
	ctx, span := s.tracer.Start(ctx, "roll.RollPreset", trace.WithAttributes(
		attribute.String("preset.name", name),
	))
	defer span.End()

	p, err := s.repo.GetPreset(ctx, name)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	r, err := s.roll(ctx, Request{Notation: p.Notation, Seed: seed}, name)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return r, nil
}

// GetRoll returns a stored roll.
func (s *Service) GetRoll(ctx context.Context, id string) (*store.Roll, error) {
	return s.repo.GetRoll(ctx, id)
}

// History returns the most recent rolls, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*store.Roll, error) {
	return s.repo.ListRolls(ctx, limit)
}

// SavePreset validates and stores a preset.
func (s *Service) SavePreset(ctx context.Context, p preset.Preset) (*store.Preset, error) {
	if err := preset.Validate(p, s.compiler); err != nil {
		return nil, err
	}
	return s.repo.PutPreset(ctx, &store.Preset{
		Name:        p.Name,
		Notation:    p.Notation,
		Description: p.Description,
	})
}

// ImportPresets loads every preset file in dir into the store. Files that
// fail to load are logged and skipped.
func (s *Service) ImportPresets(ctx context.Context, dir string) (int, error) {
	presets, err := preset.LoadDir(dir, s.compiler)
	if err != nil {
		if len(presets) == 0 {
			return 0, err
		}
		log.Printf("presets: %v", err)
	}
	for _, p := range presets {
		if _, err := s.repo.PutPreset(ctx, &store.Preset{
			Name:        p.Name,
			Notation:    p.Notation,
			Description: p.Description,
		}); err != nil {
			return 0, fmt.Errorf("import preset %s: %w", p.Name, err)
		}
	}
	return len(presets), nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
