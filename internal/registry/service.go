package registry

import (
	"context"
	"fmt"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/rankconfig"
	"github.com/wonny/quantrank/pkg/logger"
)

// Repository persists factor definitions and presets.
type Repository interface {
	ListFactors(ctx context.Context) ([]contracts.Factor, error)
	GetFactor(ctx context.Context, id int64) (*contracts.Factor, error)
	GetFactorByKey(ctx context.Context, key string) (*contracts.Factor, error)
	InsertFactor(ctx context.Context, f *contracts.Factor) (int64, error)
	UpdateFactor(ctx context.Context, f *contracts.Factor) error
	MarkFactorDeleted(ctx context.Context, id int64) error

	ListPresets(ctx context.Context) ([]contracts.Preset, error)
	GetPreset(ctx context.Context, key string) (*contracts.Preset, error)
	UpsertPreset(ctx context.Context, p *contracts.Preset) error
	// ApplyPreset overwrites weight+enabled for every factor named in the
	// preset inside one transaction; other factors stay untouched.
	ApplyPreset(ctx context.Context, p *contracts.Preset) error
}

// Service implements admin CRUD over factor definitions and preset
// application. Concurrent admin edits are last-write-wins; a recompute run
// snapshots the registry once at start, so in-flight computations never
// see partial edits.
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService creates a new registry service.
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
	}
}

// validateFactor applies the shared create/update validation rules.
func validateFactor(f *contracts.Factor) error {
	if f.Weight < 0 {
		return ErrInvalidWeight
	}
	if !contracts.ValidFactorType(f.FactorType) {
		return ErrInvalidFactorType
	}
	if f.Normalize == "" {
		f.Normalize = contracts.NormalizePercentile
	}
	if f.Normalize != contracts.NormalizePercentile {
		return fmt.Errorf("unsupported normalize method %q", f.Normalize)
	}
	return nil
}

// Create adds a new factor definition.
func (s *Service) Create(ctx context.Context, f contracts.Factor) (*contracts.Factor, error) {
	if err := validateFactor(&f); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetFactorByKey(ctx, f.Key); err != nil {
		return nil, fmt.Errorf("failed to check factor key: %w", err)
	} else if existing != nil {
		return nil, ErrDuplicateKey
	}

	id, err := s.repo.InsertFactor(ctx, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to insert factor: %w", err)
	}
	f.ID = id

	s.logger.WithFields(map[string]interface{}{
		"key":    f.Key,
		"weight": f.Weight,
	}).Info("Factor created")

	return &f, nil
}

// Update replaces an existing factor's definition, same validation as Create.
func (s *Service) Update(ctx context.Context, id int64, f contracts.Factor) (*contracts.Factor, error) {
	if err := validateFactor(&f); err != nil {
		return nil, err
	}

	current, err := s.repo.GetFactor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load factor: %w", err)
	}
	if current == nil {
		return nil, ErrFactorNotFound
	}

	if f.Key != current.Key {
		if existing, err := s.repo.GetFactorByKey(ctx, f.Key); err != nil {
			return nil, fmt.Errorf("failed to check factor key: %w", err)
		} else if existing != nil {
			return nil, ErrDuplicateKey
		}
	}

	f.ID = id
	f.CreatedAt = current.CreatedAt
	if err := s.repo.UpdateFactor(ctx, &f); err != nil {
		return nil, fmt.Errorf("failed to update factor: %w", err)
	}

	s.logger.WithField("key", f.Key).Info("Factor updated")
	return &f, nil
}

// Delete removes a factor logically. Historical breakdowns are denormalized
// and stay intact.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.repo.GetFactor(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load factor: %w", err)
	}
	if current == nil {
		return ErrFactorNotFound
	}

	if err := s.repo.MarkFactorDeleted(ctx, id); err != nil {
		return fmt.Errorf("failed to delete factor: %w", err)
	}

	s.logger.WithField("key", current.Key).Info("Factor deleted")
	return nil
}

// List returns all live factor definitions.
func (s *Service) List(ctx context.Context) ([]contracts.Factor, error) {
	return s.repo.ListFactors(ctx)
}

// Presets returns the preset catalogue.
func (s *Service) Presets(ctx context.Context) ([]contracts.Preset, error) {
	return s.repo.ListPresets(ctx)
}

// ApplyPreset atomically overwrites weight and enabled for every factor the
// preset names. Factors absent from the preset keep their configuration.
func (s *Service) ApplyPreset(ctx context.Context, key string) error {
	preset, err := s.repo.GetPreset(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load preset: %w", err)
	}
	if preset == nil {
		return ErrPresetNotFound
	}

	if err := s.repo.ApplyPreset(ctx, preset); err != nil {
		return fmt.Errorf("failed to apply preset: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"preset":  key,
		"factors": len(preset.Items),
	}).Info("Preset applied")

	return nil
}

// Snapshot returns an immutable copy of the live registry. A recompute run
// takes exactly one snapshot at start so concurrent admin edits never
// affect it.
func (s *Service) Snapshot(ctx context.Context) ([]contracts.Factor, error) {
	factors, err := s.repo.ListFactors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot registry: %w", err)
	}

	snapshot := make([]contracts.Factor, len(factors))
	copy(snapshot, factors)
	return snapshot, nil
}

// Seed inserts default factors and presets from the scoring config.
// Existing factors are never overwritten; presets are upserted so the
// catalogue follows the config file.
func (s *Service) Seed(ctx context.Context, cfg *rankconfig.Config) error {
	for _, seed := range cfg.Factors {
		existing, err := s.repo.GetFactorByKey(ctx, seed.Key)
		if err != nil {
			return fmt.Errorf("failed to check factor %s: %w", seed.Key, err)
		}
		if existing != nil {
			continue
		}

		f := contracts.Factor{
			Key:            seed.Key,
			Name:           seed.Name,
			Description:    seed.Description,
			FactorType:     contracts.FactorType(seed.FactorType),
			Calculator:     seed.Calculator,
			Weight:         seed.Weight,
			HigherIsBetter: seed.HigherIsBetter,
			Normalize:      seed.Normalize,
			Enabled:        seed.Enabled,
		}
		if _, err := s.Create(ctx, f); err != nil {
			return fmt.Errorf("failed to seed factor %s: %w", seed.Key, err)
		}
	}

	for _, seed := range cfg.Presets {
		items := make(map[string]contracts.PresetItem, len(seed.Factors))
		for k, v := range seed.Factors {
			items[k] = contracts.PresetItem{Weight: v.Weight, Enabled: v.Enabled}
		}
		p := contracts.Preset{
			Key:         seed.Key,
			Name:        seed.Name,
			Description: seed.Description,
			Items:       items,
		}
		if err := s.repo.UpsertPreset(ctx, &p); err != nil {
			return fmt.Errorf("failed to seed preset %s: %w", seed.Key, err)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"factors": len(cfg.Factors),
		"presets": len(cfg.Presets),
	}).Info("Registry seeded")

	return nil
}
