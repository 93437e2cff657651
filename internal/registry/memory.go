package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/quantrank/internal/contracts"
)

// MemoryRepository is an in-memory Repository for tests and single-process
// setups without Postgres.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	factors map[int64]contracts.Factor
	presets map[string]contracts.Preset
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:  1,
		factors: make(map[int64]contracts.Factor),
		presets: make(map[string]contracts.Preset),
	}
}

func (r *MemoryRepository) ListFactors(ctx context.Context) ([]contracts.Factor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var factors []contracts.Factor
	for _, f := range r.factors {
		if !f.Deleted {
			factors = append(factors, f)
		}
	}
	sort.Slice(factors, func(i, j int) bool { return factors[i].Key < factors[j].Key })
	return factors, nil
}

func (r *MemoryRepository) GetFactor(ctx context.Context, id int64) (*contracts.Factor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factors[id]
	if !ok || f.Deleted {
		return nil, nil
	}
	return &f, nil
}

func (r *MemoryRepository) GetFactorByKey(ctx context.Context, key string) (*contracts.Factor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.factors {
		if f.Key == key && !f.Deleted {
			f := f
			return &f, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) InsertFactor(ctx context.Context, f *contracts.Factor) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	stored := *f
	stored.ID = id
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.factors[id] = stored
	return id, nil
}

func (r *MemoryRepository) UpdateFactor(ctx context.Context, f *contracts.Factor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.factors[f.ID]
	if !ok || current.Deleted {
		return ErrFactorNotFound
	}

	stored := *f
	stored.CreatedAt = current.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	r.factors[f.ID] = stored
	return nil
}

func (r *MemoryRepository) MarkFactorDeleted(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.factors[id]
	if !ok || f.Deleted {
		return ErrFactorNotFound
	}
	f.Deleted = true
	f.UpdatedAt = time.Now().UTC()
	r.factors[id] = f
	return nil
}

func (r *MemoryRepository) ListPresets(ctx context.Context) ([]contracts.Preset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var presets []contracts.Preset
	for _, p := range r.presets {
		presets = append(presets, p)
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Key < presets[j].Key })
	return presets, nil
}

func (r *MemoryRepository) GetPreset(ctx context.Context, key string) (*contracts.Preset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.presets[key]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *MemoryRepository) UpsertPreset(ctx context.Context, p *contracts.Preset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.presets[p.Key] = *p
	return nil
}

func (r *MemoryRepository) ApplyPreset(ctx context.Context, p *contracts.Preset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, f := range r.factors {
		if f.Deleted {
			continue
		}
		item, ok := p.Items[f.Key]
		if !ok {
			continue
		}
		f.Weight = item.Weight
		f.Enabled = item.Enabled
		f.UpdatedAt = time.Now().UTC()
		r.factors[id] = f
	}
	return nil
}
