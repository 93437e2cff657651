package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/pkg/logger"
)

func newTestService() *Service {
	return NewService(NewMemoryRepository(), logger.NewNop())
}

func sampleFactor(key string) contracts.Factor {
	return contracts.Factor{
		Key:            key,
		Name:           "Momentum 120d",
		FactorType:     contracts.FactorTechnical,
		Calculator:     "momentum",
		Weight:         1.0,
		HigherIsBetter: true,
		Normalize:      contracts.NormalizePercentile,
		Enabled:        true,
	}
}

func TestCreateRejectsDuplicateKey(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, sampleFactor("momentum_120d"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, sampleFactor("momentum_120d"))
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestCreateRejectsNegativeWeight(t *testing.T) {
	svc := newTestService()

	f := sampleFactor("momentum_120d")
	f.Weight = -0.5

	_, err := svc.Create(context.Background(), f)
	assert.ErrorIs(t, err, ErrInvalidWeight)
}

func TestCreateRejectsUnknownFactorType(t *testing.T) {
	svc := newTestService()

	f := sampleFactor("momentum_120d")
	f.FactorType = "macro"

	_, err := svc.Create(context.Background(), f)
	assert.ErrorIs(t, err, ErrInvalidFactorType)
}

func TestCreateAllowsZeroWeight(t *testing.T) {
	svc := newTestService()

	f := sampleFactor("momentum_120d")
	f.Weight = 0

	created, err := svc.Create(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 0.0, created.Weight)
}

func TestUpdateUnknownFactor(t *testing.T) {
	svc := newTestService()

	_, err := svc.Update(context.Background(), 999, sampleFactor("momentum_120d"))
	assert.ErrorIs(t, err, ErrFactorNotFound)
}

func TestDeleteIsLogical(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleFactor("momentum_120d"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	factors, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, factors)

	// the key is free again after delete
	_, err = svc.Create(ctx, sampleFactor("momentum_120d"))
	assert.NoError(t, err)
}

func TestApplyPresetOverridesOnlyNamedFactors(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, logger.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, sampleFactor("momentum_120d"))
	require.NoError(t, err)

	other := sampleFactor("pe_ratio")
	other.FactorType = contracts.FactorFundamental
	other.Weight = 0.8
	_, err = svc.Create(ctx, other)
	require.NoError(t, err)

	require.NoError(t, repo.UpsertPreset(ctx, &contracts.Preset{
		Key:  "tech_focus",
		Name: "Technical focus",
		Items: map[string]contracts.PresetItem{
			"momentum_120d": {Weight: 2.0, Enabled: true},
		},
	}))

	require.NoError(t, svc.ApplyPreset(ctx, "tech_focus"))

	factors, err := svc.List(ctx)
	require.NoError(t, err)
	byKey := make(map[string]contracts.Factor)
	for _, f := range factors {
		byKey[f.Key] = f
	}

	assert.Equal(t, 2.0, byKey["momentum_120d"].Weight)
	// untouched by the preset
	assert.Equal(t, 0.8, byKey["pe_ratio"].Weight)
	assert.True(t, byKey["pe_ratio"].Enabled)
}

func TestApplyPresetUnknown(t *testing.T) {
	svc := newTestService()

	err := svc.ApplyPreset(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPresetNotFound)
}

func TestSnapshotIsIsolatedFromEdits(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleFactor("momentum_120d"))
	require.NoError(t, err)

	snapshot, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)

	updated := *created
	updated.Weight = 9.0
	_, err = svc.Update(ctx, created.ID, updated)
	require.NoError(t, err)

	assert.Equal(t, 1.0, snapshot[0].Weight)
}
