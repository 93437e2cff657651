package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/quantrank/internal/contracts"
)

// PostgresRepository persists factors and presets in Postgres.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository instance.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const factorColumns = `
	id, factor_key, name, description, factor_type, calculator,
	weight, higher_is_better, normalize, enabled, created_at, updated_at
`

func scanFactor(row pgx.Row) (*contracts.Factor, error) {
	var f contracts.Factor
	err := row.Scan(
		&f.ID,
		&f.Key,
		&f.Name,
		&f.Description,
		&f.FactorType,
		&f.Calculator,
		&f.Weight,
		&f.HigherIsBetter,
		&f.Normalize,
		&f.Enabled,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFactors returns all non-deleted factors ordered by key.
func (r *PostgresRepository) ListFactors(ctx context.Context) ([]contracts.Factor, error) {
	query := `
		SELECT ` + factorColumns + `
		FROM ranking.factors
		WHERE deleted = false
		ORDER BY factor_key
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query factors: %w", err)
	}
	defer rows.Close()

	var factors []contracts.Factor
	for rows.Next() {
		f, err := scanFactor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan factor: %w", err)
		}
		factors = append(factors, *f)
	}
	return factors, rows.Err()
}

// GetFactor returns one non-deleted factor by id, nil when absent.
func (r *PostgresRepository) GetFactor(ctx context.Context, id int64) (*contracts.Factor, error) {
	query := `
		SELECT ` + factorColumns + `
		FROM ranking.factors
		WHERE id = $1 AND deleted = false
	`

	f, err := scanFactor(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query factor: %w", err)
	}
	return f, nil
}

// GetFactorByKey returns one non-deleted factor by key, nil when absent.
func (r *PostgresRepository) GetFactorByKey(ctx context.Context, key string) (*contracts.Factor, error) {
	query := `
		SELECT ` + factorColumns + `
		FROM ranking.factors
		WHERE factor_key = $1 AND deleted = false
	`

	f, err := scanFactor(r.db.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query factor by key: %w", err)
	}
	return f, nil
}

// InsertFactor stores a new factor and returns its id.
func (r *PostgresRepository) InsertFactor(ctx context.Context, f *contracts.Factor) (int64, error) {
	query := `
		INSERT INTO ranking.factors (
			factor_key, name, description, factor_type, calculator,
			weight, higher_is_better, normalize, enabled,
			deleted, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, NOW(), NOW())
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query,
		f.Key,
		f.Name,
		f.Description,
		f.FactorType,
		f.Calculator,
		f.Weight,
		f.HigherIsBetter,
		f.Normalize,
		f.Enabled,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert factor: %w", err)
	}
	return id, nil
}

// UpdateFactor overwrites a factor definition.
func (r *PostgresRepository) UpdateFactor(ctx context.Context, f *contracts.Factor) error {
	query := `
		UPDATE ranking.factors SET
			factor_key = $2,
			name = $3,
			description = $4,
			factor_type = $5,
			calculator = $6,
			weight = $7,
			higher_is_better = $8,
			normalize = $9,
			enabled = $10,
			updated_at = NOW()
		WHERE id = $1 AND deleted = false
	`

	tag, err := r.db.Exec(ctx, query,
		f.ID,
		f.Key,
		f.Name,
		f.Description,
		f.FactorType,
		f.Calculator,
		f.Weight,
		f.HigherIsBetter,
		f.Normalize,
		f.Enabled,
	)
	if err != nil {
		return fmt.Errorf("update factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFactorNotFound
	}
	return nil
}

// MarkFactorDeleted removes a factor logically; history keeps its
// denormalized name and weight.
func (r *PostgresRepository) MarkFactorDeleted(ctx context.Context, id int64) error {
	query := `
		UPDATE ranking.factors SET deleted = true, updated_at = NOW()
		WHERE id = $1 AND deleted = false
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFactorNotFound
	}
	return nil
}

// ListPresets returns the preset catalogue ordered by key.
func (r *PostgresRepository) ListPresets(ctx context.Context) ([]contracts.Preset, error) {
	query := `
		SELECT preset_key, name, description, items
		FROM ranking.presets
		ORDER BY preset_key
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query presets: %w", err)
	}
	defer rows.Close()

	var presets []contracts.Preset
	for rows.Next() {
		var p contracts.Preset
		var itemsJSON []byte
		if err := rows.Scan(&p.Key, &p.Name, &p.Description, &itemsJSON); err != nil {
			return nil, fmt.Errorf("scan preset: %w", err)
		}
		if err := json.Unmarshal(itemsJSON, &p.Items); err != nil {
			return nil, fmt.Errorf("unmarshal preset items: %w", err)
		}
		presets = append(presets, p)
	}
	return presets, rows.Err()
}

// GetPreset returns one preset by key, nil when absent.
func (r *PostgresRepository) GetPreset(ctx context.Context, key string) (*contracts.Preset, error) {
	query := `
		SELECT preset_key, name, description, items
		FROM ranking.presets
		WHERE preset_key = $1
	`

	var p contracts.Preset
	var itemsJSON []byte
	err := r.db.QueryRow(ctx, query, key).Scan(&p.Key, &p.Name, &p.Description, &itemsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preset: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &p.Items); err != nil {
		return nil, fmt.Errorf("unmarshal preset items: %w", err)
	}
	return &p, nil
}

// UpsertPreset stores or replaces a preset definition.
func (r *PostgresRepository) UpsertPreset(ctx context.Context, p *contracts.Preset) error {
	itemsJSON, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("marshal preset items: %w", err)
	}

	query := `
		INSERT INTO ranking.presets (preset_key, name, description, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (preset_key) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			items = EXCLUDED.items,
			updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, p.Key, p.Name, p.Description, itemsJSON); err != nil {
		return fmt.Errorf("upsert preset: %w", err)
	}
	return nil
}

// ApplyPreset overwrites weight+enabled for every factor in the preset in
// one transaction. Factors the preset does not mention stay untouched.
func (r *PostgresRepository) ApplyPreset(ctx context.Context, p *contracts.Preset) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE ranking.factors SET weight = $2, enabled = $3, updated_at = NOW()
		WHERE factor_key = $1 AND deleted = false
	`

	for key, item := range p.Items {
		if _, err := tx.Exec(ctx, query, key, item.Weight, item.Enabled); err != nil {
			return fmt.Errorf("apply preset to %s: %w", key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit preset: %w", err)
	}
	return nil
}
