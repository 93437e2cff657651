package contracts

import "time"

// FactorType classifies the signal family a factor belongs to.
type FactorType string

const (
	FactorTechnical   FactorType = "technical"
	FactorFundamental FactorType = "fundamental"
	FactorSentiment   FactorType = "sentiment"
	FactorOther       FactorType = "other"
)

// NormalizePercentile is the only normalization method currently supported.
const NormalizePercentile = "percentile"

// Factor is an admin-editable, weighted signal definition.
type Factor struct {
	ID             int64      `json:"id"`
	Key            string     `json:"key"` // unique
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	FactorType     FactorType `json:"factor_type"`
	Calculator     string     `json:"calculator"` // resolved by the ingestion adapter
	Weight         float64    `json:"weight"`     // >= 0
	HigherIsBetter bool       `json:"higher_is_better"`
	Normalize      string     `json:"normalize"`
	Enabled        bool       `json:"enabled"`
	Deleted        bool       `json:"-"` // logical delete, history unaffected

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidFactorType reports whether t is one of the known factor types.
func ValidFactorType(t FactorType) bool {
	switch t {
	case FactorTechnical, FactorFundamental, FactorSentiment, FactorOther:
		return true
	}
	return false
}

// Preset is a named bulk override of factor weights and enabled flags.
// Factors absent from Items keep their current configuration.
type Preset struct {
	Key         string                `json:"key"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Items       map[string]PresetItem `json:"items"` // factor_key -> override
}

// PresetItem is one factor override inside a preset.
type PresetItem struct {
	Weight  float64 `json:"weight"`
	Enabled bool    `json:"enabled"`
}
