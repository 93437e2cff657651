package rankconfig

// Config is the scoring configuration: grade thresholds plus the factor
// and preset definitions seeded into the registry.
type Config struct {
	Meta    Meta         `yaml:"meta" json:"meta"`
	Grades  []Grade      `yaml:"grades" json:"grades"`
	Factors []FactorSeed `yaml:"factors" json:"factors"`
	Presets []PresetSeed `yaml:"presets" json:"presets"`
}

// Meta identifies a configuration revision.
type Meta struct {
	ConfigID string `yaml:"config_id" json:"config_id"`
	Version  string `yaml:"version" json:"version"`
}

// Grade is one letter-grade bucket: total scores at or above Min (and
// below the next higher bucket) receive Grade.
type Grade struct {
	Grade string  `yaml:"grade" json:"grade"`
	Min   float64 `yaml:"min" json:"min"`
}

// FactorSeed is a default factor definition.
type FactorSeed struct {
	Key            string  `yaml:"key" json:"key"`
	Name           string  `yaml:"name" json:"name"`
	Description    string  `yaml:"description" json:"description"`
	FactorType     string  `yaml:"factor_type" json:"factor_type"`
	Calculator     string  `yaml:"calculator" json:"calculator"`
	Weight         float64 `yaml:"weight" json:"weight"`
	HigherIsBetter bool    `yaml:"higher_is_better" json:"higher_is_better"`
	Normalize      string  `yaml:"normalize" json:"normalize"`
	Enabled        bool    `yaml:"enabled" json:"enabled"`
}

// PresetSeed is a default weight preset.
type PresetSeed struct {
	Key         string                  `yaml:"key" json:"key"`
	Name        string                  `yaml:"name" json:"name"`
	Description string                  `yaml:"description" json:"description"`
	Factors     map[string]PresetEntry `yaml:"factors" json:"factors"`
}

// PresetEntry is one factor override inside a preset seed.
type PresetEntry struct {
	Weight  float64 `yaml:"weight" json:"weight"`
	Enabled bool    `yaml:"enabled" json:"enabled"`
}
