package rankconfig

import "fmt"

// ValidationError reports a config constraint violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var factorTypes = map[string]bool{
	"technical":   true,
	"fundamental": true,
	"sentiment":   true,
	"other":       true,
}

// Validate checks all required constraints.
func Validate(cfg *Config) error {
	if cfg.Meta.ConfigID == "" {
		return ValidationError{"meta.config_id", "required"}
	}

	if len(cfg.Grades) == 0 {
		return ValidationError{"grades", "at least one grade bucket required"}
	}
	seenGrades := map[string]bool{}
	seenMins := map[float64]bool{}
	for i, g := range cfg.Grades {
		field := fmt.Sprintf("grades[%d]", i)
		if g.Grade == "" {
			return ValidationError{field, "grade letter required"}
		}
		if seenGrades[g.Grade] {
			return ValidationError{field, "duplicate grade " + g.Grade}
		}
		if seenMins[g.Min] {
			return ValidationError{field, fmt.Sprintf("duplicate threshold %.2f", g.Min)}
		}
		seenGrades[g.Grade] = true
		seenMins[g.Min] = true
	}

	factorKeys := map[string]bool{}
	for i, f := range cfg.Factors {
		field := fmt.Sprintf("factors[%d]", i)
		if f.Key == "" {
			return ValidationError{field + ".key", "required"}
		}
		if factorKeys[f.Key] {
			return ValidationError{field + ".key", "duplicate key " + f.Key}
		}
		factorKeys[f.Key] = true
		if f.Weight < 0 {
			return ValidationError{field + ".weight", "must be >= 0"}
		}
		if !factorTypes[f.FactorType] {
			return ValidationError{field + ".factor_type", "unknown type " + f.FactorType}
		}
		if f.Normalize != "" && f.Normalize != "percentile" {
			return ValidationError{field + ".normalize", "only percentile is supported"}
		}
		if f.Calculator == "" {
			return ValidationError{field + ".calculator", "required"}
		}
	}

	presetKeys := map[string]bool{}
	for i, p := range cfg.Presets {
		field := fmt.Sprintf("presets[%d]", i)
		if p.Key == "" {
			return ValidationError{field + ".key", "required"}
		}
		if presetKeys[p.Key] {
			return ValidationError{field + ".key", "duplicate key " + p.Key}
		}
		presetKeys[p.Key] = true
		for fk, entry := range p.Factors {
			if !factorKeys[fk] {
				return ValidationError{field + ".factors", "unknown factor " + fk}
			}
			if entry.Weight < 0 {
				return ValidationError{field + ".factors." + fk, "weight must be >= 0"}
			}
		}
	}

	return nil
}
