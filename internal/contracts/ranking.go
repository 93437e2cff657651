package contracts

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// RawValue is one unnormalized calculator output for a symbol.
// A nil Value means the factor could not be computed for that symbol.
type RawValue struct {
	Value *float64 `json:"value"`
	Note  string   `json:"note,omitempty"`
}

// FactorScore is one breakdown item: a single factor's contribution to a
// symbol on a day. Weight and Enabled are denormalized at computation time
// so later registry edits never corrupt history.
type FactorScore struct {
	Symbol         string     `json:"symbol"`
	FactorKey      string     `json:"factor_key"`
	FactorName     string     `json:"factor_name"`
	FactorType     FactorType `json:"factor_type"`
	RawValue       *float64   `json:"raw_value"`
	Score          *float64   `json:"score"` // 0-100 percentile, nil when not computable
	Weight         float64    `json:"weight_at_computation"`
	Enabled        bool       `json:"enabled_at_computation"`
	HigherIsBetter bool       `json:"higher_is_better"`
}

// RankingEntry is one ranked symbol inside a day's snapshot.
// Only symbols with a non-null total score receive an entry.
type RankingEntry struct {
	Symbol     string  `json:"symbol"`
	Market     string  `json:"market"`
	Day        Day     `json:"day"`
	TotalScore float64 `json:"total_score"`
	Grade      string  `json:"grade"`
	Rank       int     `json:"rank"`       // 1-based
	DeltaRank  *int    `json:"delta_rank"` // prior rank minus rank; nil without a prior rank
}

// Day is a calendar day at day granularity. Always UTC midnight.
type Day struct {
	t time.Time
}

// NewDay builds a Day from year, month, day.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates a time to its UTC calendar day.
func DayOf(t time.Time) Day {
	u := t.UTC()
	return NewDay(u.Year(), u.Month(), u.Day())
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, err
	}
	return Day{t: t}, nil
}

// Time returns the day as UTC midnight.
func (d Day) Time() time.Time {
	return d.t
}

// String formats the day as YYYY-MM-DD.
func (d Day) String() string {
	return d.t.Format("2006-01-02")
}

// Before reports whether d is earlier than other.
func (d Day) Before(other Day) bool {
	return d.t.Before(other.t)
}

// IsZero reports whether the day is unset.
func (d Day) IsZero() bool {
	return d.t.IsZero()
}

// AddDays returns the day shifted by n calendar days.
func (d Day) AddDays(n int) Day {
	return Day{t: d.t.AddDate(0, 0, n)}
}

// Equal reports whether two days are the same calendar day.
func (d Day) Equal(other Day) bool {
	return d.t.Equal(other.t)
}

// Scan implements sql.Scanner so Day columns map to DATE.
func (d *Day) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Day{}
		return nil
	case time.Time:
		*d = DayOf(v)
		return nil
	case string:
		parsed, err := ParseDay(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Day", src)
	}
}

// Value implements driver.Valuer.
func (d Day) Value() (driver.Value, error) {
	return d.t, nil
}

// MarshalJSON encodes the day as "YYYY-MM-DD".
func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a "YYYY-MM-DD" day.
func (d *Day) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
