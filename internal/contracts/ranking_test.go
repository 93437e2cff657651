package contracts

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDayOfTruncatesToUTCMidnight(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)

	// 2024-06-04 07:00 KST is still 2024-06-03 in UTC
	d := DayOf(time.Date(2024, time.June, 4, 7, 0, 0, 0, kst))
	if got := d.String(); got != "2024-06-03" {
		t.Errorf("DayOf() = %s, want 2024-06-03", got)
	}
	if !d.Time().Equal(time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Time() = %v, want UTC midnight", d.Time())
	}
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2024-06-03")
	if err != nil {
		t.Fatalf("ParseDay() error = %v", err)
	}
	if !d.Equal(NewDay(2024, time.June, 3)) {
		t.Errorf("ParseDay() = %v, want 2024-06-03", d)
	}

	if _, err := ParseDay("03/06/2024"); err == nil {
		t.Error("ParseDay() accepted a non-ISO date")
	}
}

func TestDayArithmetic(t *testing.T) {
	d := NewDay(2024, time.February, 28)

	// leap year
	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Errorf("AddDays(1) = %s, want 2024-02-29", got)
	}
	if got := d.AddDays(-28).String(); got != "2024-01-31" {
		t.Errorf("AddDays(-28) = %s, want 2024-01-31", got)
	}
	if !d.Before(d.AddDays(1)) {
		t.Error("Before() = false for the next day")
	}
}

func TestDayScan(t *testing.T) {
	var d Day
	if err := d.Scan(time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Scan(time.Time) error = %v", err)
	}
	if d.String() != "2024-06-03" {
		t.Errorf("Scan(time.Time) = %s, want 2024-06-03", d)
	}

	if err := d.Scan("2024-06-04"); err != nil {
		t.Fatalf("Scan(string) error = %v", err)
	}
	if d.String() != "2024-06-04" {
		t.Errorf("Scan(string) = %s, want 2024-06-04", d)
	}

	if err := d.Scan(42); err == nil {
		t.Error("Scan(int) did not fail")
	}
}

func TestDayJSON(t *testing.T) {
	e := RankingEntry{Symbol: "AAA", Day: NewDay(2024, time.June, 3), Rank: 1}
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var back RankingEntry
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.Day.Equal(e.Day) {
		t.Errorf("round trip day = %v, want %v", back.Day, e.Day)
	}
	if back.DeltaRank != nil {
		t.Error("nil delta rank did not survive the round trip")
	}
}
