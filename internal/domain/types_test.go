package domain

import (
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	// Verify Observation can be instantiated with zero values.
	obs := Observation{}
	if obs.AssetID != "" {
		t.Error("expected empty AssetID for zero-value Observation")
	}
	if !obs.Period.IsZero() {
		t.Error("expected zero Period for zero-value Observation")
	}
	if obs.Price != 0 || obs.TradedVolume != 0 || obs.FactorA != 0 || obs.FactorB != 0 {
		t.Error("expected zero numeric fields for zero-value Observation")
	}

	// A benchmark point without a date reports no period.
	bp := BenchmarkPoint{Close: 100}
	if bp.HasPeriod() {
		t.Error("expected HasPeriod() = false for undated BenchmarkPoint")
	}
	bp.Period = time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	if !bp.HasPeriod() {
		t.Error("expected HasPeriod() = true for dated BenchmarkPoint")
	}
}

func TestMissing(t *testing.T) {
	if !IsMissing(Missing) {
		t.Error("IsMissing(Missing) = false, want true")
	}
	if IsMissing(0) {
		t.Error("IsMissing(0) = true, want false")
	}
	if !IsMissing(Missing + 1) {
		t.Error("arithmetic on Missing should stay missing")
	}
}

func TestPeriodKeys(t *testing.T) {
	ts := time.Date(2021, 3, 31, 15, 4, 5, 0, time.UTC)
	if got := PeriodKey(ts); got != "2021-03-31" {
		t.Errorf("PeriodKey = %q, want %q", got, "2021-03-31")
	}
	want := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := MonthKey(ts); !got.Equal(want) {
		t.Errorf("MonthKey = %v, want %v", got, want)
	}
}
