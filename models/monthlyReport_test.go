package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPeriodRange_HalfOpenInterval(t *testing.T) {
	start, end := PeriodRange(2026, 1)
	if !start.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start: got %v", start)
	}
	if !end.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end: got %v", end)
	}
}

func TestPeriodRange_DecemberRollsOver(t *testing.T) {
	_, end := PeriodRange(2025, 12)
	if !end.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("december end: got %v", end)
	}
}

func TestValidatePeriod(t *testing.T) {
	cases := []struct {
		name  string
		year  int
		month int
		field string // empty means valid
	}{
		{"valid past period", 2025, 6, ""},
		{"month zero", 2025, 0, "month"},
		{"month thirteen", 2025, 13, "month"},
		{"before first supported year", 2019, 5, "year"},
		{"far future year", time.Now().Year() + 2, 1, "year"},
		{"future period", time.Now().Year() + 1, 12, "month"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePeriod(tc.year, tc.month)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			fe, ok := err.(FieldErrors)
			if !ok {
				t.Fatalf("expected FieldErrors, got %T: %v", err, err)
			}
			if _, present := fe[tc.field]; !present {
				t.Fatalf("expected error on %q, got %v", tc.field, fe)
			}
		})
	}
}

func TestSumTripDistances(t *testing.T) {
	trips := []*Trip{
		{DistanceKm: decimal.RequireFromString("100.00")},
		{DistanceKm: decimal.RequireFromString("65.50")},
	}
	total := SumTripDistances(trips)
	if total.StringFixed(2) != "165.50" {
		t.Fatalf("total: got %s", total.StringFixed(2))
	}
}

func TestSumTripDistances_OrderIndependent(t *testing.T) {
	forward := []*Trip{
		{DistanceKm: decimal.RequireFromString("0.1")},
		{DistanceKm: decimal.RequireFromString("0.2")},
		{DistanceKm: decimal.RequireFromString("123.45")},
		{DistanceKm: decimal.RequireFromString("9876.54")},
	}
	backward := []*Trip{forward[3], forward[2], forward[1], forward[0]}

	a := SumTripDistances(forward)
	b := SumTripDistances(backward)
	if !a.Equal(b) {
		t.Fatalf("sum depends on order: %s vs %s", a, b)
	}
	if a.StringFixed(2) != "10000.29" {
		t.Fatalf("total: got %s", a.StringFixed(2))
	}
}

func TestSumTripDistances_Empty(t *testing.T) {
	if total := SumTripDistances(nil); !total.IsZero() {
		t.Fatalf("empty sum: got %s", total)
	}
}

func TestPeriodDisplay(t *testing.T) {
	r := MonthlyReport{Year: 2026, Month: 3}
	if got := r.PeriodDisplay(); got != "March 2026" {
		t.Fatalf("PeriodDisplay: got %q", got)
	}
}

func TestIsRendered(t *testing.T) {
	r := MonthlyReport{}
	if r.IsRendered() {
		t.Fatalf("fresh report must not be rendered")
	}
	r.PdfUrl = "https://storage.googleapis.com/b/reports/pdf/1_2026_01.pdf"
	r.ExcelUrl = "https://storage.googleapis.com/b/reports/excel/1_2026_01.xlsx"
	if !r.IsRendered() {
		t.Fatalf("report with both files must be rendered")
	}
}
