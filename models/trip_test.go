package models

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestValidateTrip_AcceptsReasonableTrip(t *testing.T) {
	input := &NewTrip{
		Date:         time.Now().AddDate(0, 0, -3),
		StartAddress: "Mannerheimintie 1, Helsinki",
		EndAddress:   "Tampere Central Station",
		DistanceKm:   decimal.NewFromFloat(178.50),
		Purpose:      "Client meeting",
	}
	if err := ValidateTrip(input); err != nil {
		t.Fatalf("ValidateTrip: unexpected error: %v", err)
	}
}

func TestValidateTrip_FieldRules(t *testing.T) {
	base := func() *NewTrip {
		return &NewTrip{
			Date:         time.Now().AddDate(0, 0, -3),
			StartAddress: "Office",
			EndAddress:   "Airport",
			DistanceKm:   decimal.NewFromInt(20),
		}
	}

	cases := []struct {
		name   string
		mutate func(*NewTrip)
		field  string
	}{
		{"zero distance", func(in *NewTrip) { in.DistanceKm = decimal.Zero }, "distance_km"},
		{"negative distance", func(in *NewTrip) { in.DistanceKm = decimal.NewFromInt(-5) }, "distance_km"},
		{"distance above ceiling", func(in *NewTrip) { in.DistanceKm = decimal.NewFromInt(10001) }, "distance_km"},
		{"empty start address", func(in *NewTrip) { in.StartAddress = "   " }, "start_address"},
		{"overlong end address", func(in *NewTrip) { in.EndAddress = strings.Repeat("a", 501) }, "end_address"},
		{"script tag in address", func(in *NewTrip) { in.StartAddress = "<script>alert(1)</script>" }, "start_address"},
		{"sql comment in address", func(in *NewTrip) { in.EndAddress = "Main St /* drop */" }, "end_address"},
		{"future date", func(in *NewTrip) { in.Date = time.Now().AddDate(0, 0, 2) }, "date"},
		{"date beyond retention", func(in *NewTrip) { in.Date = time.Now().AddDate(-3, 0, 0) }, "date"},
		{"overlong purpose", func(in *NewTrip) { in.Purpose = strings.Repeat("p", 501) }, "purpose"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := base()
			tc.mutate(input)
			err := ValidateTrip(input)
			if err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
			fe, ok := err.(FieldErrors)
			if !ok {
				t.Fatalf("expected FieldErrors, got %T: %v", err, err)
			}
			if _, present := fe[tc.field]; !present {
				t.Fatalf("expected error on field %q, got %v", tc.field, fe)
			}
		})
	}
}

func TestValidateTrip_BoundaryDistance(t *testing.T) {
	input := &NewTrip{
		Date:         time.Now().AddDate(0, 0, -1),
		StartAddress: "A",
		EndAddress:   "B",
		DistanceKm:   decimal.NewFromInt(MaxDistanceKm),
	}
	if err := ValidateTrip(input); err != nil {
		t.Fatalf("distance exactly at the ceiling must pass: %v", err)
	}
}

func TestNeedsAutoDistance(t *testing.T) {
	manual := true
	auto := false
	cases := []struct {
		name     string
		input    *NewTrip
		expected bool
	}{
		{"omitted distance, no flag", &NewTrip{}, true},
		{"omitted distance, is_manual false", &NewTrip{IsManual: &auto}, true},
		{"omitted distance, is_manual true", &NewTrip{IsManual: &manual}, false},
		{"distance supplied", &NewTrip{DistanceKm: decimal.NewFromInt(12)}, false},
		{"distance supplied and is_manual false", &NewTrip{DistanceKm: decimal.NewFromInt(12), IsManual: &auto}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := needsAutoDistance(tc.input); got != tc.expected {
				t.Fatalf("needsAutoDistance = %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestCreateTrip_OmittedDistanceUsesRouteService(t *testing.T) {
	// With no API key the route lookup is unavailable; the error proves the
	// omitted distance was routed to the distance service instead of being
	// rejected by validation.
	t.Setenv("GOOGLE_MAPS_API_KEY", "")

	_, err := CreateTrip(context.Background(), 1, &NewTrip{
		Date:         time.Now().AddDate(0, 0, -1),
		StartAddress: "Torikatu 1, Oulu",
		EndAddress:   "Mannerheimintie 1, Helsinki",
	})
	if !errors.Is(err, ErrMapsUnavailable) {
		t.Fatalf("expected ErrMapsUnavailable, got %v", err)
	}
}

func TestCreateTrip_ManualZeroDistanceStaysValidationError(t *testing.T) {
	manual := true
	_, err := CreateTrip(context.Background(), 1, &NewTrip{
		Date:         time.Now().AddDate(0, 0, -1),
		StartAddress: "Office",
		EndAddress:   "Airport",
		IsManual:     &manual,
	})
	fe, ok := err.(FieldErrors)
	if !ok {
		t.Fatalf("expected FieldErrors, got %T: %v", err, err)
	}
	if _, present := fe["distance_km"]; !present {
		t.Fatalf("expected error on distance_km, got %v", fe)
	}
}

func TestTripOrderColumns_Whitelist(t *testing.T) {
	// Order-by input comes straight off the query string; anything not in
	// the whitelist must be absent so GetTrips falls back to the default.
	if _, ok := tripOrderColumns["date"]; !ok {
		t.Fatalf("date must be orderable")
	}
	if _, ok := tripOrderColumns["users.password"]; ok {
		t.Fatalf("unexpected order column exposed")
	}
}
