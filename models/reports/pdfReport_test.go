package reports

import (
	"strings"
	"testing"
	"time"

	"github.com/kilometri/kilometri_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTruncateLabel(t *testing.T) {
	cases := []struct {
		in       string
		budget   int
		expected string
	}{
		{"", 30, "-"},
		{"short", 30, "short"},
		{strings.Repeat("a", 30), 30, strings.Repeat("a", 30)},
		{strings.Repeat("a", 31), 30, strings.Repeat("a", 30) + "..."},
		{"Mäkelänkatu 10 B, Helsinki, Uusimaa, Finland", 30, "Mäkelänkatu 10 B, Helsinki, Uu..."},
	}
	for _, tc := range cases {
		if got := truncateLabel(tc.in, tc.budget); got != tc.expected {
			t.Fatalf("truncateLabel(%q, %d) = %q, expected %q", tc.in, tc.budget, got, tc.expected)
		}
	}
}

func testFixture() (*models.User, *models.MonthlyReport, []*models.Trip) {
	email := "tester@example.com"
	user := &models.User{
		Name:    "Test Traveler",
		Company: "Kilometri Oy",
		Email:   &email,
	}
	report := &models.MonthlyReport{
		ID:        1,
		UserId:    1,
		Year:      2026,
		Month:     1,
		TotalKm:   decimal.RequireFromString("165.50"),
		TripCount: 2,
	}
	trips := []*models.Trip{
		{
			Date:         time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			StartAddress: "Office",
			EndAddress:   "Client site",
			DistanceKm:   decimal.RequireFromString("100.00"),
			Purpose:      "Client meeting",
		},
		{
			Date:         time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
			StartAddress: "Office",
			EndAddress:   "Warehouse",
			DistanceKm:   decimal.RequireFromString("65.50"),
		},
	}
	return user, report, trips
}

func TestBuildPDF(t *testing.T) {
	user, report, trips := testFixture()

	data, err := BuildPDF(user, report, trips)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.True(t, strings.HasPrefix(string(data[:5]), "%PDF-"), "output is not a PDF document")
}

func TestBuildPDF_NoUserDetails(t *testing.T) {
	_, report, trips := testFixture()

	// Sparse profiles render with placeholders instead of failing.
	data, err := BuildPDF(&models.User{Name: "Only Name"}, report, trips)
	require.NoError(t, err)
	require.NotEmpty(t, data)
}
