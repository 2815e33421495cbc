package reports

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuildExcel(t *testing.T) {
	_, report, trips := testFixture()

	data, err := BuildExcel(report, trips)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	for cell, expected := range map[string]string{
		"A1": "Date",
		"D1": "Distance (km)",
		"A2": "2026-01-05",
		"B2": "Office",
		"D2": "100",
		"A3": "2026-01-12",
	} {
		got, err := f.GetCellValue("Sheet1", cell)
		require.NoError(t, err)
		require.Equal(t, expected, got, "cell %s", cell)
	}

	totalsRow := len(trips) + 3
	label, err := f.GetCellValue("Sheet1", fmt.Sprintf("A%d", totalsRow+1))
	require.NoError(t, err)
	require.Equal(t, "Total Distance (km)", label)

	total, err := f.GetCellValue("Sheet1", fmt.Sprintf("B%d", totalsRow+1))
	require.NoError(t, err)
	require.Equal(t, "165.5", total)
}

func TestBuildExcel_EmptyTrips(t *testing.T) {
	// The render path never sees an empty period, but the builder itself
	// must not panic on one.
	_, report, _ := testFixture()
	report.TripCount = 0

	data, err := BuildExcel(report, nil)
	require.NoError(t, err)
	require.NotEmpty(t, data)
}
