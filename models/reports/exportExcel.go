package reports

import (
	"fmt"

	"github.com/kilometri/kilometri_backend/models"
	"github.com/xuri/excelize/v2"
)

// BuildExcel renders the monthly report as a workbook: header row, one row
// per trip, a blank separator, then the totals rows.
func BuildExcel(report *models.MonthlyReport, trips []*models.Trip) ([]byte, error) {
	f := excelize.NewFile()
	if _, err := f.NewSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderFailed, err)
	}

	// Add headers
	f.SetCellValue("Sheet1", "A1", "Date")
	f.SetCellValue("Sheet1", "B1", "From")
	f.SetCellValue("Sheet1", "C1", "To")
	f.SetCellValue("Sheet1", "D1", "Distance (km)")
	f.SetCellValue("Sheet1", "E1", "Purpose")

	// Add data
	for i, trip := range trips {
		row := i + 2
		f.SetCellValue("Sheet1", "A"+fmt.Sprint(row), trip.Date.Format("2006-01-02"))
		f.SetCellValue("Sheet1", "B"+fmt.Sprint(row), trip.StartAddress)
		f.SetCellValue("Sheet1", "C"+fmt.Sprint(row), trip.EndAddress)
		f.SetCellValue("Sheet1", "D"+fmt.Sprint(row), trip.DistanceKm.InexactFloat64())
		f.SetCellValue("Sheet1", "E"+fmt.Sprint(row), trip.Purpose)
	}

	totalsRow := len(trips) + 3
	f.SetCellValue("Sheet1", "A"+fmt.Sprint(totalsRow), "Total Trips")
	f.SetCellValue("Sheet1", "B"+fmt.Sprint(totalsRow), report.TripCount)
	f.SetCellValue("Sheet1", "A"+fmt.Sprint(totalsRow+1), "Total Distance (km)")
	f.SetCellValue("Sheet1", "B"+fmt.Sprint(totalsRow+1), report.TotalKm.InexactFloat64())

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}
