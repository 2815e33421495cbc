package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/kilometri/kilometri_backend/models"
)

// Column budget for the trip table (A4 portrait, 20mm margins => 170mm).
var tripColumnWidths = []float64{25, 45, 45, 25, 30}

var tripColumnHeaders = []string{"Date", "From", "To", "Distance (km)", "Purpose"}

const (
	addressCharBudget = 30
	purposeCharBudget = 25
)

// truncateLabel cuts s to the character budget, appending "..." when cut.
func truncateLabel(s string, budget int) string {
	if s == "" {
		return "-"
	}
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return string(runes[:budget]) + "..."
}

// BuildPDF renders the monthly travel report as a fixed-layout A4 document:
// title with the human-readable period, traveler identity block, one row per
// trip with alternating shading, and a totals box.
func BuildPDF(user *models.User, report *models.MonthlyReport, trips []*models.Trip) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Title
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(44, 62, 80)
	pdf.CellFormat(0, 12, tr("Travel Report - "+report.PeriodDisplay()), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	// Traveler identity block
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(0, 0, 0)
	company := user.Company
	if company == "" {
		company = "N/A"
	}
	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	pdf.CellFormat(0, 6, tr("Traveler: "+user.Name), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Company: "+company), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Email: "+email), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	// Trip table header
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(52, 152, 219)
	pdf.SetTextColor(255, 255, 255)
	for i, header := range tripColumnHeaders {
		pdf.CellFormat(tripColumnWidths[i], 9, tr(header), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	// Trip rows with alternating shading
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(0, 0, 0)
	for i, trip := range trips {
		if i%2 == 0 {
			pdf.SetFillColor(255, 255, 255)
		} else {
			pdf.SetFillColor(211, 211, 211)
		}
		pdf.CellFormat(tripColumnWidths[0], 8, trip.Date.Format("2006-01-02"), "1", 0, "L", true, 0, "")
		pdf.CellFormat(tripColumnWidths[1], 8, tr(truncateLabel(trip.StartAddress, addressCharBudget)), "1", 0, "L", true, 0, "")
		pdf.CellFormat(tripColumnWidths[2], 8, tr(truncateLabel(trip.EndAddress, addressCharBudget)), "1", 0, "L", true, 0, "")
		pdf.CellFormat(tripColumnWidths[3], 8, trip.DistanceKm.StringFixed(2), "1", 0, "R", true, 0, "")
		pdf.CellFormat(tripColumnWidths[4], 8, tr(truncateLabel(trip.Purpose, purposeCharBudget)), "1", 1, "L", true, 0, "")
	}
	pdf.Ln(6)

	// Totals box
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(236, 240, 241)
	pdf.SetTextColor(44, 62, 80)
	pdf.CellFormat(110, 10, "Total Trips:", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 10, fmt.Sprint(report.TripCount), "1", 1, "R", true, 0, "")
	pdf.CellFormat(110, 10, "Total Distance:", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 10, report.TotalKm.StringFixed(2)+" km", "1", 1, "R", true, 0, "")
	pdf.Ln(10)

	// Generation footer
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 5, "Report generated: "+time.Now().Format("2006-01-02 15:04"), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}
