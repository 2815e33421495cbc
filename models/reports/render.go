package reports

import (
	"context"
	"fmt"

	"github.com/kilometri/kilometri_backend/models"
	"github.com/kilometri/kilometri_backend/utils"
)

// RenderMonthlyReport produces the PDF and Excel files for a persisted
// report snapshot, uploads both to durable storage, and attaches the
// references to the report row. Any failure leaves the snapshot intact and
// un-rendered; the caller may retry.
func RenderMonthlyReport(ctx context.Context, user *models.User, report *models.MonthlyReport, trips []*models.Trip) (string, string, error) {
	pdfBytes, err := BuildPDF(user, report, trips)
	if err != nil {
		return "", "", err
	}
	excelBytes, err := BuildExcel(report, trips)
	if err != nil {
		return "", "", err
	}

	pdfKey := fmt.Sprintf("reports/pdf/%d_%d_%02d.pdf", user.ID, report.Year, report.Month)
	pdfUrl, err := utils.SaveBytesToGCS(ctx, pdfKey, pdfBytes, "application/pdf")
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", models.ErrRenderFailed, err)
	}

	excelKey := fmt.Sprintf("reports/excel/%d_%d_%02d.xlsx", user.ID, report.Year, report.Month)
	excelUrl, err := utils.SaveBytesToGCS(ctx, excelKey, excelBytes,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", models.ErrRenderFailed, err)
	}

	if err := models.AttachRenderedFiles(ctx, report.ID, pdfUrl, excelUrl); err != nil {
		return "", "", err
	}
	return pdfUrl, excelUrl, nil
}
