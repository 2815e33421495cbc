package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/kilometri/kilometri_backend/config"
	"github.com/kilometri/kilometri_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Reports are only available from this year onwards.
const minReportYear = 2020

// MonthlyReport is a frozen snapshot of one owner's travel for one calendar
// month. Totals are computed once at generation time and never recomputed,
// even if trips in the period change afterwards; the sanctioned way to
// refresh a snapshot is delete + regenerate.
type MonthlyReport struct {
	ID        int             `gorm:"primary_key" json:"id"`
	UserId    int             `gorm:"not null;uniqueIndex:idx_reports_user_period" json:"user_id"`
	Year      int             `gorm:"not null;uniqueIndex:idx_reports_user_period" json:"year"`
	Month     int             `gorm:"not null;uniqueIndex:idx_reports_user_period" json:"month"`
	TotalKm   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_km"`
	TripCount int             `gorm:"not null;default:0" json:"trip_count"`
	PdfUrl    string          `gorm:"size:1000" json:"pdf_url"`
	ExcelUrl  string          `gorm:"size:1000" json:"excel_url"`
	SentAt    *time.Time      `json:"sent_at"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (r MonthlyReport) GetId() int {
	return r.ID
}

// IsRendered reports whether the document files have been produced and
// attached. Empty references mean "not yet rendered".
func (r MonthlyReport) IsRendered() bool {
	return r.PdfUrl != "" && r.ExcelUrl != ""
}

// PeriodDisplay renders the period as e.g. "November 2025".
func (r MonthlyReport) PeriodDisplay() string {
	return time.Date(r.Year, time.Month(r.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

type GenerateReportInput struct {
	Year  int `json:"year" binding:"required"`
	Month int `json:"month" binding:"required"`
}

// PeriodRange returns the half-open interval [first of month, first of next
// month) in UTC.
func PeriodRange(year int, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// ValidatePeriod enforces month in [1,12], a plausible year, and that the
// period has already begun.
func ValidatePeriod(year int, month int) error {
	fe := FieldErrors{}

	if month < 1 || month > 12 {
		fe["month"] = "month must be between 1 and 12"
	}
	currentYear := time.Now().Year()
	if year < minReportYear {
		fe["year"] = fmt.Sprintf("reports are only available from %d onwards", minReportYear)
	} else if year > currentYear+1 {
		fe["year"] = "year is too far in the future"
	}

	if len(fe) == 0 {
		start, _ := PeriodRange(year, month)
		if start.After(time.Now()) {
			fe["month"] = "cannot generate a report for a future period"
		}
	}

	if len(fe) > 0 {
		return fe
	}
	return nil
}

// SumTripDistances computes the decimal-exact total, rounded to two places.
// Decimal arithmetic keeps the total independent of summation order.
func SumTripDistances(trips []*Trip) decimal.Decimal {
	total := decimal.Zero
	for _, trip := range trips {
		total = total.Add(trip.DistanceKm)
	}
	return total.Round(2)
}

// GenerateMonthlyReport creates the snapshot for (userId, year, month).
//
// The existence check and the insert run inside one transaction; the unique
// key on (user_id, year, month) is the final authority under race, where the
// losing insert's 1062 is translated into the same ErrReportExists outcome
// as the early check. On ErrReportExists the existing report is returned so
// callers can hand it back to the client.
//
// The Redis lock is a best-effort optimization against duplicate-key noise
// from double-clicking clients; generation proceeds without it.
func GenerateMonthlyReport(ctx context.Context, userId int, year int, month int) (*MonthlyReport, []*Trip, error) {
	if err := ValidatePeriod(year, month); err != nil {
		return nil, nil, err
	}

	logger := config.GetLogger()
	if locker := config.GetRedisLock(); locker != nil {
		lockKey := fmt.Sprintf("lock:report:%d:%d-%02d", userId, year, month)
		lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
		if err == nil {
			defer func() {
				if releaseErr := lock.Release(ctx); releaseErr != nil && releaseErr != redislock.ErrLockNotHeld {
					config.LogError(logger, "monthlyReport.go", "GenerateMonthlyReport", "release redis lock", lockKey, releaseErr)
				}
			}()
		}
	}

	var report MonthlyReport
	var trips []*Trip

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing MonthlyReport
		err := tx.Where("user_id = ? AND year = ? AND month = ?", userId, year, month).
			Take(&existing).Error
		if err == nil {
			report = existing
			return ErrReportExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		start, end := PeriodRange(year, month)
		if err := tx.
			Where("user_id = ? AND date >= ? AND date < ?", userId, start, end).
			Order("date").Order("created_at").
			Find(&trips).Error; err != nil {
			return err
		}
		if len(trips) == 0 {
			return ErrNoTrips
		}

		report = MonthlyReport{
			UserId:    userId,
			Year:      year,
			Month:     month,
			TotalKm:   SumTripDistances(trips),
			TripCount: len(trips),
		}
		if err := tx.Create(&report).Error; err != nil {
			if IsDuplicateKeyError(err) {
				return ErrReportExists
			}
			return err
		}
		return nil
	})

	if errors.Is(err, ErrReportExists) {
		if report.ID == 0 {
			// Lost the insert race. The winner committed after this
			// transaction's read snapshot was taken, so under REPEATABLE
			// READ a lookup inside the transaction would miss it; read the
			// committed row on a fresh connection instead.
			lookupErr := db.WithContext(ctx).
				Where("user_id = ? AND year = ? AND month = ?", userId, year, month).
				Take(&report).Error
			if lookupErr != nil && !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
				return nil, nil, lookupErr
			}
		}
		return &report, nil, ErrReportExists
	}
	if err != nil {
		return nil, nil, err
	}
	return &report, trips, nil
}

func GetReports(ctx context.Context, userId int) ([]*MonthlyReport, error) {
	db := config.GetDB()
	var reports []*MonthlyReport
	err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("year DESC").Order("month DESC").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func GetReport(ctx context.Context, userId int, id int) (*MonthlyReport, error) {
	db := config.GetDB()
	var report MonthlyReport
	err := db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userId, id).
		Take(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &report, nil
}

// GetReportAnyOwner is used by the render worker, which acts on behalf of the
// owner recorded in the message rather than an authenticated request.
func GetReportAnyOwner(ctx context.Context, id int) (*MonthlyReport, error) {
	db := config.GetDB()
	var report MonthlyReport
	if err := db.WithContext(ctx).Take(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &report, nil
}

// AttachRenderedFiles stores the document references produced by the
// renderer. Rendering failures never touch the row, so a report stays valid
// and un-rendered until this succeeds.
func AttachRenderedFiles(ctx context.Context, reportId int, pdfUrl string, excelUrl string) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&MonthlyReport{}).
		Where("id = ?", reportId).
		Updates(map[string]interface{}{"pdf_url": pdfUrl, "excel_url": excelUrl}).Error
}

func MarkReportSent(ctx context.Context, userId int, id int) (*MonthlyReport, error) {
	report, err := GetReport(ctx, userId, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	report.SentAt = &now

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(report).Update("sent_at", now).Error; err != nil {
		return nil, err
	}
	return report, nil
}

func DeleteReport(ctx context.Context, userId int, id int) error {
	if err := utils.ValidateResourceId[MonthlyReport](ctx, userId, id); err != nil {
		return err
	}
	db := config.GetDB()
	return db.WithContext(ctx).Where("user_id = ?", userId).Delete(&MonthlyReport{}, id).Error
}
