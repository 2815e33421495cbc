package models

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/kilometri/kilometri_backend/config"
	"github.com/kilometri/kilometri_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// MaxDistanceKm rejects implausible entries (e.g. meters typed as km).
	MaxDistanceKm = 10000

	// TripRetentionDays bounds how far back a trip date may lie.
	TripRetentionDays = 730

	maxAddressLength = 500
	maxPurposeLength = 500
)

// Trip is a single business travel entry, either manually entered or
// computed from the Distance Matrix API.
type Trip struct {
	ID           int             `gorm:"primary_key" json:"id"`
	UserId       int             `gorm:"index:idx_trips_user_date;not null" json:"user_id"`
	Date         time.Time       `gorm:"index:idx_trips_user_date;not null" json:"date"`
	StartAddress string          `gorm:"size:500;not null" json:"start_address"`
	EndAddress   string          `gorm:"size:500;not null" json:"end_address"`
	DistanceKm   decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"distance_km"`
	Purpose      string          `gorm:"size:500" json:"purpose"`
	IsManual     *bool           `gorm:"not null;default:false" json:"is_manual"`
	RouteData    json.RawMessage `gorm:"type:json" json:"route_data,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t Trip) GetId() int {
	return t.ID
}

type NewTrip struct {
	Date         time.Time       `json:"date" binding:"required"`
	StartAddress string          `json:"start_address" binding:"required"`
	EndAddress   string          `json:"end_address" binding:"required"`
	DistanceKm   decimal.Decimal `json:"distance_km"`
	Purpose      string          `json:"purpose"`
	IsManual     *bool           `json:"is_manual"`
	RouteData    json.RawMessage `json:"route_data,omitempty"`
}

// TripFilter narrows and orders an owner's trip listing.
type TripFilter struct {
	Date       *time.Time
	DateAfter  *time.Time
	DateBefore *time.Time
	IsManual   *bool
	Search     string
	OrderBy    string
}

// Patterns that have no business in an address field; injection probes get
// rejected at the door instead of stored verbatim.
var dangerousAddressPatterns = []string{
	"<script",
	"<iframe",
	"javascript:",
	"--;",
	"/*",
	"*/",
	"||",
	"@@",
}

func validateAddress(field, value string, fe FieldErrors) {
	value = strings.TrimSpace(value)
	if value == "" {
		fe[field] = "address is required"
		return
	}
	if len(value) > maxAddressLength {
		fe[field] = "address is too long (max 500 characters)"
		return
	}
	lowered := strings.ToLower(value)
	for _, pattern := range dangerousAddressPatterns {
		if strings.Contains(lowered, pattern) {
			fe[field] = "address contains invalid characters"
			return
		}
	}
}

// ValidateTrip applies the field rules: distance strictly positive and below
// the ceiling, addresses sane, date neither in the future nor outside the
// retention window.
func ValidateTrip(input *NewTrip) error {
	fe := FieldErrors{}

	validateAddress("start_address", input.StartAddress, fe)
	validateAddress("end_address", input.EndAddress, fe)

	if !input.DistanceKm.IsPositive() {
		fe["distance_km"] = "distance must be positive"
	} else if input.DistanceKm.GreaterThan(decimal.NewFromInt(MaxDistanceKm)) {
		fe["distance_km"] = "distance seems unreasonably high (max 10000 km)"
	}

	if len(input.Purpose) > maxPurposeLength {
		fe["purpose"] = "purpose is too long (max 500 characters)"
	}

	today := time.Now()
	endOfToday := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, 0, time.UTC)
	if input.Date.After(endOfToday) {
		fe["date"] = "trip date cannot be in the future"
	} else if input.Date.Before(today.AddDate(0, 0, -TripRetentionDays)) {
		fe["date"] = "trip date is older than the retention window"
	}

	if len(fe) > 0 {
		return fe
	}
	return nil
}

// needsAutoDistance reports whether the distance is left to the route
// service: no positive distance supplied and the trip not flagged as
// manually measured.
func needsAutoDistance(input *NewTrip) bool {
	return !input.DistanceKm.IsPositive() && !utils.DereferencePtr(input.IsManual)
}

// resolveAutoDistance fills in the driving distance, the geocoded addresses
// and the route payload when the caller omitted the distance. Manual trips
// are left untouched.
func resolveAutoDistance(ctx context.Context, input *NewTrip) error {
	if !needsAutoDistance(input) {
		return nil
	}
	result, err := CalculateDistance(ctx, input.StartAddress, input.EndAddress)
	if err != nil {
		return err
	}
	input.DistanceKm = result.DistanceKm
	input.StartAddress = result.StartAddress
	input.EndAddress = result.EndAddress
	if len(input.RouteData) == 0 {
		input.RouteData = result.RouteData
	}
	input.IsManual = utils.NewFalse()
	return nil
}

func CreateTrip(ctx context.Context, userId int, input *NewTrip) (*Trip, error) {
	if err := resolveAutoDistance(ctx, input); err != nil {
		return nil, err
	}
	if err := ValidateTrip(input); err != nil {
		return nil, err
	}

	isManual := input.IsManual
	if isManual == nil {
		isManual = utils.NewFalse()
	}

	trip := Trip{
		UserId:       userId,
		Date:         input.Date,
		StartAddress: strings.TrimSpace(input.StartAddress),
		EndAddress:   strings.TrimSpace(input.EndAddress),
		DistanceKm:   input.DistanceKm.Round(2),
		Purpose:      strings.TrimSpace(input.Purpose),
		IsManual:     isManual,
		RouteData:    input.RouteData,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&trip).Error; err != nil {
		return nil, err
	}
	return &trip, nil
}

var tripOrderColumns = map[string]string{
	"date":         "date",
	"-date":        "date DESC",
	"distance_km":  "distance_km",
	"-distance_km": "distance_km DESC",
	"created_at":   "created_at",
	"-created_at":  "created_at DESC",
}

func GetTrips(ctx context.Context, userId int, filter TripFilter) ([]*Trip, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Trip{}).Where("user_id = ?", userId)

	if filter.Date != nil {
		dbCtx = dbCtx.Where("date = ?", *filter.Date)
	}
	if filter.DateAfter != nil {
		dbCtx = dbCtx.Where("date >= ?", *filter.DateAfter)
	}
	if filter.DateBefore != nil {
		dbCtx = dbCtx.Where("date <= ?", *filter.DateBefore)
	}
	if filter.IsManual != nil {
		dbCtx = dbCtx.Where("is_manual = ?", *filter.IsManual)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		dbCtx = dbCtx.Where(
			"start_address LIKE ? OR end_address LIKE ? OR purpose LIKE ?",
			pattern, pattern, pattern,
		)
	}

	if order, ok := tripOrderColumns[filter.OrderBy]; ok {
		dbCtx = dbCtx.Order(order)
	} else {
		dbCtx = dbCtx.Order("date DESC").Order("created_at DESC")
	}

	var trips []*Trip
	if err := dbCtx.Find(&trips).Error; err != nil {
		return nil, err
	}
	return trips, nil
}

func GetTrip(ctx context.Context, userId int, id int) (*Trip, error) {
	db := config.GetDB()
	var trip Trip
	err := db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userId, id).
		Take(&trip).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &trip, nil
}

func UpdateTrip(ctx context.Context, userId int, id int, input *NewTrip) (*Trip, error) {
	trip, err := GetTrip(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if err := resolveAutoDistance(ctx, input); err != nil {
		return nil, err
	}
	if err := ValidateTrip(input); err != nil {
		return nil, err
	}

	trip.Date = input.Date
	trip.StartAddress = strings.TrimSpace(input.StartAddress)
	trip.EndAddress = strings.TrimSpace(input.EndAddress)
	trip.DistanceKm = input.DistanceKm.Round(2)
	trip.Purpose = strings.TrimSpace(input.Purpose)
	if input.IsManual != nil {
		trip.IsManual = input.IsManual
	}
	if input.RouteData != nil {
		trip.RouteData = input.RouteData
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(trip).Error; err != nil {
		return nil, err
	}
	return trip, nil
}

// DeleteTrip removes the trip. Reports keep their snapshot totals, so
// deleting a trip never touches an already-generated report.
func DeleteTrip(ctx context.Context, userId int, id int) error {
	if err := utils.ValidateResourceId[Trip](ctx, userId, id); err != nil {
		return err
	}
	db := config.GetDB()
	return db.WithContext(ctx).Where("user_id = ?", userId).Delete(&Trip{}, id).Error
}

// GetTripsForPeriod returns the owner's trips whose date falls inside the
// calendar month, oldest first (report row order).
func GetTripsForPeriod(ctx context.Context, userId int, year int, month int) ([]*Trip, error) {
	start, end := PeriodRange(year, month)

	db := config.GetDB()
	var trips []*Trip
	err := db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date < ?", userId, start, end).
		Order("date").Order("created_at").
		Find(&trips).Error
	if err != nil {
		return nil, err
	}
	return trips, nil
}

// MonthlySummary is the lightweight per-month rollup for the summary
// endpoint; unlike a MonthlyReport it is computed on the fly, never stored.
type MonthlySummary struct {
	Year      int             `json:"year"`
	Month     int             `json:"month"`
	TripCount int             `json:"trip_count"`
	TotalKm   decimal.Decimal `json:"total_km"`
}

func GetMonthlySummaries(ctx context.Context, userId int) ([]*MonthlySummary, error) {
	sql := `
SELECT
	YEAR(date) AS year,
	MONTH(date) AS month,
	COUNT(id) AS trip_count,
	SUM(distance_km) AS total_km
FROM
	trips
WHERE
	user_id = ?
GROUP BY
	YEAR(date), MONTH(date)
ORDER BY
	year DESC, month DESC
`

	var summaries []*MonthlySummary
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, userId).Scan(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}
