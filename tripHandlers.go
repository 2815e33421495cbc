package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kilometri/kilometri_backend/config"
	"github.com/kilometri/kilometri_backend/models"
	"github.com/kilometri/kilometri_backend/utils"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type tripRequest struct {
	Date         string          `json:"date" binding:"required"`
	StartAddress string          `json:"start_address" binding:"required"`
	EndAddress   string          `json:"end_address" binding:"required"`
	DistanceKm   decimal.Decimal `json:"distance_km"`
	Purpose      string          `json:"purpose"`
	IsManual     *bool           `json:"is_manual"`
	RouteData    json.RawMessage `json:"route_data"`
}

// parseDate accepts bare dates and full RFC3339 timestamps; only the day
// matters for trips.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func bindTripRequest(c *gin.Context) (*models.NewTrip, bool) {
	var req tripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "validation failed",
				"code":   "validation_error",
				"fields": utils.ProcessValidationErrors(ve),
			})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "code": "validation_error"})
		return nil, false
	}

	date, err := parseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"code":   "validation_error",
			"fields": map[string]string{"date": "expected YYYY-MM-DD"},
		})
		return nil, false
	}

	return &models.NewTrip{
		Date:         date,
		StartAddress: req.StartAddress,
		EndAddress:   req.EndAddress,
		DistanceKm:   req.DistanceKm,
		Purpose:      req.Purpose,
		IsManual:     req.IsManual,
		RouteData:    req.RouteData,
	}, true
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "code": "not_found"})
		return 0, false
	}
	return id, true
}

func createTripHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		userId, ok := sessionUserId(c)
		if !ok {
			return
		}
		input, ok := bindTripRequest(c)
		if !ok {
			return
		}

		trip, err := models.CreateTrip(c.Request.Context(), userId, input)
		if err != nil {
			config.LogError(logger, "tripHandlers.go", "createTripHandler", "CreateTrip", userId, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, trip)
	}
}

func tripFilterFromQuery(c *gin.Context) (models.TripFilter, error) {
	filter := models.TripFilter{
		Search:  strings.TrimSpace(c.Query("search")),
		OrderBy: strings.TrimSpace(c.Query("order_by")),
	}

	for query, dest := range map[string]**time.Time{
		"date":        &filter.Date,
		"date_after":  &filter.DateAfter,
		"date_before": &filter.DateBefore,
	} {
		v := strings.TrimSpace(c.Query(query))
		if v == "" {
			continue
		}
		t, err := parseDate(v)
		if err != nil {
			return filter, models.FieldErrors{query: "expected YYYY-MM-DD"}
		}
		*dest = &t
	}

	if v := strings.TrimSpace(c.Query("is_manual")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, models.FieldErrors{"is_manual": "expected true or false"}
		}
		filter.IsManual = &b
	}
	return filter, nil
}

func listTripsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		userId, ok := sessionUserId(c)
		if !ok {
			return
		}

		filter, err := tripFilterFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}

		trips, err := models.GetTrips(c.Request.Context(), userId, filter)
		if err != nil {
			config.LogError(logger, "tripHandlers.go", "listTripsHandler", "GetTrips", userId, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trips)
	}
}

func getTripHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := sessionUserId(c)
		if !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}

		trip, err := models.GetTrip(c.Request.Context(), userId, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

func updateTripHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		userId, ok := sessionUserId(c)
		if !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		input, ok := bindTripRequest(c)
		if !ok {
			return
		}

		trip, err := models.UpdateTrip(c.Request.Context(), userId, id, input)
		if err != nil {
			config.LogError(logger, "tripHandlers.go", "updateTripHandler", "UpdateTrip", id, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

func deleteTripHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		userId, ok := sessionUserId(c)
		if !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}

		if err := models.DeleteTrip(c.Request.Context(), userId, id); err != nil {
			config.LogError(logger, "tripHandlers.go", "deleteTripHandler", "DeleteTrip", id, err)
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func tripSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		userId, ok := sessionUserId(c)
		if !ok {
			return
		}

		summaries, err := models.GetMonthlySummaries(c.Request.Context(), userId)
		if err != nil {
			config.LogError(logger, "tripHandlers.go", "tripSummaryHandler", "GetMonthlySummaries", userId, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summaries)
	}
}

func calculateDistanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		if _, ok := sessionUserId(c); !ok {
			return
		}

		var input models.DistanceInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_address and end_address are required", "code": "validation_error"})
			return
		}

		result, err := models.CalculateDistance(c.Request.Context(), input.StartAddress, input.EndAddress)
		if err != nil {
			config.LogError(logger, "tripHandlers.go", "calculateDistanceHandler", "CalculateDistance", input, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
