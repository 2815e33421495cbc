package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kilometri/kilometri_backend/config"
	"github.com/kilometri/kilometri_backend/models"
	"github.com/kilometri/kilometri_backend/models/reports"
	"github.com/kilometri/kilometri_backend/utils"
	"github.com/sirupsen/logrus"
)

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func listReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		userId, ok := sessionUserId(c)
		if !ok {
			return
		}

		list, err := models.GetReports(c.Request.Context(), userId)
		if err != nil {
			config.LogError(logger, "reportHandlers.go", "listReportsHandler", "GetReports", userId, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func getReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := sessionUserId(c)
		if !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}

		report, err := models.GetReport(c.Request.Context(), userId, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func generateReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		userId, ok := sessionUserId(c)
		if !ok {
			return
		}

		var input models.GenerateReportInput
		if err := c.ShouldBindJSON(&input); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":  "validation failed",
					"code":   "validation_error",
					"fields": utils.ProcessValidationErrors(ve),
				})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "year and month are required", "code": "validation_error"})
			return
		}

		report, trips, err := models.GenerateMonthlyReport(c.Request.Context(), userId, input.Year, input.Month)
		if errors.Is(err, models.ErrReportExists) {
			// The body carries the surviving report so the client can show it.
			c.JSON(http.StatusConflict, gin.H{
				"error":  "a report for this period already exists",
				"code":   "already_exists",
				"report": report,
			})
			return
		}
		if err != nil {
			config.LogError(logger, "reportHandlers.go", "generateReportHandler", "GenerateMonthlyReport", input, err)
			respondError(c, err)
			return
		}

		// The snapshot is committed at this point. Rendering is decoupled:
		// a failure here leaves a valid, un-rendered report that the retry
		// endpoint can pick up.
		if config.PubSubEnabled() {
			if err := publishRenderRequest(c, report); err != nil {
				config.LogError(logger, "reportHandlers.go", "generateReportHandler", "publishRenderRequest", report.ID, err)
			}
		} else {
			user, err := models.GetUser(c.Request.Context(), userId)
			if err == nil {
				pdfUrl, excelUrl, renderErr := reports.RenderMonthlyReport(c.Request.Context(), user, report, trips)
				if renderErr != nil {
					config.LogError(logger, "reportHandlers.go", "generateReportHandler", "RenderMonthlyReport", report.ID, renderErr)
				} else {
					report.PdfUrl = pdfUrl
					report.ExcelUrl = excelUrl
				}
			}
		}

		c.JSON(http.StatusCreated, report)
	}
}

func publishRenderRequest(c *gin.Context, report *models.MonthlyReport) error {
	cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
	msg := config.RenderMessage{
		ReportId:      report.ID,
		UserId:        report.UserId,
		Year:          report.Year,
		Month:         report.Month,
		CorrelationId: cid,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return config.PublishRenderMessage(c.Request.Context(), data)
}

func renderReportHandler() gin.HandlerFunc {
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

		report, err := models.GetReport(c.Request.Context(), userId, id)
		if err != nil {
			respondError(c, err)
			return
		}
		if report.IsRendered() {
			respondError(c, models.ErrAlreadyRendered)
			return
		}

		user, err := models.GetUser(c.Request.Context(), userId)
		if err != nil {
			respondError(c, err)
			return
		}
		trips, err := models.GetTripsForPeriod(c.Request.Context(), userId, report.Year, report.Month)
		if err != nil {
			respondError(c, err)
			return
		}

		pdfUrl, excelUrl, err := reports.RenderMonthlyReport(c.Request.Context(), user, report, trips)
		if err != nil {
			config.LogError(logger, "reportHandlers.go", "renderReportHandler", "RenderMonthlyReport", report.ID, err)
			respondError(c, err)
			return
		}

		report.PdfUrl = pdfUrl
		report.ExcelUrl = excelUrl
		c.JSON(http.StatusOK, report)
	}
}

func sendReportHandler() gin.HandlerFunc {
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

		report, err := models.MarkReportSent(c.Request.Context(), userId, id)
		if err != nil {
			config.LogError(logger, "reportHandlers.go", "sendReportHandler", "MarkReportSent", id, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func deleteReportHandler() gin.HandlerFunc {
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

		report, err := models.GetReport(c.Request.Context(), userId, id)
		if err != nil {
			respondError(c, err)
			return
		}

		// Rendered files are cleaned up best-effort; an orphaned object is
		// preferable to a report row the user cannot delete.
		for _, url := range []string{report.PdfUrl, report.ExcelUrl} {
			if url == "" {
				continue
			}
			key := utils.ExtractObjectKeyFromURL(url)
			if key == "" {
				continue
			}
			if err := utils.DeleteFromGCS(c.Request.Context(), key); err != nil {
				config.LogError(logger, "reportHandlers.go", "deleteReportHandler", "DeleteFromGCS", key, err)
			}
		}

		if err := models.DeleteReport(c.Request.Context(), userId, id); err != nil {
			config.LogError(logger, "reportHandlers.go", "deleteReportHandler", "DeleteReport", id, err)
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// renderPubSubHandler is the push endpoint for deferred rendering. Malformed
// messages are acked to stop retries; transient failures return non-2xx so
// Pub/Sub redelivers.
func renderPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()
		redisLock := config.GetRedisLock()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "reportHandlers.go", "renderPubSubHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "reportHandlers.go", "renderPubSubHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var m config.RenderMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "reportHandlers.go", "renderPubSubHandler", "Unmarshal render message", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}
		if m.ReportId <= 0 {
			config.LogError(logger, "reportHandlers.go", "renderPubSubHandler", "Invalid render message", m, fmt.Errorf("report_id required"))
			c.Status(http.StatusNoContent)
			return
		}

		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationID)

		// Best-effort lock so concurrent redeliveries don't render the same
		// report twice. Correctness does not depend on it; rendering is
		// idempotent over the frozen snapshot.
		var lock *redislock.Lock
		if redisLock != nil {
			lock, err = redisLock.Obtain(ctx, fmt.Sprintf("lock:render:%d", m.ReportId), 30*time.Second, nil)
			if err != nil {
				if !errors.Is(err, redislock.ErrNotObtained) {
					logger.WithFields(logrus.Fields{
						"field":     "renderPubSubHandler",
						"report_id": m.ReportId,
					}).Warn("error obtaining redis lock; proceeding without it: " + err.Error())
				}
				lock = nil
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(ctx); releaseErr != nil {
				logger.WithFields(logrus.Fields{
					"field":     "renderPubSubHandler",
					"report_id": m.ReportId,
				}).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		report, err := models.GetReportAnyOwner(ctx, m.ReportId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				// Deleted before we got to it: ack.
				c.Status(http.StatusNoContent)
				return
			}
			c.Status(http.StatusInternalServerError)
			return
		}
		if report.IsRendered() {
			c.Status(http.StatusNoContent)
			return
		}

		user, err := models.GetUser(ctx, report.UserId)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		trips, err := models.GetTripsForPeriod(ctx, report.UserId, report.Year, report.Month)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}

		if _, _, err := reports.RenderMonthlyReport(ctx, user, report, trips); err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "renderPubSubHandler",
				"report_id":      m.ReportId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("render failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			c.Status(http.StatusInternalServerError)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
