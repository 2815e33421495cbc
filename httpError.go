package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kilometri/kilometri_backend/models"
	"github.com/kilometri/kilometri_backend/utils"
)

// statusForKind maps model error kinds onto HTTP statuses.
var statusForKind = map[string]int{
	"validation_error": http.StatusBadRequest,
	"no_data":          http.StatusBadRequest,
	"already_exists":   http.StatusConflict,
	"already_rendered": http.StatusConflict,
	"maps_error":       http.StatusBadGateway,
	"render_error":     http.StatusInternalServerError,
	"internal_error":   http.StatusInternalServerError,
}

func respondError(c *gin.Context, err error) {
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "code": "not_found"})
		return
	}

	var fe models.FieldErrors
	if errors.As(err, &fe) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"code":   "validation_error",
			"fields": map[string]string(fe),
		})
		return
	}

	kind := models.ErrorKind(err)
	status, ok := statusForKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": kind})
}

func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
}

// sessionUserId requires an authenticated session; aborts with 401 when absent.
func sessionUserId(c *gin.Context) (int, bool) {
	userId, ok := utils.GetUserIdFromContext(c.Request.Context())
	if !ok || userId <= 0 {
		respondUnauthorized(c)
		return 0, false
	}
	return userId, true
}
