package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kilometri/kilometri_backend/config"
	"github.com/kilometri/kilometri_backend/models"
	"github.com/kilometri/kilometri_backend/utils"
)

func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":  "validation failed",
					"code":   "validation_error",
					"fields": utils.ProcessValidationErrors(ve),
				})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "code": "validation_error"})
			return
		}

		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			config.LogError(logger, "userHandlers.go", "registerHandler", "CreateUser", input.Username, err)
			respondError(c, err)
			return
		}

		user.PrepareGive()
		c.JSON(http.StatusCreated, user)
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required", "code": "validation_error"})
			return
		}

		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			config.LogError(logger, "userHandlers.go", "loginHandler", "Login", req.Username, err)
			// Always the same body for bad username and bad password.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials", "code": "unauthorized"})
			return
		}

		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		if _, ok := sessionUserId(c); !ok {
			return
		}

		if _, err := models.Logout(c.Request.Context()); err != nil {
			config.LogError(logger, "userHandlers.go", "logoutHandler", "Logout", nil, err)
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func getProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := sessionUserId(c)
		if !ok {
			return
		}

		user, err := models.GetUser(c.Request.Context(), userId)
		if err != nil {
			respondError(c, err)
			return
		}

		user.PrepareGive()
		c.JSON(http.StatusOK, user)
	}
}

func updateProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		userId, ok := sessionUserId(c)
		if !ok {
			return
		}

		var input models.UpdateProfileInput
		if err := c.ShouldBindJSON(&input); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":  "validation failed",
					"code":   "validation_error",
					"fields": utils.ProcessValidationErrors(ve),
				})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "code": "validation_error"})
			return
		}

		user, err := models.UpdateProfile(c.Request.Context(), userId, &input)
		if err != nil {
			config.LogError(logger, "userHandlers.go", "updateProfileHandler", "UpdateProfile", userId, err)
			respondError(c, err)
			return
		}

		user.PrepareGive()
		c.JSON(http.StatusOK, user)
	}
}

func changePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		userId, ok := sessionUserId(c)
		if !ok {
			return
		}

		var input models.ChangePasswordInput
		if err := c.ShouldBindJSON(&input); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":  "validation failed",
					"code":   "validation_error",
					"fields": utils.ProcessValidationErrors(ve),
				})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "code": "validation_error"})
			return
		}

		if err := models.ChangePassword(c.Request.Context(), userId, &input); err != nil {
			config.LogError(logger, "userHandlers.go", "changePasswordHandler", "ChangePassword", userId, err)
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
