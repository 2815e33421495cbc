package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/kilometri/kilometri_backend/config"
	"github.com/kilometri/kilometri_backend/models"
	"github.com/kilometri/kilometri_backend/utils"
)

const maxAvatarSizeBytes int64 = 5 * 1024 * 1024

// avatarEdge is the bounding box for stored avatars; larger uploads are
// downscaled, smaller ones kept as-is.
const avatarEdge = 512

var avatarMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

func uploadAvatarHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		userId, ok := sessionUserId(c)
		if !ok {
			return
		}

		fileHeader, err := c.FormFile("avatar")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required", "code": "validation_error"})
			return
		}
		if fileHeader.Size > maxAvatarSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit", "code": "validation_error"})
			return
		}
		if mime := fileHeader.Header.Get("Content-Type"); mime != "" && !avatarMimeTypes[mime] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type", "code": "validation_error"})
			return
		}

		f, err := fileHeader.Open()
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadAvatarHandler", "Open", fileHeader.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload", "code": "internal_error"})
			return
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxAvatarSizeBytes+1))
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadAvatarHandler", "ReadAll", fileHeader.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload", "code": "internal_error"})
			return
		}

		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is not a valid image", "code": "validation_error"})
			return
		}
		if img.Bounds().Dx() > avatarEdge || img.Bounds().Dy() > avatarEdge {
			img = imaging.Fit(img, avatarEdge, avatarEdge, imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
			config.LogError(logger, "uploads.go", "uploadAvatarHandler", "Encode", fileHeader.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process image", "code": "internal_error"})
			return
		}

		// Remember the old object so it can be removed after the swap.
		var oldKey string
		if current, err := models.GetUser(c.Request.Context(), userId); err == nil && current.ImageUrl != "" {
			oldKey = utils.ExtractObjectKeyFromURL(current.ImageUrl)
		}

		objectKey := path.Join("avatars", fmt.Sprintf("%d", userId), utils.GenerateUniqueFilename()+".jpg")
		imageUrl, err := utils.SaveBytesToGCS(c.Request.Context(), objectKey, buf.Bytes(), "image/jpeg")
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadAvatarHandler", "SaveBytesToGCS", objectKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store image", "code": "internal_error"})
			return
		}

		user, err := models.UpdateAvatar(c.Request.Context(), userId, imageUrl)
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadAvatarHandler", "UpdateAvatar", userId, err)
			respondError(c, err)
			return
		}

		if oldKey != "" && oldKey != objectKey {
			if err := utils.DeleteFromGCS(c.Request.Context(), oldKey); err != nil {
				config.LogError(logger, "uploads.go", "uploadAvatarHandler", "DeleteFromGCS", oldKey, err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"image_url": user.ImageUrl})
	}
}
