package controllers

import (
	"net/http"

	"github.com/civicwatch/backend/internal/middleware"
	"github.com/civicwatch/backend/internal/services"
	"github.com/gin-gonic/gin"
)

// UploadFormField is the multipart field carrying issue photos.
const UploadFormField = "files"

type UploadController struct {
	uploads *services.UploadService
}

func NewUploadController(uploads *services.UploadService) *UploadController {
	return &UploadController{uploads: uploads}
}

func (uc *UploadController) UploadImages(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}

	urls, err := uc.uploads.Upload(c.Request.Context(), middleware.CurrentSession(c), form.File[UploadFormField])
	if err != nil {
		respondError(c, err, "Failed to upload files")
		return
	}
	c.JSON(http.StatusOK, gin.H{"urls": urls})
}
