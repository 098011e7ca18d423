package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facegate/internal/service"
)

const uploadFolder = "uploads"

// ImageHandler archives caller-uploaded images and hands back the opaque
// reference later requests can cite.
type ImageHandler struct {
	archive service.ImageArchiver
}

func NewImageHandler(archive service.ImageArchiver) *ImageHandler {
	return &ImageHandler{archive: archive}
}

func (h *ImageHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty image"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	imageID, err := h.archive.StoreImage(c.Request.Context(), uploadFolder, data, contentType)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"image_id": imageID})
}
