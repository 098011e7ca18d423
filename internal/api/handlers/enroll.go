package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/service"
	"github.com/your-org/facegate/pkg/dto"
)

type EnrollHandler struct {
	enrollment *service.EnrollmentService
}

func NewEnrollHandler(enrollment *service.EnrollmentService) *EnrollHandler {
	return &EnrollHandler{enrollment: enrollment}
}

// Enroll accepts a multipart image upload plus identity fields, indexes the
// face and links the identity record.
func (h *EnrollHandler) Enroll(c *gin.Context) {
	var form dto.EnrollForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	image, ok := readImageFile(c, "image")
	if !ok {
		return
	}

	rec, err := h.enrollment.Enroll(c.Request.Context(), c.Param("id"), image, models.IdentityMetadata{
		Name:           form.Name,
		ContactNumber:  form.ContactNumber,
		DocumentNumber: form.DocumentNumber,
		RequestType:    form.RequestType,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toRecordResponse(rec))
}

// Relink retries the identity link for a descriptor left dangling by a
// failed enrollment.
func (h *EnrollHandler) Relink(c *gin.Context) {
	faceID, err := uuid.Parse(c.Param("faceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	var req dto.RelinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.enrollment.RetryLink(c.Request.Context(), c.Param("id"), faceID, models.IdentityMetadata{
		Name:           req.Name,
		ContactNumber:  req.ContactNumber,
		DocumentNumber: req.DocumentNumber,
		RequestType:    req.RequestType,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRecordResponse(rec))
}

// DeleteFace abandons a dangling descriptor. Refused while an identity
// record still references it.
func (h *EnrollHandler) DeleteFace(c *gin.Context) {
	faceID, err := uuid.Parse(c.Param("faceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	if err := h.enrollment.AbandonDescriptor(c.Request.Context(), c.Param("id"), faceID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// readImageFile pulls one multipart image file out of the request. On failure
// it writes the error response and returns ok=false.
func readImageFile(c *gin.Context, field string) ([]byte, bool) {
	file, _, err := c.Request.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file required"})
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read " + field + " failed"})
		return nil, false
	}
	return data, true
}
