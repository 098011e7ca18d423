package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facegate/internal/faceerr"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/pkg/dto"
)

// writeError maps the error taxonomy onto HTTP statuses. A dangling
// descriptor gets a dedicated body so the caller can retry the link.
func writeError(c *gin.Context, err error) {
	var dangling *faceerr.DanglingDescriptor
	if errors.As(err, &dangling) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":         "face indexed but identity link failed; retry the link or delete the face",
			"collection_id": dangling.CollectionID,
			"face_id":       dangling.FaceID,
		})
		return
	}

	status := http.StatusInternalServerError
	switch faceerr.KindOf(err) {
	case faceerr.Validation:
		status = http.StatusBadRequest
	case faceerr.NotFound:
		status = http.StatusNotFound
	case faceerr.Conflict, faceerr.HasDependents:
		status = http.StatusConflict
	case faceerr.Transient:
		status = http.StatusServiceUnavailable
	case faceerr.Notification:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func toRecordResponse(rec *models.IdentityRecord) *dto.RecordResponse {
	if rec == nil {
		return nil
	}
	return &dto.RecordResponse{
		FaceID:         rec.FaceID,
		Name:           rec.Name,
		ContactNumber:  rec.ContactNumber,
		DocumentNumber: rec.DocumentNumber,
		RequestType:    rec.RequestType,
		ImageID:        rec.ImageID,
		CreatedAt:      rec.CreatedAt.Format(time.RFC3339),
	}
}

func toFaceResponse(d models.FaceDescriptor) dto.FaceResponse {
	return dto.FaceResponse{
		FaceID:       d.FaceID,
		CollectionID: d.CollectionID,
		BoundingBox:  toBBox(d.BoundingBox),
		Confidence:   d.Confidence,
		ImageID:      d.ImageID,
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
	}
}

func toBBox(b models.BoundingBox) dto.BBox {
	return dto.BBox{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2}
}
