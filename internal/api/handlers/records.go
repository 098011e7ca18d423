package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/storage"
	"github.com/your-org/facegate/pkg/dto"
)

type RecordHandler struct {
	db     *storage.PostgresStore
	images *storage.ImageStore
}

func NewRecordHandler(db *storage.PostgresStore, images *storage.ImageStore) *RecordHandler {
	return &RecordHandler{db: db, images: images}
}

func (h *RecordHandler) List(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)
	if limit < 1 || limit > 500 || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit or offset"})
		return
	}

	records, err := h.db.ListRecords(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]dto.RecordResponse, 0, len(records))
	for i := range records {
		resp = append(resp, *toRecordResponse(&records[i]))
	}

	c.JSON(http.StatusOK, gin.H{"records": resp, "total": len(resp)})
}

func (h *RecordHandler) Get(c *gin.Context) {
	faceID, err := uuid.Parse(c.Param("faceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	rec, err := h.db.GetRecord(c.Request.Context(), faceID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRecordResponse(rec))
}

// Image serves the archived enrollment image the record was created from.
func (h *RecordHandler) Image(c *gin.Context) {
	faceID, err := uuid.Parse(c.Param("faceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	rec, err := h.db.GetRecord(c.Request.Context(), faceID)
	if err != nil {
		writeError(c, err)
		return
	}
	if rec.ImageID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "record has no archived image"})
		return
	}

	data, err := h.images.FetchImage(c.Request.Context(), rec.ImageID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
