package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facegate/internal/service"
	"github.com/your-org/facegate/pkg/dto"
)

type CollectionHandler struct {
	collections *service.CollectionService
}

func NewCollectionHandler(collections *service.CollectionService) *CollectionHandler {
	return &CollectionHandler{collections: collections}
}

func (h *CollectionHandler) Create(c *gin.Context) {
	var req dto.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	col, err := h.collections.Create(c.Request.Context(), req.CollectionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CollectionResponse{
		CollectionID: col.ID,
		State:        string(col.State),
		CreatedAt:    col.CreatedAt.Format(time.RFC3339),
	})
}

func (h *CollectionHandler) List(c *gin.Context) {
	cols, err := h.collections.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]dto.CollectionResponse, 0, len(cols))
	for _, col := range cols {
		resp = append(resp, dto.CollectionResponse{
			CollectionID: col.ID,
			State:        string(col.State),
			CreatedAt:    col.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"collections": resp, "total": len(resp)})
}

func (h *CollectionHandler) Delete(c *gin.Context) {
	if err := h.collections.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *CollectionHandler) ListFaces(c *gin.Context) {
	faces, err := h.collections.ListFaces(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]dto.FaceResponse, 0, len(faces))
	for _, f := range faces {
		resp = append(resp, toFaceResponse(f))
	}

	c.JSON(http.StatusOK, gin.H{"faces": resp, "total": len(resp)})
}
