package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facegate/internal/service"
	"github.com/your-org/facegate/pkg/dto"
)

type MatchHandler struct {
	match *service.MatchService
}

func NewMatchHandler(match *service.MatchService) *MatchHandler {
	return &MatchHandler{match: match}
}

// Match runs match-and-notify for an uploaded probe image. An optional
// threshold form field overrides the configured default.
func (h *MatchHandler) Match(c *gin.Context) {
	image, ok := readImageFile(c, "image")
	if !ok {
		return
	}

	threshold, ok := parseThreshold(c)
	if !ok {
		return
	}

	outcome, err := h.match.MatchAndNotify(c.Request.Context(), c.Param("id"), image, threshold)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := dto.MatchResponse{
		Matched:    outcome.Matched,
		Similarity: outcome.Similarity,
		Orphaned:   outcome.Orphaned,
		Record:     toRecordResponse(outcome.Record),
		Notification: dto.Notification{
			Status: string(outcome.Notification.Status),
			Reason: outcome.Notification.Reason,
		},
	}
	if outcome.Matched {
		faceID := outcome.FaceID
		resp.FaceID = &faceID
	}

	c.JSON(http.StatusOK, resp)
}

// Compare scores the most prominent face in the source image against every
// face in the target image.
func (h *MatchHandler) Compare(c *gin.Context) {
	source, ok := readImageFile(c, "source")
	if !ok {
		return
	}
	target, ok := readImageFile(c, "target")
	if !ok {
		return
	}

	threshold, ok := parseThreshold(c)
	if !ok {
		return
	}

	result, err := h.match.Compare(c.Request.Context(), source, target, threshold)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := dto.CompareResponse{
		SourceFace:       toBBox(result.SourceFace),
		SourceConfidence: result.SourceConfidence,
		Matches:          make([]dto.CompareMatchResponse, 0, len(result.Matches)),
		Unmatched:        make([]dto.BBox, 0, len(result.Unmatched)),
	}
	for _, m := range result.Matches {
		resp.Matches = append(resp.Matches, dto.CompareMatchResponse{
			BoundingBox: toBBox(m.BoundingBox),
			Confidence:  m.Confidence,
			Similarity:  m.Similarity,
		})
	}
	for _, b := range result.Unmatched {
		resp.Unmatched = append(resp.Unmatched, toBBox(b))
	}

	c.JSON(http.StatusOK, resp)
}

// parseThreshold reads the optional threshold form field. Absent is reported
// as -1, which the match service resolves to the configured default; an
// explicit 0 passes through as a real floor.
func parseThreshold(c *gin.Context) (float64, bool) {
	raw := c.PostForm("threshold")
	if raw == "" {
		return -1, true
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil || threshold < 0 || threshold > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a number in [0,100]"})
		return 0, false
	}
	return threshold, true
}
