package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"craftResume/internal/api/middleware"
	"craftResume/internal/enhance"
	"craftResume/internal/llm"
)

// EnhanceHandler triggers resume enhancements.
type EnhanceHandler struct {
	service *enhance.Service
}

// NewEnhanceHandler builds the handler.
func NewEnhanceHandler(service *enhance.Service) *EnhanceHandler {
	return &EnhanceHandler{service: service}
}

type enhanceRequest struct {
	EnhancementType string `json:"enhancement_type"`
}

// Enhance rewrites one resume with the caller's active credential. The
// call is synchronous; the client waits for the provider round trip.
func (h *EnhanceHandler) Enhance(c *gin.Context) {
	userID := middleware.UserID(c)
	logger := middleware.LoggerFromContext(c)

	resumeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	var req enhanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.EnhancementType == "" {
		req.EnhancementType = llm.TypeClientQuality
	}

	enhancement, err := h.service.Enhance(c.Request.Context(), userID, uint(resumeID), req.EnhancementType)
	if err != nil {
		switch {
		case errors.Is(err, enhance.ErrResumeNotFound):
			NotFound(c, "resume not found")
		case errors.Is(err, enhance.ErrNoActiveCredential):
			BadRequest(c, "no active API key configured")
		default:
			logger.Error("enhancement failed", slog.Any("error", err))
			// The enhancement row, when one exists, already records the
			// provider failure for the client to inspect.
			if enhancement != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":          "enhancement failed",
					"enhancement_id": enhancement.ID,
					"status":         enhancement.Status,
				})
				return
			}
			Internal(c, "internal error")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"enhancement": enhancementView{
			ID:              enhancement.ID,
			EnhancementType: enhancement.EnhancementType,
			Provider:        enhancement.Provider,
			EnhancedContent: enhancement.EnhancedContent,
			Status:          enhancement.Status,
			CreatedAt:       enhancement.CreatedAt,
		},
	})
}
