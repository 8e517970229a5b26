package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"craftResume/internal/api/middleware"
	"craftResume/internal/database"
	"craftResume/internal/pdf"
	"craftResume/internal/upload"
)

const presignedURLExpiry = time.Hour

// FileStore is the storage capability the file handler needs.
type FileStore interface {
	Get(ctx context.Context, objectKey string) (io.ReadCloser, error)
	PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// renderPDF is swappable so tests do not launch a browser.
type renderPDF func(title, subtitle, content string) ([]byte, error)

// FileHandler serves stored resume binaries and generated documents.
// Every route checks ownership before touching storage, and a foreign
// resource answers 404 rather than 403.
type FileHandler struct {
	db     *gorm.DB
	store  FileStore
	render renderPDF
}

// NewFileHandler builds the handler.
func NewFileHandler(db *gorm.DB, store FileStore) *FileHandler {
	return &FileHandler{db: db, store: store, render: pdf.RenderEnhancement}
}

// loadOwnedResume fetches a resume only if the caller owns it.
func (h *FileHandler) loadOwnedResume(c *gin.Context) (*database.Resume, bool) {
	userID := middleware.UserID(c)

	resumeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid resume id")
		return nil, false
	}

	var resume database.Resume
	err = h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", resumeID, userID).
		First(&resume).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "resume not found")
		} else {
			middleware.LoggerFromContext(c).Error("load resume failed", slog.Any("error", err))
			Internal(c, "internal error")
		}
		return nil, false
	}
	return &resume, true
}

// DownloadEnhancement renders an enhancement to PDF and returns it as an
// attachment. The path ID is the enhancement ID; ownership runs through
// the parent resume.
func (h *FileHandler) DownloadEnhancement(c *gin.Context) {
	userID := middleware.UserID(c)
	logger := middleware.LoggerFromContext(c)

	enhancementID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid enhancement id")
		return
	}

	var enhancement database.Enhancement
	err = h.db.WithContext(c.Request.Context()).
		Joins("JOIN resumes ON resumes.id = enhancements.resume_id").
		Where("enhancements.id = ? AND resumes.user_id = ?", enhancementID, userID).
		Preload("Resume").
		First(&enhancement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "enhancement not found")
		} else {
			logger.Error("load enhancement failed", slog.Any("error", err))
			Internal(c, "internal error")
		}
		return
	}

	if enhancement.Status != database.EnhancementStatusCompleted {
		BadRequest(c, "enhancement is not completed")
		return
	}

	title := strings.TrimSuffix(enhancement.Resume.OriginalName, "."+enhancement.Resume.FileType)
	subtitle := strings.ReplaceAll(enhancement.EnhancementType, "_", " ")
	data, err := h.render(title, subtitle, enhancement.EnhancedContent)
	if err != nil {
		logger.Error("render enhancement pdf failed", slog.Any("error", err))
		Internal(c, "could not generate pdf")
		return
	}

	fileName := fmt.Sprintf("enhanced-%s-%d.pdf", enhancement.EnhancementType, enhancement.ID)
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// FileURL mints a time-boxed presigned URL for the original document.
func (h *FileHandler) FileURL(c *gin.Context) {
	resume, ok := h.loadOwnedResume(c)
	if !ok {
		return
	}

	url, err := h.store.PresignedURL(c.Request.Context(), resume.StoragePath, presignedURLExpiry)
	if err != nil {
		middleware.LoggerFromContext(c).Error("presign resume url failed", slog.Any("error", err))
		Internal(c, "could not generate file url")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":       url,
		"file_name": resume.OriginalName,
		"file_type": resume.FileType,
	})
}

// Proxy streams the original document through the API for inline
// preview. Replies are cacheable but carry no cross-origin grant, so the
// browser's same-origin policy still applies.
func (h *FileHandler) Proxy(c *gin.Context) {
	resume, ok := h.loadOwnedResume(c)
	if !ok {
		return
	}

	object, err := h.store.Get(c.Request.Context(), resume.StoragePath)
	if err != nil {
		middleware.LoggerFromContext(c).Error("fetch resume object failed", slog.Any("error", err))
		Internal(c, "could not fetch file")
		return
	}
	defer object.Close()

	contentType := upload.MIMEPDF
	if resume.FileType == "docx" {
		contentType = upload.MIMEDOCX
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", `inline; filename="`+resume.OriginalName+`"`)
	c.Header("Cache-Control", "public, max-age=3600")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, object); err != nil {
		middleware.LoggerFromContext(c).Error("stream resume object failed", slog.Any("error", err))
	}
}
