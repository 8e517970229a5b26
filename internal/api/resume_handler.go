package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"craftResume/internal/api/middleware"
	"craftResume/internal/audit"
	"craftResume/internal/database"
	"craftResume/internal/upload"
)

// ResumeHandler serves resume listing and upload.
type ResumeHandler struct {
	db       *gorm.DB
	pipeline *upload.Pipeline
	audit    *audit.Recorder
}

// NewResumeHandler builds the handler.
func NewResumeHandler(db *gorm.DB, pipeline *upload.Pipeline, recorder *audit.Recorder) *ResumeHandler {
	return &ResumeHandler{db: db, pipeline: pipeline, audit: recorder}
}

type enhancementView struct {
	ID              uint      `json:"id"`
	EnhancementType string    `json:"enhancement_type"`
	Provider        string    `json:"provider"`
	EnhancedContent string    `json:"enhanced_content"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type resumeView struct {
	ID           uint              `json:"id"`
	OriginalName string            `json:"original_name"`
	FileType     string            `json:"file_type"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	Enhancements []enhancementView `json:"enhancements"`
}

func toResumeView(r database.Resume) resumeView {
	view := resumeView{
		ID:           r.ID,
		OriginalName: r.OriginalName,
		FileType:     r.FileType,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		Enhancements: make([]enhancementView, 0, len(r.Enhancements)),
	}
	for _, e := range r.Enhancements {
		view.Enhancements = append(view.Enhancements, enhancementView{
			ID:              e.ID,
			EnhancementType: e.EnhancementType,
			Provider:        e.Provider,
			EnhancedContent: e.EnhancedContent,
			Status:          e.Status,
			Notes:           e.Notes,
			CreatedAt:       e.CreatedAt,
		})
	}
	return view
}

// List returns the caller's resumes, newest first, with enhancements.
func (h *ResumeHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	logger := middleware.LoggerFromContext(c)

	var resumes []database.Resume
	err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Preload("Enhancements", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Order("created_at DESC").
		Find(&resumes).Error
	if err != nil {
		logger.Error("list resumes failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	views := make([]resumeView, 0, len(resumes))
	for _, r := range resumes {
		views = append(views, toResumeView(r))
	}
	c.JSON(http.StatusOK, views)
}

// Upload runs the upload pipeline for the posted file.
func (h *ResumeHandler) Upload(c *gin.Context) {
	userID := middleware.UserID(c)
	logger := middleware.LoggerFromContext(c)
	ctx := c.Request.Context()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}

	resume, err := h.pipeline.Process(ctx, userID, fileHeader)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrNoFile):
			BadRequest(c, "file is required")
		case errors.Is(err, upload.ErrUnsupportedType):
			BadRequest(c, "only PDF and DOCX files are supported")
		case errors.Is(err, upload.ErrPayloadTooLarge):
			BadRequest(c, "file exceeds the upload size limit")
		case errors.Is(err, upload.ErrScanRejected):
			h.audit.Warning(ctx, "upload", "malicious upload rejected",
				map[string]any{"file_name": fileHeader.Filename}, &userID)
			BadRequest(c, "file rejected by virus scan")
		case errors.Is(err, upload.ErrExtractionFailed):
			BadRequest(c, "could not read text from the file")
		case errors.Is(err, upload.ErrNoReadableText):
			BadRequest(c, "no readable text found in the file")
		default:
			logger.Error("upload pipeline failed", slog.Any("error", err))
			Internal(c, "internal error")
		}
		return
	}

	h.audit.Info(ctx, "upload", "resume uploaded",
		map[string]any{"resume_id": resume.ID, "file_name": resume.OriginalName}, &userID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "resume": toResumeView(*resume)})
}

// AdminList returns every resume with its owner, newest first.
func (h *ResumeHandler) AdminList(c *gin.Context) {
	logger := middleware.LoggerFromContext(c)

	var resumes []database.Resume
	err := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Preload("Enhancements", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Order("created_at DESC").
		Find(&resumes).Error
	if err != nil {
		logger.Error("admin list resumes failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	type adminResumeView struct {
		resumeView
		UserID    uint   `json:"user_id"`
		UserEmail string `json:"user_email"`
	}
	views := make([]adminResumeView, 0, len(resumes))
	for _, r := range resumes {
		views = append(views, adminResumeView{
			resumeView: toResumeView(r),
			UserID:     r.UserID,
			UserEmail:  r.User.Email,
		})
	}
	c.JSON(http.StatusOK, gin.H{"resumes": views})
}
