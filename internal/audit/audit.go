// Package audit writes the append-only SystemLog trail. Every entry is
// mirrored to slog; if the database write fails the slog record is all
// that survives, which beats losing the event entirely.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"craftResume/internal/database"
)

// Log levels stored on SystemLog rows.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Recorder persists audit entries.
type Recorder struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRecorder builds a Recorder. A nil logger falls back to slog.Default.
func NewRecorder(db *gorm.DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{db: db, logger: logger}
}

// Info records an informational audit entry.
func (r *Recorder) Info(ctx context.Context, category, message string, metadata map[string]any, userID *uint) {
	r.record(ctx, LevelInfo, category, message, metadata, userID)
}

// Warning records a warning audit entry.
func (r *Recorder) Warning(ctx context.Context, category, message string, metadata map[string]any, userID *uint) {
	r.record(ctx, LevelWarning, category, message, metadata, userID)
}

// Error records an error audit entry.
func (r *Recorder) Error(ctx context.Context, category, message string, metadata map[string]any, userID *uint) {
	r.record(ctx, LevelError, category, message, metadata, userID)
}

func (r *Recorder) record(ctx context.Context, level, category, message string, metadata map[string]any, userID *uint) {
	attrs := []any{
		slog.String("category", category),
	}
	if userID != nil {
		attrs = append(attrs, slog.Uint64("user_id", uint64(*userID)))
	}

	switch level {
	case LevelError:
		r.logger.Error(message, attrs...)
	case LevelWarning:
		r.logger.Warn(message, attrs...)
	default:
		r.logger.Info(message, attrs...)
	}

	entry := database.SystemLog{
		Level:    level,
		Category: category,
		Message:  message,
		UserID:   userID,
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			r.logger.Error("encode audit metadata failed", slog.Any("error", err))
		} else {
			entry.Metadata = datatypes.JSON(raw)
		}
	}

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		r.logger.Error("write audit entry failed",
			slog.String("category", category),
			slog.Any("error", err),
		)
	}
}
