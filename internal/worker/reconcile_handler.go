// Package worker hosts asynq task handlers.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"craftResume/internal/database"
	"craftResume/internal/storage"
	"craftResume/internal/tasks"
)

// ReconcileHandler deletes stored objects that no Resume row references.
// Such orphans appear when the database write after a storage upload
// fails, or when row deletion outlives blob deletion.
type ReconcileHandler struct {
	db      *gorm.DB
	storage *storage.Client
	logger  *slog.Logger

	// Blobs younger than this are skipped: an upload may have written
	// the object but not yet committed its Resume row.
	gracePeriod time.Duration
}

// NewReconcileHandler builds a handler.
func NewReconcileHandler(db *gorm.DB, storageClient *storage.Client, logger *slog.Logger, gracePeriod time.Duration) *ReconcileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if gracePeriod <= 0 {
		gracePeriod = time.Hour
	}
	return &ReconcileHandler{db: db, storage: storageClient, logger: logger, gracePeriod: gracePeriod}
}

// ProcessTask implements asynq.Handler.
func (h *ReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	log := h.logger

	var payload tasks.StorageReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal reconcile payload failed", slog.Any("error", err))
		return err
	}
	if payload.Prefix == "" {
		payload.Prefix = "resumes/"
	}
	log = log.With(slog.String("prefix", payload.Prefix))

	objects, err := h.storage.List(ctx, payload.Prefix)
	if err != nil {
		log.Error("list stored objects failed", slog.Any("error", err))
		return err
	}

	// Unscoped so soft-deleted rows still pin their blobs until a later
	// cleanup removes the rows for good.
	var paths []string
	err = h.db.WithContext(ctx).Model(&database.Resume{}).
		Unscoped().
		Pluck("storage_path", &paths).Error
	if err != nil {
		log.Error("load referenced storage paths failed", slog.Any("error", err))
		return err
	}
	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[p] = struct{}{}
	}

	cutoff := time.Now().Add(-h.gracePeriod)
	var removed int
	for _, object := range objects {
		if _, ok := referenced[object.Key]; ok {
			continue
		}
		if object.LastModified.After(cutoff) {
			continue
		}
		if err := h.storage.Delete(ctx, object.Key); err != nil {
			log.Error("delete orphan blob failed",
				slog.String("key", object.Key),
				slog.Any("error", err),
			)
			return err
		}
		removed++
	}

	log.Info("storage reconciliation finished",
		slog.Int("scanned", len(objects)),
		slog.Int("removed", removed),
	)
	return nil
}
