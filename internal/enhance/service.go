// Package enhance orchestrates a resume rewrite: ownership check,
// credential lookup, provider call, and a two-phase enhancement record.
// The processing row is created before the provider call so a crash
// mid-call leaves a visible stuck record instead of nothing.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"craftResume/internal/audit"
	"craftResume/internal/database"
	"craftResume/internal/llm"
	"craftResume/internal/metrics"
	"craftResume/internal/notify"
	"craftResume/internal/vault"
)

var (
	// ErrResumeNotFound covers both a missing resume and a resume owned by
	// someone else. Callers cannot distinguish the two.
	ErrResumeNotFound = errors.New("enhance: resume not found")
	// ErrNoActiveCredential reports a user with no usable provider key.
	// No enhancement row is created in this case.
	ErrNoActiveCredential = errors.New("enhance: no active credential")
)

// Service runs enhancement requests end to end.
type Service struct {
	db       *gorm.DB
	vault    *vault.Vault
	client   *llm.Client
	audit    *audit.Recorder
	notifier *notify.Publisher
}

// NewService builds a Service. The notifier may be nil when pub/sub is
// not wired, for example in the admin CLI.
func NewService(db *gorm.DB, v *vault.Vault, client *llm.Client, recorder *audit.Recorder, notifier *notify.Publisher) *Service {
	return &Service{
		db:       db,
		vault:    v,
		client:   client,
		audit:    recorder,
		notifier: notifier,
	}
}

// Enhance rewrites one resume with the user's active provider credential
// and returns the enhancement record in its terminal state. On provider
// failure the record is updated to error and the provider error is
// returned alongside it.
func (s *Service) Enhance(ctx context.Context, userID, resumeID uint, enhancementType string) (*database.Enhancement, error) {
	var resume database.Resume
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", resumeID, userID).
		First(&resume).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResumeNotFound
		}
		return nil, fmt.Errorf("load resume: %w", err)
	}

	var credential database.Credential
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		First(&credential).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveCredential
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}

	apiKey, err := s.vault.Decrypt(credential.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential: %w", err)
	}

	enhancement := database.Enhancement{
		ResumeID:        resume.ID,
		EnhancementType: enhancementType,
		Provider:        credential.Provider,
		Status:          database.EnhancementStatusProcessing,
	}
	if err := s.db.WithContext(ctx).Create(&enhancement).Error; err != nil {
		return nil, fmt.Errorf("create enhancement record: %w", err)
	}

	// A processing row now exists, so the provider call and the terminal
	// update must outlive the request: a client disconnect must not strand
	// the row in processing.
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	enhanced, callErr := s.client.Enhance(ctx, credential.Provider, apiKey, credential.DefaultModel, resume.Content, enhancementType)
	metrics.ObserveEnhancement(credential.Provider, time.Since(start), callErr)
	if callErr != nil {
		s.finish(ctx, &enhancement, database.EnhancementStatusError, "", callErr.Error())
		s.report(ctx, userID, &resume, &enhancement, callErr)
		return &enhancement, callErr
	}

	s.finish(ctx, &enhancement, database.EnhancementStatusCompleted, enhanced, "")
	s.report(ctx, userID, &resume, &enhancement, nil)
	return &enhancement, nil
}

// finish applies the single terminal transition for an enhancement row.
func (s *Service) finish(ctx context.Context, enhancement *database.Enhancement, status, content, notes string) {
	enhancement.Status = status
	enhancement.EnhancedContent = content
	enhancement.Notes = notes

	err := s.db.WithContext(ctx).Model(enhancement).Updates(map[string]any{
		"status":           status,
		"enhanced_content": content,
		"notes":            notes,
	}).Error
	if err != nil && s.audit != nil {
		s.audit.Error(ctx, "enhancement", "finalize enhancement record failed",
			map[string]any{"enhancement_id": enhancement.ID, "error": err.Error()}, nil)
	}
}

// report writes the audit trail entry and pushes the pub/sub event for a
// terminal transition. Both are best effort.
func (s *Service) report(ctx context.Context, userID uint, resume *database.Resume, enhancement *database.Enhancement, callErr error) {
	if s.audit != nil {
		metadata := map[string]any{
			"resume_id":        resume.ID,
			"enhancement_id":   enhancement.ID,
			"enhancement_type": enhancement.EnhancementType,
			"provider":         enhancement.Provider,
		}
		if callErr != nil {
			metadata["error"] = callErr.Error()
			s.audit.Error(ctx, "enhancement", "resume enhancement failed", metadata, &userID)
		} else {
			s.audit.Info(ctx, "enhancement", "resume enhancement completed", metadata, &userID)
		}
	}

	if s.notifier == nil {
		return
	}
	msg := notify.EnhancementMessage{
		Status:          enhancement.Status,
		ResumeID:        resume.ID,
		EnhancementID:   enhancement.ID,
		EnhancementType: enhancement.EnhancementType,
		Provider:        enhancement.Provider,
	}
	if callErr != nil {
		msg.ErrorMessage = callErr.Error()
	}
	if err := s.notifier.PublishEnhancement(ctx, userID, msg); err != nil && s.audit != nil {
		s.audit.Warning(ctx, "enhancement", "publish enhancement event failed",
			map[string]any{"enhancement_id": enhancement.ID, "error": err.Error()}, &userID)
	}
}
