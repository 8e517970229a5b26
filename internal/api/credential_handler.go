package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"craftResume/internal/api/middleware"
	"craftResume/internal/audit"
	"craftResume/internal/database"
	"craftResume/internal/vault"
)

// CredentialHandler manages provider API keys. Keys are encrypted before
// they touch the database and never returned in full.
type CredentialHandler struct {
	db    *gorm.DB
	vault *vault.Vault
	audit *audit.Recorder
}

// NewCredentialHandler builds the handler.
func NewCredentialHandler(db *gorm.DB, v *vault.Vault, recorder *audit.Recorder) *CredentialHandler {
	return &CredentialHandler{db: db, vault: v, audit: recorder}
}

type saveCredentialRequest struct {
	Provider     string `json:"provider" binding:"required"`
	APIKey       string `json:"api_key" binding:"required"`
	DefaultModel string `json:"default_model" binding:"required"`
}

type credentialView struct {
	ID           uint      `json:"id"`
	Provider     string    `json:"provider"`
	MaskedKey    string    `json:"masked_key"`
	DefaultModel string    `json:"default_model"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func validProvider(provider string) bool {
	switch provider {
	case database.ProviderOpenAI, database.ProviderAnthropic, database.ProviderGemini:
		return true
	}
	return false
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// Save stores a provider key with replace-on-insert semantics: earlier
// credentials for the same provider are deactivated in the same
// transaction that creates the new one.
func (h *CredentialHandler) Save(c *gin.Context) {
	userID := middleware.UserID(c)
	logger := middleware.LoggerFromContext(c)
	ctx := c.Request.Context()

	var req saveCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if !validProvider(provider) {
		BadRequest(c, "unsupported provider")
		return
	}

	encrypted, err := h.vault.Encrypt(req.APIKey)
	if err != nil {
		logger.Error("encrypt credential failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	credential := database.Credential{
		UserID:       userID,
		Provider:     provider,
		EncryptedKey: encrypted,
		DefaultModel: strings.TrimSpace(req.DefaultModel),
		IsActive:     true,
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&database.Credential{}).
			Where("user_id = ? AND provider = ? AND is_active = ?", userID, provider, true).
			Update("is_active", false).Error
		if err != nil {
			return err
		}
		return tx.Create(&credential).Error
	})
	if err != nil {
		logger.Error("save credential failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.audit.Info(ctx, "credentials", "credential saved",
		map[string]any{"provider": provider, "credential_id": credential.ID}, &userID)
	c.JSON(http.StatusCreated, credentialView{
		ID:           credential.ID,
		Provider:     credential.Provider,
		MaskedKey:    maskKey(req.APIKey),
		DefaultModel: credential.DefaultModel,
		IsActive:     credential.IsActive,
		CreatedAt:    credential.CreatedAt,
	})
}

// List returns the caller's credentials with masked keys.
func (h *CredentialHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	logger := middleware.LoggerFromContext(c)
	ctx := c.Request.Context()

	var credentials []database.Credential
	err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&credentials).Error
	if err != nil {
		logger.Error("list credentials failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	views := make([]credentialView, 0, len(credentials))
	for _, credential := range credentials {
		masked := "****"
		if key, err := h.vault.Decrypt(credential.EncryptedKey); err == nil {
			masked = maskKey(key)
		}
		views = append(views, credentialView{
			ID:           credential.ID,
			Provider:     credential.Provider,
			MaskedKey:    masked,
			DefaultModel: credential.DefaultModel,
			IsActive:     credential.IsActive,
			CreatedAt:    credential.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"credentials": views})
}

// Delete removes one of the caller's credentials.
func (h *CredentialHandler) Delete(c *gin.Context) {
	userID := middleware.UserID(c)
	logger := middleware.LoggerFromContext(c)
	ctx := c.Request.Context()

	credentialID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid credential id")
		return
	}

	var credential database.Credential
	err = h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", credentialID, userID).
		First(&credential).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "credential not found")
		} else {
			logger.Error("load credential failed", slog.Any("error", err))
			Internal(c, "internal error")
		}
		return
	}

	if err := h.db.WithContext(ctx).Delete(&credential).Error; err != nil {
		logger.Error("delete credential failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.audit.Info(ctx, "credentials", "credential deleted",
		map[string]any{"provider": credential.Provider, "credential_id": credential.ID}, &userID)
	c.Status(http.StatusNoContent)
}
