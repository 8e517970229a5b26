package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role values stored on User.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Provider identifiers stored on Credential.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Resume lifecycle status. A resume counts as enhanced once at least one
// Enhancement row exists; the column itself stays "uploaded".
const (
	ResumeStatusUploaded = "uploaded"
)

// Enhancement processing status values.
const (
	EnhancementStatusProcessing = "processing"
	EnhancementStatusCompleted  = "completed"
	EnhancementStatusError      = "error"
)

// User is an account. Resumes and credentials cascade on delete.
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;size:255"`
	PasswordHash string `gorm:"size:255"`
	Role         string `gorm:"size:32;default:user"`
	FirstName    string `gorm:"size:128"`
	LastName     string `gorm:"size:128"`
	CompanyName  string `gorm:"size:255"`
	Resumes      []Resume     `gorm:"constraint:OnDelete:CASCADE"`
	Credentials  []Credential `gorm:"constraint:OnDelete:CASCADE"`
}

// Credential is a user's provider API key, encrypted at rest by the vault.
// At most one credential per provider per user is active; the save flow
// enforces this with replace-on-insert semantics, not a unique constraint.
type Credential struct {
	gorm.Model
	UserID       uint   `gorm:"index"`
	User         User   `gorm:"constraint:OnDelete:CASCADE"`
	Provider     string `gorm:"size:32;index"`
	EncryptedKey string `gorm:"size:1024"`
	DefaultModel string `gorm:"size:128"`
	IsActive     bool   `gorm:"index"`
}

// Resume is an uploaded document plus its extracted plain text.
// Content is guaranteed non-empty: empty extraction aborts the upload
// before this row is created.
type Resume struct {
	gorm.Model
	UserID       uint   `gorm:"index"`
	User         User   `gorm:"constraint:OnDelete:CASCADE"`
	OriginalName string `gorm:"size:255"`
	StoragePath  string `gorm:"size:512;index"`
	FileType     string `gorm:"size:8"`
	Content      string `gorm:"type:text"`
	Status       string `gorm:"size:32"`
	Enhancements []Enhancement `gorm:"constraint:OnDelete:CASCADE"`
}

// Enhancement is one LLM rewrite of a resume. Created in processing state
// before the provider call, updated exactly once to a terminal state.
type Enhancement struct {
	gorm.Model
	ResumeID        uint   `gorm:"index"`
	Resume          Resume `gorm:"constraint:OnDelete:CASCADE"`
	EnhancementType string `gorm:"size:64"`
	Provider        string `gorm:"size:32"`
	EnhancedContent string `gorm:"type:text"`
	Status          string `gorm:"size:32"`
	Notes           string `gorm:"size:2048"`
}

// SystemLog is an append-only audit record. Never mutated or deleted
// by the application.
type SystemLog struct {
	gorm.Model
	Level    string         `gorm:"size:16;index"`
	Category string         `gorm:"size:64;index"`
	Message  string         `gorm:"size:2048"`
	Metadata datatypes.JSON `gorm:"type:jsonb"`
	UserID   *uint          `gorm:"index"`
}
