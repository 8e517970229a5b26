// Package upload turns a multipart resume file into a stored object plus a
// Resume row. Validation fails fast and leaves no side effects; the storage
// write happens before the database write so a failure never produces a
// Resume row pointing at nothing.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"gorm.io/gorm"

	"craftResume/internal/database"
	"craftResume/internal/extract"
)

// MIME types accepted for upload.
const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	// ErrNoFile reports a request without a file part.
	ErrNoFile = errors.New("upload: no file provided")
	// ErrUnsupportedType reports a MIME type outside {PDF, DOCX}.
	ErrUnsupportedType = errors.New("upload: unsupported file type")
	// ErrPayloadTooLarge reports a file over the size limit. Checked before
	// extraction so oversized files never reach the parsers.
	ErrPayloadTooLarge = errors.New("upload: file too large")
	// ErrExtractionFailed reports a document the parser could not read.
	ErrExtractionFailed = errors.New("upload: text extraction failed")
	// ErrNoReadableText reports a document that parsed but yielded only
	// whitespace. Distinct from ErrExtractionFailed: the file is well formed
	// yet useless.
	ErrNoReadableText = errors.New("upload: no readable text in file")
	// ErrScanRejected reports a file the virus scanner flagged.
	ErrScanRejected = errors.New("upload: malicious file detected")
)

// ObjectStore is the storage capability the pipeline needs.
type ObjectStore interface {
	Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
}

// Pipeline validates, extracts, stores, and records resume uploads.
type Pipeline struct {
	db       *gorm.DB
	store    ObjectStore
	maxBytes int64

	// Extraction and scanning are injectable for tests.
	pdfText  func([]byte) (string, error)
	docxText func([]byte) (string, error)
	scan     func(ctx context.Context, data []byte) error
}

// NewPipeline builds a Pipeline. An empty clamdAddr disables virus scanning.
func NewPipeline(db *gorm.DB, store ObjectStore, maxBytes int64, clamdAddr string) *Pipeline {
	p := &Pipeline{
		db:       db,
		store:    store,
		maxBytes: maxBytes,
		pdfText:  extract.PDFText,
		docxText: extract.DOCXText,
	}
	if clamdAddr != "" {
		p.scan = clamdScanner(clamdAddr)
	}
	return p
}

// Process runs the full pipeline for one file and returns the created
// Resume row. Every failure before the storage write is side-effect free.
func (p *Pipeline) Process(ctx context.Context, userID uint, fileHeader *multipart.FileHeader) (*database.Resume, error) {
	if fileHeader == nil {
		return nil, ErrNoFile
	}

	fileType, err := fileTypeFor(fileHeader.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	if fileHeader.Size > p.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrPayloadTooLarge, fileHeader.Size, p.maxBytes)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read uploaded file: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("%w: stream exceeds limit of %d", ErrPayloadTooLarge, p.maxBytes)
	}

	if p.scan != nil {
		if err := p.scan(ctx, data); err != nil {
			return nil, err
		}
	}

	var text string
	switch fileType {
	case "pdf":
		text, err = p.pdfText(data)
	case "docx":
		text, err = p.docxText(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if strings.TrimSpace(text) == "" {
		return nil, ErrNoReadableText
	}

	objectKey := fmt.Sprintf("resumes/%d/%d-%s", userID, time.Now().UnixMilli(), filepath.Base(fileHeader.Filename))
	contentType := fileHeader.Header.Get("Content-Type")
	if err := p.store.Upload(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, fmt.Errorf("store uploaded file: %w", err)
	}

	resume := database.Resume{
		UserID:       userID,
		OriginalName: fileHeader.Filename,
		StoragePath:  objectKey,
		FileType:     fileType,
		Content:      text,
		Status:       database.ResumeStatusUploaded,
	}
	if err := p.db.WithContext(ctx).Create(&resume).Error; err != nil {
		// The blob already exists; the reconciliation sweep collects it.
		return nil, fmt.Errorf("create resume record: %w", err)
	}

	return &resume, nil
}

func fileTypeFor(contentType string) (string, error) {
	switch contentType {
	case MIMEPDF:
		return "pdf", nil
	case MIMEDOCX:
		return "docx", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
}

func clamdScanner(addr string) func(ctx context.Context, data []byte) error {
	return func(ctx context.Context, data []byte) error {
		scanner := clamd.NewClamd(addr)

		abort := make(chan bool)
		defer close(abort)

		results, err := scanner.ScanStream(bytes.NewReader(data), abort)
		if err != nil {
			return fmt.Errorf("scan file: %w", err)
		}
		for result := range results {
			if result.Status != clamd.RES_OK {
				return fmt.Errorf("%w: %s", ErrScanRejected, result.Description)
			}
		}
		return nil
	}
}
