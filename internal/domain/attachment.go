package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// DefaultContentType is used when an upload does not declare one.
const DefaultContentType = "application/octet-stream"

// Attachment is file metadata for bytes held by a storage backend.
type Attachment struct {
	ID          string
	TaskID      string
	UploaderID  string
	FileName    string
	Locator     string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// AttachmentInput holds input values for attachment creation.
type AttachmentInput struct {
	ID          string
	TaskID      string
	UploaderID  string
	FileName    string
	Locator     string
	ContentType string
	Size        int64
}

// NewAttachment constructs an attachment row for an already stored blob.
func NewAttachment(in AttachmentInput, now time.Time) (Attachment, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.TaskID = strings.TrimSpace(in.TaskID)
	in.UploaderID = strings.TrimSpace(in.UploaderID)
	if in.ID == "" || in.TaskID == "" || in.UploaderID == "" {
		return Attachment{}, ErrInvalidID
	}
	name, err := NormalizeFileName(in.FileName)
	if err != nil {
		return Attachment{}, err
	}
	in.Locator = strings.TrimSpace(in.Locator)
	if in.Locator == "" {
		return Attachment{}, ErrInvalidLocator
	}
	if in.Size < 0 {
		return Attachment{}, ErrInvalidFileSize
	}
	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = DefaultContentType
	}
	return Attachment{
		ID:          in.ID,
		TaskID:      in.TaskID,
		UploaderID:  in.UploaderID,
		FileName:    name,
		Locator:     in.Locator,
		ContentType: contentType,
		Size:        in.Size,
		CreatedAt:   now.UTC(),
	}, nil
}

// NormalizeFileName strips directory components from a client supplied name.
func NormalizeFileName(raw string) (string, error) {
	name := strings.TrimSpace(strings.ReplaceAll(raw, `\`, "/"))
	name = filepath.Base(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", ErrInvalidFileName
	}
	return name, nil
}
