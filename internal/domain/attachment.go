package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// MaxAttachmentSize is the upper bound for task attachments, in bytes.
const MaxAttachmentSize = 50 << 20 // 50MB

// allowedExtensions is the fixed allow-list for task attachments.
var allowedExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".ppt": {}, ".pptx": {}, ".png": {}, ".jpg": {}, ".jpeg": {},
	".gif": {}, ".txt": {}, ".csv": {}, ".zip": {},
}

// FileMeta describes an attachment before its bytes are handed to storage.
type FileMeta struct {
	Name       string
	Size       int64
	UploadedAt time.Time
}

// Validate checks the attachment against the extension allow-list and size cap.
func (f FileMeta) Validate() error {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("%w: file extension %q is not allowed", ErrValidation, ext)
	}
	if f.Size <= 0 {
		return fmt.Errorf("%w: file size must be positive", ErrValidation)
	}
	if f.Size > MaxAttachmentSize {
		return fmt.Errorf("%w: file exceeds the %d byte limit", ErrValidation, MaxAttachmentSize)
	}
	return nil
}
