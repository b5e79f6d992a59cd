package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentFile is one ingested source file, keyed by content hash so the
// same attachment dropped twice is stored once.
type DocumentFile struct {
	ID          uuid.UUID    `json:"id"`
	Role        DocumentRole `json:"role"`
	SourcePath  string       `json:"source_path"`
	FileExt     string       `json:"file_ext"`
	ContentHash []byte       `json:"-"`
	UploadedAt  time.Time    `json:"uploaded_at"`
}
