package source

import (
	"context"
	"time"

	"github.com/apflow/invoice-reconciler/internal/entity"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	FileID       string
	Role         entity.DocumentRole
	Deduplicated bool
	HashHex      string
	FileExt      string
	UploadedAt   time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// DocumentSource is the behavior the service depends on.
type DocumentSource interface {
	// IngestPath ingests a single path as the given role.
	IngestPath(ctx context.Context, role entity.DocumentRole, path string) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root as the given role.
	IngestDirectory(ctx context.Context, role entity.DocumentRole, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
