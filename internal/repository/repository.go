package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/apflow/invoice-reconciler/constants"
	"github.com/apflow/invoice-reconciler/internal/entity"
)

// DocumentFileRepository stores ingested source files keyed by content hash.
type DocumentFileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.DocumentFile, error)
	GetByHash(ctx context.Context, hash []byte) (*entity.DocumentFile, error)
	UpsertByHash(ctx context.Context, role entity.DocumentRole, sourcePath, ext string, hash []byte, uploadedAt time.Time) (*entity.DocumentFile, bool, error)
}

// DocumentRecordRepository stores extracted field records. Field bags are
// persisted as JSON; the engine never queries individual fields relationally.
type DocumentRecordRepository interface {
	Save(ctx context.Context, rec *entity.DocumentRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.DocumentRecord, error)
	ListByRole(ctx context.Context, role entity.DocumentRole) ([]*entity.DocumentRecord, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.DocumentRecord, error)
}

// MatchRunRepository stores reconciliation runs and their serialized results.
type MatchRunRepository interface {
	Create(ctx context.Context, run *entity.MatchRun) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.RunStatus) error
	Complete(ctx context.Context, id uuid.UUID, result json.RawMessage, finishedAt time.Time) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string, finishedAt time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.MatchRun, error)
	List(ctx context.Context, limit int) ([]*entity.MatchRun, error)
}

// Repositories bundles the three stores so constructors take one handle.
type Repositories struct {
	Files   DocumentFileRepository
	Records DocumentRecordRepository
	Runs    MatchRunRepository
}
