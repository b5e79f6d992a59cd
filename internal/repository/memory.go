package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apflow/invoice-reconciler/constants"
	"github.com/apflow/invoice-reconciler/internal/common"
	"github.com/apflow/invoice-reconciler/internal/entity"
)

// NewMemoryRepositories returns stores backed by in-process maps. Used in
// tests and by the CLI when no database is configured.
func NewMemoryRepositories() Repositories {
	return Repositories{
		Files:   &memFileRepo{files: make(map[uuid.UUID]entity.DocumentFile)},
		Records: &memRecordRepo{records: make(map[uuid.UUID]entity.DocumentRecord)},
		Runs:    &memRunRepo{runs: make(map[uuid.UUID]entity.MatchRun)},
	}
}

type memFileRepo struct {
	mu    sync.RWMutex
	files map[uuid.UUID]entity.DocumentFile
}

func (r *memFileRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.DocumentFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &f, nil
}

func (r *memFileRepo) GetByHash(_ context.Context, hash []byte) (*entity.DocumentFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.files {
		if bytes.Equal(f.ContentHash, hash) {
			out := f
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memFileRepo) UpsertByHash(ctx context.Context, role entity.DocumentRole, sourcePath, ext string, hash []byte, uploadedAt time.Time) (*entity.DocumentFile, bool, error) {
	if existing, err := r.GetByHash(ctx, hash); err == nil {
		return existing, true, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f := entity.DocumentFile{
		ID:          uuid.New(),
		Role:        role,
		SourcePath:  sourcePath,
		FileExt:     ext,
		ContentHash: hash,
		UploadedAt:  uploadedAt,
	}
	r.files[f.ID] = f
	return &f, false, nil
}

type memRecordRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]entity.DocumentRecord
}

func (r *memRecordRepo) Save(_ context.Context, rec *entity.DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = *rec
	return nil
}

func (r *memRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.DocumentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &rec, nil
}

func (r *memRecordRepo) ListByRole(_ context.Context, role entity.DocumentRole) ([]*entity.DocumentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.DocumentRecord
	for _, rec := range r.records {
		if rec.Role == role {
			c := rec
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngestedAt.Before(out[j].IngestedAt) })
	return out, nil
}

func (r *memRecordRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.DocumentRecord, error) {
	out := make([]*entity.DocumentRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

type memRunRepo struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]entity.MatchRun
}

func (r *memRunRepo) Create(_ context.Context, run *entity.MatchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

func (r *memRunRepo) UpdateStatus(_ context.Context, id uuid.UUID, status constants.RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return common.ErrNotFound
	}
	run.Status = string(status)
	r.runs[id] = run
	return nil
}

func (r *memRunRepo) Complete(_ context.Context, id uuid.UUID, result json.RawMessage, finishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return common.ErrNotFound
	}
	run.Status = string(constants.RunStatusCompleted)
	run.ResultJSON = append(json.RawMessage(nil), result...)
	run.FinishedAt = &finishedAt
	r.runs[id] = run
	return nil
}

func (r *memRunRepo) Fail(_ context.Context, id uuid.UUID, errMsg string, finishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return common.ErrNotFound
	}
	run.Status = string(constants.RunStatusFailed)
	run.ErrorMessage = &errMsg
	run.FinishedAt = &finishedAt
	r.runs[id] = run
	return nil
}

func (r *memRunRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.MatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &run, nil
}

func (r *memRunRepo) List(_ context.Context, limit int) ([]*entity.MatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	out := make([]*entity.MatchRun, 0, len(r.runs))
	for _, run := range r.runs {
		c := run
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
