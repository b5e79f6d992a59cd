package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apflow/invoice-reconciler/constants"
	"github.com/apflow/invoice-reconciler/internal/common"
	"github.com/apflow/invoice-reconciler/internal/entity"
)

// NewPostgresRepositories wires all three stores over one pool.
func NewPostgresRepositories(pool *pgxpool.Pool, logger *slog.Logger) Repositories {
	return Repositories{
		Files:   &pgFileRepo{pool: pool, logger: logger},
		Records: &pgRecordRepo{pool: pool, logger: logger},
		Runs:    &pgRunRepo{pool: pool, logger: logger},
	}
}

type pgFileRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func (r *pgFileRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.DocumentFile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, role, source_path, file_ext, content_hash, uploaded_at
		 FROM document_files WHERE id = $1`, id)
	return scanFile(row)
}

func (r *pgFileRepo) GetByHash(ctx context.Context, hash []byte) (*entity.DocumentFile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, role, source_path, file_ext, content_hash, uploaded_at
		 FROM document_files WHERE content_hash = $1`, hash)
	return scanFile(row)
}

func (r *pgFileRepo) UpsertByHash(ctx context.Context, role entity.DocumentRole, sourcePath, ext string, hash []byte, uploadedAt time.Time) (*entity.DocumentFile, bool, error) {
	if existing, err := r.GetByHash(ctx, hash); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}

	f := &entity.DocumentFile{
		ID:          uuid.New(),
		Role:        role,
		SourcePath:  sourcePath,
		FileExt:     ext,
		ContentHash: hash,
		UploadedAt:  uploadedAt,
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO document_files (id, role, source_path, file_ext, content_hash, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.Role, f.SourcePath, f.FileExt, f.ContentHash, f.UploadedAt)
	if err != nil {
		r.logger.Error("repository.files.upsert_failed", "source_path", sourcePath, "error", err)
		return nil, false, common.WrapError(err, common.ErrDatabase, "insert document file")
	}
	return f, false, nil
}

func scanFile(row pgx.Row) (*entity.DocumentFile, error) {
	var f entity.DocumentFile
	err := row.Scan(&f.ID, &f.Role, &f.SourcePath, &f.FileExt, &f.ContentHash, &f.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "scan document file")
	}
	return &f, nil
}

type pgRecordRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func (r *pgRecordRepo) Save(ctx context.Context, rec *entity.DocumentRecord) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return common.WrapError(err, common.ErrInternal, "encode fields")
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO document_records (id, role, source_id, fields, ingested_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET role = $2, source_id = $3, fields = $4`,
		rec.ID, rec.Role, rec.SourceID, fields, rec.IngestedAt)
	if err != nil {
		r.logger.Error("repository.records.save_failed", "source_id", rec.SourceID, "error", err)
		return common.WrapError(err, common.ErrDatabase, "save document record")
	}
	return nil
}

func (r *pgRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.DocumentRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, role, source_id, fields, ingested_at
		 FROM document_records WHERE id = $1`, id)
	return scanRecord(row)
}

func (r *pgRecordRepo) ListByRole(ctx context.Context, role entity.DocumentRole) ([]*entity.DocumentRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, role, source_id, fields, ingested_at
		 FROM document_records WHERE role = $1 ORDER BY ingested_at`, role)
	if err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "list document records")
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (r *pgRecordRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.DocumentRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, role, source_id, fields, ingested_at
		 FROM document_records WHERE id = ANY($1) ORDER BY ingested_at`, ids)
	if err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "list document records by id")
	}
	defer rows.Close()
	return collectRecords(rows)
}

func scanRecord(row pgx.Row) (*entity.DocumentRecord, error) {
	var rec entity.DocumentRecord
	var fields []byte
	err := row.Scan(&rec.ID, &rec.Role, &rec.SourceID, &fields, &rec.IngestedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "scan document record")
	}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return nil, common.WrapError(err, common.ErrInternal, "decode fields")
	}
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]*entity.DocumentRecord, error) {
	var out []*entity.DocumentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "iterate document records")
	}
	return out, nil
}

type pgRunRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func (r *pgRunRepo) Create(ctx context.Context, run *entity.MatchRun) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO match_runs
		   (id, status, match_threshold, amount_tolerance, invoice_count, po_count, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Status, run.MatchThreshold, run.AmountTolerance,
		run.InvoiceCount, run.POCount, run.StartedAt)
	if err != nil {
		r.logger.Error("repository.runs.create_failed", "run_id", run.ID, "error", err)
		return common.WrapError(err, common.ErrDatabase, "create match run")
	}
	return nil
}

func (r *pgRunRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.RunStatus) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE match_runs SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return common.WrapError(err, common.ErrDatabase, "update match run status")
	}
	if ct.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgRunRepo) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage, finishedAt time.Time) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE match_runs
		 SET status = $2, result_json = $3, finished_at = $4
		 WHERE id = $1`,
		id, constants.RunStatusCompleted, []byte(result), finishedAt)
	if err != nil {
		return common.WrapError(err, common.ErrDatabase, "complete match run")
	}
	if ct.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgRunRepo) Fail(ctx context.Context, id uuid.UUID, errMsg string, finishedAt time.Time) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE match_runs
		 SET status = $2, error_message = $3, finished_at = $4
		 WHERE id = $1`,
		id, constants.RunStatusFailed, errMsg, finishedAt)
	if err != nil {
		return common.WrapError(err, common.ErrDatabase, "fail match run")
	}
	if ct.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.MatchRun, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, status, match_threshold, amount_tolerance, invoice_count, po_count,
		        result_json, error_message, started_at, finished_at
		 FROM match_runs WHERE id = $1`, id)
	return scanRun(row)
}

func (r *pgRunRepo) List(ctx context.Context, limit int) ([]*entity.MatchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, status, match_threshold, amount_tolerance, invoice_count, po_count,
		        result_json, error_message, started_at, finished_at
		 FROM match_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "list match runs")
	}
	defer rows.Close()

	var out []*entity.MatchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "iterate match runs")
	}
	return out, nil
}

func scanRun(row pgx.Row) (*entity.MatchRun, error) {
	var run entity.MatchRun
	var result []byte
	err := row.Scan(&run.ID, &run.Status, &run.MatchThreshold, &run.AmountTolerance,
		&run.InvoiceCount, &run.POCount, &result, &run.ErrorMessage,
		&run.StartedAt, &run.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "scan match run")
	}
	run.ResultJSON = result
	return &run, nil
}
