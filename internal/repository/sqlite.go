package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/apflow/invoice-reconciler/constants"
	"github.com/apflow/invoice-reconciler/internal/common"
	"github.com/apflow/invoice-reconciler/internal/entity"
)

// OpenSQLite opens (or creates) a local database file and applies the
// schema. Used by the CLI so a reconciliation run needs no server.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error("failed to open sqlite database", "path", path, "error", err)
		return nil, err
	}
	// modernc sqlite is not safe for concurrent writers over one file
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		logger.Error("failed to apply sqlite schema", "path", path, "error", err)
		_ = db.Close()
		return nil, err
	}
	logger.Info("sqlite database ready", "path", path)
	return db, nil
}

// NewSQLiteRepositories wires all three stores over one database handle.
func NewSQLiteRepositories(db *sql.DB, logger *slog.Logger) Repositories {
	return Repositories{
		Files:   &sqliteFileRepo{db: db, logger: logger},
		Records: &sqliteRecordRepo{db: db, logger: logger},
		Runs:    &sqliteRunRepo{db: db, logger: logger},
	}
}

type sqliteFileRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *sqliteFileRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.DocumentFile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, role, source_path, file_ext, content_hash, uploaded_at
		 FROM document_files WHERE id = ?`, id.String())
	return scanSQLiteFile(row)
}

func (r *sqliteFileRepo) GetByHash(ctx context.Context, hash []byte) (*entity.DocumentFile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, role, source_path, file_ext, content_hash, uploaded_at
		 FROM document_files WHERE content_hash = ?`, hash)
	return scanSQLiteFile(row)
}

func (r *sqliteFileRepo) UpsertByHash(ctx context.Context, role entity.DocumentRole, sourcePath, ext string, hash []byte, uploadedAt time.Time) (*entity.DocumentFile, bool, error) {
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
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO document_files (id, role, source_path, file_ext, content_hash, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID.String(), string(f.Role), f.SourcePath, f.FileExt, f.ContentHash, f.UploadedAt)
	if err != nil {
		r.logger.Error("repository.files.upsert_failed", "source_path", sourcePath, "error", err)
		return nil, false, common.WrapError(err, common.ErrDatabase, "insert document file")
	}
	return f, false, nil
}

func scanSQLiteFile(row *sql.Row) (*entity.DocumentFile, error) {
	var f entity.DocumentFile
	var id, role string
	err := row.Scan(&id, &role, &f.SourcePath, &f.FileExt, &f.ContentHash, &f.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "scan document file")
	}
	f.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "parse file id")
	}
	f.Role = entity.DocumentRole(role)
	return &f, nil
}

type sqliteRecordRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *sqliteRecordRepo) Save(ctx context.Context, rec *entity.DocumentRecord) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return common.WrapError(err, common.ErrInternal, "encode fields")
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO document_records (id, role, source_id, fields, ingested_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET role = excluded.role,
		   source_id = excluded.source_id, fields = excluded.fields`,
		rec.ID.String(), string(rec.Role), rec.SourceID, string(fields), rec.IngestedAt)
	if err != nil {
		r.logger.Error("repository.records.save_failed", "source_id", rec.SourceID, "error", err)
		return common.WrapError(err, common.ErrDatabase, "save document record")
	}
	return nil
}

func (r *sqliteRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, role, source_id, fields, ingested_at
		 FROM document_records WHERE id = ?`, id.String())
	if err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "get document record")
	}
	defer func() { _ = rows.Close() }()

	recs, err := collectSQLiteRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, common.ErrNotFound
	}
	return recs[0], nil
}

func (r *sqliteRecordRepo) ListByRole(ctx context.Context, role entity.DocumentRole) ([]*entity.DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, role, source_id, fields, ingested_at
		 FROM document_records WHERE role = ? ORDER BY ingested_at`, string(role))
	if err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "list document records")
	}
	defer func() { _ = rows.Close() }()
	return collectSQLiteRecords(rows)
}

func (r *sqliteRecordRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.DocumentRecord, error) {
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

func collectSQLiteRecords(rows *sql.Rows) ([]*entity.DocumentRecord, error) {
	var out []*entity.DocumentRecord
	for rows.Next() {
		var rec entity.DocumentRecord
		var id, role, fields string
		if err := rows.Scan(&id, &role, &rec.SourceID, &fields, &rec.IngestedAt); err != nil {
			return nil, common.WrapError(err, common.ErrDatabase, "scan document record")
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, common.WrapError(err, common.ErrDatabase, "parse record id")
		}
		rec.ID = parsed
		rec.Role = entity.DocumentRole(role)
		if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
			return nil, common.WrapError(err, common.ErrInternal, "decode fields")
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "iterate document records")
	}
	return out, nil
}

type sqliteRunRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *sqliteRunRepo) Create(ctx context.Context, run *entity.MatchRun) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO match_runs
		   (id, status, match_threshold, amount_tolerance, invoice_count, po_count, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Status, run.MatchThreshold, run.AmountTolerance,
		run.InvoiceCount, run.POCount, run.StartedAt)
	if err != nil {
		r.logger.Error("repository.runs.create_failed", "run_id", run.ID, "error", err)
		return common.WrapError(err, common.ErrDatabase, "create match run")
	}
	return nil
}

func (r *sqliteRunRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.RunStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE match_runs SET status = ? WHERE id = ?`, string(status), id.String())
	if err != nil {
		return common.WrapError(err, common.ErrDatabase, "update match run status")
	}
	return requireRows(res)
}

func (r *sqliteRunRepo) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage, finishedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE match_runs SET status = ?, result_json = ?, finished_at = ? WHERE id = ?`,
		string(constants.RunStatusCompleted), string(result), finishedAt, id.String())
	if err != nil {
		return common.WrapError(err, common.ErrDatabase, "complete match run")
	}
	return requireRows(res)
}

func (r *sqliteRunRepo) Fail(ctx context.Context, id uuid.UUID, errMsg string, finishedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE match_runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(constants.RunStatusFailed), errMsg, finishedAt, id.String())
	if err != nil {
		return common.WrapError(err, common.ErrDatabase, "fail match run")
	}
	return requireRows(res)
}

func (r *sqliteRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.MatchRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, match_threshold, amount_tolerance, invoice_count, po_count,
		        result_json, error_message, started_at, finished_at
		 FROM match_runs WHERE id = ?`, id.String())
	if err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "get match run")
	}
	defer func() { _ = rows.Close() }()

	runs, err := collectSQLiteRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, common.ErrNotFound
	}
	return runs[0], nil
}

func (r *sqliteRunRepo) List(ctx context.Context, limit int) ([]*entity.MatchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, match_threshold, amount_tolerance, invoice_count, po_count,
		        result_json, error_message, started_at, finished_at
		 FROM match_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "list match runs")
	}
	defer func() { _ = rows.Close() }()
	return collectSQLiteRuns(rows)
}

func collectSQLiteRuns(rows *sql.Rows) ([]*entity.MatchRun, error) {
	var out []*entity.MatchRun
	for rows.Next() {
		var run entity.MatchRun
		var id string
		var result sql.NullString
		var finished sql.NullTime
		err := rows.Scan(&id, &run.Status, &run.MatchThreshold, &run.AmountTolerance,
			&run.InvoiceCount, &run.POCount, &result, &run.ErrorMessage,
			&run.StartedAt, &finished)
		if err != nil {
			return nil, common.WrapError(err, common.ErrDatabase, "scan match run")
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, common.WrapError(err, common.ErrDatabase, "parse run id")
		}
		run.ID = parsed
		if result.Valid {
			run.ResultJSON = json.RawMessage(result.String)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		out = append(out, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(err, common.ErrDatabase, "iterate match runs")
	}
	return out, nil
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return common.WrapError(err, common.ErrDatabase, "rows affected")
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
