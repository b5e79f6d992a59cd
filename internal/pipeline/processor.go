package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/apflow/invoice-reconciler/internal/common"
	"github.com/apflow/invoice-reconciler/internal/entity"
	"github.com/apflow/invoice-reconciler/internal/llm"
	"github.com/apflow/invoice-reconciler/internal/metrics"
	"github.com/apflow/invoice-reconciler/internal/repository"
)

// Processor turns an ingested file into a stored DocumentRecord. JSON files
// carry pre-extracted fields and bypass the LLM entirely; everything else
// goes through the FieldExtractor.
type Processor struct {
	files     repository.DocumentFileRepository
	records   repository.DocumentRecordRepository
	extractor llm.FieldExtractor
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewProcessor(
	files repository.DocumentFileRepository,
	records repository.DocumentRecordRepository,
	extractor llm.FieldExtractor,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{files: files, records: records, extractor: extractor, logger: logger}
}

// WithMetrics enables extraction latency observation. Safe to skip.
func (p *Processor) WithMetrics(m *metrics.Metrics) *Processor {
	p.metrics = m
	return p
}

// ProcessFile extracts fields for a fileID and persists the resulting
// record. Returns the new record's ID.
func (p *Processor) ProcessFile(ctx context.Context, fileID uuid.UUID) (uuid.UUID, error) {
	file, err := p.files.GetByID(ctx, fileID)
	if err != nil {
		p.logger.Error("pipeline.load_file.failed", "file_id", fileID, "error", err)
		return uuid.Nil, err
	}

	start := time.Now()
	var fields llm.DocumentFields
	extractPath := metrics.PathLLM
	switch file.FileExt {
	case "json":
		extractPath = metrics.PathPreExtracted
		fields, err = p.decodePreExtracted(file)
	default:
		fields, err = p.extract(ctx, file)
	}
	if p.metrics != nil {
		p.metrics.ObserveExtractLatency(extractPath, time.Since(start))
	}
	if err != nil {
		return uuid.Nil, err
	}

	rec, err := BuildRecord(fields, filepath.Base(file.SourcePath), time.Now().UTC())
	if err != nil {
		p.logger.Error("pipeline.build_record.failed", "file_id", fileID, "error", err)
		return uuid.Nil, err
	}

	if err := p.records.Save(ctx, rec); err != nil {
		p.logger.Error("pipeline.save_record.failed", "file_id", fileID, "error", err)
		return uuid.Nil, err
	}

	p.logger.Info("pipeline.record.saved",
		"file_id", fileID,
		"record_id", rec.ID,
		"role", rec.Role,
		"fields", len(rec.Fields),
		"request_id", common.RequestIDFromContext(ctx),
	)
	return rec.ID, nil
}

// decodePreExtracted handles JSON files that already carry fields, e.g.
// exports from an upstream extraction service. They still run through the
// same sanitize + schema gate as model output.
func (p *Processor) decodePreExtracted(file *entity.DocumentFile) (llm.DocumentFields, error) {
	raw, err := os.ReadFile(file.SourcePath)
	if err != nil {
		p.logger.Error("pipeline.read_file.failed", "path", file.SourcePath, "error", err)
		return llm.DocumentFields{}, err
	}

	sanitized, _, err := llm.NormalizeAndSanitizeJSON(raw, p.logger)
	if err != nil {
		return llm.DocumentFields{}, err
	}

	var m map[string]any
	if err := json.Unmarshal(sanitized, &m); err != nil {
		p.logger.Error("pipeline.pre_extracted.invalid", "path", file.SourcePath, "error", err)
		return llm.DocumentFields{}, common.InvalidArgumentErrorf("pre-extracted document is not a JSON object: %v", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	if _, ok := m["role"]; !ok && file.Role != "" {
		// pre-extracted files usually omit the role; the ingest side knows it
		m["role"] = string(file.Role)
		sanitized, _ = json.Marshal(m)
	}

	if err := llm.ValidateJSONAgainstSchema(llm.BuildDocumentJSONSchema(), sanitized); err != nil {
		p.logger.Error("pipeline.pre_extracted.invalid", "path", file.SourcePath, "error", err)
		return llm.DocumentFields{}, err
	}

	var fields llm.DocumentFields
	if err := json.Unmarshal(sanitized, &fields); err != nil {
		return llm.DocumentFields{}, err
	}
	return fields, nil
}

func (p *Processor) extract(ctx context.Context, file *entity.DocumentFile) (llm.DocumentFields, error) {
	var text string
	if file.FileExt == "txt" {
		raw, err := os.ReadFile(file.SourcePath)
		if err != nil {
			p.logger.Error("pipeline.read_file.failed", "path", file.SourcePath, "error", err)
			return llm.DocumentFields{}, err
		}
		text = string(raw)
	}

	fields, _, err := p.extractor.ExtractFields(ctx, llm.ExtractRequest{
		DocumentText: text,
		FilenameHint: filepath.Base(file.SourcePath),
		FolderHint:   filepath.Dir(file.SourcePath),
		RoleHint:     string(file.Role),
		FilePath:     file.SourcePath,
	})
	if err != nil {
		p.logger.Error("pipeline.extract.failed", "path", file.SourcePath, "error", err)
		return llm.DocumentFields{}, err
	}
	if fields.Role == "" {
		fields.Role = string(file.Role)
	}
	return fields, nil
}
