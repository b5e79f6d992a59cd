package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/apflow/invoice-reconciler/internal/entity"
)

// Service renders a MatrixResult for the reporting sink. All three formats
// carry the same rows; the sink picks whichever it can consume.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

var matrixHeaders = []string{
	"Invoice",
	"Purchase Order",
	"Match Score",
	"Status",
	"Likely Match",
	"Matched Fields",
	"Mismatched Fields",
	"Missing Fields",
	"Error",
}

// MatrixXLSX returns an XLSX workbook (as bytes) for one matrix.
func (s *Service) MatrixXLSX(matrix *entity.MatrixResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Matches"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range matrixHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, res := range matrix.Results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		matched, mismatched, missing := outcomeFields(res)
		write(1, res.InvoiceID)
		write(2, res.POID)
		write(3, res.MatchScore)
		write(4, string(res.Status))
		write(5, res.IsLikelyMatch)
		write(6, matched)
		write(7, mismatched)
		write(8, missing)
		write(9, res.Error)
		row++
	}

	_ = f.SetColWidth(sheet, "A", "B", 32) // document ids
	_ = f.SetColWidth(sheet, "C", "E", 14) // score / status / likely
	_ = f.SetColWidth(sheet, "F", "H", 36) // field lists
	_ = f.SetColWidth(sheet, "I", "I", 48) // error

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(matrix.Results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// MatrixCSV renders the same rows as the workbook, one pair per line.
func (s *Service) MatrixCSV(matrix *entity.MatrixResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(matrixHeaders); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	for _, res := range matrix.Results {
		matched, mismatched, missing := outcomeFields(res)
		rec := []string{
			res.InvoiceID,
			res.POID,
			strconv.Itoa(res.MatchScore),
			string(res.Status),
			strconv.FormatBool(res.IsLikelyMatch),
			matched,
			mismatched,
			missing,
			res.Error,
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("csv write: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}

	s.logger.Info("export.csv.ok", "rows", len(matrix.Results))
	return buf.Bytes(), nil
}

// MatrixJSON is the canonical machine-readable form, comparisons included.
func (s *Service) MatrixJSON(matrix *entity.MatrixResult) ([]byte, error) {
	out, err := json.MarshalIndent(matrix, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	s.logger.Info("export.json.ok", "rows", len(matrix.Results))
	return out, nil
}

// outcomeFields flattens per-field outcomes into comma-joined name lists,
// which read better in spreadsheets than nested structures.
func outcomeFields(res entity.MatchResult) (matched, mismatched, missing string) {
	var m, mm, ms []byte
	appendName := func(dst []byte, name string) []byte {
		if len(dst) > 0 {
			dst = append(dst, ", "...)
		}
		return append(dst, name...)
	}
	for _, fc := range res.FieldComparisons {
		switch fc.Outcome {
		case entity.OutcomeMatch:
			m = appendName(m, fc.Field)
		case entity.OutcomeMismatch:
			mm = appendName(mm, fc.Field)
		case entity.OutcomeMissing:
			ms = appendName(ms, fc.Field)
		}
	}
	return string(m), string(mm), string(ms)
}
