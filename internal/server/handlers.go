package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/apflow/invoice-reconciler/constants"
	"github.com/apflow/invoice-reconciler/internal/async"
	"github.com/apflow/invoice-reconciler/internal/common"
	"github.com/apflow/invoice-reconciler/internal/entity"
	"github.com/apflow/invoice-reconciler/internal/recon"
	"github.com/apflow/invoice-reconciler/internal/source"
	"github.com/apflow/invoice-reconciler/internal/workflow"
)

type ingestRequest struct {
	Role       string `json:"role"`
	Path       string `json:"path,omitempty"`
	Directory  string `json:"directory,omitempty"`
	SkipHidden bool   `json:"skip_hidden,omitempty"`
}

type ingestResponse struct {
	Results []source.IngestionResult `json:"results"`
	Stats   *source.DirStats         `json:"stats,omitempty"`
}

// handleIngestDocuments accepts a file or directory, registers the content,
// and queues extraction for every newly seen file.
func (s *Server) handleIngestDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v := common.NewValidator().
		Field("role", req.Role, common.Required).
		Field("path", req.Path, common.MaxLength(4096)).
		Field("directory", req.Directory, common.MaxLength(4096))
	if err := common.ValidateAndReturnError(v); err != nil {
		common.WriteError(w, err)
		return
	}

	role := entity.DocumentRole(req.Role)
	if role != entity.RoleInvoice && role != entity.RolePurchaseOrder {
		common.WriteError(w, common.InvalidArgumentErrorf("role must be %q or %q", entity.RoleInvoice, entity.RolePurchaseOrder))
		return
	}
	if (req.Path == "") == (req.Directory == "") {
		common.WriteError(w, common.InvalidArgumentErrorf("exactly one of path or directory is required"))
		return
	}

	var resp ingestResponse
	if req.Path != "" {
		res, err := s.source.IngestPath(ctx, role, req.Path)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		resp.Results = []source.IngestionResult{res}
	} else {
		results, stats, err := s.source.IngestDirectory(ctx, role, req.Directory, req.SkipHidden)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		resp.Results = results
		resp.Stats = &stats
	}

	for _, res := range resp.Results {
		if res.Err != "" || res.Deduplicated {
			continue
		}
		fileID, err := uuid.Parse(res.FileID)
		if err != nil {
			continue
		}
		if s.metrics != nil {
			s.metrics.IncrementFilesIngested(string(res.Role), res.Deduplicated)
		}
		_ = s.queue.Enqueue(ctx, async.Job{
			FileID:      fileID,
			SubmittedAt: time.Now().UTC(),
			TraceID:     chimw.GetReqID(ctx),
		})
	}

	writeJSON(w, http.StatusAccepted, resp)
}

type reconcileRequest struct {
	Mode            string   `json:"mode,omitempty"` // "matrix" (default) or "pair"
	InvoiceIDs      []string `json:"invoice_ids,omitempty"`
	POIDs           []string `json:"po_ids,omitempty"`
	MatchThreshold  *int     `json:"match_threshold,omitempty"`
	AmountTolerance *float64 `json:"amount_tolerance,omitempty"`
}

type reconcileResponse struct {
	RunID  uuid.UUID            `json:"run_id"`
	Status string               `json:"status"`
	Result *entity.MatrixResult `json:"result,omitempty"`
}

// handleReconcile creates a run and executes it. Pair mode requires exactly
// one document on each side and skips the threshold derivative entirely.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		common.WriteErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode == "" {
		req.Mode = "matrix"
	}
	if req.Mode != "matrix" && req.Mode != "pair" {
		common.WriteError(w, common.InvalidArgumentErrorf("mode must be matrix or pair"))
		return
	}

	invoiceIDs, err := parseIDs(req.InvoiceIDs, "invoice_ids")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	poIDs, err := parseIDs(req.POIDs, "po_ids")
	if err != nil {
		common.WriteError(w, err)
		return
	}

	builder := s.builder
	if req.MatchThreshold != nil || req.AmountTolerance != nil {
		if req.MatchThreshold != nil && (*req.MatchThreshold < 0 || *req.MatchThreshold > 100) {
			common.WriteError(w, common.InvalidArgumentErrorf("match_threshold must be within [0, 100]"))
			return
		}
		if req.AmountTolerance != nil && *req.AmountTolerance <= 0 {
			common.WriteError(w, common.InvalidArgumentErrorf("amount_tolerance must be positive"))
			return
		}
		// WithOverrides keeps a zero threshold as zero
		builder = s.builder.WithOverrides(req.MatchThreshold, req.AmountTolerance)
	}

	if req.Mode == "pair" {
		s.reconcilePair(w, r, builder, invoiceIDs, poIDs)
		return
	}

	cfg := builder.Config()
	run := &entity.MatchRun{
		ID:              uuid.New(),
		Status:          string(constants.RunStatusQueued),
		MatchThreshold:  cfg.MatchThreshold,
		AmountTolerance: cfg.AmountTolerance,
		StartedAt:       time.Now().UTC(),
	}
	if err := s.repos.Runs.Create(ctx, run); err != nil {
		common.WriteError(w, err)
		return
	}

	runner := s.runner
	if builder != s.builder {
		runner = workflow.NewRunner(s.repos, builder, s.logger)
	}

	start := time.Now()
	state, err := runner.Execute(ctx, run.ID, invoiceIDs, poIDs)
	if s.metrics != nil {
		s.metrics.ObserveMatrixLatency(time.Since(start))
		s.metrics.IncrementRunOutcome(string(state.Status))
	}
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if s.metrics != nil {
		for _, res := range state.Matrix.Results {
			s.metrics.IncrementPairVerdict(res.IsLikelyMatch)
		}
	}

	writeJSON(w, http.StatusOK, reconcileResponse{
		RunID:  run.ID,
		Status: string(state.Status),
		Result: state.Matrix,
	})
}

func (s *Server) reconcilePair(w http.ResponseWriter, r *http.Request, builder *recon.Builder, invoiceIDs, poIDs []uuid.UUID) {
	ctx := r.Context()
	if len(invoiceIDs) != 1 || len(poIDs) != 1 {
		common.WriteError(w, common.InvalidArgumentErrorf("pair mode requires exactly one invoice_id and one po_id"))
		return
	}
	invoice, err := s.repos.Records.GetByID(ctx, invoiceIDs[0])
	if err != nil {
		common.WriteError(w, err)
		return
	}
	po, err := s.repos.Records.GetByID(ctx, poIDs[0])
	if err != nil {
		common.WriteError(w, err)
		return
	}

	res, err := builder.ScorePair(invoice, po)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.InvalidArgumentErrorf("invalid run id"))
		return
	}
	run, err := s.repos.Runs.GetByID(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.repos.Runs.List(r.Context(), 50)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleExportRun streams a completed run's matrix in the requested format.
func (s *Server) handleExportRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.InvalidArgumentErrorf("invalid run id"))
		return
	}
	run, err := s.repos.Runs.GetByID(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if len(run.ResultJSON) == 0 {
		common.WriteError(w, common.InvalidArgumentErrorf("run %s has no result to export", id))
		return
	}

	var matrix entity.MatrixResult
	if err := json.Unmarshal(run.ResultJSON, &matrix); err != nil {
		common.WriteError(w, common.InternalErrorf("decode stored result: %v", err))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	switch format {
	case "json":
		out, err := s.export.MatrixJSON(&matrix)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(out)
	case "csv":
		out, err := s.export.MatrixCSV(&matrix)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="matches.csv"`)
		_, _ = w.Write(out)
	case "xlsx":
		out, err := s.export.MatrixXLSX(&matrix)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="matches.xlsx"`)
		_, _ = w.Write(out)
	default:
		common.WriteError(w, common.InvalidArgumentErrorf("unsupported format %q", format))
	}
}

func parseIDs(raw []string, field string) ([]uuid.UUID, error) {
	v := common.NewValidator()
	for i, s := range raw {
		v.Field(fmt.Sprintf("%s[%d]", field, i), s, common.UUID)
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		out = append(out, uuid.MustParse(s))
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
