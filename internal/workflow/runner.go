package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/apflow/invoice-reconciler/constants"
	"github.com/apflow/invoice-reconciler/internal/common"
	"github.com/apflow/invoice-reconciler/internal/entity"
	"github.com/apflow/invoice-reconciler/internal/recon"
	"github.com/apflow/invoice-reconciler/internal/repository"
)

// Runner drives one reconciliation run through the reducer: fetch both
// document sides, build the matrix, persist the result. Every transition
// goes through Reduce so observers always see a coherent snapshot.
type Runner struct {
	repos   repository.Repositories
	builder *recon.Builder
	logger  *slog.Logger
}

func NewRunner(repos repository.Repositories, builder *recon.Builder, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{repos: repos, builder: builder, logger: logger}
}

// Execute runs the full workflow for an already-created run row. Empty ID
// lists mean "every stored record of that role". The returned State is the
// final snapshot whether the run completed or failed.
func (r *Runner) Execute(ctx context.Context, runID uuid.UUID, invoiceIDs, poIDs []uuid.UUID) (State, error) {
	state := NewState(runID, time.Now().UTC())

	state = r.apply(state, Started{At: time.Now().UTC()})
	if err := r.repos.Runs.UpdateStatus(ctx, runID, constants.RunStatusRunning); err != nil {
		return r.fail(ctx, state, err)
	}

	invoices, err := r.fetch(ctx, entity.RoleInvoice, invoiceIDs)
	if err != nil {
		return r.fail(ctx, state, err)
	}
	purchaseOrders, err := r.fetch(ctx, entity.RolePurchaseOrder, poIDs)
	if err != nil {
		return r.fail(ctx, state, err)
	}
	state = r.apply(state, DocumentsFetched{
		InvoiceIDs: recordIDs(invoices),
		POIDs:      recordIDs(purchaseOrders),
		At:         time.Now().UTC(),
	})

	matrix, err := r.builder.BuildMatrix(invoices, purchaseOrders)
	if err != nil {
		return r.fail(ctx, state, err)
	}
	state = r.apply(state, MatrixBuilt{Matrix: matrix, At: time.Now().UTC()})

	result, err := json.Marshal(matrix)
	if err != nil {
		return r.fail(ctx, state, err)
	}
	if err := r.repos.Runs.Complete(ctx, runID, result, time.Now().UTC()); err != nil {
		return r.fail(ctx, state, err)
	}
	state = r.apply(state, Reported{At: time.Now().UTC()})

	r.logger.Info("workflow.run.completed",
		"run_id", runID,
		"invoices", len(invoices),
		"purchase_orders", len(purchaseOrders),
		"pairs", len(matrix.Results),
		"high_confidence", matrix.Summary.HighConfidence,
	)
	return state, nil
}

func (r *Runner) fetch(ctx context.Context, role entity.DocumentRole, ids []uuid.UUID) ([]*entity.DocumentRecord, error) {
	if len(ids) == 0 {
		return r.repos.Records.ListByRole(ctx, role)
	}
	records, err := r.repos.Records.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Role != role {
			return nil, common.InvalidArgumentErrorf("record %s is a %s, not a %s", rec.ID, rec.Role, role)
		}
	}
	return records, nil
}

func (r *Runner) apply(s State, ev Event) State {
	next := Reduce(s, ev)
	r.logger.Debug("workflow.transition",
		"run_id", next.RunID, "step", next.Step, "status", next.Status)
	return next
}

func (r *Runner) fail(ctx context.Context, s State, cause error) (State, error) {
	state := r.apply(s, Failed{Err: cause.Error(), At: time.Now().UTC()})
	if err := r.repos.Runs.Fail(ctx, state.RunID, cause.Error(), time.Now().UTC()); err != nil {
		r.logger.Error("workflow.mark_failed.failed", "run_id", state.RunID, "error", err)
	}
	r.logger.Error("workflow.run.failed", "run_id", state.RunID, "error", cause)
	return state, cause
}

func recordIDs(records []*entity.DocumentRecord) []uuid.UUID {
	out := make([]uuid.UUID, len(records))
	for i, rec := range records {
		out[i] = rec.ID
	}
	return out
}
