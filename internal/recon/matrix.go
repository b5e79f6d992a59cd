package recon

import (
	"fmt"
	"log/slog"

	"github.com/apflow/invoice-reconciler/internal/common"
	"github.com/apflow/invoice-reconciler/internal/entity"
)

// Builder runs the scorer over the Cartesian product of invoices and
// purchase orders. It holds no mutable state, so one Builder is safe to
// use from concurrent callers.
type Builder struct {
	cfg    Config
	logger *slog.Logger
}

func NewBuilder(cfg Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg.withDefaults(), logger: logger}
}

// Config returns the effective engine configuration after defaulting.
func (b *Builder) Config() Config {
	return b.cfg
}

// WithOverrides returns a Builder sharing b's field set with an adjusted
// threshold or tolerance. Unlike NewBuilder it applies no defaulting, so a
// zero threshold stays zero (every scored pair above 0 is a likely match).
func (b *Builder) WithOverrides(threshold *int, tolerance *float64) *Builder {
	cfg := b.cfg
	if threshold != nil {
		cfg.MatchThreshold = *threshold
	}
	if tolerance != nil {
		cfg.AmountTolerance = *tolerance
	}
	return &Builder{cfg: cfg, logger: b.logger}
}

// BuildMatrix produces exactly len(invoices) x len(purchaseOrders) results
// in invoice-major input order. There is no early pruning: the point is
// exhaustive candidate discovery when attachments arrive with no prior
// linkage. A failure scoring one pair is recorded as a zero-score error
// row and the remaining pairs proceed; a record missing its role or source
// id rejects the whole request before the loop, since that is a caller bug
// rather than a data-quality issue.
func (b *Builder) BuildMatrix(invoices, purchaseOrders []*entity.DocumentRecord) (*entity.MatrixResult, error) {
	if err := validateRecords(invoices); err != nil {
		return nil, err
	}
	if err := validateRecords(purchaseOrders); err != nil {
		return nil, err
	}

	out := &entity.MatrixResult{
		Results: make([]entity.MatchResult, 0, len(invoices)*len(purchaseOrders)),
	}
	for _, inv := range invoices {
		for _, po := range purchaseOrders {
			res := b.scorePair(inv, po)
			switch {
			case res.MatchScore > 80:
				out.Summary.HighConfidence++
			case res.MatchScore > 50:
				out.Summary.MediumConfidence++
			default:
				out.Summary.LowConfidence++
			}
			out.Results = append(out.Results, res)
		}
	}
	return out, nil
}

// ScorePair runs a single pairwise comparison. IsLikelyMatch is left false:
// the threshold derivative only applies in matrix mode.
func (b *Builder) ScorePair(invoice, po *entity.DocumentRecord) (entity.MatchResult, error) {
	if err := validateRecords([]*entity.DocumentRecord{invoice, po}); err != nil {
		return entity.MatchResult{}, err
	}
	return Score(invoice, po, b.cfg.Fields, b.cfg.AmountTolerance), nil
}

func (b *Builder) scorePair(inv, po *entity.DocumentRecord) (res entity.MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("recon.pair.failed",
				"invoice", inv.SourceID, "po", po.SourceID, "panic", r)
			res = entity.MatchResult{
				InvoiceID:        inv.SourceID,
				POID:             po.SourceID,
				FieldComparisons: []entity.FieldComparison{},
				MatchScore:       0,
				Status:           entity.StatusMismatched,
				Error:            fmt.Sprintf("comparison failed: %v", r),
			}
		}
	}()
	res = scoreFn(inv, po, b.cfg.Fields, b.cfg.AmountTolerance)
	res.IsLikelyMatch = res.Error == "" && res.MatchScore > b.cfg.MatchThreshold
	return res
}

// scoreFn is swapped in tests to simulate per-pair scoring failures.
var scoreFn = Score

func validateRecords(records []*entity.DocumentRecord) error {
	for i, r := range records {
		if r == nil {
			return common.InvalidArgumentErrorf("record %d is nil", i)
		}
		if r.Role == "" {
			return common.InvalidArgumentErrorf("record %q has no document role", r.SourceID)
		}
		if r.SourceID == "" {
			return common.InvalidArgumentErrorf("record %d has no source id", i)
		}
	}
	return nil
}
