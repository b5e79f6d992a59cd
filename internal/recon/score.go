package recon

import (
	"math"

	"github.com/apflow/invoice-reconciler/internal/entity"
)

// Score aggregates the per-field comparisons for one invoice/PO pair.
// Comparisons are collected in the caller's field order so reports are
// reproducible; order never affects the score itself.
//
// The denominator excludes fields missing on both sides. A field captured
// on only one side stays in the denominator with outcome MISSING: it drags
// the score below 100 without counting as a contradiction. Status and
// MatchScore are deliberately asymmetric: status is matched iff no field
// MISMATCHed, so a pair with missing fields can be matched while scoring
// below 100. Downstream actions depend on both signals independently.
//
// A pair where every field is missing on both sides scores 0 and is
// mismatched, never 100.
func Score(invoice, po *entity.DocumentRecord, fields []FieldSpec, tolerance float64) entity.MatchResult {
	res := entity.MatchResult{
		InvoiceID:        invoice.SourceID,
		POID:             po.SourceID,
		FieldComparisons: make([]entity.FieldComparison, 0, len(fields)),
	}

	matched, compared := 0, 0
	mismatched := false
	for _, f := range fields {
		fc, bothMissing := compareField(f.Name, f.Kind, invoice.Field(f.Name), po.Field(f.Name), tolerance)
		res.FieldComparisons = append(res.FieldComparisons, fc)
		if bothMissing {
			continue
		}
		compared++
		switch fc.Outcome {
		case entity.OutcomeMatch:
			matched++
		case entity.OutcomeMismatch:
			mismatched = true
		}
	}

	if compared == 0 {
		res.MatchScore = 0
		res.Status = entity.StatusMismatched
		return res
	}

	res.MatchScore = int(math.Round(100 * float64(matched) / float64(compared)))
	if mismatched {
		res.Status = entity.StatusMismatched
	} else {
		res.Status = entity.StatusMatched
	}
	return res
}
