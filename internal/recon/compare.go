package recon

import (
	"math"

	"github.com/agnivade/levenshtein"

	"github.com/apflow/invoice-reconciler/internal/entity"
)

// Per-kind confidence constants. These are deliberately fixed, not
// statistical estimates, so every run is reproducible.
const (
	confIdentifier = 1.0
	confCurrency   = 0.98
	confDate       = 0.95
	confText       = 0.90
)

// Compare decides MATCH / MISMATCH / MISSING for one field across two
// records. A field absent on either side is MISSING, never MISMATCH: a
// value one extractor failed to capture is not a factual contradiction,
// but it does not count as a match either.
func Compare(field string, kind entity.FieldKind, left, right *entity.FieldValue, tolerance float64) entity.FieldComparison {
	fc, _ := compareField(field, kind, left, right, tolerance)
	return fc
}

// compareField additionally reports whether the field was missing on both
// sides, which the scorer excludes from the denominator entirely. A field
// missing on only one side still counts against the score.
func compareField(field string, kind entity.FieldKind, left, right *entity.FieldValue, tolerance float64) (entity.FieldComparison, bool) {
	ln := Normalize(left)
	rn := Normalize(right)

	fc := entity.FieldComparison{
		Field:      field,
		LeftValue:  ln.Display,
		RightValue: rn.Display,
	}

	if ln.Missing || rn.Missing {
		fc.Outcome = entity.OutcomeMissing
		return fc, ln.Missing && rn.Missing
	}

	switch kind {
	case entity.KindCurrency:
		if math.Abs(ln.Amount-rn.Amount) < tolerance {
			fc.Outcome = entity.OutcomeMatch
		} else {
			fc.Outcome = entity.OutcomeMismatch
		}
		fc.Confidence = confCurrency
	case entity.KindDate:
		if ln.IsDate && rn.IsDate {
			if ln.Date == rn.Date {
				fc.Outcome = entity.OutcomeMatch
			} else {
				fc.Outcome = entity.OutcomeMismatch
			}
			fc.Confidence = confDate
			break
		}
		// either side failed date normalization: fall back to text equality
		fc.Outcome = textOutcome(ln.Key, rn.Key)
		fc.Confidence = textConfidence(fc.Outcome, ln.Key, rn.Key)
	case entity.KindIdentifier:
		fc.Outcome = textOutcome(ln.Key, rn.Key)
		fc.Confidence = confIdentifier
		if fc.Outcome == entity.OutcomeMismatch {
			fc.Confidence = textConfidence(fc.Outcome, ln.Key, rn.Key)
		}
	default: // text
		fc.Outcome = textOutcome(ln.Key, rn.Key)
		fc.Confidence = textConfidence(fc.Outcome, ln.Key, rn.Key)
	}
	return fc, false
}

func textOutcome(left, right string) entity.Outcome {
	if left == right {
		return entity.OutcomeMatch
	}
	return entity.OutcomeMismatch
}

// textConfidence reports how sure we are of a text verdict. Matches use the
// fixed constant; mismatches scale with levenshtein distance so that
// near-identical strings surface as low-confidence mismatches in reports.
// Levenshtein is deterministic, so runs remain reproducible.
func textConfidence(outcome entity.Outcome, left, right string) float64 {
	if outcome == entity.OutcomeMatch {
		return confText
	}
	longest := max(len([]rune(left)), len([]rune(right)))
	if longest == 0 {
		return confText
	}
	dist := levenshtein.ComputeDistance(left, right)
	sim := 1 - float64(dist)/float64(longest)
	// round to 2 decimals to keep serialized output stable
	return math.Round((1-sim)*100) / 100
}
