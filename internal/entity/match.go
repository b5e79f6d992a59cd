package entity

// Outcome of comparing one named field between two records.
type Outcome string

const (
	OutcomeMatch    Outcome = "MATCH"
	OutcomeMismatch Outcome = "MISMATCH"
	OutcomeMissing  Outcome = "MISSING"
)

// MatchStatus is the strict per-field pass/fail gate, independent of the
// threshold-derived IsLikelyMatch.
type MatchStatus string

const (
	StatusMatched    MatchStatus = "matched"
	StatusMismatched MatchStatus = "mismatched"
)

// FieldComparison is the result of comparing one field across two records.
// Confidence is meaningful only when Outcome != MISSING.
type FieldComparison struct {
	Field      string  `json:"field"`
	LeftValue  string  `json:"left_value"`
	RightValue string  `json:"right_value"`
	Outcome    Outcome `json:"outcome"`
	Confidence float64 `json:"confidence"`
}

// MatchResult is the scored outcome of one invoice/PO pair.
// MatchScore is round(100 * matched / totalCompared) where totalCompared
// excludes fields missing on both sides; Status is matched iff no field
// mismatched, so a pair can be matched with a score below 100.
type MatchResult struct {
	InvoiceID        string            `json:"invoice_id"`
	POID             string            `json:"po_id"`
	FieldComparisons []FieldComparison `json:"field_comparisons"`
	MatchScore       int               `json:"match_score"`
	Status           MatchStatus       `json:"status"`
	IsLikelyMatch    bool              `json:"is_likely_match"`
	Error            string            `json:"error,omitempty"`
}

// MatrixSummary buckets pair scores. Boundaries are half-open on the low
// side: high > 80, 50 < medium <= 80, low <= 50.
type MatrixSummary struct {
	HighConfidence   int `json:"high_confidence"`
	MediumConfidence int `json:"medium_confidence"`
	LowConfidence    int `json:"low_confidence"`
}

// MatrixResult is the exhaustive set of MatchResults for all invoice×PO
// pairs in a batch, in invoice-major caller order.
type MatrixResult struct {
	Results []MatchResult `json:"results"`
	Summary MatrixSummary `json:"summary"`
}
