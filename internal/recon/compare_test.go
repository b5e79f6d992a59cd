package recon

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apflow/invoice-reconciler/internal/entity"
)

func TestCompareMissingShortCircuits(t *testing.T) {
	left := fv("vendor_name", entity.KindText, "Etisalat")

	fc := Compare("vendor_name", entity.KindText, left, nil, DefaultAmountTolerance)
	assert.Equal(t, entity.OutcomeMissing, fc.Outcome)

	fc = Compare("vendor_name", entity.KindText, nil, nil, DefaultAmountTolerance)
	assert.Equal(t, entity.OutcomeMissing, fc.Outcome)

	// a one-sided miss is never a mismatch, even when the present value
	// would contradict anything
	fc = Compare("vendor_name", entity.KindText, nil, left, DefaultAmountTolerance)
	assert.Equal(t, entity.OutcomeMissing, fc.Outcome)
}

func TestCompareCurrencyTolerance(t *testing.T) {
	tests := []struct {
		name  string
		left  string
		right string
		want  entity.Outcome
	}{
		{"exact", "8450", "8450.00", entity.OutcomeMatch},
		{"formatting noise", "$8,450.00", "8450", entity.OutcomeMatch},
		{"within tolerance", "100.00", "100.009", entity.OutcomeMatch},
		{"just over tolerance", "100.00", "100.02", entity.OutcomeMismatch},
		{"clearly different", "12990", "12890", entity.OutcomeMismatch},
		{"sign flip", "250.00", "-250.00", entity.OutcomeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := Compare("total_amount",
				entity.KindCurrency,
				fv("total_amount", entity.KindCurrency, tt.left),
				fv("total_amount", entity.KindCurrency, tt.right),
				DefaultAmountTolerance)
			assert.Equal(t, tt.want, fc.Outcome)
		})
	}
}

func TestCompareCurrencyUnparsableIsMissing(t *testing.T) {
	fc := Compare("total_amount",
		entity.KindCurrency,
		fv("total_amount", entity.KindCurrency, "TBD"),
		fv("total_amount", entity.KindCurrency, "8450"),
		DefaultAmountTolerance)
	assert.Equal(t, entity.OutcomeMissing, fc.Outcome)
}

func TestCompareDate(t *testing.T) {
	tests := []struct {
		name  string
		left  string
		right string
		want  entity.Outcome
	}{
		{"same day different formats", "2025-06-30", "30 Jun 2025", entity.OutcomeMatch},
		{"different days", "2025-06-30", "2025-07-01", entity.OutcomeMismatch},
		{"both unparsable equal text", "Q3 2025", "q3 2025", entity.OutcomeMatch},
		{"one unparsable text fallback", "2025-06-30", "end of June", entity.OutcomeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := Compare("issue_date",
				entity.KindDate,
				fv("issue_date", entity.KindDate, tt.left),
				fv("issue_date", entity.KindDate, tt.right),
				DefaultAmountTolerance)
			assert.Equal(t, tt.want, fc.Outcome)
		})
	}
}

func TestCompareTextCasefolds(t *testing.T) {
	fc := Compare("vendor_name",
		entity.KindText,
		fv("vendor_name", entity.KindText, "Etisalat"),
		fv("vendor_name", entity.KindText, "  etisalat "),
		DefaultAmountTolerance)
	assert.Equal(t, entity.OutcomeMatch, fc.Outcome)
}

func TestCompareIdentifierPunctuationSignificant(t *testing.T) {
	fc := Compare("po_number",
		entity.KindIdentifier,
		fv("po_number", entity.KindIdentifier, `MDC\5105486_1`),
		fv("po_number", entity.KindIdentifier, "MDC-5105486-1"),
		DefaultAmountTolerance)
	assert.Equal(t, entity.OutcomeMismatch, fc.Outcome)

	fc = Compare("po_number",
		entity.KindIdentifier,
		fv("po_number", entity.KindIdentifier, "PO-157"),
		fv("po_number", entity.KindIdentifier, "po-157"),
		DefaultAmountTolerance)
	assert.Equal(t, entity.OutcomeMatch, fc.Outcome)
}

func TestCompareConfidenceDeterministic(t *testing.T) {
	left := fv("vendor_name", entity.KindText, "Etisalat UAE")
	right := fv("vendor_name", entity.KindText, "Etisalat FZE")

	first := Compare("vendor_name", entity.KindText, left, right, DefaultAmountTolerance)
	for i := 0; i < 5; i++ {
		again := Compare("vendor_name", entity.KindText, left, right, DefaultAmountTolerance)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, entity.OutcomeMismatch, first.Outcome)
	assert.GreaterOrEqual(t, first.Confidence, 0.0)
	assert.LessOrEqual(t, first.Confidence, 1.0)
}
