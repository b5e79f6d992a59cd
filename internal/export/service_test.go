package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/apflow/invoice-reconciler/internal/entity"
)

func sampleMatrix() *entity.MatrixResult {
	return &entity.MatrixResult{
		Results: []entity.MatchResult{
			{
				InvoiceID: "inv-etisalat.json",
				POID:      "po-157.json",
				FieldComparisons: []entity.FieldComparison{
					{Field: "po_number", Outcome: entity.OutcomeMatch, Confidence: 1.0},
					{Field: "vendor_name", Outcome: entity.OutcomeMatch, Confidence: 0.9},
					{Field: "total_amount", Outcome: entity.OutcomeMatch, Confidence: 0.98},
				},
				MatchScore:    100,
				Status:        entity.StatusMatched,
				IsLikelyMatch: true,
			},
			{
				InvoiceID: "inv-etisalat.json",
				POID:      "po-440.json",
				FieldComparisons: []entity.FieldComparison{
					{Field: "po_number", Outcome: entity.OutcomeMismatch, Confidence: 0.57},
					{Field: "vendor_name", Outcome: entity.OutcomeMismatch, Confidence: 0.85},
					{Field: "total_amount", Outcome: entity.OutcomeMissing},
				},
				MatchScore: 0,
				Status:     entity.StatusMismatched,
			},
		},
		Summary: entity.MatrixSummary{HighConfidence: 1, LowConfidence: 1},
	}
}

func TestMatrixXLSX(t *testing.T) {
	svc := NewService(nil)
	out, err := svc.MatrixXLSX(sampleMatrix())
	require.NoError(t, err)
	require.NotEmpty(t, out)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Matches")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 pairs
	assert.Equal(t, "Invoice", rows[0][0])
	assert.Equal(t, "inv-etisalat.json", rows[1][0])
	assert.Equal(t, "po-157.json", rows[1][1])
	assert.Equal(t, "100", rows[1][2])
	assert.Equal(t, "TRUE", rows[1][4])
}

func TestMatrixCSV(t *testing.T) {
	svc := NewService(nil)
	out, err := svc.MatrixCSV(sampleMatrix())
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, matrixHeaders, rows[0])
	assert.Equal(t, "matched", rows[1][3])
	assert.Equal(t, "po_number, vendor_name, total_amount", rows[1][5])
	assert.Equal(t, "total_amount", rows[2][7])
}

func TestMatrixJSON(t *testing.T) {
	svc := NewService(nil)
	out, err := svc.MatrixJSON(sampleMatrix())
	require.NoError(t, err)

	var decoded entity.MatrixResult
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded.Results, 2)
	assert.Equal(t, 100, decoded.Results[0].MatchScore)
	assert.Len(t, decoded.Results[0].FieldComparisons, 3)
	assert.Equal(t, 1, decoded.Summary.HighConfidence)
}
