package recon

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apflow/invoice-reconciler/internal/common"
	"github.com/apflow/invoice-reconciler/internal/entity"
)

func testBuilder() *Builder {
	return NewBuilder(Config{Fields: scoreFields}, nil)
}

func TestBuildMatrixExhaustive(t *testing.T) {
	invoices := []*entity.DocumentRecord{
		record(entity.RoleInvoice, "inv-a.json", scoreFields, map[string]string{
			"po_number": "PO-157", "vendor_name": "Etisalat", "total_amount": "8450",
		}),
		record(entity.RoleInvoice, "inv-b.json", scoreFields, map[string]string{
			"po_number": "PO-901", "vendor_name": "Gulf Print Co", "total_amount": "310.25",
		}),
	}
	pos := []*entity.DocumentRecord{
		record(entity.RolePurchaseOrder, "po-157.json", scoreFields, map[string]string{
			"po_number": "PO-157", "vendor_name": "Etisalat", "total_amount": "8450.00",
		}),
		record(entity.RolePurchaseOrder, "po-440.json", scoreFields, map[string]string{
			"po_number": "PO-440", "vendor_name": "Desert Logistics", "total_amount": "99000",
		}),
	}

	out, err := testBuilder().BuildMatrix(invoices, pos)
	require.NoError(t, err)
	require.Len(t, out.Results, 4)

	// invoice-major input order
	assert.Equal(t, "inv-a.json", out.Results[0].InvoiceID)
	assert.Equal(t, "po-157.json", out.Results[0].POID)
	assert.Equal(t, "inv-a.json", out.Results[1].InvoiceID)
	assert.Equal(t, "po-440.json", out.Results[1].POID)
	assert.Equal(t, "inv-b.json", out.Results[2].InvoiceID)
	assert.Equal(t, "inv-b.json", out.Results[3].InvoiceID)

	assert.Equal(t, 100, out.Results[0].MatchScore)
	assert.True(t, out.Results[0].IsLikelyMatch)
	for _, res := range out.Results[1:] {
		assert.False(t, res.IsLikelyMatch, "%s x %s", res.InvoiceID, res.POID)
	}

	assert.Equal(t, 1, out.Summary.HighConfidence)
	total := out.Summary.HighConfidence + out.Summary.MediumConfidence + out.Summary.LowConfidence
	assert.Equal(t, len(out.Results), total)
}

func TestBuildMatrixEmptySides(t *testing.T) {
	out, err := testBuilder().BuildMatrix(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Zero(t, out.Summary.HighConfidence+out.Summary.MediumConfidence+out.Summary.LowConfidence)
}

func TestBuildMatrixRejectsBadRecords(t *testing.T) {
	good := record(entity.RoleInvoice, "inv.json", scoreFields, nil)
	noRole := record("", "po.json", scoreFields, nil)
	noSource := record(entity.RolePurchaseOrder, "", scoreFields, nil)

	b := testBuilder()

	_, err := b.BuildMatrix([]*entity.DocumentRecord{good}, []*entity.DocumentRecord{noRole})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = b.BuildMatrix([]*entity.DocumentRecord{good}, []*entity.DocumentRecord{noSource})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = b.BuildMatrix([]*entity.DocumentRecord{nil}, []*entity.DocumentRecord{good})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestBuildMatrixThreshold(t *testing.T) {
	inv := record(entity.RoleInvoice, "inv.json", scoreFields, map[string]string{
		"po_number": "PO-1", "vendor_name": "Acme", "total_amount": "100",
	})
	po := record(entity.RolePurchaseOrder, "po.json", scoreFields, map[string]string{
		"po_number": "PO-1", "vendor_name": "Acme", "total_amount": "999",
	})

	// 2 of 3 matched scores 67: below the default threshold, above a lower one
	out, err := testBuilder().BuildMatrix([]*entity.DocumentRecord{inv}, []*entity.DocumentRecord{po})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, 67, out.Results[0].MatchScore)
	assert.False(t, out.Results[0].IsLikelyMatch)

	lenient := NewBuilder(Config{Fields: scoreFields, MatchThreshold: 60}, nil)
	out, err = lenient.BuildMatrix([]*entity.DocumentRecord{inv}, []*entity.DocumentRecord{po})
	require.NoError(t, err)
	assert.True(t, out.Results[0].IsLikelyMatch)
}

func TestBuildMatrixZeroThresholdOverride(t *testing.T) {
	inv := record(entity.RoleInvoice, "inv.json", scoreFields, map[string]string{
		"po_number": "PO-1", "vendor_name": "Acme", "total_amount": "100",
	})
	po := record(entity.RolePurchaseOrder, "po.json", scoreFields, map[string]string{
		"po_number": "PO-1", "vendor_name": "Acme", "total_amount": "999",
	})

	zero := 0
	b := testBuilder().WithOverrides(&zero, nil)
	assert.Equal(t, 0, b.Config().MatchThreshold)

	out, err := b.BuildMatrix([]*entity.DocumentRecord{inv}, []*entity.DocumentRecord{po})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, 67, out.Results[0].MatchScore)
	assert.True(t, out.Results[0].IsLikelyMatch)
}

func TestWithOverridesKeepsFieldSet(t *testing.T) {
	tol := 0.5
	b := testBuilder().WithOverrides(nil, &tol)
	cfg := b.Config()
	assert.Equal(t, scoreFields, cfg.Fields)
	assert.Equal(t, 0.5, cfg.AmountTolerance)
	assert.Equal(t, DefaultMatchThreshold, cfg.MatchThreshold)
}

func TestBuildMatrixRecoversPerPairFailure(t *testing.T) {
	orig := scoreFn
	defer func() { scoreFn = orig }()
	scoreFn = func(inv, po *entity.DocumentRecord, fields []FieldSpec, tolerance float64) entity.MatchResult {
		if po.SourceID == "po-bad.json" {
			panic("corrupt field state")
		}
		return orig(inv, po, fields, tolerance)
	}

	inv := record(entity.RoleInvoice, "inv.json", scoreFields, map[string]string{
		"po_number": "PO-157", "vendor_name": "Etisalat", "total_amount": "8450",
	})
	pos := []*entity.DocumentRecord{
		record(entity.RolePurchaseOrder, "po-bad.json", scoreFields, nil),
		record(entity.RolePurchaseOrder, "po-157.json", scoreFields, map[string]string{
			"po_number": "PO-157", "vendor_name": "Etisalat", "total_amount": "8450.00",
		}),
	}

	out, err := testBuilder().BuildMatrix([]*entity.DocumentRecord{inv}, pos)
	require.NoError(t, err)
	require.Len(t, out.Results, 2)

	bad := out.Results[0]
	assert.Equal(t, "po-bad.json", bad.POID)
	assert.Equal(t, 0, bad.MatchScore)
	assert.Equal(t, entity.StatusMismatched, bad.Status)
	assert.Contains(t, bad.Error, "comparison failed")
	assert.False(t, bad.IsLikelyMatch)

	// the loop continued past the failure
	good := out.Results[1]
	assert.Equal(t, "po-157.json", good.POID)
	assert.Equal(t, 100, good.MatchScore)
	assert.True(t, good.IsLikelyMatch)

	total := out.Summary.HighConfidence + out.Summary.MediumConfidence + out.Summary.LowConfidence
	assert.Equal(t, 2, total)
}

func TestScorePairLeavesLikelyMatchUnset(t *testing.T) {
	inv := record(entity.RoleInvoice, "inv.json", scoreFields, map[string]string{
		"po_number": "PO-1", "vendor_name": "Acme", "total_amount": "100",
	})
	po := record(entity.RolePurchaseOrder, "po.json", scoreFields, map[string]string{
		"po_number": "PO-1", "vendor_name": "Acme", "total_amount": "100",
	})

	res, err := testBuilder().ScorePair(inv, po)
	require.NoError(t, err)
	assert.Equal(t, 100, res.MatchScore)
	assert.Equal(t, entity.StatusMatched, res.Status)
	assert.False(t, res.IsLikelyMatch)
}

func TestBuilderDefaults(t *testing.T) {
	b := NewBuilder(Config{}, nil)
	cfg := b.Config()
	assert.Equal(t, DefaultMatchThreshold, cfg.MatchThreshold)
	assert.Equal(t, DefaultAmountTolerance, cfg.AmountTolerance)
	assert.Equal(t, DefaultFields(), cfg.Fields)
}
