package recon

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apflow/invoice-reconciler/internal/entity"
)

func fv(name string, kind entity.FieldKind, raw string) *entity.FieldValue {
	return &entity.FieldValue{Name: name, Kind: kind, Raw: &raw}
}

func TestNormalizeMissing(t *testing.T) {
	assert.True(t, Normalize(nil).Missing)
	assert.True(t, Normalize(&entity.FieldValue{Name: "vendor_name", Kind: entity.KindText}).Missing)
	assert.True(t, Normalize(fv("vendor_name", entity.KindText, "   ")).Missing)
}

func TestNormalizeText(t *testing.T) {
	n := Normalize(fv("vendor_name", entity.KindText, "  Etisalat UAE  "))
	assert.False(t, n.Missing)
	assert.Equal(t, "Etisalat UAE", n.Display)
	assert.Equal(t, "etisalat uae", n.Key)
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		missing bool
	}{
		{"plain", "8450", 8450, false},
		{"decimal", "8450.00", 8450, false},
		{"symbol and thousands", "$12,990.50", 12990.50, false},
		{"currency code prefix", "AED 1,234.50", 1234.50, false},
		{"negative", "-250.75", -250.75, false},
		{"garbage", "TBD", 0, true},
		{"empty after strip", "N/A", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Normalize(fv("total_amount", entity.KindCurrency, tt.raw))
			assert.Equal(t, tt.missing, n.Missing)
			if !tt.missing {
				assert.True(t, n.IsAmount)
				assert.InDelta(t, tt.want, n.Amount, 1e-9)
			}
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		isDate bool
	}{
		{"iso", "2025-06-30", "2025-06-30", true},
		{"short month", "30 Jun 2025", "2025-06-30", true},
		{"long month", "30 June 2025", "2025-06-30", true},
		{"us long", "June 30, 2025", "2025-06-30", true},
		{"slashes", "2025/06/30", "2025-06-30", true},
		{"single digit day", "5 Jan 2024", "2024-01-05", true},
		{"unparsable falls back to text", "next Tuesday", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Normalize(fv("issue_date", entity.KindDate, tt.raw))
			assert.False(t, n.Missing)
			assert.Equal(t, tt.isDate, n.IsDate)
			if tt.isDate {
				assert.Equal(t, tt.want, n.Date)
			} else {
				assert.Equal(t, "next tuesday", n.Key)
			}
		})
	}
}

func TestNormalizeIdentifierKeepsPunctuation(t *testing.T) {
	a := Normalize(fv("po_number", entity.KindIdentifier, `MDC\5105486_1`))
	b := Normalize(fv("po_number", entity.KindIdentifier, "MDC-5105486-1"))
	assert.NotEqual(t, a.Key, b.Key)

	c := Normalize(fv("po_number", entity.KindIdentifier, "po-157"))
	d := Normalize(fv("po_number", entity.KindIdentifier, "PO-157"))
	assert.Equal(t, c.Key, d.Key)
}
