package entity

import (
	"time"

	"github.com/google/uuid"
)

// FieldKind selects the comparison rule applied to a field.
type FieldKind string

const (
	KindText       FieldKind = "text"
	KindCurrency   FieldKind = "currency"
	KindDate       FieldKind = "date"
	KindIdentifier FieldKind = "identifier"
)

// DocumentRole tags which side of a reconciliation a record belongs to.
type DocumentRole string

const (
	RoleInvoice       DocumentRole = "invoice"
	RolePurchaseOrder DocumentRole = "purchase_order"
)

// FieldValue is a single extracted datum. Raw is nil when the upstream
// extractor never captured the field; an absent value is MISSING, never
// an empty string.
type FieldValue struct {
	Name string    `json:"name"`
	Raw  *string   `json:"raw,omitempty"`
	Kind FieldKind `json:"kind"`
}

// Present reports whether the field carries a value.
func (v *FieldValue) Present() bool {
	return v != nil && v.Raw != nil
}

// DocumentRecord is the normalized bag of extracted fields for one invoice
// or purchase order. SourceID is traceability only and never participates
// in matching. Records are immutable once produced.
type DocumentRecord struct {
	ID         uuid.UUID             `json:"id"`
	Role       DocumentRole          `json:"role"`
	SourceID   string                `json:"source_id"`
	Fields     map[string]FieldValue `json:"fields"`
	IngestedAt time.Time             `json:"ingested_at"`
}

// Field returns the named field, or nil when the record never captured it.
func (d *DocumentRecord) Field(name string) *FieldValue {
	if d == nil {
		return nil
	}
	if fv, ok := d.Fields[name]; ok {
		return &fv
	}
	return nil
}
