package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/apflow/invoice-reconciler/constants"
	"github.com/apflow/invoice-reconciler/internal/common"
	"github.com/apflow/invoice-reconciler/internal/entity"
	"github.com/apflow/invoice-reconciler/internal/llm"
)

// fieldKinds maps every extractable field to its comparison rule.
var fieldKinds = map[string]entity.FieldKind{
	string(constants.InvoiceNumber): entity.KindIdentifier,
	string(constants.PONumber):      entity.KindIdentifier,
	string(constants.VendorName):    entity.KindText,
	string(constants.TotalAmount):   entity.KindCurrency,
	string(constants.TaxAmount):     entity.KindCurrency,
	string(constants.CurrencyCode):  entity.KindText,
	string(constants.IssueDate):     entity.KindDate,
	string(constants.DueDate):       entity.KindDate,
	string(constants.Description):   entity.KindText,
}

// BuildRecord turns extracted fields into an immutable DocumentRecord.
// Empty strings are treated as never captured: the comparison engine must
// see them as MISSING, not as empty values.
func BuildRecord(fields llm.DocumentFields, sourceID string, at time.Time) (*entity.DocumentRecord, error) {
	role := entity.DocumentRole(fields.Role)
	switch role {
	case entity.RoleInvoice, entity.RolePurchaseOrder:
	default:
		return nil, common.InvalidArgumentErrorf("unrecognized document role %q", fields.Role)
	}
	if sourceID == "" {
		return nil, common.InvalidArgumentErrorf("source id is required")
	}

	rec := &entity.DocumentRecord{
		ID:         uuid.New(),
		Role:       role,
		SourceID:   sourceID,
		Fields:     make(map[string]entity.FieldValue, len(fieldKinds)),
		IngestedAt: at,
	}

	set := func(name, raw string) {
		if raw == "" {
			return
		}
		v := raw
		rec.Fields[name] = entity.FieldValue{Name: name, Kind: fieldKinds[name], Raw: &v}
	}
	set(string(constants.InvoiceNumber), fields.InvoiceNumber)
	set(string(constants.PONumber), fields.PONumber)
	set(string(constants.VendorName), fields.VendorName)
	set(string(constants.TotalAmount), fields.TotalAmount)
	set(string(constants.TaxAmount), fields.TaxAmount)
	set(string(constants.CurrencyCode), fields.CurrencyCode)
	set(string(constants.IssueDate), fields.IssueDate)
	set(string(constants.DueDate), fields.DueDate)
	set(string(constants.Description), fields.Description)

	return rec, nil
}
