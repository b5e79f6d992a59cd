package llm

import "context"

// DocumentFields is the normalized shape we want from the LLM for one
// invoice or purchase order. Amounts are decimal strings so nothing is
// lost to float formatting before the comparison engine sees them.
type DocumentFields struct {
	Role            string  `json:"role"`                     // "invoice" or "purchase_order"
	InvoiceNumber   string  `json:"invoice_number,omitempty"` // identifier, punctuation preserved
	PONumber        string  `json:"po_number,omitempty"`      // identifier, punctuation preserved
	VendorName      string  `json:"vendor_name,omitempty"`
	TotalAmount     string  `json:"total_amount,omitempty"` // decimal
	TaxAmount       string  `json:"tax_amount,omitempty"`   // decimal
	CurrencyCode    string  `json:"currency_code,omitempty"` // ISO 4217
	IssueDate       string  `json:"issue_date,omitempty"`    // YYYY-MM-DD when the source had one
	DueDate         string  `json:"due_date,omitempty"`      // YYYY-MM-DD
	Description     string  `json:"description,omitempty"`
	ModelConfidence float32 `json:"confidence,omitempty"` // optional (0..1), diagnostic only
}

type ExtractRequest struct {
	DocumentText    string
	FilenameHint    string
	FolderHint      string
	RoleHint        string // "invoice" / "purchase_order" when the caller knows the side
	DefaultCurrency string

	FilePath string
}

//go:generate mockgen -source=contracts.go -destination=mocks/mock_extractor.go -package=mocks FieldExtractor

// FieldExtractor is the interface the ingestion pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (DocumentFields, []byte /*rawJSON*/, error)
}
