package constants

import (
	"strings"
)

// FieldName is a canonical field identifier shared by invoices and purchase orders.
type FieldName string

const (
	PONumber      FieldName = "po_number"
	InvoiceNumber FieldName = "invoice_number"
	VendorName    FieldName = "vendor_name"
	TotalAmount   FieldName = "total_amount"
	TaxAmount     FieldName = "tax_amount"
	CurrencyCode  FieldName = "currency_code"
	IssueDate     FieldName = "issue_date"
	DueDate       FieldName = "due_date"
	Description   FieldName = "description"
)

var allFields = []FieldName{
	PONumber,
	InvoiceNumber,
	VendorName,
	TotalAmount,
	TaxAmount,
	CurrencyCode,
	IssueDate,
	DueDate,
	Description,
}

func AsStringSlice() []string {
	result := make([]string, len(allFields))
	for i, f := range allFields {
		result[i] = string(f)
	}
	return result
}

// Canonicalize maps a raw extracted field label to its canonical name.
// Labels vary wildly across upstream extractors ("PO Number", "po_no",
// "Supplier"), so we fold case/punctuation and consult a synonym table.
func Canonicalize(input string) (FieldName, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(normalized)

	// synonyms map
	synonyms := map[string]FieldName{
		"po_no":                 PONumber,
		"po":                    PONumber,
		"purchase_order":        PONumber,
		"purchase_order_number": PONumber,
		"po_ref":                PONumber,
		"invoice_no":            InvoiceNumber,
		"inv_number":            InvoiceNumber,
		"invoice_ref":           InvoiceNumber,
		"vendor":                VendorName,
		"supplier":              VendorName,
		"supplier_name":         VendorName,
		"merchant":              VendorName,
		"amount":                TotalAmount,
		"total":                 TotalAmount,
		"grand_total":           TotalAmount,
		"tax":                   TaxAmount,
		"vat":                   TaxAmount,
		"currency":              CurrencyCode,
		"date":                  IssueDate,
		"invoice_date":          IssueDate,
		"order_date":            IssueDate,
		"due":                   DueDate,
		"payment_due":           DueDate,
		"notes":                 Description,
	}

	if f, ok := synonyms[normalized]; ok {
		return f, true
	}

	// check if it matches any canonical field string
	for _, f := range allFields {
		if normalized == string(f) {
			return f, true
		}
	}

	return "", false
}
