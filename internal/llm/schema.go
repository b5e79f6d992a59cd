package llm

// BuildDocumentJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to OpenAI as a structured output constraint and also use it locally to
// validate. Only 'role' is required: an extractor that cannot read a field must omit it
// rather than guess, because downstream comparison treats omission as MISSING.
func BuildDocumentJSONSchema() map[string]any {
	props := map[string]any{
		"role":           map[string]any{"type": "string", "enum": []string{"invoice", "purchase_order"}},
		"invoice_number": identifierProp(),
		"po_number":      identifierProp(),
		"vendor_name":    map[string]any{"type": "string", "minLength": 1},
		"total_amount":   decimalProp(),
		"tax_amount":     decimalProp(),
		"currency_code":  map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
		"issue_date":     map[string]any{"type": "string", "minLength": 1},
		"due_date":       map[string]any{"type": "string", "minLength": 1},
		"description":    map[string]any{"type": "string"},
		"confidence":     map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}
	required := []string{"role"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^-?\d+(\.\d{1,2})?$`, // allow negatives for credit notes
	}
}

// identifierProp keeps identifiers free-form: PO and invoice numbers carry
// arbitrary punctuation that must survive exactly as printed.
func identifierProp() map[string]any {
	return map[string]any{"type": "string", "minLength": 1}
}
