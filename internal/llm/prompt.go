package llm

import (
	"strings"
)

// BuildSystemPrompt composes the system message with the role hint, currency
// default, and strict-but-practical formatting rules.
func BuildSystemPrompt(req ExtractRequest) string {
	defCur := strings.TrimSpace(req.DefaultCurrency)
	if defCur == "" {
		defCur = "AED"
	}

	var roleLine string
	switch req.RoleHint {
	case "invoice":
		roleLine = "This document is an invoice; set 'role' to 'invoice'. "
	case "purchase_order":
		roleLine = "This document is a purchase order; set 'role' to 'purchase_order'. "
	default:
		roleLine = "Decide whether the document is an invoice or a purchase order and set 'role' accordingly. "
	}

	parts := []string{
		"You are an accounts-payable document parser. Return ONLY JSON that matches the provided JSON Schema.",
		roleLine,
		"Copy 'invoice_number' and 'po_number' EXACTLY as printed, including slashes, dashes, and underscores.",
		"Use ISO-8601 dates (YYYY-MM-DD) when the document prints a full calendar date; otherwise copy the date text verbatim.",
		"Amounts are plain decimal strings with no currency symbol or thousands separators.",
		"Currency must be a 3-letter ISO 4217 code; default to " + defCur + " if uncertain.",
		"For 'description', summarize the line items in a few words.",

		// Formatting hygiene:
		"Never output null. If a field is not present on the document, omit it entirely; do not guess.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages document text plus filename/folder hints. Filenames
// often carry the PO number, which helps the model cross-check what it reads.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if filename := strings.TrimSpace(req.FilenameHint); filename != "" {
		b.WriteString("Filename: ")
		b.WriteString(filename)
		b.WriteString("\n")
	}
	if folder := strings.TrimSpace(req.FolderHint); folder != "" {
		b.WriteString("Folder path: ")
		b.WriteString(folder)
		b.WriteString("\n")
	}

	text := strings.TrimSpace(req.DocumentText)
	b.WriteString("\nDocument text (first ~6k chars):\n")
	if len(text) > 6000 {
		b.WriteString(text[:6000])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}
