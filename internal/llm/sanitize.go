package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/apflow/invoice-reconciler/constants"
)

// NormalizeAndSanitizeJSON
// - Renames known synonyms (purchase_order_number -> po_number)
// - Drops null/empty optionals
// - Coerces numeric -> string for money fields
// - Removes unknown keys (strict additionalProperties = false friendliness)
//
// It never invents values: a field the model did not emit stays absent, so
// the comparison engine sees it as MISSING.
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	// `null` unmarshals into a nil map without error
	if m == nil {
		return nil, nil, fmt.Errorf("sanitize: document is not a JSON object")
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	canonical := make(map[string]struct{})
	for _, f := range constants.AsStringSlice() {
		canonical[f] = struct{}{}
	}

	// 1) rename synonyms to our schema
	renamed("document_type", "role")
	for k := range maps.Clone(m) {
		if k == "role" {
			continue
		}
		if _, ok := canonical[k]; ok {
			continue
		}
		if target, ok := constants.Canonicalize(k); ok {
			renamed(k, string(target))
		}
	}

	// 2) drop null / "" for optionals; coerce money fields to strings
	moneyFields := []string{"total_amount", "tax_amount"}
	coerceMoney := func(k string) {
		if v, ok := m[k]; ok {
			switch t := v.(type) {
			case float64:
				m[k] = fmt.Sprintf("%.2f", t)
			case int:
				m[k] = fmt.Sprintf("%d", t)
			case string:
				s := strings.TrimSpace(t)
				if s == "" {
					delete(m, k)
					dropped = append(dropped, k+"(empty)")
				} else {
					m[k] = s
				}
			case nil:
				delete(m, k)
				dropped = append(dropped, k+"(null)")
			default:
				// unexpected type -> drop
				delete(m, k)
				dropped = append(dropped, k+"(type)")
			}
		}
	}
	for _, k := range moneyFields {
		coerceMoney(k)
	}

	// 3) normalize role and currency casing
	if v, ok := m["role"].(string); ok {
		role := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), " ", "_"))
		switch role {
		case "invoice", "purchase_order":
			m["role"] = role
		case "po":
			m["role"] = "purchase_order"
		default:
			delete(m, "role")
			dropped = append(dropped, "role(unrecognized)")
		}
	}
	if v, ok := m["currency_code"].(string); ok {
		cur := strings.ToUpper(strings.TrimSpace(v))
		if len(cur) == 3 {
			m["currency_code"] = cur
		} else {
			delete(m, "currency_code")
			dropped = append(dropped, "currency_code(invalid)")
		}
	}

	// 4) remove unknown keys (strict additionalProperties friendliness)
	for k := range maps.Clone(m) {
		if k == "role" || k == "confidence" {
			continue
		}
		if _, ok := canonical[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	// 5) trim obvious strings; identifiers are trimmed only, never reshaped
	trimKeys := []string{"invoice_number", "po_number", "vendor_name", "issue_date", "due_date", "description"}
	for _, k := range trimKeys {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", slices.Clip(dropped))
	}
	return out, dropped, nil
}
