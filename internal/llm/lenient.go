package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reDecimal = regexp.MustCompile(`^-?\d+(\.\d{1,2})?$`)
	optMoney  = []string{"total_amount", "tax_amount"} // optional only
)

// SanitizeOptionalFields removes or normalizes optional fields that don't meet our
// stricter schema, so the overall document can still validate. We only touch
// OPTIONALS; 'role' is never repaired here.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string

	// currency_code: still normalize casing if present
	if v, ok := m["currency_code"].(string); ok {
		s := strings.ToUpper(strings.TrimSpace(v))
		if len(s) != 3 {
			delete(m, "currency_code")
			dropped = append(dropped, "currency_code")
		} else {
			m["currency_code"] = s
		}
	}

	for _, k := range optMoney {
		if v, ok := m[k]; ok {
			switch t := v.(type) {
			case nil:
				delete(m, k)
				dropped = append(dropped, k)
			case float64:
				m[k] = fmt.Sprintf("%.2f", t)
			case string:
				s := strings.TrimSpace(t)
				if s == "" || strings.EqualFold(s, "null") {
					delete(m, k)
					dropped = append(dropped, k)
					continue
				}
				if !reDecimal.MatchString(s) {
					// strip formatting noise and try parse
					cleaned := strings.NewReplacer(",", "", "$", "", " ", "").Replace(s)
					if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
						m[k] = fmt.Sprintf("%.2f", f)
					} else {
						delete(m, k)
						dropped = append(dropped, k)
					}
				} else {
					m[k] = s
				}
			default:
				// unknown type -> drop
				delete(m, k)
				dropped = append(dropped, k)
			}
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}
