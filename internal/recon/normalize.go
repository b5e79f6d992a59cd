package recon

import (
	"strconv"
	"strings"
	"time"

	"github.com/apflow/invoice-reconciler/internal/entity"
)

// NormalizedValue is the comparable form of a FieldValue. Display keeps the
// trimmed original casing for reporting; Key is the casefolded comparison
// key. Amount and Date are only meaningful when the corresponding flag is
// set.
type NormalizedValue struct {
	Display  string
	Key      string
	Amount   float64
	IsAmount bool
	Date     string // ISO calendar date, YYYY-MM-DD
	IsDate   bool
	Missing  bool
}

// Date layouts accepted by the normalizer. Upstream extraction emits both
// ISO and locale long-form dates ("30 Jun 2025"), so we try a small set.
var dateLayouts = []string{
	"2006-01-02",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006/01/02",
}

// Normalize canonicalizes a raw field value into comparable form. It is a
// pure function and never fails: unparsable dates degrade to text keys,
// unparsable amounts degrade to missing.
func Normalize(v *entity.FieldValue) NormalizedValue {
	if !v.Present() {
		return NormalizedValue{Missing: true}
	}

	display := strings.TrimSpace(*v.Raw)
	if display == "" {
		return NormalizedValue{Missing: true}
	}
	out := NormalizedValue{
		Display: display,
		Key:     strings.ToLower(display),
	}

	switch v.Kind {
	case entity.KindCurrency:
		amt, ok := parseAmount(display)
		if !ok {
			// value present but not a number: upstream captured garbage,
			// treat the field as never captured
			return NormalizedValue{Display: display, Missing: true}
		}
		out.Amount = amt
		out.IsAmount = true
	case entity.KindDate:
		if iso, ok := parseDate(display); ok {
			out.Date = iso
			out.IsDate = true
		}
		// unparsable dates fall through and compare as text
	case entity.KindText, entity.KindIdentifier:
		// identifiers keep internal punctuation: MDC\5105486_1 must stay
		// distinguishable from MDC-5105486-1
	}
	return out
}

// parseAmount strips currency symbols, codes, and thousands separators,
// then parses the remainder as a float.
func parseAmount(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, s)
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseDate(s string) (string, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
