package recon

import (
	"strings"

	"github.com/apflow/invoice-reconciler/constants"
	"github.com/apflow/invoice-reconciler/internal/common"
	"github.com/apflow/invoice-reconciler/internal/entity"
)

// Defaults for the tunable surface. Everything else is a fixed rule.
const (
	DefaultMatchThreshold  = 70
	DefaultAmountTolerance = 0.01
)

// FieldSpec names one field to compare and the rule kind that applies.
type FieldSpec struct {
	Name string           `json:"name"`
	Kind entity.FieldKind `json:"kind"`
}

// Config is the externally tunable surface of the engine: the ordered
// field list, the likely-match threshold, and the absolute amount
// tolerance.
type Config struct {
	Fields          []FieldSpec `json:"fields"`
	MatchThreshold  int         `json:"match_threshold"`
	AmountTolerance float64     `json:"amount_tolerance"`
}

// DefaultFields is the field set used when a caller does not supply one.
func DefaultFields() []FieldSpec {
	return []FieldSpec{
		{Name: string(constants.PONumber), Kind: entity.KindIdentifier},
		{Name: string(constants.VendorName), Kind: entity.KindText},
		{Name: string(constants.TotalAmount), Kind: entity.KindCurrency},
		{Name: string(constants.IssueDate), Kind: entity.KindDate},
	}
}

func DefaultConfig() Config {
	return Config{
		Fields:          DefaultFields(),
		MatchThreshold:  DefaultMatchThreshold,
		AmountTolerance: DefaultAmountTolerance,
	}
}

// ParseFieldSpecs parses a comma-separated "name:kind" list, e.g.
// "po_number:identifier,total_amount:currency". A bare name defaults to
// the text kind.
func ParseFieldSpecs(s string) ([]FieldSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var specs []FieldSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, kindStr, hasKind := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, common.InvalidArgumentErrorf("field spec %q has no name", part)
		}
		kind := entity.KindText
		if hasKind {
			switch entity.FieldKind(strings.TrimSpace(kindStr)) {
			case entity.KindText:
				kind = entity.KindText
			case entity.KindCurrency:
				kind = entity.KindCurrency
			case entity.KindDate:
				kind = entity.KindDate
			case entity.KindIdentifier:
				kind = entity.KindIdentifier
			default:
				return nil, common.InvalidArgumentErrorf("field spec %q has unknown kind %q", part, kindStr)
			}
		}
		specs = append(specs, FieldSpec{Name: name, Kind: kind})
	}
	return specs, nil
}

// withDefaults fills zero values so a partially populated Config behaves.
func (c Config) withDefaults() Config {
	if len(c.Fields) == 0 {
		c.Fields = DefaultFields()
	}
	if c.MatchThreshold == 0 {
		c.MatchThreshold = DefaultMatchThreshold
	}
	if c.AmountTolerance <= 0 {
		c.AmountTolerance = DefaultAmountTolerance
	}
	return c
}
