package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SizeTier is the vehicle size a service is priced for. The same tier selects
// which linked products a service consumes.
type SizeTier string

const (
	SizeSmall   SizeTier = "small"
	SizeMedium  SizeTier = "medium"
	SizeLarge   SizeTier = "large"
	SizeXLarge  SizeTier = "xlarge"
	SizeXXLarge SizeTier = "xxlarge"
)

var sizeOrder = []SizeTier{SizeSmall, SizeMedium, SizeLarge, SizeXLarge, SizeXXLarge}

// SizeTiers returns every tier in ascending order.
func SizeTiers() []SizeTier {
	out := make([]SizeTier, len(sizeOrder))
	copy(out, sizeOrder)
	return out
}

// ParseSizeTier accepts the lower-case tier name. An empty string yields an
// empty tier and no error.
func ParseSizeTier(s string) (SizeTier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	for _, t := range sizeOrder {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown size %q", s)
}

// CarSizeOf reads a stored car_size. Unknown values are kept as sent so the
// appointment still lists; Valid reports false for them.
func CarSizeOf(raw string) SizeTier {
	if t, err := ParseSizeTier(raw); err == nil {
		return t
	}
	return SizeTier(strings.TrimSpace(raw))
}

// SizeTierFromVariant maps a service_products.variant_id back to its tier.
func SizeTierFromVariant(variantID int) (SizeTier, bool) {
	if variantID < 1 || variantID > len(sizeOrder) {
		return "", false
	}
	return sizeOrder[variantID-1], true
}

// VariantID is the 1-based position of the tier (small=1 … xxlarge=5), or 0
// for an unknown tier.
func (s SizeTier) VariantID() int {
	for i, t := range sizeOrder {
		if t == s {
			return i + 1
		}
	}
	return 0
}

func (s SizeTier) Valid() bool { return s.VariantID() != 0 }

func (s SizeTier) String() string { return string(s) }

func (s *SizeTier) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t, err := ParseSizeTier(raw)
	if err != nil {
		return err
	}
	*s = t
	return nil
}
