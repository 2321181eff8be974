package model

import "strings"

// SellerCode identifies a seller. Codes are normalized to trimmed upper case so
// that comparisons are case-insensitive. The empty code means "no seller".
type SellerCode string

// NoSeller is the absent seller.
const NoSeller SellerCode = ""

// NormalizeSeller builds a SellerCode from raw input.
func NormalizeSeller(raw string) SellerCode {
	return SellerCode(strings.ToUpper(strings.TrimSpace(raw)))
}

// IsZero reports whether the code is absent.
func (s SellerCode) IsZero() bool {
	return s == NoSeller
}

// Equal compares two codes after normalization.
func (s SellerCode) Equal(other SellerCode) bool {
	return NormalizeSeller(string(s)) == NormalizeSeller(string(other))
}

// String implements fmt.Stringer.
func (s SellerCode) String() string {
	if s.IsZero() {
		return "-"
	}
	return string(s)
}

// FirstSeller returns the first non-empty code.
func FirstSeller(codes ...SellerCode) SellerCode {
	for _, c := range codes {
		if !c.IsZero() {
			return c
		}
	}
	return NoSeller
}
