package workflow

import (
	"strings"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
)

// DecisionCode identifies what the operator chose for a divergence.
type DecisionCode string

// Decision codes as typed by the operator.
const (
	UseMovementSeller  DecisionCode = "1"
	UseXMLSeller       DecisionCode = "2"
	UseCorrectedSeller DecisionCode = "3"
	UseMovementDate    DecisionCode = "4"
	UseXMLDate         DecisionCode = "5"
	Ignore             DecisionCode = "i"
	ExplicitSeller     DecisionCode = "seller"
)

// explicitPrefix introduces a seller code typed by hand, e.g. "=V07".
const explicitPrefix = "="

// Decision is one operator answer for the current queue item.
type Decision struct {
	Code   DecisionCode     `json:"code"`
	Seller model.SellerCode `json:"seller,omitempty"`
}

// SetSeller builds a decision that assigns a seller code directly.
func SetSeller(code string) Decision {
	return Decision{Code: ExplicitSeller, Seller: model.NormalizeSeller(code)}
}

// ParseDecision converts operator input into a decision.
func ParseDecision(input string) (Decision, error) {
	in := strings.TrimSpace(input)

	if strings.HasPrefix(in, explicitPrefix) {
		seller := model.NormalizeSeller(strings.TrimPrefix(in, explicitPrefix))
		if seller.IsZero() {
			return Decision{}, common.NewIntegrityError("empty seller code in decision %q", input)
		}
		return Decision{Code: ExplicitSeller, Seller: seller}, nil
	}

	if code, seller, ok := strings.Cut(in, explicitPrefix); ok {
		switch dc := DecisionCode(code); dc {
		case UseMovementDate, UseXMLDate:
			s := model.NormalizeSeller(seller)
			if s.IsZero() {
				return Decision{}, common.NewIntegrityError("empty seller code in decision %q", input)
			}
			return Decision{Code: dc, Seller: s}, nil
		}
		return Decision{}, common.NewIntegrityError("unknown decision code %q", input)
	}

	switch code := DecisionCode(strings.ToLower(in)); code {
	case UseMovementSeller, UseXMLSeller, UseCorrectedSeller, UseMovementDate, UseXMLDate, Ignore:
		return Decision{Code: code}, nil
	}

	return Decision{}, common.NewIntegrityError("unknown decision code %q", input)
}

// String renders the decision the way an operator would type it.
func (d Decision) String() string {
	if d.Code == ExplicitSeller {
		return explicitPrefix + string(d.Seller)
	}
	if !d.Seller.IsZero() {
		return string(d.Code) + explicitPrefix + string(d.Seller)
	}
	return string(d.Code)
}

// Describe returns a short human label for the decision.
func (d Decision) Describe() string {
	switch d.Code {
	case UseMovementSeller:
		return "use movement seller"
	case UseXMLSeller:
		return "use XML seller"
	case UseCorrectedSeller:
		return "use corrected seller"
	case UseMovementDate:
		return "use movement date" + d.sellerSuffix()
	case UseXMLDate:
		return "use XML date" + d.sellerSuffix()
	case Ignore:
		return "ignore"
	case ExplicitSeller:
		return "assign seller " + string(d.Seller)
	default:
		return "undecided"
	}
}

func (d Decision) sellerSuffix() string {
	if d.Seller.IsZero() {
		return ""
	}
	return ", seller " + string(d.Seller)
}
