// Package pricing derives monetary totals for price listings and bills.
package pricing

import (
	"math"
	"strings"
)

// Money is a decimal currency amount. Rounding happens only at display time.
type Money = float64

// Partner is a delivery or pickup partner with its charge.
type Partner struct {
	ID    string
	Price Money
}

// ComputeTotal adds the optional partner charge to base. Negative, NaN or
// infinite inputs count as zero for the total; no rounding is applied.
func ComputeTotal(base Money, partnerCharge *Money) Money {
	total := clamp(base)
	if partnerCharge != nil {
		total += clamp(*partnerCharge)
	}
	return total
}

// SelectPartnerCharge returns the price of the partner with the given id. It
// returns nil when id is blank or no partner matches.
func SelectPartnerCharge(partnerID string, partners []Partner) *Money {
	id := strings.TrimSpace(partnerID)
	if id == "" {
		return nil
	}
	for _, p := range partners {
		if p.ID == id {
			price := p.Price
			return &price
		}
	}
	return nil
}

func clamp(v Money) Money {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
