// Package records exposes the back-office collections over a generic JSON
// record store: validation, derived totals, caching and HTTP handlers.
package records

import (
	"errors"
	"slices"
)

// Collection names.
const (
	Customers        = "customers"
	Bookings         = "bookings"
	Containers       = "containers"
	Bills            = "bills"
	PackingLists     = "packing_lists"
	DeliveryPartners = "delivery_partners"
	PickupPartners   = "pickup_partners"
	PriceListings    = "price_listings"
)

// ErrUnknownCollection is returned for collection names outside the registry.
var ErrUnknownCollection = errors.New("records: unknown collection")

// Collection describes how payloads of one collection are validated and
// which derived fields are computed on write.
type Collection struct {
	Name    string
	payload func() any
	pricing *pricingRule
}

// pricingRule derives "total" from a base amount plus an optional partner charge.
type pricingRule struct {
	BaseField         string
	PartnerField      string
	PartnerCollection string
}

type defaulter interface {
	applyDefaults()
}

type party struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type customerPayload struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type bookingPayload struct {
	CustomerID  string `json:"customer_id" validate:"required"`
	Origin      string `json:"origin" validate:"required"`
	Destination string `json:"destination" validate:"required"`
	Sender      *party `json:"sender,omitempty" validate:"omitempty"`
	Receiver    *party `json:"receiver,omitempty" validate:"omitempty"`
	Status      string `json:"status" validate:"omitempty,oneof=pending confirmed in_transit delivered cancelled"`
	Notes       string `json:"notes,omitempty"`
}

func (p *bookingPayload) applyDefaults() {
	if p.Status == "" {
		p.Status = "pending"
	}
}

type containerPayload struct {
	Number    string `json:"number" validate:"required"`
	Size      string `json:"size" validate:"required,oneof=20ft 40ft 40hc 45hc"`
	BookingID string `json:"booking_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

type billPayload struct {
	CustomerID      string  `json:"customer_id" validate:"required"`
	Amount          float64 `json:"amount" validate:"gte=0"`
	PickupPartnerID string  `json:"pickup_partner_id,omitempty"`
	Status          string  `json:"status" validate:"omitempty,oneof=unpaid paid void"`
	Reference       string  `json:"reference,omitempty"`
}

func (p *billPayload) applyDefaults() {
	if p.Status == "" {
		p.Status = "unpaid"
	}
}

type packingItem struct {
	Description string  `json:"description" validate:"required"`
	Quantity    int     `json:"quantity" validate:"gte=1"`
	Weight      float64 `json:"weight" validate:"gte=0"`
}

type packingListPayload struct {
	BookingID string        `json:"booking_id" validate:"required"`
	Items     []packingItem `json:"items" validate:"required,min=1,dive"`
}

type partnerPayload struct {
	Name  string  `json:"name" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
	Phone string  `json:"phone,omitempty"`
}

type priceListingPayload struct {
	Name              string  `json:"name" validate:"required"`
	Origin            string  `json:"origin,omitempty"`
	Destination       string  `json:"destination,omitempty"`
	BasePrice         float64 `json:"base_price" validate:"gte=0"`
	DeliveryPartnerID string  `json:"delivery_partner_id,omitempty"`
}

var registry = map[string]Collection{
	Customers:        {Name: Customers, payload: func() any { return &customerPayload{} }},
	Bookings:         {Name: Bookings, payload: func() any { return &bookingPayload{} }},
	Containers:       {Name: Containers, payload: func() any { return &containerPayload{} }},
	PackingLists:     {Name: PackingLists, payload: func() any { return &packingListPayload{} }},
	DeliveryPartners: {Name: DeliveryPartners, payload: func() any { return &partnerPayload{} }},
	PickupPartners:   {Name: PickupPartners, payload: func() any { return &partnerPayload{} }},
	Bills: {
		Name:    Bills,
		payload: func() any { return &billPayload{} },
		pricing: &pricingRule{BaseField: "amount", PartnerField: "pickup_partner_id", PartnerCollection: PickupPartners},
	},
	PriceListings: {
		Name:    PriceListings,
		payload: func() any { return &priceListingPayload{} },
		pricing: &pricingRule{BaseField: "base_price", PartnerField: "delivery_partner_id", PartnerCollection: DeliveryPartners},
	},
}

// Lookup returns the registered collection by name.
func Lookup(name string) (Collection, error) {
	c, ok := registry[name]
	if !ok {
		return Collection{}, ErrUnknownCollection
	}
	return c, nil
}

// Names lists registered collections in alphabetical order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// IsPartnerCollection reports whether name holds partners whose price is a charge.
func IsPartnerCollection(name string) bool {
	return name == DeliveryPartners || name == PickupPartners
}
