package models

import "time"

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// Order status constants
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusActive    OrderStatus = "active"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusActive, OrderStatusExpired, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is a purchased plan. Plan and Country are snapshots taken at purchase
// time so later catalog edits do not change historical orders.
type Order struct {
	ID             string      `json:"id"`
	PlanID         string      `json:"planId"`
	Plan           Plan        `json:"plan"`
	Country        Country     `json:"country"`
	PurchaseDate   time.Time   `json:"purchaseDate"`
	ActivationDate *time.Time  `json:"activationDate,omitempty"`
	ExpiryDate     time.Time   `json:"expiryDate"`
	Status         OrderStatus `json:"status"`
	QRCode         string      `json:"qrCode,omitempty"`
	ICCID          string      `json:"iccid,omitempty"`
}

// NewOrder builds a pending order. ExpiryDate is fixed here and never
// recomputed afterwards.
func NewOrder(id string, plan Plan, country Country, purchasedAt time.Time) Order {
	return Order{
		ID:           id,
		PlanID:       plan.ID,
		Plan:         plan.Clone(),
		Country:      country,
		PurchaseDate: purchasedAt,
		ExpiryDate:   purchasedAt.AddDate(0, 0, plan.Validity),
		Status:       OrderStatusPending,
	}
}

// Clone returns a deep copy of o
func (o Order) Clone() Order {
	o.Plan = o.Plan.Clone()
	if o.ActivationDate != nil {
		t := *o.ActivationDate
		o.ActivationDate = &t
	}
	return o
}

// OrderUpdate holds the fields of an order that may change after purchase.
// Nil fields are left untouched.
type OrderUpdate struct {
	Status         *OrderStatus
	ActivationDate *time.Time
	QRCode         *string
	ICCID          *string
}

// Apply merges the non-nil fields of u into o
func (u OrderUpdate) Apply(o *Order) {
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.ActivationDate != nil {
		t := *u.ActivationDate
		o.ActivationDate = &t
	}
	if u.QRCode != nil {
		o.QRCode = *u.QRCode
	}
	if u.ICCID != nil {
		o.ICCID = *u.ICCID
	}
}

// IsArchived reports whether the order belongs in the archive view
func (o Order) IsArchived() bool {
	return o.Status == OrderStatusExpired || o.Status == OrderStatusCancelled
}
