package models

import "github.com/shopspring/decimal"

// PaymentMethod is the simulated checkout method chosen by the user
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodApple  PaymentMethod = "apple"
	PaymentMethodGoogle PaymentMethod = "google"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

// Valid reports whether m is a supported payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodApple, PaymentMethodGoogle, PaymentMethodPayPal:
		return true
	}
	return false
}

// Persistence outcomes reported alongside mutated resources
const (
	PersistenceQueued    = "queued"
	PersistencePersisted = "persisted"
	PersistenceFailed    = "failed"
)

// ==================== Catalog DTOs ====================

// CountryView is a catalog country with its advertised price range
type CountryView struct {
	Country
	PriceRange *PriceRange `json:"priceRange,omitempty"`
}

// PlanView is a plan with its price rendered for display
type PlanView struct {
	Plan
	PriceFormatted string `json:"priceFormatted"`
}

// ==================== Order DTOs ====================

// PurchaseRequest is the request for POST /api/v1/orders
type PurchaseRequest struct {
	CountryID     string        `json:"country_id" binding:"required"`
	PlanID        string        `json:"plan_id" binding:"required"`
	PaymentMethod PaymentMethod `json:"payment_method"`
}

// OrderResponse wraps an order with the state of its persistence write
type OrderResponse struct {
	Order       Order  `json:"order"`
	Persistence string `json:"persistence"`
	Error       string `json:"error,omitempty"`
}

// OrdersOverviewResponse is returned by GET /api/v1/orders
type OrdersOverviewResponse struct {
	Active []Order `json:"active"`
	Other  []Order `json:"other"`
}

// ShareMessage is the text handed to the device share sheet
type ShareMessage struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// ==================== Profile DTOs ====================

// LoginRequest is the request for POST /api/v1/auth/login and /register
type LoginRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email" binding:"required,email"`
	Phone  string `json:"phone"`
	Avatar string `json:"avatar"`
}

// AuthResponse carries the signed-in user and a session token
type AuthResponse struct {
	User        *User  `json:"user"`
	Token       string `json:"token"`
	ExpiresAt   string `json:"expires_at"`
	Persistence string `json:"persistence"`
}

// MoneyAmount is a total in one currency
type MoneyAmount struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Formatted string          `json:"formatted,omitempty"`
}

// ProfileStats summarises the order history
type ProfileStats struct {
	TotalOrders  int           `json:"total_orders"`
	ActiveOrders int           `json:"active_orders"`
	TotalSpent   []MoneyAmount `json:"total_spent"`
}

// ProfileResponse is returned by GET /api/v1/profile
type ProfileResponse struct {
	User  *User        `json:"user"`
	Guest bool         `json:"guest"`
	Stats ProfileStats `json:"stats"`
}
