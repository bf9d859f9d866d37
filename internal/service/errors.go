package service

import "errors"

var (
	ErrPaymentMethodRequired    = errors.New("payment method is required")
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	ErrCountryNotFound          = errors.New("country not found")
	ErrPlanNotFound             = errors.New("plan not found")
	ErrPlanCountryMismatch      = errors.New("plan is not sold for this country")
	ErrOrderNotFound            = errors.New("order not found")
	ErrInvalidTransition        = errors.New("order status does not allow this action")
	ErrInvalidArchiveFilter     = errors.New("archive filter must be all, expired or cancelled")
	ErrNotSignedIn              = errors.New("no user is signed in")
	ErrSessionMismatch          = errors.New("session does not belong to the signed-in user")
	ErrUnsupportedOS            = errors.New("unsupported device os")
)
