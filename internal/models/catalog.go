package models

import "github.com/shopspring/decimal"

func init() {
	// Persisted orders carry prices as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Country is a destination offered by the catalog
type Country struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Code   string `json:"code"`
	Flag   string `json:"flag"`
	Region string `json:"region"`
}

// Plan is a data plan sold for a single country
type Plan struct {
	ID          string          `json:"id"`
	CountryID   string          `json:"countryId"`
	Name        string          `json:"name"`
	Data        string          `json:"data"`     // e.g. "5GB", "Unlimited"
	Validity    int             `json:"validity"` // days
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Features    []string        `json:"features"`
	Popular     bool            `json:"popular,omitempty"`
}

// Clone returns a copy that shares no slices with p
func (p Plan) Clone() Plan {
	if p.Features != nil {
		p.Features = append([]string(nil), p.Features...)
	}
	return p
}

// PriceRange is the cheapest and most expensive plan price for a country
type PriceRange struct {
	Min      decimal.Decimal `json:"min"`
	Max      decimal.Decimal `json:"max"`
	Currency string          `json:"currency"`
}

// Device OS constants
const (
	DeviceOSIOS     = "ios"
	DeviceOSAndroid = "android"
)

// DeviceInfo describes the eSIM capability of a client device
type DeviceInfo struct {
	Model         string `json:"model"`
	OS            string `json:"os"`
	ESIMSupported bool   `json:"eSIMSupported"`
}
