// Package catalog serves the read-only list of countries and data plans.
package catalog

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wenwu/saas-platform/esim-storefront/internal/models"
)

// Catalog is immutable after construction and safe for concurrent use
type Catalog struct {
	countries []models.Country
	plans     []models.Plan
	prices    map[string]models.PriceRange

	countryIdx map[string]int
	planIdx    map[string]int
	printer    *message.Printer
}

// Default returns the built-in storefront catalog
func Default() *Catalog {
	return New(defaultCountries, defaultPlans, defaultPriceRanges)
}

func New(countries []models.Country, plans []models.Plan, prices map[string]models.PriceRange) *Catalog {
	c := &Catalog{
		countries:  append([]models.Country(nil), countries...),
		plans:      make([]models.Plan, len(plans)),
		prices:     make(map[string]models.PriceRange, len(prices)),
		countryIdx: make(map[string]int, len(countries)),
		planIdx:    make(map[string]int, len(plans)),
		printer:    message.NewPrinter(language.Russian),
	}
	for i, country := range c.countries {
		c.countryIdx[country.ID] = i
	}
	for i, p := range plans {
		c.plans[i] = p.Clone()
		c.planIdx[p.ID] = i
	}
	for id, r := range prices {
		c.prices[id] = r
	}
	return c
}

// Countries returns every country in catalog order
func (c *Catalog) Countries() []models.Country {
	return append([]models.Country(nil), c.countries...)
}

func (c *Catalog) Country(id string) (models.Country, bool) {
	i, ok := c.countryIdx[id]
	if !ok {
		return models.Country{}, false
	}
	return c.countries[i], true
}

// Regions lists distinct regions in order of first appearance
func (c *Catalog) Regions() []string {
	seen := make(map[string]bool)
	var regions []string
	for _, country := range c.countries {
		if !seen[country.Region] {
			seen[country.Region] = true
			regions = append(regions, country.Region)
		}
	}
	return regions
}

// SearchCountries filters by exact region (empty = any) and by a query that
// matches name or region case-insensitively. Queries of four or more letters
// also tolerate small typos in the country name.
func (c *Catalog) SearchCountries(query, region string) []models.Country {
	q := strings.ToLower(strings.TrimSpace(query))

	result := []models.Country{}
	for _, country := range c.countries {
		if region != "" && country.Region != region {
			continue
		}
		if q != "" && !matches(country, q) {
			continue
		}
		result = append(result, country)
	}
	return result
}

func matches(country models.Country, q string) bool {
	name := strings.ToLower(country.Name)
	if strings.Contains(name, q) || strings.Contains(strings.ToLower(country.Region), q) {
		return true
	}

	allowed := typoBudget(q)
	if allowed == 0 {
		return false
	}
	if levenshtein.ComputeDistance(q, name) <= allowed {
		return true
	}
	for _, word := range strings.Fields(name) {
		if levenshtein.ComputeDistance(q, word) <= allowed {
			return true
		}
	}
	return false
}

func typoBudget(q string) int {
	switch n := len([]rune(q)); {
	case n < 4:
		return 0
	case n < 8:
		return 1
	default:
		return 2
	}
}

// PlansForCountry returns the country's plans in catalog order
func (c *Catalog) PlansForCountry(countryID string) []models.Plan {
	plans := []models.Plan{}
	for _, p := range c.plans {
		if p.CountryID == countryID {
			plans = append(plans, p.Clone())
		}
	}
	return plans
}

func (c *Catalog) Plan(id string) (models.Plan, bool) {
	i, ok := c.planIdx[id]
	if !ok {
		return models.Plan{}, false
	}
	return c.plans[i].Clone(), true
}

// PriceRange returns the advertised price span for a country
func (c *Catalog) PriceRange(countryID string) (models.PriceRange, bool) {
	r, ok := c.prices[countryID]
	return r, ok
}

// FormatPrice renders an amount in the storefront locale
func (c *Catalog) FormatPrice(amount decimal.Decimal, code string) (string, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("parse currency %q: %w", code, err)
	}
	f, _ := amount.Float64()
	return c.printer.Sprint(currency.Symbol(unit.Amount(f))), nil
}
