package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/wenwu/saas-platform/esim-storefront/internal/models"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var defaultCountries = []models.Country{
	{ID: "1", Name: "США", Code: "US", Flag: "🇺🇸", Region: "Северная Америка"},
	{ID: "2", Name: "Великобритания", Code: "GB", Flag: "🇬🇧", Region: "Европа"},
	{ID: "3", Name: "Германия", Code: "DE", Flag: "🇩🇪", Region: "Европа"},
	{ID: "4", Name: "Франция", Code: "FR", Flag: "🇫🇷", Region: "Европа"},
	{ID: "5", Name: "Испания", Code: "ES", Flag: "🇪🇸", Region: "Европа"},
	{ID: "6", Name: "Италия", Code: "IT", Flag: "🇮🇹", Region: "Европа"},
	{ID: "7", Name: "Япония", Code: "JP", Flag: "🇯🇵", Region: "Азия"},
	{ID: "8", Name: "Южная Корея", Code: "KR", Flag: "🇰🇷", Region: "Азия"},
	{ID: "9", Name: "Австралия", Code: "AU", Flag: "🇦🇺", Region: "Океания"},
	{ID: "10", Name: "Канада", Code: "CA", Flag: "🇨🇦", Region: "Северная Америка"},
	{ID: "11", Name: "Турция", Code: "TR", Flag: "🇹🇷", Region: "Европа"},
	{ID: "12", Name: "ОАЭ", Code: "AE", Flag: "🇦🇪", Region: "Ближний Восток"},
}

var defaultPlans = []models.Plan{
	{
		ID:          "1",
		CountryID:   "1",
		Name:        "Базовый",
		Data:        "5GB",
		Validity:    7,
		Price:       price("9.99"),
		Currency:    "USD",
		Description: "Идеально для коротких поездок",
		Features:    []string{"5GB данных", "7 дней действия", "4G/LTE скорость"},
	},
	{
		ID:          "2",
		CountryID:   "1",
		Name:        "Стандартный",
		Data:        "10GB",
		Validity:    14,
		Price:       price("17.99"),
		Currency:    "USD",
		Description: "Популярный выбор",
		Features:    []string{"10GB данных", "14 дней действия", "4G/LTE скорость", "Горячая точка"},
		Popular:     true,
	},
	{
		ID:          "3",
		CountryID:   "1",
		Name:        "Премиум",
		Data:        "20GB",
		Validity:    30,
		Price:       price("29.99"),
		Currency:    "USD",
		Description: "Для длительных поездок",
		Features:    []string{"20GB данных", "30 дней действия", "5G скорость", "Горячая точка", "Приоритетная поддержка"},
	},
	{
		ID:          "4",
		CountryID:   "2",
		Name:        "Базовый",
		Data:        "3GB",
		Validity:    7,
		Price:       price("7.99"),
		Currency:    "GBP",
		Description: "Идеально для коротких поездок",
		Features:    []string{"3GB данных", "7 дней действия", "4G/LTE скорость"},
	},
	{
		ID:          "5",
		CountryID:   "2",
		Name:        "Стандартный",
		Data:        "8GB",
		Validity:    14,
		Price:       price("14.99"),
		Currency:    "GBP",
		Description: "Популярный выбор",
		Features:    []string{"8GB данных", "14 дней действия", "4G/LTE скорость", "Горячая точка"},
		Popular:     true,
	},
}

// advertised "from / to" prices per country id
var defaultPriceRanges = map[string]models.PriceRange{
	"1":  {Min: price("9.99"), Max: price("29.99"), Currency: "USD"},
	"2":  {Min: price("7.99"), Max: price("24.99"), Currency: "GBP"},
	"3":  {Min: price("8.99"), Max: price("26.99"), Currency: "EUR"},
	"4":  {Min: price("8.99"), Max: price("26.99"), Currency: "EUR"},
	"5":  {Min: price("7.99"), Max: price("24.99"), Currency: "EUR"},
	"6":  {Min: price("7.99"), Max: price("24.99"), Currency: "EUR"},
	"7":  {Min: price("10.99"), Max: price("32.99"), Currency: "USD"},
	"8":  {Min: price("9.99"), Max: price("29.99"), Currency: "USD"},
	"9":  {Min: price("11.99"), Max: price("34.99"), Currency: "AUD"},
	"10": {Min: price("9.99"), Max: price("29.99"), Currency: "CAD"},
	"11": {Min: price("6.99"), Max: price("22.99"), Currency: "USD"},
	"12": {Min: price("8.99"), Max: price("26.99"), Currency: "USD"},
}
