package service

import (
	"sort"
	"strings"

	"tourist-tax-engine/pkg/apperror"

	"github.com/shopspring/decimal"
)

// TaxRateTable is the fixed per-city tourist-tax rate lookup. Lookups are
// case-insensitive and tolerate missing Polish diacritics as well as common
// English spellings.
type TaxRateTable struct {
	rates  map[string]cityRate // keyed by normalized name
	cities []string            // canonical names, sorted
}

type cityRate struct {
	city string
	rate decimal.Decimal
}

// perNightRates lists the canonical city names and their per-person,
// per-night rates in PLN.
var perNightRates = map[string]string{
	"Kraków":    "2.50",
	"Warszawa":  "2.40",
	"Gdańsk":    "2.50",
	"Gdynia":    "2.30",
	"Sopot":     "2.80",
	"Wrocław":   "2.30",
	"Poznań":    "2.20",
	"Łódź":      "2.10",
	"Szczecin":  "2.00",
	"Toruń":     "2.00",
	"Zakopane":  "2.00",
	"Kołobrzeg": "3.20",
}

// cityAliases maps alternate spellings that diacritic folding alone cannot
// resolve to their canonical city.
var cityAliases = map[string]string{
	"cracow": "Kraków",
	"warsaw": "Warszawa",
}

// NewTaxRateTable builds the lookup table.
func NewTaxRateTable() *TaxRateTable {
	t := &TaxRateTable{rates: make(map[string]cityRate, len(perNightRates)+len(cityAliases))}
	for city, rate := range perNightRates {
		r := cityRate{city: city, rate: decimal.RequireFromString(rate)}
		t.rates[normalizeCity(city)] = r
		t.cities = append(t.cities, city)
	}
	for alias, city := range cityAliases {
		t.rates[alias] = t.rates[normalizeCity(city)]
	}
	sort.Strings(t.cities)
	return t
}

// RateForCity returns the per-night rate for a supported city.
func (t *TaxRateTable) RateForCity(name string) (decimal.Decimal, error) {
	r, ok := t.rates[normalizeCity(name)]
	if !ok {
		return decimal.Zero, apperror.ErrUnsupportedCity(name, t.SupportedCities())
	}
	return r.rate, nil
}

// CanonicalCity returns the canonical spelling for a supported city name.
func (t *TaxRateTable) CanonicalCity(name string) (string, bool) {
	r, ok := t.rates[normalizeCity(name)]
	if !ok {
		return "", false
	}
	return r.city, true
}

// SupportedCities lists the canonical city names, sorted.
func (t *TaxRateTable) SupportedCities() []string {
	return t.cities
}

// diacriticFold maps Polish diacritics to their ASCII base letters.
var diacriticFold = map[rune]rune{
	'ą': 'a', 'ć': 'c', 'ę': 'e', 'ł': 'l', 'ń': 'n',
	'ó': 'o', 'ś': 's', 'ź': 'z', 'ż': 'z',
}

// normalizeCity lowercases, trims, and folds diacritics so that
// "KRAKÓW", "Kraków" and "krakow" all resolve to the same key.
func normalizeCity(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		if folded, ok := diacriticFold[r]; ok {
			return folded
		}
		return r
	}, lowered)
}
