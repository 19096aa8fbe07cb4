package service

import (
	"fmt"
	"math"
	"time"

	"tourist-tax-engine/pkg/apperror"

	"github.com/shopspring/decimal"
)

// Quantity bounds for a single reservation.
const (
	MinGuests = 1
	MaxGuests = 20
	MinNights = 1
	MaxNights = 365
)

// TaxCalculator is the pure computation layer: nights from dates, rate
// lookup, and total tax. It never performs I/O.
type TaxCalculator struct {
	rates *TaxRateTable
}

// NewTaxCalculator creates a calculator over the given rate table.
func NewTaxCalculator(rates *TaxRateTable) *TaxCalculator {
	return &TaxCalculator{rates: rates}
}

// Rates exposes the underlying rate table.
func (c *TaxCalculator) Rates() *TaxRateTable {
	return c.rates
}

// NightsBetween returns the number of taxable nights between two dates:
// the ceiling of the calendar-day difference. checkOut must be strictly
// after checkIn.
func (c *TaxCalculator) NightsBetween(checkIn, checkOut time.Time) (int, error) {
	in := toDate(checkIn)
	out := toDate(checkOut)
	if !out.After(in) {
		return 0, apperror.ErrInvalidDateRange()
	}
	nights := int(math.Ceil(out.Sub(in).Hours() / 24))
	return nights, nil
}

// RateForCity returns the per-night rate for a supported city.
func (c *TaxCalculator) RateForCity(name string) (decimal.Decimal, error) {
	return c.rates.RateForCity(name)
}

// TotalTax computes guests * nights * rate rounded to 2 decimal places
// (half-up). Guests and nights must be within the configured bounds.
func (c *TaxCalculator) TotalTax(guests, nights int, rate decimal.Decimal) (decimal.Decimal, error) {
	if guests < MinGuests || guests > MaxGuests {
		return decimal.Zero, apperror.ErrInvalidQuantity(
			fmt.Sprintf("guest count %d out of range [%d, %d]", guests, MinGuests, MaxGuests))
	}
	if nights < MinNights || nights > MaxNights {
		return decimal.Zero, apperror.ErrInvalidQuantity(
			fmt.Sprintf("night count %d out of range [%d, %d]", nights, MinNights, MaxNights))
	}
	total := decimal.NewFromInt(int64(guests)).
		Mul(decimal.NewFromInt(int64(nights))).
		Mul(rate).
		Round(2)
	return total, nil
}

// toDate strips the time-of-day component, keeping the calendar date in UTC.
func toDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
