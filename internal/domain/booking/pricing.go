package booking

import (
	"fmt"
	"time"
)

// Quote is the derived pricing of a booking interval. All amounts are in
// cents.
//
// The invariant TotalAmountCents == HostEarningsCents + MarkupAmountCents
// holds for every quote.
type Quote struct {
	DurationUnits     int   `json:"duration_units"`
	MarkupAmountCents int64 `json:"markup_amount_cents"`
	TotalAmountCents  int64 `json:"total_amount_cents"`
	HostEarningsCents int64 `json:"host_earnings_cents"`
}

// ComputeQuote derives pricing from the per-unit base price, the booking
// interval, and the platform markup percentage. It is a pure function:
// callers recompute it whenever any input changes instead of trusting a
// stored value.
//
// Duration is the number of whole booking units covering the interval,
// rounded up, minimum 1. The markup is rounded to the nearest cent with
// ties rounding up.
func ComputeQuote(basePriceCents int64, start, end time.Time, bookingType BookingType, markupPercentage int) (Quote, error) {
	if basePriceCents <= 0 {
		return Quote{}, fmt.Errorf("base price must be positive")
	}
	if !end.After(start) {
		return Quote{}, fmt.Errorf("end time must be after start time")
	}
	if !bookingType.IsValid() {
		return Quote{}, fmt.Errorf("invalid booking type: %s", bookingType)
	}
	if markupPercentage < 0 || markupPercentage > 100 {
		return Quote{}, fmt.Errorf("markup percentage must be within 0..100")
	}

	duration := durationUnits(start, end, bookingType)
	hostEarnings := basePriceCents * int64(duration)
	markup := roundHalfUp(hostEarnings*int64(markupPercentage), 100)

	return Quote{
		DurationUnits:     duration,
		MarkupAmountCents: markup,
		TotalAmountCents:  hostEarnings + markup,
		HostEarningsCents: hostEarnings,
	}, nil
}

// durationUnits returns ceil((end-start)/unit), minimum 1.
func durationUnits(start, end time.Time, bookingType BookingType) int {
	unit := bookingType.UnitLength()
	span := end.Sub(start)
	units := int(span / unit)
	if span%unit != 0 {
		units++
	}
	if units < 1 {
		units = 1
	}
	return units
}

// roundHalfUp divides numerator by divisor rounding to the nearest integer,
// ties up. Both arguments must be non-negative.
func roundHalfUp(numerator, divisor int64) int64 {
	return (numerator + divisor/2) / divisor
}
